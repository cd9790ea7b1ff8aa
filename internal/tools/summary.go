package tools

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
)

const (
	summaryCategoricalColumns = 5
	summaryTopValues          = 5
)

func dataSummaryDef() Definition {
	return Definition{
		ID:   GetDataSummary,
		Desc: "Get a complete summary of the dataset: shape, column types, missing values, memory usage, descriptive statistics for numeric columns and top values for categorical columns. Call this first.",
		Run:  Typed(dataSummary),
	}
}

func dataSummary(_ context.Context, env Env, _ struct{}) Result {
	ds, errRes := requireDataset(env)
	if errRes != nil {
		return *errRes
	}

	dtypes := make(map[string]string, ds.Cols())
	missing := make(map[string]int, ds.Cols())
	missingPct := map[string]string{}
	for _, c := range ds.Columns() {
		dtypes[c.Name] = string(c.Type)
		missing[c.Name] = c.Missing()
		if c.Missing() > 0 && ds.Rows() > 0 {
			missingPct[c.Name] = fmt.Sprintf("%.2f%%", float64(c.Missing())/float64(ds.Rows())*100)
		}
	}

	numericStats := map[string]any{}
	for _, name := range ds.NumericColumns() {
		if s, ok := ds.Describe(name); ok {
			numericStats[name] = s.Map()
		}
	}

	categoricalInfo := map[string]any{}
	cats := ds.CategoricalColumns()
	if len(cats) > summaryCategoricalColumns {
		cats = cats[:summaryCategoricalColumns]
	}
	for _, name := range cats {
		vc, _ := ds.ValueCounts(name)
		categoricalInfo[name] = map[string]any{
			"unique_values": len(vc),
			"top_values":    topCounts(vc, summaryTopValues),
		}
	}

	return Success(map[string]any{
		"filename":            ds.Name,
		"shape":               []int{ds.Rows(), ds.Cols()},
		"columns":             ds.ColumnNames(),
		"numeric_columns":     nonNil(ds.NumericColumns()),
		"categorical_columns": nonNil(ds.CategoricalColumns()),
		"dtypes":              dtypes,
		"missing_values":      missing,
		"missing_percentage":  missingPct,
		"memory_usage":        humanize.IBytes(ds.MemoryUsage()),
		"duplicate_rows":      ds.DuplicateRows(),
		"numeric_statistics":  numericStats,
		"categorical_info":    categoricalInfo,
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
