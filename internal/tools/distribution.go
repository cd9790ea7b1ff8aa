package tools

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/wwwzy/EDAgent/internal/dataset"
)

const maxFrequencyBars = 20

type columnArgs struct {
	Column string `json:"column"`
}

func distributionDef() Definition {
	return Definition{
		ID:   AnalyzeDistribution,
		Desc: "Analyze the distribution of one column. Numeric columns get descriptive statistics, skewness, a histogram and a boxplot; other columns get value counts and a frequency chart.",
		Params: map[string]*schema.ParameterInfo{
			"column": {Type: schema.String, Desc: "Name of the column to analyze", Required: true},
		},
		Run: Typed(analyzeDistribution),
	}
}

func analyzeDistribution(_ context.Context, env Env, args columnArgs) Result {
	ds, errRes := requireDataset(env)
	if errRes != nil {
		return *errRes
	}
	col, errRes := lookupColumn(ds, args.Column)
	if errRes != nil {
		return *errRes
	}

	if col.Type == dataset.Numeric {
		values := col.Floats()
		stats, _ := ds.Describe(col.Name)
		m := stats.Map()
		m["skewness"] = dataset.Finite(dataset.Skewness(values))
		res := Success(map[string]any{
			"column":     col.Name,
			"type":       string(col.Type),
			"statistics": m,
			"missing":    col.Missing(),
		})
		if env.Renderer == nil {
			return res
		}
		path, err := env.Renderer.Distribution(col.Name, values)
		if err != nil {
			return Errorf("failed to render chart for '%s': %v", col.Name, err)
		}
		return res.WithPlot(path)
	}

	vc, _ := ds.ValueCounts(col.Name)
	top := topCounts(vc, maxFrequencyBars)
	res := Success(map[string]any{
		"column":        col.Name,
		"type":          string(col.Type),
		"unique_values": len(vc),
		"value_counts":  top,
		"missing":       col.Missing(),
	})
	if env.Renderer == nil {
		return res
	}
	labels := make([]string, len(top))
	counts := make([]int, len(top))
	for i, v := range top {
		labels[i], counts[i] = v.Value, v.Count
	}
	path, err := env.Renderer.Frequency(col.Name, labels, counts)
	if err != nil {
		return Errorf("failed to render chart for '%s': %v", col.Name, err)
	}
	return res.WithPlot(path)
}
