package tools

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/wwwzy/EDAgent/internal/dataset"
	"github.com/wwwzy/EDAgent/internal/plot"
)

const (
	maxGroups          = 10
	maxCrosstabColumns = 20
)

type compareArgs struct {
	Column  string `json:"column"`
	GroupBy string `json:"group_by"`
}

func compareGroupsDef() Definition {
	return Definition{
		ID:   CompareGroups,
		Desc: "Compare a column across the groups of a categorical column (at most 10 groups). Numeric columns get per-group statistics and boxplots; categorical columns get a crosstab.",
		Params: map[string]*schema.ParameterInfo{
			"column":   {Type: schema.String, Desc: "Column to compare", Required: true},
			"group_by": {Type: schema.String, Desc: "Categorical column used to form the groups", Required: true},
		},
		Run: Typed(compareGroups),
	}
}

func compareGroups(_ context.Context, env Env, args compareArgs) Result {
	ds, errRes := requireDataset(env)
	if errRes != nil {
		return *errRes
	}
	col, errRes := lookupColumn(ds, args.Column)
	if errRes != nil {
		return *errRes
	}
	by, errRes := lookupColumn(ds, args.GroupBy)
	if errRes != nil {
		return *errRes
	}
	groups, _ := ds.ValueCounts(by.Name)
	if len(groups) > maxGroups {
		return Errorf("Too many groups in '%s' (%d). Maximum allowed is %d.", by.Name, len(groups), maxGroups)
	}
	if len(groups) == 0 {
		return Errorf("Column '%s' has no values to group by", by.Name)
	}

	pos := make(map[string]int, len(groups))
	for i, g := range groups {
		pos[g.Value] = i
	}
	groupOf := func(r int) (int, bool) {
		v, ok := by.Value(r)
		if !ok {
			return 0, false
		}
		if by.Type == dataset.Numeric {
			f, _ := by.Float(r)
			v = dataset.FormatFloat(f)
		}
		i, ok := pos[v]
		return i, ok
	}

	if col.Type == dataset.Numeric {
		buckets := make([]plot.Group, len(groups))
		for i, g := range groups {
			buckets[i].Name = g.Value
		}
		for r := 0; r < ds.Rows(); r++ {
			gi, ok := groupOf(r)
			if !ok {
				continue
			}
			if f, ok := col.Float(r); ok {
				buckets[gi].Values = append(buckets[gi].Values, f)
			}
		}
		stats := make(map[string]any, len(buckets))
		for _, b := range buckets {
			stats[b.Name] = dataset.Describe(b.Values).Map()
		}
		res := Success(map[string]any{
			"column":   col.Name,
			"group_by": by.Name,
			"type":     "numeric",
			"groups":   stats,
		})
		if env.Renderer == nil {
			return res
		}
		path, err := env.Renderer.GroupNumeric(col.Name, by.Name, buckets)
		if err != nil {
			return Errorf("failed to render comparison chart: %v", err)
		}
		return res.WithPlot(path)
	}

	values, _ := ds.ValueCounts(col.Name)
	values = topCounts(values, maxCrosstabColumns)
	vpos := make(map[string]int, len(values))
	table := plot.Crosstab{Counts: make([][]int, len(groups))}
	for i, g := range groups {
		table.Rows = append(table.Rows, g.Value)
		table.Counts[i] = make([]int, len(values))
	}
	for j, v := range values {
		table.Cols = append(table.Cols, v.Value)
		vpos[v.Value] = j
	}
	for r := 0; r < ds.Rows(); r++ {
		gi, ok := groupOf(r)
		if !ok {
			continue
		}
		v, ok := col.Value(r)
		if !ok {
			continue
		}
		if j, ok := vpos[v]; ok {
			table.Counts[gi][j]++
		}
	}
	crosstab := make(map[string]map[string]int, len(groups))
	for i, g := range table.Rows {
		row := make(map[string]int, len(values))
		for j, v := range table.Cols {
			row[v] = table.Counts[i][j]
		}
		crosstab[g] = row
	}
	res := Success(map[string]any{
		"column":   col.Name,
		"group_by": by.Name,
		"type":     "categorical",
		"crosstab": crosstab,
	})
	if env.Renderer == nil {
		return res
	}
	path, err := env.Renderer.GroupCategorical(col.Name, by.Name, table)
	if err != nil {
		return Errorf("failed to render comparison chart: %v", err)
	}
	return res.WithPlot(path)
}
