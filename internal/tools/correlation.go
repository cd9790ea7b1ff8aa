package tools

import (
	"context"
	"math"
	"sort"

	"github.com/cloudwego/eino/schema"

	"github.com/wwwzy/EDAgent/internal/dataset"
)

const (
	maxCorrelationColumns = 20
	topCorrelationPairs   = 10
)

type correlationArgs struct {
	Columns []string `json:"columns"`
}

type correlationPair struct {
	Column1     string  `json:"column_1"`
	Column2     string  `json:"column_2"`
	Correlation float64 `json:"correlation"`
}

func correlationDef() Definition {
	return Definition{
		ID:   AnalyzeCorrelation,
		Desc: "Compute the Pearson correlation matrix between numeric columns and report the strongest pairs. Optionally restrict to a list of columns.",
		Params: map[string]*schema.ParameterInfo{
			"columns": {
				Type:     schema.Array,
				Desc:     "Numeric columns to include (default: all numeric columns)",
				ElemInfo: &schema.ParameterInfo{Type: schema.String, Desc: "Column name"},
			},
		},
		Run: Typed(analyzeCorrelation),
	}
}

func analyzeCorrelation(_ context.Context, env Env, args correlationArgs) Result {
	ds, errRes := requireDataset(env)
	if errRes != nil {
		return *errRes
	}

	cols := ds.NumericColumns()
	if len(args.Columns) > 0 {
		var picked []string
		for _, name := range args.Columns {
			if c, ok := ds.Column(name); ok && c.Type == dataset.Numeric {
				picked = append(picked, name)
			}
		}
		cols = picked
	}
	if len(cols) < 2 {
		return Warning("Correlation analysis requires at least 2 numeric columns.")
	}
	if len(cols) > maxCorrelationColumns {
		cols = cols[:maxCorrelationColumns]
	}

	matrix := make([][]float64, len(cols))
	table := make(map[string]map[string]any, len(cols))
	for i := range cols {
		matrix[i] = make([]float64, len(cols))
		table[cols[i]] = make(map[string]any, len(cols))
	}
	var pairs []correlationPair
	for i := range cols {
		for j := i; j < len(cols); j++ {
			r := 1.0
			if i != j {
				r = ds.Correlation(cols[i], cols[j])
				if !math.IsNaN(r) {
					pairs = append(pairs, correlationPair{cols[i], cols[j], round4(r)})
				}
			} else if s, ok := ds.Describe(cols[i]); !ok || math.IsNaN(s.Std) || s.Std == 0 {
				r = math.NaN()
			}
			matrix[i][j], matrix[j][i] = r, r
			table[cols[i]][cols[j]] = dataset.Finite(r)
			table[cols[j]][cols[i]] = dataset.Finite(r)
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		return math.Abs(pairs[a].Correlation) > math.Abs(pairs[b].Correlation)
	})
	if len(pairs) > topCorrelationPairs {
		pairs = pairs[:topCorrelationPairs]
	}
	if pairs == nil {
		pairs = []correlationPair{}
	}

	res := Success(map[string]any{
		"columns":            cols,
		"correlation_matrix": table,
		"top_correlations":   pairs,
	})
	if env.Renderer == nil {
		return res
	}
	path, err := env.Renderer.Correlation(cols, matrix)
	if err != nil {
		return Errorf("failed to render correlation chart: %v", err)
	}
	return res.WithPlot(path)
}

func round4(f float64) float64 {
	return math.Round(f*1e4) / 1e4
}
