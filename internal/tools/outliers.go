package tools

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/wwwzy/EDAgent/internal/dataset"
)

const (
	iqrFactor          = 1.5
	maxOutlierExamples = 10
)

func outliersDef() Definition {
	return Definition{
		ID:   DetectOutliers,
		Desc: "Detect outliers in a numeric column with the IQR rule (values below Q1-1.5*IQR or above Q3+1.5*IQR) and draw a boxplot.",
		Params: map[string]*schema.ParameterInfo{
			"column": {Type: schema.String, Desc: "Name of the numeric column", Required: true},
		},
		Run: Typed(detectOutliers),
	}
}

func detectOutliers(_ context.Context, env Env, args columnArgs) Result {
	ds, errRes := requireDataset(env)
	if errRes != nil {
		return *errRes
	}
	col, errRes := lookupColumn(ds, args.Column)
	if errRes != nil {
		return *errRes
	}
	if col.Type != dataset.Numeric {
		return Errorf("Column '%s' is not numeric", col.Name)
	}
	stats, _ := ds.Describe(col.Name)
	if stats.Count == 0 {
		return Errorf("Column '%s' has no numeric values", col.Name)
	}

	iqr := stats.IQR()
	lower := stats.Q25 - iqrFactor*iqr
	upper := stats.Q75 + iqrFactor*iqr

	values := col.Floats()
	var examples []float64
	n := 0
	for _, v := range values {
		if v < lower || v > upper {
			n++
			if len(examples) < maxOutlierExamples {
				examples = append(examples, v)
			}
		}
	}
	if examples == nil {
		examples = []float64{}
	}
	pct := 0.0
	if ds.Rows() > 0 {
		pct = round2(float64(n) / float64(ds.Rows()) * 100)
	}

	res := Success(map[string]any{
		"column":          col.Name,
		"total_outliers":  n,
		"percentage":      pct,
		"lower_bound":     dataset.Finite(lower),
		"upper_bound":     dataset.Finite(upper),
		"iqr":             dataset.Finite(iqr),
		"outlier_samples": examples,
	})
	if env.Renderer == nil {
		return res
	}
	path, err := env.Renderer.Outliers(col.Name, values, lower, upper)
	if err != nil {
		return Errorf("failed to render chart for '%s': %v", col.Name, err)
	}
	return res.WithPlot(path)
}
