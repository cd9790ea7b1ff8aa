package tools

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/wwwzy/EDAgent/internal/dataset"
	"github.com/wwwzy/EDAgent/internal/plot"
)

const maxSeriesInResult = 100

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"2006-01",
	"Jan 2006",
	"2006",
}

type temporalArgs struct {
	TimeColumn  string `json:"time_column"`
	ValueColumn string `json:"value_column"`
}

type granularity struct {
	name   string
	layout string
	trunc  func(time.Time) time.Time
}

var (
	byYear  = granularity{"year", "2006", func(t time.Time) time.Time { return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC) }}
	byMonth = granularity{"month", "2006-01", func(t time.Time) time.Time { return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC) }}
	byDay   = granularity{"day", "2006-01-02", func(t time.Time) time.Time { return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC) }}
	byHour  = granularity{"hour", "2006-01-02 15:00", func(t time.Time) time.Time { return t.Truncate(time.Hour) }}
)

func temporalDef() Definition {
	return Definition{
		ID:   AnalyzeTemporalPatterns,
		Desc: "Analyze how a dataset evolves over time: parse a date/time column, aggregate rows per period (hour, day, month or year chosen from the time span) and, optionally, the mean of a numeric value column per period.",
		Params: map[string]*schema.ParameterInfo{
			"time_column":  {Type: schema.String, Desc: "Column containing dates or timestamps", Required: true},
			"value_column": {Type: schema.String, Desc: "Optional numeric column to average per period"},
		},
		Run: Typed(analyzeTemporal),
	}
}

// ParseTime 按常见格式解析时间文本。
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func pickGranularity(span time.Duration) granularity {
	const day = 24 * time.Hour
	switch {
	case span > 3*365*day:
		return byYear
	case span > 90*day:
		return byMonth
	case span > 2*day:
		return byDay
	default:
		return byHour
	}
}

func analyzeTemporal(_ context.Context, env Env, args temporalArgs) Result {
	ds, errRes := requireDataset(env)
	if errRes != nil {
		return *errRes
	}
	tcol, errRes := lookupColumn(ds, args.TimeColumn)
	if errRes != nil {
		return *errRes
	}
	var vcol *dataset.Column
	if args.ValueColumn != "" {
		vcol, errRes = lookupColumn(ds, args.ValueColumn)
		if errRes != nil {
			return *errRes
		}
		if vcol.Type != dataset.Numeric {
			return Errorf("Column '%s' is not numeric", vcol.Name)
		}
	}

	type obs struct {
		t time.Time
		v float64
	}
	var parsed []obs
	unparsed := 0
	for r := 0; r < ds.Rows(); r++ {
		raw, ok := tcol.Value(r)
		if !ok {
			continue
		}
		t, ok := ParseTime(raw)
		if !ok {
			unparsed++
			continue
		}
		v := math.NaN()
		if vcol != nil {
			if f, ok := vcol.Float(r); ok {
				v = f
			}
		}
		parsed = append(parsed, obs{t, v})
	}
	if len(parsed) < 2 {
		return Errorf("Could not parse at least 2 timestamps in column '%s'", tcol.Name)
	}

	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].t.Before(parsed[j].t) })
	start, end := parsed[0].t, parsed[len(parsed)-1].t
	g := pickGranularity(end.Sub(start))

	type bucket struct {
		key   time.Time
		count int
		sum   float64
		n     int
	}
	var buckets []*bucket
	for _, o := range parsed {
		k := g.trunc(o.t)
		if len(buckets) == 0 || !buckets[len(buckets)-1].key.Equal(k) {
			buckets = append(buckets, &bucket{key: k})
		}
		b := buckets[len(buckets)-1]
		b.count++
		if !math.IsNaN(o.v) {
			b.sum += o.v
			b.n++
		}
	}

	points := make([]plot.Point, len(buckets))
	series := make([]map[string]any, 0, len(buckets))
	idx := make([]float64, len(buckets))
	trendValues := make([]float64, len(buckets))
	for i, b := range buckets {
		mean := math.NaN()
		if b.n > 0 {
			mean = b.sum / float64(b.n)
		}
		points[i] = plot.Point{Label: b.key.Format(g.layout), Count: b.count, Value: mean}
		entry := map[string]any{"period": points[i].Label, "count": b.count}
		if vcol != nil {
			entry["mean"] = dataset.Finite(mean)
		}
		series = append(series, entry)
		idx[i] = float64(i)
		if vcol != nil {
			trendValues[i] = mean
		} else {
			trendValues[i] = float64(b.count)
		}
	}
	if len(series) > maxSeriesInResult {
		series = series[len(series)-maxSeriesInResult:]
	}

	result := map[string]any{
		"time_column":   tcol.Name,
		"granularity":   g.name,
		"start":         start.Format(time.RFC3339),
		"end":           end.Format(time.RFC3339),
		"periods":       len(buckets),
		"parsed_rows":   len(parsed),
		"unparsed_rows": unparsed,
		"trend":         trend(idx, trendValues),
		"series":        series,
	}
	valueName := ""
	if vcol != nil {
		valueName = vcol.Name
		result["value_column"] = vcol.Name
	}

	res := Success(result)
	if env.Renderer == nil {
		return res
	}
	path, err := env.Renderer.TimeSeries(tcol.Name, valueName, points)
	if err != nil {
		return Errorf("failed to render temporal chart: %v", err)
	}
	return res.WithPlot(path)
}

// trend 用时间序号与数值的相关系数粗略判断趋势。
func trend(idx, values []float64) string {
	var xs, ys []float64
	for i, v := range values {
		if !math.IsNaN(v) {
			xs = append(xs, idx[i])
			ys = append(ys, v)
		}
	}
	r := dataset.Pearson(xs, ys)
	switch {
	case math.IsNaN(r) || math.Abs(r) < 0.3:
		return "stable"
	case r > 0:
		return "increasing"
	default:
		return "decreasing"
	}
}
