// Package plot 把分析结果渲染成图表文件。渲染器只返回文件路径，调用方不关心图表内容。
package plot

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Renderer 渲染分析图表并返回生成的文件路径。
type Renderer interface {
	Distribution(column string, values []float64) (string, error)
	Frequency(column string, labels []string, counts []int) (string, error)
	Correlation(columns []string, matrix [][]float64) (string, error)
	Outliers(column string, values []float64, lower, upper float64) (string, error)
	GroupNumeric(column, groupBy string, groups []Group) (string, error)
	GroupCategorical(column, groupBy string, table Crosstab) (string, error)
	TimeSeries(timeColumn, valueColumn string, points []Point) (string, error)
}

// Group 是分组比较中的一组数值。
type Group struct {
	Name   string
	Values []float64
}

// Crosstab 为列联表，Counts[i][j] 对应 Rows[i] 与 Cols[j]。
type Crosstab struct {
	Rows   []string
	Cols   []string
	Counts [][]int
}

// Point 为时间序列上的一个周期；Value 为 NaN 表示该周期没有数值。
type Point struct {
	Label string
	Count int
	Value float64
}

// EChartsRenderer 把图表写成独立的 HTML 文件：<Dir>/<kind>_<column>_<unix>.html。
type EChartsRenderer struct {
	Dir string
	Now func() time.Time
}

func NewEChartsRenderer(dir string) *EChartsRenderer {
	if dir == "" {
		dir = "plots"
	}
	return &EChartsRenderer{Dir: dir, Now: time.Now}
}

// Path 返回某类图表的输出路径。
func (r *EChartsRenderer) Path(kind, column string) string {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	name := kind
	if column != "" {
		name += "_" + sanitize(column)
	}
	return filepath.Join(r.Dir, fmt.Sprintf("%s_%d.html", name, now().Unix()))
}

func (r *EChartsRenderer) Distribution(column string, values []float64) (string, error) {
	labels, counts := histogram(values)
	hist := charts.NewBar()
	hist.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Distribution of " + column, Subtitle: "Histogram"}))
	hist.SetXAxis(labels).AddSeries(column, barData(counts))

	return r.render(r.Path("distribution", column), hist, boxPlot(column, "Boxplot of "+column, []Group{{Name: column, Values: values}}))
}

func (r *EChartsRenderer) Frequency(column string, labels []string, counts []int) (string, error) {
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Frequency of " + column}))
	bar.SetXAxis(labels).AddSeries(column, barData(counts))
	return r.render(r.Path("frequency", column), bar)
}

func (r *EChartsRenderer) Correlation(columns []string, matrix [][]float64) (string, error) {
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Correlation Matrix"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: columns}),
		charts.WithVisualMapOpts(opts.VisualMap{Min: -1, Max: 1}),
	)
	var data []opts.HeatMapData
	for i := range matrix {
		for j := range matrix[i] {
			v := matrix[i][j]
			if math.IsNaN(v) {
				continue
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, math.Round(v*100) / 100}})
		}
	}
	hm.SetXAxis(columns).AddSeries("correlation", data)
	return r.render(r.Path("correlation", ""), hm)
}

func (r *EChartsRenderer) Outliers(column string, values []float64, lower, upper float64) (string, error) {
	sc := charts.NewScatter()
	sc.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title:    "Outliers in " + column,
		Subtitle: fmt.Sprintf("IQR bounds [%.4g, %.4g]", lower, upper),
	}))
	xs := make([]string, len(values))
	var inside, outside []opts.ScatterData
	for i, v := range values {
		xs[i] = fmt.Sprintf("%d", i)
		if v < lower || v > upper {
			inside = append(inside, opts.ScatterData{Value: nil})
			outside = append(outside, opts.ScatterData{Value: v})
		} else {
			inside = append(inside, opts.ScatterData{Value: v})
			outside = append(outside, opts.ScatterData{Value: nil})
		}
	}
	sc.SetXAxis(xs).AddSeries("regular", inside).AddSeries("outlier", outside)

	return r.render(r.Path("outliers", column), boxPlot(column, "Boxplot of "+column, []Group{{Name: column, Values: values}}), sc)
}

func (r *EChartsRenderer) GroupNumeric(column, groupBy string, groups []Group) (string, error) {
	title := fmt.Sprintf("%s by %s", column, groupBy)
	return r.render(r.Path("compare", column+"_by_"+groupBy), boxPlot(column, title, groups))
}

func (r *EChartsRenderer) GroupCategorical(column, groupBy string, table Crosstab) (string, error) {
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s by %s", column, groupBy)}))
	bar.SetXAxis(table.Rows)
	for j, c := range table.Cols {
		col := make([]int, len(table.Rows))
		for i := range table.Rows {
			col[i] = table.Counts[i][j]
		}
		bar.AddSeries(c, barData(col))
	}
	return r.render(r.Path("compare", column+"_by_"+groupBy), bar)
}

func (r *EChartsRenderer) TimeSeries(timeColumn, valueColumn string, points []Point) (string, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Temporal pattern of " + timeColumn}))
	labels := make([]string, len(points))
	counts := make([]opts.LineData, len(points))
	values := make([]opts.LineData, len(points))
	for i, p := range points {
		labels[i] = p.Label
		counts[i] = opts.LineData{Value: p.Count}
		if math.IsNaN(p.Value) {
			values[i] = opts.LineData{Value: nil}
		} else {
			values[i] = opts.LineData{Value: p.Value}
		}
	}
	line.SetXAxis(labels).AddSeries("count", counts)
	if valueColumn != "" {
		line.AddSeries("mean "+valueColumn, values)
	}
	return r.render(r.Path("temporal", timeColumn), line)
}

func (r *EChartsRenderer) render(path string, cs ...components.Charter) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create plots dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create plot file: %w", err)
	}
	defer f.Close()

	page := components.NewPage()
	page.AddCharts(cs...)
	if err := page.Render(f); err != nil {
		return "", fmt.Errorf("render plot: %w", err)
	}
	return path, nil
}

func boxPlot(series, title string, groups []Group) *charts.BoxPlot {
	box := charts.NewBoxPlot()
	box.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title}))
	names := make([]string, len(groups))
	data := make([]opts.BoxPlotData, len(groups))
	for i, g := range groups {
		names[i] = g.Name
		data[i] = opts.BoxPlotData{Value: fiveNumber(g.Values)}
	}
	box.SetXAxis(names).AddSeries(series, data)
	return box
}

func barData(counts []int) []opts.BarData {
	out := make([]opts.BarData, len(counts))
	for i, c := range counts {
		out[i] = opts.BarData{Value: c}
	}
	return out
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, s)
}
