package dataset

import (
	"math"
	"sort"
	"strconv"
)

var nan = math.NaN()

// Stats 为数值列的描述统计（count、mean、std、min、四分位数、max），std 为样本标准差。
type Stats struct {
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q25    float64
	Median float64
	Q75    float64
	Max    float64
}

// IQR 返回四分位距。
func (s Stats) IQR() float64 { return s.Q75 - s.Q25 }

// ValueCount 为一个取值及其出现次数。
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Describe 返回数值列的描述统计；结果按列缓存。非数值列返回 ok=false。
func (d *Dataset) Describe(column string) (Stats, bool) {
	col, ok := d.Column(column)
	if !ok || col.Type != Numeric {
		return Stats{}, false
	}
	if s, ok := d.stats.Get(column); ok {
		return s, true
	}
	s := Describe(col.Floats())
	d.stats.Add(column, s)
	return s, true
}

// Describe 计算 xs 的描述统计。xs 为空时各项为 NaN。
func Describe(xs []float64) Stats {
	s := Stats{Count: len(xs), Mean: nan, Std: nan, Min: nan, Q25: nan, Median: nan, Q75: nan, Max: nan}
	if len(xs) == 0 {
		return s
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	s.Mean = Mean(xs)
	s.Std = StdDev(xs)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Q25 = quantileSorted(sorted, 0.25)
	s.Median = quantileSorted(sorted, 0.5)
	s.Q75 = quantileSorted(sorted, 0.75)
	return s
}

func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return nan
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev 返回样本标准差（ddof=1），少于 2 个值时为 NaN。
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return nan
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// Skewness 返回经偏差修正的样本偏度，少于 3 个值时为 NaN。
func Skewness(xs []float64) float64 {
	n := float64(len(xs))
	if n < 3 {
		return nan
	}
	m := Mean(xs)
	var m2, m3 float64
	for _, x := range xs {
		d := x - m
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}
	return math.Sqrt(n*(n-1)) / (n - 2) * m3 / math.Pow(m2, 1.5)
}

// Quantile 使用线性插值计算分位数，q 在 [0,1]。
func Quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return nan
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return quantileSorted(sorted, q)
}

func quantileSorted(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// ValueCounts 返回非缺失取值的出现次数，按次数倒序；次数相同按首次出现顺序。结果按列缓存。
func (d *Dataset) ValueCounts(column string) ([]ValueCount, bool) {
	col, ok := d.Column(column)
	if !ok {
		return nil, false
	}
	if vc, ok := d.counts.Get(column); ok {
		return vc, true
	}
	idx := make(map[string]int)
	var out []ValueCount
	for i := range col.raw {
		v, ok := col.Value(i)
		if !ok {
			continue
		}
		if col.Type == Numeric {
			v = FormatFloat(col.numbers[i])
		}
		if j, seen := idx[v]; seen {
			out[j].Count++
			continue
		}
		idx[v] = len(out)
		out = append(out, ValueCount{Value: v, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	d.counts.Add(column, out)
	return out, true
}

// Unique 返回非缺失取值的个数。
func (d *Dataset) Unique(column string) int {
	vc, _ := d.ValueCounts(column)
	return len(vc)
}

// Correlation 返回两列的 Pearson 相关系数，只使用两列同时非缺失的行。
func (d *Dataset) Correlation(a, b string) float64 {
	ca, ok1 := d.Column(a)
	cb, ok2 := d.Column(b)
	if !ok1 || !ok2 || ca.Type != Numeric || cb.Type != Numeric {
		return nan
	}
	var xs, ys []float64
	for i := 0; i < d.rows; i++ {
		x, okx := ca.Float(i)
		y, oky := cb.Float(i)
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	return Pearson(xs, ys)
}

// Pearson 计算相关系数；少于 2 对或任一方差为 0 时为 NaN。
func Pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return nan
	}
	mx, my := Mean(xs), Mean(ys)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return nan
	}
	return sxy / math.Sqrt(sxx*syy)
}

// FormatFloat 以最短形式格式化浮点数，整数值不带小数点。
func FormatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Map 返回可直接 JSON 编码的统计结果，NaN/Inf 记为 nil。
func (s Stats) Map() map[string]any {
	return map[string]any{
		"count": s.Count,
		"mean":  Finite(s.Mean),
		"std":   Finite(s.Std),
		"min":   Finite(s.Min),
		"25%":   Finite(s.Q25),
		"50%":   Finite(s.Median),
		"75%":   Finite(s.Q75),
		"max":   Finite(s.Max),
	}
}

// Finite 把 NaN/Inf 转成 nil，其余值保留 4 位小数。
func Finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return math.Round(f*1e4) / 1e4
}
