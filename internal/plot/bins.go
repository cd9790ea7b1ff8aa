package plot

import (
	"fmt"
	"math"

	"github.com/wwwzy/EDAgent/internal/dataset"
)

const (
	minBins = 5
	maxBins = 50
)

// histogram 用 Sturges 规则分箱，返回区间标签和每箱计数。
func histogram(values []float64) ([]string, []int) {
	if len(values) == 0 {
		return nil, nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return []string{fmt.Sprintf("%.4g", lo)}, []int{len(values)}
	}

	n := int(math.Ceil(math.Log2(float64(len(values))))) + 1
	if n < minBins {
		n = minBins
	}
	if n > maxBins {
		n = maxBins
	}
	width := (hi - lo) / float64(n)
	labels := make([]string, n)
	counts := make([]int, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("%.4g-%.4g", lo+float64(i)*width, lo+float64(i+1)*width)
	}
	for _, v := range values {
		i := int((v - lo) / width)
		if i >= n {
			i = n - 1
		}
		counts[i]++
	}
	return labels, counts
}

// fiveNumber 返回 min/Q1/median/Q3/max。
func fiveNumber(values []float64) []float64 {
	if len(values) == 0 {
		return []float64{0, 0, 0, 0, 0}
	}
	s := dataset.Describe(values)
	return []float64{s.Min, s.Q25, s.Median, s.Q75, s.Max}
}
