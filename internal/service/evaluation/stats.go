package evaluation

import (
	"math"
	"sort"
)

// Summary 一个指标在所有单元上的描述统计
type Summary struct {
	Metric string  `json:"metric"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Q50    float64 `json:"q50"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
}

// Describe 计算描述统计：样本标准差（n-1），分位数线性插值。
// 少于两个值时标准差为 0，没有值时只有 Count 有意义。
func Describe(metric string, values []float64) Summary {
	s := Summary{Metric: metric, Count: len(values)}
	if len(values) == 0 {
		return s
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	s.Mean = sum / float64(len(sorted))

	if len(sorted) > 1 {
		var sq float64
		for _, v := range sorted {
			d := v - s.Mean
			sq += d * d
		}
		s.Std = math.Sqrt(sq / float64(len(sorted)-1))
	}

	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Q25 = quantile(sorted, 0.25)
	s.Q50 = quantile(sorted, 0.50)
	s.Q75 = quantile(sorted, 0.75)
	return s
}

// quantile 已排序数据的线性插值分位数
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Aggregate 对每个指标汇总所有单元上已定义的值，顺序与 metrics 一致
func Aggregate(results []*UnitReport, metrics []Metric) []Summary {
	summaries := make([]Summary, 0, len(metrics))
	for _, m := range metrics {
		var values []float64
		for _, r := range results {
			if v, ok := r.Score(m.Name()); ok {
				values = append(values, v)
			}
		}
		summaries = append(summaries, Describe(m.Name(), values))
	}
	return summaries
}
