package processor

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DurationStats 行程时长统计(分钟)
type DurationStats struct {
	ByHour   []Mean          `json:"by_hour"`   // 只包含有行程的小时
	ByDay    []Mean          `json:"by_day"`    // 周一到周日，没有行程的Trips为0
	TopZones []Mean          `json:"top_zones"` // 平均时长最长的起点
	Summary  DurationSummary `json:"summary"`
}

// DurationSummary 全部行程时长的分布
// 结束早于开始的行程保留原值，只计入Negative
type DurationSummary struct {
	Trips    int     `json:"trips"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	P90      float64 `json:"p90"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Negative int     `json:"negative"`
}

func (p *DataProcessor) AnalyzeDuration() (*DurationStats, error) {
	if !p.derived {
		return nil, ErrNotCleaned
	}

	byHour, err := meanBy(p.df, ColHour, ColDuration, false)
	if err != nil {
		return nil, err
	}
	byDay, err := meanBy(p.df, ColDay, ColDuration, false)
	if err != nil {
		return nil, err
	}
	zones, err := meanBy(p.df, p.cols.Start, ColDuration, true)
	if err != nil {
		return nil, err
	}

	return &DurationStats{
		ByHour:   byHour,
		ByDay:    reindexMeans(byDay, Weekdays),
		TopZones: headMeans(zones, p.cfg.GetTopN()),
		Summary:  summarizeDurations(p.df.Col(ColDuration).Float()),
	}, nil
}

func summarizeDurations(values []float64) DurationSummary {
	s := DurationSummary{Trips: len(values)}
	if len(values) == 0 {
		return s
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	for _, v := range sorted {
		if v < 0 {
			s.Negative++
		}
	}
	s.Mean = stat.Mean(sorted, nil)
	s.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	s.P90 = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	return s
}
