package processor

import "strconv"

// Demand 按小时和星期统计的行程数
type Demand struct {
	ByHour []Count `json:"by_hour"` // 0-23点，没有行程的小时为0
	ByDay  []Count `json:"by_day"`  // 周一到周日
}

// HourKeys 0到23点的键
func HourKeys() []string {
	keys := make([]string, 24)
	for h := range keys {
		keys[h] = strconv.Itoa(h)
	}
	return keys
}

func (p *DataProcessor) AnalyzeDemand() (*Demand, error) {
	if !p.derived {
		return nil, ErrNotCleaned
	}

	byHour, err := countBy(p.df, ColHour, false)
	if err != nil {
		return nil, err
	}
	byDay, err := countBy(p.df, ColDay, false)
	if err != nil {
		return nil, err
	}

	return &Demand{
		ByHour: reindexCounts(byHour, HourKeys()),
		ByDay:  reindexCounts(byDay, Weekdays),
	}, nil
}
