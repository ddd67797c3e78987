package processor

import (
	"fmt"

	"github.com/go-gota/gota/series"
)

// Volume 每天的行程数，按日期升序
type Volume struct {
	ByDate []Count `json:"by_date"`
}

func (p *DataProcessor) AnalyzeVolume() (*Volume, error) {
	if !p.derived {
		return nil, ErrNotCleaned
	}

	// 统一格式的时间前10位即日期
	starts := p.df.Col(p.cols.StartDate).Records()
	dates := make([]string, len(starts))
	for i, s := range starts {
		if len(s) >= 10 {
			dates[i] = s[:10]
		}
	}

	df := p.df.Mutate(series.New(dates, series.String, colDate))
	if df.Err != nil {
		return nil, fmt.Errorf("添加日期列失败: %w", df.Err)
	}

	byDate, err := countBy(df, colDate, false)
	if err != nil {
		return nil, err
	}
	return &Volume{ByDate: byDate}, nil
}
