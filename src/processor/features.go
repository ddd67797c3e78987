package processor

import (
	"fmt"

	"TripReport/src/utils"

	"github.com/go-gota/gota/series"
)

// DeriveFeatures 由起止时间派生星期、小时、月份和行程时长(分钟)
func (p *DataProcessor) DeriveFeatures() error {
	if !p.cleaned {
		return ErrNotCleaned
	}

	starts := p.df.Col(p.cols.StartDate)
	n := p.df.Nrow()
	days := make([]string, n)
	hours := make([]int, n)
	months := make([]string, n)

	for i := 0; i < n; i++ {
		t, err := utils.ParseTime(starts.Elem(i))
		if err != nil {
			return fmt.Errorf("第%d行开始时间无效: %w", i, err)
		}
		days[i] = t.Weekday().String()
		hours[i] = t.Hour()
		months[i] = t.Month().String()
	}

	df := p.df.
		Mutate(series.New(days, series.String, ColDay)).
		Mutate(series.New(hours, series.Int, ColHour)).
		Mutate(series.New(months, series.String, ColMonth))
	if df.Err != nil {
		return fmt.Errorf("添加派生列失败: %w", df.Err)
	}

	df, err := utils.SubSeriesTime(df, p.cols.EndDate, p.cols.StartDate, ColDuration)
	if err != nil {
		return fmt.Errorf("计算行程时长失败: %w", err)
	}

	p.df = df
	p.derived = true
	return nil
}
