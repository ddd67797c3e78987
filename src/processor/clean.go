package processor

import (
	"fmt"
	"strings"

	"TripReport/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// notMissing 用于过滤缺失值
var notMissing = func(el series.Element) bool {
	return !el.IsNA() && strings.TrimSpace(el.String()) != ""
}

// CleanData 解析两列时间并删除缺少起点、终点或时间的行
// 无法解析的时间记为缺失值，不会中断处理
func (p *DataProcessor) CleanData() error {
	required := []string{p.cols.Start, p.cols.Stop, p.cols.StartDate, p.cols.EndDate}
	for _, name := range required {
		if !utils.HasColumn(p.df, name) {
			return fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	df := p.df
	for _, name := range []string{p.cols.StartDate, p.cols.EndDate} {
		df = df.Mutate(normalizeTimes(df.Col(name), p.cfg.DateLayouts))
		if df.Err != nil {
			return fmt.Errorf("转换时间列%s失败: %w", name, df.Err)
		}
	}

	filters := make([]dataframe.F, 0, len(required))
	for _, name := range required {
		filters = append(filters, dataframe.F{
			Colname:    name,
			Comparator: series.CompFunc,
			Comparando: notMissing,
		})
	}
	df = df.FilterAggregation(dataframe.And, filters...)
	if df.Err != nil {
		return fmt.Errorf("过滤缺失值失败: %w", df.Err)
	}

	p.df = df
	p.cleaned = true
	return nil
}

// normalizeTimes 用 utils.FormatTime 统一时间列格式，解析失败的记为NaN
// 带偏移的时间保留偏移，时长按绝对时刻计算
func normalizeTimes(s series.Series, layouts []string) series.Series {
	values := make([]string, s.Len())
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		values[i] = "NaN"
		if el.IsNA() {
			continue
		}
		if t, ok := utils.ParseTimeLayouts(el.String(), layouts); ok {
			values[i] = utils.FormatTime(t)
		}
	}
	return series.New(values, series.String, s.Name)
}
