package report

import (
	"fmt"
	"math"
	"strings"

	"TripReport/src/processor"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 把分析结果转换为gota表格，控制台和工作簿共用

func countsFrame(counts []processor.Count, keyName, valName string) dataframe.DataFrame {
	keys := make([]string, len(counts))
	values := make([]int, len(counts))
	for i, c := range counts {
		keys[i] = c.Key
		values[i] = c.Count
	}
	return dataframe.New(
		series.New(keys, series.String, keyName),
		series.New(values, series.Int, valName),
	)
}

func meansFrame(means []processor.Mean, keyName, valName string) dataframe.DataFrame {
	keys := make([]string, len(means))
	values := make([]float64, len(means))
	trips := make([]int, len(means))
	for i, m := range means {
		keys[i] = m.Key
		values[i] = m.Mean
		trips[i] = m.Trips
		if m.Trips == 0 {
			values[i] = nan()
		}
	}
	return dataframe.New(
		series.New(keys, series.String, keyName),
		series.New(values, series.Float, valName),
		series.New(trips, series.Int, "Trips"),
	)
}

// contingencyFrame 第一列为起点，其余每列为一种支付方式
func contingencyFrame(table *processor.Contingency, rowName string, limit int) dataframe.DataFrame {
	rows := table.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	cols := []series.Series{series.New(rows, series.String, rowName)}
	for m, method := range table.Methods {
		values := make([]int, len(rows))
		for r := range rows {
			values[r] = table.Counts[r][m]
		}
		name := method
		if name == rowName {
			name = fmt.Sprintf("%s_%d", method, m)
		}
		cols = append(cols, series.New(values, series.Int, name))
	}
	return dataframe.New(cols...)
}

// formatFrame 空表时不输出gota的维度行
func formatFrame(df dataframe.DataFrame) string {
	if df.Err != nil {
		return fmt.Sprintf("Error: %v", df.Err)
	}
	if df.Nrow() == 0 {
		return "Empty DataFrame"
	}
	return strings.TrimRight(df.String(), "\n")
}

func nan() float64 { return math.NaN() }
