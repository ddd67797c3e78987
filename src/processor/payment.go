package processor

import (
	"fmt"
	"sort"

	"TripReport/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Contingency 起点 x 支付方式的交叉计数表，没有出现的组合为0
type Contingency struct {
	Rows    []string `json:"rows"`
	Methods []string `json:"methods"`
	Counts  [][]int  `json:"counts"`
}

// Count 返回单元格计数，未知行或列为0
func (c *Contingency) Count(row, method string) int {
	r := indexOf(c.Rows, row)
	m := indexOf(c.Methods, method)
	if r < 0 || m < 0 {
		return 0
	}
	return c.Counts[r][m]
}

// Restrict 按给定顺序取部分行，表中不存在的行补0
func (c *Contingency) Restrict(rows []string) *Contingency {
	out := &Contingency{
		Rows:    append([]string(nil), rows...),
		Methods: append([]string(nil), c.Methods...),
		Counts:  make([][]int, len(rows)),
	}
	for i, row := range rows {
		out.Counts[i] = make([]int, len(c.Methods))
		if r := indexOf(c.Rows, row); r >= 0 {
			copy(out.Counts[i], c.Counts[r])
		}
	}
	return out
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}

// Payment 支付方式分析结果
type Payment struct {
	Available bool         `json:"available"`
	Notice    string       `json:"notice,omitempty"`
	Methods   []Count      `json:"methods,omitempty"`   // 各支付方式次数，降序
	ByZone    *Contingency `json:"by_zone,omitempty"`   // 全部起点
	TopZones  *Contingency `json:"top_zones,omitempty"` // 前N个热门起点
}

// AnalyzePayment 支付方式列不存在时跳过，只返回提示
func (p *DataProcessor) AnalyzePayment() (*Payment, error) {
	if !p.derived {
		return nil, ErrNotCleaned
	}
	if !utils.HasColumn(p.df, p.cols.Payment) {
		return &Payment{Notice: NoPaymentNotice}, nil
	}

	// 支付方式缺失的行不参与统计
	df := p.df.Filter(dataframe.F{
		Colname:    p.cols.Payment,
		Comparator: series.CompFunc,
		Comparando: notMissing,
	})
	if df.Err != nil {
		return nil, fmt.Errorf("过滤支付方式失败: %w", df.Err)
	}

	methods, err := countBy(df, p.cols.Payment, true)
	if err != nil {
		return nil, err
	}
	byZone, err := p.crossTab(df)
	if err != nil {
		return nil, err
	}

	pickup, err := countBy(p.df, p.cols.Start, true)
	if err != nil {
		return nil, err
	}
	top := Keys(headCounts(pickup, p.cfg.GetTopN()))

	return &Payment{
		Available: true,
		Methods:   methods,
		ByZone:    byZone,
		TopZones:  byZone.Restrict(top),
	}, nil
}

// crossTab 先按支付方式分组，再统计每组内各起点的次数
func (p *DataProcessor) crossTab(df dataframe.DataFrame) (*Contingency, error) {
	table := &Contingency{Rows: []string{}, Methods: []string{}, Counts: [][]int{}}
	if df.Nrow() == 0 {
		return table, nil
	}

	df = df.Select([]string{p.cols.Start, p.cols.Payment})
	groups := df.GroupBy(p.cols.Payment)
	if groups.Err != nil {
		return nil, fmt.Errorf("按支付方式分组失败: %w", groups.Err)
	}

	perMethod := make(map[string]map[string]int)
	rowSet := make(map[string]struct{})
	for _, group := range groups.GetGroups() {
		method := group.Col(p.cols.Payment).Elem(0).String()
		counts, err := countBy(group, p.cols.Start, false)
		if err != nil {
			return nil, err
		}
		cells := make(map[string]int, len(counts))
		for _, c := range counts {
			cells[c.Key] = c.Count
			rowSet[c.Key] = struct{}{}
		}
		perMethod[method] = cells
		table.Methods = append(table.Methods, method)
	}

	for row := range rowSet {
		table.Rows = append(table.Rows, row)
	}
	sort.Strings(table.Rows)
	sort.Strings(table.Methods)

	table.Counts = make([][]int, len(table.Rows))
	for r, row := range table.Rows {
		table.Counts[r] = make([]int, len(table.Methods))
		for m, method := range table.Methods {
			table.Counts[r][m] = perMethod[method][row]
		}
	}
	return table, nil
}
