package processor

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
)

// Count 分组计数
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Mean 分组均值，Trips为0表示该组没有数据
type Mean struct {
	Key   string  `json:"key"`
	Mean  float64 `json:"mean"`
	Trips int     `json:"trips"`
}

// aggregateBy 按key列分组，对val列做聚合
// 结果先按key升序，desc为true时再按第一个聚合值稳定降序
func aggregateBy(df dataframe.DataFrame, key, val string, typs []dataframe.AggregationType, desc bool) (dataframe.DataFrame, error) {
	cols := []string{key}
	if val != key {
		cols = append(cols, val)
	}
	df = df.Select(cols)
	if df.Err != nil {
		return df, df.Err
	}

	// 空分组时Aggregation会panic
	if df.Nrow() == 0 {
		return df, nil
	}

	groups := df.GroupBy(key)
	if groups.Err != nil {
		return df, fmt.Errorf("按%s分组失败: %w", key, groups.Err)
	}

	vals := make([]string, len(typs))
	for i := range typs {
		vals[i] = val
	}
	agg := groups.Aggregation(typs, vals)
	if agg.Err != nil {
		return agg, fmt.Errorf("按%s聚合失败: %w", key, agg.Err)
	}

	agg = agg.Arrange(dataframe.Sort(key))
	if desc {
		agg = agg.Arrange(dataframe.RevSort(aggName(val, typs[0])))
	}
	return agg, agg.Err
}

func aggName(col string, typ dataframe.AggregationType) string {
	return fmt.Sprintf("%s_%s", col, typ)
}

// countBy 统计key列各取值出现的次数
func countBy(df dataframe.DataFrame, key string, desc bool) ([]Count, error) {
	agg, err := aggregateBy(df, key, key, []dataframe.AggregationType{dataframe.Aggregation_COUNT}, desc)
	if err != nil {
		return nil, err
	}

	counts := make([]Count, 0, agg.Nrow())
	if agg.Nrow() == 0 {
		return counts, nil
	}

	keys := agg.Col(key).Records()
	values := agg.Col(aggName(key, dataframe.Aggregation_COUNT)).Float()
	for i := range keys {
		counts = append(counts, Count{Key: keys[i], Count: int(values[i])})
	}
	return counts, nil
}

// meanBy 计算key列每组val列的均值
func meanBy(df dataframe.DataFrame, key, val string, desc bool) ([]Mean, error) {
	typs := []dataframe.AggregationType{dataframe.Aggregation_MEAN, dataframe.Aggregation_COUNT}
	agg, err := aggregateBy(df, key, val, typs, desc)
	if err != nil {
		return nil, err
	}

	means := make([]Mean, 0, agg.Nrow())
	if agg.Nrow() == 0 {
		return means, nil
	}

	keys := agg.Col(key).Records()
	avg := agg.Col(aggName(val, dataframe.Aggregation_MEAN)).Float()
	trips := agg.Col(aggName(val, dataframe.Aggregation_COUNT)).Float()
	for i := range keys {
		m := Mean{Key: keys[i], Mean: avg[i], Trips: int(trips[i])}
		if math.IsNaN(m.Mean) {
			m.Mean = 0
		}
		means = append(means, m)
	}
	return means, nil
}

// reindexCounts 按给定顺序重排，缺少的键补0
func reindexCounts(counts []Count, keys []string) []Count {
	index := make(map[string]int, len(counts))
	for _, c := range counts {
		index[c.Key] = c.Count
	}
	out := make([]Count, len(keys))
	for i, k := range keys {
		out[i] = Count{Key: k, Count: index[k]}
	}
	return out
}

func reindexMeans(means []Mean, keys []string) []Mean {
	index := make(map[string]Mean, len(means))
	for _, m := range means {
		index[m.Key] = m
	}
	out := make([]Mean, len(keys))
	for i, k := range keys {
		m, ok := index[k]
		if !ok {
			m = Mean{Key: k}
		}
		out[i] = m
	}
	return out
}

func headCounts(counts []Count, n int) []Count {
	if n > 0 && len(counts) > n {
		return counts[:n]
	}
	return counts
}

func headMeans(means []Mean, n int) []Mean {
	if n > 0 && len(means) > n {
		return means[:n]
	}
	return means
}

// Keys 返回计数结果的键
func Keys(counts []Count) []string {
	keys := make([]string, len(counts))
	for i, c := range counts {
		keys[i] = c.Key
	}
	return keys
}
