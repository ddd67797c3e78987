package processor

// Locations 最常见的起点和终点
type Locations struct {
	TopPickup  []Count `json:"top_pickup"`
	TopDropoff []Count `json:"top_dropoff"`
}

// AnalyzeLocations 按出现次数降序取前N个起点/终点，次数相同时按名称排序
func (p *DataProcessor) AnalyzeLocations() (*Locations, error) {
	if !p.derived {
		return nil, ErrNotCleaned
	}

	n := p.cfg.GetTopN()
	pickup, err := countBy(p.df, p.cols.Start, true)
	if err != nil {
		return nil, err
	}
	dropoff, err := countBy(p.df, p.cols.Stop, true)
	if err != nil {
		return nil, err
	}

	return &Locations{
		TopPickup:  headCounts(pickup, n),
		TopDropoff: headCounts(dropoff, n),
	}, nil
}
