package processor

import "time"

// Summary 一次运行的全部分析结果
type Summary struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
	RowsLoaded  int       `json:"rows_loaded"`
	RowsKept    int       `json:"rows_kept"`
	RowsDropped int       `json:"rows_dropped"`
	TopN        int       `json:"top_n"`

	Demand    *Demand        `json:"demand"`
	Locations *Locations     `json:"locations"`
	Volume    *Volume        `json:"volume"`
	Duration  *DurationStats `json:"duration"`
	Payment   *Payment       `json:"payment"`
}
