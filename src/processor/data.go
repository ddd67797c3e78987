// data.go
package processor

import (
	"errors"
	"fmt"
	"time"

	"TripReport/src/config"

	"github.com/go-gota/gota/dataframe"
)

// 派生列名
const (
	ColDay      = "Day"
	ColHour     = "Hour"
	ColMonth    = "Month"
	ColDuration = "Trip_Duration"
	colDate     = "Date"
)

// NoPaymentNotice 数据集中没有支付方式列时的提示
const NoPaymentNotice = "No payment column found in the dataset."

var (
	ErrMissingColumn = errors.New("缺少必需的列")
	ErrEmptyDataset  = errors.New("数据集为空")
	ErrNotCleaned    = errors.New("数据尚未清洗")
)

// Weekdays 固定的星期顺序
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

type DataProcessor struct {
	df   dataframe.DataFrame
	cfg  *config.DataConfig
	cols config.Columns

	rowsLoaded int
	cleaned    bool
	derived    bool
}

// NewDataProcessor 包装已加载的行程表
func NewDataProcessor(df dataframe.DataFrame, cfg *config.DataConfig) (*DataProcessor, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("数据加载失败: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return nil, ErrEmptyDataset
	}
	if cfg == nil {
		cfg = config.DefaultDataConfig()
	}
	return &DataProcessor{
		df:         df,
		cfg:        cfg,
		cols:       cfg.GetColumns(),
		rowsLoaded: df.Nrow(),
	}, nil
}

// Frame 返回当前的数据表
func (p *DataProcessor) Frame() dataframe.DataFrame {
	return p.df
}

func (p *DataProcessor) RowsLoaded() int { return p.rowsLoaded }
func (p *DataProcessor) RowsKept() int   { return p.df.Nrow() }

// Prepare 依次执行清洗与派生特征
func (p *DataProcessor) Prepare() error {
	if err := p.CleanData(); err != nil {
		return err
	}
	return p.DeriveFeatures()
}

// Analyze 运行全部分析，返回汇总结果
func (p *DataProcessor) Analyze() (*Summary, error) {
	if !p.derived {
		return nil, ErrNotCleaned
	}

	summary := &Summary{
		GeneratedAt: time.Now(),
		RowsLoaded:  p.rowsLoaded,
		RowsKept:    p.df.Nrow(),
		RowsDropped: p.rowsLoaded - p.df.Nrow(),
		TopN:        p.cfg.GetTopN(),
	}

	var err error
	if summary.Demand, err = p.AnalyzeDemand(); err != nil {
		return nil, fmt.Errorf("需求分析失败: %w", err)
	}
	if summary.Locations, err = p.AnalyzeLocations(); err != nil {
		return nil, fmt.Errorf("地点分析失败: %w", err)
	}
	if summary.Volume, err = p.AnalyzeVolume(); err != nil {
		return nil, fmt.Errorf("行程量分析失败: %w", err)
	}
	if summary.Duration, err = p.AnalyzeDuration(); err != nil {
		return nil, fmt.Errorf("时长分析失败: %w", err)
	}
	if summary.Payment, err = p.AnalyzePayment(); err != nil {
		return nil, fmt.Errorf("支付方式分析失败: %w", err)
	}
	return summary, nil
}
