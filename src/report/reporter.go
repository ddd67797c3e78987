package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"TripReport/src/processor"
)

const (
	WorkbookName  = "report.xlsx"
	SummaryName   = "summary.json"
	CleanDataName = "trips_clean.xlsx" // 清洗并派生特征后的行程明细
)

// Reporter 输出控制台表格、图表、工作簿和JSON汇总
type Reporter struct {
	Out      io.Writer // 为nil时不输出控制台表格
	Renderer Renderer
	Dir      string // 工作簿和JSON的输出目录
}

// Output 一次报表的产物
type Output struct {
	Charts      []string `json:"charts"`
	Workbook    string   `json:"workbook"`
	SummaryFile string   `json:"summary_file"`
	CleanData   string   `json:"clean_data,omitempty"`
}

func (r *Reporter) Report(s *processor.Summary) (*Output, error) {
	if r.Out != nil {
		if err := PrintSummary(r.Out, s); err != nil {
			return nil, fmt.Errorf("输出控制台表格失败: %w", err)
		}
	}

	charts, err := BuildCharts(s)
	if err != nil {
		return nil, err
	}

	out := &Output{}
	for _, c := range charts {
		path, err := r.Renderer.Render(c)
		if err != nil {
			return nil, err
		}
		out.Charts = append(out.Charts, path)
	}

	out.Workbook = filepath.Join(r.Dir, WorkbookName)
	if err := WriteWorkbook(out.Workbook, s, out.Charts); err != nil {
		return nil, fmt.Errorf("写入工作簿失败: %w", err)
	}

	out.SummaryFile = filepath.Join(r.Dir, SummaryName)
	if err := WriteSummaryJSON(out.SummaryFile, s); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteSummaryJSON 把汇总结果写为JSON
func WriteSummaryJSON(path string, s *processor.Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化汇总失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入%s失败: %w", path, err)
	}
	return nil
}
