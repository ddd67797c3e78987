package report

import (
	"fmt"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"TripReport/src/processor"
	"TripReport/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	chartsSheet  = "Charts"
	chartRowStep = 32 // 每张图占用的行数
)

// WriteWorkbook 写入汇总工作簿：汇总页、每张表一个工作表、图表页
// charts 为图表文件路径，只嵌入png/jpg
func WriteWorkbook(path string, s *processor.Summary, charts []string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if err := writeSummarySheet(f, s); err != nil {
		return err
	}

	for _, t := range summaryTables(s) {
		if err := utils.WriteSheet(f, t.sheet, t.df); err != nil {
			return err
		}
	}

	if err := addChartImages(f, charts); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

type sheetTable struct {
	sheet string
	df    dataframe.DataFrame
}

func summaryTables(s *processor.Summary) []sheetTable {
	tables := []sheetTable{
		{"Demand by Hour", countsFrame(s.Demand.ByHour, processor.ColHour, "count")},
		{"Demand by Day", countsFrame(s.Demand.ByDay, processor.ColDay, "count")},
		{"Top Pickup", countsFrame(s.Locations.TopPickup, "START", "count")},
		{"Top Dropoff", countsFrame(s.Locations.TopDropoff, "STOP", "count")},
		{"Volume", countsFrame(s.Volume.ByDate, "Date", "count")},
		{"Duration by Hour", meansFrame(s.Duration.ByHour, processor.ColHour, processor.ColDuration)},
		{"Duration by Day", meansFrame(s.Duration.ByDay, processor.ColDay, processor.ColDuration)},
		{"Duration by Zone", meansFrame(s.Duration.TopZones, "START", processor.ColDuration)},
	}
	if s.Payment != nil && s.Payment.Available {
		tables = append(tables,
			sheetTable{"Payment Methods", countsFrame(s.Payment.Methods, "payment", "count")},
			sheetTable{"Payment by Zone", contingencyFrame(s.Payment.ByZone, "START", 0)},
			sheetTable{"Payment Top Zones", contingencyFrame(s.Payment.TopZones, "START", 0)},
		)
	}
	return tables
}

func writeSummarySheet(f *excelize.File, s *processor.Summary) error {
	d := s.Duration.Summary
	rows := [][]interface{}{
		{"run_id", s.RunID},
		{"source", s.Source},
		{"generated_at", s.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"rows_loaded", s.RowsLoaded},
		{"rows_kept", s.RowsKept},
		{"rows_dropped", s.RowsDropped},
		{"duration_trips", d.Trips},
		{"duration_mean", d.Mean},
		{"duration_median", d.Median},
		{"duration_p90", d.P90},
		{"duration_min", d.Min},
		{"duration_max", d.Max},
		{"duration_negative", d.Negative},
	}
	if s.Payment != nil && !s.Payment.Available {
		rows = append(rows, []interface{}{"payment", s.Payment.Notice})
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func addChartImages(f *excelize.File, charts []string) error {
	var images []string
	for _, path := range charts {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".png", ".jpg", ".jpeg":
			images = append(images, path)
		}
	}
	if len(images) == 0 {
		return nil
	}

	if _, err := f.NewSheet(chartsSheet); err != nil {
		return err
	}
	for i, path := range images {
		cell, err := excelize.CoordinatesToCellName(1, i*chartRowStep+1)
		if err != nil {
			return err
		}
		if err := f.AddPicture(chartsSheet, cell, path, &excelize.GraphicOptions{
			ScaleX: 0.5,
			ScaleY: 0.5,
		}); err != nil {
			return fmt.Errorf("插入图表%s失败: %w", path, err)
		}
	}
	return nil
}
