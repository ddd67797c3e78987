package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// 清洗后时间列统一使用的格式，带时区偏移的时间保留偏移
const (
	TimeLayout      = "2006-01-02 15:04:05"
	ZonedTimeLayout = "2006-01-02 15:04:05 -07:00"
)

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// FormatTime 偏移为0时不写时区
func FormatTime(t time.Time) string {
	if _, offset := t.Zone(); offset != 0 {
		return t.Format(ZonedTimeLayout)
	}
	return t.Format(TimeLayout)
}

// ParseTime 解析FormatTime输出的时间元素，缺失值返回零值时间
func ParseTime(s series.Element) (time.Time, error) {
	if s.IsNA() || s.String() == "" {
		return time.Time{}, nil
	}
	value := s.String()
	if len(value) > len(TimeLayout) {
		return time.Parse(ZonedTimeLayout, value)
	}
	return time.Parse(TimeLayout, value)
}

// ParseTimeLayouts 依次尝试多种时间格式，全部失败时尝试按Excel序列号解析
func ParseTimeLayouts(value string, layouts []string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	// xlsx单元格原始值为序列号
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		return ExcelSerialToTime(serial)
	}
	return time.Time{}, false
}

// ExcelSerialToTime excel时间序列号转time.Time
// 以1899-12-30为基准，已包含1900年闰年错误的修正
func ExcelSerialToTime(serial float64) (time.Time, bool) {
	// 序列号1对应1900-01-01，小于等于0或过大视为无效
	if serial <= 0 || serial > 2958465 {
		return time.Time{}, false
	}

	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	days := int(serial)
	fraction := serial - float64(days)

	result := base.AddDate(0, 0, days).
		Add(time.Duration(86400 * fraction * float64(time.Second)))

	return result.Round(time.Second), true
}

// SubSeriesTime 计算 colName1 - colName2 的时间差(分钟)，结果写入 colName3
func SubSeriesTime(df dataframe.DataFrame, colName1, colName2, colName3 string) (dataframe.DataFrame, error) {

	// 获取两列的所有元素
	col1 := df.Col(colName1)
	col2 := df.Col(colName2)
	if col1.Err != nil || col2.Err != nil {
		return df, fmt.Errorf("找不到时间列 %s/%s", colName1, colName2)
	}

	// 预分配切片容量
	durations := make([]float64, 0, df.Nrow())

	// 遍历每一行计算时间差
	for i := 0; i < df.Nrow(); i++ {
		endTime, err := ParseTime(col1.Elem(i))
		if err != nil {
			return df, fmt.Errorf("failed to parse end time at row %d: %w", i, err)
		}

		startTime, err := ParseTime(col2.Elem(i))
		if err != nil {
			return df, fmt.Errorf("failed to parse start time at row %d: %w", i, err)
		}

		duration := endTime.Sub(startTime).Seconds() / 60
		durations = append(durations, duration)
	}

	// 创建时间差列并添加到DataFrame
	durationCol := series.New(durations, series.Float, colName3)

	out := df.Mutate(durationCol)
	if out.Err != nil {
		return df, out.Err
	}
	return out, nil
}

// WriteSheet 把DataFrame流式写入工作簿的指定工作表(第一行为列名)
// 写入后该工作表不能再用SetCellValue修改
func WriteSheet(f *excelize.File, sheetName string, df dataframe.DataFrame) error {
	if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("创建工作表%s失败: %w", sheetName, err)
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("创建工作表%s失败: %w", sheetName, err)
	}

	// 写入列名
	colNames := df.Names()
	header := make([]interface{}, len(colNames))
	cols := make([]series.Series, len(colNames))
	for i, name := range colNames {
		header[i] = name
		cols[i] = df.Col(name) // Col每次都会复制整列，只取一次
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	// 写入数据，缺失值为nil，留空
	row := make([]interface{}, len(cols))
	for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
		for colIdx, col := range cols {
			row[colIdx] = col.Val(rowIdx)
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// SaveToExcel 将单个DataFrame保存为xlsx文件
func SaveToExcel(df dataframe.DataFrame, filePath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sheet1"
	if err := WriteSheet(f, sheetName, df); err != nil {
		return err
	}

	// 保存文件
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}
