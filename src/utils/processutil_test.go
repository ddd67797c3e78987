package utils

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseTimeLayouts(t *testing.T) {
	layouts := []string{"2006-01-02 15:04", "1/2/2006 15:04"}

	tests := []struct {
		value string
		want  time.Time
		ok    bool
	}{
		{"2016-01-01 21:11", time.Date(2016, 1, 1, 21, 11, 0, 0, time.UTC), true},
		{" 1/2/2016 01:25 ", time.Date(2016, 1, 2, 1, 25, 0, 0, time.UTC), true},
		{"42370.5", time.Date(2016, 1, 1, 12, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"Totals", time.Time{}, false},
		{"-3", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseTimeLayouts(tt.value, layouts)
		assert.Equal(t, tt.ok, ok, tt.value)
		assert.True(t, tt.want.Equal(got), "%s: got %v", tt.value, got)
	}
}

func TestExcelSerialToTime(t *testing.T) {
	got, ok := ExcelSerialToTime(1)
	require.True(t, ok)
	assert.Equal(t, time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC), got)

	// 秒级四舍五入
	got, ok = ExcelSerialToTime(45292.25 + 0.4/86400)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), got)

	_, ok = ExcelSerialToTime(0)
	assert.False(t, ok)
	_, ok = ExcelSerialToTime(2958466)
	assert.False(t, ok)
}

func TestSubSeriesTime(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"2024-01-01 08:00:00", "2024-01-01 09:30:00"}, series.String, "start"),
		series.New([]string{"2024-01-01 08:15:30", "2024-01-01 09:20:00"}, series.String, "end"),
	)

	out, err := SubSeriesTime(df, "end", "start", "minutes")
	require.NoError(t, err)
	assert.Equal(t, []float64{15.5, -10}, out.Col("minutes").Float())

	_, err = SubSeriesTime(df, "end", "missing", "minutes")
	assert.Error(t, err)

	bad := dataframe.New(
		series.New([]string{"yesterday"}, series.String, "start"),
		series.New([]string{"2024-01-01 08:15:30"}, series.String, "end"),
	)
	_, err = SubSeriesTime(bad, "end", "start", "minutes")
	assert.Error(t, err)
}

func TestSaveToExcel(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"Cary", "Apex"}, series.String, "START"),
		series.New([]float64{15, 0}, series.Float, "Trip_Duration"),
	)
	df = df.Mutate(series.New([]string{"Card", "NaN"}, series.String, "payment"))

	path := filepath.Join(t.TempDir(), "trips.xlsx")
	require.NoError(t, SaveToExcel(df, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"START", "Trip_Duration", "payment"}, rows[0])
	assert.Equal(t, []string{"Cary", "15", "Card"}, rows[1])
	// 缺失值写为空单元格
	assert.Equal(t, []string{"Apex", "0"}, rows[2])
}

func TestSaveToExcelLargeFrame(t *testing.T) {
	const rows, cols = 5000, 12
	columns := make([]series.Series, cols)
	for c := 0; c < cols; c++ {
		values := make([]string, rows)
		for r := range values {
			values[r] = fmt.Sprintf("r%dc%d", r, c)
		}
		columns[c] = series.New(values, series.String, fmt.Sprintf("col%d", c))
	}
	df := dataframe.New(columns...)

	path := filepath.Join(t.TempDir(), "large.xlsx")
	start := time.Now()
	require.NoError(t, SaveToExcel(df, path))
	// 导出耗时随行数线性增长
	assert.Less(t, time.Since(start), 5*time.Second)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, got, rows+1)
	assert.Equal(t, "col11", got[0][11])
	assert.Equal(t, fmt.Sprintf("r%dc%d", rows-1, cols-1), got[rows][cols-1])
}

func TestFormatTimeKeepsOffset(t *testing.T) {
	zoned := time.Date(2016, 1, 3, 8, 0, 0, 0, time.FixedZone("", 3600))
	assert.Equal(t, "2016-01-03 08:00:00 +01:00", FormatTime(zoned))
	assert.Equal(t, "2016-01-03 07:00:00", FormatTime(zoned.UTC()))

	df := dataframe.New(series.New([]string{FormatTime(zoned), FormatTime(zoned.UTC())}, series.String, "t"))
	for i := 0; i < 2; i++ {
		got, err := ParseTime(df.Col("t").Elem(i))
		require.NoError(t, err)
		assert.True(t, zoned.Equal(got), "row %d: %v", i, got)
	}
}

func TestHasColumn(t *testing.T) {
	df := dataframe.New(series.New([]string{"a"}, series.String, "START"))
	assert.True(t, HasColumn(df, "START"))
	assert.False(t, HasColumn(df, "payment"))
}
