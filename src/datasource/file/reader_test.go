package file

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TripReport/src/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

const tripsCSV = `START_DATE,END_DATE,CATEGORY,START,STOP,MILES,PURPOSE
1/1/2016 21:11,1/1/2016 21:17,Business,Fort Pierce,Fort Pierce,5.1,Meal/Entertain
1/2/2016 1:25,1/2/2016 1:37,Business,Fort Pierce,Fort Pierce,5,
`

func defaultOptions() LoadOptions {
	return OptionsFromConfig(config.DefaultDataConfig(), "")
}

func TestReadCSV(t *testing.T) {
	df, err := ReadCSV(strings.NewReader(tripsCSV), defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, []string{"START_DATE", "END_DATE", "CATEGORY", "START", "STOP", "MILES", "PURPOSE"}, df.Names())
	// 数字列也按字符串读取
	assert.Equal(t, "5.1", df.Col("MILES").Elem(0).String())
	assert.True(t, df.Col("PURPOSE").Elem(1).IsNA())
}

func TestReadCSVWithBOM(t *testing.T) {
	data := append([]byte("\xef\xbb\xbf"), []byte(tripsCSV)...)
	df, err := ReadCSV(bytes.NewReader(data), defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "START_DATE", df.Names()[0])
}

func TestReadCSVGBK(t *testing.T) {
	raw := "START_DATE;END_DATE;START;STOP\n2016-01-01 08:00;2016-01-01 08:10;机场;市区\n"
	encoded, err := simplifiedchinese.GBK.NewEncoder().String(raw)
	require.NoError(t, err)

	opts := defaultOptions()
	opts.Encoding = "gbk"
	opts.Delimiter = ';'
	df, err := ReadCSV(strings.NewReader(encoded), opts)
	require.NoError(t, err)
	assert.Equal(t, "机场", df.Col("START").Elem(0).String())
	assert.Equal(t, "市区", df.Col("STOP").Elem(0).String())
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("START,STOP\nA,B,C\n"), defaultOptions())
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("START,STOP\n"), defaultOptions())
	assert.Error(t, err)

	opts := defaultOptions()
	opts.Encoding = "no-such-charset"
	_, err = ReadCSV(strings.NewReader(tripsCSV), opts)
	assert.Error(t, err)
}

func TestLoadDispatch(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "trips.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(tripsCSV), 0644))

	df, err := Load(csvPath, defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, df.Nrow())

	_, err = Load(filepath.Join(dir, "trips.json"), defaultOptions())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(dir, "missing.csv"), defaultOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func writeWorkbook(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Trips"
	_, err := f.NewSheet(sheet)
	require.NoError(t, err)
	require.NoError(t, f.DeleteSheet("Sheet1"))

	rows := [][]interface{}{
		{"Uber trips export"},
		{"START_DATE", "END_DATE", "START", "STOP"},
		{42370.5, 42370.520833333336, "Cary", "Morrisville"},
		{},
		{"2016-01-02 10:00", "2016-01-02 10:30", "Apex", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trips.xlsx")
	writeWorkbook(t, path)

	opts := defaultOptions()
	opts.HeaderRow = 2
	df, err := Load(path, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"START_DATE", "END_DATE", "START", "STOP"}, df.Names())
	require.Equal(t, 2, df.Nrow())
	assert.Equal(t, "42370.5", df.Col("START_DATE").Elem(0).String())
	assert.Equal(t, "Apex", df.Col("START").Elem(1).String())
	assert.True(t, df.Col("STOP").Elem(1).IsNA())

	opts.SheetName = "Trips"
	_, err = ReadXLSX(path, opts)
	require.NoError(t, err)

	opts.SheetName = "Missing"
	_, err = ReadXLSX(path, opts)
	assert.Error(t, err)
}

func TestFindLatestDataset(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "UberDataset_old.csv")
	newer := filepath.Join(dir, "UberDataset_new.xlsx")
	require.NoError(t, os.WriteFile(older, []byte(tripsCSV), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	latest, err := FindLatestDataset(dir, "UberDataset")
	require.NoError(t, err)
	assert.Equal(t, newer, latest.FullPath)

	_, err = FindLatestDataset(dir, "Lyft")
	assert.Error(t, err)

	resolved, err := ResolveInput(dir)
	require.NoError(t, err)
	assert.Equal(t, newer, resolved)

	resolved, err = ResolveInput(older)
	require.NoError(t, err)
	assert.Equal(t, older, resolved)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))

	filePath := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(filePath, nil, 0644))
	assert.Error(t, EnsureDir(filePath))
}

func TestFileMonitor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trips.csv")
	require.NoError(t, os.WriteFile(path, []byte(tripsCSV), 0644))

	monitor, err := NewFileMonitor(path)
	require.NoError(t, err)
	defer monitor.Close()
	monitor.Debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- monitor.Watch(ctx, func(p string) { changed <- p })
	}()

	// 其他文件的变化不触发
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.csv"), []byte("x"), 0644))

	require.NoError(t, os.WriteFile(path, []byte(tripsCSV+"1/3/2016 8:00,1/3/2016 8:10,Business,Cary,Cary,2,\n"), 0644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	select {
	case p := <-changed:
		assert.Equal(t, monitor.Target(), p)
	case <-time.After(3 * time.Second):
		t.Fatal("monitor did not report the change")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
