package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"TripReport/src/config"
	"TripReport/src/processor"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var withPayment = [][]string{
	{"START_DATE", "END_DATE", "START", "STOP", "payment"},
	{"2024-01-01 08:00", "2024-01-01 08:15", "Cary", "Morrisville", "Cash"},
	{"2024-01-01 08:30", "2024-01-01 08:50", "Cary", "Apex", "Card"},
	{"2024-01-02 17:10", "2024-01-02 17:40", "Morrisville", "Cary", "Card"},
	{"bad", "2024-01-02 17:40", "Nowhere", "Cary", "Card"},
}

func buildSummary(t *testing.T, records [][]string) *processor.Summary {
	t.Helper()
	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(config.DefaultNaNValues),
	)
	p, err := processor.NewDataProcessor(df, config.DefaultDataConfig())
	require.NoError(t, err)
	require.NoError(t, p.Prepare())
	s, err := p.Analyze()
	require.NoError(t, err)
	s.RunID = "test-run"
	s.Source = "trips.csv"
	return s
}

func withoutPayment() [][]string {
	out := make([][]string, len(withPayment))
	for i, row := range withPayment {
		out[i] = row[:4]
	}
	return out
}

func TestPrintSummaryWithPayment(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, buildSummary(t, withPayment)))
	out := buf.String()

	assert.Contains(t, out, "Trips loaded: 4, kept: 3, dropped: 1")
	assert.Contains(t, out, "Top 10 Pickup Locations:")
	assert.Contains(t, out, "\nTop 10 Drop-off Locations:")
	assert.Contains(t, out, "\nZones with Longest Average Trip Durations:")
	assert.Contains(t, out, "\nPayment Preferences by Zone:")
	assert.Contains(t, out, "Cary")
	assert.NotContains(t, out, "Nowhere")
	assert.NotContains(t, out, processor.NoPaymentNotice)

	// 热门起点表在终点表之前
	assert.Less(t, strings.Index(out, "Pickup"), strings.Index(out, "Drop-off"))
}

func TestPrintSummaryWithoutPayment(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, buildSummary(t, withoutPayment())))
	out := buf.String()

	assert.Contains(t, out, processor.NoPaymentNotice)
	assert.NotContains(t, out, "Payment Preferences by Zone:")
}

func chartNames(charts []Chart) []string {
	names := make([]string, len(charts))
	for i, c := range charts {
		names[i] = c.Spec.Name
	}
	return names
}

func TestBuildCharts(t *testing.T) {
	charts, err := BuildCharts(buildSummary(t, withPayment))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"demand_hour", "demand_day", "top_pickup", "top_dropoff", "volume",
		"duration_hour", "duration_day", "duration_zone", "payment_methods", "payment_zones",
	}, chartNames(charts))
	assert.Equal(t, "Peak Demand Hours", charts[0].Plot.Title.Text)
	assert.Equal(t, "Number of Rides", charts[0].Plot.Y.Label.Text)

	charts, err = BuildCharts(buildSummary(t, withoutPayment()))
	require.NoError(t, err)
	assert.Len(t, charts, 8)
	assert.NotContains(t, chartNames(charts), "payment_methods")
	assert.NotContains(t, chartNames(charts), "payment_zones")
}

func TestBuildChartsEmptySummary(t *testing.T) {
	s := buildSummary(t, [][]string{
		{"START_DATE", "END_DATE", "START", "STOP"},
		{"bad", "2024-01-01 08:15", "A", "B"},
	})
	charts, err := BuildCharts(s)
	require.NoError(t, err)
	assert.Len(t, charts, 8)
}

type recordingRenderer struct {
	names []string
}

func (r *recordingRenderer) Render(c Chart) (string, error) {
	r.names = append(r.names, c.Spec.Name)
	return c.Spec.Name + ".svg", nil
}

func TestReportWithFileRenderer(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	r := &Reporter{
		Out:      &console,
		Renderer: NewFileRenderer(dir, "PNG", 4, 3),
		Dir:      dir,
	}

	out, err := r.Report(buildSummary(t, withPayment))
	require.NoError(t, err)
	require.Len(t, out.Charts, 10)
	for _, path := range out.Charts {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
		assert.Equal(t, ".png", filepath.Ext(path))
	}
	assert.NotEmpty(t, console.String())

	f, err := excelize.OpenFile(out.Workbook)
	require.NoError(t, err)
	defer f.Close()
	sheets := f.GetSheetList()
	assert.Equal(t, "Summary", sheets[0])
	assert.Contains(t, sheets, "Top Pickup")
	assert.Contains(t, sheets, "Payment by Zone")
	assert.Contains(t, sheets, "Charts")

	value, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "test-run", value)

	value, err = f.GetCellValue("Top Pickup", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Cary", value)

	pics, err := f.GetPictures("Charts", "A1")
	require.NoError(t, err)
	assert.Len(t, pics, 1)

	data, err := os.ReadFile(out.SummaryFile)
	require.NoError(t, err)
	var decoded processor.Summary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "test-run", decoded.RunID)
	assert.Equal(t, 3, decoded.RowsKept)
	assert.Equal(t, []string{"Card", "Cash"}, decoded.Payment.ByZone.Methods)
}

func TestReportWithoutImages(t *testing.T) {
	dir := t.TempDir()
	renderer := &recordingRenderer{}
	r := &Reporter{Renderer: renderer, Dir: dir}

	out, err := r.Report(buildSummary(t, withoutPayment()))
	require.NoError(t, err)
	assert.Len(t, renderer.names, 8)
	assert.Equal(t, "demand_hour.svg", out.Charts[0])

	f, err := excelize.OpenFile(out.Workbook)
	require.NoError(t, err)
	defer f.Close()
	assert.NotContains(t, f.GetSheetList(), "Charts")
	assert.NotContains(t, f.GetSheetList(), "Payment Methods")

	value, err := f.GetCellValue("Summary", "B14")
	require.NoError(t, err)
	assert.Equal(t, processor.NoPaymentNotice, value)
}
