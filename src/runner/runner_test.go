package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"TripReport/src/config"
	"TripReport/src/metrics"
	"TripReport/src/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tripsCSV = `START_DATE,END_DATE,START,STOP,payment
2024-01-01 08:00,2024-01-01 08:15,Cary,Morrisville,Cash
2024-01-01 08:30,2024-01-01 08:50,Cary,Apex,Card
2024-01-02 17:10,2024-01-02 17:40,Morrisville,Cary,Card
2024-01-03 09:00,,Apex,Cary,Cash
`

type recordingNotifier struct {
	calls []*Result
	err   error
}

func (n *recordingNotifier) Notify(ctx context.Context, res *Result) error {
	n.calls = append(n.calls, res)
	return n.err
}

func newTestRunner(t *testing.T) (*Runner, *config.Config, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()

	input := filepath.Join(dir, "trips.csv")
	require.NoError(t, os.WriteFile(input, []byte(tripsCSV), 0644))

	cfg := &config.Config{
		InputPath:   input,
		OutputDir:   filepath.Join(dir, "output"),
		MetricsFile: filepath.Join(dir, "tripreport.prom"),
	}
	cfg.Chart.WidthInch = 4
	cfg.Chart.HeightInch = 3
	cfg.Chart.Format = "png"

	logger, err := storage.NewLogger(filepath.Join(dir, "app.log"), "debug", false)
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })

	var out bytes.Buffer
	return New(cfg, config.DefaultDataConfig(), logger, metrics.New(), &out), cfg, &out
}

func TestRunProducesReport(t *testing.T) {
	r, cfg, out := newTestRunner(t)
	notifier := &recordingNotifier{err: errors.New("webhook down")}
	r.AddNotifier(notifier)

	assert.Nil(t, r.Latest())

	res, err := r.Run(context.Background(), "")
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, cfg.InputPath, res.Input)
	assert.Equal(t, filepath.Join(cfg.OutputDir, res.RunID), res.OutputDir)
	assert.Equal(t, 4, res.Summary.RowsLoaded)
	assert.Equal(t, 3, res.Summary.RowsKept)
	assert.True(t, res.Summary.Payment.Available)
	assert.Len(t, res.Output.Charts, 10)
	assert.Equal(t, 1, res.Summary.RowsDropped)
	assert.Contains(t, out.String(), "Payment Preferences by Zone:")

	for _, path := range append(res.Output.Charts, res.Output.Workbook, res.Output.SummaryFile, res.Output.CleanData) {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}

	// 推送失败不影响运行结果
	require.Len(t, notifier.calls, 1)
	assert.Same(t, res, notifier.calls[0])
	assert.Same(t, res, r.Latest())

	prom, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `tripreport_report_runs_total{result="success"} 1`)
	assert.Contains(t, string(prom), "tripreport_trips_dropped_total 1")
}

func TestRunEachRunHasOwnDirectory(t *testing.T) {
	r, _, _ := newTestRunner(t)

	first, err := r.Run(context.Background(), "")
	require.NoError(t, err)
	second, err := r.Run(context.Background(), "")
	require.NoError(t, err)

	assert.NotEqual(t, first.OutputDir, second.OutputDir)
	assert.Same(t, second, r.Latest())
}

func TestRunMissingInput(t *testing.T) {
	r, cfg, _ := newTestRunner(t)
	notifier := &recordingNotifier{}
	r.AddNotifier(notifier)

	_, err := r.Run(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Nil(t, r.Latest())
	assert.Empty(t, notifier.calls)

	prom, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `tripreport_report_runs_total{result="failure"} 1`)
}

func TestRunCanceled(t *testing.T) {
	r, _, _ := newTestRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}
