package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"TripReport/src/config"
	"TripReport/src/datasource/file"
	"TripReport/src/metrics"
	"TripReport/src/processor"
	"TripReport/src/report"
	"TripReport/src/storage"
	"TripReport/src/utils"

	"github.com/google/uuid"
)

// Notifier 报表生成后的推送(邮件、钉钉等)
type Notifier interface {
	Notify(ctx context.Context, res *Result) error
}

// Result 一次运行的结果
type Result struct {
	RunID     string             `json:"run_id"`
	Input     string             `json:"input"`
	OutputDir string             `json:"output_dir"`
	Summary   *processor.Summary `json:"summary"`
	Output    *report.Output     `json:"output"`
	Elapsed   time.Duration      `json:"elapsed"`
}

// Runner 串联加载、清洗、分析和报表输出，同一时间只运行一次
type Runner struct {
	cfg     *config.Config
	dcfg    *config.DataConfig
	logger  *storage.Logger
	metrics *metrics.Metrics
	out     io.Writer

	notifiers []Notifier

	runMu    sync.Mutex
	latestMu sync.RWMutex
	latest   *Result
}

func New(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger, m *metrics.Metrics, out io.Writer) *Runner {
	return &Runner{
		cfg:     cfg,
		dcfg:    dcfg,
		logger:  logger,
		metrics: m,
		out:     out,
	}
}

// AddNotifier 注册推送，推送失败只记录日志
func (r *Runner) AddNotifier(n Notifier) {
	r.notifiers = append(r.notifiers, n)
}

// Latest 最近一次成功运行的结果
func (r *Runner) Latest() *Result {
	r.latestMu.RLock()
	defer r.latestMu.RUnlock()
	return r.latest
}

// Run 对input生成一次完整报表，输出到 OutputDir/<run id>
func (r *Runner) Run(ctx context.Context, input string) (*Result, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	start := time.Now()
	runID := uuid.NewString()
	log := r.logger.WithFields(map[string]interface{}{"run_id": runID})

	res, err := r.run(ctx, runID, input)
	elapsed := time.Since(start)

	stats := metrics.RunStats{Duration: elapsed, Finished: time.Now()}
	if res != nil {
		res.Elapsed = elapsed
		stats.Loaded = res.Summary.RowsLoaded
		stats.Kept = res.Summary.RowsKept
		stats.Charts = len(res.Output.Charts)
	}
	if r.metrics != nil {
		r.metrics.ObserveRun(stats, err)
		if werr := r.metrics.WriteTextfile(r.cfg.MetricsFile); werr != nil {
			log.Warnf("写入指标文件失败: %v", werr)
		}
	}

	if err != nil {
		log.WithField("input", input).Errorf("报表生成失败: %v", err)
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"input":   res.Input,
		"loaded":  res.Summary.RowsLoaded,
		"kept":    res.Summary.RowsKept,
		"charts":  len(res.Output.Charts),
		"elapsed": elapsed.String(),
	}).Info("报表生成完成")

	r.latestMu.Lock()
	r.latest = res
	r.latestMu.Unlock()

	for _, n := range r.notifiers {
		if err := n.Notify(ctx, res); err != nil {
			log.Errorf("推送报表失败: %v", err)
		}
	}
	return res, nil
}

func (r *Runner) run(ctx context.Context, runID, input string) (*Result, error) {
	if input == "" {
		input = r.cfg.InputPath
	}
	path, err := file.ResolveInput(input)
	if err != nil {
		return nil, err
	}

	df, err := file.Load(path, file.OptionsFromConfig(r.dcfg, r.cfg.SheetName))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := processor.NewDataProcessor(df, r.dcfg)
	if err != nil {
		return nil, err
	}
	if err := p.Prepare(); err != nil {
		return nil, err
	}
	if p.RowsKept() == 0 {
		r.logger.Warning(fmt.Sprintf("%s 清洗后没有可用的行程", path))
	}

	summary, err := p.Analyze()
	if err != nil {
		return nil, err
	}
	summary.RunID = runID
	summary.Source = path
	if !summary.Payment.Available {
		r.logger.Warning(summary.Payment.Notice)
	}

	outDir := filepath.Join(r.cfg.OutputDir, runID)
	if err := file.EnsureDir(outDir); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := ctx.Err(); err != nil {
		os.RemoveAll(outDir)
		return nil, err
	}

	reporter := &report.Reporter{
		Out:      r.out,
		Renderer: report.NewFileRenderer(outDir, r.cfg.Chart.Format, r.cfg.Chart.WidthInch, r.cfg.Chart.HeightInch),
		Dir:      outDir,
	}
	output, err := reporter.Report(summary)
	if err != nil {
		return nil, err
	}

	output.CleanData = filepath.Join(outDir, report.CleanDataName)
	if err := utils.SaveToExcel(p.Frame(), output.CleanData); err != nil {
		return nil, fmt.Errorf("导出清洗后的数据失败: %w", err)
	}

	return &Result{
		RunID:     runID,
		Input:     path,
		OutputDir: outDir,
		Summary:   summary,
		Output:    output,
	}, nil
}
