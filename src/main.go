package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron"

	"TripReport/src/config"
	"TripReport/src/datapush"
	"TripReport/src/datasource/email"
	"TripReport/src/datasource/file"
	"TripReport/src/metrics"
	"TripReport/src/runner"
	"TripReport/src/storage"
	"TripReport/src/web"
)

const (
	modeOnce  = "once"
	modeServe = "serve"
	modeEmail = "email"

	configFile     = "config.json"
	dataConfigFile = "dataconfig.yaml"

	rotateSpec = "@every 1m" // 检查日志大小
)

type options struct {
	configDir string
	input     string
	mode      string
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("tripreport", flag.ContinueOnError)
	opts := &options{}
	fs.StringVar(&opts.configDir, "config", "./config", "配置文件目录")
	fs.StringVar(&opts.input, "input", "", "行程数据文件或目录，覆盖配置中的input_path")
	fs.StringVar(&opts.mode, "mode", modeOnce, "运行模式: once|serve|email")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch opts.mode {
	case modeOnce, modeServe, modeEmail:
	default:
		return nil, fmt.Errorf("未知的运行模式: %s", opts.mode)
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	cfg, dcfg, err := config.LoadConfig(opts.configDir, configFile, dataConfigFile)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if opts.input != "" {
		cfg.InputPath = opts.input
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName, cfg.LogLevel, cfg.LogConsole)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	m := metrics.New()
	r := runner.New(cfg, dcfg, logger, m, os.Stdout)
	addNotifiers(r, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch opts.mode {
	case modeOnce:
		_, err = r.Run(ctx, "")
	case modeServe:
		err = serve(ctx, cfg, r, logger, m)
	case modeEmail:
		err = watchMailbox(ctx, cfg, r, logger, m)
	}

	if err != nil {
		logger.Error(err.Error())
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

func addNotifiers(r *runner.Runner, cfg *config.Config, logger *storage.Logger) {
	if cfg.SendEmail.Enabled {
		r.AddNotifier(email.NewReportSender(
			cfg.SendEmail.Server,
			cfg.SendEmail.Username,
			cfg.SendEmail.Password,
			cfg.SendEmail.To,
			cfg.SendEmail.Subject,
		))
		logger.Info(fmt.Sprintf("报表邮件将发送给: %s", strings.Join(cfg.SendEmail.To, ",")))
	}
	if cfg.DingTalk.Webhook != "" {
		r.AddNotifier(datapush.NewDingTalkPusher(cfg.DingTalk.Webhook, cfg.DingTalk.Secret))
		logger.Info("已启用钉钉推送")
	}
}

// trigger 合并重复的重跑请求，同一时间最多排队一次
type trigger struct {
	ch chan string
}

func newTrigger() *trigger {
	return &trigger{ch: make(chan string, 1)}
}

func (t *trigger) fire(reason string) bool {
	select {
	case t.ch <- reason:
		return true
	default:
		return false // 已有排队的请求
	}
}

// loop 依次执行排队的请求，直到ctx取消
func (t *trigger) loop(ctx context.Context, fn func(reason string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-t.ch:
			fn(reason)
		}
	}
}

// tasks 后台任务组，stop取消全部任务并等待退出
type tasks struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newTasks(ctx context.Context) *tasks {
	ctx, cancel := context.WithCancel(ctx)
	return &tasks{ctx: ctx, cancel: cancel}
}

func (ts *tasks) Go(fn func(ctx context.Context)) {
	ts.wg.Add(1)
	go func() {
		defer ts.wg.Done()
		fn(ts.ctx)
	}()
}

// stop 原样返回err，所有出口都经过这里
func (ts *tasks) stop(err error) error {
	ts.cancel()
	ts.wg.Wait()
	return err
}

func serve(ctx context.Context, cfg *config.Config, r *runner.Runner, logger *storage.Logger, m *metrics.Metrics) error {
	if err := writePidFile(cfg.PidFile); err != nil {
		return err
	}
	defer os.Remove(cfg.PidFile)

	ts := newTasks(ctx)
	t := newTrigger()
	ts.Go(func(ctx context.Context) {
		t.loop(ctx, func(reason string) {
			logger.Info(fmt.Sprintf("开始生成报表(%s)", reason))
			r.Run(ctx, "")
		})
	})
	t.fire("启动")

	c := cron.New()
	if cfg.Schedule.Enabled {
		interval := time.Duration(cfg.Schedule.Interval).String()
		if err := c.AddFunc("@every "+interval, func() { t.fire("定时") }); err != nil {
			return ts.stop(fmt.Errorf("创建定时任务失败: %w", err))
		}
		logger.Info(fmt.Sprintf("定时重跑间隔: %s", interval))
	}
	if err := addRotateJob(c, cfg, logger); err != nil {
		return ts.stop(err)
	}
	c.Start()
	defer c.Stop()

	if cfg.Watch.Enabled {
		if err := startWatch(ts, cfg.InputPath, t, logger); err != nil {
			return ts.stop(err)
		}
	}

	// SIGHUP: 重新打开日志文件并重跑
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	ts.Go(func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := logger.Reopen(""); err != nil {
					logger.Error(fmt.Sprintf("重新打开日志失败: %v", err))
				}
				t.fire("SIGHUP")
			}
		}
	})

	logger.Info(fmt.Sprintf("服务已启动(pid %d)，按Ctrl+C退出", os.Getpid()))
	// Web退出(包括监听失败)时停止其余任务
	err := ts.stop(serveWeb(ts.ctx, cfg, r, logger, m, func() { t.fire("web") }))
	logger.Info("服务已停止")
	return err
}

// serveWeb 未启用Web时阻塞到ctx取消
func serveWeb(ctx context.Context, cfg *config.Config, r *runner.Runner, logger *storage.Logger, m *metrics.Metrics, fire func()) error {
	if !cfg.Web.Enabled {
		<-ctx.Done()
		return nil
	}
	srv := web.NewServer(logger, r.Latest, m.Handler(), fire)
	return srv.ListenAndServe(ctx, cfg.Web.Addr)
}

func startWatch(ts *tasks, input string, t *trigger, logger *storage.Logger) error {
	target, err := file.ResolveInput(input)
	if err != nil {
		return err
	}
	monitor, err := file.NewFileMonitor(target)
	if err != nil {
		return fmt.Errorf("监控输入文件失败: %w", err)
	}
	logger.Info(fmt.Sprintf("监控输入文件: %s", monitor.Target()))

	ts.Go(func(ctx context.Context) {
		defer monitor.Close()
		err := monitor.Watch(ctx, func(path string) {
			t.fire("文件变化: " + path)
		})
		if err != nil {
			logger.Error(fmt.Sprintf("文件监控错误: %v", err))
		}
	})
	return nil
}

func addRotateJob(c *cron.Cron, cfg *config.Config, logger *storage.Logger) error {
	if cfg.LogMaxSize == "" {
		return nil
	}
	return c.AddFunc(rotateSpec, func() {
		if err := logger.CheckRotate(cfg.LogMaxSize); err != nil {
			logger.Error(fmt.Sprintf("日志轮转失败: %v", err))
		}
	})
}

func watchMailbox(ctx context.Context, cfg *config.Config, r *runner.Runner, logger *storage.Logger, m *metrics.Metrics) error {
	// 邮箱地址，用户名和密码
	emailClient := email.NewEmailClient(
		cfg.Email.Server,
		cfg.Email.Username,
		cfg.Email.Password,
		logger)
	handler := email.NewDatasetAttachmentHandler(cfg.Email.TargetSubject, cfg.DataDir, logger)

	ts := newTasks(ctx)
	t := newTrigger()
	ts.Go(func(ctx context.Context) {
		t.loop(ctx, func(string) {
			pollMailbox(ctx, emailClient, handler, r, logger)
		})
	})
	t.fire("启动")

	// 使用配置中的检查间隔
	interval := time.Duration(cfg.Email.CheckInterval).String() // 例如 "5m0s"
	c := cron.New()
	if err := c.AddFunc("@every "+interval, func() { t.fire("定时") }); err != nil {
		return ts.stop(fmt.Errorf("创建定时任务失败: %w", err))
	}
	if err := addRotateJob(c, cfg, logger); err != nil {
		return ts.stop(err)
	}
	c.Start()
	defer c.Stop()

	logger.Info(fmt.Sprintf("邮件监控服务已启动(检查间隔: %v)，按Ctrl+C退出", interval))
	return ts.stop(serveWeb(ts.ctx, cfg, r, logger, m, func() { t.fire("web") }))
}

// pollMailbox 检查一次邮箱，有新数据附件时生成报表
func pollMailbox(ctx context.Context, mailService email.MailService, handler *email.DatasetAttachmentHandler, r *runner.Runner, logger *storage.Logger) (*runner.Result, error) {
	newEmail, err := email.CheckAndFetchDataset(mailService, handler.TargetSubject, logger)
	if err != nil {
		logger.Error("检查邮件失败: " + err.Error())
		return nil, err
	}
	if newEmail == nil || handler.IsProcessed(newEmail.UID) {
		return nil, nil
	}

	path, err := handler.Handle(newEmail)
	if err != nil {
		logger.Error(fmt.Sprintf("处理邮件失败(UID:%d): %v", newEmail.UID, err))
		return nil, err
	}
	if path == "" {
		return nil, nil
	}
	return r.Run(ctx, path)
}

func writePidFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return fmt.Errorf("写入pid文件失败: %w", err)
	}
	return nil
}
