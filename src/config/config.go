package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀，例如 TRIPREPORT_INPUT_PATH
const EnvPrefix = "TRIPREPORT"

// Config 结构体定义了应用程序的配置结构
type Config struct {
	InputPath   string `json:"input_path" envconfig:"INPUT_PATH"`    // 行程数据文件(csv/xlsx)
	DataDir     string `json:"data_dir" envconfig:"DATA_DIR"`        // 邮件附件等数据存储目录
	OutputDir   string `json:"output_dir" envconfig:"OUTPUT_DIR"`    // 图表与报表输出目录
	SheetName   string `json:"sheet_name" envconfig:"SHEET_NAME"`    // xlsx输入时读取的工作表
	LogName     string `json:"log_name" envconfig:"LOG_NAME"`        // 日志文件
	LogLevel    string `json:"log_level" envconfig:"LOG_LEVEL"`      // debug/info/warning/error
	LogMaxSize  string `json:"log_max_size" envconfig:"LOG_MAX_SIZE"` // 例如 "10 * 1024 * 1024"
	LogConsole  bool   `json:"log_console" envconfig:"LOG_CONSOLE"`  // 同时输出到stderr
	PidFile     string `json:"pid_file" envconfig:"PID_FILE"`
	MetricsFile string `json:"metrics_file" envconfig:"METRICS_FILE"` // prometheus textfile

	Chart struct {
		WidthInch  float64 `json:"width_inch" envconfig:"WIDTH_INCH"`
		HeightInch float64 `json:"height_inch" envconfig:"HEIGHT_INCH"`
		Format     string  `json:"format" envconfig:"FORMAT"` // png/svg/pdf
	} `json:"chart" envconfig:"CHART"`

	Schedule struct {
		Enabled  bool     `json:"enabled" envconfig:"ENABLED"`
		Interval Duration `json:"interval" envconfig:"INTERVAL"` // 定时重跑间隔
	} `json:"schedule" envconfig:"SCHEDULE"`

	Watch struct {
		Enabled bool `json:"enabled" envconfig:"ENABLED"` // 输入文件变化时重跑
	} `json:"watch" envconfig:"WATCH"`

	Web struct {
		Enabled bool   `json:"enabled" envconfig:"ENABLED"`
		Addr    string `json:"addr" envconfig:"ADDR"`
	} `json:"web" envconfig:"WEB"`

	Email struct {
		Server        string   `json:"server" envconfig:"SERVER"`                 // 邮件服务器地址
		Username      string   `json:"username" envconfig:"USERNAME"`             // 邮箱用户名
		Password      string   `json:"password" envconfig:"PASSWORD"`             // 邮箱密码
		TargetSubject string   `json:"target_subject" envconfig:"TARGET_SUBJECT"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval" envconfig:"CHECK_INTERVAL"` // 检查新邮件的间隔时间
	} `json:"email" envconfig:"EMAIL"`

	SendEmail struct {
		Enabled  bool     `json:"enabled" envconfig:"ENABLED"`
		Server   string   `json:"server" envconfig:"SERVER"`     // SMTP服务器地址
		Username string   `json:"username" envconfig:"USERNAME"` // 发件邮箱
		Password string   `json:"password" envconfig:"PASSWORD"` // 发件邮箱密码
		To       []string `json:"to" envconfig:"TO"`             // 收件人
		Subject  string   `json:"subject" envconfig:"SUBJECT"`
	} `json:"send_email" envconfig:"SEND_EMAIL"`

	DingTalk struct {
		Webhook string `json:"webhook" envconfig:"WEBHOOK"` // 机器人webhook地址，为空则不推送
		Secret  string `json:"secret" envconfig:"SECRET"`   // 加签密钥
	} `json:"dingtalk" envconfig:"DINGTALK"`
}

// Columns 数据集中各字段对应的列名
type Columns struct {
	Start     string `yaml:"start"`
	Stop      string `yaml:"stop"`
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
	Payment   string `yaml:"payment"`
}

// DataConfig 数据集结构配置
type DataConfig struct {
	Columns       Columns  `yaml:"columns"`
	DateLayouts   []string `yaml:"date_layouts"`
	NaNValues     []string `yaml:"nan_values"`
	TopN          int      `yaml:"top_n"`
	InputEncoding string   `yaml:"input_encoding"`
	Delimiter     string   `yaml:"delimiter"`
	HeaderRow     int      `yaml:"header_row"` // xlsx标题行(从1开始)
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

// DefaultDateLayouts 默认支持的时间格式
var DefaultDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"1-2-2006 15:04:05",
	"1-2-2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02",
}

// DefaultNaNValues 默认视为缺失值的单元格内容
var DefaultNaNValues = []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "None", "<NA>", "<nil>"}

func LoadConfig(jsonFolder, jsonFile, dataConfigFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataConfigFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataConfigFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataFile := filepath.Join(jsonFolder, dataConfigFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	// 环境变量覆盖json配置
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, nil, fmt.Errorf("读取环境变量配置失败: %w", err)
	}
	cfg.applyDefaults()

	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := yaml.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	dcfg.applyDefaults()
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

func (c *Config) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "output"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.LogName == "" {
		c.LogName = "app.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PidFile == "" {
		c.PidFile = "tripreport.pid"
	}
	if c.Chart.WidthInch <= 0 {
		c.Chart.WidthInch = 14
	}
	if c.Chart.HeightInch <= 0 {
		c.Chart.HeightInch = 6
	}
	if c.Chart.Format == "" {
		c.Chart.Format = "png"
	}
	if c.Schedule.Interval <= 0 {
		c.Schedule.Interval = Duration(time.Hour)
	}
	if c.Email.CheckInterval <= 0 {
		c.Email.CheckInterval = Duration(5 * time.Minute)
	}
	if c.Web.Addr == "" {
		c.Web.Addr = ":8080"
	}
	if c.SendEmail.Subject == "" {
		c.SendEmail.Subject = "Trip report"
	}
}

func (dc *DataConfig) applyDefaults() {
	if dc.Columns.Start == "" {
		dc.Columns.Start = "START"
	}
	if dc.Columns.Stop == "" {
		dc.Columns.Stop = "STOP"
	}
	if dc.Columns.StartDate == "" {
		dc.Columns.StartDate = "START_DATE"
	}
	if dc.Columns.EndDate == "" {
		dc.Columns.EndDate = "END_DATE"
	}
	if dc.Columns.Payment == "" {
		dc.Columns.Payment = "payment"
	}
	if len(dc.DateLayouts) == 0 {
		dc.DateLayouts = DefaultDateLayouts
	}
	if dc.NaNValues == nil {
		dc.NaNValues = DefaultNaNValues
	}
	if dc.TopN <= 0 {
		dc.TopN = 10
	}
	if dc.Delimiter == "" {
		dc.Delimiter = ","
	}
	if dc.HeaderRow <= 0 {
		dc.HeaderRow = 1
	}
}

// DefaultDataConfig 返回全部使用默认值的数据配置
func DefaultDataConfig() *DataConfig {
	dc := &DataConfig{}
	dc.applyDefaults()
	return dc
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.Decode(s)
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Decode 实现envconfig.Decoder接口
func (d *Duration) Decode(value string) error {
	dur, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (dc *DataConfig) GetColumns() Columns {
	mu.RLock()
	defer mu.RUnlock()
	return dc.Columns
}

func (dc *DataConfig) GetTopN() int {
	mu.RLock()
	defer mu.RUnlock()
	return dc.TopN
}
