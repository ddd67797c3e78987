// reader.go
package file

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"TripReport/src/config"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var ErrUnsupportedFormat = errors.New("不支持的文件格式")

// LoadOptions 读取行程数据的选项
type LoadOptions struct {
	SheetName string   // xlsx工作表，为空时取第一个
	HeaderRow int      // xlsx标题行(从1开始)
	Encoding  string   // csv字符集，例如 utf-8、gbk
	Delimiter rune     // csv分隔符
	NaNValues []string // 视为缺失值的内容
}

// OptionsFromConfig 由数据配置生成读取选项
func OptionsFromConfig(dcfg *config.DataConfig, sheetName string) LoadOptions {
	opts := LoadOptions{
		SheetName: sheetName,
		HeaderRow: dcfg.HeaderRow,
		Encoding:  dcfg.InputEncoding,
		Delimiter: ',',
		NaNValues: dcfg.NaNValues,
	}
	if r := []rune(dcfg.Delimiter); len(r) > 0 {
		opts.Delimiter = r[0]
	}
	return opts
}

// Load 按扩展名读取csv或xlsx文件，所有列按字符串读取
func Load(filePath string, opts LoadOptions) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv", ".txt":
		f, err := os.Open(filePath)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("打开文件失败: %w", err)
		}
		defer f.Close()
		return ReadCSV(f, opts)
	case ".xlsx":
		return ReadXLSX(filePath, opts)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filePath)
	}
}

// ReadCSV 读取csv，自动去除BOM并按配置的字符集解码
func ReadCSV(r io.Reader, opts LoadOptions) (dataframe.DataFrame, error) {
	decoded, err := decodeReader(r, opts.Encoding)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = ','
	}

	df := dataframe.ReadCSV(decoded,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nanValues(opts)),
		dataframe.WithDelimiter(delimiter),
	)
	if df.Err != nil {
		return df, fmt.Errorf("解析CSV失败: %w", df.Err)
	}
	return df, nil
}

func nanValues(opts LoadOptions) []string {
	if opts.NaNValues == nil {
		return config.DefaultNaNValues
	}
	return opts.NaNValues
}

// decodeReader 根据字符集名称包装reader，BOM优先于配置的字符集
func decodeReader(r io.Reader, name string) (io.Reader, error) {
	if name == "" {
		name = "utf-8"
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("未知的字符集 %q: %w", name, err)
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

func ReadXLSX(filePath string, opts LoadOptions) (df dataframe.DataFrame, err error) {

	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}

	// 2. 获取工作表，未指定时取第一个
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表: %s", filePath)
	}
	sheet := xlFile.Sheets[0]
	if opts.SheetName != "" {
		s, ok := xlFile.Sheet[opts.SheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("工作表%s不存在: %s", opts.SheetName, filePath)
		}
		sheet = s
	}

	// 3. 转换为Gota DataFrame
	df = convertSheetToDataFrame(sheet, opts.HeaderRow, nanValues(opts))
	if df.Err != nil {
		return df, fmt.Errorf("转换工作表%s失败: %w", sheet.Name, df.Err)
	}
	return df, nil
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
// 单元格取原始值，日期单元格为Excel序列号
func convertSheetToDataFrame(sheet *xlsx.Sheet, headerRow int, nan []string) dataframe.DataFrame {
	if headerRow <= 0 {
		headerRow = 1
	}
	if len(sheet.Rows) < headerRow {
		return dataframe.DataFrame{Err: fmt.Errorf("工作表没有标题行")}
	}

	// 获取列名
	var headers []string
	for _, cell := range sheet.Rows[headerRow-1].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}
	// 去掉末尾的空列
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}

	records := [][]string{headers}
	for _, row := range sheet.Rows[headerRow:] {
		if row == nil {
			continue
		}
		record := make([]string, len(headers))
		empty := true
		for i, cell := range row.Cells {
			if i < len(headers) { // 确保不超出列数范围
				record[i] = cell.Value
				if cell.Value != "" {
					empty = false
				}
			}
		}
		// 跳过完全空的行
		if !empty {
			records = append(records, record)
		}
	}

	return dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nan),
	)
}

// FileInfo 文件信息结构体
type FileInfo struct {
	Name     string
	FullPath string
	ModTime  time.Time
}

// FindLatestDataset 查找目录下最新的csv/xlsx文件，keyword非空时要求文件名包含keyword
func FindLatestDataset(dir, keyword string) (*FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var latest *FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if !IsDatasetFile(info.Name()) || !strings.Contains(info.Name(), keyword) {
			continue
		}

		if latest == nil || info.ModTime().After(latest.ModTime) {
			latest = &FileInfo{
				Name:     info.Name(),
				FullPath: filepath.Join(dir, info.Name()),
				ModTime:  info.ModTime(),
			}
		}
	}

	if latest == nil {
		return nil, fmt.Errorf("no matching dataset files found in %s", dir)
	}
	return latest, nil
}

// IsDatasetFile 判断文件扩展名是否可读取
func IsDatasetFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// ResolveInput 输入为目录时取其中最新的数据文件
func ResolveInput(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("输入文件不可用: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}
	latest, err := FindLatestDataset(path, "")
	if err != nil {
		return "", err
	}
	return latest.FullPath, nil
}

// EnsureDir 确保目录存在
func EnsureDir(dirPath string) error {
	if info, err := os.Stat(dirPath); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	return os.MkdirAll(dirPath, 0755)
}
