package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot/vg"
)

// Renderer 把图表输出到某处，返回结果位置
type Renderer interface {
	Render(c Chart) (string, error)
}

// FileRenderer 把图表保存为图片文件，格式由扩展名决定(png/svg/pdf/jpg)
type FileRenderer struct {
	Dir    string
	Format string
	Width  vg.Length
	Height vg.Length
}

func NewFileRenderer(dir, format string, widthInch, heightInch float64) *FileRenderer {
	return &FileRenderer{
		Dir:    dir,
		Format: strings.TrimPrefix(strings.ToLower(format), "."),
		Width:  vg.Length(widthInch) * vg.Inch,
		Height: vg.Length(heightInch) * vg.Inch,
	}
}

func (r *FileRenderer) Render(c Chart) (string, error) {
	path := filepath.Join(r.Dir, c.Spec.Name+"."+r.Format)
	if err := c.Plot.Save(r.Width, r.Height, path); err != nil {
		return "", fmt.Errorf("保存图表%s失败: %w", path, err)
	}
	return path, nil
}
