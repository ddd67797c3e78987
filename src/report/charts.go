package report

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"TripReport/src/processor"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
)

// ChartSpec 图表的文件名、标题、坐标轴和颜色
type ChartSpec struct {
	Name   string
	Title  string
	XLabel string
	YLabel string
	Color  color.Color
	Rotate bool // x轴标签倾斜
}

var (
	DemandHourChart = ChartSpec{"demand_hour", "Peak Demand Hours", "Hour of the Day", "Number of Rides",
		color.RGBA{R: 0xcb, G: 0x18, B: 0x1d, A: 0xff}, false}
	DemandDayChart = ChartSpec{"demand_day", "Rides by Day of the Week", "Day", "Number of Rides",
		color.RGBA{R: 0x21, G: 0x91, B: 0x8c, A: 0xff}, false}
	TopPickupChart = ChartSpec{"top_pickup", "Top 10 Pickup Locations", "Pickup Location", "Number of Rides",
		color.RGBA{B: 0x8b, A: 0xff}, true}
	TopDropoffChart = ChartSpec{"top_dropoff", "Top 10 Drop-off Locations", "Drop-off Location", "Number of Rides",
		color.RGBA{R: 0xa4, A: 0xff}, true}
	VolumeChart = ChartSpec{"volume", "Ride Volumes Over Time", "Date", "Number of Rides",
		plotutil.Color(0), true}
	DurationHourChart = ChartSpec{"duration_hour", "Average Trip Duration by Hour of the Day", "Hour of the Day", "Average Duration (minutes)",
		color.RGBA{G: 0x80, B: 0x80, A: 0xff}, false}
	DurationDayChart = ChartSpec{"duration_day", "Average Trip Duration by Day of the Week", "Day of the Week", "Average Duration (minutes)",
		color.RGBA{R: 0xff, G: 0xa5, A: 0xff}, false}
	DurationZoneChart = ChartSpec{"duration_zone", "Zones with Longest Average Trip Durations", "Pickup Zone", "Average Trip Duration (minutes)",
		color.RGBA{G: 0x64, A: 0xff}, true}
	PaymentMethodsChart = ChartSpec{"payment_methods", "Distribution of Payment Methods", "Payment Method", "Count",
		color.RGBA{R: 0x80, B: 0x80, A: 0xff}, false}
	PaymentZonesChart = ChartSpec{"payment_zones", "Payment Preferences in Top Pickup Zones", "Pickup Zone", "Count",
		nil, true}
)

// spectral 堆叠柱状图的配色
var spectral = []color.Color{
	color.RGBA{R: 0x9e, G: 0x01, B: 0x42, A: 0xff},
	color.RGBA{R: 0xd5, G: 0x3e, B: 0x4f, A: 0xff},
	color.RGBA{R: 0xf4, G: 0x6d, B: 0x43, A: 0xff},
	color.RGBA{R: 0xfd, G: 0xae, B: 0x61, A: 0xff},
	color.RGBA{R: 0xfe, G: 0xe0, B: 0x8b, A: 0xff},
	color.RGBA{R: 0xe6, G: 0xf5, B: 0x98, A: 0xff},
	color.RGBA{R: 0xab, G: 0xdd, B: 0xa4, A: 0xff},
	color.RGBA{R: 0x66, G: 0xc2, B: 0xa5, A: 0xff},
	color.RGBA{R: 0x32, G: 0x88, B: 0xbd, A: 0xff},
	color.RGBA{R: 0x5e, G: 0x4f, B: 0xa2, A: 0xff},
}

func spectralColor(i, n int) color.Color {
	if n <= 1 {
		return spectral[0]
	}
	return spectral[i*(len(spectral)-1)/(n-1)%len(spectral)]
}

const barWidth = 20

// Chart 待渲染的图表
type Chart struct {
	Spec ChartSpec
	Plot *plot.Plot
}

// BuildCharts 每项分析一张图，没有支付方式列时不生成支付相关的图
func BuildCharts(s *processor.Summary) ([]Chart, error) {
	var charts []Chart
	add := func(spec ChartSpec, p *plot.Plot, err error) error {
		if err != nil {
			return fmt.Errorf("生成图表%s失败: %w", spec.Name, err)
		}
		charts = append(charts, Chart{Spec: spec, Plot: p})
		return nil
	}

	steps := []func() error{
		func() error {
			p, err := countBarChart(DemandHourChart, s.Demand.ByHour)
			return add(DemandHourChart, p, err)
		},
		func() error {
			p, err := countBarChart(DemandDayChart, s.Demand.ByDay)
			return add(DemandDayChart, p, err)
		},
		func() error {
			p, err := countBarChart(TopPickupChart, s.Locations.TopPickup)
			return add(TopPickupChart, p, err)
		},
		func() error {
			p, err := countBarChart(TopDropoffChart, s.Locations.TopDropoff)
			return add(TopDropoffChart, p, err)
		},
		func() error {
			p, err := volumeLineChart(VolumeChart, s.Volume.ByDate)
			return add(VolumeChart, p, err)
		},
		func() error {
			p, err := meanBarChart(DurationHourChart, s.Duration.ByHour)
			return add(DurationHourChart, p, err)
		},
		func() error {
			p, err := meanBarChart(DurationDayChart, s.Duration.ByDay)
			return add(DurationDayChart, p, err)
		},
		func() error {
			p, err := meanBarChart(DurationZoneChart, s.Duration.TopZones)
			return add(DurationZoneChart, p, err)
		},
	}
	if s.Payment != nil && s.Payment.Available {
		steps = append(steps,
			func() error {
				p, err := countBarChart(PaymentMethodsChart, s.Payment.Methods)
				return add(PaymentMethodsChart, p, err)
			},
			func() error {
				p, err := stackedBarChart(PaymentZonesChart, s.Payment.TopZones)
				return add(PaymentZonesChart, p, err)
			},
		)
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return charts, nil
}

func newPlot(spec ChartSpec) *plot.Plot {
	p := plot.New()
	p.Title.Text = spec.Title
	p.X.Label.Text = spec.XLabel
	p.Y.Label.Text = spec.YLabel
	if spec.Rotate {
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = text.XRight
		p.X.Tick.Label.YAlign = text.YCenter
	}
	return p
}

func countBarChart(spec ChartSpec, counts []processor.Count) (*plot.Plot, error) {
	values := make(plotter.Values, len(counts))
	for i, c := range counts {
		values[i] = float64(c.Count)
	}
	return barChart(spec, processor.Keys(counts), values)
}

// meanBarChart 没有行程的分组画为0
func meanBarChart(spec ChartSpec, means []processor.Mean) (*plot.Plot, error) {
	labels := make([]string, len(means))
	values := make(plotter.Values, len(means))
	for i, m := range means {
		labels[i] = m.Key
		if m.Trips > 0 && !math.IsNaN(m.Mean) {
			values[i] = m.Mean
		}
	}
	return barChart(spec, labels, values)
}

func barChart(spec ChartSpec, labels []string, values plotter.Values) (*plot.Plot, error) {
	p := newPlot(spec)
	if len(values) == 0 {
		return p, nil
	}

	bars, err := plotter.NewBarChart(values, vg.Points(barWidth))
	if err != nil {
		return nil, err
	}
	bars.Color = spec.Color
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)
	return p, nil
}

// volumeLineChart x轴为日期
func volumeLineChart(spec ChartSpec, byDate []processor.Count) (*plot.Plot, error) {
	p := newPlot(spec)
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	if len(byDate) == 0 {
		return p, nil
	}

	points := make(plotter.XYs, 0, len(byDate))
	for _, c := range byDate {
		day, err := time.Parse("2006-01-02", c.Key)
		if err != nil {
			return nil, fmt.Errorf("无效的日期 %q: %w", c.Key, err)
		}
		points = append(points, plotter.XY{X: float64(day.Unix()), Y: float64(c.Count)})
	}

	line, err := plotter.NewLine(points)
	if err != nil {
		return nil, err
	}
	line.Color = spec.Color
	p.Add(line)
	return p, nil
}

// stackedBarChart 每种支付方式一层
func stackedBarChart(spec ChartSpec, table *processor.Contingency) (*plot.Plot, error) {
	p := newPlot(spec)
	if table == nil || len(table.Rows) == 0 || len(table.Methods) == 0 {
		return p, nil
	}
	p.Legend.Top = true

	var below *plotter.BarChart
	for m, method := range table.Methods {
		values := make(plotter.Values, len(table.Rows))
		for r := range table.Rows {
			values[r] = float64(table.Counts[r][m])
		}

		bars, err := plotter.NewBarChart(values, vg.Points(barWidth))
		if err != nil {
			return nil, err
		}
		bars.Color = spectralColor(m, len(table.Methods))
		bars.LineStyle.Width = vg.Length(0)
		if below != nil {
			bars.StackOn(below)
		}
		p.Add(bars)
		p.Legend.Add(method, bars)
		below = bars
	}
	p.NominalX(table.Rows...)
	return p, nil
}
