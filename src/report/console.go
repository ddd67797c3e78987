package report

import (
	"fmt"
	"io"

	"TripReport/src/processor"
)

// PaymentPreviewRows 控制台只显示交叉表前几行
const PaymentPreviewRows = 10

// PrintSummary 把热门地点、长时长区域和支付偏好表输出到w
func PrintSummary(w io.Writer, s *processor.Summary) error {
	p := &printer{w: w}

	p.printf("Trips loaded: %d, kept: %d, dropped: %d\n\n", s.RowsLoaded, s.RowsKept, s.RowsDropped)

	p.printf("Top %d Pickup Locations:\n", s.TopN)
	p.println(formatFrame(countsFrame(s.Locations.TopPickup, "START", "count")))

	p.printf("\nTop %d Drop-off Locations:\n", s.TopN)
	p.println(formatFrame(countsFrame(s.Locations.TopDropoff, "STOP", "count")))

	p.printf("\nZones with Longest Average Trip Durations:\n")
	p.println(formatFrame(meansFrame(s.Duration.TopZones, "START", processor.ColDuration)))

	d := s.Duration.Summary
	p.printf("\nTrip Duration (minutes): trips=%d mean=%.2f median=%.2f p90=%.2f min=%.2f max=%.2f negative=%d\n",
		d.Trips, d.Mean, d.Median, d.P90, d.Min, d.Max, d.Negative)

	if !s.Payment.Available {
		p.printf("\n%s\n", s.Payment.Notice)
		return p.err
	}

	p.printf("\nPayment Preferences by Zone:\n")
	p.println(formatFrame(contingencyFrame(s.Payment.ByZone, "START", PaymentPreviewRows)))
	return p.err
}

// printer 记录第一个写入错误
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println(s string) {
	p.printf("%s\n", s)
}
