// sender.go
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"github.com/jordan-wright/email"

	"TripReport/src/runner"
)

const DefaultSMTPPort = "465" // 默认 SSL 端口

// sendFunc 实际发送，测试时替换
type sendFunc func(e *email.Email, addr string, auth smtp.Auth, tlsConfig *tls.Config) error

// ReportSender 生成报表后把汇总和工作簿发给收件人
type ReportSender struct {
	Server   string
	Username string
	Password string
	To       []string
	Subject  string

	send sendFunc
}

func NewReportSender(server, username, password string, to []string, subject string) *ReportSender {
	return &ReportSender{
		Server:   server,
		Username: username,
		Password: password,
		To:       to,
		Subject:  subject,
		send: func(e *email.Email, addr string, auth smtp.Auth, tlsConfig *tls.Config) error {
			return e.SendWithTLS(addr, auth, tlsConfig)
		},
	}
}

// BuildMessage 组装报表邮件，工作簿作为附件
func (s *ReportSender) BuildMessage(res *runner.Result) (*email.Email, error) {
	if res == nil || res.Summary == nil {
		return nil, fmt.Errorf("没有可发送的报表")
	}

	e := email.NewEmail()
	e.From = fmt.Sprintf("TripReport <%s>", s.Username)
	e.To = s.To
	e.Subject = s.subject(res)
	e.Text = []byte(summaryText(res))

	if res.Output != nil && res.Output.Workbook != "" {
		if _, err := os.Stat(res.Output.Workbook); err != nil {
			return nil, fmt.Errorf("工作簿不存在: %w", err)
		}
		if _, err := e.AttachFile(res.Output.Workbook); err != nil {
			return nil, fmt.Errorf("附件添加失败: %w", err)
		}
	}
	return e, nil
}

func (s *ReportSender) subject(res *runner.Result) string {
	subject := s.Subject
	if subject == "" {
		subject = "行程报表"
	}
	return fmt.Sprintf("%s %s", subject, res.Summary.GeneratedAt.Format("2006-01-02 15:04"))
}

// Notify 发送报表邮件
func (s *ReportSender) Notify(ctx context.Context, res *runner.Result) error {
	if len(s.To) == 0 {
		return fmt.Errorf("未配置收件人")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e, err := s.BuildMessage(res)
	if err != nil {
		return err
	}

	// 确保服务器地址包含端口
	addr := s.Server
	if !strings.Contains(addr, ":") {
		addr += ":" + DefaultSMTPPort
	}
	host := strings.Split(addr, ":")[0]

	if err := s.send(e, addr, smtp.PlainAuth("", s.Username, s.Password, host), &tls.Config{ServerName: host}); err != nil {
		return fmt.Errorf("邮件发送失败: %w (Server: %s)", err, addr)
	}
	return nil
}

func summaryText(res *runner.Result) string {
	sum := res.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "数据文件: %s\n", sum.Source)
	fmt.Fprintf(&b, "运行ID: %s\n", sum.RunID)
	fmt.Fprintf(&b, "读取行程: %d，有效: %d，丢弃: %d\n", sum.RowsLoaded, sum.RowsKept, sum.RowsDropped)
	if sum.Duration != nil && sum.Duration.Summary.Trips > 0 {
		d := sum.Duration.Summary
		fmt.Fprintf(&b, "平均时长: %.1f分钟，中位数: %.1f分钟\n", d.Mean, d.Median)
	}
	if sum.Locations != nil && len(sum.Locations.TopPickup) > 0 {
		top := sum.Locations.TopPickup[0]
		fmt.Fprintf(&b, "最热门起点: %s (%d)\n", top.Key, top.Count)
	}
	if sum.Payment != nil && !sum.Payment.Available {
		b.WriteString(sum.Payment.Notice + "\n")
	}
	return b.String()
}
