package datapush

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"TripReport/src/processor"
	"TripReport/src/runner"
)

// 常量定义
const (
	RETRY_TIMES    = 3
	RETRY_INTERVAL = 2 * time.Second
	HTTP_TIMEOUT   = 10 * time.Second
)

// 钉钉 API 响应结构体
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// DingTalkPusher 通过群机器人webhook推送报表摘要
type DingTalkPusher struct {
	webhook       string
	secret        string // 加签密钥，为空时不签名
	client        *http.Client
	retryTimes    int
	retryInterval time.Duration
	now           func() time.Time
}

func NewDingTalkPusher(webhook, secret string) *DingTalkPusher {
	return &DingTalkPusher{
		webhook:       webhook,
		secret:        secret,
		client:        &http.Client{Timeout: HTTP_TIMEOUT},
		retryTimes:    RETRY_TIMES,
		retryInterval: RETRY_INTERVAL,
		now:           time.Now,
	}
}

// sign 钉钉加签: base64(hmac_sha256(timestamp+"\n"+secret))
func sign(timestamp int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10) + "\n" + secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// signedURL 返回带timestamp和sign参数的webhook地址
func (p *DingTalkPusher) signedURL() (string, error) {
	if p.secret == "" {
		return p.webhook, nil
	}
	u, err := url.Parse(p.webhook)
	if err != nil {
		return "", fmt.Errorf("webhook地址无效: %w", err)
	}
	ts := p.now().UnixMilli()
	q := u.Query()
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("sign", sign(ts, p.secret))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// 发送markdown消息
func (p *DingTalkPusher) sendMarkdown(ctx context.Context, title, text string) error {
	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  text,
		},
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}

	target, err := p.signedURL()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payloadBytes))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook返回状态码 %d", resp.StatusCode)
	}

	var result DingTalkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("发送消息失败: %s", result.ErrMsg)
	}
	return nil
}

// 重试函数，ctx取消时立即返回
func retry(ctx context.Context, fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %w", times, err)
}

// Notify 推送一次运行的摘要
func (p *DingTalkPusher) Notify(ctx context.Context, res *runner.Result) error {
	if res == nil || res.Summary == nil {
		return fmt.Errorf("没有可推送的报表")
	}
	title, text := Markdown(res)
	return retry(ctx, func() error {
		return p.sendMarkdown(ctx, title, text)
	}, p.retryTimes, p.retryInterval)
}

// Markdown 生成钉钉markdown消息的标题和正文
func Markdown(res *runner.Result) (string, string) {
	s := res.Summary
	title := fmt.Sprintf("行程报表 %s", s.GeneratedAt.Format("2006-01-02 15:04"))

	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", title)
	fmt.Fprintf(&b, "- 数据文件: %s\n", filepath.Base(s.Source))
	fmt.Fprintf(&b, "- 行程: 读取 %d，有效 %d，丢弃 %d\n", s.RowsLoaded, s.RowsKept, s.RowsDropped)
	if s.Duration != nil && s.Duration.Summary.Trips > 0 {
		d := s.Duration.Summary
		fmt.Fprintf(&b, "- 时长: 平均 %.1f 分钟，P90 %.1f 分钟\n", d.Mean, d.P90)
	}
	if s.Demand != nil {
		if peak, ok := peakCount(s.Demand.ByHour); ok {
			fmt.Fprintf(&b, "- 高峰时段: %s 点 (%d 次)\n", peak.Key, peak.Count)
		}
	}
	if s.Locations != nil && len(s.Locations.TopPickup) > 0 {
		b.WriteString("\n#### 热门起点\n\n")
		for i, c := range s.Locations.TopPickup {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "%d. %s (%d)\n", i+1, c.Key, c.Count)
		}
	}
	if s.Payment != nil {
		if s.Payment.Available && len(s.Payment.Methods) > 0 {
			fmt.Fprintf(&b, "\n- 最常用支付方式: %s (%d)\n", s.Payment.Methods[0].Key, s.Payment.Methods[0].Count)
		} else if !s.Payment.Available {
			fmt.Fprintf(&b, "\n> %s\n", s.Payment.Notice)
		}
	}
	fmt.Fprintf(&b, "\n运行ID: %s", s.RunID)
	return title, b.String()
}

func peakCount(counts []processor.Count) (processor.Count, bool) {
	var peak processor.Count
	found := false
	for _, c := range counts {
		if c.Count > 0 && (!found || c.Count > peak.Count) {
			peak = c
			found = true
		}
	}
	return peak, found
}
