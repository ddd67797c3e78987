package datapush

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"TripReport/src/processor"
	"TripReport/src/runner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult() *runner.Result {
	return &runner.Result{
		RunID: "run-1",
		Summary: &processor.Summary{
			RunID:       "run-1",
			Source:      "/data/trips.csv",
			GeneratedAt: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
			RowsLoaded:  4,
			RowsKept:    3,
			RowsDropped: 1,
			Demand: &processor.Demand{ByHour: []processor.Count{
				{Key: "7", Count: 0}, {Key: "8", Count: 2}, {Key: "17", Count: 2},
			}},
			Duration: &processor.DurationStats{Summary: processor.DurationSummary{Trips: 3, Mean: 21.7, P90: 28}},
			Locations: &processor.Locations{TopPickup: []processor.Count{
				{Key: "Cary", Count: 2}, {Key: "Morrisville", Count: 1},
			}},
			Payment: &processor.Payment{Available: true, Methods: []processor.Count{{Key: "Card", Count: 2}}},
		},
	}
}

func newTestPusher(url, secret string) *DingTalkPusher {
	p := NewDingTalkPusher(url, secret)
	p.retryInterval = time.Millisecond
	p.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return p
}

func TestSign(t *testing.T) {
	assert.Equal(t, sign(1700000000000, "SECxyz"), sign(1700000000000, "SECxyz"))
	assert.NotEqual(t, sign(1700000000000, "SECxyz"), sign(1700000000001, "SECxyz"))
	assert.NotEqual(t, sign(1700000000000, "SECxyz"), sign(1700000000000, "SECabc"))
}

func TestMarkdown(t *testing.T) {
	title, text := Markdown(testResult())
	assert.Equal(t, "行程报表 2024-01-02 09:30", title)
	assert.Contains(t, text, "- 数据文件: trips.csv")
	assert.Contains(t, text, "读取 4，有效 3，丢弃 1")
	// 并列时取先出现的小时
	assert.Contains(t, text, "- 高峰时段: 8 点 (2 次)")
	assert.Contains(t, text, "1. Cary (2)")
	assert.Contains(t, text, "最常用支付方式: Card (2)")

	res := testResult()
	res.Summary.Payment = &processor.Payment{Notice: processor.NoPaymentNotice}
	_, text = Markdown(res)
	assert.Contains(t, text, "> "+processor.NoPaymentNotice)
}

func TestNotifySignsRequest(t *testing.T) {
	var got map[string]interface{}
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	p := newTestPusher(srv.URL+"/robot/send?access_token=abc", "SECxyz")
	require.NoError(t, p.Notify(context.Background(), testResult()))

	assert.Equal(t, []string{"abc"}, query["access_token"])
	assert.Equal(t, []string{"1700000000000"}, query["timestamp"])
	assert.Equal(t, []string{sign(1700000000000, "SECxyz")}, query["sign"])
	assert.Equal(t, "markdown", got["msgtype"])
}

func TestNotifyWithoutSecret(t *testing.T) {
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestPusher(srv.URL, "").Notify(context.Background(), testResult()))
	assert.NotContains(t, query, "sign")
}

func TestNotifyRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Write([]byte(`{"errcode":310000,"errmsg":"sign not match"}`))
			return
		}
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestPusher(srv.URL, "SECxyz").Notify(context.Background(), testResult()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestNotifyGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestPusher(srv.URL, "").Notify(context.Background(), testResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "重试 3 次后失败")
	assert.Equal(t, int32(RETRY_TIMES), atomic.LoadInt32(&calls))

	assert.Error(t, newTestPusher(srv.URL, "").Notify(context.Background(), &runner.Result{}))
}
