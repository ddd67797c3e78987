package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"TripReport/src/runner"
	"TripReport/src/storage"
)

const shutdownTimeout = 5 * time.Second

// Server 只读的Web界面：实时日志、最近一次汇总、图表和指标
type Server struct {
	logger  *storage.Logger
	latest  func() *runner.Result
	metrics http.Handler
	trigger func() // POST /run 时调用，为nil则不提供
}

func NewServer(logger *storage.Logger, latest func() *runner.Result, metrics http.Handler, trigger func()) *Server {
	return &Server{
		logger:  logger,
		latest:  latest,
		metrics: metrics,
		trigger: trigger,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/logs", s.streamLogs)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/summary", s.summary)
		r.Get("/charts", s.listCharts)
		if s.trigger != nil {
			r.Post("/run", s.run)
		}
	})
	r.Get("/charts/{name}", s.chart)
	return r
}

// ListenAndServe 阻塞直到ctx取消，然后优雅关闭
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info(fmt.Sprintf("Web界面已启动: %s", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// streamLogs 持续输出日志，直到客户端断开
func (s *Server) streamLogs(w http.ResponseWriter, r *http.Request) {
	logChan := s.logger.Subscribe()
	defer s.logger.Unsubscribe(logChan)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return
			}
			// 写入失败说明客户端已断开
			if _, err := fmt.Fprintln(w, strings.TrimRight(msg, "\n")); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	res := s.latest()
	if res == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]interface{}{"error": "no report yet"})
		return
	}
	render.JSON(w, r, res)
}

func (s *Server) listCharts(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if res := s.latest(); res != nil && res.Output != nil {
		for _, path := range res.Output.Charts {
			names = append(names, filepath.Base(path))
		}
	}
	render.JSON(w, r, map[string]interface{}{"charts": names})
}

// chart 只提供最近一次运行生成的图表文件
func (s *Server) chart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	res := s.latest()
	if res == nil || res.Output == nil {
		http.NotFound(w, r)
		return
	}
	for _, path := range res.Output.Charts {
		if filepath.Base(path) == name {
			http.ServeFile(w, r, path)
			return
		}
	}
	http.NotFound(w, r)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	go s.trigger()
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{"status": "started"})
}
