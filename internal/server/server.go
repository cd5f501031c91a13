// Package server 把 catalog.Backend 暴露为 HTTP/JSON 接口。
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/John-Robertt/playproxy/internal/catalog"
	"github.com/John-Robertt/playproxy/internal/domain"
)

var tracer = otel.Tracer("server")

const (
	// DefaultMemoTTL 是成功响应的缓存时间。
	DefaultMemoTTL = time.Hour
	// DefaultMemoSize 是缓存的最大条目数。
	DefaultMemoSize = 1024
)

// Options 是 Server 的可调项。零值使用默认 memo 配置、不开启 CORS，
// 指标写入全局 MeterProvider。
type Options struct {
	CORSOrigins []string

	MemoTTL  time.Duration
	MemoSize int

	MeterProvider metric.MeterProvider
}

// Server 处理三个只读查询：
//
//	GET /search/{prefix}
//	GET /developer/{name}
//	GET /details/{package}
//
// 成功响应按 "路由 + 参数" 缓存 MemoTTL；错误不缓存。
type Server struct {
	backend catalog.Backend
	memo    *expirable.LRU[string, []byte]
	handler http.Handler
}

func New(b catalog.Backend, opts Options) (*Server, error) {
	if opts.MemoTTL <= 0 {
		opts.MemoTTL = DefaultMemoTTL
	}
	if opts.MemoSize <= 0 {
		opts.MemoSize = DefaultMemoSize
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = otel.GetMeterProvider()
	}
	cors, err := CORSMiddleware(opts.CORSOrigins)
	if err != nil {
		return nil, err
	}
	rm, err := newRequestMetrics(opts.MeterProvider)
	if err != nil {
		return nil, err
	}

	s := &Server{
		backend: b,
		memo:    expirable.NewLRU[string, []byte](opts.MemoSize, nil, opts.MemoTTL),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /search/{prefix}", s.handleSearch)
	mux.HandleFunc("GET /developer/{name}", s.handleDeveloper)
	mux.HandleFunc("GET /details/{package}", s.handleDetails)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	route := func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		return pattern
	}
	s.handler = logRequests(cors(mux), route, rm)
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe 监听 addr，直到 ctx 取消后优雅退出。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP 服务已启动", "addr", addr, "backend", s.backend.Name())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("HTTP 服务正在退出")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	prefix := r.PathValue("prefix")
	s.serveMemo(w, r, "search", prefix, func(ctx context.Context) (any, error) {
		return s.backend.Search(ctx, prefix)
	})
}

func (s *Server) handleDeveloper(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.serveMemo(w, r, "developer", name, func(ctx context.Context) (any, error) {
		return s.backend.Developer(ctx, name)
	})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	pkg := r.PathValue("package")
	s.serveMemo(w, r, "details", pkg, func(ctx context.Context) (any, error) {
		item, ok, err := s.backend.Details(ctx, pkg)
		if err != nil || !ok {
			// 不存在编码为 JSON null。
			return nil, err
		}
		return item, nil
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": s.backend.Name(),
	})
}

func (s *Server) serveMemo(w http.ResponseWriter, r *http.Request, route, arg string, load func(context.Context) (any, error)) {
	ctx, span := tracer.Start(r.Context(), "server:"+route)
	defer span.End()

	key := route + "\x00" + arg
	if body, ok := s.memo.Get(key); ok {
		span.SetAttributes(attribute.Bool("memo.hit", true))
		writeBody(w, http.StatusOK, body)
		return
	}

	v, err := load(ctx)
	if err != nil {
		span.RecordError(err)
		writeError(w, r, err)
		return
	}

	body, err := encode(v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.memo.Add(key, body)
	writeBody(w, http.StatusOK, body)
}

// ErrorBody 是错误响应的 JSON 形态。
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusOf 把错误分类映射为 HTTP 状态码与错误码。
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrUnsupported):
		return http.StatusNotImplemented, "unsupported"
	case domain.IsAuth(err):
		return http.StatusBadGateway, "auth_failed"
	case domain.IsMalformed(err):
		return http.StatusBadGateway, "malformed_document"
	case domain.IsNetwork(err), errors.Is(err, domain.ErrTokenDecode):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status >= 500 {
		slog.Error("请求失败", "path", r.URL.Path, "status", status, "err", err)
	} else {
		slog.Warn("请求被拒绝", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: err.Error()}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := encode(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeBody(w, status, body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
