package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CORSMiddleware 允许 Origin 完整匹配任一正则的跨域 GET 请求。
// 预检请求（OPTIONS）直接返回 204。
func CORSMiddleware(patterns []string) (func(http.Handler) http.Handler, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			return nil, fmt.Errorf("非法 CORS origin 正则 %q：%w", p, err)
		}
		res = append(res, re)
	}
	allowed := func(origin string) bool {
		for _, re := range res {
			if re.MatchString(origin) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestMetrics 是按路由与状态码记录的请求指标。
type requestMetrics struct {
	count    metric.Int64Counter
	duration metric.Float64Histogram
}

func newRequestMetrics(mp metric.MeterProvider) (requestMetrics, error) {
	m := mp.Meter("server")
	count, err := m.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests served."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return requestMetrics{}, err
	}
	duration, err := m.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP requests."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return requestMetrics{}, err
	}
	return requestMetrics{count: count, duration: duration}, nil
}

// logRequests 记录每个请求的日志与指标。route 返回请求命中的路由模式，未命中时为空串。
func logRequests(next http.Handler, route func(*http.Request) string, rm requestMetrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		pattern := route(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		attrs := metric.WithAttributes(
			attribute.String("http.route", pattern),
			attribute.String("http.request.method", r.Method),
			attribute.Int("http.response.status_code", rec.status),
		)
		rm.count.Add(r.Context(), 1, attrs)
		rm.duration.Record(r.Context(), elapsed.Seconds(), attrs)

		slog.Debug("http", "method", r.Method, "path", r.URL.Path, "route", pattern, "status", rec.status, "elapsed", elapsed)
	})
}
