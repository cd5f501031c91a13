package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/John-Robertt/playproxy/internal/domain"
	"github.com/John-Robertt/playproxy/internal/infra/cache"
	"github.com/John-Robertt/playproxy/internal/infra/httpx"
)

var tracer = otel.Tracer("scraper")

// DefaultBaseURL 是公开商店页面的 origin。
const DefaultBaseURL = "https://play.google.com"

// Fetcher 负责“相对路径 -> 绝对 URL -> 缓存/网络”。
//
// 约束：
// - 单次抓取失败不在内部重试，包装为 domain.NetworkError 直接返回
// - 缓存写入失败只记日志：字节已经拿到，不影响本次结果
type Fetcher struct {
	base   string
	client *http.Client
	cache  *cache.Store
}

// NewFetcher 构造 Fetcher。store 为 nil 时不使用缓存。
func NewFetcher(base string, c *http.Client, store *cache.Store) *Fetcher {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if c == nil {
		c = http.DefaultClient
	}
	return &Fetcher{base: base, client: c, cache: store}
}

// Canonicalize 把站内相对地址转为绝对 URL：
// - 已含 "://"：原样返回
// - "//host/x"：补 https:
// - "/x"：拼接 base origin
// - 其他：原样返回
func (f *Fetcher) Canonicalize(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "://"):
		return s
	case strings.HasPrefix(s, "//"):
		return "https:" + s
	case strings.HasPrefix(s, "/"):
		return f.base + s
	default:
		return s
	}
}

// Fetch 返回 url 对应页面的原始字节；命中未过期缓存时不发网络请求。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "fetcher:Fetch")
	defer span.End()

	u := f.Canonicalize(rawURL)
	if u == "" {
		span.SetStatus(codes.Error, "empty url")
		return nil, errors.New("url 不能为空")
	}
	span.SetAttributes(attribute.String("url", u))

	if f.cache != nil {
		b, ok, err := f.cache.Get(ctx, u)
		if err != nil {
			slog.Warn("读取页面缓存失败，改为直接抓取", "url", u, "err", err)
		} else if ok {
			slog.Info("页面缓存命中", "url", u)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return b, nil
		}
	}

	slog.Info("抓取页面", "url", u)
	b, err := f.get(ctx, u)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, &domain.NetworkError{Op: "fetch", URL: u, Err: err}
	}

	if f.cache != nil {
		if err := f.cache.Put(ctx, u, b); err != nil {
			slog.Warn("写入页面缓存失败", "url", u, "err", err)
		}
	}
	return b, nil
}

func (f *Fetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !httpx.OK(resp.StatusCode) {
		return nil, &httpx.StatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	return io.ReadAll(resp.Body)
}
