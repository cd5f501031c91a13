package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/John-Robertt/playproxy/internal/domain"
	"github.com/John-Robertt/playproxy/internal/infra/httpx"
)

// Name 是 scraper backend 在配置/registry 中的名字。
const Name = "scraper"

const (
	pathSearch    = "/store/search?q=%s&c=apps"
	pathDeveloper = "/store/apps/developer?id=%s"
	pathDetails   = "/store/apps/details?id=%s"
)

// Backend 通过公开页面（无需登录）实现三种查询。
//
// 与 protocol backend 的差异（保留，不在这里抹平）：
// - Search/Developer 使用 listing 模式：没有评分、多图、数值字段
// - Details 的 upload_date/download_count 是展示文本
type Backend struct {
	fetcher *Fetcher
	x       extractor
}

func New(f *Fetcher) *Backend {
	return &Backend{fetcher: f, x: extractor{resolve: f.Canonicalize}}
}

func (*Backend) Name() string { return Name }

// Search 抓取搜索结果页，只保留 data-docid 以 prefix 开头的卡片（保持文档顺序）。
func (b *Backend) Search(ctx context.Context, prefix string) ([]domain.Item, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, domain.ErrEmptyQuery
	}
	ctx, span := tracer.Start(ctx, "scraper:Search")
	defer span.End()
	span.SetAttributes(attribute.String("prefix", prefix))

	slog.Info("按包名前缀搜索", "backend", Name, "prefix", prefix)

	items, err := b.listing(ctx, "search", fmt.Sprintf(pathSearch, url.QueryEscape(prefix)), func(id string) bool {
		return strings.HasPrefix(id, prefix)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	return items, nil
}

// Developer 抓取开发者列表页（名字按 query 编码，空格为 '+'），不做前缀过滤。
// 开发者不存在（商店返回 404）时得到空列表。
func (b *Backend) Developer(ctx context.Context, name string) ([]domain.Item, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.ErrEmptyQuery
	}
	ctx, span := tracer.Start(ctx, "scraper:Developer")
	defer span.End()
	span.SetAttributes(attribute.String("developer", name))

	slog.Info("按开发者查询", "backend", Name, "developer", name)

	items, err := b.listing(ctx, "developer", fmt.Sprintf(pathDeveloper, url.QueryEscape(name)), nil)
	if isNotFound(err) {
		slog.Info("开发者页面不存在", "backend", Name, "developer", name)
		return []domain.Item{}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "developer failed")
		return nil, err
	}
	return items, nil
}

func (b *Backend) listing(ctx context.Context, source, path string, keep func(id string) bool) ([]domain.Item, error) {
	html, err := b.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(source, html)
	if err != nil {
		return nil, err
	}

	items := []domain.Item{}
	cards := b.x.cards(doc)
	for i := range cards.Nodes {
		card := cards.Eq(i)
		if keep != nil && !keep(cardID(card)) {
			continue
		}
		item, err := b.x.listing(card)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Details 抓取详情页。商店返回 404 或页面未标识 pkg 时返回 ok=false（不存在），不是错误。
func (b *Backend) Details(ctx context.Context, pkg string) (domain.Item, bool, error) {
	if strings.TrimSpace(pkg) == "" {
		return domain.Item{}, false, domain.ErrEmptyQuery
	}
	ctx, span := tracer.Start(ctx, "scraper:Details")
	defer span.End()
	span.SetAttributes(attribute.String("package", pkg))

	slog.Info("查询应用详情", "backend", Name, "package", pkg)

	html, err := b.fetcher.Fetch(ctx, fmt.Sprintf(pathDetails, url.QueryEscape(pkg)))
	if isNotFound(err) {
		slog.Info("详情页不存在", "backend", Name, "package", pkg)
		return domain.Item{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return domain.Item{}, false, err
	}
	doc, err := parseDocument("details", html)
	if err != nil {
		span.SetStatus(codes.Error, "parse failed")
		return domain.Item{}, false, err
	}

	item, ok, err := b.x.details(doc, pkg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extract failed")
		return domain.Item{}, false, err
	}
	if !ok {
		slog.Info("详情页未标识该应用", "backend", Name, "package", pkg)
	}
	return item, ok, nil
}

// isNotFound 判断抓取失败是否因为商店返回 404（页面不存在）。
func isNotFound(err error) bool {
	var se *httpx.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
