// Package protocol 实现基于认证 RPC 的 backend（"api"）。
package protocol

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/John-Robertt/playproxy/internal/domain"
)

var tracer = otel.Tracer("protocol")

// Name 是该 backend 在配置中的类型名。
const Name = "api"

// Backend 组合 Session 与 Normalize；每个公开操作都经过 WithLogin。
type Backend struct {
	remote  Remote
	session *Session
}

// New 构造 Backend。session 必须使用同一个 remote。
func New(remote Remote, session *Session) *Backend {
	return &Backend{remote: remote, session: session}
}

func (b *Backend) Name() string { return Name }

// Session 返回 backend 持有的 Session（用于健康检查展示登录状态）。
func (b *Backend) Session() *Session { return b.session }

// Search 返回 package_name 以 prefix 开头的记录，保持远端顺序；可能为空。
// 只使用第一组结果。
func (b *Backend) Search(ctx context.Context, prefix string) ([]domain.Item, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, domain.ErrEmptyQuery
	}
	ctx, span := tracer.Start(ctx, "search", trace.WithAttributes(attribute.String("prefix", prefix)))
	defer span.End()

	resp, err := WithLogin(ctx, b.session, func(ctx context.Context) (SearchResponse, error) {
		return b.remote.Search(ctx, prefix)
	})
	if err != nil {
		return nil, spanErr(span, err)
	}

	items := []domain.Item{}
	if len(resp.Doc) == 0 {
		return items, nil
	}
	for _, doc := range resp.Doc[0].Child {
		// 先按原始包名过滤：被过滤掉的记录即使残缺也不影响结果。
		if pkg, ok := rawPackageName(doc); ok && !strings.HasPrefix(pkg, prefix) {
			continue
		}
		item, err := Normalize(doc)
		if err != nil {
			return nil, spanErr(span, err)
		}
		items = append(items, item)
	}
	slog.Info("search 完成", "backend", Name, "prefix", prefix, "count", len(items))
	span.SetAttributes(attribute.Int("count", len(items)))
	return items, nil
}

// Developer 不被该 backend 支持。
func (b *Backend) Developer(ctx context.Context, name string) ([]domain.Item, error) {
	return nil, domain.ErrUnsupported
}

// Details 返回单条记录；远端没有该记录时 ok=false。
func (b *Backend) Details(ctx context.Context, pkg string) (domain.Item, bool, error) {
	if strings.TrimSpace(pkg) == "" {
		return domain.Item{}, false, domain.ErrEmptyQuery
	}
	ctx, span := tracer.Start(ctx, "details", trace.WithAttributes(attribute.String("package", pkg)))
	defer span.End()

	doc, err := WithLogin(ctx, b.session, func(ctx context.Context) (*Document, error) {
		return b.remote.Details(ctx, pkg)
	})
	if err != nil {
		return domain.Item{}, false, spanErr(span, err)
	}
	if doc == nil {
		slog.Info("details 未找到", "backend", Name, "package", pkg)
		return domain.Item{}, false, nil
	}

	item, err := Normalize(*doc)
	if err != nil {
		return domain.Item{}, false, spanErr(span, err)
	}
	slog.Info("details 完成", "backend", Name, "package", pkg)
	return item, true, nil
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func rawPackageName(doc Document) (string, bool) {
	if doc.Details == nil || doc.Details.AppDetails == nil || doc.Details.AppDetails.PackageName == nil {
		return "", false
	}
	return *doc.Details.AppDetails.PackageName, true
}
