// Package catalog 定义 backend 契约，并按配置选择/构造 backend。
package catalog

import (
	"context"

	"github.com/John-Robertt/playproxy/internal/domain"
	"github.com/John-Robertt/playproxy/internal/protocol"
	"github.com/John-Robertt/playproxy/internal/scraper"
)

// Backend 是两种采集方式共同的查询契约。
//
// 约束：
// - Search 返回 package_name 以 prefix 开头的条目，保持来源顺序；没有结果时返回空 slice
// - Developer 不支持时返回 domain.ErrUnsupported
// - Details 找不到时返回 ok=false（不是错误）
// - 实现必须可以被多个 goroutine 并发调用
type Backend interface {
	Name() string
	Search(ctx context.Context, prefix string) ([]domain.Item, error)
	Developer(ctx context.Context, name string) ([]domain.Item, error)
	Details(ctx context.Context, pkg string) (domain.Item, bool, error)
}

var (
	_ Backend = (*scraper.Backend)(nil)
	_ Backend = (*protocol.Backend)(nil)
)
