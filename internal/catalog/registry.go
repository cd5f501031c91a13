package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/John-Robertt/playproxy/internal/infra/cache"
	"github.com/John-Robertt/playproxy/internal/protocol"
	"github.com/John-Robertt/playproxy/internal/scraper"
)

// Options 是构造 backend 需要的全部输入。
type Options struct {
	Credentials     protocol.Credentials
	MaxLoginRetries int
	RemoteURL       string

	BaseURL  string
	CacheDir string
	CacheTTL time.Duration

	// HTTPClient 为 nil 时使用 http.DefaultClient。
	HTTPClient *http.Client
}

// Factory 按 Options 构造一个 backend 实例。
type Factory func(opts Options) (Backend, error)

// UnknownBackendError 表示配置了未注册的 backend 类型（启动期致命错误）。
type UnknownBackendError struct {
	Name  string
	Known []string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("未知的 backend 类型 %q（可选：%s）", e.Name, strings.Join(e.Known, ", "))
}

// Registry 是 backend 工厂的只读注册表（按 name 索引）。
type Registry struct {
	byName map[string]Factory
}

func NewRegistry(factories map[string]Factory) (Registry, error) {
	byName := make(map[string]Factory, len(factories))
	for name, f := range factories {
		if f == nil {
			return Registry{}, fmt.Errorf("backend %q 的工厂不能为空", name)
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return Registry{}, fmt.Errorf("backend 名称不能为空")
		}
		if _, ok := byName[key]; ok {
			return Registry{}, fmt.Errorf("重复的 backend：%q", key)
		}
		byName[key] = f
	}
	return Registry{byName: byName}, nil
}

func (r Registry) Get(name string) (Factory, bool) {
	if r.byName == nil {
		return nil, false
	}
	f, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Names 返回已注册的 backend 名称（排序后）。
func (r Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Open 构造 name 对应的 backend；未注册时返回 *UnknownBackendError。
func (r Registry) Open(name string, opts Options) (Backend, error) {
	f, ok := r.Get(name)
	if !ok {
		return nil, &UnknownBackendError{Name: name, Known: r.Names()}
	}
	return f(opts)
}

// Default 返回内置的两个 backend：api 与 scraper。
func Default() Registry {
	r, err := NewRegistry(map[string]Factory{
		protocol.Name: newProtocol,
		scraper.Name:  newScraper,
	})
	if err != nil {
		panic(err)
	}
	return r
}

func newProtocol(opts Options) (Backend, error) {
	if strings.TrimSpace(opts.RemoteURL) == "" {
		return nil, errors.New("api backend 需要配置 remote_url")
	}
	if strings.TrimSpace(opts.Credentials.Email) == "" || opts.Credentials.Password == "" {
		return nil, errors.New("api backend 需要登录凭据（GOOGLE_USERNAME/GOOGLE_PASSWORD）")
	}
	remote := protocol.NewHTTPRemote(opts.RemoteURL, opts.HTTPClient)
	session := protocol.NewSession(remote, opts.Credentials, opts.MaxLoginRetries)
	return protocol.New(remote, session), nil
}

func newScraper(opts Options) (Backend, error) {
	var store *cache.Store
	if strings.TrimSpace(opts.CacheDir) != "" {
		store = cache.New(opts.CacheDir, opts.CacheTTL)
	}
	return scraper.New(scraper.NewFetcher(opts.BaseURL, opts.HTTPClient, store)), nil
}
