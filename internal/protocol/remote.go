package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"

	"github.com/John-Robertt/playproxy/internal/domain"
	"github.com/John-Robertt/playproxy/internal/infra/httpx"
	"github.com/John-Robertt/playproxy/internal/telemetry"
)

// Remote 是远端 RPC 端点：登录、搜索、详情。
//
// 约定：
// - Login：可恢复的失败返回 *LoginError
// - Search/Details：token 失效返回 domain.ErrTokenDecode（可包装）
// - Details：远端没有该记录时返回 (nil, nil)
type Remote interface {
	Login(ctx context.Context, creds Credentials) error
	Search(ctx context.Context, query string) (SearchResponse, error)
	Details(ctx context.Context, pkg string) (*Document, error)
}

// DefaultUserAgent 是 RPC 请求使用的客户端标识。
const DefaultUserAgent = "Android-Finsky/8.1.72.S-all [6] [PR] 165478484 (api=3,versionCode=80817206,sdk=25,device=sailfish,hardware=sailfish,product=sailfish)"

// HTTPRemote 是基于 HTTP/JSON 的 Remote 实现：
//
//	POST /auth              form: Email, Passwd, androidId -> {"auth": "<token>"}
//	GET  /search?q=..&c=3   -> SearchResponse
//	GET  /details?doc=..    -> DetailsResponse（404 表示没有记录）
//
// 已登录后请求携带 "Authorization: GoogleLogin auth=<token>"；401 视为 token 失效。
type HTTPRemote struct {
	client *resty.Client

	mu        sync.RWMutex
	token     string
	androidID string
}

// NewHTTPRemote 构造 HTTPRemote。hc 为 nil 时使用 http.DefaultClient。
func NewHTTPRemote(baseURL string, hc *http.Client) *HTTPRemote {
	if hc == nil {
		hc = http.DefaultClient
	}
	c := resty.NewWithClient(hc).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("User-Agent", DefaultUserAgent).
		SetHeader("Accept-Language", "en_US")
	telemetry.InstrumentResty(c, "protocol/http")
	return &HTTPRemote{client: c}
}

type authResponse struct {
	Auth  string `json:"auth"`
	Error string `json:"error"`
}

func (r *HTTPRemote) Login(ctx context.Context, creds Credentials) error {
	res, err := r.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"Email":     creds.Email,
			"Passwd":    creds.Password,
			"androidId": creds.AndroidID,
			"service":   "androidmarket",
		}).
		Post("/auth")
	if err != nil {
		return &domain.NetworkError{Op: "login", URL: r.client.BaseURL + "/auth", Err: err}
	}

	var body authResponse
	var decodeErr error
	if raw := bytes.TrimSpace(res.Body()); len(raw) > 0 {
		decodeErr = json.Unmarshal(raw, &body)
	}

	if !res.IsSuccess() {
		reason := body.Error
		if decodeErr != nil {
			reason = "响应无法解析：" + decodeErr.Error()
		}
		return &LoginError{StatusCode: res.StatusCode(), Reason: reason}
	}
	if decodeErr != nil {
		return &LoginError{StatusCode: res.StatusCode(), Reason: "响应缺少 auth token：" + decodeErr.Error()}
	}
	if strings.TrimSpace(body.Auth) == "" {
		return &LoginError{StatusCode: res.StatusCode(), Reason: "响应缺少 auth token"}
	}

	r.mu.Lock()
	r.token = body.Auth
	r.androidID = creds.AndroidID
	r.mu.Unlock()
	return nil
}

func (r *HTTPRemote) Search(ctx context.Context, query string) (SearchResponse, error) {
	body, found, err := r.get(ctx, "search", "/search", map[string]string{"q": query, "c": "3"})
	if err != nil {
		return SearchResponse{}, err
	}
	if !found {
		return SearchResponse{}, nil
	}
	return DecodeSearch(body)
}

func (r *HTTPRemote) Details(ctx context.Context, pkg string) (*Document, error) {
	body, found, err := r.get(ctx, "details", "/details", map[string]string{"doc": pkg})
	if err != nil || !found {
		return nil, err
	}
	return DecodeDetails(body)
}

// get 执行已认证的 GET。found=false 表示 404。
func (r *HTTPRemote) get(ctx context.Context, op, path string, query map[string]string) ([]byte, bool, error) {
	r.mu.RLock()
	token, androidID := r.token, r.androidID
	r.mu.RUnlock()

	req := r.client.R().
		SetContext(ctx).
		SetQueryParams(query)
	if token != "" {
		req.SetHeader("Authorization", "GoogleLogin auth="+token)
	}
	if androidID != "" {
		req.SetHeader("X-DFE-Device-Id", androidID)
	}

	res, err := req.Get(path)
	if err != nil {
		return nil, false, &domain.NetworkError{Op: op, URL: r.client.BaseURL + path, Err: err}
	}
	switch {
	case res.StatusCode() == http.StatusUnauthorized:
		return nil, false, fmt.Errorf("%s: %w", op, domain.ErrTokenDecode)
	case res.StatusCode() == http.StatusNotFound:
		return nil, false, nil
	case !res.IsSuccess():
		return nil, false, &domain.NetworkError{
			Op:  op,
			URL: res.Request.URL,
			Err: &httpx.StatusError{URL: res.Request.URL, StatusCode: res.StatusCode()},
		}
	}
	return res.Body(), true, nil
}
