package httpx

import (
	"fmt"
	"strings"
)

// StatusError 表示对端返回了非 2xx 的 HTTP 状态码。
// 上层一般把它包进 domain.NetworkError 再向上传播。
type StatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

// OK 判断状态码是否为 2xx。
func OK(code int) bool { return code >= 200 && code < 300 }
