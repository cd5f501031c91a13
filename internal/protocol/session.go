package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/John-Robertt/playproxy/internal/domain"
)

const (
	// DefaultMaxRetries 是登录的默认最大尝试次数。
	DefaultMaxRetries = 10
	// LoginBackoff 是两次登录尝试之间的固定等待。
	LoginBackoff = 200 * time.Millisecond
)

// Credentials 是登录远端所需的凭据。
type Credentials struct {
	Email     string
	Password  string
	AndroidID string
}

// LoginError 是可恢复的登录失败（凭据被拒、服务端临时错误等），会触发下一次尝试。
// 其它错误（例如传输层失败）会直接终止登录循环。
type LoginError struct {
	StatusCode int
	Reason     string
}

func (e *LoginError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("登录被拒绝：HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("登录被拒绝：HTTP %d：%s", e.StatusCode, e.Reason)
}

// Session 保存凭据与登录状态。
//
// 并发约束：同一 Session 同一时刻最多一个登录在进行；
// 并发调用 Login 的其它调用方等待进行中的那次并共享其结果。
// 已登录后普通操作不加锁并发执行。
type Session struct {
	remote     Remote
	creds      Credentials
	maxRetries int
	backoff    time.Duration

	// sleep 在重试之间等待；测试可替换。
	sleep func(ctx context.Context, d time.Duration) error

	group    singleflight.Group
	loggedIn atomic.Bool
}

// NewSession 创建未登录的 Session。maxRetries <= 0 时使用 DefaultMaxRetries。
func NewSession(remote Remote, creds Credentials, maxRetries int) *Session {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Session{
		remote:     remote,
		creds:      creds,
		maxRetries: maxRetries,
		backoff:    LoginBackoff,
		sleep:      sleepCtx,
	}
}

// LoggedIn 返回当前登录状态，无副作用。
func (s *Session) LoggedIn() bool { return s.loggedIn.Load() }

// Login 执行一次（可能多次尝试的）登录。
// 重试耗尽时返回 *domain.AuthError，LoggedIn() 保持 false。
//
// 共享的登录不随任何单个调用方取消：ctx 结束时只有本调用方放弃等待并返回 ctx.Err()，
// 进行中的登录继续为其它调用方完成。
func (s *Session) Login(ctx context.Context) error {
	ch := s.group.DoChan("login", func() (any, error) {
		return nil, s.login(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		slog.Debug("放弃等待进行中的登录", "err", ctx.Err())
		return ctx.Err()
	case res := <-ch:
		if res.Shared {
			slog.Debug("复用进行中的登录结果", "err", res.Err)
		}
		return res.Err
	}
}

func (s *Session) login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "login")
	defer span.End()

	s.loggedIn.Store(false)

	var last error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		slog.Info("执行登录", "attempt", attempt, "max", s.maxRetries)
		err := s.remote.Login(ctx, s.creds)
		if err == nil {
			s.loggedIn.Store(true)
			span.SetAttributes(attribute.Int("attempts", attempt))
			return nil
		}

		var le *LoginError
		if !errors.As(err, &le) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		last = err
		slog.Warn("登录失败", "attempt", attempt, "err", err)

		if attempt < s.maxRetries {
			if err := s.sleep(ctx, s.backoff); err != nil {
				return err
			}
		}
	}

	authErr := &domain.AuthError{Attempts: s.maxRetries, Err: last}
	slog.Error("登录重试耗尽", "attempts", s.maxRetries, "err", last)
	span.RecordError(authErr)
	span.SetStatus(codes.Error, authErr.Error())
	return authErr
}

// WithLogin 在已登录的前提下执行 op：
// 未登录先登录；op 返回 domain.ErrTokenDecode 时强制重新登录并且只重试一次；
// 其它错误直接返回。
func WithLogin[T any](ctx context.Context, s *Session, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if !s.LoggedIn() {
		if err := s.Login(ctx); err != nil {
			return zero, err
		}
	}

	out, err := op(ctx)
	if err == nil || !errors.Is(err, domain.ErrTokenDecode) {
		return out, err
	}

	slog.Info("auth token 失效，重新登录后重试", "err", err)
	if err := s.Login(ctx); err != nil {
		return zero, err
	}
	return op(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
