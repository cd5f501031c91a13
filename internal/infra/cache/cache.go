package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/John-Robertt/playproxy/internal/infra/fsx"
)

var tracer = otel.Tracer("infra/cache")

// DefaultTTL 是页面缓存的默认有效期（24h）。
const DefaultTTL = 24 * time.Hour

const entryExt = ".content"

// Store 是按规范 URL 索引的磁盘页面缓存。
//
// 约束：
// - 每个 key 一个文件：<Dir>/<sha256(url)>.content，内容即原始响应字节
// - 文件 mtime 即写入时间（TTL 时钟）；now > mtime+TTL 视为过期
// - 写入使用“临时文件 + rename”，并发读者不会读到半截内容
// - 读者不加锁：检查存在与读取之间条目可能被刷新/删除，读到的最多过期一个 TTL
type Store struct {
	Dir string
	TTL time.Duration

	now func() time.Time
}

var ErrEmptyKey = errors.New("cache: url 不能为空")

func New(dir string, ttl time.Duration) *Store {
	return &Store{
		Dir: filepath.Clean(strings.TrimSpace(dir)),
		TTL: ttl,
		now: time.Now,
	}
}

// Key 返回 url 的稳定缓存 key（sha256 十六进制）。
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Path 返回 url 对应缓存条目的绝对路径。
func (s *Store) Path(url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", ErrEmptyKey
	}
	return filepath.Join(s.Dir, Key(url)+entryExt), nil
}

// Get 返回未过期条目的内容。
// ok=false 表示未命中（不存在或已过期），不是错误。
func (s *Store) Get(ctx context.Context, url string) ([]byte, bool, error) {
	_, span := tracer.Start(ctx, "cache:get")
	defer span.End()

	path, err := s.Path(url)
	if err != nil {
		span.SetStatus(codes.Error, "invalid key")
		return nil, false, err
	}
	span.SetAttributes(attribute.String("cache.path", path))

	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "stat failed")
		return nil, false, err
	}
	if s.expired(fi.ModTime()) {
		span.AddEvent("stale")
		return nil, false, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		// stat 与 read 之间被其他进程清理：当作未命中。
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, false, err
	}
	span.SetAttributes(attribute.Int("cache.size", len(b)))
	return b, true, nil
}

// Put 原子写入（覆盖）url 的缓存条目。
func (s *Store) Put(ctx context.Context, url string, content []byte) error {
	_, span := tracer.Start(ctx, "cache:set")
	defer span.End()

	if strings.TrimSpace(url) == "" {
		span.SetStatus(codes.Error, "invalid key")
		return ErrEmptyKey
	}
	if err := fsx.WriteFileAtomic(s.Dir, Key(url)+entryExt, content); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return fmt.Errorf("写入缓存失败：%w", err)
	}
	return nil
}

func (s *Store) expired(writtenAt time.Time) bool {
	if s.TTL <= 0 {
		return true
	}
	return s.clock().After(writtenAt.Add(s.TTL))
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Size 返回缓存条目总字节数与条目数（忽略临时文件）。
func (s *Store) Size() (bytes int64, entries int, err error) {
	des, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	for _, de := range des {
		if !isEntry(de) {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			// 读目录之后被删除
			continue
		}
		bytes += fi.Size()
		entries++
	}
	return bytes, entries, nil
}

// Clear 删除全部缓存条目，返回删除数量。
// 只删除 *.content，不动目录本身，也不动其他进程正在写的临时文件。
func (s *Store) Clear() (int, error) {
	des, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for _, de := range des {
		if !isEntry(de) {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir, de.Name())); err != nil && !os.IsNotExist(err) {
			return n, err
		}
		n++
	}
	slog.Info("已清理页面缓存", "dir", s.Dir, "entries", n)
	return n, nil
}

func isEntry(de os.DirEntry) bool {
	return de.Type().IsRegular() && !fsx.IsTemp(de.Name()) && strings.HasSuffix(de.Name(), entryExt)
}
