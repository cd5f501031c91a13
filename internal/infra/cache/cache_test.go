package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestStore_ReadWriteWithinTTL(t *testing.T) {
	s := New(t.TempDir(), time.Hour)
	ctx := context.Background()
	url := "https://play.google.com/store/apps/details?id=a.b"

	if err := s.Put(ctx, url, []byte("<html/>")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, ok, err := s.Get(ctx, url)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !ok {
		t.Fatalf("期望命中缓存，但 ok=false")
	}
	if string(b) != "<html/>" {
		t.Fatalf("内容不一致：%q", string(b))
	}

	path, err := s.Path(url)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("期望文件存在，但 Stat 失败：%v", err)
	}
}

func TestStore_MissWhenAbsent(t *testing.T) {
	s := New(t.TempDir(), time.Hour)

	_, ok, err := s.Get(context.Background(), "https://example.test/none")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if ok {
		t.Fatalf("期望未命中")
	}
}

func TestStore_StaleAfterTTL(t *testing.T) {
	s := New(t.TempDir(), time.Minute)
	ctx := context.Background()
	url := "https://example.test/page"

	if err := s.Put(ctx, url, []byte("v1")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	path, _ := s.Path(url)
	old := time.Now().Add(-2 * time.Minute)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Chtimes 失败：%v", err)
	}

	_, ok, err := s.Get(ctx, url)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if ok {
		t.Fatalf("期望过期未命中")
	}
}

func TestStore_InjectedClock(t *testing.T) {
	s := New(t.TempDir(), time.Hour)
	ctx := context.Background()
	url := "https://example.test/clock"

	if err := s.Put(ctx, url, []byte("v1")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	s.now = func() time.Time { return time.Now().Add(30 * time.Minute) }
	if _, ok, _ := s.Get(ctx, url); !ok {
		t.Fatalf("30 分钟后应仍然有效")
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, ok, _ := s.Get(ctx, url); ok {
		t.Fatalf("2 小时后应已过期")
	}
}

func TestStore_ZeroTTLAlwaysStale(t *testing.T) {
	s := New(t.TempDir(), 0)
	ctx := context.Background()

	if err := s.Put(ctx, "https://example.test/x", []byte("x")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, ok, _ := s.Get(ctx, "https://example.test/x"); ok {
		t.Fatalf("TTL=0 时不应命中")
	}
}

func TestStore_EmptyKeyRejected(t *testing.T) {
	s := New(t.TempDir(), time.Hour)

	err := s.Put(context.Background(), "  ", []byte("x"))
	if !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("期望 ErrEmptyKey，实际：%v", err)
	}
}

func TestKey_StableAndDistinct(t *testing.T) {
	a := Key("https://example.test/a")
	if a != Key("https://example.test/a") {
		t.Fatalf("同一 url 的 key 应稳定")
	}
	if a == Key("https://example.test/b") {
		t.Fatalf("不同 url 的 key 应不同")
	}
	if len(a) != 64 {
		t.Fatalf("期望 64 位十六进制，实际 %d", len(a))
	}
}

func TestStore_SizeAndClear(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, time.Hour)
	ctx := context.Background()

	for _, u := range []string{"https://example.test/1", "https://example.test/2"} {
		if err := s.Put(ctx, u, []byte("abcd")); err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
	}
	// 其他进程的临时文件不算条目，也不应被 Clear 删除。
	if err := os.WriteFile(dir+"/.x.content.tmp-1", []byte("zz"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	size, n, err := s.Size()
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if n != 2 || size != 8 {
		t.Fatalf("期望 2 条/8 字节，实际 %d 条/%d 字节", n, size)
	}

	removed, err := s.Clear()
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if removed != 2 {
		t.Fatalf("期望删除 2 条，实际 %d", removed)
	}
	if _, err := os.Stat(dir + "/.x.content.tmp-1"); err != nil {
		t.Fatalf("临时文件不应被删除：%v", err)
	}
}

func TestStore_SizeOnMissingDir(t *testing.T) {
	s := New(t.TempDir()+"/nope", time.Hour)
	size, n, err := s.Size()
	if err != nil || size != 0 || n != 0 {
		t.Fatalf("期望空结果，实际 size=%d n=%d err=%v", size, n, err)
	}
}
