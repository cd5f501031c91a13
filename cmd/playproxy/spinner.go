package main

import (
	"context"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// withSpinner 在交互终端上显示一个等待动画，返回的 stop 必须调用。
//
// 约束：
// - 只写到 w（通常是 stderr），不污染 stdout 的 JSON 输出
// - w 不是终端时什么都不做
func withSpinner(ctx context.Context, w io.Writer, desc string) (stop func()) {
	if !isTTY(w) {
		return func() {}
	}

	spinner := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				_ = spinner.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		<-finished
		_ = spinner.Finish()
	}
}
