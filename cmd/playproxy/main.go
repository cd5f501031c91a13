package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/John-Robertt/playproxy/internal/config"
)

// 构建时通过 -ldflags "-X main.version=... -X main.builtAt=..." 注入。
var (
	version = "dev"
	builtAt = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if code := config.Code(err); code != "" {
			fmt.Fprintf(os.Stderr, "配置错误（%s）：%v\n", code, err)
		} else {
			fmt.Fprintf(os.Stderr, "错误：%v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
