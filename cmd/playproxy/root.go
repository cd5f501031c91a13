package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/playproxy/internal/catalog"
	"github.com/John-Robertt/playproxy/internal/config"
	"github.com/John-Robertt/playproxy/internal/infra/httpx"
	"github.com/John-Robertt/playproxy/internal/protocol"
	"github.com/John-Robertt/playproxy/internal/telemetry"
)

// app 是一次命令执行期间共享的状态（由 PersistentPreRunE 填充）。
type app struct {
	cli config.CLIArgs
	eff config.EffectiveConfig
	tel telemetry.Telemetry
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "playproxy",
		Short:         "应用商店目录的只读查询代理",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.tel.Shutdown(ctx)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cli.ConfigPath, "config", "", "配置文件路径（默认读取 ./"+config.FileName+"，可选）")
	f.StringVar(&a.cli.Backend, "backend", "", "backend 类型：api|scraper（覆盖 API_TYPE）")
	f.StringVar(&a.cli.CacheDir, "cache-dir", "", "页面缓存目录（scraper）")
	f.StringVar(&a.cli.LogLevel, "log-level", "", "日志级别：debug|info|warn|error")

	root.AddCommand(
		newServeCmd(a),
		newSearchCmd(a),
		newDeveloperCmd(a),
		newDetailsCmd(a),
		newCacheCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	f := cmd.Flags()
	a.cli.BackendSet = f.Changed("backend")
	a.cli.CacheDirSet = f.Changed("cache-dir")
	a.cli.LogLevelSet = f.Changed("log-level")
	if f.Lookup("host") != nil {
		a.cli.HostSet = f.Changed("host")
		a.cli.PortSet = f.Changed("port")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("读取当前目录失败：%w", err)
	}
	eff, err := config.LoadEffective(cwd, a.cli, os.LookupEnv)
	if err != nil {
		return err
	}
	a.eff = eff

	if err := telemetry.InitSlog(os.Stderr, telemetry.LogOptions{Level: eff.LogLevel, Format: eff.LogFormat}); err != nil {
		return &config.Error{Code: config.ErrCodeInvalid, Err: err}
	}
	for _, src := range eff.Sources {
		slog.Debug("读取配置", "file", src)
	}

	tel, err := telemetry.Setup(cmd.Context(), telemetry.TraceOptions{
		ServiceName: "playproxy",
		Endpoint:    eff.OTLPEndpoint,
		Headers:     eff.OTLPHeaders,
	})
	if err != nil {
		return err
	}
	a.tel = tel
	return nil
}

// openBackend 按生效配置构造 backend；未知类型在这里以启动错误结束。
func (a *app) openBackend() (catalog.Backend, error) {
	hc, err := httpx.NewClient(httpx.Options{
		ProxyURL:          a.eff.ProxyURL,
		RequestsPerSecond: a.eff.RequestsPerSecond,
	})
	if err != nil {
		return nil, &config.Error{Code: config.ErrCodeInvalid, Err: err}
	}

	b, err := catalog.Default().Open(a.eff.Backend, catalog.Options{
		Credentials: protocol.Credentials{
			Email:     a.eff.Email,
			Password:  a.eff.Password,
			AndroidID: a.eff.AndroidID,
		},
		MaxLoginRetries: a.eff.MaxLoginRetries,
		RemoteURL:       a.eff.RemoteURL,
		BaseURL:         a.eff.BaseURL,
		CacheDir:        a.eff.CacheDir,
		CacheTTL:        a.eff.CacheTTL,
		HTTPClient:      hc,
	})
	if err != nil {
		return nil, &config.Error{Code: config.ErrCodeInvalid, Err: err}
	}
	slog.Info("backend 已就绪", "backend", b.Name())
	return b, nil
}
