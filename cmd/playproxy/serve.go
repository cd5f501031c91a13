package main

import (
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/John-Robertt/playproxy/internal/server"
	"github.com/John-Robertt/playproxy/internal/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务（/search/{prefix}、/developer/{name}、/details/{package}）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			if err := telemetry.RegisterBuildInfo(otel.GetMeterProvider(), telemetry.BuildInfo{Version: version, BuiltAt: builtAt}); err != nil {
				return err
			}
			s, err := server.New(b, server.Options{CORSOrigins: a.eff.CORSOrigins})
			if err != nil {
				return err
			}
			return s.ListenAndServe(cmd.Context(), a.eff.Addr())
		},
	}
	cmd.Flags().StringVar(&a.cli.Host, "host", "", "监听地址（覆盖 HTTP_HOST）")
	cmd.Flags().IntVar(&a.cli.Port, "port", 0, "监听端口（覆盖 HTTP_PORT）")
	return cmd
}
