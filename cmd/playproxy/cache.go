package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/playproxy/internal/infra/cache"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "管理 scraper 的页面缓存",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "size",
			Short: "显示缓存条目数与占用空间",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store := cache.New(a.eff.CacheDir, a.eff.CacheTTL)
				bytes, entries, err := store.Size()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s：%s 条，%s\n", green("●"), store.Dir, bold(entries), humanize.IBytes(uint64(bytes)))
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "删除全部缓存条目",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store := cache.New(a.eff.CacheDir, a.eff.CacheTTL)
				n, err := store.Clear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s 已删除 %s 条缓存\n", green("●"), bold(n))
				return nil
			},
		},
	)
	return cmd
}
