package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/playproxy/internal/catalog"
	"github.com/John-Robertt/playproxy/internal/domain"
)

func newSearchCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <prefix>",
		Short: "按包名前缀搜索",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runList(cmd, asJSON, "搜索 "+args[0], func(ctx context.Context, b catalog.Backend) ([]domain.Item, error) {
				return b.Search(ctx, args[0])
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "输出 JSON（stdout 非终端时默认）")
	return cmd
}

func newDeveloperCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "developer <name>",
		Short: "列出某个开发者的应用（仅 scraper）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runList(cmd, asJSON, "查询开发者 "+args[0], func(ctx context.Context, b catalog.Backend) ([]domain.Item, error) {
				return b.Developer(ctx, args[0])
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "输出 JSON（stdout 非终端时默认）")
	return cmd
}

func newDetailsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "details <package>",
		Short: "查询单个应用详情",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend()
			if err != nil {
				return err
			}

			stop := withSpinner(cmd.Context(), cmd.ErrOrStderr(), "查询详情 "+args[0])
			item, ok, err := b.Details(cmd.Context(), args[0])
			stop()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON || !isTTY(out) {
				if !ok {
					return writeJSON(out, nil)
				}
				return writeJSON(out, item)
			}
			if !ok {
				fmt.Fprintf(out, "%s 未找到 %q\n", dim("○"), args[0])
				return nil
			}
			printDetails(out, item)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "输出 JSON（stdout 非终端时默认）")
	return cmd
}

func (a *app) runList(cmd *cobra.Command, asJSON bool, desc string, query func(context.Context, catalog.Backend) ([]domain.Item, error)) error {
	b, err := a.openBackend()
	if err != nil {
		return err
	}

	stop := withSpinner(cmd.Context(), cmd.ErrOrStderr(), desc)
	items, err := query(cmd.Context(), b)
	stop()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON || !isTTY(out) {
		return writeJSON(out, items)
	}
	printItems(out, items)
	return nil
}
