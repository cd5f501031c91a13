package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/John-Robertt/playproxy/internal/domain"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printItems(w io.Writer, items []domain.Item) {
	if len(items) == 0 {
		fmt.Fprintf(w, "%s 没有结果\n", dim("○"))
		return
	}
	fmt.Fprintf(w, "\n共 %s 条结果\n\n", green(len(items)))
	for _, it := range items {
		fmt.Fprintf(w, "%s %s %s\n", green("●"), bold(it.PackageName), dim(it.Title))
		fmt.Fprintf(w, "  %s %s\n", cyan("creator:"), it.Creator)
		if it.Ratings != nil {
			fmt.Fprintf(w, "  %s %s (%d)\n", cyan("rating:"), yellow(fmt.Sprintf("%.1f", it.Ratings.Stars)), it.Ratings.Total)
		}
		fmt.Fprintf(w, "  %s %s\n\n", cyan("url:"), dim(it.ShareURL))
	}
}

func printDetails(w io.Writer, it domain.Item) {
	fmt.Fprintf(w, "%s %s\n", green("●"), bold(it.Title))
	field := func(k, v string) {
		if strings.TrimSpace(v) != "" {
			fmt.Fprintf(w, "  %s %s\n", cyan(k+":"), v)
		}
	}
	field("package", it.PackageName)
	field("creator", it.Creator)
	if it.DeveloperName != nil {
		field("developer", *it.DeveloperName)
	}
	if it.DeveloperWebsite != nil {
		field("website", *it.DeveloperWebsite)
	}
	if it.VersionString != nil {
		field("version", *it.VersionString)
	}
	if it.VersionCode != nil {
		field("version_code", fmt.Sprint(*it.VersionCode))
	}
	field("updated", it.UploadDate)
	if it.NumDownloads != nil {
		field("downloads", fmt.Sprint(*it.NumDownloads))
	}
	field("downloads", it.DownloadCount)
	if len(it.Genres) > 0 {
		field("genres", strings.Join(it.Genres, ", "))
	}
	if r := it.Ratings; r != nil {
		fmt.Fprintf(w, "  %s %s / %d 条评分\n", cyan("rating:"), yellow(fmt.Sprintf("%.2f", r.Stars)), r.Total)
		for star := domain.MaxStars; star >= 1; star-- {
			fmt.Fprintf(w, "    %d★ %d\n", int(star), r.Count.Get(int(star)))
		}
	}
	if len(it.Images) > 0 {
		field("images", fmt.Sprint(len(it.Images)))
	}
	field("url", dim(it.ShareURL))
}
