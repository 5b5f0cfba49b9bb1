package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"webar/internal/api"
	"webar/internal/catalog"
	"webar/internal/registry"
	"webar/internal/services"
)

func newAssetCommand(ctx *commandContext) *cobra.Command {
	assetCmd := &cobra.Command{
		Use:     "asset",
		Aliases: []string{"assets", "model"},
		Short:   "Manage uploaded 3D assets",
	}
	assetCmd.AddCommand(newAssetAddCommand(ctx))
	assetCmd.AddCommand(newAssetListCommand(ctx))
	assetCmd.AddCommand(newAssetShowCommand(ctx))
	assetCmd.AddCommand(newAssetDeleteCommand(ctx))
	assetCmd.AddCommand(newAssetURLCommand(ctx))
	return assetCmd
}

func newAssetAddCommand(ctx *commandContext) *cobra.Command {
	var name string
	var noWait bool
	var copyURL bool

	cmd := &cobra.Command{
		Use:   "add <file.glb>",
		Short: "Upload a GLB file and generate its USDZ variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(args[0])
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			filename := filepath.Base(path)
			limits := catalog.UploadLimits{
				MaxBytes:          cfg.Server.MaxUploadBytes,
				AllowedExtensions: cfg.Server.AllowedExtensions,
			}
			if err := catalog.ValidateUpload(filename, data, limits); err != nil {
				return err
			}

			return ctx.withAssets(func(assets assetSource) error {
				view, err := assets.Add(cmd.Context(), catalog.CreateRequest{
					Data:     data,
					Name:     name,
					Filename: filename,
				}, !noWait)
				if err != nil {
					return err
				}
				if copyURL {
					if err := clipboard.WriteAll(view.ViewURL); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warn: could not copy to clipboard: %v\n", err)
					}
				}
				if done, err := writeStructured(cmd, ctx.outputFormat(), view); done || err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderAssetDetail(view, shouldColorize(cmd.OutOrStdout())))
				if view.Status == string(registry.StatusConverting) {
					fmt.Fprintln(cmd.OutOrStdout(), "The daemon is converting this asset; check it with `webar asset show`.")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (defaults to one derived from the filename)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return once the running daemon has accepted the upload")
	cmd.Flags().BoolVar(&copyURL, "copy-url", false, "Copy the viewer URL to the clipboard")
	return cmd
}

func newAssetListCommand(ctx *commandContext) *cobra.Command {
	var page, limit int
	var search, status string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List assets, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := registry.ListOptions{Page: page, Limit: limit, Search: search}
			if strings.TrimSpace(status) != "" {
				parsed, ok := registry.ParseStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q (want converting, ready, or failed)", status)
				}
				opts.Status = parsed
			}
			opts = opts.Normalized()

			return ctx.withAssets(func(assets assetSource) error {
				list, err := assets.List(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, ctx.outputFormat(), list); done || err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(list.Items) == 0 {
					fmt.Fprintln(out, "No assets found")
					return nil
				}
				fmt.Fprintln(out, renderAssetTable(list.Items))
				fmt.Fprintf(out, "Page %d of %d (%d total)\n", list.Pagination.Page, max(list.Pagination.Pages, 1), list.Pagination.Total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "Assets per page (max 100)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by name, slug, or filename")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (converting, ready, failed)")
	return cmd
}

func newAssetShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|slug>",
		Short: "Show one asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAssets(func(assets assetSource) error {
				view, err := assets.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, ctx.outputFormat(), view); done || err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderAssetDetail(view, shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
}

func newAssetDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an asset, its files, and its backend copy",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid asset id %q", args[0])
			}
			return ctx.withAssets(func(assets assetSource) error {
				if err := assets.Delete(cmd.Context(), id); err != nil {
					if errors.Is(err, services.ErrNotFound) {
						return fmt.Errorf("asset %d not found", id)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted asset %d\n", id)
				return nil
			})
		},
	}
}

func newAssetURLCommand(ctx *commandContext) *cobra.Command {
	var copyURL bool
	var format string

	cmd := &cobra.Command{
		Use:   "url <id|slug>",
		Short: "Print the public viewer or file URL of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAssets(func(assets assetSource) error {
				view, err := assets.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				target := view.ViewURL
				switch strings.ToLower(strings.TrimSpace(format)) {
				case "", "view":
				case "glb":
					target = view.GLBURL
				case "usdz":
					if view.USDZURL == nil {
						return fmt.Errorf("asset %s has no USDZ variant (status %s)", view.Slug, view.Status)
					}
					target = *view.USDZURL
				default:
					return fmt.Errorf("unknown format %q (want view, glb, or usdz)", format)
				}
				if copyURL {
					if err := clipboard.WriteAll(target); err != nil {
						return fmt.Errorf("copy to clipboard: %w", err)
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), target)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&copyURL, "copy", false, "Also copy the URL to the clipboard")
	cmd.Flags().StringVarP(&format, "format", "f", "view", "URL kind: view, glb, or usdz")
	return cmd
}

var assetColumns = []column{
	{title: "ID", align: text.AlignRight},
	{title: "Slug"},
	{title: "Name"},
	{title: "Status"},
	{title: "USDZ"},
	{title: "Size", align: text.AlignRight},
	{title: "Created"},
}

func renderAssetTable(items []api.Asset) string {
	rows := make([][]string, 0, len(items))
	for _, asset := range items {
		created := asset.CreatedAt
		if ts, err := time.Parse(time.RFC3339, asset.CreatedAt); err == nil {
			created = humanize.Time(ts)
		}
		rows = append(rows, []string{
			strconv.FormatInt(asset.ID, 10),
			asset.Slug,
			asset.Name,
			asset.Status,
			yesNo(asset.USDZReady),
			humanize.IBytes(uint64(asset.SizeBytes)),
			created,
		})
	}
	return renderTable(assetColumns, rows)
}

func renderAssetDetail(view api.Asset, colorize bool) string {
	var b strings.Builder
	for _, line := range renderSectionHeader(fmt.Sprintf("Asset %d", view.ID), colorize) {
		b.WriteString(line + "\n")
	}
	b.WriteString(renderStatusLine("Status", assetStatusKind(view), view.Status, colorize) + "\n")

	usdz := "not available"
	if view.USDZURL != nil {
		usdz = *view.USDZURL
	}
	created := view.CreatedAt
	if ts, err := time.Parse(time.RFC3339, view.CreatedAt); err == nil {
		created = fmt.Sprintf("%s (%s)", view.CreatedAt, humanize.Time(ts))
	}
	rows := [][]string{
		{"Name", view.Name},
		{"Slug", view.Slug},
		{"Size", humanize.IBytes(uint64(view.SizeBytes))},
		{"File", view.OriginalFilename},
		{"Viewer", view.ViewURL},
		{"GLB", view.GLBURL},
		{"USDZ", usdz},
		{"Created", created},
	}
	if view.Backend != "" {
		rows = append(rows, []string{"Backend", view.Backend + " " + view.BackendURL})
	}
	if view.Diagnostics != "" {
		rows = append(rows, []string{"Diagnostics", view.Diagnostics})
	}
	b.WriteString(renderTable([]column{{title: "Field"}, {title: "Value"}}, rows))
	b.WriteString("\n")
	return b.String()
}

func assetStatusKind(view api.Asset) statusKind {
	switch registry.Status(view.Status) {
	case registry.StatusReady:
		if view.USDZReady {
			return statusOK
		}
		return statusWarn
	case registry.StatusFailed:
		return statusError
	default:
		return statusInfo
	}
}
