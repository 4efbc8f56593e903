package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediafold/internal/config"
	"mediafold/internal/store"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Load, dump, and inspect the content and media catalog",
	}

	catalogCmd.AddCommand(newCatalogImportCommand(ctx))
	catalogCmd.AddCommand(newCatalogExportCommand(ctx))
	catalogCmd.AddCommand(newCatalogListCommand(ctx))

	return catalogCmd
}

func newCatalogImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Upsert terms, content, media, and term attachments from a JSON catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve catalog path: %w", err)
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer file.Close()
			catalog, err := store.DecodeCatalog(file)
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				stats, err := rt.store.Import(runCtx, catalog)
				if err != nil {
					return fmt.Errorf("import catalog: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d term(s), %d content item(s), %d media item(s), %d term attachment(s)\n",
					stats.Terms, stats.Content, stats.Media, stats.TermMedia)
				return nil
			})
		},
	}
}

func newCatalogExportCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole catalog as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				catalog, err := rt.store.Export(runCtx)
				if err != nil {
					return fmt.Errorf("export catalog: %w", err)
				}
				target := strings.TrimSpace(outputPath)
				if target == "" {
					return writeJSON(cmd, catalog)
				}
				if target, err = config.ExpandPath(target); err != nil {
					return fmt.Errorf("resolve output path: %w", err)
				}
				data, err := json.MarshalIndent(catalog, "", "  ")
				if err != nil {
					return fmt.Errorf("encode catalog: %w", err)
				}
				if err := os.WriteFile(target, append(data, '\n'), 0o644); err != nil {
					return fmt.Errorf("write catalog: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote catalog to %s\n", target)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every media item with its current location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				items, err := rt.store.ListMedia(runCtx)
				if err != nil {
					return fmt.Errorf("list media: %w", err)
				}
				version, err := rt.store.SchemaVersion(runCtx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Catalog has no media")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					parent := "-"
					if item.Attached() {
						parent = strconv.FormatInt(item.ParentID, 10)
					}
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						parent,
						item.RelPath,
						strconv.Itoa(len(item.Sizes)),
						item.SourceURL,
					})
				}
				fmt.Fprintln(out, renderTable([]tableColumn{
					{header: "ID", align: alignRight},
					{header: "Parent", align: alignRight},
					{header: "Path", maxWidth: 70},
					{header: "Variants", align: alignRight},
					{header: "Source", maxWidth: 50},
				}, rows, fmt.Sprintf("%d media item(s), schema %s", len(items), version)))
				return nil
			})
		},
	}
}
