package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediafold/internal/planner"
)

type planRow struct {
	MediaID   int64    `json:"media_id"`
	Current   string   `json:"current"`
	Planned   string   `json:"planned"`
	Canonical bool     `json:"canonical"`
	Notes     []string `json:"notes,omitempty"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "plan <content-id>",
		Short: "Show where each attached media file would be moved, without moving anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "content")
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				content, err := rt.store.GetContent(runCtx, id)
				if err != nil {
					return fmt.Errorf("load content %d: %w", id, err)
				}
				if content == nil {
					return fmt.Errorf("content %d not found", id)
				}
				items, err := rt.store.ListMediaByParent(runCtx, id)
				if err != nil {
					return fmt.Errorf("list media of content %d: %w", id, err)
				}

				settings := rt.pipeline.Settings()
				rows := make([]planRow, 0, len(items))
				for _, item := range items {
					planned, problems := planner.Explain(content, item, settings)
					row := planRow{
						MediaID:   item.ID,
						Current:   item.Spec(settings).RelPath(),
						Planned:   planned.RelPath(),
						Canonical: planner.IsCanonicalPath(item, content, settings),
					}
					for _, problem := range problems {
						row.Notes = append(row.Notes, problem.Error())
					}
					rows = append(rows, row)
				}

				if jsonOut {
					return writeJSON(cmd, rows)
				}
				out := cmd.OutOrStdout()
				if content.Trashed() {
					fmt.Fprintf(out, "Content %d is in the trash; sync would leave its media in place\n", id)
				}
				if len(rows) == 0 {
					fmt.Fprintf(out, "Content %d has no attached media\n", id)
					return nil
				}
				colorize := shouldColorize(out)
				table := make([][]string, 0, len(rows))
				for _, row := range rows {
					canonical := yesNo(row.Canonical)
					if !row.Canonical && colorize {
						canonical = ansiYellow + canonical + ansiReset
					}
					table = append(table, []string{
						strconv.FormatInt(row.MediaID, 10),
						row.Current,
						row.Planned,
						canonical,
						strings.Join(row.Notes, "; "),
					})
				}
				fmt.Fprintln(out, renderTable([]tableColumn{
					{header: "Media", align: alignRight},
					{header: "Current", maxWidth: 60},
					{header: "Planned", maxWidth: 60},
					{header: "Canonical"},
					{header: "Notes", maxWidth: 50},
				}, table, fmt.Sprintf("Content %d (%s)", content.ID, content.Slug)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the plan as JSON")
	return cmd
}
