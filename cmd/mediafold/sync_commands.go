package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mediafold/internal/pipeline"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "sync [content-id...]",
		Short: "Move media of the given content into their canonical folders",
		Long: "Run the save event for each content item: localise remote images, move attached media\n" +
			"into the planned folder, update metadata, and rewrite every body that references them.\n" +
			"With --all, every non-trashed content item and every term attachment is synced.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("give content ids or --all, not both")
			}
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg, "content")
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				var summary pipeline.Summary
				if all {
					s, err := rt.pipeline.SyncAll(runCtx)
					if err != nil {
						return err
					}
					summary = s
				} else {
					for i, id := range ids {
						s, err := rt.pipeline.SyncContent(runCtx, id)
						if err != nil {
							// Reported with the batch; later ids still run.
							s.Errors = append(s.Errors, err)
						}
						if i == 0 {
							summary = s
							continue
						}
						summary.Merge(s)
					}
				}
				return reportSummary(cmd, summary, jsonOut)
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Sync every content item and term attachment")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the summary as JSON")
	return cmd
}

func newSyncTermCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "sync-term <term-id>",
		Short: "Move media attached to a taxonomy term into the term's folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "term")
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				summary, err := rt.pipeline.SyncTerm(runCtx, id)
				if err != nil {
					return err
				}
				return reportSummary(cmd, summary, jsonOut)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the summary as JSON")
	return cmd
}

func reportSummary(cmd *cobra.Command, summary pipeline.Summary, jsonOut bool) error {
	if jsonOut {
		if err := writeJSON(cmd, newSummaryView(summary)); err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
	} else {
		out := cmd.OutOrStdout()
		renderSummary(out, summary, shouldColorize(out))
	}
	return summaryError(summary)
}
