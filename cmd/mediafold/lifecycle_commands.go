package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newLifecycleCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStatusCommand(ctx, "trash", "Move a content item to the trash", func(runCtx context.Context, rt *runtime, id int64) error {
			return rt.pipeline.TrashContent(runCtx, id)
		}, "Content %d moved to trash\n"),
		newStatusCommand(ctx, "restore", "Restore a trashed content item", func(runCtx context.Context, rt *runtime, id int64) error {
			return rt.pipeline.RestoreContent(runCtx, id)
		}, "Content %d restored\n"),
		newDeleteCommand(ctx),
	}
}

func newStatusCommand(ctx *commandContext, use, short string, apply func(context.Context, *runtime, int64) error, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <content-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "content")
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				if err := apply(runCtx, rt, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), done, id)
				return nil
			})
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "delete <content-id>",
		Short: "Permanently delete a trashed content item and reap its orphaned media",
		Long: "Permanently delete a content item that is already in the trash. When\n" +
			"orphans.delete_on_content_delete is set, each attached media item that no other\n" +
			"content references is deleted with all its files; the rest become unattached.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "content")
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				summary, err := rt.pipeline.DeleteContent(runCtx, id)
				if err != nil {
					return err
				}
				if jsonOut {
					if err := writeJSON(cmd, newReapView(summary)); err != nil {
						return fmt.Errorf("encode summary: %w", err)
					}
				} else {
					out := cmd.OutOrStdout()
					renderReap(out, summary, shouldColorize(out))
				}
				if len(summary.Errors) > 0 {
					return fmt.Errorf("delete finished with %d error(s), first: %w", len(summary.Errors), summary.Errors[0])
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the verdicts as JSON")
	return cmd
}
