package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var apply bool
	var minAge time.Duration
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "List storage files no media record claims",
		Long: "Walk the storage root and list every file that is not the main file, a size\n" +
			"variant, or the preserved original of a media record. With --apply, files older\n" +
			"than the safety age are deleted and emptied directories pruned.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				age := rt.cfg.SweepMinAge()
				if cmd.Flags().Changed("min-age") {
					age = minAge
				}
				report, err := rt.pipeline.Sweep(runCtx, age, apply)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, report)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				if len(report.Unknown) > 0 {
					rows := make([][]string, 0, len(report.Unknown))
					for _, f := range report.Unknown {
						rows = append(rows, []string{
							f.RelPath,
							humanize.Bytes(uint64(f.Size)),
							humanize.Time(f.ModTime),
							paint(sweepState(f), colorize),
						})
					}
					fmt.Fprintln(out, renderTable([]tableColumn{
						{header: "File", maxWidth: 80},
						{header: "Size", align: alignRight},
						{header: "Modified"},
						{header: "State"},
					}, rows, ""))
				}
				fmt.Fprintf(out, "Scanned %s file(s), %d unknown\n", humanize.Comma(int64(report.FilesScanned)), len(report.Unknown))
				if apply {
					fmt.Fprintf(out, "Deleted %d file(s), reclaimed %s, pruned %d director(ies)\n",
						report.FilesDeleted, humanize.Bytes(uint64(report.BytesReclaimed)), len(report.Pruned))
				} else if len(report.Unknown) > 0 {
					fmt.Fprintln(out, "Dry run; pass --apply to delete files older than the safety age")
				}
				for _, msg := range report.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "sweep: %s\n", msg)
				}
				if len(report.Errors) > 0 {
					return fmt.Errorf("sweep finished with %d error(s)", len(report.Errors))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Delete unknown files older than the safety age")
	cmd.Flags().DurationVar(&minAge, "min-age", 0, "Override orphans.sweep_min_age_hours (for example 48h)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	return cmd
}
