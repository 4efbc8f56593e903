package main

import (
	"fmt"
	"io"
	"strconv"

	"mediafold/internal/pipeline"
	"mediafold/internal/reaper"
)

type itemView struct {
	MediaID         int64  `json:"media_id"`
	ContentID       int64  `json:"content_id,omitempty"`
	TermID          int64  `json:"term_id,omitempty"`
	Outcome         string `json:"outcome"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
	Reason          string `json:"reason,omitempty"`
	VariantFailures int    `json:"variant_failures,omitempty"`
	Error           string `json:"error,omitempty"`
}

type summaryView struct {
	RequestID          string     `json:"request_id"`
	Moved              int        `json:"moved"`
	Skipped            int        `json:"skipped"`
	Failed             int        `json:"failed"`
	VariantFailures    int        `json:"variant_failures"`
	DocumentsRewritten int        `json:"documents_rewritten"`
	Unresolved         int        `json:"unresolved"`
	Localized          int        `json:"localized"`
	LocalizeFailed     int        `json:"localize_failed"`
	Items              []itemView `json:"items"`
	Errors             []string   `json:"errors,omitempty"`
}

func newSummaryView(s pipeline.Summary) summaryView {
	view := summaryView{
		RequestID:          s.RequestID,
		Moved:              s.Moved,
		Skipped:            s.Skipped,
		Failed:             s.Failed,
		VariantFailures:    s.VariantFailures,
		DocumentsRewritten: s.DocumentsRewritten,
		Unresolved:         s.Unresolved,
		Localized:          s.Localized,
		LocalizeFailed:     s.LocalizeFailed,
		Items:              make([]itemView, 0, len(s.Items)),
	}
	for _, item := range s.Items {
		view.Items = append(view.Items, itemView{
			MediaID:         item.MediaID,
			ContentID:       item.ContentID,
			TermID:          item.TermID,
			Outcome:         string(item.Outcome),
			From:            item.From,
			To:              item.To,
			Reason:          item.Reason,
			VariantFailures: item.VariantFailures,
			Error:           errorText(item.Err),
		})
	}
	for _, err := range s.Errors {
		view.Errors = append(view.Errors, err.Error())
	}
	return view
}

func renderSummary(w io.Writer, s pipeline.Summary, colorize bool) {
	if len(s.Items) > 0 {
		rows := make([][]string, 0, len(s.Items))
		for _, item := range s.Items {
			owner := ""
			switch {
			case item.ContentID != 0:
				owner = "content " + strconv.FormatInt(item.ContentID, 10)
			case item.TermID != 0:
				owner = "term " + strconv.FormatInt(item.TermID, 10)
			}
			detail := item.Reason
			if item.Err != nil {
				detail = errorText(item.Err)
			}
			rows = append(rows, []string{
				strconv.FormatInt(item.MediaID, 10),
				owner,
				paint(string(item.Outcome), colorize),
				item.From,
				item.To,
				detail,
			})
		}
		fmt.Fprintln(w, renderTable([]tableColumn{
			{header: "Media", align: alignRight},
			{header: "Owner"},
			{header: "Outcome"},
			{header: "From", maxWidth: 60},
			{header: "To", maxWidth: 60},
			{header: "Detail", maxWidth: 60},
		}, rows, ""))
	}
	fmt.Fprintf(w, "Moved %d, skipped %d, failed %d; %d variant failure(s)\n", s.Moved, s.Skipped, s.Failed, s.VariantFailures)
	fmt.Fprintf(w, "Documents rewritten %d, unresolved references %d\n", s.DocumentsRewritten, s.Unresolved)
	if s.Localized > 0 || s.LocalizeFailed > 0 {
		fmt.Fprintf(w, "Remote images localised %d, failed %d\n", s.Localized, s.LocalizeFailed)
	}
	fmt.Fprintf(w, "Request %s\n", s.RequestID)
}

// summaryError turns recorded failures into the command's exit error.
func summaryError(s pipeline.Summary) error {
	if len(s.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("sync finished with %d error(s), first: %w", len(s.Errors), s.Errors[0])
}

type verdictView struct {
	MediaID  int64    `json:"media_id"`
	Decision string   `json:"decision"`
	Reason   string   `json:"reason,omitempty"`
	Removed  []string `json:"removed,omitempty"`
	Pruned   []string `json:"pruned,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type reapView struct {
	RequestID string        `json:"request_id"`
	ContentID int64         `json:"content_id"`
	Deleted   int           `json:"deleted"`
	Retained  int           `json:"retained"`
	Verdicts  []verdictView `json:"verdicts"`
	Errors    []string      `json:"errors,omitempty"`
}

func newReapView(s pipeline.ReapSummary) reapView {
	view := reapView{
		RequestID: s.RequestID,
		ContentID: s.ContentID,
		Deleted:   s.Deleted,
		Retained:  s.Retained,
		Verdicts:  make([]verdictView, 0, len(s.Verdicts)),
	}
	for _, v := range s.Verdicts {
		view.Verdicts = append(view.Verdicts, verdictView{
			MediaID:  v.MediaID,
			Decision: string(v.Decision),
			Reason:   v.Reason,
			Removed:  v.Removed,
			Pruned:   v.Pruned,
			Error:    errorText(v.Err),
		})
	}
	for _, err := range s.Errors {
		view.Errors = append(view.Errors, err.Error())
	}
	return view
}

func renderReap(w io.Writer, s pipeline.ReapSummary, colorize bool) {
	if len(s.Verdicts) > 0 {
		rows := make([][]string, 0, len(s.Verdicts))
		for _, v := range s.Verdicts {
			reason := v.Reason
			if v.Err != nil {
				reason = errorText(v.Err)
			}
			rows = append(rows, []string{
				strconv.FormatInt(v.MediaID, 10),
				paint(string(v.Decision), colorize),
				strconv.Itoa(len(v.Removed)),
				reason,
			})
		}
		fmt.Fprintln(w, renderTable([]tableColumn{
			{header: "Media", align: alignRight},
			{header: "Decision"},
			{header: "Files", align: alignRight},
			{header: "Reason", maxWidth: 70},
		}, rows, ""))
	}
	fmt.Fprintf(w, "Content %d deleted; media deleted %d, retained %d\n", s.ContentID, s.Deleted, s.Retained)
	fmt.Fprintf(w, "Request %s\n", s.RequestID)
}

func sweepState(f reaper.SweepFile) string {
	switch {
	case f.Deleted:
		return "deleted"
	case f.Young:
		return "young"
	default:
		return "unknown"
	}
}
