package pipeline

import (
	"errors"

	"mediafold/internal/reaper"
)

// Outcome classifies one media item within a sync.
type Outcome string

const (
	OutcomeMoved   Outcome = "moved"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// ItemOutcome is the fate of one media item.
type ItemOutcome struct {
	MediaID         int64
	ContentID       int64
	TermID          int64
	Outcome         Outcome
	From            string
	To              string
	Reason          string
	VariantFailures int
	Err             error
}

// Summary is the operator-facing result of one or more syncs.
type Summary struct {
	RequestID          string
	Moved              int
	Skipped            int
	Failed             int
	VariantFailures    int
	DocumentsRewritten int
	Unresolved         int
	Localized          int
	LocalizeFailed     int
	Items              []ItemOutcome
	Errors             []error
}

func (s *Summary) record(item ItemOutcome) {
	switch item.Outcome {
	case OutcomeMoved:
		s.Moved++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
	s.VariantFailures += item.VariantFailures
	s.Items = append(s.Items, item)
}

// Merge folds other into s. The request id of s is kept.
func (s *Summary) Merge(other Summary) {
	s.Moved += other.Moved
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	s.VariantFailures += other.VariantFailures
	s.DocumentsRewritten += other.DocumentsRewritten
	s.Unresolved += other.Unresolved
	s.Localized += other.Localized
	s.LocalizeFailed += other.LocalizeFailed
	s.Items = append(s.Items, other.Items...)
	s.Errors = append(s.Errors, other.Errors...)
}

// Err joins every recorded error.
func (s Summary) Err() error {
	return errors.Join(s.Errors...)
}

// ReapSummary is the result of a permanent delete.
type ReapSummary struct {
	RequestID string
	ContentID int64
	Deleted   int
	Retained  int
	Verdicts  []reaper.Verdict
	Errors    []error
}

func (s *ReapSummary) record(v reaper.Verdict, err error) {
	switch v.Decision {
	case reaper.DecisionDeleted:
		s.Deleted++
	default:
		s.Retained++
	}
	s.Verdicts = append(s.Verdicts, v)
	if err != nil {
		s.Errors = append(s.Errors, err)
	}
}
