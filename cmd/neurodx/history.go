package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/robottwo/neurodx/internal/history"
	"github.com/robottwo/neurodx/internal/session"
	"github.com/robottwo/neurodx/internal/styles"
)

const (
	maxHistoryInputWidth = 48
	defaultHistoryLimit  = 20
)

// predictionLog is the part of history.HistoryManager the history flags use.
type predictionLog interface {
	GetRecentEntries(limit int) ([]history.PredictionEntry, error)
	GetRecentEntriesByKind(kind session.Kind, limit int) ([]history.PredictionEntry, error)
	DeleteEntry(id uint) error
	ResetHistory() error
	GetTotalCount() (int64, error)
}

type historyRequest struct {
	limit    int
	kind     string
	deleteID uint
	clear    bool
}

func historyRequestFromFlags() historyRequest {
	return historyRequest{
		limit:    *historyLimit,
		kind:     *historyKind,
		deleteID: *historyDelete,
		clear:    *clearHistory,
	}
}

func usesHistory() bool {
	req := historyRequestFromFlags()
	return req.limit > 0 || req.kind != "" || req.deleteID > 0 || req.clear
}

// runHistory serves -clear-history, -history-delete and -history, in that
// order of precedence.
func runHistory(w io.Writer, log predictionLog, req historyRequest) error {
	if req.clear {
		if err := log.ResetHistory(); err != nil {
			return fmt.Errorf("failed to clear prediction log: %w", err)
		}
		fmt.Fprintln(w, "Prediction log cleared.")
		return nil
	}

	if req.deleteID > 0 {
		if err := log.DeleteEntry(req.deleteID); err != nil {
			return err
		}
		fmt.Fprintf(w, "Removed prediction %d.\n", req.deleteID)
		return nil
	}

	limit := req.limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var (
		entries []history.PredictionEntry
		err     error
	)
	switch kind := session.Kind(req.kind); kind {
	case "":
		entries, err = log.GetRecentEntries(limit)
	case session.KindSymptoms, session.KindImage:
		entries, err = log.GetRecentEntriesByKind(kind, limit)
	default:
		return fmt.Errorf("unknown history kind %q, expected %s or %s", req.kind, session.KindSymptoms, session.KindImage)
	}
	if err != nil {
		return err
	}

	total, err := log.GetTotalCount()
	if err != nil {
		return err
	}

	printHistory(w, entries, total)
	return nil
}

// printHistory writes entries oldest first so the newest ends up nearest the
// prompt. entries arrive newest first.
func printHistory(w io.Writer, entries []history.PredictionEntry, total int64) {
	if len(entries) == 0 {
		fmt.Fprintln(w, styles.HINT("No predictions recorded yet."))
		return
	}

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]

		outcome := styles.RESULT(entry.Disease)
		if entry.Failed {
			outcome = styles.ERROR("failed")
		}

		fmt.Fprintf(w, "%5d  %-8s %-*s  %s  %s\n",
			entry.ID,
			entry.Kind,
			maxHistoryInputWidth,
			runewidth.Truncate(entry.Input, maxHistoryInputWidth, "…"),
			outcome,
			styles.HINT(humanize.Time(entry.CreatedAt)),
		)
	}

	fmt.Fprintln(w, styles.HINT(fmt.Sprintf("Showing %d of %s predictions.", len(entries), humanize.Comma(total))))
}
