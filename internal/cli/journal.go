package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/repsync/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	RoutineID  string
	ExerciseID string
}

// JournalEntry is one settled operation as printed by journal.
type JournalEntry struct {
	Seq        int64           `json:"seq"`
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	RoutineID  string          `json:"routine_id"`
	ExerciseID string          `json:"exercise_id"`
	Outcome    string          `json:"outcome"`
	Error      string          `json:"error,omitempty"`
	Snapshot   json.RawMessage `json:"snapshot"`
	Result     json.RawMessage `json:"result"`
}

// JournalStats summarizes outcomes.
type JournalStats struct {
	Total      int `json:"total"`
	Committed  int `json:"committed"`
	RolledBack int `json:"rolled_back"`
	Rejected   int `json:"rejected"`
}

// JournalResult holds the complete journal output.
type JournalResult struct {
	Entries []JournalEntry `json:"entries"`
	Stats   JournalStats   `json:"stats"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print the operation journal",
		Long: `Print the settled operations recorded in the SQLite journal.

Every mutation run with a journal configured is recorded once it settles:
committed, rolled back, or rejected because another operation on the same
exercise was in flight.

Examples:
  repsync journal --journal ./repsync.db
  repsync journal --journal ./repsync.db --routine 7 --exercise 12 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RoutineID, "routine", "", "filter to one routine (requires --exercise)")
	cmd.Flags().StringVar(&opts.ExerciseID, "exercise", "", "filter to one exercise (requires --routine)")
	cmd.MarkFlagsRequiredTogether("routine", "exercise")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load config", err)
	}
	if cfg.JournalPath == "" {
		return NewExitError(ExitCommandError, "no journal: set journal_path in the config or pass --journal")
	}

	st, err := store.Open(cfg.JournalPath)
	if err != nil {
		return formatter.FailCode(ExitCommandError, ErrCodeJournal, "failed to open journal", err)
	}
	defer st.Close()

	var ops []store.Operation
	if opts.RoutineID != "" {
		ops, err = st.ReadScope(ctx, opts.RoutineID, opts.ExerciseID)
	} else {
		ops, err = st.ReadOperations(ctx)
	}
	if err != nil {
		return formatter.FailCode(ExitCommandError, ErrCodeJournal, "failed to read journal", err)
	}

	result := buildJournal(ops)
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return outputJournalText(cmd, result, opts.Verbose)
}

func buildJournal(ops []store.Operation) JournalResult {
	result := JournalResult{Entries: make([]JournalEntry, 0, len(ops))}
	for _, op := range ops {
		result.Entries = append(result.Entries, JournalEntry{
			Seq:        op.Seq,
			ID:         op.ID,
			Kind:       op.Kind,
			RoutineID:  op.RoutineID,
			ExerciseID: op.ExerciseID,
			Outcome:    string(op.Outcome),
			Error:      op.Error,
			Snapshot:   op.Snapshot,
			Result:     op.Result,
		})
		switch op.Outcome {
		case store.OutcomeCommitted:
			result.Stats.Committed++
		case store.OutcomeRolledBack:
			result.Stats.RolledBack++
		case store.OutcomeRejected:
			result.Stats.Rejected++
		}
	}
	result.Stats.Total = len(ops)
	return result
}

func outputJournalText(cmd *cobra.Command, result JournalResult, verbose bool) error {
	out := cmd.OutOrStdout()
	if len(result.Entries) == 0 {
		fmt.Fprintln(out, "Journal is empty.")
		return nil
	}

	for _, e := range result.Entries {
		fmt.Fprintf(out, "%4d  %-11s  %-6s  routine %s  exercise %s", e.Seq, e.Outcome, e.Kind, e.RoutineID, e.ExerciseID)
		if e.Error != "" {
			fmt.Fprintf(out, "  error: %s", e.Error)
		}
		fmt.Fprintln(out)
		if verbose {
			fmt.Fprintf(out, "      snapshot: %s\n      result:   %s\n", e.Snapshot, e.Result)
		}
	}

	fmt.Fprintf(out, "\n%d operation(s): %d committed, %d rolled back, %d rejected\n",
		result.Stats.Total, result.Stats.Committed, result.Stats.RolledBack, result.Stats.Rejected)
	return nil
}
