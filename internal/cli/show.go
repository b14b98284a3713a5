package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/repsync/internal/state"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [today|week|<routine-id>]",
		Short: "Fetch and print routines",
		Long: `Fetch routines from the backend and print them.

With no argument, today's routine is shown.

Examples:
  repsync show
  repsync show week --format json
  repsync show 7`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "today"
			if len(args) == 1 {
				target = args[0]
			}
			return runShow(opts, target, cmd)
		},
	}

	return cmd
}

func runShow(opts *ShowOptions, target string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	var routines []state.Routine
	switch target {
	case "today":
		r, err := s.syncer.LoadToday(ctx)
		if err != nil {
			return s.formatter.Fail(ExitFailure, "failed to load today's routine", err)
		}
		if r != nil {
			routines = append(routines, *r)
		}
	case "week":
		routines, err = s.syncer.LoadWeek(ctx)
		if err != nil {
			return s.formatter.Fail(ExitFailure, "failed to load weekly routines", err)
		}
	default:
		r, err := s.syncer.LoadRoutine(ctx, state.ID(target))
		if err != nil {
			return s.formatter.Fail(ExitFailure, "failed to load routine", err)
		}
		routines = append(routines, r)
	}

	if opts.Format == "json" {
		if routines == nil {
			routines = []state.Routine{}
		}
		return s.formatter.Success(map[string]any{"routines": routines})
	}

	out := cmd.OutOrStdout()
	if len(routines) == 0 {
		fmt.Fprintln(out, "No routine scheduled.")
		return nil
	}
	for i, r := range routines {
		if i > 0 {
			fmt.Fprintln(out)
		}
		writeRoutine(out, r)
	}
	return nil
}

// writeRoutine prints a routine with one line per exercise.
func writeRoutine(w io.Writer, r state.Routine) {
	header := fmt.Sprintf("Routine %s", r.ID)
	if r.Date != "" {
		header += "  " + r.Date
	}
	if r.Title != "" {
		header += "  " + r.Title
	}
	if r.Status != "" {
		header += fmt.Sprintf(" [%s]", r.Status)
	}
	fmt.Fprintln(w, header)

	if len(r.Exercises) == 0 {
		fmt.Fprintln(w, "  (no exercises)")
		return
	}
	for _, ex := range r.Exercises {
		fmt.Fprintf(w, "  %s\n", formatExercise(ex))
	}
}

func formatExercise(ex state.Exercise) string {
	mark := "[ ]"
	if ex.Completed {
		mark = "[x]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s  %dx%s", mark, ex.ID, ex.Name, ex.Sets, ex.Reps)
	if ex.Weight != nil {
		b.WriteString(" @ " + strconv.FormatFloat(*ex.Weight, 'f', -1, 64) + "kg")
	}
	if ex.MainTarget != "" {
		fmt.Fprintf(&b, "  (%s)", ex.MainTarget)
	}
	return b.String()
}
