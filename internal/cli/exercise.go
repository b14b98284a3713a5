package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/repsync/internal/state"
)

// ExerciseOptions holds flags for the add and update commands.
type ExerciseOptions struct {
	*RootOptions
	Name       string
	Sets       int
	Reps       string
	Weight     float64
	MainTarget string
	SubTargets []string

	// ClearWeight is only bound on update.
	ClearWeight bool
}

func (o *ExerciseOptions) bind(flags *pflag.FlagSet) {
	flags.StringVar(&o.Name, "name", "", "exercise name")
	flags.IntVar(&o.Sets, "sets", 0, "number of sets")
	flags.StringVar(&o.Reps, "reps", "", `repetitions per set (e.g. "10" or "8-12")`)
	flags.Float64Var(&o.Weight, "weight", 0, "weight in kg")
	flags.StringVar(&o.MainTarget, "target", "", "main target muscle")
	flags.StringSliceVar(&o.SubTargets, "sub-target", nil, "secondary target muscles")
}

// exercise builds a new exercise from the flags. Weight is set only when
// the flag was given.
func (o *ExerciseOptions) exercise(flags *pflag.FlagSet) state.Exercise {
	ex := state.Exercise{
		Name:       o.Name,
		Sets:       o.Sets,
		Reps:       state.Reps(o.Reps),
		MainTarget: o.MainTarget,
		SubTargets: o.SubTargets,
	}
	if flags.Changed("weight") {
		w := o.Weight
		ex.Weight = &w
	}
	return ex
}

// patch builds a patch holding only the flags that were given.
func (o *ExerciseOptions) patch(flags *pflag.FlagSet) state.Patch {
	var p state.Patch
	if flags.Changed("name") {
		p.Name = &o.Name
	}
	if flags.Changed("sets") {
		p.Sets = &o.Sets
	}
	if flags.Changed("reps") {
		reps := state.Reps(o.Reps)
		p.Reps = &reps
	}
	if flags.Changed("weight") {
		p.Weight = &o.Weight
	}
	p.ClearWeight = o.ClearWeight
	if flags.Changed("target") {
		p.MainTarget = &o.MainTarget
	}
	if flags.Changed("sub-target") {
		p.SubTargets = &o.SubTargets
	}
	return p
}

// NewToggleCommand creates the toggle command.
func NewToggleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <routine-id> <exercise-id>",
		Short: "Toggle an exercise's completed flag",
		Long: `Toggle an exercise between completed and not completed.

Example:
  repsync toggle 7 12`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rid, eid := state.ID(args[0]), state.ID(args[1])
			return runMutation(rootOpts, cmd, rid, "toggle", func(s *session) (any, error) {
				if err := s.syncer.ToggleCompleted(commandContext(cmd), rid, eid); err != nil {
					return nil, err
				}
				return s.syncer.Store().Exercise(rid, eid)
			})
		},
	}
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExerciseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <routine-id>",
		Short: "Append an exercise to a routine",
		Long: `Append an exercise to the end of a routine.

Example:
  repsync add 7 --name "Calf Raise" --sets 4 --reps 12 --weight 40`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rid := state.ID(args[0])
			return runMutation(rootOpts, cmd, rid, "add", func(s *session) (any, error) {
				return s.syncer.AddExercise(commandContext(cmd), rid, opts.exercise(cmd.Flags()))
			})
		},
	}

	opts.bind(cmd.Flags())
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExerciseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <routine-id> <exercise-id>",
		Short: "Change fields of an exercise",
		Long: `Change fields of an exercise. Only the flags given are sent.

Example:
  repsync update 7 12 --sets 5 --weight 62.5`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rid, eid := state.ID(args[0]), state.ID(args[1])
			return runMutation(rootOpts, cmd, rid, "update", func(s *session) (any, error) {
				return s.syncer.UpdateExercise(commandContext(cmd), rid, eid, opts.patch(cmd.Flags()))
			})
		},
	}

	opts.bind(cmd.Flags())
	cmd.Flags().BoolVar(&opts.ClearWeight, "clear-weight", false, "remove the weight (bodyweight exercise)")
	cmd.MarkFlagsMutuallyExclusive("weight", "clear-weight")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <routine-id> <exercise-id>",
		Short: "Remove an exercise from a routine",
		Long: `Remove an exercise from a routine.

Example:
  repsync delete 7 12`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rid, eid := state.ID(args[0]), state.ID(args[1])
			return runMutation(rootOpts, cmd, rid, "delete", func(s *session) (any, error) {
				return nil, s.syncer.DeleteExercise(commandContext(cmd), rid, eid)
			})
		},
	}
}

// MutationResult is the JSON payload of the exercise commands.
type MutationResult struct {
	Operation string          `json:"operation"`
	Exercise  *state.Exercise `json:"exercise,omitempty"`
	Routine   state.Routine   `json:"routine"`
}

// runMutation loads the routine, runs mutate and prints the routine as the
// store holds it afterwards.
func runMutation(opts *RootOptions, cmd *cobra.Command, routineID state.ID, name string, mutate func(*session) (any, error)) error {
	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.syncer.LoadRoutine(ctx, routineID); err != nil {
		return s.formatter.Fail(ExitFailure, "failed to load routine", err)
	}

	out, err := mutate(s)
	if err != nil {
		return s.formatter.Fail(ExitFailure, name+" failed", err)
	}

	result := MutationResult{Operation: name}
	if ex, ok := out.(state.Exercise); ok {
		result.Exercise = &ex
	}
	result.Routine, _ = s.syncer.Store().Routine(routineID)

	if opts.Format == "json" {
		return s.formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	if result.Exercise != nil {
		fmt.Fprintf(w, "✓ %s: %s\n\n", name, formatExercise(*result.Exercise))
	} else {
		fmt.Fprintf(w, "✓ %s\n\n", name)
	}
	writeRoutine(w, result.Routine)
	return nil
}
