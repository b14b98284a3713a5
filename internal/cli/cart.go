package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/repsync/internal/cart"
)

// NewMergeCartCommand creates the merge-cart command.
func NewMergeCartCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "merge-cart",
		Short: "Merge the guest cart into the account",
		Long: `Merge the guest cart into the logged-in account.

Run once after login. A failed merge exits with status 1 and can be
retried.

Example:
  repsync merge-cart --token "$TOKEN"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMergeCart(rootOpts, cmd)
		},
	}
}

func runMergeCart(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	outcome := s.syncer.MergeCartOnce(ctx)
	if outcome == cart.OutcomeFailed {
		_ = s.formatter.Error(ErrCodeRemote, "cart merge failed", nil)
		return NewExitError(ExitFailure, "cart merge failed")
	}

	if opts.Format == "json" {
		return s.formatter.Success(map[string]string{"outcome": string(outcome)})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ cart %s\n", outcome)
	return nil
}
