package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// removeCmd represents the remove command
var removeCmd = &cobra.Command{
	Use:     "remove [owner]",
	Aliases: []string{"rm"},
	Short:   "Remove an owner",
	Long:    `Remove an owner together with its stored password and pending wake-ups.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		state, err := resolveOwner(ctx, args[0])
		if err != nil {
			return err
		}

		if err := app.timelines.Remove(ctx, state.OwnerID); err != nil {
			return fmt.Errorf("failed to remove owner: %w", err)
		}

		if structuredOutput() {
			return writeStructured(cmd.OutOrStdout(), map[string]interface{}{
				"owner_id": state.OwnerID,
				"removed":  true,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🗑  Removed %s\n", state.Label)
		return nil
	},
}
