package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xvierd/timeline-cli/internal/adapters/tui"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List owners",
	Long:    `List every owner with its status and current lesson.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		states, err := app.owners.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list owners: %w", err)
		}

		if structuredOutput() {
			owners := make([]timelineView, 0, len(states))
			for _, s := range states {
				owners = append(owners, newTimelineView(s, false))
			}
			return writeStructured(cmd.OutOrStdout(), map[string]interface{}{
				"owners": owners,
				"count":  len(owners),
			})
		}

		if len(states) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No owners yet. Add one with: timeline add <label> --username <name>")
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), tui.RenderOwners(states, &app.config.Theme))
		return nil
	},
}
