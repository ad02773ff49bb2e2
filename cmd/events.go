package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xvierd/timeline-cli/internal/adapters/tui"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:     "events [owner]",
	Aliases: []string{"plan"},
	Short:   "Show an owner's pending wake-ups",
	Long: `Show the scheduled lesson advances and the refresh that loads the next
day, in firing order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		state, err := resolveOwner(ctx, query)
		if err != nil {
			return err
		}

		events, err := app.owners.PendingEvents(ctx, state.OwnerID)
		if err != nil {
			return fmt.Errorf("failed to load events: %w", err)
		}

		if structuredOutput() {
			return writeStructured(cmd.OutOrStdout(), map[string]interface{}{
				"owner_id": state.OwnerID,
				"events":   newEventViews(events, app.loc),
				"count":    len(events),
			})
		}

		fmt.Fprint(cmd.OutOrStdout(), tui.RenderEvents(state, events, app.loc, &app.config.Theme))
		return nil
	},
}
