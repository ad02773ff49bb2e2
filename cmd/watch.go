package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xvierd/timeline-cli/internal/adapters/tui"
	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/services"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [owner]",
	Short: "Follow an owner's timeline live",
	Long: `Open a full-screen view of the owner's day. The view reads the stored
state every second, so it follows changes made by "timeline run".
Press r to refresh and q to quit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := setupSignalHandler()

		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		state, err := resolveOwner(ctx, query)
		if err != nil {
			return err
		}
		ownerID := state.OwnerID

		fetch := func() *domain.TimelineState {
			current, err := app.owners.Get(context.Background(), ownerID)
			if err != nil {
				app.logger.Debug().Err(err).Msg("watch: failed to read state")
				return nil
			}
			return current
		}
		refresh := func() error {
			_, err := app.timelines.Refresh(ctx, ownerID, services.ReasonManual)
			return err
		}

		if err := tui.RunWatch(ctx, state, fetch, refresh, &app.config.Theme); err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		return nil
	},
}
