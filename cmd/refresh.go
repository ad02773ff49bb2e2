package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/xvierd/timeline-cli/internal/adapters/tui"
	"github.com/xvierd/timeline-cli/internal/services"
)

var refreshAll bool

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh [owner]",
	Short: "Reload an owner's timetable",
	Long: `Fetch the owner's next usable day from the provider and replan its
wake-ups. Use --all to refresh every logged-in owner.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		if refreshAll {
			if len(args) > 0 {
				return errors.New("--all does not take an owner")
			}
			if err := app.timelines.RefreshAll(ctx, services.ReasonManual); err != nil {
				return fmt.Errorf("refresh failed: %w", err)
			}
			return listCmd.RunE(cmd, nil)
		}

		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		state, err := resolveOwner(ctx, query)
		if err != nil {
			return err
		}

		refreshed, err := app.timelines.Refresh(ctx, state.OwnerID, services.ReasonManual)
		if err != nil {
			return fmt.Errorf("refresh failed: %w", err)
		}

		if structuredOutput() {
			return writeStructured(cmd.OutOrStdout(), newTimelineView(refreshed, true))
		}
		tui.ShowTimeline(refreshed, time.Now().In(app.loc), &app.config.Theme)
		return nil
	},
}

func init() {
	refreshCmd.Flags().BoolVarP(&refreshAll, "all", "a", false, "Refresh every logged-in owner")
}
