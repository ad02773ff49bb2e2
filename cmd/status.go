package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/xvierd/timeline-cli/internal/adapters/tui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [owner]",
	Short: "Show an owner's timeline",
	Long: `Show the loaded day of an owner with the current lesson highlighted.
The owner may be omitted when only one exists.`,
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

		if structuredOutput() {
			return writeStructured(cmd.OutOrStdout(), newTimelineView(state, true))
		}

		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderTimeline(state, time.Now().In(app.loc), &app.config.Theme))
		return nil
	},
}
