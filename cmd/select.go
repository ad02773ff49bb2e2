package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"github.com/xvierd/timeline-cli/internal/adapters/tui"
	"github.com/xvierd/timeline-cli/internal/domain"
)

// selectCmd represents the select command
var selectCmd = &cobra.Command{
	Use:   "select [owner] [index]",
	Short: "Point an owner at a different lesson",
	Long: `Move the current lesson by hand. Without an index a picker lists the
lessons of the loaded day. The next scheduled advance moves it on again.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		state, err := resolveOwner(ctx, args[0])
		if err != nil {
			return err
		}

		var index int
		if len(args) == 2 {
			index, err = strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}
		} else {
			if !term.IsTerminal(os.Stdin.Fd()) {
				return errors.New("no terminal for the lesson picker; pass an index")
			}
			var ok bool
			index, ok = tui.PickLesson(state, &app.config.Theme)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes made.")
				return nil
			}
		}

		updated, err := app.timelines.SelectIndex(ctx, state.OwnerID, index)
		switch {
		case errors.Is(err, domain.ErrStaleEvent):
			return fmt.Errorf("index %d is not a lesson of %s's day", index, state.Label)
		case err != nil:
			return err
		}

		if structuredOutput() {
			return writeStructured(cmd.OutOrStdout(), newTimelineView(updated, false))
		}
		tui.ShowTimeline(updated, time.Now().In(app.loc), &app.config.Theme)
		return nil
	},
}
