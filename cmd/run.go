package cmd

import (
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/xvierd/timeline-cli/internal/adapters/mcp"
	"github.com/xvierd/timeline-cli/internal/adapters/tui"
	"github.com/xvierd/timeline-cli/internal/services"
)

var runQuiet bool

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Keep every owner's current lesson up to date",
	Long: `Run the scheduler in the foreground. Pending wake-ups are restored from
the database, every logged-in owner is refreshed, and each change of the
current lesson is printed and sent as a desktop notification.

With mcp.enabled the MCP server is served on stdio alongside.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := setupSignalHandler()
		logger := app.logger.With().Str("command", "run").Logger()

		if !runQuiet {
			// stdout carries the MCP protocol when it is served.
			out := cmd.OutOrStdout()
			if app.config.MCP.Enabled {
				out = os.Stderr
			}
			app.presenters.Add(tui.NewConsole(out, &app.config.Theme))
		}
		if app.notifier.IsEnabled() {
			app.presenters.Add(app.notifier)
		}

		if err := app.timer.Start(ctx, app.timelines.HandleEvent); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			if err := app.timer.Stop(); err != nil {
				logger.Warn().Err(err).Msg("scheduler stop failed")
			}
		}()

		if err := app.timelines.RefreshAll(ctx, services.ReasonStartup); err != nil {
			logger.Error().Err(err).Msg("startup refresh failed")
		}

		if expr := app.config.Schedule.ResyncCron; expr != "" {
			c := cron.New(cron.WithLocation(app.loc))
			if _, err := c.AddFunc(expr, func() {
				if err := app.timelines.RefreshAll(ctx, services.ReasonResync); err != nil {
					logger.Error().Err(err).Msg("resync failed")
				}
			}); err != nil {
				return fmt.Errorf("invalid schedule.resync_cron %q: %w", expr, err)
			}
			c.Start()
			defer func() { <-c.Stop().Done() }()
			logger.Info().Str("cron", expr).Msg("resync scheduled")
		}

		if app.config.MCP.Enabled {
			server := mcp.NewServer(app.state, Version)
			go func() {
				if err := server.Start(ctx); err != nil && ctx.Err() == nil {
					logger.Error().Err(err).Msg("MCP server stopped")
				}
			}()
			defer func() { _ = server.Stop() }()
		}

		logger.Info().Msg("scheduler running")
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not print timeline changes")
}

