package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"github.com/xvierd/timeline-cli/internal/adapters/tui"
	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/services"
)

var (
	addUsername   string
	passwordStdin bool
)

// addCmd represents the add command
var addCmd = &cobra.Command{
	Use:   "add [label]",
	Short: "Add a new owner",
	Long: `Add a new timetable owner. With --username the account is logged in
right away and the first day is loaded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		state, err := app.owners.Create(ctx, strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("failed to add owner: %w", err)
		}

		if addUsername == "" {
			if structuredOutput() {
				return writeStructured(cmd.OutOrStdout(), newTimelineView(state, false))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Owner added: %s (ID: %s)\n", state.Label, state.OwnerID)
			fmt.Fprintf(cmd.OutOrStdout(), "   Log in with: timeline login %s <username>\n", state.OwnerID[:8])
			return nil
		}

		return loginAndLoad(cmd, state, addUsername)
	},
}

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login [owner] [username]",
	Short: "Log an owner in to the timetable provider",
	Long: `Verify credentials with the timetable provider, store the password and
load the owner's next day.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := resolveOwner(context.Background(), args[0])
		if err != nil {
			return err
		}
		return loginAndLoad(cmd, state, args[1])
	},
}

func init() {
	addCmd.Flags().StringVarP(&addUsername, "username", "u", "", "Log in with this account after adding")
	addCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	loginCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
}

func loginAndLoad(cmd *cobra.Command, state *domain.TimelineState, username string) error {
	ctx := context.Background()

	password, err := readPassword(cmd.InOrStdin(), fmt.Sprintf("Password for %s:", username))
	if err != nil {
		return err
	}

	if _, err := app.owners.Login(ctx, services.LoginRequest{
		OwnerID:  state.OwnerID,
		Username: username,
		Password: password,
	}); err != nil {
		if errors.Is(err, domain.ErrAuth) {
			return fmt.Errorf("login rejected for %s: check the username and password", username)
		}
		return err
	}

	loaded, err := app.timelines.Refresh(ctx, state.OwnerID, services.ReasonLogin)
	if err != nil {
		return fmt.Errorf("logged in, but loading the timetable failed: %w", err)
	}

	if structuredOutput() {
		return writeStructured(cmd.OutOrStdout(), newTimelineView(loaded, true))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Logged in as %s\n", loaded.Credentials.DisplayName())
	tui.ShowTimeline(loaded, time.Now().In(app.loc), &app.config.Theme)
	return nil
}

// readPassword reads a password from stdin when --password-stdin is set,
// otherwise prompts on the terminal.
func readPassword(in io.Reader, prompt string) (string, error) {
	if passwordStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	if !term.IsTerminal(os.Stdin.Fd()) {
		return "", errors.New("no terminal for a password prompt; use --password-stdin")
	}
	password, ok := tui.PromptPassword(prompt, &app.config.Theme)
	if !ok {
		return "", errors.New("login aborted")
	}
	return password, nil
}
