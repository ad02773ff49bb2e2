package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xvierd/timeline-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and edit the provider, timezone and notification settings",
	Long:  `Interactively configure the timetable provider, the timezone, how far ahead a refresh looks, notifications and where passwords are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)
		cfg := app.config

		fmt.Println()
		fmt.Println("  Current configuration:")
		fmt.Println()
		printProvider(cfg)
		fmt.Printf("  Timezone:        %s\n", orDefault(cfg.Timezone, "local"))
		fmt.Printf("  Look ahead:      %d days\n", cfg.Schedule.MaxAdvanceDays)
		fmt.Printf("  Resync:          %s\n", orDefault(cfg.Schedule.ResyncCron, "off"))
		fmt.Printf("  Passwords:       %s\n", cfg.Secrets.Backend)
		fmt.Printf("  Notifications:   %s\n", notificationLabel(cfg))
		fmt.Println()
		fmt.Println("  What would you like to change?")
		fmt.Println("    [p] Timetable provider")
		fmt.Println("    [t] Timezone")
		fmt.Println("    [d] Look-ahead days")
		fmt.Println("    [s] Password storage")
		fmt.Println("    [n] Toggle notifications")
		fmt.Println("    [q] Quit without saving")
		fmt.Print("  Choose: ")

		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(strings.ToLower(choice))

		switch choice {
		case "p":
			return editProvider(reader, cfg)
		case "t":
			return editTimezone(reader, cfg)
		case "d":
			return editLookAhead(reader, cfg)
		case "s":
			return editSecrets(reader, cfg)
		case "n":
			return editNotifications(reader, cfg)
		case "q", "":
			fmt.Println("  No changes made.")
			return nil
		default:
			return fmt.Errorf("invalid choice %q", choice)
		}
	},
}

func printProvider(cfg *config.Config) {
	switch cfg.Provider.Kind {
	case config.ProviderWeekly:
		fmt.Printf("  Provider:        weekly file %s\n", orDefault(cfg.Provider.WeeklyFile, "(not set)"))
	default:
		fmt.Printf("  Provider:        ics %s\n", orDefault(cfg.Provider.ICSURL, "(not set)"))
		if len(cfg.Provider.BellTimes) > 0 {
			fmt.Printf("  Bell times:      %s\n", strings.Join(cfg.Provider.BellTimes, ", "))
		}
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// notificationModes are the notification settings offered by config, in
// menu order.
var notificationModes = []struct {
	label          string
	enabled, sound bool
}{
	{"off", false, false},
	{"on", true, false},
	{"on (with sound)", true, true},
}

func notificationLabel(cfg *config.Config) string {
	for _, m := range notificationModes {
		if m.enabled == cfg.Notifications.Enabled && (!m.enabled || m.sound == cfg.Notifications.Sound) {
			return m.label
		}
	}
	return "off"
}

// saveConfig validates cfg before writing it.
func saveConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func prompt(reader *bufio.Reader, label, current string) string {
	fmt.Printf("  %s [%s]: ", label, current)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return current
	}
	return input
}

// choose prints a numbered menu and returns the picked option, or false
// when the input matches none of them.
func choose(reader *bufio.Reader, options ...string) (int, bool) {
	for i, opt := range options {
		fmt.Printf("    [%d] %s\n", i+1, opt)
	}
	fmt.Print("  Choose: ")
	input, _ := reader.ReadString('\n')
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > len(options) {
		fmt.Println("  No changes made.")
		return 0, false
	}
	return n - 1, true
}

func editProvider(reader *bufio.Reader, cfg *config.Config) error {
	fmt.Printf("\n  Current provider: %s\n\n", cfg.Provider.Kind)
	choice, ok := choose(reader, "ICS calendar feed (URL with basic auth)", "Weekly YAML file")
	if !ok {
		return nil
	}

	if choice == 0 {
		cfg.Provider.Kind = config.ProviderICS
		cfg.Provider.ICSURL = prompt(reader, "Feed URL", cfg.Provider.ICSURL)
		bells := prompt(reader, "Bell times (08:00,08:50,...)", strings.Join(cfg.Provider.BellTimes, ","))
		cfg.Provider.BellTimes = splitList(bells)
		timeout := prompt(reader, "Timeout", cfg.Provider.Timeout.String())
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", timeout, err)
		}
		cfg.Provider.Timeout = config.Duration(d)
	} else {
		cfg.Provider.Kind = config.ProviderWeekly
		cfg.Provider.WeeklyFile = prompt(reader, "File", cfg.Provider.WeeklyFile)
	}

	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("\n  Saved: provider set to %s\n", cfg.Provider.Kind)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func editTimezone(reader *bufio.Reader, cfg *config.Config) error {
	fmt.Println()
	tz := prompt(reader, "Timezone (IANA name or local)", orDefault(cfg.Timezone, "local"))
	cfg.Timezone = tz

	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("\n  Saved: timezone %s\n", tz)
	return nil
}

func editLookAhead(reader *bufio.Reader, cfg *config.Config) error {
	fmt.Println()
	input := prompt(reader, "Days to look ahead for a school day", strconv.Itoa(cfg.Schedule.MaxAdvanceDays))
	n, err := strconv.Atoi(input)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", input, err)
	}
	cfg.Schedule.MaxAdvanceDays = n

	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("\n  Saved: look ahead %d days\n", n)
	return nil
}

func editSecrets(reader *bufio.Reader, cfg *config.Config) error {
	fmt.Printf("\n  Passwords are kept in: %s\n\n", cfg.Secrets.Backend)
	backends := []string{config.SecretsKeyring, config.SecretsDatabase}
	choice, ok := choose(reader, "System keyring", "Database (for machines without a keyring)")
	if !ok {
		return nil
	}
	cfg.Secrets.Backend = backends[choice]

	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("\n  Saved: passwords kept in %s. Log owners in again to move them.\n", cfg.Secrets.Backend)
	return nil
}

func editNotifications(reader *bufio.Reader, cfg *config.Config) error {
	fmt.Printf("\n  Notifications are %s\n\n", notificationLabel(cfg))
	choice, ok := choose(reader, "Off", "On (visual only)", "On (with sound)")
	if !ok {
		return nil
	}
	mode := notificationModes[choice]
	cfg.Notifications.Enabled, cfg.Notifications.Sound = mode.enabled, mode.sound

	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("\n  Saved: notifications %s\n", mode.label)
	return nil
}
