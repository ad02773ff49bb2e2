package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/xvierd/timeline-cli/internal/config"
	"github.com/xvierd/timeline-cli/internal/domain"
	"gopkg.in/yaml.v3"
)

// executeCmd is a helper to execute a cobra command in tests
func executeCmd(cmd *cobra.Command, args ...string) (stdout string, stderr string, err error) {
	bufOut := new(bytes.Buffer)
	bufErr := new(bytes.Buffer)

	cmd.SetOut(bufOut)
	cmd.SetErr(bufErr)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return bufOut.String(), bufErr.String(), err
}

var testDay = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func readyState(t *testing.T) *domain.TimelineState {
	t.Helper()
	state, err := domain.NewTimelineState("Anna", testDay)
	if err != nil {
		t.Fatalf("NewTimelineState() error = %v", err)
	}
	if err := state.SetCredentials(domain.Credentials{Username: "anna", FirstName: "Anna", LastName: "Berg"}, testDay); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}
	seq, initial, err := domain.Order([]domain.Lesson{
		{Period: 1, ShortName: "Math", Start: domain.MustClockTime("08:00"), End: domain.MustClockTime("08:45"), Room: "101"},
		{Period: 3, ShortName: "Eng", Start: domain.MustClockTime("09:50"), End: domain.MustClockTime("10:35")},
	})
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	if err := state.Replace(testDay, seq, initial, testDay); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	return state
}

func TestRootCmd_Use(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd should not be nil")
	}
	if rootCmd.Use != "timeline" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "timeline")
	}
}

// TestRootCmd_Help tests the --help flag
func TestRootCmd_Help(t *testing.T) {
	stdout, _, err := executeCmd(rootCmd, "--help")
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}
	if !strings.Contains(stdout, "timeline") {
		t.Error("help output should contain 'timeline'")
	}
}

// TestRootCmd_Flags tests that global flags are registered
func TestRootCmd_Flags(t *testing.T) {
	for _, name := range []string{"db", "json", "yaml"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("--%s flag should be registered", name)
		}
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	want := []string{"add", "login", "list", "status", "events", "refresh", "select", "remove", "run", "watch", "mcp", "config"}

	registered := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("subcommand %q is not registered", name)
		}
	}
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		flag string
	}{
		{addCmd, "username"},
		{addCmd, "password-stdin"},
		{loginCmd, "password-stdin"},
		{refreshCmd, "all"},
		{runCmd, "quiet"},
	}
	for _, tt := range tests {
		if tt.cmd.Flags().Lookup(tt.flag) == nil {
			t.Errorf("%s: --%s flag should be registered", tt.cmd.Name(), tt.flag)
		}
	}
}

func TestWriteStructured(t *testing.T) {
	defer func() { jsonOutput, yamlOutput = false, false }()

	v := newTimelineView(readyState(t), true)

	t.Run("json", func(t *testing.T) {
		jsonOutput, yamlOutput = true, false
		var buf bytes.Buffer
		if err := writeStructured(&buf, v); err != nil {
			t.Fatalf("writeStructured() error = %v", err)
		}
		var out map[string]interface{}
		if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if out["label"] != "Anna" || out["status"] != "ready" {
			t.Errorf("unexpected output: %v", out)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		jsonOutput, yamlOutput = false, true
		var buf bytes.Buffer
		if err := writeStructured(&buf, v); err != nil {
			t.Fatalf("writeStructured() error = %v", err)
		}
		var out map[string]interface{}
		if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
			t.Fatalf("invalid YAML: %v", err)
		}
		if out["day"] != "2024-03-04" {
			t.Errorf("day = %v, want 2024-03-04", out["day"])
		}
		if !strings.Contains(buf.String(), "\n  - index: 0") && !strings.Contains(buf.String(), "\n    - index: 0") {
			t.Errorf("lessons not rendered as a YAML list:\n%s", buf.String())
		}
	})
}

func TestNewTimelineView(t *testing.T) {
	state := readyState(t)

	v := newTimelineView(state, true)
	if v.Account != "Anna Berg" {
		t.Errorf("Account = %q", v.Account)
	}
	if v.Current == nil || v.Current.Subject != "Math" || v.Current.Room != "101" {
		t.Errorf("Current = %+v", v.Current)
	}
	// The free second period is skipped.
	if len(v.Lessons) != 2 || v.Lessons[1].Index != 2 || v.Lessons[1].Period != 3 {
		t.Errorf("Lessons = %+v", v.Lessons)
	}

	if short := newTimelineView(state, false); short.Lessons != nil {
		t.Error("lessons should be omitted")
	}
}

func TestNewTimelineView_NoCurrentOutsideReady(t *testing.T) {
	state := readyState(t)
	if err := state.BeginLoading(); err != nil {
		t.Fatalf("BeginLoading() error = %v", err)
	}
	if err := state.Fail(errors.New("boom"), testDay); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}

	v := newTimelineView(state, false)
	if v.Current != nil {
		t.Errorf("Current = %+v, want nil", v.Current)
	}
	if v.Status != "error" || v.LastError != "boom" {
		t.Errorf("Status = %q, LastError = %q", v.Status, v.LastError)
	}
}

func TestNewEventViews(t *testing.T) {
	events := []domain.ScheduledEvent{
		domain.NewAdvanceEvent("owner", 2, testDay.Add(8*time.Hour+45*time.Minute)),
		domain.NewRefreshEvent("owner", testDay.Add(10*time.Hour+35*time.Minute)),
	}

	views := newEventViews(events, time.UTC)
	if len(views) != 2 {
		t.Fatalf("len = %d, want 2", len(views))
	}
	if views[0].TargetIndex == nil || *views[0].TargetIndex != 2 {
		t.Errorf("advance target = %v", views[0].TargetIndex)
	}
	if views[1].TargetIndex != nil {
		t.Error("refresh carries no target")
	}
	if views[0].FireAt != "2024-03-04T08:45:00Z" {
		t.Errorf("FireAt = %q", views[0].FireAt)
	}
}

type recordingPresenter struct {
	owners []string
}

func (p *recordingPresenter) Present(ownerID string, _ *domain.TimelineState) {
	p.owners = append(p.owners, ownerID)
}

func TestPresenterSet(t *testing.T) {
	a, b := &recordingPresenter{}, &recordingPresenter{}
	set := &presenterSet{}

	set.Present("x", nil)

	set.Add(a)
	set.Add(b)
	set.Present("owner-1", readyState(t))

	if len(a.owners) != 1 || len(b.owners) != 1 || a.owners[0] != "owner-1" {
		t.Errorf("a = %v, b = %v", a.owners, b.owners)
	}
}

func TestNewProvider_Misconfigured(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.Kind = config.ProviderWeekly
	cfg.Provider.WeeklyFile = ""

	p := newProvider(cfg)
	if _, ok := p.(misconfiguredProvider); !ok {
		t.Fatalf("provider = %T, want misconfiguredProvider", p)
	}
	if _, err := p.Login(context.Background(), "u", "p"); err == nil {
		t.Error("Login() should fail")
	}
	if _, err := p.FetchDay(context.Background(), nil, testDay); err == nil {
		t.Error("FetchDay() should fail")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" 08:00, 08:50,,09:50 ")
	want := []string{"08:00", "08:50", "09:50"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("splitList() = %v, want %v", got, want)
	}
	if splitList("") != nil {
		t.Error("empty input should give nil")
	}
}

func TestNotificationLabel(t *testing.T) {
	cfg := config.DefaultConfig()
	tests := []struct {
		enabled, sound bool
		want           string
	}{
		{false, false, "off"},
		{true, false, "on"},
		{true, true, "on (with sound)"},
	}
	for _, tt := range tests {
		cfg.Notifications.Enabled, cfg.Notifications.Sound = tt.enabled, tt.sound
		if got := notificationLabel(cfg); got != tt.want {
			t.Errorf("notificationLabel(%v, %v) = %q, want %q", tt.enabled, tt.sound, got, tt.want)
		}
	}
}

func TestChoose(t *testing.T) {
	tests := []struct {
		input  string
		want   int
		wantOK bool
	}{
		{"2\n", 1, true},
		{" 1 \n", 0, true},
		{"3\n", 0, false},
		{"x\n", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := choose(bufio.NewReader(strings.NewReader(tt.input)), "a", "b")
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("choose(%q) = %d, %v, want %d, %v", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}
