package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/xvierd/timeline-cli/internal/adapters/ics"
	"github.com/xvierd/timeline-cli/internal/adapters/notification"
	"github.com/xvierd/timeline-cli/internal/adapters/scheduler"
	"github.com/xvierd/timeline-cli/internal/adapters/secrets"
	"github.com/xvierd/timeline-cli/internal/adapters/storage"
	"github.com/xvierd/timeline-cli/internal/adapters/weekly"
	"github.com/xvierd/timeline-cli/internal/config"
	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/logging"
	"github.com/xvierd/timeline-cli/internal/ports"
	"github.com/xvierd/timeline-cli/internal/services"
)

// appDeps groups all service-layer dependencies initialized at startup.
type appDeps struct {
	config     *config.Config
	configErr  error
	loc        *time.Location
	storage    ports.Storage
	secrets    ports.SecretStore
	provider   ports.TimetableProvider
	timer      *scheduler.Scheduler
	presenters *presenterSet
	owners     *services.OwnerService
	timelines  *services.TimelineService
	state      *services.StateService
	notifier   *notification.Notifier
	logger     zerolog.Logger
}

// app holds all initialized service dependencies.
// Populated by initializeServices() and accessible to all commands.
var app appDeps

// initializeServices sets up all the required services and adapters.
func initializeServices() error {
	app.config, app.configErr = config.Load()
	if app.configErr != nil {
		app.config = config.DefaultConfig()
	}

	logging.Init(logging.Config{
		Level:  app.config.Log.Level,
		Format: app.config.Log.Format,
		Output: os.Stderr,
	})
	app.logger = logging.Component("cli")
	if app.configErr != nil {
		app.logger.Warn().Err(app.configErr).Msg("using default configuration")
	}

	loc, err := app.config.Location()
	if err != nil {
		return err
	}
	app.loc = loc

	if dbPath == "" {
		dbPath = config.GetDBPath(app.config)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	app.storage, err = storage.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.secrets = newSecretStore(app.config, app.storage)
	app.provider = newProvider(app.config)
	app.notifier = notification.New(&app.config.Notifications)

	// Commands only persist events; "timeline run" starts the loop that fires them.
	app.timer = scheduler.New(app.storage.Events(), scheduler.Config{})

	app.presenters = &presenterSet{}
	app.timelines = services.NewTimelineService(
		app.storage.States(),
		app.provider,
		app.secrets,
		app.timer,
		app.presenters,
		services.TimelineServiceConfig{
			MaxAdvanceDays: app.config.Schedule.MaxAdvanceDays,
			Location:       loc,
		},
	)

	app.owners = services.NewOwnerService(app.storage, app.secrets, app.provider)
	app.owners.SetLocation(loc)

	app.state = services.NewStateService(app.owners)
	app.state.SetTimelineService(app.timelines)

	return nil
}

// cleanupServices closes all resources.
func cleanupServices() error {
	if app.timelines != nil {
		app.timelines.Close()
	}
	if app.storage != nil {
		return app.storage.Close()
	}
	return nil
}

// newSecretStore returns the configured password store.
func newSecretStore(cfg *config.Config, store ports.Storage) ports.SecretStore {
	if cfg.Secrets.Backend == config.SecretsDatabase {
		return store.Secrets()
	}
	return secrets.NewKeyring()
}

// newProvider builds the configured timetable provider. A provider that
// cannot be built still lets commands that never fetch run.
func newProvider(cfg *config.Config) ports.TimetableProvider {
	var (
		p   ports.TimetableProvider
		err error
	)
	switch cfg.Provider.Kind {
	case config.ProviderWeekly:
		p, err = weekly.New(cfg.Provider.WeeklyFile)
	default:
		p, err = ics.New(ics.Config{
			URL:       cfg.Provider.ICSURL,
			BellTimes: cfg.Provider.BellTimes,
			Timeout:   time.Duration(cfg.Provider.Timeout),
		})
	}
	if err != nil {
		return misconfiguredProvider{err: fmt.Errorf("provider %s: %w", cfg.Provider.Kind, err)}
	}
	return p
}

// misconfiguredProvider fails every call with the configuration error.
type misconfiguredProvider struct {
	err error
}

func (p misconfiguredProvider) Login(context.Context, string, string) (*domain.Tokens, error) {
	return nil, p.err
}

func (p misconfiguredProvider) FetchDay(context.Context, *domain.Tokens, time.Time) ([]domain.Lesson, error) {
	return nil, p.err
}

// presenterSet fans presentations out to every registered presenter.
// Presenters are added before the scheduler starts firing.
type presenterSet struct {
	presenters []ports.Presenter
}

func (s *presenterSet) Add(p ports.Presenter) {
	s.presenters = append(s.presenters, p)
}

// Present implements ports.Presenter.
func (s *presenterSet) Present(ownerID string, state *domain.TimelineState) {
	for _, p := range s.presenters {
		p.Present(ownerID, state)
	}
}

// resolveOwner maps a command argument to an owner. An empty query picks
// the only owner.
func resolveOwner(ctx context.Context, query string) (*domain.TimelineState, error) {
	if query == "" {
		states, err := app.owners.List(ctx)
		if err != nil {
			return nil, err
		}
		switch len(states) {
		case 0:
			return nil, errors.New("no owners yet; add one with: timeline add <label>")
		case 1:
			return states[0], nil
		default:
			return nil, errors.New("more than one owner; name one")
		}
	}

	state, err := app.owners.Resolve(ctx, query)
	switch {
	case errors.Is(err, domain.ErrOwnerNotFound):
		return nil, fmt.Errorf("no owner matches %q", query)
	case errors.Is(err, domain.ErrAmbiguousOwner):
		return nil, fmt.Errorf("%q matches more than one owner; use the id", query)
	case err != nil:
		return nil, err
	}
	return state, nil
}

// setupSignalHandler sets up a context that cancels on interrupt signals.
func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	return ctx
}
