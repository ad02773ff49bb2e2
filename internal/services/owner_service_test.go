package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xvierd/timeline-cli/internal/domain"
)

func newOwnerFixture(t *testing.T) (*OwnerService, *fakeProvider) {
	t.Helper()
	store, cleanup := setupTestStorage(t)
	t.Cleanup(cleanup)

	provider := newFakeProvider()
	owners := NewOwnerService(store, store.Secrets(), provider)
	owners.SetLocation(time.UTC)
	owners.SetClock(fixedClock(monday(9, 0)))
	return owners, provider
}

func TestOwnerService_Create(t *testing.T) {
	owners, _ := newOwnerFixture(t)
	ctx := context.Background()

	t.Run("valid label", func(t *testing.T) {
		state, err := owners.Create(ctx, "  Anna  ")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if state.Label != "Anna" {
			t.Errorf("Create() label = %q, want %q", state.Label, "Anna")
		}
		if state.Status != domain.StatusUninitialized {
			t.Errorf("Create() status = %v, want uninitialized", state.Status)
		}
	})

	t.Run("empty label", func(t *testing.T) {
		_, err := owners.Create(ctx, "   ")
		if err != domain.ErrEmptyLabel {
			t.Errorf("Create() error = %v, want ErrEmptyLabel", err)
		}
	})
}

func TestOwnerService_Login(t *testing.T) {
	owners, provider := newOwnerFixture(t)
	ctx := context.Background()

	owner, err := owners.Create(ctx, "Anna")
	require.NoError(t, err)

	t.Run("rejected credentials", func(t *testing.T) {
		provider.loginErr = domain.ErrAuth
		defer func() { provider.loginErr = nil }()

		_, err := owners.Login(ctx, LoginRequest{OwnerID: owner.OwnerID, Username: "anna", Password: "wrong"})
		assert.ErrorIs(t, err, domain.ErrAuth)

		state, err := owners.Get(ctx, owner.OwnerID)
		require.NoError(t, err)
		assert.False(t, state.HasCredentials())
	})

	t.Run("accepted credentials", func(t *testing.T) {
		state, err := owners.Login(ctx, LoginRequest{OwnerID: owner.OwnerID, Username: "anna", Password: "secret"})
		require.NoError(t, err)

		assert.Equal(t, domain.StatusLoading, state.Status)
		require.True(t, state.HasCredentials())
		assert.Equal(t, "anna", state.Credentials.Username)
		assert.Equal(t, "Anna Berg", state.Credentials.DisplayName())
	})

	t.Run("unknown owner", func(t *testing.T) {
		_, err := owners.Login(ctx, LoginRequest{OwnerID: "missing", Username: "anna", Password: "secret"})
		assert.ErrorIs(t, err, domain.ErrOwnerNotFound)
	})
}

func TestOwnerService_Resolve(t *testing.T) {
	owners, _ := newOwnerFixture(t)
	ctx := context.Background()

	anna, err := owners.Create(ctx, "Anna")
	require.NoError(t, err)
	annika, err := owners.Create(ctx, "Annika")
	require.NoError(t, err)
	ben, err := owners.Create(ctx, "Ben")
	require.NoError(t, err)

	tests := []struct {
		name    string
		query   string
		want    string
		wantErr error
	}{
		{"exact id", anna.OwnerID, anna.OwnerID, nil},
		{"id prefix", ben.OwnerID[:8], ben.OwnerID, nil},
		{"exact label wins over fuzzy", "anna", anna.OwnerID, nil},
		{"unique fuzzy label", "nik", annika.OwnerID, nil},
		{"ambiguous fuzzy label", "an", "", domain.ErrAmbiguousOwner},
		{"no match", "zzz", "", domain.ErrOwnerNotFound},
		{"empty query", " ", "", domain.ErrOwnerNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := owners.Resolve(ctx, tt.query)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.OwnerID)
		})
	}
}

func TestOwnerService_ListAndPending(t *testing.T) {
	owners, _ := newOwnerFixture(t)
	ctx := context.Background()

	first, err := owners.Create(ctx, "First")
	require.NoError(t, err)
	_, err = owners.Create(ctx, "Second")
	require.NoError(t, err)

	list, err := owners.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, st := range list {
		assert.Equal(t, time.UTC, st.Day.Location())
	}

	ev := domain.NewRefreshEvent(first.OwnerID, monday(13, 15))
	require.NoError(t, owners.storage.Events().Put(ctx, ev))

	pending, err := owners.PendingEvents(ctx, first.OwnerID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].FireAt.Equal(ev.FireAt))
	assert.Equal(t, time.UTC, pending[0].FireAt.Location())
}

func TestStateService(t *testing.T) {
	f := newDriverFixture(t)
	ctx := context.Background()
	owner := f.loggedIn(t, "Anna")

	provider := NewStateService(f.owners)

	_, err := provider.RefreshTimeline(ctx, owner.OwnerID)
	assert.ErrorIs(t, err, errNoDriver)

	provider.SetTimelineService(f.driver)

	state, err := provider.RefreshTimeline(ctx, owner.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, state.Status)

	state, err = provider.SelectLesson(ctx, owner.OwnerID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, state.CurrentIndex)

	got, err := provider.GetTimeline(ctx, "Anna")
	require.NoError(t, err)
	assert.Equal(t, owner.OwnerID, got.OwnerID)

	owners, err := provider.ListOwners(ctx)
	require.NoError(t, err)
	assert.Len(t, owners, 1)
}
