package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/ports"
)

func newTestStorage(t *testing.T) ports.Storage {
	t.Helper()
	storage, err := NewMemory()
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func readyTimeline(t *testing.T, label string) *domain.TimelineState {
	t.Helper()
	now := time.Date(2024, 3, 4, 7, 30, 0, 0, time.Local)
	state, err := domain.NewTimelineState(label, now)
	require.NoError(t, err)
	require.NoError(t, state.SetCredentials(domain.Credentials{Username: "anna", FirstName: "Anna"}, now))

	seq, initial, err := domain.Order([]domain.Lesson{
		{Period: 2, ShortName: "Eng", Room: "101", Start: domain.MustClockTime("08:55"), End: domain.MustClockTime("09:40")},
		{Period: 4, ShortName: "Math", Teacher: "Smith", Start: domain.MustClockTime("10:40"), End: domain.MustClockTime("11:25")},
	})
	require.NoError(t, err)
	require.NoError(t, state.Replace(now, seq, initial, now))
	return state
}

func TestNewMemory(t *testing.T) {
	storage, err := NewMemory()
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	defer func() { _ = storage.Close() }()

	if storage == nil {
		t.Error("NewMemory() returned nil storage")
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.db")
	storage, err := New(path)
	require.NoError(t, err)

	state := readyTimeline(t, "Persisted")
	require.NoError(t, storage.States().Save(context.Background(), state))
	require.NoError(t, storage.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	found, err := reopened.States().Get(context.Background(), state.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", found.Label)
}

func TestStateRepository_SaveAndGet(t *testing.T) {
	repo := newTestStorage(t).States()
	ctx := context.Background()

	state := readyTimeline(t, "Kitchen")

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, state))

		found, err := repo.Get(ctx, state.OwnerID)
		require.NoError(t, err)
		assert.Equal(t, state.Label, found.Label)
		assert.Equal(t, domain.StatusReady, found.Status)
		assert.Equal(t, 1, found.CurrentIndex)
		assert.True(t, state.Lessons.Equal(found.Lessons))
		assert.Nil(t, found.Lessons[0])
		assert.Equal(t, "2024-03-04", found.Day.Format("2006-01-02"))
		require.NotNil(t, found.Credentials)
		assert.Equal(t, "anna", found.Credentials.Username)
	})

	t.Run("save replaces", func(t *testing.T) {
		state.Label = "Hallway"
		require.NoError(t, repo.Save(ctx, state))

		found, err := repo.Get(ctx, state.OwnerID)
		require.NoError(t, err)
		assert.Equal(t, "Hallway", found.Label)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("find non-existent", func(t *testing.T) {
		_, err := repo.Get(ctx, "non-existent-id")
		if !errors.Is(err, domain.ErrOwnerNotFound) {
			t.Errorf("Get() error = %v, want ErrOwnerNotFound", err)
		}
	})
}

func TestStateRepository_Update(t *testing.T) {
	repo := newTestStorage(t).States()
	ctx := context.Background()

	state := readyTimeline(t, "Desk")
	require.NoError(t, repo.Save(ctx, state))

	t.Run("applies change", func(t *testing.T) {
		updated, err := repo.Update(ctx, state.OwnerID, func(s *domain.TimelineState) error {
			return s.SetIndex(3)
		})
		require.NoError(t, err)
		assert.Equal(t, 3, updated.CurrentIndex)

		found, err := repo.Get(ctx, state.OwnerID)
		require.NoError(t, err)
		assert.Equal(t, 3, found.CurrentIndex)
	})

	t.Run("callback error rolls back", func(t *testing.T) {
		_, err := repo.Update(ctx, state.OwnerID, func(s *domain.TimelineState) error {
			s.Label = "lost"
			return s.SetIndex(2)
		})
		assert.ErrorIs(t, err, domain.ErrStaleEvent)

		found, err := repo.Get(ctx, state.OwnerID)
		require.NoError(t, err)
		assert.Equal(t, "Desk", found.Label)
		assert.Equal(t, 3, found.CurrentIndex)
	})

	t.Run("missing owner", func(t *testing.T) {
		called := false
		_, err := repo.Update(ctx, "ghost", func(*domain.TimelineState) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrOwnerNotFound)
		assert.False(t, called)
	})
}

func TestStateRepository_DeleteAndList(t *testing.T) {
	repo := newTestStorage(t).States()
	ctx := context.Background()

	a := readyTimeline(t, "A")
	b := readyTimeline(t, "B")
	b.CreatedAt = a.CreatedAt.Add(time.Minute)
	require.NoError(t, repo.Save(ctx, a))
	require.NoError(t, repo.Save(ctx, b))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].Label)
	assert.Equal(t, "B", all[1].Label)

	require.NoError(t, repo.Delete(ctx, a.OwnerID))
	require.NoError(t, repo.Delete(ctx, a.OwnerID))

	all, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, b.OwnerID, all[0].OwnerID)
}

func TestEventRepository(t *testing.T) {
	repo := newTestStorage(t).Events()
	ctx := context.Background()

	base := time.Date(2024, 3, 4, 9, 40, 0, 0, time.Local)
	advance := domain.NewAdvanceEvent("o1", 3, base)
	refresh := domain.NewRefreshEvent("o1", base.Add(2*time.Hour))
	other := domain.NewRefreshEvent("o2", base.Add(time.Hour))

	require.NoError(t, repo.Put(ctx, refresh))
	require.NoError(t, repo.Put(ctx, other))
	stored, err := repo.Append(ctx, advance)
	require.NoError(t, err)
	assert.True(t, stored)

	t.Run("pending ordered by fire time", func(t *testing.T) {
		pending, err := repo.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 3)
		assert.Equal(t, advance.ID, pending[0].ID)
		assert.Equal(t, other.ID, pending[1].ID)
		assert.Equal(t, refresh.ID, pending[2].ID)
		assert.True(t, pending[0].FireAt.Equal(base))
		assert.Equal(t, 3, pending[0].TargetIndex)
		assert.Equal(t, domain.EventAdvanceIndex, pending[0].Kind)
	})

	t.Run("append keeps existing key", func(t *testing.T) {
		dup := domain.NewAdvanceEvent("o1", 5, base)
		stored, err := repo.Append(ctx, dup)
		require.NoError(t, err)
		assert.False(t, stored)

		events, err := repo.ForOwner(ctx, "o1")
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, 3, events[0].TargetIndex)
	})

	t.Run("put replaces same key", func(t *testing.T) {
		replacement := domain.NewRefreshEvent("o1", base.Add(3*time.Hour))
		require.NoError(t, repo.Put(ctx, replacement))

		events, err := repo.ForOwner(ctx, "o1")
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, replacement.ID, events[1].ID)

		taken, err := repo.Take(ctx, refresh.ID)
		require.NoError(t, err)
		assert.False(t, taken, "superseded event should no longer be pending")
	})

	t.Run("take once", func(t *testing.T) {
		taken, err := repo.Take(ctx, advance.ID)
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = repo.Take(ctx, advance.ID)
		require.NoError(t, err)
		assert.False(t, taken)
	})

	t.Run("delete by key and owner", func(t *testing.T) {
		deleted, err := repo.DeleteByKey(ctx, "o2/refresh")
		require.NoError(t, err)
		assert.True(t, deleted)

		n, err := repo.DeleteByOwner(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		pending, err := repo.Pending(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

func TestSecretRepository(t *testing.T) {
	secrets := newTestStorage(t).Secrets()
	ctx := context.Background()

	_, err := secrets.Password(ctx, "o1")
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)

	require.NoError(t, secrets.SetPassword(ctx, "o1", "hunter2"))
	require.NoError(t, secrets.SetPassword(ctx, "o1", "hunter3"))

	pw, err := secrets.Password(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "hunter3", pw)

	require.NoError(t, secrets.DeletePassword(ctx, "o1"))
	require.NoError(t, secrets.DeletePassword(ctx, "o1"))

	_, err = secrets.Password(ctx, "o1")
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
}
