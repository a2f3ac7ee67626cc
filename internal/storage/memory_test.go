package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/errors"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/models"
)

func seedChange(t *testing.T, store *MemoryStore) *models.Change {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	change := &models.Change{
		ID: "chg1", ProjectID: "proj", AuthorID: "alice",
		Title: "rework config loading", Status: models.ChangeInReview,
		CIStatus: models.CIRunning, StrictnessMode: models.StrictnessSoft,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateChange(context.Background(), change))
	return change
}

func impactRowFor(change *models.Change, componentID, contributorID string) *models.Impact {
	deadline := change.CreatedAt.Add(24 * time.Hour)
	return &models.Impact{
		ID: "imp-" + componentID + "-" + contributorID, ChangeID: change.ID,
		ComponentID: componentID, ContributorID: contributorID,
		Method: models.DetectionParser, Confidence: models.ConfidenceHigh,
		AckStatus: models.AckWaiting, AutoConfirmAt: &deadline,
		CreatedAt: change.CreatedAt, UpdatedAt: change.CreatedAt,
	}
}

func TestTransitionImpactCAS(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	change := seedChange(t, store)
	row := impactRowFor(change, "comp1", "bob")
	require.NoError(t, store.UpsertImpacts(ctx, change.ID, []*models.Impact{row}))
	key := row.Key()

	// Winner.
	got, err := store.TransitionImpact(ctx, key, models.AckWaiting, models.AckConfirmed, ImpactUpdate{})
	require.NoError(t, err)
	assert.Equal(t, models.AckConfirmed, got.AckStatus)

	// Loser of the race gets StaleState, not a silent overwrite.
	_, err = store.TransitionImpact(ctx, key, models.AckWaiting, models.AckAutoConfirmed, ImpactUpdate{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.TypeStale))

	// Missing rows are NotFound, distinct from stale.
	_, err = store.TransitionImpact(ctx, models.ImpactKey{ChangeID: change.ID, ComponentID: "ghost", ContributorID: "bob"},
		models.AckWaiting, models.AckConfirmed, ImpactUpdate{})
	assert.True(t, errors.Is(err, errors.TypeNotFound))
}

func TestTransitionImpactAppliesUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	change := seedChange(t, store)
	row := impactRowFor(change, "comp1", "bob")
	require.NoError(t, store.UpsertImpacts(ctx, change.ID, []*models.Impact{row}))

	note := "adjusted the import paths"
	confirmedAt := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	got, err := store.TransitionImpact(ctx, row.Key(), models.AckWaiting, models.AckConfirmed,
		ImpactUpdate{Note: &note, ConfirmedAt: &confirmedAt})
	require.NoError(t, err)
	assert.Equal(t, note, got.Note)
	require.NotNil(t, got.ConfirmedAt)
	assert.Equal(t, confirmedAt, *got.ConfirmedAt)
}

func TestUpsertImpactsIdempotency(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	change := seedChange(t, store)

	first := impactRowFor(change, "comp1", "bob")
	require.NoError(t, store.UpsertImpacts(ctx, change.ID, []*models.Impact{first}))

	_, err := store.TransitionImpact(ctx, first.Key(), models.AckWaiting, models.AckConfirmed, ImpactUpdate{})
	require.NoError(t, err)

	// Replay with a different id and later deadline.
	replay := impactRowFor(change, "comp1", "bob")
	replay.ID = "imp-other"
	later := change.CreatedAt.Add(48 * time.Hour)
	replay.AutoConfirmAt = &later
	require.NoError(t, store.UpsertImpacts(ctx, change.ID, []*models.Impact{replay}))

	got, err := store.GetImpact(ctx, first.Key())
	require.NoError(t, err)
	assert.Equal(t, models.AckConfirmed, got.AckStatus, "terminal row untouched")
	assert.Equal(t, first.ID, got.ID)
}

func TestUpsertReplacesWaitingButKeepsClock(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	change := seedChange(t, store)

	first := impactRowFor(change, "comp1", "bob")
	require.NoError(t, store.UpsertImpacts(ctx, change.ID, []*models.Impact{first}))

	// Contributor is mid-adjust when the detector re-runs.
	_, err := store.TransitionImpact(ctx, first.Key(), models.AckWaiting, models.AckAdjusting, ImpactUpdate{})
	require.NoError(t, err)

	replay := impactRowFor(change, "comp1", "bob")
	replay.ID = "imp-replay"
	replay.Method = models.DetectionLLM
	later := change.CreatedAt.Add(48 * time.Hour)
	replay.AutoConfirmAt = &later
	replay.CreatedAt = change.CreatedAt.Add(time.Hour)
	require.NoError(t, store.UpsertImpacts(ctx, change.ID, []*models.Impact{replay}))

	got, err := store.GetImpact(ctx, first.Key())
	require.NoError(t, err)
	assert.Equal(t, models.AckWaiting, got.AckStatus, "adjusting rows reset to waiting")
	assert.Equal(t, models.DetectionLLM, got.Method, "detection fields refreshed")
	assert.Equal(t, first.ID, got.ID, "identity survives replacement")
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
	require.NotNil(t, got.AutoConfirmAt)
	assert.Equal(t, *first.AutoConfirmAt, *got.AutoConfirmAt, "deadline does not restart")
}

func TestUpsertUnknownChange(t *testing.T) {
	store := NewMemoryStore()
	err := store.UpsertImpacts(context.Background(), "ghost", nil)
	assert.True(t, errors.Is(err, errors.TypeNotFound))
}

func TestTransitionChangeCAS(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	change := seedChange(t, store)

	resolvedAt := time.Now().UTC()
	require.NoError(t, store.TransitionChange(ctx, change.ID, models.ChangeInReview, models.ChangeApproved, &resolvedAt))

	err := store.TransitionChange(ctx, change.ID, models.ChangeInReview, models.ChangeRejected, nil)
	assert.True(t, errors.Is(err, errors.TypeStale))

	err = store.TransitionChange(ctx, "ghost", models.ChangeInReview, models.ChangeApproved, nil)
	assert.True(t, errors.Is(err, errors.TypeNotFound))

	got, err := store.GetChange(ctx, change.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeApproved, got.Status)
	require.NotNil(t, got.ResolvedAt)
}

func TestNotifications(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, store.CreateNotification(ctx, &models.Notification{
			ID: id, UserID: "bob", Type: "change", Title: "t",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := store.ListNotifications(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "n3", list[0].ID, "newest first")

	require.NoError(t, store.MarkNotificationsRead(ctx, "bob", []string{"n1"}, false))
	list, _ = store.ListNotifications(ctx, "bob")
	for _, n := range list {
		assert.Equal(t, n.ID == "n1", n.IsRead)
	}

	require.NoError(t, store.MarkNotificationsRead(ctx, "bob", nil, true))
	list, _ = store.ListNotifications(ctx, "bob")
	for _, n := range list {
		assert.True(t, n.IsRead)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	change := seedChange(t, store)

	got, err := store.GetChange(ctx, change.ID)
	require.NoError(t, err)
	got.Status = models.ChangeRejected

	again, err := store.GetChange(ctx, change.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeInReview, again.Status, "caller mutations stay local")
}
