package ledger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/crawlkit/gateway/internal/logging"
	gwtesting "github.com/crawlkit/gateway/testing"
	"github.com/crawlkit/gateway/types"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	_, nc := gwtesting.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	kv, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: "crawl-requests"})
	require.NoError(t, err)

	return New(kv, logging.NewNop())
}

func pendingRecord(id, identity string, createdAt time.Time) types.CrawlRequest {
	return types.CrawlRequest{
		ID:           id,
		UserIdentity: identity,
		TargetURL:    "https://example.com",
		Status:       types.StatusPending,
		CreatedAt:    createdAt,
	}
}

func TestAppendAndGetByID(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rec := pendingRecord("req-1", "a@example.com", time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, store.Append(ctx, rec))

	got, err := store.GetByID(ctx, "a@example.com", "req-1")
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, rec.UserIdentity, got.UserIdentity)
	require.Equal(t, rec.TargetURL, got.TargetURL)
	require.Equal(t, types.StatusPending, got.Status)
	require.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestAppendDuplicateID(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rec := pendingRecord("req-1", "a@example.com", time.Now().UTC())
	require.NoError(t, store.Append(ctx, rec))
	require.ErrorIs(t, store.Append(ctx, rec), ErrDuplicateID)
}

func TestGetByIDNotFound(t *testing.T) {
	store := newStore(t)

	_, err := store.GetByID(context.Background(), "a@example.com", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAppliesTerminalStatus(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rec := pendingRecord("req-1", "a@example.com", time.Now().UTC())
	require.NoError(t, store.Append(ctx, rec))

	updated, changed, err := store.Update(ctx, types.CrawlRequest{
		ID:           "req-1",
		UserIdentity: "a@example.com",
		Status:       types.StatusCompleted,
		Result:       json.RawMessage(`{"title":"Example"}`),
	})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, types.StatusCompleted, updated.Status)
	require.JSONEq(t, `{"title":"Example"}`, string(updated.Result))

	// Immutable fields survive the update.
	require.Equal(t, rec.TargetURL, updated.TargetURL)
	require.True(t, rec.CreatedAt.Equal(updated.CreatedAt))
}

func TestUpdateTerminalIsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, pendingRecord("req-1", "a@example.com", time.Now().UTC())))

	update := types.CrawlRequest{
		ID:           "req-1",
		UserIdentity: "a@example.com",
		Status:       types.StatusCompleted,
		Result:       json.RawMessage(`{"title":"Example"}`),
	}

	first, changed, err := store.Update(ctx, update)
	require.NoError(t, err)
	require.True(t, changed)

	// Re-applying the same terminal update is a silent no-op returning
	// identical content.
	second, changed, err := store.Update(ctx, update)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, first, second)
}

func TestUpdateNeverRegressesTerminalStatus(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, pendingRecord("req-1", "a@example.com", time.Now().UTC())))

	_, changed, err := store.Update(ctx, types.CrawlRequest{
		ID: "req-1", UserIdentity: "a@example.com", Status: types.StatusFailed, ErrorDetail: "timeout",
	})
	require.NoError(t, err)
	require.True(t, changed)

	for _, status := range []types.Status{types.StatusPending, types.StatusInProgress, types.StatusCompleted} {
		got, changed, err := store.Update(ctx, types.CrawlRequest{
			ID: "req-1", UserIdentity: "a@example.com", Status: status,
		})
		require.NoError(t, err)
		require.False(t, changed)
		require.Equal(t, types.StatusFailed, got.Status)
		require.Equal(t, "timeout", got.ErrorDetail)
	}
}

func TestUpdateAllowsInProgressHop(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, pendingRecord("req-1", "a@example.com", time.Now().UTC())))

	got, changed, err := store.Update(ctx, types.CrawlRequest{
		ID: "req-1", UserIdentity: "a@example.com", Status: types.StatusInProgress,
	})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, types.StatusInProgress, got.Status)

	got, changed, err = store.Update(ctx, types.CrawlRequest{
		ID: "req-1", UserIdentity: "a@example.com", Status: types.StatusCompleted,
	})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, types.StatusCompleted, got.Status)
}

func TestUpdateNotFound(t *testing.T) {
	store := newStore(t)

	_, _, err := store.Update(context.Background(), types.CrawlRequest{
		ID: "missing", UserIdentity: "a@example.com", Status: types.StatusCompleted,
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetAllForUserCreationOrder(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)

	// Append out of creation order; reads must still come back ordered by
	// CreatedAt.
	require.NoError(t, store.Append(ctx, pendingRecord("req-2", "a@example.com", base.Add(time.Second))))
	require.NoError(t, store.Append(ctx, pendingRecord("req-3", "a@example.com", base.Add(2*time.Second))))
	require.NoError(t, store.Append(ctx, pendingRecord("req-1", "a@example.com", base)))

	// Records for other users stay in their own partition.
	require.NoError(t, store.Append(ctx, pendingRecord("req-9", "b@example.com", base)))

	records, err := store.GetAllForUser(ctx, "a@example.com")
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "req-1", records[0].ID)
	require.Equal(t, "req-2", records[1].ID)
	require.Equal(t, "req-3", records[2].ID)
}

func TestGetAllForUserEmpty(t *testing.T) {
	store := newStore(t)

	records, err := store.GetAllForUser(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestPartitionKeyHandlesArbitraryIdentities(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	// Identities contain characters that are invalid in raw KV keys.
	identity := "weird user+tag@example.com/with:stuff"
	require.NoError(t, store.Append(ctx, pendingRecord("req-1", identity, time.Now().UTC())))

	records, err := store.GetAllForUser(ctx, identity)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, identity, records[0].UserIdentity)
}
