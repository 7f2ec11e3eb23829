// internal/session/redis_test.go
package session

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydesk/internal/models"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func sampleFlow() *QuestionFlow {
	return &QuestionFlow{
		Current:       models.Question{Field: "environment", Prompt: "Which environment is affected?"},
		Remaining:     []models.Question{{Field: "affected_area", Prompt: "Which area?"}},
		Collected:     map[string]string{"priority": "High"},
		OriginalQuery: "our database is down",
		Category:      "INFRA",
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := NewRedisStore(newTestRedis(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "user@acmecorp.com", sampleFlow()))

	flow, err := store.Get(ctx, "user@acmecorp.com")
	require.NoError(t, err)
	assert.Equal(t, "environment", flow.Current.Field)
	assert.Equal(t, "INFRA", flow.Category)
	assert.Equal(t, "High", flow.Collected["priority"])
	require.Len(t, flow.Remaining, 1)
}

func TestRedisStoreGetMissingReturnsNotFound(t *testing.T) {
	store := NewRedisStore(newTestRedis(t))

	_, err := store.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreClear(t *testing.T) {
	store := NewRedisStore(newTestRedis(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "u", sampleFlow()))
	require.NoError(t, store.Clear(ctx, "u"))

	_, err := store.Get(ctx, "u")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreFlowsAreIsolatedPerUser(t *testing.T) {
	store := NewRedisStore(newTestRedis(t))
	ctx := context.Background()

	a := sampleFlow()
	a.Category = "INFRA"
	b := sampleFlow()
	b.Category = "ACCESS"

	require.NoError(t, store.Put(ctx, "a@x.com", a))
	require.NoError(t, store.Put(ctx, "b@x.com", b))

	gotA, err := store.Get(ctx, "a@x.com")
	require.NoError(t, err)
	gotB, err := store.Get(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, "INFRA", gotA.Category)
	assert.Equal(t, "ACCESS", gotB.Category)
}

func TestRedisStorePropagatesBackendErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet(flowKeyPrefix + "u").SetErr(errors.New("connection refused"))

	store := NewRedisStore(db)
	_, err := store.Get(context.Background(), "u")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisConversationStoreAppendAndHistory(t *testing.T) {
	store := NewRedisConversationStore(newTestRedis(t))
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "u", "user", "our database is down"))
	require.NoError(t, store.Append(ctx, "u", "assistant", "I found 2 related tickets"))

	history, err := store.History(ctx, "u", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "our database is down", history[0].Content)
	assert.Equal(t, "assistant", history[1].Role)
	assert.NotEmpty(t, history[0].ID)
	assert.NotEqual(t, history[0].ID, history[1].ID)
}

func TestRedisConversationStoreHistoryLimit(t *testing.T) {
	store := NewRedisConversationStore(newTestRedis(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, "u", "user", "message"))
	}

	history, err := store.History(ctx, "u", 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestMemoryStoreMatchesRedisBehavior(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "u")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "u", sampleFlow()))
	flow, err := store.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "INFRA", flow.Category)

	// Mutating the returned copy must not affect the stored flow.
	flow.Category = "CHANGED"
	again, err := store.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "INFRA", again.Category)

	require.NoError(t, store.Clear(ctx, "u"))
	_, err = store.Get(ctx, "u")
	assert.ErrorIs(t, err, ErrNotFound)
}
