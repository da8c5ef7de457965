package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore mimics SETNX semantics over a map.
type memStore struct {
	keys   map[string]time.Duration
	setErr error
}

func newMemStore() *memStore { return &memStore{keys: map[string]time.Duration{}} }

func (m *memStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, taken := m.keys[key]; taken {
		return false, nil
	}
	m.keys[key] = ttl
	return true, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func (m *memStore) IdempotencyKey(scope, id string) string {
	return "menu:idempotency:" + scope + ":" + id
}

func TestClaimIsFirstWriterWins(t *testing.T) {
	store := newMemStore()
	ledger, err := NewLedger(store, "analytics", 48*time.Hour)
	require.NoError(t, err)

	id := uuid.New()
	fresh, err := ledger.Claim(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = ledger.Claim(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, fresh, "second delivery must not be fresh")

	assert.Equal(t, 48*time.Hour, store.keys["menu:idempotency:evt:analytics:"+id.String()])
}

func TestReleaseAllowsRetry(t *testing.T) {
	ledger, err := NewLedger(newMemStore(), "analytics", time.Hour)
	require.NoError(t, err)

	id := uuid.New()
	_, err = ledger.Claim(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, ledger.Release(context.Background(), id))

	fresh, err := ledger.Claim(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestConsumersAreIsolated(t *testing.T) {
	store := newMemStore()
	a, _ := NewLedger(store, "analytics", time.Hour)
	b, _ := NewLedger(store, "mailer", time.Hour)

	id := uuid.New()
	freshA, _ := a.Claim(context.Background(), id)
	freshB, _ := b.Claim(context.Background(), id)
	assert.True(t, freshA)
	assert.True(t, freshB)
}

func TestClaimPropagatesStoreError(t *testing.T) {
	store := newMemStore()
	store.setErr = errors.New("redis down")
	ledger, _ := NewLedger(store, "analytics", time.Hour)

	_, err := ledger.Claim(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestLedgerRejectsBadInput(t *testing.T) {
	_, err := NewLedger(nil, "analytics", time.Hour)
	assert.Error(t, err)
	_, err = NewLedger(newMemStore(), "", time.Hour)
	assert.Error(t, err)
	_, err = NewLedger(newMemStore(), "analytics", -time.Second)
	assert.Error(t, err)

	ledger, _ := NewLedger(newMemStore(), "analytics", 0)
	_, err = ledger.Claim(context.Background(), uuid.Nil)
	assert.Error(t, err)
	assert.Error(t, ledger.Release(context.Background(), uuid.Nil))
}
