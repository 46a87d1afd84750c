package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"water-bill-portal/internal/billing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreSaveLoad(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStore(client, 30*time.Minute)
	ctx := context.Background()

	s := demoSession(t, "s-1")
	require.NoError(t, s.SelectMode(billing.ModePartial))
	require.NoError(t, s.EditPartialAmount("500"))

	require.NoError(t, store.Save(ctx, s))
	assert.True(t, mr.Exists("session:s-1"))
	assert.Equal(t, 30*time.Minute, mr.TTL("session:s-1"))

	loaded, err := store.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, billing.ModePartial, loaded.SelectionMode)
	assert.Equal(t, "500", loaded.PartialAmountInput)
	assert.True(t, loaded.Amount().Equal(decimal.NewFromInt(500)))
	assert.True(t, loaded.Snapshot.TotalPayableAmount.Equal(decimal.NewFromInt(1413)))
}

func TestSessionStoreLoadMissing(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client, time.Minute)

	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreRejectsCorruptSession(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStore(client, time.Minute)

	s := demoSession(t, "s-2")
	s.Snapshot.TotalPayableAmount = decimal.NewFromInt(9999)
	require.NoError(t, store.Save(context.Background(), s))
	require.True(t, mr.Exists("session:s-2"))

	_, err := store.Load(context.Background(), "s-2")
	assert.ErrorIs(t, err, billing.ErrDataIntegrity)
}

func TestSessionStoreDelete(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, demoSession(t, "s-3")))
	require.NoError(t, store.Delete(ctx, "s-3"))
	assert.False(t, mr.Exists("session:s-3"))

	assert.ErrorIs(t, store.Delete(ctx, "s-3"), ErrSessionNotFound)
}

func TestSessionStoreUpdate(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, demoSession(t, "s-4")))

	t.Run("applies and persists the change", func(t *testing.T) {
		updated, err := store.Update(ctx, "s-4", func(s *billing.Session) error {
			return s.SelectPaymentMethod(billing.MethodCard)
		})
		require.NoError(t, err)
		assert.Equal(t, billing.MethodCard, updated.PaymentMethod)

		loaded, err := store.Load(ctx, "s-4")
		require.NoError(t, err)
		assert.Equal(t, billing.MethodCard, loaded.PaymentMethod)
	})

	t.Run("callback error leaves the stored session untouched", func(t *testing.T) {
		boom := errors.New("boom")
		session, err := store.Update(ctx, "s-4", func(s *billing.Session) error {
			s.PaymentMethod = billing.MethodNetBanking
			return boom
		})
		assert.ErrorIs(t, err, boom)
		require.NotNil(t, session)

		loaded, err := store.Load(ctx, "s-4")
		require.NoError(t, err)
		assert.Equal(t, billing.MethodCard, loaded.PaymentMethod)
	})

	t.Run("missing session", func(t *testing.T) {
		_, err := store.Update(ctx, "missing", func(s *billing.Session) error { return nil })
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestSessionStoreUpdateRetriesAfterConcurrentWrite(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, demoSession(t, "s-5")))

	calls := 0
	updated, err := store.Update(ctx, "s-5", func(s *billing.Session) error {
		calls++
		if calls == 1 {
			other := demoSession(t, "s-5")
			require.NoError(t, other.SelectMode(billing.ModePending))
			require.NoError(t, store.Save(ctx, other))
		}
		return s.SelectPaymentMethod(billing.MethodNetBanking)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, billing.ModePending, updated.SelectionMode)

	loaded, err := store.Load(ctx, "s-5")
	require.NoError(t, err)
	assert.Equal(t, billing.ModePending, loaded.SelectionMode)
	assert.Equal(t, billing.MethodNetBanking, loaded.PaymentMethod)
}

func TestSessionStoreUpdateGivesUpAfterRetries(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, demoSession(t, "s-6")))

	calls := 0
	_, err := store.Update(ctx, "s-6", func(s *billing.Session) error {
		calls++
		require.NoError(t, store.Save(ctx, demoSession(t, "s-6")))
		return nil
	})
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.Equal(t, MaxUpdateRetries, calls)
}
