package internal

import (
	"context"
	"testing"
	"time"

	"water-bill-portal/internal/billing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return client, mr
}

type fakeGateway struct {
	result ChargeResult
	err    error
	calls  []ChargeRequest
}

func (g *fakeGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return ChargeResult{}, g.err
	}
	return g.result, nil
}

type testPortal struct {
	redis     *redis.Client
	mr        *miniredis.Miniredis
	sessions  *SessionStore
	receipts  *ReceiptRepository
	queue     *PaymentQueue
	gateway   *fakeGateway
	processor *PaymentProcessor
	handler   *PortalHandler
}

func newTestPortal(t *testing.T) *testPortal {
	t.Helper()

	client, mr := setupTestRedis(t)
	p := &testPortal{
		redis:    client,
		mr:       mr,
		sessions: NewSessionStore(client, 30*time.Minute),
		receipts: NewReceiptRepository(client),
		queue:    NewPaymentQueue(client),
		gateway:  &fakeGateway{result: ChargeResult{TransactionID: "TXN1"}},
	}
	p.processor = NewPaymentProcessor(client, p.gateway, p.sessions, p.receipts, time.Second, 1)
	p.handler = NewPortalHandler(
		NewStaticDirectory(0, time.UTC),
		p.sessions,
		p.queue,
		p.receipts,
		billing.DiscountAlways,
		time.UTC,
	)
	p.handler.now = func() time.Time {
		return time.Date(2024, time.November, 5, 10, 0, 0, 0, time.UTC)
	}

	return p
}

func demoSession(t *testing.T, id string) *billing.Session {
	t.Helper()

	snapshot, err := NewStaticDirectory(0, time.UTC).demoAccount("AKL2024000123").Snapshot()
	require.NoError(t, err)

	s, err := billing.NewSession(id, snapshot, billing.DiscountAlways, time.Date(2024, time.November, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return s
}
