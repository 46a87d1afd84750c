package internal

import (
	"context"
	"testing"
	"time"

	"water-bill-portal/internal/billing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitDemoSession(t *testing.T, p *testPortal, id string) PaymentJob {
	t.Helper()
	ctx := context.Background()

	s := demoSession(t, id)
	require.NoError(t, s.ConfirmContact(billing.ContactDetails{
		Mobile:        "9876543210",
		Email:         "rajesh.sharma@example.com",
		TermsAccepted: true,
	}, ""))
	require.NoError(t, s.Submit())
	require.NoError(t, p.sessions.Save(ctx, s))

	job := PaymentJob{
		SessionID:     id,
		SelectionMode: s.SelectionMode,
		Charge: ChargeRequest{
			CorrelationId: id,
			ConsumerNo:    s.Snapshot.ConsumerID,
			Amount:        s.SubmittedAmount,
			PaymentMethod: s.PaymentMethod,
			MobileNo:      s.Contact.Mobile,
			Email:         s.Contact.Email,
		},
	}
	require.NoError(t, p.queue.Enqueue(ctx, job))

	return job
}

func TestProcessNextEmptyQueue(t *testing.T) {
	p := newTestPortal(t)

	assert.ErrorIs(t, p.processor.ProcessNext(context.Background()), ErrQueueEmpty)
}

func TestProcessNextSuccess(t *testing.T) {
	p := newTestPortal(t)
	ctx := context.Background()
	submitDemoSession(t, p, "w-1")

	length, err := p.queue.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, length)

	require.NoError(t, p.processor.ProcessNext(ctx))

	s, err := p.sessions.Load(ctx, "w-1")
	require.NoError(t, err)
	assert.Equal(t, billing.PhaseSucceeded, s.Phase)
	assert.Equal(t, "TXN1", s.TransactionID)
	assert.True(t, s.SubmittedAmount.Equal(decimal.NewFromInt(1413)))

	require.Len(t, p.gateway.calls, 1)
	assert.True(t, p.gateway.calls[0].Amount.Equal(decimal.NewFromInt(1413)))
	assert.Equal(t, "9876543210", p.gateway.calls[0].MobileNo)

	receipts, err := p.receipts.ListByConsumer(ctx, "AKL2024000123")
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "TXN1", receipts[0].TransactionID)
	assert.Equal(t, billing.ModeTotal, receipts[0].SelectionMode)
	assert.Equal(t, "9876543210", receipts[0].MobileNo)
	assert.Equal(t, "rajesh.sharma@example.com", receipts[0].Email)

	assert.ErrorIs(t, p.processor.ProcessNext(ctx), ErrQueueEmpty)
}

func TestProcessNextFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind billing.ErrorKind
	}{
		{name: "processor rejects", err: ErrInvalidRequest, wantKind: billing.PaymentFailure},
		{name: "processor unavailable", err: ErrUnavailableProcessor, wantKind: billing.PaymentFailure},
		{name: "gateway timeout", err: ErrGatewayTimeout, wantKind: billing.PaymentTimeout},
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantKind: billing.PaymentTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPortal(t)
			p.gateway.err = tt.err
			ctx := context.Background()
			submitDemoSession(t, p, "w-2")

			require.NoError(t, p.processor.ProcessNext(ctx))

			s, err := p.sessions.Load(ctx, "w-2")
			require.NoError(t, err)
			assert.Equal(t, billing.PhaseEditing, s.Phase)
			assert.Equal(t, tt.wantKind, s.ValidationError)
			assert.True(t, s.ValidationError.Retryable())
			assert.True(t, s.SubmittedAmount.IsZero())

			receipts, err := p.receipts.ListByConsumer(ctx, "AKL2024000123")
			require.NoError(t, err)
			assert.Empty(t, receipts)

			require.NoError(t, s.Submit(), "a failed payment can be retried")
		})
	}
}

func TestProcessNextClosedSessionKeepsReceipt(t *testing.T) {
	p := newTestPortal(t)
	ctx := context.Background()
	submitDemoSession(t, p, "w-3")
	require.NoError(t, p.sessions.Delete(ctx, "w-3"))

	require.NoError(t, p.processor.ProcessNext(ctx))

	receipts, err := p.receipts.ListByConsumer(ctx, "AKL2024000123")
	require.NoError(t, err)
	assert.Len(t, receipts, 1)
}

func TestProcessNextSkipsMalformedJob(t *testing.T) {
	p := newTestPortal(t)
	ctx := context.Background()
	require.NoError(t, p.redis.RPush(ctx, PaymentProcessingQueue, "{not json").Err())

	assert.NoError(t, p.processor.ProcessNext(ctx))
	assert.Empty(t, p.gateway.calls)
}

func TestStartWorkersDrainQueue(t *testing.T) {
	p := newTestPortal(t)
	submitDemoSession(t, p, "w-4")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.processor.StartWorkers(ctx)

	assert.Eventually(t, func() bool {
		s, err := p.sessions.Load(context.Background(), "w-4")
		return err == nil && s.Phase == billing.PhaseSucceeded
	}, 2*time.Second, 20*time.Millisecond)
}
