package internal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"water-bill-portal/internal/billing"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const PaymentProcessingQueue = "queue:payments"

const BackoffTimeEmptyQueue = 1 * time.Second

// ErrQueueEmpty is returned by ProcessNext when no job is waiting.
var ErrQueueEmpty = errors.New("payment queue is empty")

// PaymentQueue hands submitted sessions over to the workers.
type PaymentQueue struct {
	redis *redis.Client
}

func NewPaymentQueue(redis *redis.Client) *PaymentQueue {
	return &PaymentQueue{redis: redis}
}

func (q *PaymentQueue) Enqueue(ctx context.Context, job PaymentJob) error {
	raw, err := sonic.ConfigFastest.Marshal(job)
	if err != nil {
		slog.Error("failed to marshal the payment job", "err", err)
		return err
	}

	if err := q.redis.RPush(ctx, PaymentProcessingQueue, raw).Err(); err != nil {
		slog.Error("failed to enqueue the payment job", "err", err, "sessionId", job.SessionID)
		return err
	}

	return nil
}

func (q *PaymentQueue) Len(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, PaymentProcessingQueue).Result()
}

// PaymentProcessor drains the queue: it charges each job through the gateway
// and moves the session out of processing with the outcome.
type PaymentProcessor struct {
	redis    *redis.Client
	gateway  PaymentGateway
	sessions *SessionStore
	receipts *ReceiptRepository
	timeout  time.Duration
	workers  int
}

func NewPaymentProcessor(
	redis *redis.Client,
	gateway PaymentGateway,
	sessions *SessionStore,
	receipts *ReceiptRepository,
	timeout time.Duration,
	workers int,
) *PaymentProcessor {
	if timeout <= 0 {
		timeout = DefaultChargeTimeout
	}
	if workers <= 0 {
		workers = 1
	}

	return &PaymentProcessor{
		redis:    redis,
		gateway:  gateway,
		sessions: sessions,
		receipts: receipts,
		timeout:  timeout,
		workers:  workers,
	}
}

func (w *PaymentProcessor) StartWorkers(ctx context.Context) {
	for range w.workers {
		go w.run(ctx)
	}

	go func() {
		ticker := time.NewTicker(HealthCheckTicker)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				length, err := w.redis.LLen(ctx, PaymentProcessingQueue).Result()
				if err != nil {
					slog.Error("failed to get the length of the queue", "err", err)
					continue
				}
				slog.Debug("length of the queue", "length", length)
			}
		}
	}()
}

func (w *PaymentProcessor) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			err := w.ProcessNext(ctx)
			if errors.Is(err, ErrQueueEmpty) {
				time.Sleep(BackoffTimeEmptyQueue)
				continue
			}
			if err != nil && ctx.Err() == nil {
				slog.Error("failed to process a payment job", "err", err)
			}
		}
	}
}

// ProcessNext pops one job and settles it. Jobs are popped once; a session
// whose update still loses every retry stays in processing until it expires.
func (w *PaymentProcessor) ProcessNext(ctx context.Context) error {
	raw, err := w.redis.LPop(ctx, PaymentProcessingQueue).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrQueueEmpty
	}
	if err != nil {
		return err
	}

	var job PaymentJob
	if err := sonic.ConfigFastest.Unmarshal(raw, &job); err != nil {
		slog.Info("failed to unmarshal the payment job", "error", err, "raw", string(raw))
		return nil
	}

	return w.settle(ctx, job)
}

func (w *PaymentProcessor) settle(ctx context.Context, job PaymentJob) error {
	chargeCtx, cancel := context.WithTimeout(ctx, w.timeout)
	result, chargeErr := w.gateway.Charge(chargeCtx, job.Charge)
	cancel()

	if chargeErr == nil {
		slog.Info("payment succeeded",
			"sessionId", job.SessionID,
			"consumerNo", job.Charge.ConsumerNo,
			"transactionId", result.TransactionID,
		)
	} else {
		slog.Warn("payment failed", "sessionId", job.SessionID, "err", chargeErr)
	}

	_, err := w.sessions.Update(ctx, job.SessionID, func(s *billing.Session) error {
		if chargeErr != nil {
			kind := billing.PaymentFailure
			if errors.Is(chargeErr, ErrGatewayTimeout) || errors.Is(chargeErr, context.DeadlineExceeded) {
				kind = billing.PaymentTimeout
			}
			return s.FailProcessing(kind, chargeErr.Error())
		}
		return s.CompleteProcessing(result.TransactionID)
	})
	if errors.Is(err, ErrSessionNotFound) {
		slog.Warn("payment settled for a closed session",
			"sessionId", job.SessionID,
			"transactionId", result.TransactionID,
		)
		err = nil
	}

	if chargeErr != nil {
		return err
	}

	// The receipt is kept even when the session could not be updated: money was taken.
	receipt := Receipt{
		TransactionID: result.TransactionID,
		ConsumerNo:    job.Charge.ConsumerNo,
		Amount:        job.Charge.Amount,
		PaymentMethod: job.Charge.PaymentMethod,
		SelectionMode: job.SelectionMode,
		MobileNo:      job.Charge.MobileNo,
		Email:         job.Charge.Email,
		PaidAt:        time.Now().UTC(),
	}

	if addErr := w.receipts.Add(ctx, receipt); addErr != nil {
		return addErr
	}

	return err
}
