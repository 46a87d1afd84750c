package internal

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"water-bill-portal/pkg/utils"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	ReceiptHashMap        = "receipts"
	ConsumerReceiptPrefix = "receipts:consumer:"
)

type ReceiptRepository struct {
	db *redis.Client
}

func NewReceiptRepository(db *redis.Client) *ReceiptRepository {
	return &ReceiptRepository{
		db: db,
	}
}

func (r *ReceiptRepository) Add(ctx context.Context, receipt Receipt) error {
	raw, err := sonic.Marshal(receipt)
	if err != nil {
		slog.Error("failed to marshal receipt", "err", err)
		return err
	}

	_, err = r.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, ReceiptHashMap, receipt.TransactionID, raw)
		pipe.SAdd(ctx, ConsumerReceiptPrefix+receipt.ConsumerNo, receipt.TransactionID)
		return nil
	})
	if err != nil {
		slog.Error("failed to save receipt in redis hashmap", "err", err, "transactionId", receipt.TransactionID)
	}

	return err
}

// ListByConsumer returns the consumer's receipts, newest first.
func (r *ReceiptRepository) ListByConsumer(ctx context.Context, consumerNo string) ([]Receipt, error) {
	ids, err := r.db.SMembers(ctx, ConsumerReceiptPrefix+consumerNo).Result()
	if err != nil {
		slog.Error("failed to list consumer receipts", "err", err, "consumerNo", consumerNo)
		return nil, err
	}
	if len(ids) == 0 {
		return []Receipt{}, nil
	}

	values, err := r.db.HMGet(ctx, ReceiptHashMap, ids...).Result()
	if err != nil {
		slog.Error("failed to get receipts from redis hashmap", "err", err)
		return nil, err
	}

	receipts := make([]Receipt, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}

		var receipt Receipt
		if err := sonic.UnmarshalString(raw, &receipt); err != nil {
			slog.Error("failed to decode a receipt", "err", err)
			return nil, err
		}
		receipts = append(receipts, receipt)
	}

	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].PaidAt.After(receipts[j].PaidAt)
	})

	return receipts, nil
}

func (r *ReceiptRepository) Summary(ctx context.Context, fromStr, toStr string) (SummaryResponse, error) {
	totalRequests := 0
	totalAmount := decimal.Zero

	var from, to time.Time
	filterByTime := false
	if fromStr != "" && toStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339Nano, fromStr)
		if err != nil {
			slog.Error("failed to parse the from", "err", err, "from", fromStr)
		}
		if err == nil {
			to, err = time.Parse(time.RFC3339Nano, toStr)
			if err != nil {
				slog.Error("failed to parse the to", "err", err, "to", toStr)
			}
		}

		filterByTime = err == nil
	}

	receipts, err := r.db.HGetAll(ctx, ReceiptHashMap).Result()
	if err != nil {
		slog.Error("failed to get receipts from redis hashmap", "err", err)
		return SummaryResponse{}, err
	}

	for _, v := range receipts {
		var receipt Receipt
		if err := sonic.UnmarshalString(v, &receipt); err != nil {
			slog.Error("failed to process a receipt", "err", err)
			return SummaryResponse{}, err
		}

		if filterByTime && !utils.IsWithInRange(receipt.PaidAt, from, to) {
			continue
		}

		totalAmount = totalAmount.Add(receipt.Amount)
		totalRequests++
	}

	return SummaryResponse{
		TotalRequests: totalRequests,
		TotalAmount:   totalAmount,
	}, nil
}

func (r *ReceiptRepository) Purge(ctx context.Context) error {
	keys, err := r.db.Keys(ctx, ConsumerReceiptPrefix+"*").Result()
	if err != nil {
		slog.Error("failed to list consumer receipt sets", "err", err)
		return err
	}

	err = r.db.Del(ctx, append(keys, ReceiptHashMap)...).Err()
	if err != nil {
		slog.Error("failed to delete receipts hash", "err", err)
	}

	return err
}
