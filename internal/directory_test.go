package internal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStaticDirectorySearch(t *testing.T) {
	d := NewStaticDirectory(0, time.UTC)
	ctx := context.Background()

	tests := []struct {
		name      string
		key       LookupKey
		wantCount int
		wantFirst string
	}{
		{name: "consumer number", key: LookupKey{FilterConsumer, "WB123456"}, wantCount: 1, wantFirst: "WB123456"},
		{name: "consumer number is case insensitive", key: LookupKey{FilterConsumer, "wb123457"}, wantCount: 1, wantFirst: "WB123457"},
		{name: "unknown consumer gets demo account", key: LookupKey{FilterConsumer, "AKL2024000123"}, wantCount: 1, wantFirst: "AKL2024000123"},
		{name: "shared contact number", key: LookupKey{FilterContact, "9876543212"}, wantCount: 3, wantFirst: "WB234567"},
		{name: "english name", key: LookupKey{FilterName, "amit"}, wantCount: 2, wantFirst: "WB345678"},
		{name: "marathi name", key: LookupKey{FilterName, "प्रिया"}, wantCount: 1, wantFirst: "WB567890"},
		{name: "ward with prefix", key: LookupKey{FilterWard, "ward-9"}, wantCount: 1, wantFirst: "WB567890"},
		{name: "upic", key: LookupKey{FilterUPIC, "upic100000"}, wantCount: 1, wantFirst: "WB123456"},
		{name: "application", key: LookupKey{FilterApplication, "APP-2024-0013"}, wantCount: 1, wantFirst: "WB789013"},
		{name: "no contact match", key: LookupKey{FilterContact, "9000000000"}, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts, err := d.Search(ctx, tt.key)
			require.NoError(t, err)
			require.Len(t, accounts, tt.wantCount)
			if tt.wantCount > 0 {
				assert.Equal(t, tt.wantFirst, accounts[0].ConsumerNo)
			}
		})
	}
}

func TestStaticDirectoryFind(t *testing.T) {
	d := NewStaticDirectory(0, time.UTC)
	ctx := context.Background()

	account, err := d.Find(ctx, LookupKey{Value: " WB123456 "})
	require.NoError(t, err)
	assert.Equal(t, "WB123456", account.ConsumerNo)
	assert.Equal(t, "Rajesh Kumar Sharma", account.Name)

	_, err = d.Find(ctx, LookupKey{FilterContact, "9876543212"})
	assert.ErrorIs(t, err, ErrAmbiguousMatch)

	_, err = d.Find(ctx, LookupKey{FilterContact, "9000000000"})
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = d.WithoutSynthesis().Find(ctx, LookupKey{FilterConsumer, "AKL2024000123"})
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = d.Find(ctx, LookupKey{FilterConsumer, "  "})
	assert.ErrorIs(t, err, ErrInvalidLookup)

	_, err = d.Find(ctx, LookupKey{SearchFilter("email"), "x@y.z"})
	assert.ErrorIs(t, err, ErrInvalidLookup)
}

func TestStaticDirectoryAccountsHaveConsistentBills(t *testing.T) {
	d := NewStaticDirectory(0, time.UTC)

	for _, a := range d.accounts {
		snapshot, err := a.Snapshot()
		require.NoError(t, err, a.ConsumerNo)

		if a.ConsumerNo == NoDemandConsumerNo {
			assert.True(t, snapshot.TotalPayableAmount.IsZero())
			continue
		}
		assert.True(t, snapshot.TotalPayableAmount.Equal(decimal.NewFromInt(1413)))
		require.NotNil(t, snapshot.DiscountValidTill)
		assert.Equal(t, "2024-11-15", snapshot.DiscountValidTill.Format("2006-01-02"))
	}
}

func TestStaticDirectoryHonoursContext(t *testing.T) {
	d := NewStaticDirectory(time.Second, time.UTC)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := d.Search(ctx, LookupKey{FilterConsumer, "WB123456"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAccountDocumentToAccount(t *testing.T) {
	mustDec := func(s string) primitive.Decimal128 {
		d, err := primitive.ParseDecimal128(s)
		require.NoError(t, err)
		return d
	}

	till := time.Date(2024, time.November, 15, 0, 0, 0, 0, time.UTC)
	doc := accountDocument{
		ConsumerNo:         "AKL2024000123",
		Name:               "Rajesh Kumar Sharma",
		PreviousDueAmount:  mustDec("1080.00"),
		CurrentBillAmount:  mustDec("360"),
		InterestAmount:     mustDec("45.00"),
		DiscountAmount:     mustDec("72"),
		TotalPayableAmount: mustDec("1413.00"),
		DiscountValidTill:  &till,
	}

	account, err := doc.toAccount()
	require.NoError(t, err)
	assert.True(t, account.PreviousDueAmount.Equal(decimal.NewFromInt(1080)))
	assert.True(t, account.TotalPayableAmount.Equal(decimal.NewFromInt(1413)))

	_, err = account.Snapshot()
	assert.NoError(t, err)

	empty, err := accountDocument{ConsumerNo: "AKL2024999999"}.toAccount()
	require.NoError(t, err)
	assert.True(t, empty.TotalPayableAmount.IsZero())
}

func TestMongoFilter(t *testing.T) {
	assert.Equal(t, bson.M{"consumerNo": "WB123456"}, mongoFilter(LookupKey{FilterConsumer, "WB123456"}))
	assert.Equal(t, bson.M{"mobileNo": "9876543210"}, mongoFilter(LookupKey{FilterContact, "9876543210"}))
	assert.Equal(t, bson.M{"wardNo": "5"}, mongoFilter(LookupKey{FilterWard, "Ward-5"}))

	name := mongoFilter(LookupKey{FilterName, "a.b"})
	or, ok := name["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)
	assert.Equal(t, bson.M{"name": primitive.Regex{Pattern: `a\.b`, Options: "i"}}, or[0])
}

func TestStaticDirectoryBillHistory(t *testing.T) {
	d := NewStaticDirectory(0, time.UTC)
	ctx := context.Background()

	bills, err := d.BillHistory(ctx, "WB123456")
	require.NoError(t, err)
	require.Len(t, bills, 6)

	assert.Equal(t, "BILL-2024-11-001", bills[0].BillNo)
	assert.Equal(t, BillUnpaid, bills[0].Status)
	assert.True(t, bills[0].Amount.Equal(decimal.NewFromInt(1450)))
	assert.Equal(t, "2024-11-10", bills[0].DueDate.Format("2006-01-02"))

	assert.Equal(t, "BILL-2024-06-001", bills[5].BillNo)
	assert.Equal(t, BillPaid, bills[5].Status)
	for i := 1; i < len(bills); i++ {
		assert.True(t, bills[i].Period.Before(bills[i-1].Period))
	}

	settled, err := d.BillHistory(ctx, NoDemandConsumerNo)
	require.NoError(t, err)
	for _, b := range settled {
		assert.Equal(t, BillPaid, b.Status)
	}

	_, err = d.WithoutSynthesis().BillHistory(ctx, "AKL2024000123")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestBillDocumentToRecord(t *testing.T) {
	amount, err := primitive.ParseDecimal128("1250.00")
	require.NoError(t, err)

	period := time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)
	record, err := billDocument{
		ConsumerNo: "WB123456",
		BillNo:     "BILL-2024-10-001",
		Period:     period,
		Amount:     amount,
		DueDate:    period.AddDate(0, 0, 9),
		Status:     "paid",
	}.toRecord()
	require.NoError(t, err)
	assert.Equal(t, BillPaid, record.Status)
	assert.True(t, record.Amount.Equal(decimal.NewFromInt(1250)))

	_, err = billDocument{BillNo: "BILL-X", Status: "overdue"}.toRecord()
	assert.Error(t, err)
}
