package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BillAccountSnapshot is the bill state of one consumer as fetched for a
// payment session. It is passed around by value and never mutated.
type BillAccountSnapshot struct {
	ConsumerID         string          `json:"consumerId"`
	PreviousDueAmount  decimal.Decimal `json:"previousDueAmount"`
	CurrentBillAmount  decimal.Decimal `json:"currentBillAmount"`
	InterestAmount     decimal.Decimal `json:"interestAmount"`
	DiscountAmount     decimal.Decimal `json:"discountAmount"`
	TotalPayableAmount decimal.Decimal `json:"totalPayableAmount"`
	DiscountValidTill  *time.Time      `json:"discountValidTill,omitempty"`
}

type SnapshotParams struct {
	ConsumerID         string
	PreviousDueAmount  decimal.Decimal
	CurrentBillAmount  decimal.Decimal
	InterestAmount     decimal.Decimal
	DiscountAmount     decimal.Decimal
	TotalPayableAmount decimal.Decimal
	DiscountValidTill  *time.Time
}

func NewBillAccountSnapshot(p SnapshotParams) (BillAccountSnapshot, error) {
	s := BillAccountSnapshot{
		ConsumerID:         strings.TrimSpace(p.ConsumerID),
		PreviousDueAmount:  p.PreviousDueAmount,
		CurrentBillAmount:  p.CurrentBillAmount,
		InterestAmount:     p.InterestAmount,
		DiscountAmount:     p.DiscountAmount,
		TotalPayableAmount: p.TotalPayableAmount,
	}
	if p.DiscountValidTill != nil {
		till := *p.DiscountValidTill
		s.DiscountValidTill = &till
	}

	if err := s.Validate(); err != nil {
		return BillAccountSnapshot{}, err
	}

	return s, nil
}

// Validate checks that the components are non-negative, that the discount
// does not exceed previous due plus interest and that the stated total equals
// previous due + current + interest - discount.
func (s BillAccountSnapshot) Validate() error {
	if s.ConsumerID == "" {
		return fmt.Errorf("%w: consumer id is empty", ErrDataIntegrity)
	}

	components := []struct {
		name  string
		value decimal.Decimal
	}{
		{"previous due", s.PreviousDueAmount},
		{"current bill", s.CurrentBillAmount},
		{"interest", s.InterestAmount},
		{"discount", s.DiscountAmount},
	}
	for _, c := range components {
		if c.value.IsNegative() {
			return fmt.Errorf("%w: %s amount %s is negative", ErrDataIntegrity, c.name, c.value)
		}
	}

	if s.DiscountAmount.GreaterThan(s.PreviousDueAmount.Add(s.InterestAmount)) {
		return fmt.Errorf("%w: discount %s exceeds previous due plus interest", ErrDataIntegrity, s.DiscountAmount)
	}

	expected := s.PreviousDueAmount.
		Add(s.CurrentBillAmount).
		Add(s.InterestAmount).
		Sub(s.DiscountAmount)
	if !expected.Equal(s.TotalPayableAmount) {
		return fmt.Errorf("%w: total payable %s does not match components sum %s",
			ErrDataIntegrity, s.TotalPayableAmount, expected)
	}

	return nil
}
