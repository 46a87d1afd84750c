package billing

import (
	"regexp"
	"strings"
	"time"

	"water-bill-portal/pkg/utils"

	"github.com/shopspring/decimal"
)

// partialAmountPattern accepts plain decimals in rupees with at most two
// fraction digits. Exponents are refused before any arithmetic runs.
var partialAmountPattern = regexp.MustCompile(`^[+-]?[0-9]{1,12}(\.[0-9]{1,2})?$`)

type DiscountPolicy string

const (
	// DiscountAlways applies the discount whenever the previous due is paid,
	// without looking at DiscountValidTill.
	DiscountAlways DiscountPolicy = "always"
	// DiscountUntilValidTill lapses the discount once AsOf falls on a calendar
	// day after DiscountValidTill. Snapshots without a validity date keep it.
	DiscountUntilValidTill DiscountPolicy = "until_valid_till"
)

func (p DiscountPolicy) Valid() bool {
	return p == DiscountAlways || p == DiscountUntilValidTill
}

// Resolver derives payable amounts from a snapshot. It holds no state besides
// its discount policy and evaluation date, so every method is deterministic.
type Resolver struct {
	Policy DiscountPolicy
	AsOf   time.Time
}

func NewResolver(policy DiscountPolicy, asOf time.Time) Resolver {
	if !policy.Valid() {
		policy = DiscountAlways
	}
	return Resolver{Policy: policy, AsOf: asOf}
}

// ResolveAmount resolves with the always-on discount rule.
func ResolveAmount(s BillAccountSnapshot, mode SelectionMode, partialInput string) (decimal.Decimal, ErrorKind) {
	return NewResolver(DiscountAlways, time.Time{}).ResolveAmount(s, mode, partialInput)
}

func (r Resolver) DiscountApplies(s BillAccountSnapshot) bool {
	if !s.DiscountAmount.IsPositive() {
		return false
	}
	if r.Policy != DiscountUntilValidTill || s.DiscountValidTill == nil {
		return true
	}
	return utils.IsOnOrBeforeDate(r.AsOf, *s.DiscountValidTill)
}

// PendingPortion is previous due plus interest minus the applicable
// discount, never below zero.
func (r Resolver) PendingPortion(s BillAccountSnapshot) decimal.Decimal {
	pending := s.PreviousDueAmount.Add(s.InterestAmount)
	if r.DiscountApplies(s) {
		pending = pending.Sub(s.DiscountAmount)
	}
	if pending.IsNegative() {
		return decimal.Zero
	}
	return pending
}

func (r Resolver) PayableTotal(s BillAccountSnapshot) decimal.Decimal {
	return r.PendingPortion(s).Add(s.CurrentBillAmount)
}

// NoDemand reports whether nothing is owed on the snapshot.
func (r Resolver) NoDemand(s BillAccountSnapshot) bool {
	return !r.PayableTotal(s).IsPositive()
}

func (r Resolver) ResolveAmount(s BillAccountSnapshot, mode SelectionMode, partialInput string) (decimal.Decimal, ErrorKind) {
	if err := s.Validate(); err != nil {
		return decimal.Zero, DataIntegrityViolation
	}

	total := r.PayableTotal(s)
	if !total.IsPositive() {
		return decimal.Zero, NoError
	}

	switch mode {
	case ModePending:
		return r.PendingPortion(s), NoError
	case ModeTotal:
		return total, NoError
	case ModePartial:
		return ParsePartialAmount(partialInput, total)
	}

	return decimal.Zero, InvalidSubmission
}

// ParsePartialAmount validates raw user input against the payable total.
// Checks run in order: parse, upper bound, positivity.
func ParsePartialAmount(input string, total decimal.Decimal) (decimal.Decimal, ErrorKind) {
	input = strings.TrimSpace(input)
	if !partialAmountPattern.MatchString(input) {
		return decimal.Zero, NotANumber
	}

	amount, err := decimal.NewFromString(input)
	if err != nil {
		return decimal.Zero, NotANumber
	}
	if amount.GreaterThan(total) {
		return decimal.Zero, ExceedsTotal
	}
	if !amount.IsPositive() {
		return decimal.Zero, NotPositive
	}
	return amount, NoError
}
