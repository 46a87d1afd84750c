package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Session is the state of one payment attempt on a bill. It is not safe for
// concurrent mutation: callers serialise access per session.
type Session struct {
	ID                 string              `json:"id"`
	Snapshot           BillAccountSnapshot `json:"snapshot"`
	DiscountPolicy     DiscountPolicy      `json:"discountPolicy"`
	EvaluatedAt        time.Time           `json:"evaluatedAt"`
	SelectionMode      SelectionMode       `json:"selectionMode"`
	PartialAmountInput string              `json:"partialAmountInput,omitempty"`
	PaymentMethod      PaymentMethod       `json:"paymentMethod"`
	Contact            *ContactDetails     `json:"contact,omitempty"`
	ValidationError    ErrorKind           `json:"validationError,omitempty"`
	FailureReason      string              `json:"failureReason,omitempty"`
	Phase              Phase               `json:"phase"`
	SubmittedAmount    decimal.Decimal     `json:"submittedAmount"`
	TransactionID      string              `json:"transactionId,omitempty"`
}

// NewSession opens an editing session on the snapshot with the total amount
// selected. Snapshots that fail validation are fatal to the session.
func NewSession(id string, snapshot BillAccountSnapshot, policy DiscountPolicy, asOf time.Time) (*Session, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	if !policy.Valid() {
		policy = DiscountAlways
	}

	s := &Session{
		ID:             id,
		Snapshot:       snapshot,
		DiscountPolicy: policy,
		EvaluatedAt:    asOf,
		SelectionMode:  ModeTotal,
		PaymentMethod:  MethodUPI,
		Phase:          PhaseEditing,
	}
	s.revalidate()

	return s, nil
}

func (s *Session) Resolver() Resolver {
	return NewResolver(s.DiscountPolicy, s.EvaluatedAt)
}

// Amount is the payable amount for the current selection. It is zero while
// the selection is invalid or nothing is owed.
func (s *Session) Amount() decimal.Decimal {
	amount, _ := s.Resolver().ResolveAmount(s.Snapshot, s.SelectionMode, s.PartialAmountInput)
	return amount
}

func (s *Session) NoDemand() bool {
	return s.Resolver().NoDemand(s.Snapshot)
}

func (s *Session) SelectMode(mode SelectionMode) error {
	if s.Phase != PhaseEditing {
		return fmt.Errorf("%w: select mode while %s", ErrInvalidTransition, s.Phase)
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	if s.SelectionMode == ModePartial && mode != ModePartial {
		s.PartialAmountInput = ""
	}
	s.SelectionMode = mode
	s.revalidate()

	return nil
}

func (s *Session) EditPartialAmount(text string) error {
	if s.Phase != PhaseEditing {
		return fmt.Errorf("%w: edit partial amount while %s", ErrInvalidTransition, s.Phase)
	}
	if s.SelectionMode != ModePartial {
		return fmt.Errorf("%w: edit partial amount in %s mode", ErrInvalidTransition, s.SelectionMode)
	}

	s.PartialAmountInput = text
	s.revalidate()

	return nil
}

func (s *Session) SelectPaymentMethod(method PaymentMethod) error {
	if s.Phase != PhaseEditing {
		return fmt.Errorf("%w: select payment method while %s", ErrInvalidTransition, s.Phase)
	}
	if !method.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}

	s.PaymentMethod = method
	return nil
}

// ConfirmContact records the payer's contact details and terms acceptance.
// An empty method keeps the selected one. A rejected confirmation returns a
// *ContactError and leaves any earlier confirmation in place.
func (s *Session) ConfirmContact(details ContactDetails, method PaymentMethod) error {
	if s.Phase != PhaseEditing {
		return fmt.Errorf("%w: confirm contact while %s", ErrInvalidTransition, s.Phase)
	}
	if method != "" && !method.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	if kind := details.Validate(); kind != NoError {
		return &ContactError{Kind: kind}
	}

	confirmed := details.normalize()
	s.Contact = &confirmed
	if method != "" {
		s.PaymentMethod = method
	}

	return nil
}

// Submit moves the session into processing and freezes the amount to charge.
// A rejected submission leaves the session untouched.
func (s *Session) Submit() error {
	if s.Phase != PhaseEditing {
		return fmt.Errorf("%w: submit while %s", ErrInvalidTransition, s.Phase)
	}

	amount, kind := s.Resolver().ResolveAmount(s.Snapshot, s.SelectionMode, s.PartialAmountInput)
	if kind != NoError {
		return fmt.Errorf("%w: %s", ErrInvalidSubmission, kind)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: nothing to pay", ErrInvalidSubmission)
	}
	if s.Contact == nil {
		return fmt.Errorf("%w: contact details not confirmed", ErrInvalidSubmission)
	}

	s.SubmittedAmount = amount
	s.ValidationError = NoError
	s.FailureReason = ""
	s.Phase = PhaseProcessing

	return nil
}

func (s *Session) CompleteProcessing(transactionID string) error {
	if s.Phase != PhaseProcessing {
		return fmt.Errorf("%w: complete while %s", ErrInvalidTransition, s.Phase)
	}
	if transactionID == "" {
		return fmt.Errorf("%w: empty transaction id", ErrInvalidTransition)
	}

	s.TransactionID = transactionID
	s.ValidationError = NoError
	s.FailureReason = ""
	s.Phase = PhaseSucceeded

	return nil
}

// FailProcessing returns the session to editing so the payment can be
// retried. Kinds other than PaymentTimeout are recorded as PaymentFailure.
func (s *Session) FailProcessing(kind ErrorKind, reason string) error {
	if s.Phase != PhaseProcessing {
		return fmt.Errorf("%w: fail while %s", ErrInvalidTransition, s.Phase)
	}
	if kind != PaymentTimeout {
		kind = PaymentFailure
	}

	s.ValidationError = kind
	s.FailureReason = reason
	s.SubmittedAmount = decimal.Zero
	s.Phase = PhaseEditing

	return nil
}

// Check verifies the phase invariants, e.g. after loading a stored session.
func (s *Session) Check() error {
	switch s.Phase {
	case PhaseEditing:
		if s.TransactionID != "" {
			return fmt.Errorf("%w: editing session carries transaction id", ErrInvalidTransition)
		}
	case PhaseProcessing:
		if !s.SubmittedAmount.IsPositive() {
			return fmt.Errorf("%w: processing session without amount", ErrInvalidTransition)
		}
	case PhaseSucceeded:
		if s.TransactionID == "" || s.ValidationError != NoError {
			return fmt.Errorf("%w: succeeded session without transaction id or with error", ErrInvalidTransition)
		}
	default:
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidTransition, s.Phase)
	}

	if s.Phase != PhaseEditing && s.Contact == nil {
		return fmt.Errorf("%w: %s session without confirmed contact", ErrInvalidTransition, s.Phase)
	}
	if s.Contact != nil && s.Contact.Validate() != NoError {
		return fmt.Errorf("%w: stored contact details are invalid", ErrInvalidTransition)
	}

	if s.SelectionMode == ModePartial && s.ValidationError == NoError && s.Phase == PhaseEditing && !s.NoDemand() {
		if _, kind := ParsePartialAmount(s.PartialAmountInput, s.Resolver().PayableTotal(s.Snapshot)); kind != NoError {
			return fmt.Errorf("%w: partial input %q is invalid but no error is recorded", ErrInvalidTransition, s.PartialAmountInput)
		}
	}

	return s.Snapshot.Validate()
}

// revalidate recomputes the inline validation error. Any payment error left by
// a failed attempt is replaced.
func (s *Session) revalidate() {
	_, kind := s.Resolver().ResolveAmount(s.Snapshot, s.SelectionMode, s.PartialAmountInput)
	s.ValidationError = kind
	s.FailureReason = ""
}
