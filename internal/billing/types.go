package billing

import "errors"

var (
	ErrDataIntegrity     = errors.New("bill snapshot failed integrity check")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrUnknownMode       = errors.New("unknown selection mode")
	ErrUnknownMethod     = errors.New("unknown payment method")
	ErrInvalidContact    = errors.New("invalid contact details")
)

type SelectionMode string

const (
	ModePending SelectionMode = "pending"
	ModeTotal   SelectionMode = "total"
	ModePartial SelectionMode = "partial"
)

func (m SelectionMode) Valid() bool {
	switch m {
	case ModePending, ModeTotal, ModePartial:
		return true
	}
	return false
}

type Phase string

const (
	PhaseEditing    Phase = "editing"
	PhaseProcessing Phase = "processing"
	PhaseSucceeded  Phase = "succeeded"
)

// ErrorKind is a validation or payment outcome stored on the session.
// The zero value means no error.
type ErrorKind string

const (
	NoError                ErrorKind = ""
	NotANumber             ErrorKind = "not_a_number"
	NotPositive            ErrorKind = "not_positive"
	ExceedsTotal           ErrorKind = "exceeds_total"
	InvalidSubmission      ErrorKind = "invalid_submission"
	PaymentFailure         ErrorKind = "payment_failure"
	PaymentTimeout         ErrorKind = "payment_timeout"
	DataIntegrityViolation ErrorKind = "data_integrity_violation"

	// Contact confirmation outcomes. They are returned to the caller and never
	// stored as the session's validation error.
	InvalidMobile    ErrorKind = "invalid_mobile"
	InvalidEmail     ErrorKind = "invalid_email"
	TermsNotAccepted ErrorKind = "terms_not_accepted"
)

// Retryable reports whether the kind was produced by the payment collaborator
// and a fresh submit is allowed once the input is valid again.
func (k ErrorKind) Retryable() bool {
	return k == PaymentFailure || k == PaymentTimeout
}

type PaymentMethod string

const (
	MethodUPI        PaymentMethod = "upi"
	MethodCard       PaymentMethod = "card"
	MethodNetBanking PaymentMethod = "netbanking"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodUPI, MethodCard, MethodNetBanking:
		return true
	}
	return false
}
