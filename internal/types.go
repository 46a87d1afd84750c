package internal

import (
	"time"

	"water-bill-portal/internal/billing"
	"water-bill-portal/pkg/parser"

	"github.com/shopspring/decimal"
)

type SearchFilter string

const (
	FilterConsumer    SearchFilter = "consumer"
	FilterContact     SearchFilter = "contact"
	FilterName        SearchFilter = "name"
	FilterWard        SearchFilter = "ward"
	FilterUPIC        SearchFilter = "upic"
	FilterApplication SearchFilter = "application"
)

func (f SearchFilter) Valid() bool {
	switch f {
	case FilterConsumer, FilterContact, FilterName, FilterWard, FilterUPIC, FilterApplication:
		return true
	}
	return false
}

type LookupKey struct {
	Filter SearchFilter `json:"filter"`
	Value  string       `json:"value"`
}

// Account is a consumer record as returned by the directory: profile,
// connection and meter details plus the current bill components.
type Account struct {
	ConsumerNo       string `json:"consumerNo"`
	OldConsumerNo    string `json:"oldConsumerNo"`
	Name             string `json:"name"`
	NameMarathi      string `json:"nameMarathi"`
	MobileNo         string `json:"mobileNo"`
	EmailID          string `json:"emailId"`
	ZoneArea         string `json:"zoneArea"`
	WardNo           string `json:"wardNo"`
	PropertyNo       string `json:"propertyNo"`
	UPIC             string `json:"upic"`
	ApplicationNo    string `json:"applicationNo"`
	Address          string `json:"address"`
	Connections      int    `json:"connections"`
	ConnectionType   string `json:"connectionType"`
	ConnectionStatus string `json:"connectionStatus"`
	MeterNo          string `json:"meterNo"`
	UnitsConsumed    int    `json:"unitsConsumed"`
	CurrentBillMonth string `json:"currentBillMonth"`

	PreviousDueAmount  decimal.Decimal `json:"previousDueAmount"`
	CurrentBillAmount  decimal.Decimal `json:"currentBillAmount"`
	InterestAmount     decimal.Decimal `json:"interestAmount"`
	DiscountAmount     decimal.Decimal `json:"discountAmount"`
	TotalPayableAmount decimal.Decimal `json:"totalPayableAmount"`
	DiscountSchemeName string          `json:"discountSchemeName,omitempty"`
	DiscountValidTill  *time.Time      `json:"discountValidTill,omitempty"`
}

func (a Account) Snapshot() (billing.BillAccountSnapshot, error) {
	return billing.NewBillAccountSnapshot(billing.SnapshotParams{
		ConsumerID:         a.ConsumerNo,
		PreviousDueAmount:  a.PreviousDueAmount,
		CurrentBillAmount:  a.CurrentBillAmount,
		InterestAmount:     a.InterestAmount,
		DiscountAmount:     a.DiscountAmount,
		TotalPayableAmount: a.TotalPayableAmount,
		DiscountValidTill:  a.DiscountValidTill,
	})
}

type BillStatus string

const (
	BillPaid   BillStatus = "paid"
	BillUnpaid BillStatus = "unpaid"
)

// BillRecord is one issued bill in a consumer's history.
type BillRecord struct {
	BillNo  string          `json:"billNo"`
	Period  time.Time       `json:"period"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate time.Time       `json:"dueDate"`
	Status  BillStatus      `json:"status"`
}

type ChargeRequest struct {
	CorrelationId string                `json:"correlationId"`
	ConsumerNo    string                `json:"consumerNo"`
	Amount        decimal.Decimal       `json:"amount"`
	PaymentMethod billing.PaymentMethod `json:"paymentMethod"`
	MobileNo      string                `json:"mobileNo"`
	Email         string                `json:"email"`
	RequestedAt   string                `json:"requestedAt"`
}

func (p *ChargeRequest) UpdateRequestTime() {
	p.RequestedAt = parser.FormatRFC3339(time.Now())
}

type ChargeResult struct {
	TransactionID string `json:"transactionId"`
}

// PaymentJob is what the API hands to the workers when a session is submitted.
type PaymentJob struct {
	SessionID     string                `json:"sessionId"`
	SelectionMode billing.SelectionMode `json:"selectionMode"`
	Charge        ChargeRequest         `json:"charge"`
}

type Receipt struct {
	TransactionID string                `json:"transactionId"`
	ConsumerNo    string                `json:"consumerNo"`
	Amount        decimal.Decimal       `json:"amount"`
	PaymentMethod billing.PaymentMethod `json:"paymentMethod"`
	SelectionMode billing.SelectionMode `json:"selectionMode"`
	MobileNo      string                `json:"mobileNo"`
	Email         string                `json:"email"`
	PaidAt        time.Time             `json:"paidAt"`
}

type SummaryResponse struct {
	TotalRequests int             `json:"totalRequests"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

type ValidationErrorView struct {
	Kind      billing.ErrorKind `json:"kind"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
}

type BillBreakdown struct {
	PreviousDue     string `json:"previousDue"`
	Interest        string `json:"interest"`
	Discount        string `json:"discount"`
	DiscountApplied bool   `json:"discountApplied"`
	PendingPortion  string `json:"pendingPortion"`
	CurrentCharges  string `json:"currentCharges"`
	TotalPayable    string `json:"totalPayable"`
}

type SessionView struct {
	ID                 string                `json:"id"`
	ConsumerNo         string                `json:"consumerNo"`
	Phase              billing.Phase         `json:"phase"`
	SelectionMode      billing.SelectionMode `json:"selectionMode"`
	PartialAmountInput string                `json:"partialAmountInput"`
	PaymentMethod      billing.PaymentMethod `json:"paymentMethod"`
	Contact            *ContactView          `json:"contact,omitempty"`
	Amount             string                `json:"amount"`
	NoDemand           bool                  `json:"noDemand"`
	ValidationError    *ValidationErrorView  `json:"validationError,omitempty"`
	TransactionID      string                `json:"transactionId,omitempty"`
	Bill               BillBreakdown         `json:"bill"`
}

type ContactView struct {
	Mobile        string `json:"mobile"`
	Email         string `json:"email"`
	TermsAccepted bool   `json:"termsAccepted"`
}

type BillRecordView struct {
	BillNo  string     `json:"billNo"`
	Month   string     `json:"month"`
	Period  string     `json:"period"`
	Amount  string     `json:"amount"`
	DueDate string     `json:"dueDate"`
	Status  BillStatus `json:"status"`
}
