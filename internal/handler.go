package internal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"water-bill-portal/internal/billing"
	"water-bill-portal/internal/locale"
	"water-bill-portal/pkg/parser"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

type PortalHandler struct {
	directory AccountDirectory
	sessions  *SessionStore
	queue     *PaymentQueue
	receipts  *ReceiptRepository
	policy    billing.DiscountPolicy
	loc       *time.Location
	now       func() time.Time
}

func NewPortalHandler(
	directory AccountDirectory,
	sessions *SessionStore,
	queue *PaymentQueue,
	receipts *ReceiptRepository,
	policy billing.DiscountPolicy,
	loc *time.Location,
) *PortalHandler {
	if loc == nil {
		loc = time.UTC
	}

	return &PortalHandler{
		directory: directory,
		sessions:  sessions,
		queue:     queue,
		receipts:  receipts,
		policy:    policy,
		loc:       loc,
		now:       time.Now,
	}
}

func NewApp(h *PortalHandler) *fiber.App {
	app := fiber.New(fiber.Config{
		JSONEncoder: sonic.Marshal,
		JSONDecoder: sonic.Unmarshal,

		CaseSensitive: true,
		StrictRouting: false,
		AppName:       "Water Bill Portal",
	})
	h.RegisterRoutes(app)

	return app
}

func (h *PortalHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/accounts/search", h.Search)

	app.Post("/sessions", h.CreateSession)
	app.Get("/sessions/:id", h.GetSession)
	app.Put("/sessions/:id/mode", h.SelectMode)
	app.Put("/sessions/:id/partial-amount", h.EditPartialAmount)
	app.Put("/sessions/:id/payment-method", h.SelectPaymentMethod)
	app.Put("/sessions/:id/contact", h.ConfirmContact)
	app.Post("/sessions/:id/submit", h.Submit)
	app.Delete("/sessions/:id", h.CloseSession)

	app.Get("/consumers/:consumerNo/receipts", h.Receipts)
	app.Get("/consumers/:consumerNo/bills", h.BillHistory)
	app.Get("/payments-summary", h.Summary)
	app.Post("/purge-payments", h.Purge)
}

type createSessionRequest struct {
	ConsumerNo string       `json:"consumerNo"`
	Filter     SearchFilter `json:"filter"`
	Value      string       `json:"value"`
}

type createSessionResponse struct {
	Session SessionView `json:"session"`
	Account Account     `json:"account"`
}

type selectModeRequest struct {
	Mode billing.SelectionMode `json:"mode"`
}

type partialAmountRequest struct {
	Amount string `json:"amount"`
}

type paymentMethodRequest struct {
	Method billing.PaymentMethod `json:"method"`
}

type confirmContactRequest struct {
	Mobile        string                `json:"mobile"`
	Email         string                `json:"email"`
	TermsAccepted bool                  `json:"termsAccepted"`
	Method        billing.PaymentMethod `json:"method"`
}

type errorResponse struct {
	Error   string       `json:"error"`
	Message string       `json:"message,omitempty"`
	Session *SessionView `json:"session,omitempty"`
}

/*
GET /accounts/search?filter=contact&q=9876543210
*/
func (h *PortalHandler) Search(c *fiber.Ctx) error {
	key := LookupKey{
		Filter: SearchFilter(c.Query("filter", string(FilterConsumer))),
		Value:  c.Query("q"),
	}

	accounts, err := h.directory.Search(c.UserContext(), key)
	if err != nil {
		return h.lookupError(c, err)
	}
	if len(accounts) == 0 {
		return c.Status(http.StatusNotFound).JSON(errorResponse{Error: "not_found"})
	}

	return c.JSON(accounts)
}

/*
POST /sessions

	{
	    "consumerNo": "AKL2024000123"
	}
*/
func (h *PortalHandler) CreateSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(errorResponse{Error: "invalid_body"})
	}

	key := LookupKey{Filter: req.Filter, Value: req.Value}
	if req.ConsumerNo != "" {
		key = LookupKey{Filter: FilterConsumer, Value: req.ConsumerNo}
	}

	account, err := h.directory.Find(c.UserContext(), key)
	if err != nil {
		return h.lookupError(c, err)
	}

	tag := h.language(c)
	snapshot, err := account.Snapshot()
	if err != nil {
		slog.Error("rejecting inconsistent bill", "consumerNo", account.ConsumerNo, "err", err)
		return c.Status(http.StatusUnprocessableEntity).JSON(errorResponse{
			Error:   string(billing.DataIntegrityViolation),
			Message: locale.Message(billing.DataIntegrityViolation, tag),
		})
	}

	session, err := billing.NewSession(uuid.NewString(), snapshot, h.policy, h.now().In(h.loc))
	if err != nil {
		return h.sessionError(c, err, nil, tag)
	}
	if err := h.sessions.Save(c.UserContext(), session); err != nil {
		return c.SendStatus(http.StatusInternalServerError)
	}

	slog.Info("payment session opened", "sessionId", session.ID, "consumerNo", account.ConsumerNo)

	return c.Status(http.StatusCreated).JSON(createSessionResponse{
		Session: newSessionView(session, tag),
		Account: account,
	})
}

func (h *PortalHandler) GetSession(c *fiber.Ctx) error {
	session, err := h.sessions.Load(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.sessionError(c, err, nil, h.language(c))
	}

	return c.JSON(newSessionView(session, h.language(c)))
}

func (h *PortalHandler) SelectMode(c *fiber.Ctx) error {
	var req selectModeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(errorResponse{Error: "invalid_body"})
	}

	return h.update(c, func(s *billing.Session) error {
		return s.SelectMode(req.Mode)
	})
}

func (h *PortalHandler) EditPartialAmount(c *fiber.Ctx) error {
	var req partialAmountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(errorResponse{Error: "invalid_body"})
	}

	return h.update(c, func(s *billing.Session) error {
		return s.EditPartialAmount(req.Amount)
	})
}

func (h *PortalHandler) SelectPaymentMethod(c *fiber.Ctx) error {
	var req paymentMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(errorResponse{Error: "invalid_body"})
	}

	return h.update(c, func(s *billing.Session) error {
		return s.SelectPaymentMethod(req.Method)
	})
}

/*
PUT /sessions/:id/contact

	{
	    "mobile": "9876543210",
	    "email": "rajesh.sharma@example.com",
	    "termsAccepted": true,
	    "method": "upi"
	}
*/
func (h *PortalHandler) ConfirmContact(c *fiber.Ctx) error {
	var req confirmContactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(errorResponse{Error: "invalid_body"})
	}

	details := billing.ContactDetails{
		Mobile:        req.Mobile,
		Email:         req.Email,
		TermsAccepted: req.TermsAccepted,
	}

	return h.update(c, func(s *billing.Session) error {
		return s.ConfirmContact(details, req.Method)
	})
}

/*
POST /sessions/:id/submit

Moves the session to processing and queues the charge. The outcome is
observed by polling GET /sessions/:id.
*/
func (h *PortalHandler) Submit(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Params("id")
	tag := h.language(c)

	session, err := h.sessions.Update(ctx, id, func(s *billing.Session) error {
		return s.Submit()
	})
	if err != nil {
		return h.sessionError(c, err, session, tag)
	}

	job := PaymentJob{
		SessionID:     session.ID,
		SelectionMode: session.SelectionMode,
		Charge: ChargeRequest{
			CorrelationId: uuid.NewString(),
			ConsumerNo:    session.Snapshot.ConsumerID,
			Amount:        session.SubmittedAmount,
			PaymentMethod: session.PaymentMethod,
			MobileNo:      session.Contact.Mobile,
			Email:         session.Contact.Email,
		},
	}
	job.Charge.UpdateRequestTime()

	if err := h.queue.Enqueue(ctx, job); err != nil {
		session, revertErr := h.sessions.Update(ctx, id, func(s *billing.Session) error {
			return s.FailProcessing(billing.PaymentFailure, "payment queue unavailable")
		})
		if revertErr != nil {
			slog.Error("failed to return session to editing", "sessionId", id, "err", revertErr)
			return c.SendStatus(http.StatusInternalServerError)
		}
		view := newSessionView(session, tag)
		return c.Status(http.StatusServiceUnavailable).JSON(errorResponse{
			Error:   string(billing.PaymentFailure),
			Message: locale.Message(billing.PaymentFailure, tag),
			Session: &view,
		})
	}

	slog.Info("payment submitted",
		"sessionId", session.ID,
		"amount", session.SubmittedAmount.StringFixed(2),
		"method", session.PaymentMethod,
	)

	return c.Status(http.StatusAccepted).JSON(newSessionView(session, tag))
}

// CloseSession is the "back to search" action.
func (h *PortalHandler) CloseSession(c *fiber.Ctx) error {
	if err := h.sessions.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.sessionError(c, err, nil, h.language(c))
	}

	return c.SendStatus(http.StatusNoContent)
}

func (h *PortalHandler) Receipts(c *fiber.Ctx) error {
	receipts, err := h.receipts.ListByConsumer(c.UserContext(), c.Params("consumerNo"))
	if err != nil {
		return c.SendStatus(http.StatusInternalServerError)
	}

	return c.JSON(receipts)
}

/*
GET /payments-summary?from=2024-11-01T00:00:00Z&to=2024-11-30T23:59:59Z
*/
func (h *PortalHandler) BillHistory(c *fiber.Ctx) error {
	bills, err := h.directory.BillHistory(c.UserContext(), c.Params("consumerNo"))
	if err != nil {
		return h.lookupError(c, err)
	}

	tag := h.language(c)
	views := make([]BillRecordView, 0, len(bills))
	for _, b := range bills {
		views = append(views, BillRecordView{
			BillNo:  b.BillNo,
			Month:   locale.BillMonth(b.Period, tag),
			Period:  b.Period.Format("2006-01"),
			Amount:  b.Amount.StringFixed(2),
			DueDate: b.DueDate.Format(parser.DateLayout),
			Status:  b.Status,
		})
	}

	return c.JSON(views)
}

func (h *PortalHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.receipts.Summary(c.UserContext(), c.Query("from"), c.Query("to"))
	if err != nil {
		return c.SendStatus(http.StatusInternalServerError)
	}

	return c.JSON(summary)
}

func (h *PortalHandler) Purge(c *fiber.Ctx) error {
	if err := h.receipts.Purge(c.UserContext()); err != nil {
		return c.SendStatus(http.StatusInternalServerError)
	}

	return c.SendStatus(http.StatusOK)
}

func (h *PortalHandler) update(c *fiber.Ctx, fn func(*billing.Session) error) error {
	tag := h.language(c)

	session, err := h.sessions.Update(c.UserContext(), c.Params("id"), fn)
	if err != nil {
		return h.sessionError(c, err, session, tag)
	}

	return c.JSON(newSessionView(session, tag))
}

func (h *PortalHandler) language(c *fiber.Ctx) language.Tag {
	return locale.Negotiate(c.Query("lang"), c.Get(fiber.HeaderAcceptLanguage))
}

func (h *PortalHandler) lookupError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidLookup):
		return c.Status(http.StatusBadRequest).JSON(errorResponse{Error: "invalid_lookup", Message: err.Error()})
	case errors.Is(err, ErrAccountNotFound):
		return c.Status(http.StatusNotFound).JSON(errorResponse{Error: "not_found"})
	case errors.Is(err, ErrAmbiguousMatch):
		return c.Status(http.StatusConflict).JSON(errorResponse{Error: "ambiguous_match", Message: err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return c.SendStatus(http.StatusGatewayTimeout)
	}

	slog.Error("account lookup failed", "err", err)
	return c.SendStatus(http.StatusInternalServerError)
}

func (h *PortalHandler) sessionError(c *fiber.Ctx, err error, session *billing.Session, tag language.Tag) error {
	var view *SessionView
	if session != nil {
		v := newSessionView(session, tag)
		view = &v
	}

	var contactErr *billing.ContactError
	switch {
	case errors.As(err, &contactErr):
		return c.Status(http.StatusUnprocessableEntity).JSON(errorResponse{
			Error:   string(contactErr.Kind),
			Message: locale.Message(contactErr.Kind, tag),
			Session: view,
		})
	case errors.Is(err, ErrSessionNotFound):
		return c.Status(http.StatusNotFound).JSON(errorResponse{Error: "session_not_found"})
	case errors.Is(err, billing.ErrUnknownMode), errors.Is(err, billing.ErrUnknownMethod):
		return c.Status(http.StatusBadRequest).JSON(errorResponse{Error: "invalid_value", Message: err.Error(), Session: view})
	case errors.Is(err, billing.ErrInvalidSubmission):
		return c.Status(http.StatusUnprocessableEntity).JSON(errorResponse{
			Error:   string(billing.InvalidSubmission),
			Message: locale.Message(billing.InvalidSubmission, tag),
			Session: view,
		})
	case errors.Is(err, billing.ErrInvalidTransition), errors.Is(err, ErrConcurrentUpdate):
		return c.Status(http.StatusConflict).JSON(errorResponse{Error: "invalid_transition", Message: err.Error(), Session: view})
	case errors.Is(err, billing.ErrDataIntegrity):
		return c.Status(http.StatusUnprocessableEntity).JSON(errorResponse{
			Error:   string(billing.DataIntegrityViolation),
			Message: locale.Message(billing.DataIntegrityViolation, tag),
		})
	}

	slog.Error("session operation failed", "err", err)
	return c.SendStatus(http.StatusInternalServerError)
}

func newSessionView(s *billing.Session, tag language.Tag) SessionView {
	r := s.Resolver()
	snapshot := s.Snapshot

	amount := s.Amount()
	if s.Phase != billing.PhaseEditing {
		amount = s.SubmittedAmount
	}

	view := SessionView{
		ID:                 s.ID,
		ConsumerNo:         snapshot.ConsumerID,
		Phase:              s.Phase,
		SelectionMode:      s.SelectionMode,
		PartialAmountInput: s.PartialAmountInput,
		PaymentMethod:      s.PaymentMethod,
		Amount:             amount.StringFixed(2),
		NoDemand:           s.NoDemand(),
		TransactionID:      s.TransactionID,
		Bill: BillBreakdown{
			PreviousDue:     snapshot.PreviousDueAmount.StringFixed(2),
			Interest:        snapshot.InterestAmount.StringFixed(2),
			Discount:        snapshot.DiscountAmount.StringFixed(2),
			DiscountApplied: r.DiscountApplies(snapshot),
			PendingPortion:  r.PendingPortion(snapshot).StringFixed(2),
			CurrentCharges:  snapshot.CurrentBillAmount.StringFixed(2),
			TotalPayable:    r.PayableTotal(snapshot).StringFixed(2),
		},
	}

	if s.Contact != nil {
		view.Contact = &ContactView{
			Mobile:        s.Contact.Mobile,
			Email:         s.Contact.Email,
			TermsAccepted: s.Contact.TermsAccepted,
		}
	}

	if s.ValidationError != billing.NoError {
		view.ValidationError = &ValidationErrorView{
			Kind:      s.ValidationError,
			Message:   locale.Message(s.ValidationError, tag),
			Retryable: s.ValidationError.Retryable(),
		}
	}

	return view
}
