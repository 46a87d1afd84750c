package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrUnavailableProcessor = errors.New("unavailable processor")
	ErrGatewayTimeout       = errors.New("payment gateway timed out")
)

const (
	HealthCheckTicker         = 5 * time.Second
	MinAcceptableResponseTime = 200 // in milliseconds
	DefaultChargeTimeout      = 10 * time.Second
)

// PaymentGateway charges a consumer. Errors wrapping ErrGatewayTimeout are
// reported to the session as timeouts, everything else as payment failures.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// MockGateway behaves like the portal's demo backend: it waits a fixed delay
// and always succeeds.
type MockGateway struct {
	delay time.Duration
}

func NewMockGateway(delay time.Duration) *MockGateway {
	return &MockGateway{delay: delay}
}

func (g *MockGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ChargeResult{}, fmt.Errorf("%w: %v", ErrGatewayTimeout, ctx.Err())
		case <-timer.C:
		}
	}

	slog.Debug("mock gateway charged", "consumerNo", req.ConsumerNo, "amount", req.Amount.StringFixed(2))
	return ChargeResult{TransactionID: newMockTransactionID(time.Now())}, nil
}

// newMockTransactionID keeps the portal's TXN<millis> shape and appends a
// random suffix so charges settled in the same millisecond stay distinct.
func newMockTransactionID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	return "TXN" + strconv.FormatInt(now.UnixMilli(), 10) + suffix
}

type PaymentEndpoint string

const (
	PaymentEndpointDefault  PaymentEndpoint = "default"
	PaymentEndpointFallback PaymentEndpoint = "fallback"
)

type HealthCheckResponse struct {
	Failing         bool `json:"failing"`
	MinResponseTime int  `json:"minResponseTime"`
}

// ProcessorAdapter charges through an external processor, preferring the
// default one and falling back when it is unhealthy or unavailable.
type ProcessorAdapter struct {
	clientDefault        *fasthttp.HostClient
	clientFallback       *fasthttp.HostClient
	healthStatusDefault  atomic.Value
	healthStatusFallback atomic.Value
	timeout              time.Duration
}

func NewProcessorAdapter(clientDefault, clientFallback *fasthttp.HostClient, timeout time.Duration) *ProcessorAdapter {
	if timeout <= 0 {
		timeout = DefaultChargeTimeout
	}

	a := &ProcessorAdapter{
		clientDefault:  clientDefault,
		clientFallback: clientFallback,
		timeout:        timeout,
	}
	a.healthStatusDefault.Store(HealthCheckResponse{})
	a.healthStatusFallback.Store(HealthCheckResponse{})

	return a
}

func (a *ProcessorAdapter) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	req.UpdateRequestTime()
	raw, err := sonic.ConfigFastest.Marshal(req)
	if err != nil {
		slog.Error("failed to marshal the charge", "err", err)
		return ChargeResult{}, err
	}

	deadline := time.Now().Add(a.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var lastErr error
	for _, endpoint := range a.route() {
		result, err := a.send(endpoint, raw, deadline)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrGatewayTimeout) {
			return ChargeResult{}, err
		}

		slog.Debug("processor unavailable, trying next", "endpoint", endpoint, "err", err)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = ErrUnavailableProcessor
	}
	return ChargeResult{}, lastErr
}

func (a *ProcessorAdapter) route() []PaymentEndpoint {
	healthy := func(v *atomic.Value) bool {
		h := v.Load().(HealthCheckResponse)
		return !h.Failing && h.MinResponseTime < MinAcceptableResponseTime
	}

	var endpoints []PaymentEndpoint
	if healthy(&a.healthStatusDefault) {
		endpoints = append(endpoints, PaymentEndpointDefault)
	}
	if a.clientFallback != nil && healthy(&a.healthStatusFallback) {
		endpoints = append(endpoints, PaymentEndpointFallback)
	}
	return endpoints
}

func (a *ProcessorAdapter) client(endpoint PaymentEndpoint) *fasthttp.HostClient {
	if endpoint == PaymentEndpointFallback {
		return a.clientFallback
	}
	return a.clientDefault
}

func (a *ProcessorAdapter) send(endpoint PaymentEndpoint, body []byte, deadline time.Time) (ChargeResult, error) {
	client := a.client(endpoint)

	req := fasthttp.AcquireRequest()
	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(res)

	req.SetRequestURI("/payments")
	req.SetHost(client.Addr)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := client.DoDeadline(req, res, deadline); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return ChargeResult{}, fmt.Errorf("%w: %s processor", ErrGatewayTimeout, endpoint)
		}
		slog.Error("failed to send the charge", "err", err, "endpoint", endpoint)
		return ChargeResult{}, fmt.Errorf("%w: %v", ErrUnavailableProcessor, err)
	}

	status := res.StatusCode()
	switch {
	case status == fasthttp.StatusOK || status == fasthttp.StatusCreated:
	case status >= 500 || status == fasthttp.StatusTooManyRequests || status == fasthttp.StatusRequestTimeout:
		return ChargeResult{}, fmt.Errorf("%w: %s processor answered %d", ErrUnavailableProcessor, endpoint, status)
	default:
		return ChargeResult{}, fmt.Errorf("%w: %s processor answered %d: %s", ErrInvalidRequest, endpoint, status, res.Body())
	}

	var result ChargeResult
	if err := sonic.Unmarshal(res.Body(), &result); err != nil {
		slog.Error("failed to parse the processor response", "err", err, "endpoint", endpoint)
		return ChargeResult{}, fmt.Errorf("%w: undecodable response", ErrUnavailableProcessor)
	}
	if result.TransactionID == "" {
		return ChargeResult{}, fmt.Errorf("%w: response without transaction id", ErrUnavailableProcessor)
	}

	return result, nil
}

func (a *ProcessorAdapter) EnableHealthCheck(ctx context.Context) {
	go a.monitor(ctx, PaymentEndpointDefault, &a.healthStatusDefault)
	if a.clientFallback != nil {
		go a.monitor(ctx, PaymentEndpointFallback, &a.healthStatusFallback)
	}
}

func (a *ProcessorAdapter) monitor(ctx context.Context, endpoint PaymentEndpoint, status *atomic.Value) {
	ticker := time.NewTicker(HealthCheckTicker)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health, err := a.retrieveHealth(endpoint)
			if err != nil {
				slog.Debug("failed to update the health check", "err", err, "endpoint", endpoint)
				continue
			}
			status.Store(health)
		}
	}
}

func (a *ProcessorAdapter) retrieveHealth(endpoint PaymentEndpoint) (HealthCheckResponse, error) {
	client := a.client(endpoint)

	req := fasthttp.AcquireRequest()
	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(res)

	req.SetRequestURI("/payments/service-health")
	req.SetHost(client.Addr)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := client.DoDeadline(req, res, time.Now().Add(time.Second)); err != nil {
		return HealthCheckResponse{}, err
	}
	if res.StatusCode() != fasthttp.StatusOK {
		return HealthCheckResponse{}, fmt.Errorf("health check answered %d", res.StatusCode())
	}

	var body HealthCheckResponse
	if err := sonic.Unmarshal(res.Body(), &body); err != nil {
		return HealthCheckResponse{}, err
	}

	return body, nil
}
