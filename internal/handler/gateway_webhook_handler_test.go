package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"pitchside/config"
	"pitchside/internal/domain"
	"pitchside/internal/models"
	"pitchside/internal/observability"
	"pitchside/internal/reconcile"
	"pitchside/internal/repository"
	"pitchside/internal/service"
	"pitchside/internal/ws"
	"pitchside/pkg/gateway"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const testSecret = "whsec_handler_test"

type storePayments struct {
	mu    sync.Mutex
	rows  map[uint]*models.Payment
	calls int
	fail  error
}

func newStorePayments(rows ...*models.Payment) *storePayments {
	s := &storePayments{rows: make(map[uint]*models.Payment)}
	for _, p := range rows {
		s.rows[p.ID] = p
	}
	return s
}

func (s *storePayments) touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.fail
}

func (s *storePayments) Create(ctx context.Context, p *models.Payment) error {
	return s.touch()
}

func (s *storePayments) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	if err := s.touch(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *storePayments) FindByCorrelationToken(ctx context.Context, token string) (*models.Payment, error) {
	if err := s.touch(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.rows {
		if p.CorrelationToken == token {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *storePayments) FindByGatewayID(ctx context.Context, id string) (*models.Payment, error) {
	if err := s.touch(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.rows {
		if p.GatewayPaymentID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *storePayments) TransitionStatus(ctx context.Context, t repository.PaymentTransition) (bool, error) {
	if err := s.touch(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[t.PaymentID]
	if !ok || p.Status != t.ExpectedStatus {
		return false, nil
	}
	if p.GatewayPaymentID != "" && p.GatewayPaymentID != t.GatewayPaymentID {
		return false, nil
	}
	p.Status = t.NewStatus
	if t.GatewayPaymentID != "" {
		p.GatewayPaymentID = t.GatewayPaymentID
	}
	if t.NewStatus == domain.PaymentCompleted {
		p.CommissionMinor = t.CommissionMinor
		p.NetPayoutMinor = t.NetPayoutMinor
	}
	return true, nil
}

func (s *storePayments) ListCompletedForOwner(ctx context.Context, ownerID uint) ([]models.Payment, error) {
	return nil, s.touch()
}

func (s *storePayments) ListOutOfSync(ctx context.Context, limit int) ([]models.Payment, error) {
	return nil, s.touch()
}

type storeBookings struct {
	mu    sync.Mutex
	rows  map[uint]*models.Booking
	calls int
}

func newStoreBookings(rows ...*models.Booking) *storeBookings {
	s := &storeBookings{rows: make(map[uint]*models.Booking)}
	for _, b := range rows {
		s.rows[b.ID] = b
	}
	return s
}

func (s *storeBookings) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	b, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *storeBookings) TransitionStatus(ctx context.Context, bookingID uint, expected []string, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	b, ok := s.rows[bookingID]
	if !ok {
		return false, nil
	}
	for _, st := range expected {
		if b.Status == st {
			b.Status = next
			return true, nil
		}
	}
	return false, nil
}

func (s *storeBookings) LinkPayment(ctx context.Context, bookingID, paymentID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

type storeEvents struct {
	mu       sync.Mutex
	appended []*models.WebhookEvent
}

func (s *storeEvents) Append(ctx context.Context, e *models.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, e)
	return nil
}

type webhookFixture struct {
	router   *gin.Engine
	payments *storePayments
	bookings *storeBookings
	events   *storeEvents
}

func newWebhookFixture(t *testing.T, cfg config.GatewayConfig, payments *storePayments, bookings *storeBookings) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	alerts := service.NewAlertService(zap.NewNop(), metrics, ws.NewHub(), 10, time.Minute)
	events := &storeEvents{}
	resolver := reconcile.NewResolver(payments)
	engine := reconcile.NewEngine(payments, bookings, alerts, cfg.CommissionRateBps)
	h := NewGatewayWebhookHandler(resolver, engine, events, alerts, metrics, &cfg, zap.NewNop())

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})
	r.POST("/api/v1/webhooks/gateway", h.Handle)
	r.OPTIONS("/api/v1/webhooks/gateway", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return &webhookFixture{router: r, payments: payments, bookings: bookings, events: events}
}

func defaultGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		WebhookSecret:     testSecret,
		CommissionRateBps: 1000,
	}
}

func (f *webhookFixture) deliver(t *testing.T, body []byte, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sign {
		req.Header.Set(gateway.SignatureHeader, gateway.Sign(body, testSecret))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func capturedBody(token, gatewayID string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {
			"id": %q, "status": "captured", "captured": true,
			"amount": %d, "currency": "INR", "method": "upi",
			"notes": {"booking_token": %q}
		}}}
	}`, gatewayID, amount, token))
}

func pendingRows() (*storePayments, *storeBookings) {
	bookingID := uint(10)
	payments := newStorePayments(&models.Payment{
		ID:               1,
		BookingID:        &bookingID,
		CorrelationToken: "tok_abc",
		AmountMinor:      100000,
		Currency:         "INR",
		Status:           domain.PaymentPending,
	})
	bookings := newStoreBookings(&models.Booking{
		ID:     10,
		Status: domain.BookingAwaitingPayment,
	})
	return payments, bookings
}

func TestWebhookRejectsNonPost(t *testing.T) {
	f := newWebhookFixture(t, defaultGatewayConfig(), newStorePayments(), newStoreBookings())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/gateway", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}

func TestWebhookOptionsPreflight(t *testing.T) {
	f := newWebhookFixture(t, defaultGatewayConfig(), newStorePayments(), newStoreBookings())
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/webhooks/gateway", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	payments, bookings := pendingRows()
	f := newWebhookFixture(t, defaultGatewayConfig(), payments, bookings)

	body := capturedBody("tok_abc", "pay_x", 100000)
	w := f.deliver(t, body, false)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if payments.calls != 0 || bookings.calls != 0 {
		t.Fatalf("stores touched on rejected delivery: payments=%d bookings=%d", payments.calls, bookings.calls)
	}
}

func TestWebhookRejectsTamperedBody(t *testing.T) {
	payments, bookings := pendingRows()
	f := newWebhookFixture(t, defaultGatewayConfig(), payments, bookings)

	body := capturedBody("tok_abc", "pay_x", 100000)
	sig := gateway.Sign(body, testSecret)
	tampered := bytes.Replace(body, []byte("100000"), []byte("100001"), 1)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(tampered))
	req.Header.Set(gateway.SignatureHeader, sig)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if payments.calls != 0 {
		t.Fatalf("payment store touched %d times on tampered delivery", payments.calls)
	}
}

func TestWebhookRejectsMalformedJSON(t *testing.T) {
	f := newWebhookFixture(t, defaultGatewayConfig(), newStorePayments(), newStoreBookings())
	body := []byte(`{"event":`)
	w := f.deliver(t, body, true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestWebhookAcknowledgesUnknownEventWithoutWrites(t *testing.T) {
	payments, bookings := pendingRows()
	f := newWebhookFixture(t, defaultGatewayConfig(), payments, bookings)

	w := f.deliver(t, []byte(`{"event": "payout.initiated", "payload": {}}`), true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if payments.calls != 0 || bookings.calls != 0 || len(f.events.appended) != 0 {
		t.Fatalf("unknown event caused writes: payments=%d bookings=%d audit=%d",
			payments.calls, bookings.calls, len(f.events.appended))
	}
}

func TestWebhookCaptureHappyPath(t *testing.T) {
	payments, bookings := pendingRows()
	f := newWebhookFixture(t, defaultGatewayConfig(), payments, bookings)

	w := f.deliver(t, capturedBody("tok_abc", "pay_x", 100000), true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response: %v", err)
	}
	if resp["outcome"] != domain.AuditApplied {
		t.Fatalf("outcome = %v", resp["outcome"])
	}

	p := payments.rows[1]
	if p.Status != domain.PaymentCompleted || p.CommissionMinor != 10000 || p.NetPayoutMinor != 90000 {
		t.Fatalf("payment after capture: %+v", p)
	}
	if bookings.rows[10].Status != domain.BookingConfirmed {
		t.Fatalf("booking status = %s", bookings.rows[10].Status)
	}
	if len(f.events.appended) != 1 || f.events.appended[0].Outcome != domain.AuditApplied {
		t.Fatalf("audit trail: %+v", f.events.appended)
	}
}

func TestWebhookRedeliveryReturns200NoDuplicateConfirmation(t *testing.T) {
	payments, bookings := pendingRows()
	f := newWebhookFixture(t, defaultGatewayConfig(), payments, bookings)

	body := capturedBody("tok_abc", "pay_x", 100000)
	if w := f.deliver(t, body, true); w.Code != http.StatusOK {
		t.Fatalf("first delivery: %d", w.Code)
	}
	bookingsBefore := bookings.rows[10].Status

	w := f.deliver(t, body, true)
	if w.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d, want 200", w.Code)
	}
	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["outcome"] != domain.AuditAlreadyApplied {
		t.Fatalf("outcome = %v, want already_applied", resp["outcome"])
	}
	if bookings.rows[10].Status != bookingsBefore {
		t.Fatalf("booking changed on redelivery")
	}
}

func TestWebhookUnknownPaymentAcknowledged(t *testing.T) {
	f := newWebhookFixture(t, defaultGatewayConfig(), newStorePayments(), newStoreBookings())
	w := f.deliver(t, capturedBody("tok_nope", "pay_nope", 5000), true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["outcome"] != domain.AuditNotFound {
		t.Fatalf("outcome = %v", resp["outcome"])
	}
}

func TestWebhookStorageErrorReturns500(t *testing.T) {
	payments, bookings := pendingRows()
	payments.fail = errors.New("connection refused")
	f := newWebhookFixture(t, defaultGatewayConfig(), payments, bookings)

	w := f.deliver(t, capturedBody("tok_abc", "pay_x", 100000), true)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestWebhookSignatureBypassFlag(t *testing.T) {
	payments, bookings := pendingRows()
	cfg := defaultGatewayConfig()
	cfg.SignatureBypass = true
	f := newWebhookFixture(t, cfg, payments, bookings)

	w := f.deliver(t, capturedBody("tok_abc", "pay_x", 100000), false)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with bypass enabled", w.Code)
	}
}
