package reconcile

import (
	"context"
	"fmt"
	"time"

	"pitchside/internal/commission"
	"pitchside/internal/domain"
	"pitchside/internal/models"
	"pitchside/internal/repository"
	"pitchside/pkg/gateway"
)

// Outcome classifies what applying an event did. Everything here maps to
// HTTP 200; only storage errors bubble up as errors (HTTP 500, gateway will
// retry).
type Outcome string

const (
	// OutcomeApplied means this delivery performed the transition.
	OutcomeApplied Outcome = "applied"
	// OutcomeAlreadyApplied means an earlier delivery already performed it.
	OutcomeAlreadyApplied Outcome = "already_applied"
	// OutcomeConflict means the event would move the payment backward or
	// contradicts the recorded gateway id; it is dropped, not an error.
	OutcomeConflict Outcome = "conflict"
	// OutcomeRecorded means the event carried no transition (a non-captured
	// capture signal) but its facts were recorded.
	OutcomeRecorded Outcome = "recorded"
)

// Alerter receives the reconciliation signals worth waking someone up for.
type Alerter interface {
	Conflict(paymentID uint, eventType, reason string)
	PartialReconciliation(paymentID, bookingID uint, err error)
	TransitionApplied(paymentID uint, bookingID *uint, from, to string)
}

// Engine applies verified, resolved events to the Payment row and,
// transitively, to the linked Booking. All writes are conditional updates;
// the payment side is the source of truth and is never rolled back to match
// a failed booking write.
type Engine struct {
	payments repository.PaymentStore
	bookings repository.BookingStore
	alerts   Alerter
	rateBps  int64
	now      func() time.Time
}

func NewEngine(payments repository.PaymentStore, bookings repository.BookingStore, alerts Alerter, rateBps int64) *Engine {
	return &Engine{
		payments: payments,
		bookings: bookings,
		alerts:   alerts,
		rateBps:  rateBps,
		now:      time.Now,
	}
}

// Apply runs the transition table for one event against the resolved payment.
// Returned errors are storage errors only; every business outcome, including
// conflicts and redeliveries, is a (Outcome, nil) pair.
func (e *Engine) Apply(ctx context.Context, p *models.Payment, ev *gateway.Event) (Outcome, error) {
	switch ev.Kind {
	case gateway.EventPaymentCaptured:
		if !ev.Captured {
			return e.recordPendingCapture(ctx, p, ev)
		}
		return e.applyCapture(ctx, p, ev)
	case gateway.EventPaymentFailed:
		return e.applyFailure(ctx, p, ev)
	case gateway.EventRefundProcessed:
		return e.applyRefund(ctx, p, ev)
	default:
		return OutcomeRecorded, fmt.Errorf("unroutable event kind %q", ev.Kind)
	}
}

// recordPendingCapture handles the gateway's intermediate non-captured
// signal: the payment stays pending, but the gateway id gets bound so later
// tokenless events can resolve.
func (e *Engine) recordPendingCapture(ctx context.Context, p *models.Payment, ev *gateway.Event) (Outcome, error) {
	applied, err := e.payments.TransitionStatus(ctx, repository.PaymentTransition{
		PaymentID:        p.ID,
		ExpectedStatus:   domain.PaymentPending,
		NewStatus:        domain.PaymentPending,
		GatewayPaymentID: ev.GatewayPaymentID,
		Method:           ev.Method,
		ReceivedAt:       e.now(),
		RawPayload:       ev.Raw,
	})
	if err != nil {
		return "", err
	}
	if applied {
		return OutcomeRecorded, nil
	}
	// Zero rows: the payment already left pending, or the signal names a
	// different gateway id than the one bound to the row.
	current, err := e.payments.FindByID(ctx, p.ID)
	if err != nil {
		return "", err
	}
	if ev.GatewayPaymentID != "" && current.GatewayPaymentID != "" && current.GatewayPaymentID != ev.GatewayPaymentID {
		e.alerts.Conflict(p.ID, ev.Type, fmt.Sprintf("pending signal rejected: gateway_id=%s, signal carries %s", current.GatewayPaymentID, ev.GatewayPaymentID))
		return OutcomeConflict, nil
	}
	// Stale signal arriving after the capture settled. Nothing to record.
	return OutcomeRecorded, nil
}

func (e *Engine) applyCapture(ctx context.Context, p *models.Payment, ev *gateway.Event) (Outcome, error) {
	gross := p.AmountMinor
	if gross == 0 {
		gross = ev.AmountMinor
	}
	split, err := commission.Calculate(gross, e.rateBps)
	if err != nil {
		return "", fmt.Errorf("commission split for payment %d: %w", p.ID, err)
	}
	if ev.AmountMinor != 0 && p.AmountMinor != 0 && ev.AmountMinor != p.AmountMinor {
		e.alerts.Conflict(p.ID, ev.Type, fmt.Sprintf("captured amount %d differs from booked amount %d", ev.AmountMinor, p.AmountMinor))
	}

	applied, err := e.payments.TransitionStatus(ctx, repository.PaymentTransition{
		PaymentID:        p.ID,
		ExpectedStatus:   domain.PaymentPending,
		NewStatus:        domain.PaymentCompleted,
		GatewayPaymentID: ev.GatewayPaymentID,
		Method:           ev.Method,
		CommissionMinor:  split.CommissionMinor,
		NetPayoutMinor:   split.NetMinor,
		ReceivedAt:       e.now(),
		RawPayload:       ev.Raw,
	})
	if err != nil {
		return "", err
	}
	if applied {
		e.confirmBooking(ctx, p)
		e.alerts.TransitionApplied(p.ID, p.BookingID, domain.PaymentPending, domain.PaymentCompleted)
		return OutcomeApplied, nil
	}

	// Zero rows: either a redelivery of the same capture or a genuine
	// conflict. Re-read to tell them apart.
	current, err := e.payments.FindByID(ctx, p.ID)
	if err != nil {
		return "", err
	}
	if current.Status == domain.PaymentCompleted && current.GatewayPaymentID == ev.GatewayPaymentID {
		// Redelivery. Still try the booking so a past partial failure heals.
		e.confirmBooking(ctx, current)
		return OutcomeAlreadyApplied, nil
	}
	e.alerts.Conflict(p.ID, ev.Type, fmt.Sprintf("capture rejected: status=%s gateway_id=%s", current.Status, current.GatewayPaymentID))
	return OutcomeConflict, nil
}

func (e *Engine) applyFailure(ctx context.Context, p *models.Payment, ev *gateway.Event) (Outcome, error) {
	applied, err := e.payments.TransitionStatus(ctx, repository.PaymentTransition{
		PaymentID:        p.ID,
		ExpectedStatus:   domain.PaymentPending,
		NewStatus:        domain.PaymentFailed,
		GatewayPaymentID: ev.GatewayPaymentID,
		ReceivedAt:       e.now(),
		RawPayload:       ev.Raw,
	})
	if err != nil {
		return "", err
	}
	if applied {
		e.cancelBooking(ctx, p)
		e.alerts.TransitionApplied(p.ID, p.BookingID, domain.PaymentPending, domain.PaymentFailed)
		return OutcomeApplied, nil
	}
	current, err := e.payments.FindByID(ctx, p.ID)
	if err != nil {
		return "", err
	}
	if current.Status == domain.PaymentFailed {
		e.cancelBooking(ctx, current)
		return OutcomeAlreadyApplied, nil
	}
	// A stale failure replay after a successful capture lands here.
	e.alerts.Conflict(p.ID, ev.Type, fmt.Sprintf("failure rejected: status=%s", current.Status))
	return OutcomeConflict, nil
}

// applyRefund moves completed -> refunded. The booking is intentionally left
// alone: whether a refund cancels the match is a league-policy decision taken
// by a higher-level workflow.
func (e *Engine) applyRefund(ctx context.Context, p *models.Payment, ev *gateway.Event) (Outcome, error) {
	applied, err := e.payments.TransitionStatus(ctx, repository.PaymentTransition{
		PaymentID:        p.ID,
		ExpectedStatus:   domain.PaymentCompleted,
		NewStatus:        domain.PaymentRefunded,
		GatewayPaymentID: ev.GatewayPaymentID,
		ReceivedAt:       e.now(),
		RawPayload:       ev.Raw,
	})
	if err != nil {
		return "", err
	}
	if applied {
		e.alerts.TransitionApplied(p.ID, p.BookingID, domain.PaymentCompleted, domain.PaymentRefunded)
		return OutcomeApplied, nil
	}
	current, err := e.payments.FindByID(ctx, p.ID)
	if err != nil {
		return "", err
	}
	if current.Status == domain.PaymentRefunded {
		return OutcomeAlreadyApplied, nil
	}
	e.alerts.Conflict(p.ID, ev.Type, fmt.Sprintf("refund rejected for non-completed payment: status=%s", current.Status))
	return OutcomeConflict, nil
}

// confirmBooking is attempted only after the payment write succeeded or was
// confirmed already applied. A failure here is a reconciliation inconsistency
// handled by the sweep, never a reason to roll the payment back.
func (e *Engine) confirmBooking(ctx context.Context, p *models.Payment) {
	if p.BookingID == nil {
		return
	}
	_, err := e.bookings.TransitionStatus(ctx, *p.BookingID, []string{domain.BookingAwaitingPayment}, domain.BookingConfirmed)
	if err != nil {
		e.alerts.PartialReconciliation(p.ID, *p.BookingID, err)
	}
}

func (e *Engine) cancelBooking(ctx context.Context, p *models.Payment) {
	if p.BookingID == nil {
		return
	}
	_, err := e.bookings.TransitionStatus(ctx, *p.BookingID, []string{domain.BookingAwaitingPayment, domain.BookingConfirmed}, domain.BookingCancelled)
	if err != nil {
		e.alerts.PartialReconciliation(p.ID, *p.BookingID, err)
	}
}
