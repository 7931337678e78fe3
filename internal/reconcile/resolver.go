package reconcile

import (
	"context"
	"errors"

	"pitchside/internal/models"
	"pitchside/internal/repository"
	"pitchside/pkg/gateway"
)

// ErrPaymentNotFound means no Payment row matches the event. The webhook is
// still acknowledged (retrying won't create the row) but it is alerted on:
// it points at a checkout flow that never registered a payment.
var ErrPaymentNotFound = errors.New("no payment found for event")

// Resolver binds an inbound event to exactly one Payment. The correlation
// token minted at checkout is the authoritative path; the gateway payment id
// covers redeliveries and out-of-band events once a prior event has bound it.
type Resolver struct {
	payments repository.PaymentStore
}

func NewResolver(payments repository.PaymentStore) *Resolver {
	return &Resolver{payments: payments}
}

func (r *Resolver) Resolve(ctx context.Context, ev *gateway.Event) (*models.Payment, error) {
	if ev.CorrelationToken != "" {
		p, err := r.payments.FindByCorrelationToken(ctx, ev.CorrelationToken)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	if ev.GatewayPaymentID != "" {
		p, err := r.payments.FindByGatewayID(ctx, ev.GatewayPaymentID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrPaymentNotFound
}
