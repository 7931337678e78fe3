package service

import (
	"context"
	"errors"
	"fmt"

	"pitchside/internal/domain"
	"pitchside/internal/models"
	"pitchside/internal/repository"

	"github.com/google/uuid"
)

var ErrBookingNotPayable = errors.New("booking is not awaiting payment")

// CheckoutService creates the pending Payment row before the gateway charge
// is initiated and mints the correlation token the gateway echoes back in
// webhook notes. The actual gateway order creation happens client-side.
type CheckoutService struct {
	payments repository.PaymentStore
	bookings repository.BookingStore
}

func NewCheckoutService(payments repository.PaymentStore, bookings repository.BookingStore) *CheckoutService {
	return &CheckoutService{payments: payments, bookings: bookings}
}

// Initiate returns the payment to embed in the gateway order. A booking has
// one active payment at a time: re-initiating while a pending payment exists
// returns the existing row so the client can resume the same checkout.
func (s *CheckoutService) Initiate(ctx context.Context, bookingID uint) (*models.Payment, error) {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BookingAwaitingPayment {
		return nil, ErrBookingNotPayable
	}
	if b.PaymentID != nil {
		existing, err := s.payments.FindByID(ctx, *b.PaymentID)
		if err == nil && existing.Status == domain.PaymentPending {
			return existing, nil
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	p := &models.Payment{
		BookingID:        &b.ID,
		CorrelationToken: "tok_" + uuid.NewString(),
		AmountMinor:      b.AmountMinor,
		Currency:         b.Currency,
		Status:           domain.PaymentPending,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment for booking %d: %w", bookingID, err)
	}
	if err := s.bookings.LinkPayment(ctx, b.ID, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}
