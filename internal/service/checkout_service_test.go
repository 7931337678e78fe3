package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pitchside/internal/domain"
	"pitchside/internal/models"
	"pitchside/internal/repository"
)

type mockPayments struct {
	repository.PaymentStore
	created      []*models.Payment
	findByIDFunc func(ctx context.Context, id uint) (*models.Payment, error)
}

func (m *mockPayments) Create(ctx context.Context, p *models.Payment) error {
	p.ID = uint(len(m.created) + 1)
	m.created = append(m.created, p)
	return nil
}

func (m *mockPayments) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

type mockBookings struct {
	repository.BookingStore
	booking *models.Booking
	linked  []uint
}

func (m *mockBookings) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	if m.booking == nil || m.booking.ID != id {
		return nil, repository.ErrNotFound
	}
	cp := *m.booking
	return &cp, nil
}

func (m *mockBookings) LinkPayment(ctx context.Context, bookingID, paymentID uint) error {
	m.linked = append(m.linked, paymentID)
	return nil
}

func TestInitiateCreatesPendingPayment(t *testing.T) {
	bookings := &mockBookings{booking: &models.Booking{
		ID:          10,
		AmountMinor: 100000,
		Currency:    "INR",
		Status:      domain.BookingAwaitingPayment,
	}}
	payments := &mockPayments{}
	svc := NewCheckoutService(payments, bookings)

	p, err := svc.Initiate(context.Background(), 10)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if p.Status != domain.PaymentPending {
		t.Fatalf("status = %s", p.Status)
	}
	if p.AmountMinor != 100000 || p.Currency != "INR" {
		t.Fatalf("amount copied wrong: %+v", p)
	}
	if !strings.HasPrefix(p.CorrelationToken, "tok_") || len(p.CorrelationToken) < 10 {
		t.Fatalf("correlation token = %q", p.CorrelationToken)
	}
	if len(bookings.linked) != 1 || bookings.linked[0] != p.ID {
		t.Fatalf("payment not linked to booking: %v", bookings.linked)
	}
}

func TestInitiateReusesPendingPayment(t *testing.T) {
	payID := uint(3)
	existing := &models.Payment{ID: payID, Status: domain.PaymentPending, CorrelationToken: "tok_prior"}
	bookings := &mockBookings{booking: &models.Booking{
		ID:        10,
		Status:    domain.BookingAwaitingPayment,
		PaymentID: &payID,
	}}
	payments := &mockPayments{
		findByIDFunc: func(ctx context.Context, id uint) (*models.Payment, error) {
			if id == payID {
				return existing, nil
			}
			return nil, repository.ErrNotFound
		},
	}
	svc := NewCheckoutService(payments, bookings)

	p, err := svc.Initiate(context.Background(), 10)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if p.ID != payID || p.CorrelationToken != "tok_prior" {
		t.Fatalf("expected existing pending payment, got %+v", p)
	}
	if len(payments.created) != 0 {
		t.Fatal("a second active payment was created for the booking")
	}
}

func TestInitiateRejectsNonPayableBooking(t *testing.T) {
	bookings := &mockBookings{booking: &models.Booking{ID: 10, Status: domain.BookingConfirmed}}
	svc := NewCheckoutService(&mockPayments{}, bookings)
	if _, err := svc.Initiate(context.Background(), 10); !errors.Is(err, ErrBookingNotPayable) {
		t.Fatalf("err = %v, want ErrBookingNotPayable", err)
	}
}

func TestInitiateUnknownBooking(t *testing.T) {
	svc := NewCheckoutService(&mockPayments{}, &mockBookings{})
	if _, err := svc.Initiate(context.Background(), 99); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
