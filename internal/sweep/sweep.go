package sweep

import (
	"context"
	"time"

	"pitchside/internal/domain"
	"pitchside/internal/observability"
	"pitchside/internal/repository"

	"go.uber.org/zap"
)

// Sweeper is the out-of-band repair loop for Payment/Booking pairs left
// inconsistent by a partial failure on the webhook path. The payment status
// is the source of truth; the sweep only ever moves bookings toward it.
type Sweeper struct {
	payments repository.PaymentStore
	bookings repository.BookingStore
	metrics  *observability.Metrics
	log      *zap.Logger
	interval time.Duration
	batch    int
}

func New(payments repository.PaymentStore, bookings repository.BookingStore, metrics *observability.Metrics, log *zap.Logger, interval time.Duration, batch int) *Sweeper {
	return &Sweeper{
		payments: payments,
		bookings: bookings,
		metrics:  metrics,
		log:      log,
		interval: interval,
		batch:    batch,
	}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single repair pass. Exported so tests and ops tooling
// can trigger it directly.
func (s *Sweeper) RunOnce(ctx context.Context) {
	payments, err := s.payments.ListOutOfSync(ctx, s.batch)
	if err != nil {
		s.log.Error("sweep: listing out-of-sync payments failed", zap.Error(err))
		return
	}
	for _, p := range payments {
		if p.BookingID == nil {
			continue
		}
		var (
			expected []string
			next     string
		)
		switch p.Status {
		case domain.PaymentCompleted:
			expected, next = []string{domain.BookingAwaitingPayment}, domain.BookingConfirmed
		case domain.PaymentFailed:
			expected, next = []string{domain.BookingAwaitingPayment, domain.BookingConfirmed}, domain.BookingCancelled
		default:
			continue
		}
		repaired, err := s.bookings.TransitionStatus(ctx, *p.BookingID, expected, next)
		if err != nil {
			s.log.Error("sweep: booking repair failed",
				zap.Uint("payment_id", p.ID),
				zap.Uint("booking_id", *p.BookingID),
				zap.Error(err),
			)
			continue
		}
		if repaired {
			s.metrics.SweepRepairs.Inc()
			s.log.Info("sweep: repaired booking",
				zap.Uint("payment_id", p.ID),
				zap.Uint("booking_id", *p.BookingID),
				zap.String("booking_status", next),
			)
		}
	}
}
