package repository

import (
	"context"
	"errors"
	"time"

	"pitchside/internal/domain"
	"pitchside/internal/models"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// PaymentTransition describes one conditional status update. The write only
// succeeds when the row still has ExpectedStatus and either has no gateway
// payment id yet or the same one; zero rows affected means the event was
// already applied (or lost the race) and is not an error.
type PaymentTransition struct {
	PaymentID        uint
	ExpectedStatus   string
	NewStatus        string
	GatewayPaymentID string
	Method           string
	CommissionMinor  int64
	NetPayoutMinor   int64
	ReceivedAt       time.Time
	RawPayload       []byte
}

// PaymentStore is the engine's only mutation surface for payments.
type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	FindByID(ctx context.Context, id uint) (*models.Payment, error)
	FindByCorrelationToken(ctx context.Context, token string) (*models.Payment, error)
	FindByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error)
	TransitionStatus(ctx context.Context, t PaymentTransition) (bool, error)
	ListCompletedForOwner(ctx context.Context, ownerID uint) ([]models.Payment, error)
	ListOutOfSync(ctx context.Context, limit int) ([]models.Payment, error)
}

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).First(&p, id).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *PaymentRepository) FindByCorrelationToken(ctx context.Context, token string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("correlation_token = ?", token).First(&p).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *PaymentRepository) FindByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("gateway_payment_id = ?", gatewayID).First(&p).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

// TransitionStatus performs the compare-and-set the whole engine relies on.
// Concurrent deliveries of the same event both reach this point; the WHERE
// clause lets exactly one through and the other observes zero rows.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, t PaymentTransition) (bool, error) {
	updates := map[string]interface{}{
		"status":      t.NewStatus,
		"received_at": t.ReceivedAt,
	}
	if t.GatewayPaymentID != "" {
		updates["gateway_payment_id"] = t.GatewayPaymentID
	}
	if t.Method != "" {
		updates["method"] = t.Method
	}
	if t.NewStatus == domain.PaymentCompleted {
		updates["commission_minor"] = t.CommissionMinor
		updates["net_payout_minor"] = t.NetPayoutMinor
		updates["completed_at"] = t.ReceivedAt
	}
	if len(t.RawPayload) > 0 {
		updates["raw_payload"] = gorm.Expr("CONCAT(raw_payload, ?)", string(t.RawPayload)+"\n")
	}
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", t.PaymentID, t.ExpectedStatus).
		Where("gateway_payment_id = '' OR gateway_payment_id = ?", t.GatewayPaymentID).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PaymentRepository) ListCompletedForOwner(ctx context.Context, ownerID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Joins("JOIN bookings ON bookings.id = payments.booking_id").
		Where("bookings.owner_id = ? AND payments.status = ?", ownerID, domain.PaymentCompleted).
		Order("payments.completed_at DESC").
		Find(&payments).Error
	return payments, err
}

// ListOutOfSync returns payments whose terminal status is not yet reflected
// on the linked booking; the reconciliation sweep repairs them.
func (r *PaymentRepository) ListOutOfSync(ctx context.Context, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Joins("JOIN bookings ON bookings.id = payments.booking_id").
		Where(
			r.db.Where("payments.status = ? AND bookings.status = ?", domain.PaymentCompleted, domain.BookingAwaitingPayment).
				Or("payments.status = ? AND bookings.status IN ?", domain.PaymentFailed, []string{domain.BookingAwaitingPayment, domain.BookingConfirmed}),
		).
		Limit(limit).
		Preload("Booking").
		Find(&payments).Error
	return payments, err
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
