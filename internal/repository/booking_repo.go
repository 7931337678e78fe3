package repository

import (
	"context"

	"pitchside/internal/models"

	"gorm.io/gorm"
)

// BookingStore is the engine's mutation surface for bookings. Transitions are
// conditional on the current status so a booking moved for unrelated reasons
// (manual cancellation, admin action) is never clobbered.
type BookingStore interface {
	FindByID(ctx context.Context, id uint) (*models.Booking, error)
	TransitionStatus(ctx context.Context, bookingID uint, expected []string, next string) (bool, error)
	LinkPayment(ctx context.Context, bookingID, paymentID uint) error
}

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	var b models.Booking
	err := r.db.WithContext(ctx).First(&b, id).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

func (r *BookingRepository) TransitionStatus(ctx context.Context, bookingID uint, expected []string, next string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status IN ?", bookingID, expected).
		Update("status", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *BookingRepository) LinkPayment(ctx context.Context, bookingID, paymentID uint) error {
	return r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ?", bookingID).
		Update("payment_id", paymentID).Error
}
