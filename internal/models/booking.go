package models

import (
	"time"
)

// Booking is a club's reservation of a stadium slot for a match. Only the
// status and payment link matter to the reconciliation engine; the rest is
// owned by the booking flow.
type Booking struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StadiumID   uint      `gorm:"not null;index" json:"stadium_id"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"` // stadium owner receiving the net payout
	ClubID      uint      `gorm:"not null;index" json:"club_id"`
	KickoffAt   time.Time `json:"kickoff_at"`
	AmountMinor int64     `gorm:"not null" json:"amount_minor"`
	Currency    string    `gorm:"size:3;default:'INR'" json:"currency"`
	Status      string    `gorm:"size:20;not null;index" json:"status"` // awaiting_payment, confirmed, cancelled
	PaymentID   *uint     `gorm:"index" json:"payment_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}
