package models

import (
	"time"
)

// Payment is the row mutated by the reconciliation engine. Amounts are in
// integer minor units (paise). GatewayPaymentID is empty until the gateway
// first reports the payment and immutable afterwards; CorrelationToken is
// minted at checkout and echoed back by the gateway in webhook notes.
type Payment struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	BookingID        *uint      `gorm:"index" json:"booking_id"`
	GatewayPaymentID string     `gorm:"size:64;index" json:"gateway_payment_id"`
	CorrelationToken string     `gorm:"size:64;uniqueIndex" json:"correlation_token"`
	AmountMinor      int64      `gorm:"not null" json:"amount_minor"`
	Currency         string     `gorm:"size:3;default:'INR'" json:"currency"`
	Method           string     `gorm:"size:32" json:"method"`
	Status           string     `gorm:"size:20;not null;index" json:"status"` // pending, completed, failed, refunded
	CommissionMinor  int64      `json:"commission_minor"`
	NetPayoutMinor   int64      `json:"net_payout_minor"`
	RawPayload       string     `gorm:"type:mediumtext" json:"-"` // append-only audit copy of webhook bodies
	ReceivedAt       *time.Time `json:"received_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	Booking *Booking `gorm:"foreignKey:BookingID" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}
