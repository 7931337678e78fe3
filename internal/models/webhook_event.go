package models

import (
	"time"
)

// WebhookEvent is the append-only audit trail of every signed, syntactically
// valid gateway delivery, including ones that were no-op'd.
type WebhookEvent struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	EventType        string    `gorm:"size:64;index" json:"event_type"`
	GatewayPaymentID string    `gorm:"size:64;index" json:"gateway_payment_id"`
	CorrelationToken string    `gorm:"size:64;index" json:"correlation_token"`
	RawBody          string    `gorm:"type:mediumtext" json:"-"`
	Outcome          string    `gorm:"size:32" json:"outcome"`
	Error            string    `gorm:"size:512" json:"error,omitempty"`
	ReceivedAt       time.Time `json:"received_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
