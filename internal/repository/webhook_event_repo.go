package repository

import (
	"context"

	"pitchside/internal/models"

	"gorm.io/gorm"
)

// WebhookEventStore appends to the audit trail. Rows are never updated or
// deleted.
type WebhookEventStore interface {
	Append(ctx context.Context, e *models.WebhookEvent) error
}

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Append(ctx context.Context, e *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}
