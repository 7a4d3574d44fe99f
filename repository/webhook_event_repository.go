package repository

import (
	"context"
	"fmt"

	"github.com/AriMathi1/Fitness-app-server/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormWebhookEventRepository appends webhook audit rows to Postgres.
type GormWebhookEventRepository struct {
	db *gorm.DB
}

func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

func (r *GormWebhookEventRepository) Record(ctx context.Context, entry *models.WebhookEventLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

// CountByEventID reports how many times an event id has been received.
func (r *GormWebhookEventRepository) CountByEventID(ctx context.Context, eventID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WebhookEventLog{}).Where("event_id = ?", eventID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count webhook events: %w", err)
	}
	return count, nil
}
