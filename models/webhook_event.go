package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookOutcome is what processing a verified gateway event did.
type WebhookOutcome string

const (
	OutcomeApplied   WebhookOutcome = "applied"
	OutcomeNoop      WebhookOutcome = "noop"
	OutcomeUnmatched WebhookOutcome = "unmatched"
	OutcomeIgnored   WebhookOutcome = "ignored"
	OutcomeError     WebhookOutcome = "error"
)

// WebhookEventLog is the audit row stored for every verified webhook event.
type WebhookEventLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	EventID    string         `gorm:"type:varchar(255);index;not null"`
	Type       string         `gorm:"type:varchar(100);not null"`
	IntentID   string         `gorm:"type:varchar(255);index"`
	Outcome    WebhookOutcome `gorm:"type:varchar(20);not null"`
	Error      *string        `gorm:"type:text"`
	Payload    *string        `gorm:"type:jsonb"`
	ReceivedAt time.Time      `gorm:"autoCreateTime"`
}

func (WebhookEventLog) TableName() string {
	return "webhook_event_logs"
}
