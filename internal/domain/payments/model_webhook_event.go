package payments

import "time"

// WebhookEvent records processed provider events for idempotent webhook
// handling. The (provider, event id) unique index is what rejects replays.
type WebhookEvent struct {
	ID              uint   `gorm:"primaryKey"`
	Provider        string `gorm:"type:varchar(20);not null;uniqueIndex:ux_webhook_events_provider_event,priority:1"`
	ProviderEventID string `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_provider_event,priority:2"`
	EventType       string `gorm:"type:varchar(100);index"`
	PayloadJSON     string `gorm:"type:text"`
	ProcessedAt     *time.Time
	CreatedAt       time.Time
}
