// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/careops/hospitalhub/internal/models"
)

// Store defines the persistence interface used by the services. Settings
// are stored as opaque blobs under well-known keys; notifications are an
// append-mostly archive; resources are persisted as a full snapshot.
type Store interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Settings blob operations
	GetSetting(ctx context.Context, key string) ([]byte, error)
	PutSetting(ctx context.Context, key string, value []byte) error

	// Notification archive operations
	SaveNotification(ctx context.Context, n *models.Notification) error
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	GetNotifications(ctx context.Context, limit, offset int) ([]*models.Notification, error)

	// Resource snapshot operations
	SaveResources(ctx context.Context, items []*models.ResourceItem) error
	GetResources(ctx context.Context) ([]*models.ResourceItem, error)

	// Statistics and monitoring
	GetStats() (*Stats, error)
	GetHealth() *Health
}

// Stats provides storage statistics
type Stats struct {
	TotalNotifications int64      `json:"total_notifications"`
	UnreadCount        int64      `json:"unread_count"`
	TotalResources     int64      `json:"total_resources"`
	OldestNotification *time.Time `json:"oldest_notification,omitempty"`
	LatestNotification *time.Time `json:"latest_notification,omitempty"`
}

// Health reports whether the store is reachable
type Health struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Config holds storage configuration
type Config struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
}

// SettingsKey is the well-known key the notification settings blob is
// stored under.
const SettingsKey = "notificationSettings"
