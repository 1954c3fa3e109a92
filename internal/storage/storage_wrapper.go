// File: internal/storage/storage_wrapper.go
package storage

import (
	"context"
	"time"

	"github.com/careops/hospitalhub/internal/metrics"
	"github.com/careops/hospitalhub/internal/models"
)

// StoreWithMetrics wraps a store implementation with metrics
type StoreWithMetrics struct {
	Store
	metricsManager *metrics.Manager
}

// NewStoreWithMetrics creates a store wrapper with metrics
func NewStoreWithMetrics(store Store, metricsManager *metrics.Manager) *StoreWithMetrics {
	return &StoreWithMetrics{
		Store:          store,
		metricsManager: metricsManager,
	}
}

func (s *StoreWithMetrics) record(operation, table string, err error, start time.Time) {
	if s.metricsManager == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metricsManager.GetPrometheusMetrics().RecordDatabaseOperation(
		operation,
		table,
		status,
		time.Since(start),
	)
}

// SaveNotification saves a notification and records metrics
func (s *StoreWithMetrics) SaveNotification(ctx context.Context, n *models.Notification) error {
	start := time.Now()
	err := s.Store.SaveNotification(ctx, n)
	s.record("insert", "notifications", err, start)
	return err
}

// MarkNotificationRead marks a notification read and records metrics
func (s *StoreWithMetrics) MarkNotificationRead(ctx context.Context, id string) error {
	start := time.Now()
	err := s.Store.MarkNotificationRead(ctx, id)
	s.record("update", "notifications", err, start)
	return err
}

// MarkAllNotificationsRead marks all notifications read and records metrics
func (s *StoreWithMetrics) MarkAllNotificationsRead(ctx context.Context) error {
	start := time.Now()
	err := s.Store.MarkAllNotificationsRead(ctx)
	s.record("update", "notifications", err, start)
	return err
}

// GetNotifications reads the notification archive and records metrics
func (s *StoreWithMetrics) GetNotifications(ctx context.Context, limit, offset int) ([]*models.Notification, error) {
	start := time.Now()
	notifications, err := s.Store.GetNotifications(ctx, limit, offset)
	s.record("select", "notifications", err, start)
	return notifications, err
}

// SaveResources replaces the resource snapshot and records metrics
func (s *StoreWithMetrics) SaveResources(ctx context.Context, items []*models.ResourceItem) error {
	start := time.Now()
	err := s.Store.SaveResources(ctx, items)
	s.record("insert", "resources", err, start)
	return err
}

// GetResources reads the resource snapshot and records metrics
func (s *StoreWithMetrics) GetResources(ctx context.Context) ([]*models.ResourceItem, error) {
	start := time.Now()
	items, err := s.Store.GetResources(ctx)
	s.record("select", "resources", err, start)
	return items, err
}

// GetSetting reads a settings blob and records metrics
func (s *StoreWithMetrics) GetSetting(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := s.Store.GetSetting(ctx, key)
	s.record("select", "settings", err, start)
	return value, err
}

// PutSetting writes a settings blob and records metrics
func (s *StoreWithMetrics) PutSetting(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.Store.PutSetting(ctx, key, value)
	s.record("upsert", "settings", err, start)
	return err
}
