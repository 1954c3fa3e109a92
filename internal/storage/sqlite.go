// File: internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/careops/hospitalhub/internal/models"
	"github.com/careops/hospitalhub/pkg/utils"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	config *Config
	logger *logrus.Logger
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(config *Config) *SQLiteStore {
	return &SQLiteStore{
		config: config,
		logger: utils.GetLogger(),
	}
}

// Connect establishes the database connection
func (s *SQLiteStore) Connect() error {
	// Ensure directory exists
	dir := filepath.Dir(s.config.ConnectionString)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create database directory", err.Error())
		}
	}

	db, err := sql.Open("sqlite", s.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open SQLite database", err.Error())
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.config.MaxConnections)
	db.SetMaxIdleConns(s.config.MaxConnections / 2)
	db.SetConnMaxLifetime(s.config.MaxIdleTime)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to enable WAL mode", err.Error())
	}

	s.db = db
	s.logger.WithField("path", s.config.ConnectionString).Info("SQLite database connected")

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.logger.Info("SQLite database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLiteStore) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return s.db.Ping()
}

// Migrate creates the schema if it does not exist
func (s *SQLiteStore) Migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			is_read INTEGER NOT NULL DEFAULT 0,
			priority TEXT NOT NULL,
			category TEXT NOT NULL,
			delivery_channels TEXT NOT NULL,
			metadata TEXT,
			action_url TEXT,
			expires_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_timestamp ON notifications(timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_category ON notifications(category)`,
		`CREATE TABLE IF NOT EXISTS resources (
			id TEXT PRIMARY KEY,
			hospital TEXT NOT NULL,
			resource TEXT NOT NULL,
			status TEXT NOT NULL,
			progress INTEGER NOT NULL,
			available INTEGER NOT NULL,
			capacity INTEGER NOT NULL,
			created_date TEXT NOT NULL,
			due_date TEXT NOT NULL,
			priority TEXT NOT NULL,
			position INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_resources_hospital_resource ON resources(hospital, resource)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to run migration", err.Error())
		}
	}

	s.logger.Info("SQLite migrations completed")
	return nil
}

// GetSetting returns the settings blob stored under key
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeNotFound, "Setting not found", key)
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get setting", err.Error())
	}
	return value, nil
}

// PutSetting stores the settings blob under key, replacing any previous value
func (s *SQLiteStore) PutSetting(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to put setting", err.Error())
	}
	return nil
}

// SaveNotification archives a notification
func (s *SQLiteStore) SaveNotification(ctx context.Context, n *models.Notification) error {
	channels, err := json.Marshal(n.DeliveryChannels)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "Failed to marshal delivery channels", err.Error())
	}

	var metadata []byte
	if n.Metadata != nil {
		metadata, err = json.Marshal(n.Metadata)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeInternal, "Failed to marshal metadata", err.Error())
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO notifications
		(id, type, title, message, timestamp, is_read, priority, category, delivery_channels, metadata, action_url, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.Type), n.Title, n.Message, n.Timestamp, n.IsRead,
		string(n.Priority), string(n.Category), string(channels), metadata, n.ActionURL, n.ExpiresAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save notification", err.Error())
	}

	return nil
}

// MarkNotificationRead marks one archived notification as read
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to mark notification read", err.Error())
	}
	return nil
}

// MarkAllNotificationsRead marks every archived notification as read
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1`)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to mark notifications read", err.Error())
	}
	return nil
}

// GetNotifications returns archived notifications newest first
func (s *SQLiteStore) GetNotifications(ctx context.Context, limit, offset int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, title, message, timestamp, is_read, priority, category,
		       delivery_channels, metadata, action_url, expires_at
		FROM notifications ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query notifications", err.Error())
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// SaveResources replaces the persisted ledger snapshot
func (s *SQLiteStore) SaveResources(ctx context.Context, items []*models.ResourceItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to begin transaction", err.Error())
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM resources`); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to clear resources", err.Error())
	}

	for pos, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO resources
			(id, hospital, resource, status, progress, available, capacity, created_date, due_date, priority, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.Hospital, item.Resource, string(item.Status), item.Progress,
			item.Available, item.Capacity, item.CreatedDate, item.DueDate, string(item.Priority), pos)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save resource", err.Error())
		}
	}

	if err := tx.Commit(); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to commit resources", err.Error())
	}
	return nil
}

// GetResources returns the persisted ledger snapshot in stored order
func (s *SQLiteStore) GetResources(ctx context.Context) ([]*models.ResourceItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hospital, resource, status, progress, available, capacity, created_date, due_date, priority
		FROM resources ORDER BY position ASC`)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query resources", err.Error())
	}
	defer rows.Close()

	var items []*models.ResourceItem
	for rows.Next() {
		item := &models.ResourceItem{}
		var status, priority string
		err := rows.Scan(&item.ID, &item.Hospital, &item.Resource, &status, &item.Progress,
			&item.Available, &item.Capacity, &item.CreatedDate, &item.DueDate, &priority)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan resource", err.Error())
		}
		item.Status = models.ResourceStatus(status)
		item.Priority = models.ResourcePriority(priority)
		items = append(items, item)
	}

	return items, rows.Err()
}

// GetStats returns storage statistics
func (s *SQLiteStore) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_read = 0 THEN 1 ELSE 0 END), 0) FROM notifications`).
		Scan(&stats.TotalNotifications, &stats.UnreadCount)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get notification stats", err.Error())
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM resources`).Scan(&stats.TotalResources); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get resource stats", err.Error())
	}

	// MIN/MAX aggregates lose the driver's time typing, so the range is
	// read with ordered single-row queries instead.
	var oldest time.Time
	err = s.db.QueryRow(`SELECT timestamp FROM notifications ORDER BY timestamp ASC LIMIT 1`).Scan(&oldest)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get notification time range", err.Error())
	default:
		var latest time.Time
		if err := s.db.QueryRow(`SELECT timestamp FROM notifications ORDER BY timestamp DESC LIMIT 1`).Scan(&latest); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get notification time range", err.Error())
		}
		stats.OldestNotification = &oldest
		stats.LatestNotification = &latest
	}

	return stats, nil
}

// GetHealth reports store health
func (s *SQLiteStore) GetHealth() *Health {
	if err := s.Ping(); err != nil {
		return &Health{Healthy: false, Error: err.Error()}
	}
	return &Health{Healthy: true}
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	n := &models.Notification{}
	var (
		ntype, priority, category string
		channels                  string
		metadata                  sql.NullString
		actionURL                 sql.NullString
		expiresAt                 sql.NullTime
	)

	err := row.Scan(&n.ID, &ntype, &n.Title, &n.Message, &n.Timestamp, &n.IsRead,
		&priority, &category, &channels, &metadata, &actionURL, &expiresAt)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan notification", err.Error())
	}

	n.Type = models.NotificationType(ntype)
	n.Priority = models.NotificationPriority(priority)
	n.Category = models.NotificationCategory(category)

	if err := json.Unmarshal([]byte(channels), &n.DeliveryChannels); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to unmarshal delivery channels", err.Error())
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &n.Metadata); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to unmarshal metadata", err.Error())
		}
	}
	if actionURL.Valid {
		n.ActionURL = actionURL.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		n.ExpiresAt = &t
	}

	return n, nil
}
