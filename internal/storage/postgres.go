// File: internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/careops/hospitalhub/internal/models"
	"github.com/careops/hospitalhub/pkg/utils"
)

// PostgresStore implements the Store interface using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	config *Config
	logger *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL store instance
func NewPostgresStore(config *Config) *PostgresStore {
	return &PostgresStore{
		config: config,
		logger: utils.GetLogger(),
	}
}

// Connect establishes the database connection
func (p *PostgresStore) Connect() error {
	db, err := sql.Open("postgres", p.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open PostgreSQL database", err.Error())
	}

	db.SetMaxOpenConns(p.config.MaxConnections)
	db.SetMaxIdleConns(p.config.MaxConnections / 2)
	db.SetConnMaxLifetime(p.config.MaxIdleTime)

	if err := db.Ping(); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping PostgreSQL database", err.Error())
	}

	p.db = db
	p.logger.Info("PostgreSQL database connected")

	return nil
}

// Close closes the database connection
func (p *PostgresStore) Close() error {
	if p.db != nil {
		err := p.db.Close()
		p.db = nil
		p.logger.Info("PostgreSQL database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgresStore) Ping() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return p.db.Ping()
}

// Migrate creates the schema if it does not exist
func (p *PostgresStore) Migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			priority TEXT NOT NULL,
			category TEXT NOT NULL,
			delivery_channels JSONB NOT NULL,
			metadata JSONB,
			action_url TEXT,
			expires_at TIMESTAMPTZ
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
		if _, err := p.db.Exec(stmt); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to run migration", err.Error())
		}
	}

	p.logger.Info("PostgreSQL migrations completed")
	return nil
}

// GetSetting returns the settings blob stored under key
func (p *PostgresStore) GetSetting(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeNotFound, "Setting not found", key)
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get setting", err.Error())
	}
	return value, nil
}

// PutSetting stores the settings blob under key, replacing any previous value
func (p *PostgresStore) PutSetting(ctx context.Context, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, time.Now())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to put setting", err.Error())
	}
	return nil
}

// SaveNotification archives a notification
func (p *PostgresStore) SaveNotification(ctx context.Context, n *models.Notification) error {
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

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO notifications
		(id, type, title, message, timestamp, is_read, priority, category, delivery_channels, metadata, action_url, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET is_read = EXCLUDED.is_read`,
		n.ID, string(n.Type), n.Title, n.Message, n.Timestamp, n.IsRead,
		string(n.Priority), string(n.Category), channels, metadata, n.ActionURL, n.ExpiresAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save notification", err.Error())
	}

	return nil
}

// MarkNotificationRead marks one archived notification as read
func (p *PostgresStore) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to mark notification read", err.Error())
	}
	return nil
}

// MarkAllNotificationsRead marks every archived notification as read
func (p *PostgresStore) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE`)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to mark notifications read", err.Error())
	}
	return nil
}

// GetNotifications returns archived notifications newest first
func (p *PostgresStore) GetNotifications(ctx context.Context, limit, offset int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, type, title, message, timestamp, is_read, priority, category,
		       delivery_channels, metadata, action_url, expires_at
		FROM notifications ORDER BY timestamp DESC LIMIT $1 OFFSET $2`, limit, offset)
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
func (p *PostgresStore) SaveResources(ctx context.Context, items []*models.ResourceItem) error {
	tx, err := p.db.BeginTx(ctx, nil)
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
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
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
func (p *PostgresStore) GetResources(ctx context.Context) ([]*models.ResourceItem, error) {
	rows, err := p.db.QueryContext(ctx, `
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
func (p *PostgresStore) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := p.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_read THEN 0 ELSE 1 END), 0) FROM notifications`).
		Scan(&stats.TotalNotifications, &stats.UnreadCount)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get notification stats", err.Error())
	}

	if err := p.db.QueryRow(`SELECT COUNT(*) FROM resources`).Scan(&stats.TotalResources); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get resource stats", err.Error())
	}

	var oldest, latest sql.NullTime
	err = p.db.QueryRow(`SELECT MIN(timestamp), MAX(timestamp) FROM notifications`).Scan(&oldest, &latest)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get notification time range", err.Error())
	}
	if oldest.Valid {
		stats.OldestNotification = &oldest.Time
	}
	if latest.Valid {
		stats.LatestNotification = &latest.Time
	}

	return stats, nil
}

// GetHealth reports store health
func (p *PostgresStore) GetHealth() *Health {
	if err := p.Ping(); err != nil {
		return &Health{Healthy: false, Error: err.Error()}
	}
	return &Health{Healthy: true}
}
