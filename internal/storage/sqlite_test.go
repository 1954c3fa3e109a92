// File: internal/storage/sqlite_test.go
package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/careops/hospitalhub/internal/config"
	"github.com/careops/hospitalhub/internal/metrics"
	"github.com/careops/hospitalhub/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := NewSQLiteStore(&Config{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "test.db"),
		MaxConnections:   2,
		MaxIdleTime:      time.Minute,
	})
	require.NoError(t, store.Connect())
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	return store
}

func TestSettingsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetSetting(ctx, SettingsKey)
	require.Error(t, err)

	require.NoError(t, store.PutSetting(ctx, SettingsKey, []byte(`{"user_id":"user-123"}`)))

	blob, err := store.GetSetting(ctx, SettingsKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"user-123"}`, string(blob))

	// Overwrite replaces the previous value
	require.NoError(t, store.PutSetting(ctx, SettingsKey, []byte(`{"user_id":"user-456"}`)))
	blob, err = store.GetSetting(ctx, SettingsKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"user-456"}`, string(blob))
}

func TestNotificationArchive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expiry := time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC)
	older := &models.Notification{
		ID:               "n-1",
		Type:             models.TypeResourceShortage,
		Title:            "Shortage",
		Message:          "ICU Beds: Urgent",
		Timestamp:        time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC),
		Priority:         models.PriorityHigh,
		Category:         models.CategoryResources,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp, models.ChannelPush},
		Metadata:         map[string]interface{}{"hospital": "City General Hospital"},
		ExpiresAt:        &expiry,
	}
	newer := &models.Notification{
		ID:               "n-2",
		Type:             models.TypeEmergencyCodeBlue,
		Title:            "Code Blue",
		Message:          "Emergency in Ward 3",
		Timestamp:        time.Date(2025, 9, 2, 11, 0, 0, 0, time.UTC),
		Priority:         models.PriorityCritical,
		Category:         models.CategoryEmergency,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp, models.ChannelPush, models.ChannelSMS},
	}

	require.NoError(t, store.SaveNotification(ctx, older))
	require.NoError(t, store.SaveNotification(ctx, newer))

	list, err := store.GetNotifications(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Newest first
	assert.Equal(t, "n-2", list[0].ID)
	assert.Equal(t, "n-1", list[1].ID)

	got := list[1]
	assert.Equal(t, models.TypeResourceShortage, got.Type)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, []models.DeliveryChannel{models.ChannelInApp, models.ChannelPush}, got.DeliveryChannels)
	assert.Equal(t, "City General Hospital", got.Metadata["hospital"])
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(expiry))
	assert.False(t, got.IsRead)
}

func TestMarkNotificationsRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"n-1", "n-2"} {
		require.NoError(t, store.SaveNotification(ctx, &models.Notification{
			ID:               id,
			Type:             models.TypePatientMessage,
			Title:            "Message",
			Message:          "hello",
			Timestamp:        time.Now().UTC(),
			Priority:         models.PriorityMedium,
			Category:         models.CategoryPatientCommunication,
			DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp},
		}))
	}

	require.NoError(t, store.MarkNotificationRead(ctx, "n-1"))

	list, err := store.GetNotifications(ctx, 10, 0)
	require.NoError(t, err)
	readByID := map[string]bool{}
	for _, n := range list {
		readByID[n.ID] = n.IsRead
	}
	assert.True(t, readByID["n-1"])
	assert.False(t, readByID["n-2"])

	require.NoError(t, store.MarkAllNotificationsRead(ctx))
	list, err = store.GetNotifications(ctx, 10, 0)
	require.NoError(t, err)
	for _, n := range list {
		assert.True(t, n.IsRead)
	}
}

func TestResourceSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	items := []*models.ResourceItem{
		{
			ID: "r-1", Hospital: "City General Hospital", Resource: "ICU Beds",
			Status: models.StatusAvailable, Progress: 75, Available: 8, Capacity: 12,
			CreatedDate: "02-09-2025", DueDate: "2h left", Priority: models.ResourcePriorityHigh,
		},
		{
			ID: "r-2", Hospital: "Regional Hospital", Resource: "Ventilators",
			Status: models.StatusUrgent, Progress: 90, Available: 2, Capacity: 5,
			CreatedDate: "02-09-2025", DueDate: "1h left", Priority: models.ResourcePriorityUrgent,
		},
	}
	require.NoError(t, store.SaveResources(ctx, items))

	got, err := store.GetResources(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r-1", got[0].ID)
	assert.Equal(t, "r-2", got[1].ID)
	assert.Equal(t, models.StatusUrgent, got[1].Status)
	assert.Equal(t, "2/5", got[1].Total())

	// A later snapshot fully replaces the previous one
	require.NoError(t, store.SaveResources(ctx, items[1:]))
	got, err = store.GetResources(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r-2", got[0].ID)
}

func TestStoreStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Empty store reports no notification time range
	stats, err := store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalNotifications)
	assert.Nil(t, stats.OldestNotification)
	assert.Nil(t, stats.LatestNotification)

	first := time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC)
	second := time.Date(2025, 9, 2, 11, 0, 0, 0, time.UTC)
	for i, ts := range []time.Time{first, second} {
		require.NoError(t, store.SaveNotification(ctx, &models.Notification{
			ID:               []string{"n-1", "n-2"}[i],
			Type:             models.TypePatientMessage,
			Title:            "Message",
			Message:          "hello",
			Timestamp:        ts,
			Priority:         models.PriorityMedium,
			Category:         models.CategoryPatientCommunication,
			DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp},
		}))
	}
	require.NoError(t, store.SaveResources(ctx, []*models.ResourceItem{
		{ID: "r-1", Hospital: "A", Resource: "Staff", Status: models.StatusAvailable,
			CreatedDate: "02-09-2025", DueDate: "—", Priority: models.ResourcePriorityLow},
	}))

	stats, err = store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalNotifications)
	assert.Equal(t, int64(2), stats.UnreadCount)
	assert.Equal(t, int64(1), stats.TotalResources)
	require.NotNil(t, stats.OldestNotification)
	require.NotNil(t, stats.LatestNotification)
	assert.True(t, stats.OldestNotification.Equal(first))
	assert.True(t, stats.LatestNotification.Equal(second))

	assert.True(t, store.GetHealth().Healthy)
}

func TestStoreFactory(t *testing.T) {
	_, err := NewStore(&config.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "factory.db"),
	})
	require.NoError(t, err)

	_, err = NewStore(&config.StorageConfig{
		Type:             "mongodb",
		ConnectionString: "mongodb://localhost",
	})
	require.Error(t, err)
}

func TestStoreWithMetricsRecordsOperations(t *testing.T) {
	store := newTestStore(t)
	metricsManager := metrics.NewManager()
	wrapped := NewStoreWithMetrics(store, metricsManager)
	prom := metricsManager.GetPrometheusMetrics()
	ctx := context.Background()

	require.NoError(t, wrapped.PutSetting(ctx, "theme", []byte(`"dark"`)))
	_, err := wrapped.GetSetting(ctx, "theme")
	require.NoError(t, err)
	_, err = wrapped.GetSetting(ctx, "no-such-key")
	require.Error(t, err)

	require.NoError(t, wrapped.SaveNotification(ctx, &models.Notification{
		ID:               "n-1",
		Type:             models.TypePatientMessage,
		Title:            "Message",
		Message:          "hello",
		Timestamp:        time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC),
		Priority:         models.PriorityMedium,
		Category:         models.CategoryPatientCommunication,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp},
	}))
	_, err = wrapped.GetNotifications(ctx, 10, 0)
	require.NoError(t, err)
	require.NoError(t, wrapped.MarkNotificationRead(ctx, "n-1"))

	counts := prom.DatabaseOperationsTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(counts.WithLabelValues("upsert", "settings", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counts.WithLabelValues("select", "settings", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counts.WithLabelValues("select", "settings", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counts.WithLabelValues("insert", "notifications", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counts.WithLabelValues("select", "notifications", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counts.WithLabelValues("update", "notifications", "success")))

	// Lifecycle methods pass through to the wrapped store
	assert.NoError(t, wrapped.Ping())
	assert.True(t, wrapped.GetHealth().Healthy)
}
