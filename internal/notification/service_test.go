// File: internal/notification/service_test.go
package notification

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careops/hospitalhub/internal/metrics"
	"github.com/careops/hospitalhub/internal/models"
	"github.com/careops/hospitalhub/internal/storage"
	"github.com/careops/hospitalhub/pkg/utils"
)

// Prometheus collectors register globally, so the test binary shares one
// metrics manager.
var (
	metricsOnce       sync.Once
	sharedTestMetrics *metrics.Manager
)

func testMetrics(t *testing.T) *metrics.Manager {
	t.Helper()
	metricsOnce.Do(func() { sharedTestMetrics = metrics.NewManager() })
	return sharedTestMetrics
}

// fakeSender records every notification it is asked to deliver.
type fakeSender struct {
	channel models.DeliveryChannel

	mu   sync.Mutex
	sent []*models.Notification
	err  error
}

func newFakeSender(channel models.DeliveryChannel) *fakeSender {
	return &fakeSender{channel: channel}
}

func (f *fakeSender) Channel() models.DeliveryChannel { return f.channel }
func (f *fakeSender) Start(ctx context.Context) error { return nil }
func (f *fakeSender) Stop() error                     { return nil }

func (f *fakeSender) Send(ctx context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testFakes struct {
	inApp *fakeSender
	push  *fakeSender
	email *fakeSender
	sms   *fakeSender
}

// newTestService builds a service on fake senders with a pinned clock.
func newTestService(t *testing.T, at time.Time) (*Service, *testFakes) {
	t.Helper()

	fakes := &testFakes{
		inApp: newFakeSender(models.ChannelInApp),
		push:  newFakeSender(models.ChannelPush),
		email: newFakeSender(models.ChannelEmail),
		sms:   newFakeSender(models.ChannelSMS),
	}

	cfg := &Config{
		DeliveryTimeout: time.Second,
		LogLevel:        "error",
	}

	svc := NewService(cfg, nil, fakes.inApp, fakes.push, fakes.email, fakes.sms)
	svc.now = func() time.Time { return at }
	return svc, fakes
}

func midday(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2025, 9, 2, 12, 0, 0, 0, time.UTC)
}

func TestCreateNotificationAssignsIdentity(t *testing.T) {
	svc, _ := newTestService(t, midday(t))
	ctx := context.Background()

	first, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypePatientMessage,
		Title:            "Message",
		Message:          "hello",
		Priority:         models.PriorityMedium,
		Category:         models.CategoryPatientCommunication,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp},
	})
	require.NoError(t, err)

	second, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypePatientMessage,
		Title:            "Message",
		Message:          "hello again",
		Priority:         models.PriorityMedium,
		Category:         models.CategoryPatientCommunication,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.Timestamp.After(second.Timestamp))

	// Newest first
	list := svc.Notifications()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestCreateNotificationRejectsUnknownEnums(t *testing.T) {
	svc, _ := newTestService(t, midday(t))
	ctx := context.Background()

	_, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             "bogus_type",
		Priority:         models.PriorityMedium,
		Category:         models.CategorySystem,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp},
	})
	require.Error(t, err)

	appErr, ok := err.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrCodeValidation, appErr.Code)

	_, err = svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypePatientMessage,
		Priority:         models.PriorityMedium,
		Category:         models.CategorySystem,
		DeliveryChannels: []models.DeliveryChannel{"carrier_pigeon"},
	})
	require.Error(t, err)
}

func TestCategoryGateSuppressesDelivery(t *testing.T) {
	svc, fakes := newTestService(t, midday(t))
	ctx := context.Background()

	// Administrative is disabled by default
	n, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypeAdministrative,
		Title:            "Policy update",
		Priority:         models.PriorityMedium,
		Category:         models.CategoryAdministrative,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp, models.ChannelPush},
	})
	require.NoError(t, err)

	// Suppressed notifications are still recorded
	list := svc.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, n.ID, list[0].ID)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fakes.inApp.sentCount())
	assert.Zero(t, fakes.push.sentCount())

	stats := svc.GetStats()
	assert.Equal(t, uint64(1), stats.TotalSuppressed)
	assert.Equal(t, uint64(1), stats.SuppressedByReason["category_disabled"])
}

func TestPriorityGateSuppressesDelivery(t *testing.T) {
	svc, fakes := newTestService(t, midday(t))
	ctx := context.Background()

	_, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypeSystemMaintenance,
		Title:            "Maintenance window",
		Priority:         models.PriorityLow,
		Category:         models.CategorySystem,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp},
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fakes.inApp.sentCount())

	stats := svc.GetStats()
	assert.Equal(t, uint64(1), stats.SuppressedByReason["priority_disabled"])
}

func TestQuietHoursSuppressExceptCritical(t *testing.T) {
	lateEvening := time.Date(2025, 9, 2, 23, 0, 0, 0, time.UTC)
	svc, fakes := newTestService(t, lateEvening)
	ctx := context.Background()

	high, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypeResourceShortage,
		Title:            "Shortage",
		Priority:         models.PriorityHigh,
		Category:         models.CategoryResources,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp, models.ChannelPush},
	})
	require.NoError(t, err)

	critical, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypeEmergencyCodeBlue,
		Title:            "Code Blue",
		Priority:         models.PriorityCritical,
		Category:         models.CategoryEmergency,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp, models.ChannelPush},
	})
	require.NoError(t, err)

	// Critical bypasses quiet hours
	require.Eventually(t, func() bool {
		return fakes.inApp.sentCount() == 1 && fakes.push.sentCount() == 1
	}, time.Second, 10*time.Millisecond)

	fakes.inApp.mu.Lock()
	deliveredID := fakes.inApp.sent[0].ID
	fakes.inApp.mu.Unlock()
	assert.Equal(t, critical.ID, deliveredID)

	// Both live in the list regardless
	list := svc.Notifications()
	require.Len(t, list, 2)
	assert.Equal(t, critical.ID, list[0].ID)
	assert.Equal(t, high.ID, list[1].ID)

	stats := svc.GetStats()
	assert.Equal(t, uint64(1), stats.SuppressedByReason["quiet_hours"])
}

func TestDisabledChannelSkipped(t *testing.T) {
	svc, fakes := newTestService(t, midday(t))
	ctx := context.Background()

	// Email is disabled in default settings
	_, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypeAIResourceSurge,
		Title:            "Surge expected",
		Priority:         models.PriorityMedium,
		Category:         models.CategoryAIInsights,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp, models.ChannelEmail},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return fakes.inApp.sentCount() == 1
	}, time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fakes.email.sentCount())
}

func TestChannelFailureDoesNotGateCreation(t *testing.T) {
	svc, fakes := newTestService(t, midday(t))
	fakes.push.err = assert.AnError
	ctx := context.Background()

	n, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypeResourceShortage,
		Title:            "Shortage",
		Priority:         models.PriorityHigh,
		Category:         models.CategoryResources,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp, models.ChannelPush},
	})
	require.NoError(t, err)
	require.NotNil(t, n)

	require.Eventually(t, func() bool {
		stats := svc.GetStats()
		return stats.TotalDelivered == 1 && stats.TotalFailed == 1
	}, time.Second, 10*time.Millisecond)

	require.Len(t, svc.Notifications(), 1)
}

func TestMarkAsRead(t *testing.T) {
	svc, _ := newTestService(t, midday(t))
	ctx := context.Background()

	n, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypePatientMessage,
		Title:            "Message",
		Priority:         models.PriorityMedium,
		Category:         models.CategoryPatientCommunication,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp},
	})
	require.NoError(t, err)
	assert.False(t, svc.Notifications()[0].IsRead)

	svc.MarkAsRead(ctx, n.ID)
	assert.True(t, svc.Notifications()[0].IsRead)

	// Idempotent, unknown ids are a no-op
	svc.MarkAsRead(ctx, n.ID)
	svc.MarkAsRead(ctx, "no-such-id")
	assert.True(t, svc.Notifications()[0].IsRead)
}

func TestMarkAllAsRead(t *testing.T) {
	svc, _ := newTestService(t, midday(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateNotification(ctx, models.NotificationInput{
			Type:             models.TypePatientMessage,
			Title:            "Message",
			Priority:         models.PriorityMedium,
			Category:         models.CategoryPatientCommunication,
			DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp},
		})
		require.NoError(t, err)
	}

	require.Len(t, svc.UnreadNotifications(), 3)
	svc.MarkAllAsRead(ctx)
	assert.Empty(t, svc.UnreadNotifications())
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	svc, _ := newTestService(t, midday(t))
	ctx := context.Background()

	var mu sync.Mutex
	var calls [][]*models.Notification
	unsubscribe := svc.Subscribe(func(list []*models.Notification) {
		mu.Lock()
		calls = append(calls, list)
		mu.Unlock()
	})

	_, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypePatientMessage,
		Title:            "Message",
		Priority:         models.PriorityMedium,
		Category:         models.CategoryPatientCommunication,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp},
	})
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)
	mu.Unlock()

	unsubscribe()
	unsubscribe() // second call is harmless

	_, err = svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypePatientMessage,
		Title:            "Another",
		Priority:         models.PriorityMedium,
		Category:         models.CategoryPatientCommunication,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp},
	})
	require.NoError(t, err)

	mu.Lock()
	assert.Len(t, calls, 1)
	mu.Unlock()
}

func TestExpiredNotificationsFiltered(t *testing.T) {
	now := midday(t)
	svc, _ := newTestService(t, now)
	ctx := context.Background()

	expiry := now.Add(time.Hour)
	n, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypeSystemMaintenance,
		Title:            "Window closing",
		Priority:         models.PriorityMedium,
		Category:         models.CategorySystem,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp},
		ExpiresAt:        &expiry,
	})
	require.NoError(t, err)

	require.Len(t, svc.Notifications(), 1)
	assert.Equal(t, n.ID, svc.Notifications()[0].ID)

	// Advance the clock past the expiry
	svc.now = func() time.Time { return now.Add(2 * time.Hour) }
	assert.Empty(t, svc.Notifications())
}

func TestUpdateSettings(t *testing.T) {
	svc, fakes := newTestService(t, midday(t))
	ctx := context.Background()

	merged := svc.UpdateSettings(ctx, models.SettingsPatch{
		Channels: map[models.DeliveryChannel]bool{
			models.ChannelInApp: true,
			models.ChannelEmail: true,
		},
	})
	assert.True(t, merged.Channels[models.ChannelEmail])

	_, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypeAIResourceSurge,
		Title:            "Surge",
		Priority:         models.PriorityMedium,
		Category:         models.CategoryAIInsights,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelEmail},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return fakes.email.sentCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSettingsReturnsCopy(t *testing.T) {
	svc, _ := newTestService(t, midday(t))

	settings := svc.Settings()
	settings.Channels[models.ChannelInApp] = false

	assert.True(t, svc.Settings().Channels[models.ChannelInApp])
}

func TestEmergencyAlertConstructor(t *testing.T) {
	svc, fakes := newTestService(t, midday(t))
	ctx := context.Background()

	// Enable SMS so all three requested channels deliver
	svc.UpdateSettings(ctx, models.SettingsPatch{
		Channels: map[models.DeliveryChannel]bool{
			models.ChannelInApp: true,
			models.ChannelPush:  true,
			models.ChannelSMS:   true,
		},
	})

	n, err := svc.CreateEmergencyAlert(ctx, "Code Blue in ICU", "ICU Ward 3")
	require.NoError(t, err)

	assert.Equal(t, models.TypeEmergencyCodeBlue, n.Type)
	assert.Equal(t, models.PriorityCritical, n.Priority)
	assert.Equal(t, models.CategoryEmergency, n.Category)
	assert.Equal(t, []models.DeliveryChannel{
		models.ChannelInApp, models.ChannelPush, models.ChannelSMS,
	}, n.DeliveryChannels)
	assert.Equal(t, "ICU Ward 3", n.Metadata["location"])

	// Lands at the head of the list
	assert.Equal(t, n.ID, svc.Notifications()[0].ID)

	require.Eventually(t, func() bool {
		return fakes.inApp.sentCount() == 1 &&
			fakes.push.sentCount() == 1 &&
			fakes.sms.sentCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestResourceAlertConstructor(t *testing.T) {
	svc, _ := newTestService(t, midday(t))

	n, err := svc.CreateResourceAlert(context.Background(), "ICU Beds", "Urgent")
	require.NoError(t, err)

	assert.Equal(t, models.TypeResourceShortage, n.Type)
	assert.Equal(t, models.PriorityHigh, n.Priority)
	assert.Equal(t, models.CategoryResources, n.Category)
	assert.Equal(t, "ICU Beds: Urgent", n.Message)
	assert.Equal(t, []models.DeliveryChannel{
		models.ChannelInApp, models.ChannelPush,
	}, n.DeliveryChannels)
}

func TestAppointmentReminderConstructor(t *testing.T) {
	svc, _ := newTestService(t, midday(t))

	n, err := svc.CreateAppointmentReminder(context.Background(), "Jordan Lee", "14:30")
	require.NoError(t, err)

	assert.Equal(t, models.TypeAppointmentReminder, n.Type)
	assert.Equal(t, models.PriorityMedium, n.Priority)
	assert.Equal(t, models.CategoryAppointments, n.Category)
	assert.Equal(t, "Jordan Lee has an appointment at 14:30", n.Message)
}

func TestAIInsightConstructor(t *testing.T) {
	svc, _ := newTestService(t, midday(t))

	n, err := svc.CreateAIInsight(context.Background(), "ICU demand rising", 87)
	require.NoError(t, err)

	assert.Equal(t, models.TypeAIResourceSurge, n.Type)
	assert.Equal(t, models.CategoryAIInsights, n.Category)
	assert.Equal(t, "ICU demand rising (Confidence: 87%)", n.Message)
	assert.Equal(t, []models.DeliveryChannel{
		models.ChannelInApp, models.ChannelEmail,
	}, n.DeliveryChannels)
}

func TestServiceLifecycle(t *testing.T) {
	svc, _ := newTestService(t, midday(t))
	ctx := context.Background()

	assert.False(t, svc.IsHealthy())
	require.NoError(t, svc.Start(ctx))
	assert.True(t, svc.IsHealthy())

	// Double start is rejected
	require.Error(t, svc.Start(ctx))

	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsHealthy())

	// Stopping a stopped service is a no-op
	require.NoError(t, svc.Stop())
}

func TestSnapshotsIsolatedFromReadState(t *testing.T) {
	svc, _ := newTestService(t, midday(t))
	ctx := context.Background()

	n, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypePatientMessage,
		Title:            "Message",
		Message:          "hello",
		Priority:         models.PriorityMedium,
		Category:         models.CategoryPatientCommunication,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp},
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []*models.Notification
	unsubscribe := svc.Subscribe(func(list []*models.Notification) {
		mu.Lock()
		seen = list
		mu.Unlock()
	})
	defer unsubscribe()

	snapshot := svc.Notifications()
	require.Len(t, snapshot, 1)
	require.False(t, snapshot[0].IsRead)

	svc.MarkAsRead(ctx, n.ID)

	// The snapshot taken before the mark is unaffected
	assert.False(t, snapshot[0].IsRead)
	assert.True(t, svc.Notifications()[0].IsRead)

	// Mutating a broadcast snapshot never reaches the service
	mu.Lock()
	held := seen
	mu.Unlock()
	require.Len(t, held, 1)
	held[0].IsRead = false
	held[0].Title = "tampered"
	assert.True(t, svc.Notifications()[0].IsRead)
	assert.Equal(t, "Message", svc.Notifications()[0].Title)
}

func TestMetricsRecording(t *testing.T) {
	svc, fakes := newTestService(t, midday(t))
	metricsManager := testMetrics(t)
	svc.SetMetrics(metricsManager)
	prom := metricsManager.GetPrometheusMetrics()
	ctx := context.Background()

	created := prom.NotificationsCreatedTotal.WithLabelValues("patient_communication", "medium")
	sent := prom.NotificationsSentTotal.WithLabelValues("in_app", "patient_message")
	failed := prom.NotificationFailuresTotal.WithLabelValues("push", "patient_message")
	suppressed := prom.NotificationsSuppressedTotal.WithLabelValues("priority_disabled")

	createdBefore := testutil.ToFloat64(created)
	sentBefore := testutil.ToFloat64(sent)
	failedBefore := testutil.ToFloat64(failed)
	suppressedBefore := testutil.ToFloat64(suppressed)

	fakes.push.err = assert.AnError
	_, err := svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypePatientMessage,
		Title:            "Message",
		Message:          "hello",
		Priority:         models.PriorityMedium,
		Category:         models.CategoryPatientCommunication,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp, models.ChannelPush},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(sent) == sentBefore+1 &&
			testutil.ToFloat64(failed) == failedBefore+1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, createdBefore+1, testutil.ToFloat64(created))

	// Suppressed notifications count against their gate reason
	_, err = svc.CreateNotification(ctx, models.NotificationInput{
		Type:             models.TypePatientMessage,
		Title:            "Low",
		Message:          "quiet",
		Priority:         models.PriorityLow,
		Category:         models.CategoryPatientCommunication,
		DeliveryChannels: []models.DeliveryChannel{models.ChannelInApp},
	})
	require.NoError(t, err)
	assert.Equal(t, suppressedBefore+1, testutil.ToFloat64(suppressed))

	assert.Equal(t, 2.0, testutil.ToFloat64(prom.UnreadNotifications))
	svc.MarkAllAsRead(ctx)
	assert.Equal(t, 0.0, testutil.ToFloat64(prom.UnreadNotifications))
}

func newSettingsStore(t *testing.T) storage.Store {
	t.Helper()

	store := storage.NewSQLiteStore(&storage.Config{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "settings.db"),
		MaxConnections:   2,
		MaxIdleTime:      time.Minute,
	})
	require.NoError(t, store.Connect())
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	return store
}

func TestLoadSettingsMissingKeepsDefaults(t *testing.T) {
	store := newSettingsStore(t)
	cfg := &Config{DeliveryTimeout: time.Second, LogLevel: "error"}

	svc := NewService(cfg, store, newFakeSender(models.ChannelInApp))
	svc.LoadSettings(context.Background())

	assert.Equal(t, DefaultSettings(), svc.Settings())
}

func TestLoadSettingsCorruptBlobKeepsCurrent(t *testing.T) {
	store := newSettingsStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutSetting(ctx, storage.SettingsKey, []byte("{not json")))

	cfg := &Config{DeliveryTimeout: time.Second, LogLevel: "error"}
	svc := NewService(cfg, store, newFakeSender(models.ChannelInApp))
	svc.LoadSettings(ctx)

	assert.Equal(t, DefaultSettings(), svc.Settings())
}

func TestLoadSettingsHydratesStoredBlob(t *testing.T) {
	store := newSettingsStore(t)
	ctx := context.Background()
	cfg := &Config{DeliveryTimeout: time.Second, LogLevel: "error"}

	writer := NewService(cfg, store, newFakeSender(models.ChannelInApp))
	writer.UpdateSettings(ctx, models.SettingsPatch{
		QuietHours: &models.QuietHours{Enabled: false},
		Channels: map[models.DeliveryChannel]bool{
			models.ChannelInApp: true,
			models.ChannelEmail: true,
		},
	})

	reader := NewService(cfg, store, newFakeSender(models.ChannelInApp))
	reader.LoadSettings(ctx)

	loaded := reader.Settings()
	assert.False(t, loaded.QuietHours.Enabled)
	assert.True(t, loaded.Channels[models.ChannelEmail])
}
