// File: internal/notification/service.go
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careops/hospitalhub/internal/metrics"
	"github.com/careops/hospitalhub/internal/models"
	"github.com/careops/hospitalhub/internal/storage"
	"github.com/careops/hospitalhub/pkg/utils"
)

// Listener receives the full notification list, newest first, after every
// change. Listeners must not retain the slice across calls.
type Listener func(notifications []*models.Notification)

// Stats provides notification service statistics
type Stats struct {
	TotalCreated       uint64                            `json:"total_created"`
	TotalSuppressed    uint64                            `json:"total_suppressed"`
	TotalDelivered     uint64                            `json:"total_delivered"`
	TotalFailed        uint64                            `json:"total_failed"`
	DeliveredByChannel map[models.DeliveryChannel]uint64 `json:"delivered_by_channel"`
	SuppressedByReason map[string]uint64                 `json:"suppressed_by_reason"`
}

// Health reports service health
type Health struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Service is the process-wide authority for notification creation,
// settings-based filtering, channel fan-out, read state and subscriber
// broadcast. Construct exactly one per process and inject it.
type Service struct {
	config         *Config
	logger         *NotificationLogger
	store          storage.Store
	metricsManager *metrics.Manager

	mu            sync.RWMutex
	running       bool
	notifications []*models.Notification
	settings      models.NotificationSettings
	listeners     map[int]Listener
	nextToken     int
	senders       map[models.DeliveryChannel]ChannelSender
	stats         Stats

	// now is the clock; replaced in tests to pin quiet-hours evaluation.
	now func() time.Time

	digest *digestWorker
}

// NewService creates a notification service with default settings. When no
// senders are supplied the standard set (in-app, push, email, SMS) is wired
// from the config; tests pass their own.
func NewService(config *Config, store storage.Store, senders ...ChannelSender) *Service {
	logger := NewNotificationLogger(config.LogLevel)

	s := &Service{
		config:    config,
		logger:    logger,
		store:     store,
		settings:  DefaultSettings(),
		listeners: make(map[int]Listener),
		senders:   make(map[models.DeliveryChannel]ChannelSender),
		now:       time.Now,
		stats: Stats{
			DeliveredByChannel: make(map[models.DeliveryChannel]uint64),
			SuppressedByReason: make(map[string]uint64),
		},
	}

	if len(senders) == 0 {
		senders = append(senders, NewInAppSender(logger))
		if config.EnablePush {
			senders = append(senders, NewPushSender(config, logger))
		}
		if config.EnableEmail {
			senders = append(senders, NewEmailSender(config, logger))
		}
		if config.EnableSMS {
			senders = append(senders, NewSMSSender(config, logger))
		}
	}
	for _, sender := range senders {
		s.senders[sender.Channel()] = sender
	}

	s.digest = newDigestWorker(s)

	return s
}

// SetMetrics attaches a metrics manager. Must be called before Start.
func (s *Service) SetMetrics(metricsManager *metrics.Manager) {
	s.metricsManager = metricsManager
}

// Start starts the channel senders and the digest worker
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return utils.NewAppError(utils.ErrCodeInternal, "Notification service already running", "")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting notification service")

	for channel, sender := range s.senders {
		if err := sender.Start(ctx); err != nil {
			s.logger.Warn("Failed to start channel sender", map[string]interface{}{
				"channel": string(channel),
				"error":   err.Error(),
			})
		}
	}

	s.digest.Start(ctx)

	s.logger.Info("Notification service started")
	return nil
}

// Stop stops the digest worker and the channel senders
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping notification service")

	s.digest.Stop()
	for _, sender := range s.senders {
		sender.Stop()
	}

	s.logger.Info("Notification service stopped")
	return nil
}

// IsHealthy returns whether the service is running
func (s *Service) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetHealth reports service health
func (s *Service) GetHealth() *Health {
	return &Health{Healthy: s.IsHealthy()}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Each subscription is independent; unsubscribing twice is harmless.
func (s *Service) Subscribe(listener Listener) func() {
	s.mu.Lock()
	token := s.nextToken
	s.nextToken++
	s.listeners[token] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, token)
		s.mu.Unlock()
	}
}

// CreateNotification assigns an id and timestamp, evaluates the settings
// gate, fans out to enabled delivery channels and records the notification.
// Suppressed notifications are recorded but not delivered. Channel delivery
// is fire-and-forget and never fails the call.
func (s *Service) CreateNotification(ctx context.Context, input models.NotificationInput) (*models.Notification, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	n := &models.Notification{
		ID:               uuid.NewString(),
		Type:             input.Type,
		Title:            input.Title,
		Message:          input.Message,
		Timestamp:        s.now(),
		IsRead:           input.IsRead,
		Priority:         input.Priority,
		Category:         input.Category,
		DeliveryChannels: input.DeliveryChannels,
		Metadata:         input.Metadata,
		ActionURL:        input.ActionURL,
		ExpiresAt:        input.ExpiresAt,
	}

	deliver, reason := s.shouldSend(n)
	if deliver {
		s.dispatch(n)
	} else {
		s.logger.LogSuppressed(n.ID, reason)
		s.mu.Lock()
		s.stats.TotalSuppressed++
		s.stats.SuppressedByReason[reason]++
		s.mu.Unlock()
		if s.metricsManager != nil {
			s.metricsManager.GetPrometheusMetrics().RecordNotificationSuppressed(reason)
		}
	}

	s.mu.Lock()
	s.notifications = append([]*models.Notification{n}, s.notifications...)
	s.stats.TotalCreated++
	s.mu.Unlock()

	if s.metricsManager != nil {
		prom := s.metricsManager.GetPrometheusMetrics()
		prom.RecordNotificationCreated(string(n.Category), string(n.Priority))
		prom.UpdateUnreadNotifications(len(s.UnreadNotifications()))
	}

	if s.store != nil {
		if err := s.store.SaveNotification(ctx, n); err != nil {
			s.logger.Warn("Failed to archive notification", map[string]interface{}{
				"notification_id": n.ID,
				"error":           err.Error(),
			})
		}
	}

	s.broadcast()
	return n, nil
}

// shouldSend evaluates the settings gate: category, priority, quiet hours.
func (s *Service) shouldSend(n *models.Notification) (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.settings.Categories[n.Category] {
		return false, "category_disabled"
	}
	if !s.settings.Priorities[n.Priority] {
		return false, "priority_disabled"
	}
	if s.settings.QuietHours.Enabled && n.Priority != models.PriorityCritical {
		current := s.now().Format("15:04")
		if inQuietWindow(current, s.settings.QuietHours.Start, s.settings.QuietHours.End) {
			return false, "quiet_hours"
		}
	}
	return true, ""
}

// dispatch fans the notification out to every requested channel that is
// enabled in settings. Each channel send runs independently; failures are
// logged and counted but never gate recording or other channels.
func (s *Service) dispatch(n *models.Notification) {
	s.mu.RLock()
	var targets []ChannelSender
	for _, channel := range n.DeliveryChannels {
		if !s.settings.Channels[channel] {
			continue
		}
		if sender, ok := s.senders[channel]; ok {
			targets = append(targets, sender)
		}
	}
	s.mu.RUnlock()

	for _, sender := range targets {
		go func(cs ChannelSender) {
			// Fire-and-forget: the caller's context may be gone by the
			// time the send completes.
			ctx := context.Background()
			if s.config.DeliveryTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, s.config.DeliveryTimeout)
				defer cancel()
			}

			start := time.Now()
			err := cs.Send(ctx, n)

			s.mu.Lock()
			if err != nil {
				s.stats.TotalFailed++
			} else {
				s.stats.TotalDelivered++
				s.stats.DeliveredByChannel[cs.Channel()]++
			}
			s.mu.Unlock()

			if s.metricsManager != nil {
				prom := s.metricsManager.GetPrometheusMetrics()
				if err != nil {
					prom.RecordNotificationFailure(string(cs.Channel()), string(n.Type))
				} else {
					prom.RecordNotificationSent(string(cs.Channel()), string(n.Type), time.Since(start))
				}
			}
		}(sender)
	}
}

// broadcast snapshots the listener set and the list, then invokes every
// listener outside the lock so reentrant mutations cannot deadlock.
func (s *Service) broadcast() {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	snapshot := s.activeLocked()
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
}

// activeLocked copies the list excluding expired entries. Each entry is
// cloned so snapshots never observe later read-state changes. Callers must
// hold at least a read lock.
func (s *Service) activeLocked() []*models.Notification {
	now := s.now()
	out := make([]*models.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if n.Expired(now) {
			continue
		}
		clone := *n
		out = append(out, &clone)
	}
	return out
}

// Notifications returns the current list, newest first, excluding expired
// entries. The returned slice is a copy.
func (s *Service) Notifications() []*models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked()
}

// UnreadNotifications returns unread, unexpired notifications newest first
func (s *Service) UnreadNotifications() []*models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.IsRead || n.Expired(now) {
			continue
		}
		clone := *n
		out = append(out, &clone)
	}
	return out
}

// MarkAsRead marks the matching notification as read. Unknown ids are a
// no-op. Idempotent.
func (s *Service) MarkAsRead(ctx context.Context, id string) {
	s.mu.Lock()
	for _, n := range s.notifications {
		if n.ID == id {
			n.IsRead = true
			break
		}
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.MarkNotificationRead(ctx, id); err != nil {
			s.logger.Warn("Failed to persist read state", map[string]interface{}{
				"notification_id": id,
				"error":           err.Error(),
			})
		}
	}

	if s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().UpdateUnreadNotifications(len(s.UnreadNotifications()))
	}

	s.broadcast()
}

// MarkAllAsRead marks every notification as read
func (s *Service) MarkAllAsRead(ctx context.Context) {
	s.mu.Lock()
	for _, n := range s.notifications {
		n.IsRead = true
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.MarkAllNotificationsRead(ctx); err != nil {
			s.logger.Warn("Failed to persist read state", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().UpdateUnreadNotifications(0)
	}

	s.broadcast()
}

// Settings returns a copy of the current settings
func (s *Service) Settings() models.NotificationSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySettings(s.settings)
}

// UpdateSettings shallow-merges the patch into the current settings and
// persists the result as an opaque blob. Persistence failures are logged,
// never surfaced.
func (s *Service) UpdateSettings(ctx context.Context, patch models.SettingsPatch) models.NotificationSettings {
	s.mu.Lock()
	s.settings = mergeSettings(s.settings, patch)
	merged := copySettings(s.settings)
	s.mu.Unlock()

	s.logger.LogSettingsChange(patchedFields(patch))

	if s.store != nil {
		blob, err := json.Marshal(merged)
		if err == nil {
			err = s.store.PutSetting(ctx, storage.SettingsKey, blob)
		}
		if err != nil {
			s.logger.Warn("Failed to persist notification settings", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return merged
}

// LoadSettings hydrates settings from the store. Missing or corrupt stored
// data silently leaves the in-memory settings in place.
func (s *Service) LoadSettings(ctx context.Context) {
	if s.store == nil {
		return
	}

	blob, err := s.store.GetSetting(ctx, storage.SettingsKey)
	if err != nil {
		s.logger.Debug("No stored notification settings, keeping current", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	loaded := s.Settings()
	if err := json.Unmarshal(blob, &loaded); err != nil {
		s.logger.Warn("Failed to parse stored notification settings, keeping current", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	s.mu.Lock()
	s.settings = loaded
	s.mu.Unlock()

	s.logger.Info("Notification settings loaded from storage")
}

// GetStats returns a copy of the service statistics
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.stats
	out.DeliveredByChannel = make(map[models.DeliveryChannel]uint64, len(s.stats.DeliveredByChannel))
	for k, v := range s.stats.DeliveredByChannel {
		out.DeliveredByChannel[k] = v
	}
	out.SuppressedByReason = make(map[string]uint64, len(s.stats.SuppressedByReason))
	for k, v := range s.stats.SuppressedByReason {
		out.SuppressedByReason[k] = v
	}
	return out
}

// Convenience constructors. Each is sugar over CreateNotification with
// fixed type, category, priority and channel defaults.

// CreateEmergencyAlert creates a critical emergency notification delivered
// in-app, by push and by SMS.
func (s *Service) CreateEmergencyAlert(ctx context.Context, message, location string) (*models.Notification, error) {
	metadata := map[string]interface{}{"location": location}
	return s.CreateNotification(ctx, models.NotificationInput{
		Type:     models.TypeEmergencyCodeBlue,
		Title:    "Emergency Alert",
		Message:  message,
		Priority: models.PriorityCritical,
		Category: models.CategoryEmergency,
		DeliveryChannels: []models.DeliveryChannel{
			models.ChannelInApp, models.ChannelPush, models.ChannelSMS,
		},
		Metadata: metadata,
	})
}

// CreateResourceAlert creates a high-priority resource shortage notification
func (s *Service) CreateResourceAlert(ctx context.Context, resource, status string) (*models.Notification, error) {
	return s.CreateNotification(ctx, models.NotificationInput{
		Type:     models.TypeResourceShortage,
		Title:    "Resource Alert",
		Message:  fmt.Sprintf("%s: %s", resource, status),
		Priority: models.PriorityHigh,
		Category: models.CategoryResources,
		DeliveryChannels: []models.DeliveryChannel{
			models.ChannelInApp, models.ChannelPush,
		},
	})
}

// CreateAppointmentReminder creates a medium-priority appointment reminder
func (s *Service) CreateAppointmentReminder(ctx context.Context, patientName, at string) (*models.Notification, error) {
	return s.CreateNotification(ctx, models.NotificationInput{
		Type:     models.TypeAppointmentReminder,
		Title:    "Appointment Reminder",
		Message:  fmt.Sprintf("%s has an appointment at %s", patientName, at),
		Priority: models.PriorityMedium,
		Category: models.CategoryAppointments,
		DeliveryChannels: []models.DeliveryChannel{
			models.ChannelInApp, models.ChannelPush,
		},
	})
}

// CreateAIInsight creates a medium-priority AI insight notification
func (s *Service) CreateAIInsight(ctx context.Context, insight string, confidence int) (*models.Notification, error) {
	return s.CreateNotification(ctx, models.NotificationInput{
		Type:     models.TypeAIResourceSurge,
		Title:    "AI Insight",
		Message:  fmt.Sprintf("%s (Confidence: %d%%)", insight, confidence),
		Priority: models.PriorityMedium,
		Category: models.CategoryAIInsights,
		DeliveryChannels: []models.DeliveryChannel{
			models.ChannelInApp, models.ChannelEmail,
		},
	})
}

// validateInput rejects unknown enum values
func validateInput(input models.NotificationInput) error {
	if !validTypes[input.Type] {
		return utils.NewAppError(utils.ErrCodeValidation, "Unknown notification type", string(input.Type))
	}
	if !validPriorities[input.Priority] {
		return utils.NewAppError(utils.ErrCodeValidation, "Unknown notification priority", string(input.Priority))
	}
	if !validCategories[input.Category] {
		return utils.NewAppError(utils.ErrCodeValidation, "Unknown notification category", string(input.Category))
	}
	for _, channel := range input.DeliveryChannels {
		if !validChannels[channel] {
			return utils.NewAppError(utils.ErrCodeValidation, "Unknown delivery channel", string(channel))
		}
	}
	return nil
}

var validTypes = map[models.NotificationType]bool{
	models.TypeAppointmentReminder:     true,
	models.TypeAppointmentConfirmation: true,
	models.TypeAppointmentCancellation: true,
	models.TypeAppointmentRescheduling: true,
	models.TypeResourceAvailability:    true,
	models.TypeResourceShortage:        true,
	models.TypeEmergencyCodeBlue:       true,
	models.TypeDisasterAlert:           true,
	models.TypeStaffShiftReminder:      true,
	models.TypeStaffSubstitution:       true,
	models.TypeAIResourceSurge:         true,
	models.TypeAIAnomalyDetection:      true,
	models.TypePatientMessage:          true,
	models.TypeAdministrative:          true,
	models.TypeBilling:                 true,
	models.TypeSystemMaintenance:       true,
}

var validPriorities = map[models.NotificationPriority]bool{
	models.PriorityLow:      true,
	models.PriorityMedium:   true,
	models.PriorityHigh:     true,
	models.PriorityUrgent:   true,
	models.PriorityCritical: true,
}

var validCategories = map[models.NotificationCategory]bool{
	models.CategoryAppointments:         true,
	models.CategoryResources:            true,
	models.CategoryEmergency:            true,
	models.CategoryStaff:                true,
	models.CategoryAIInsights:           true,
	models.CategoryPatientCommunication: true,
	models.CategoryAdministrative:       true,
	models.CategorySystem:               true,
}

var validChannels = map[models.DeliveryChannel]bool{
	models.ChannelInApp: true,
	models.ChannelPush:  true,
	models.ChannelEmail: true,
	models.ChannelSMS:   true,
}
