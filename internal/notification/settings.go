// File: internal/notification/settings.go
package notification

import (
	"github.com/careops/hospitalhub/internal/models"
)

// DefaultSettings returns the settings a fresh service starts with.
func DefaultSettings() models.NotificationSettings {
	return models.NotificationSettings{
		UserID: "user-123",
		Channels: map[models.DeliveryChannel]bool{
			models.ChannelInApp: true,
			models.ChannelPush:  true,
			models.ChannelEmail: false,
			models.ChannelSMS:   false,
		},
		Categories: map[models.NotificationCategory]bool{
			models.CategoryAppointments:         true,
			models.CategoryResources:            true,
			models.CategoryEmergency:            true,
			models.CategoryStaff:                true,
			models.CategoryAIInsights:           true,
			models.CategoryPatientCommunication: true,
			models.CategoryAdministrative:       false,
			models.CategorySystem:               true,
		},
		Priorities: map[models.NotificationPriority]bool{
			models.PriorityCritical: true,
			models.PriorityUrgent:   true,
			models.PriorityHigh:     true,
			models.PriorityMedium:   true,
			models.PriorityLow:      false,
		},
		QuietHours: models.QuietHours{
			Enabled:  true,
			Start:    "22:00",
			End:      "07:00",
			Timezone: "UTC-5",
		},
		EmailDigest: models.EmailDigest{
			Enabled:   true,
			Frequency: "daily",
		},
	}
}

// mergeSettings applies a patch to settings. Non-nil patch fields replace
// the corresponding settings field wholesale (shallow merge).
func mergeSettings(settings models.NotificationSettings, patch models.SettingsPatch) models.NotificationSettings {
	if patch.Channels != nil {
		settings.Channels = patch.Channels
	}
	if patch.Categories != nil {
		settings.Categories = patch.Categories
	}
	if patch.Priorities != nil {
		settings.Priorities = patch.Priorities
	}
	if patch.QuietHours != nil {
		settings.QuietHours = *patch.QuietHours
	}
	if patch.EmailDigest != nil {
		settings.EmailDigest = *patch.EmailDigest
	}
	return settings
}

// patchedFields names the settings fields a patch touches, for logging.
func patchedFields(patch models.SettingsPatch) []string {
	var fields []string
	if patch.Channels != nil {
		fields = append(fields, "channels")
	}
	if patch.Categories != nil {
		fields = append(fields, "categories")
	}
	if patch.Priorities != nil {
		fields = append(fields, "priorities")
	}
	if patch.QuietHours != nil {
		fields = append(fields, "quiet_hours")
	}
	if patch.EmailDigest != nil {
		fields = append(fields, "email_digest")
	}
	return fields
}

// inQuietWindow reports whether the zero-padded "HH:MM" time now falls in
// the window [start, end]. Lexical comparison is valid because zero-padded
// 24-hour strings sort identically to their numeric time-of-day value. A
// start after the end means the window crosses midnight.
func inQuietWindow(now, start, end string) bool {
	if start > end {
		return now >= start || now <= end
	}
	return now >= start && now <= end
}

// copySettings returns a deep copy so callers cannot mutate service state.
func copySettings(s models.NotificationSettings) models.NotificationSettings {
	out := s
	out.Channels = make(map[models.DeliveryChannel]bool, len(s.Channels))
	for k, v := range s.Channels {
		out.Channels[k] = v
	}
	out.Categories = make(map[models.NotificationCategory]bool, len(s.Categories))
	for k, v := range s.Categories {
		out.Categories[k] = v
	}
	out.Priorities = make(map[models.NotificationPriority]bool, len(s.Priorities))
	for k, v := range s.Priorities {
		out.Priorities[k] = v
	}
	return out
}
