// File: internal/notification/settings_test.go
package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/careops/hospitalhub/internal/models"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()

	assert.Equal(t, "user-123", settings.UserID)

	assert.True(t, settings.Channels[models.ChannelInApp])
	assert.True(t, settings.Channels[models.ChannelPush])
	assert.False(t, settings.Channels[models.ChannelEmail])
	assert.False(t, settings.Channels[models.ChannelSMS])

	assert.False(t, settings.Categories[models.CategoryAdministrative])
	assert.True(t, settings.Categories[models.CategoryEmergency])

	assert.False(t, settings.Priorities[models.PriorityLow])
	assert.True(t, settings.Priorities[models.PriorityCritical])

	assert.True(t, settings.QuietHours.Enabled)
	assert.Equal(t, "22:00", settings.QuietHours.Start)
	assert.Equal(t, "07:00", settings.QuietHours.End)

	assert.True(t, settings.EmailDigest.Enabled)
	assert.Equal(t, "daily", settings.EmailDigest.Frequency)
}

func TestInQuietWindow(t *testing.T) {
	tests := []struct {
		name  string
		now   string
		start string
		end   string
		want  bool
	}{
		{"overnight window, late evening", "23:00", "22:00", "07:00", true},
		{"overnight window, early morning", "06:30", "22:00", "07:00", true},
		{"overnight window, midday", "12:00", "22:00", "07:00", false},
		{"overnight window, start boundary", "22:00", "22:00", "07:00", true},
		{"overnight window, end boundary", "07:00", "22:00", "07:00", true},
		{"overnight window, just after end", "07:01", "22:00", "07:00", false},
		{"same-day window, inside", "13:00", "12:00", "14:00", true},
		{"same-day window, outside", "15:00", "12:00", "14:00", false},
		{"same-day window, boundaries", "12:00", "12:00", "14:00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inQuietWindow(tt.now, tt.start, tt.end))
		})
	}
}

func TestMergeSettings(t *testing.T) {
	settings := DefaultSettings()

	merged := mergeSettings(settings, models.SettingsPatch{
		QuietHours: &models.QuietHours{Enabled: false},
	})

	assert.False(t, merged.QuietHours.Enabled)
	// Untouched fields survive
	assert.Equal(t, "user-123", merged.UserID)
	assert.True(t, merged.Channels[models.ChannelInApp])
	assert.True(t, merged.EmailDigest.Enabled)
}

func TestMergeSettingsReplacesMapsWholesale(t *testing.T) {
	settings := DefaultSettings()

	merged := mergeSettings(settings, models.SettingsPatch{
		Channels: map[models.DeliveryChannel]bool{
			models.ChannelEmail: true,
		},
	})

	assert.True(t, merged.Channels[models.ChannelEmail])
	// The whole map was replaced, not merged key by key
	_, ok := merged.Channels[models.ChannelInApp]
	assert.False(t, ok)
}

func TestCopySettingsIsolation(t *testing.T) {
	original := DefaultSettings()
	clone := copySettings(original)

	clone.Channels[models.ChannelInApp] = false
	clone.Categories[models.CategoryEmergency] = false

	assert.True(t, original.Channels[models.ChannelInApp])
	assert.True(t, original.Categories[models.CategoryEmergency])
}
