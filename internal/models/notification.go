package models

import (
	"time"
)

// NotificationType identifies what kind of event a notification reports.
type NotificationType string

const (
	TypeAppointmentReminder     NotificationType = "appointment_reminder"
	TypeAppointmentConfirmation NotificationType = "appointment_confirmation"
	TypeAppointmentCancellation NotificationType = "appointment_cancellation"
	TypeAppointmentRescheduling NotificationType = "appointment_rescheduling"
	TypeResourceAvailability    NotificationType = "resource_availability"
	TypeResourceShortage        NotificationType = "resource_shortage"
	TypeEmergencyCodeBlue       NotificationType = "emergency_code_blue"
	TypeDisasterAlert           NotificationType = "disaster_alert"
	TypeStaffShiftReminder      NotificationType = "staff_shift_reminder"
	TypeStaffSubstitution       NotificationType = "staff_substitution"
	TypeAIResourceSurge         NotificationType = "ai_resource_surge"
	TypeAIAnomalyDetection      NotificationType = "ai_anomaly_detection"
	TypePatientMessage          NotificationType = "patient_message"
	TypeAdministrative          NotificationType = "administrative"
	TypeBilling                 NotificationType = "billing"
	TypeSystemMaintenance       NotificationType = "system_maintenance"
)

// NotificationPriority orders notifications by severity, low to critical.
type NotificationPriority string

const (
	PriorityLow      NotificationPriority = "low"
	PriorityMedium   NotificationPriority = "medium"
	PriorityHigh     NotificationPriority = "high"
	PriorityUrgent   NotificationPriority = "urgent"
	PriorityCritical NotificationPriority = "critical"
)

// NotificationCategory groups notifications for settings-based filtering.
type NotificationCategory string

const (
	CategoryAppointments         NotificationCategory = "appointments"
	CategoryResources            NotificationCategory = "resources"
	CategoryEmergency            NotificationCategory = "emergency"
	CategoryStaff                NotificationCategory = "staff"
	CategoryAIInsights           NotificationCategory = "ai_insights"
	CategoryPatientCommunication NotificationCategory = "patient_communication"
	CategoryAdministrative       NotificationCategory = "administrative"
	CategorySystem               NotificationCategory = "system"
)

// DeliveryChannel is a transport a notification can be delivered on.
type DeliveryChannel string

const (
	ChannelInApp DeliveryChannel = "in_app"
	ChannelPush  DeliveryChannel = "push"
	ChannelEmail DeliveryChannel = "email"
	ChannelSMS   DeliveryChannel = "sms"
)

// Notification is a single notification record. ID and Timestamp are always
// assigned by the service; IsRead only ever transitions false to true.
type Notification struct {
	ID               string                 `json:"id" db:"id"`
	Type             NotificationType       `json:"type" db:"type"`
	Title            string                 `json:"title" db:"title"`
	Message          string                 `json:"message" db:"message"`
	Timestamp        time.Time              `json:"timestamp" db:"timestamp"`
	IsRead           bool                   `json:"is_read" db:"is_read"`
	Priority         NotificationPriority   `json:"priority" db:"priority"`
	Category         NotificationCategory   `json:"category" db:"category"`
	DeliveryChannels []DeliveryChannel      `json:"delivery_channels" db:"delivery_channels"`
	Metadata         map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	ActionURL        string                 `json:"action_url,omitempty" db:"action_url"`
	ExpiresAt        *time.Time             `json:"expires_at,omitempty" db:"expires_at"`
}

// Expired reports whether the notification has an expiry in the past.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// QuietHours is a time window during which only critical notifications
// are delivered. Start and End are zero-padded "HH:MM" strings.
type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

// EmailDigest configures periodic summary emails of unread notifications.
type EmailDigest struct {
	Enabled   bool   `json:"enabled"`
	Frequency string `json:"frequency"` // hourly, daily, weekly
}

// NotificationSettings controls which notifications are delivered and where.
type NotificationSettings struct {
	UserID      string                        `json:"user_id"`
	Channels    map[DeliveryChannel]bool      `json:"channels"`
	Categories  map[NotificationCategory]bool `json:"categories"`
	Priorities  map[NotificationPriority]bool `json:"priorities"`
	QuietHours  QuietHours                    `json:"quiet_hours"`
	EmailDigest EmailDigest                   `json:"email_digest"`
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged;
// non-nil fields replace the corresponding settings field wholesale.
type SettingsPatch struct {
	Channels    map[DeliveryChannel]bool      `json:"channels,omitempty"`
	Categories  map[NotificationCategory]bool `json:"categories,omitempty"`
	Priorities  map[NotificationPriority]bool `json:"priorities,omitempty"`
	QuietHours  *QuietHours                   `json:"quiet_hours,omitempty"`
	EmailDigest *EmailDigest                  `json:"email_digest,omitempty"`
}

// NotificationInput is the caller-supplied portion of a notification.
// ID and Timestamp are intentionally absent.
type NotificationInput struct {
	Type             NotificationType       `json:"type"`
	Title            string                 `json:"title"`
	Message          string                 `json:"message"`
	IsRead           bool                   `json:"is_read"`
	Priority         NotificationPriority   `json:"priority"`
	Category         NotificationCategory   `json:"category"`
	DeliveryChannels []DeliveryChannel      `json:"delivery_channels"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	ActionURL        string                 `json:"action_url,omitempty"`
	ExpiresAt        *time.Time             `json:"expires_at,omitempty"`
}
