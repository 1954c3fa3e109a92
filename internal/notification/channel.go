// File: internal/notification/channel.go
package notification

import (
	"context"
	"time"

	"github.com/careops/hospitalhub/internal/models"
)

// ChannelSender delivers a notification over one transport. Senders are
// best-effort: a failed Send is logged by the service and never surfaced
// to the caller that created the notification.
type ChannelSender interface {
	Channel() models.DeliveryChannel
	Start(ctx context.Context) error
	Stop() error
	Send(ctx context.Context, n *models.Notification) error
}

// Config holds notification service configuration
type Config struct {
	EnablePush          bool
	EnableEmail         bool
	EnableSMS           bool
	DeliveryTimeout     time.Duration
	FCMCredentialsFile  string
	FCMTopic            string
	SMSGatewayURL       string
	SMSGatewayToken     string
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	EmailFrom           string
	EmailFromName       string
	EmailTo             []string
	UseTLS              bool
	DigestCheckInterval time.Duration
	LogLevel            string
}

// InAppSender is the in-app channel. Delivery is a no-op because in-app
// consumers read the shared notification list directly; it exists so the
// channel participates in fan-out accounting like any other.
type InAppSender struct {
	logger *NotificationLogger
}

// NewInAppSender creates the in-app channel sender
func NewInAppSender(logger *NotificationLogger) *InAppSender {
	return &InAppSender{logger: logger.WithField("component", "inapp_sender")}
}

func (ia *InAppSender) Channel() models.DeliveryChannel { return models.ChannelInApp }

func (ia *InAppSender) Start(ctx context.Context) error { return nil }

func (ia *InAppSender) Stop() error { return nil }

// Send records the delivery; subscribers receive the list separately.
func (ia *InAppSender) Send(ctx context.Context, n *models.Notification) error {
	ia.logger.Debug("In-app notification delivered", map[string]interface{}{
		"notification_id": n.ID,
		"title":           n.Title,
	})
	return nil
}
