// File: internal/notification/push.go
package notification

import (
	"context"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/careops/hospitalhub/internal/models"
	"github.com/careops/hospitalhub/pkg/utils"
)

// PushSender delivers notifications over Firebase Cloud Messaging. When no
// credentials file is configured the sender runs in log-only mode so the
// rest of the fan-out path behaves identically in development.
type PushSender struct {
	config *Config
	logger *NotificationLogger
	client *messaging.Client
}

// NewPushSender creates a new push sender
func NewPushSender(config *Config, logger *NotificationLogger) *PushSender {
	return &PushSender{
		config: config,
		logger: logger.WithField("component", "push_sender"),
	}
}

// Start initializes the FCM client if credentials are configured
func (ps *PushSender) Start(ctx context.Context) error {
	if ps.config.FCMCredentialsFile == "" {
		ps.logger.Info("Push sender started in log-only mode (no FCM credentials configured)")
		return nil
	}

	opt := option.WithCredentialsFile(ps.config.FCMCredentialsFile)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Failed to initialize Firebase app", err.Error())
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Failed to create FCM messaging client", err.Error())
	}

	ps.client = client
	ps.logger.Info("Push sender started", map[string]interface{}{
		"topic": ps.config.FCMTopic,
	})
	return nil
}

// Stop stops the push sender
func (ps *PushSender) Stop() error {
	ps.logger.Info("Push sender stopped")
	return nil
}

func (ps *PushSender) Channel() models.DeliveryChannel { return models.ChannelPush }

// Send publishes the notification to the configured FCM topic
func (ps *PushSender) Send(ctx context.Context, n *models.Notification) error {
	startTime := time.Now()
	ps.logger.LogDeliveryAttempt(n.ID, string(models.ChannelPush))

	if ps.client == nil {
		ps.logger.Info("Push notification (log-only)", map[string]interface{}{
			"notification_id": n.ID,
			"title":           n.Title,
			"priority":        string(n.Priority),
		})
		return nil
	}

	msg := &messaging.Message{
		Topic: ps.config.FCMTopic,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data: map[string]string{
			"notification_id": n.ID,
			"type":            string(n.Type),
			"priority":        string(n.Priority),
			"category":        string(n.Category),
		},
	}
	if n.ActionURL != "" {
		msg.Data["action_url"] = n.ActionURL
	}
	if n.Priority == models.PriorityCritical {
		msg.Android = &messaging.AndroidConfig{Priority: "high"}
	}

	_, err := ps.client.Send(ctx, msg)
	ps.logger.LogDeliveryResult(n.ID, string(models.ChannelPush), time.Since(startTime), err)

	if err != nil {
		return utils.NewAppError(utils.ErrCodeExternal, "Failed to send push notification", err.Error())
	}
	return nil
}
