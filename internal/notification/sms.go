// File: internal/notification/sms.go
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/careops/hospitalhub/internal/models"
	"github.com/careops/hospitalhub/pkg/utils"
)

// SMSSender delivers notifications by posting to an SMS gateway endpoint
type SMSSender struct {
	config     *Config
	logger     *NotificationLogger
	httpClient *http.Client
}

// smsPayload is the gateway request body
type smsPayload struct {
	Message   string    `json:"message"`
	Priority  string    `json:"priority"`
	Category  string    `json:"category"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSMSSender creates a new SMS sender
func NewSMSSender(config *Config, logger *NotificationLogger) *SMSSender {
	return &SMSSender{
		config: config,
		logger: logger.WithField("component", "sms_sender"),
		httpClient: &http.Client{
			Timeout: config.DeliveryTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Start starts the SMS sender
func (ss *SMSSender) Start(ctx context.Context) error {
	ss.logger.Info("SMS sender started", map[string]interface{}{
		"gateway_url": ss.config.SMSGatewayURL,
	})
	return nil
}

// Stop stops the SMS sender
func (ss *SMSSender) Stop() error {
	ss.logger.Info("SMS sender stopped")
	return nil
}

func (ss *SMSSender) Channel() models.DeliveryChannel { return models.ChannelSMS }

// Send posts the notification to the SMS gateway
func (ss *SMSSender) Send(ctx context.Context, n *models.Notification) error {
	startTime := time.Now()
	ss.logger.LogDeliveryAttempt(n.ID, string(models.ChannelSMS))

	if ss.config.SMSGatewayURL == "" {
		ss.logger.Info("SMS notification (log-only)", map[string]interface{}{
			"notification_id": n.ID,
			"title":           n.Title,
		})
		return nil
	}

	payload := &smsPayload{
		Message:   fmt.Sprintf("%s: %s", n.Title, n.Message),
		Priority:  string(n.Priority),
		Category:  string(n.Category),
		Source:    "hospitalhub",
		Timestamp: time.Now(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "Failed to marshal SMS payload", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ss.config.SMSGatewayURL, bytes.NewReader(jsonData))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "Failed to create SMS request", err.Error())
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "HospitalHub/1.0")
	if ss.config.SMSGatewayToken != "" {
		req.Header.Set("Authorization", "Bearer "+ss.config.SMSGatewayToken)
	}

	resp, err := ss.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		ss.logger.LogDeliveryResult(n.ID, string(models.ChannelSMS), duration, err)
		return utils.NewAppError(utils.ErrCodeExternal, "Failed to reach SMS gateway", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := utils.NewAppError(utils.ErrCodeExternal,
			"SMS gateway returned non-success status",
			fmt.Sprintf("status: %d", resp.StatusCode))
		ss.logger.LogDeliveryResult(n.ID, string(models.ChannelSMS), duration, err)
		return err
	}

	ss.logger.LogDeliveryResult(n.ID, string(models.ChannelSMS), duration, nil)
	return nil
}
