// File: internal/notification/email.go
package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/careops/hospitalhub/internal/models"
	"github.com/careops/hospitalhub/pkg/utils"
)

// EmailSender delivers notifications over SMTP
type EmailSender struct {
	config *Config
	logger *NotificationLogger
	auth   smtp.Auth
}

// NewEmailSender creates a new email sender
func NewEmailSender(config *Config, logger *NotificationLogger) *EmailSender {
	return &EmailSender{
		config: config,
		logger: logger.WithField("component", "email_sender"),
	}
}

// Start sets up SMTP authentication
func (es *EmailSender) Start(ctx context.Context) error {
	if es.config.SMTPUsername != "" && es.config.SMTPPassword != "" {
		es.auth = smtp.PlainAuth("", es.config.SMTPUsername, es.config.SMTPPassword, es.config.SMTPHost)
	}

	es.logger.Info("Email sender started", map[string]interface{}{
		"smtp_host": es.config.SMTPHost,
		"smtp_port": es.config.SMTPPort,
		"use_tls":   es.config.UseTLS,
	})
	return nil
}

// Stop stops the email sender
func (es *EmailSender) Stop() error {
	es.logger.Info("Email sender stopped")
	return nil
}

func (es *EmailSender) Channel() models.DeliveryChannel { return models.ChannelEmail }

// Send delivers a single notification by email
func (es *EmailSender) Send(ctx context.Context, n *models.Notification) error {
	startTime := time.Now()
	es.logger.LogDeliveryAttempt(n.ID, string(models.ChannelEmail))

	if len(es.config.EmailTo) == 0 {
		return utils.NewAppError(utils.ErrCodeValidation, "Email recipients are required", "")
	}

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(n.Priority)), n.Title)
	message := es.buildMessage(subject, es.notificationBody(n), n.Priority)

	err := es.deliver(es.config.EmailTo, message)
	es.logger.LogDeliveryResult(n.ID, string(models.ChannelEmail), time.Since(startTime), err)

	if err != nil {
		return utils.NewAppError(utils.ErrCodeExternal, "Failed to send email", err.Error())
	}
	return nil
}

// SendDigest delivers a digest summary of unread notifications
func (es *EmailSender) SendDigest(ctx context.Context, unread []*models.Notification) error {
	if len(es.config.EmailTo) == 0 {
		return utils.NewAppError(utils.ErrCodeValidation, "Email recipients are required", "")
	}

	subject := fmt.Sprintf("Notification digest: %d unread", len(unread))
	message := es.buildMessage(subject, es.digestBody(unread), models.PriorityMedium)

	err := es.deliver(es.config.EmailTo, message)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeExternal, "Failed to send digest email", err.Error())
	}

	es.logger.Info("Digest email sent", map[string]interface{}{
		"unread_count": len(unread),
		"recipients":   len(es.config.EmailTo),
	})
	return nil
}

// deliver sends the message over plain SMTP or TLS
func (es *EmailSender) deliver(to []string, message string) error {
	if es.config.UseTLS {
		return es.sendTLS(to, message)
	}
	addr := fmt.Sprintf("%s:%d", es.config.SMTPHost, es.config.SMTPPort)
	return smtp.SendMail(addr, es.auth, es.config.EmailFrom, to, []byte(message))
}

// sendTLS sends email over an explicit TLS connection
func (es *EmailSender) sendTLS(to []string, message string) error {
	addr := fmt.Sprintf("%s:%d", es.config.SMTPHost, es.config.SMTPPort)

	tlsConfig := &tls.Config{
		ServerName: es.config.SMTPHost,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("failed to connect with TLS: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, es.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if es.auth != nil {
		if err := client.Auth(es.auth); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err := client.Mail(es.config.EmailFrom); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", recipient, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	defer writer.Close()

	if _, err := writer.Write([]byte(message)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// buildMessage builds the full email message including headers
func (es *EmailSender) buildMessage(subject, body string, priority models.NotificationPriority) string {
	var message strings.Builder

	message.WriteString(fmt.Sprintf("From: %s <%s>\r\n", es.config.EmailFromName, es.config.EmailFrom))
	message.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(es.config.EmailTo, ", ")))
	message.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/html; charset=UTF-8\r\n")

	switch priority {
	case models.PriorityCritical, models.PriorityUrgent, models.PriorityHigh:
		message.WriteString("X-Priority: 1\r\n")
		message.WriteString("Importance: high\r\n")
	case models.PriorityLow:
		message.WriteString("X-Priority: 5\r\n")
		message.WriteString("Importance: low\r\n")
	}

	message.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	message.WriteString("\r\n")
	message.WriteString(body)

	return message.String()
}

// notificationBody renders a single notification as HTML
func (es *EmailSender) notificationBody(n *models.Notification) string {
	var body strings.Builder

	body.WriteString("<html><body>")
	body.WriteString(fmt.Sprintf("<h2>%s</h2>", n.Title))
	body.WriteString(fmt.Sprintf("<p>%s</p>", n.Message))
	body.WriteString("<table border='1' cellpadding='5' cellspacing='0'>")
	body.WriteString(fmt.Sprintf("<tr><td><strong>Type</strong></td><td>%s</td></tr>", n.Type))
	body.WriteString(fmt.Sprintf("<tr><td><strong>Priority</strong></td><td>%s</td></tr>", n.Priority))
	body.WriteString(fmt.Sprintf("<tr><td><strong>Category</strong></td><td>%s</td></tr>", n.Category))
	for key, value := range n.Metadata {
		body.WriteString(fmt.Sprintf("<tr><td><strong>%s</strong></td><td>%v</td></tr>", key, value))
	}
	body.WriteString("</table>")
	if n.ActionURL != "" {
		body.WriteString(fmt.Sprintf("<p><a href=\"%s\">View Details</a></p>", n.ActionURL))
	}
	body.WriteString(fmt.Sprintf("<p><small>Sent at: %s</small></p>", time.Now().Format(time.RFC3339)))
	body.WriteString("</body></html>")

	return body.String()
}

// digestBody renders a digest of unread notifications as HTML
func (es *EmailSender) digestBody(unread []*models.Notification) string {
	var body strings.Builder

	body.WriteString("<html><body>")
	body.WriteString("<h2>Unread Notifications</h2>")
	body.WriteString("<table border='1' cellpadding='5' cellspacing='0'>")
	body.WriteString("<tr><th>Time</th><th>Priority</th><th>Title</th><th>Message</th></tr>")
	for _, n := range unread {
		body.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			n.Timestamp.Format("2006-01-02 15:04"), n.Priority, n.Title, n.Message))
	}
	body.WriteString("</table>")
	body.WriteString("</body></html>")

	return body.String()
}
