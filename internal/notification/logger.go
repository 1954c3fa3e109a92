// File: internal/notification/logger.go
package notification

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/careops/hospitalhub/pkg/utils"
)

// NotificationLogger handles logging for notification operations
type NotificationLogger struct {
	logger   *logrus.Logger
	logLevel logrus.Level
	context  map[string]interface{}
}

// NewNotificationLogger creates a new notification logger
func NewNotificationLogger(logLevel string) *NotificationLogger {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}

	logger := utils.GetLogger()
	logger.SetLevel(level)

	return &NotificationLogger{
		logger:   logger,
		logLevel: level,
		context:  make(map[string]interface{}),
	}
}

// WithContext adds context to the logger
func (nl *NotificationLogger) WithContext(context map[string]interface{}) *NotificationLogger {
	newLogger := &NotificationLogger{
		logger:   nl.logger,
		logLevel: nl.logLevel,
		context:  make(map[string]interface{}),
	}

	for k, v := range nl.context {
		newLogger.context[k] = v
	}
	for k, v := range context {
		newLogger.context[k] = v
	}

	return newLogger
}

// WithField adds a single field to the logger context
func (nl *NotificationLogger) WithField(key string, value interface{}) *NotificationLogger {
	return nl.WithContext(map[string]interface{}{key: value})
}

// Debug logs a debug message
func (nl *NotificationLogger) Debug(message string, context ...map[string]interface{}) {
	nl.log(logrus.DebugLevel, message, context...)
}

// Info logs an info message
func (nl *NotificationLogger) Info(message string, context ...map[string]interface{}) {
	nl.log(logrus.InfoLevel, message, context...)
}

// Warn logs a warning message
func (nl *NotificationLogger) Warn(message string, context ...map[string]interface{}) {
	nl.log(logrus.WarnLevel, message, context...)
}

// Error logs an error message
func (nl *NotificationLogger) Error(message string, context ...map[string]interface{}) {
	nl.log(logrus.ErrorLevel, message, context...)
}

// log is the internal logging method
func (nl *NotificationLogger) log(level logrus.Level, message string, context ...map[string]interface{}) {
	if level < nl.logLevel {
		return
	}

	mergedContext := make(map[string]interface{})
	for k, v := range nl.context {
		mergedContext[k] = v
	}
	for _, ctx := range context {
		for k, v := range ctx {
			mergedContext[k] = v
		}
	}
	mergedContext["component"] = "notification"

	entry := nl.logger.WithFields(logrus.Fields(mergedContext))

	switch level {
	case logrus.DebugLevel:
		entry.Debug(message)
	case logrus.InfoLevel:
		entry.Info(message)
	case logrus.WarnLevel:
		entry.Warn(message)
	case logrus.ErrorLevel:
		entry.Error(message)
	}
}

// LogDeliveryAttempt logs a channel delivery attempt
func (nl *NotificationLogger) LogDeliveryAttempt(notificationID string, channel string) {
	nl.Debug("Channel delivery attempt started", map[string]interface{}{
		"notification_id": notificationID,
		"channel":         channel,
	})
}

// LogDeliveryResult logs a channel delivery result
func (nl *NotificationLogger) LogDeliveryResult(notificationID, channel string, duration time.Duration, err error) {
	context := map[string]interface{}{
		"notification_id": notificationID,
		"channel":         channel,
		"duration_ms":     duration.Milliseconds(),
	}

	if err != nil {
		context["error"] = err.Error()
		nl.Error("Channel delivery failed", context)
	} else {
		nl.Info("Channel delivery completed", context)
	}
}

// LogSuppressed logs a settings-gated suppression
func (nl *NotificationLogger) LogSuppressed(notificationID, reason string) {
	nl.Debug("Notification suppressed", map[string]interface{}{
		"notification_id": notificationID,
		"reason":          reason,
	})
}

// LogSettingsChange logs settings updates
func (nl *NotificationLogger) LogSettingsChange(fields []string) {
	nl.Info("Notification settings updated", map[string]interface{}{
		"fields": fields,
	})
}
