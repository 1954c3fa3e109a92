// File: internal/notification/digest.go
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/careops/hospitalhub/internal/models"
)

// digestSender is the slice of the email channel the worker needs.
type digestSender interface {
	SendDigest(ctx context.Context, unread []*models.Notification) error
}

// digestWorker periodically emails a summary of unread notifications,
// honoring the email digest settings. It wakes on a short check interval
// and sends only when the configured frequency has elapsed.
type digestWorker struct {
	service *Service
	logger  *NotificationLogger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastSent time.Time
}

func newDigestWorker(service *Service) *digestWorker {
	return &digestWorker{
		service: service,
		logger:  service.logger.WithField("component", "digest_worker"),
	}
}

func (dw *digestWorker) Start(ctx context.Context) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.running {
		return
	}
	if dw.service.config.DigestCheckInterval <= 0 {
		dw.logger.Debug("Digest worker disabled, no check interval configured")
		return
	}
	if dw.emailSender() == nil {
		dw.logger.Debug("Digest worker disabled, no email channel registered")
		return
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	dw.running = true
	dw.cancel = cancel
	dw.done = make(chan struct{})

	go dw.run(workerCtx)
	dw.logger.Info("Digest worker started", map[string]interface{}{
		"check_interval": dw.service.config.DigestCheckInterval.String(),
	})
}

func (dw *digestWorker) Stop() {
	dw.mu.Lock()
	if !dw.running {
		dw.mu.Unlock()
		return
	}
	dw.running = false
	cancel := dw.cancel
	done := dw.done
	dw.mu.Unlock()

	cancel()
	<-done
	dw.logger.Info("Digest worker stopped")
}

func (dw *digestWorker) run(ctx context.Context) {
	defer close(dw.done)

	ticker := time.NewTicker(dw.service.config.DigestCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dw.maybeSend(ctx)
		}
	}
}

// maybeSend sends a digest when digests are enabled, the frequency window
// has elapsed and there is something unread to report.
func (dw *digestWorker) maybeSend(ctx context.Context) {
	settings := dw.service.Settings()
	if !settings.EmailDigest.Enabled {
		return
	}

	interval := frequencyInterval(settings.EmailDigest.Frequency)
	now := dw.service.now()

	dw.mu.Lock()
	due := dw.lastSent.IsZero() || now.Sub(dw.lastSent) >= interval
	dw.mu.Unlock()
	if !due {
		return
	}

	unread := dw.service.UnreadNotifications()
	if len(unread) == 0 {
		return
	}

	sender := dw.emailSender()
	if sender == nil {
		return
	}

	if err := sender.SendDigest(ctx, unread); err != nil {
		dw.logger.Warn("Failed to send email digest", map[string]interface{}{
			"unread_count": len(unread),
			"error":        err.Error(),
		})
		return
	}

	dw.mu.Lock()
	dw.lastSent = now
	dw.mu.Unlock()

	if dw.service.metricsManager != nil {
		dw.service.metricsManager.GetPrometheusMetrics().RecordDigestSent()
	}

	dw.logger.Info("Email digest sent", map[string]interface{}{
		"unread_count": len(unread),
		"frequency":    settings.EmailDigest.Frequency,
	})
}

func (dw *digestWorker) emailSender() digestSender {
	sender, ok := dw.service.senders[models.ChannelEmail]
	if !ok {
		return nil
	}
	ds, ok := sender.(digestSender)
	if !ok {
		return nil
	}
	return ds
}

func frequencyInterval(frequency string) time.Duration {
	switch frequency {
	case "hourly":
		return time.Hour
	case "weekly":
		return 7 * 24 * time.Hour
	default: // daily
		return 24 * time.Hour
	}
}
