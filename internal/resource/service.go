// File: internal/resource/service.go
package resource

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/careops/hospitalhub/internal/metrics"
	"github.com/careops/hospitalhub/internal/models"
	"github.com/careops/hospitalhub/internal/storage"
	"github.com/careops/hospitalhub/pkg/utils"
)

// Listener receives the full ledger, newest first, after every change.
// Listeners must not retain the slice across calls.
type Listener func(items []*models.ResourceItem)

// Stats provides resource service statistics
type Stats struct {
	TotalRows   int    `json:"total_rows"`
	RowsCreated uint64 `json:"rows_created"`
	RowsUpdated uint64 `json:"rows_updated"`
	UrgentRows  int    `json:"urgent_rows"`
}

// Health reports service health
type Health struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// resourceLabels maps the short resource type keys accepted by admin
// updates to the display labels the ledger is keyed on.
var resourceLabels = map[string]string{
	"beds":        "Hospital Beds",
	"icu":         "ICU Beds",
	"oxygen":      "Oxygen Tanks",
	"ventilators": "Ventilators",
	"staff":       "Staff",
}

// Service owns the hospital resource ledger: one row per hospital and
// resource type, with derived status, progress and priority. Construct
// once per process and inject it.
type Service struct {
	logger         *logrus.Logger
	store          storage.Store
	metricsManager *metrics.Manager

	mu        sync.RWMutex
	running   bool
	items     []*models.ResourceItem
	listeners map[int]Listener
	nextToken int
	created   uint64
	updated   uint64

	now func() time.Time
}

// NewService creates a resource service with an empty ledger
func NewService(store storage.Store) *Service {
	return &Service{
		logger:    utils.GetLogger(),
		store:     store,
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
}

// SetMetrics attaches a metrics manager. Must be called before Start.
func (s *Service) SetMetrics(metricsManager *metrics.Manager) {
	s.metricsManager = metricsManager
}

// Start hydrates the ledger from storage. When storage is empty and
// seeding is requested, demo rows are installed instead.
func (s *Service) Start(ctx context.Context, seedDemoData bool) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return utils.NewAppError(utils.ErrCodeInternal, "Resource service already running", "")
	}
	s.running = true
	s.mu.Unlock()

	if s.store != nil {
		items, err := s.store.GetResources(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to load resource ledger from storage")
		} else if len(items) > 0 {
			s.mu.Lock()
			s.items = items
			s.mu.Unlock()
			s.logger.WithField("rows", len(items)).Info("Resource ledger loaded from storage")
			return nil
		}
	}

	if seedDemoData {
		s.mu.Lock()
		s.items = s.demoRows()
		s.mu.Unlock()
		s.persist(ctx)
		s.logger.Info("Resource ledger seeded with demo data")
	}

	return nil
}

// Stop marks the service stopped
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
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

// Resources returns a copy of the current ledger, newest rows first
func (s *Service) Resources() []*models.ResourceItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// AddOrUpdateResource applies an administrative stock update. An existing
// row for the same hospital and resource label is updated in place with
// Quantity as a delta; otherwise a new row is created at the head with
// Quantity as the initial stock.
func (s *Service) AddOrUpdateResource(ctx context.Context, update models.ResourceUpdate) (*models.ResourceItem, error) {
	if update.Hospital == "" {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Hospital is required", "")
	}
	if update.ResourceType == "" {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Resource type is required", "")
	}

	label := resourceLabels[update.ResourceType]
	if label == "" {
		label = update.ResourceType
	}

	s.mu.Lock()
	var row *models.ResourceItem
	for _, item := range s.items {
		if item.Hospital == update.Hospital && item.Resource == label {
			row = item
			break
		}
	}

	outcome := "updated"
	if row != nil {
		s.updateRow(row, update.Quantity)
		s.updated++
	} else {
		row = s.createRow(update.Hospital, label, update.Quantity)
		s.items = append([]*models.ResourceItem{row}, s.items...)
		s.created++
		outcome = "created"
	}
	result := *row
	s.mu.Unlock()

	if s.metricsManager != nil {
		stats := s.GetStats()
		prom := s.metricsManager.GetPrometheusMetrics()
		prom.RecordResourceUpdate(result.Hospital, outcome)
		prom.UpdateResourceRows(stats.TotalRows, stats.UrgentRows)
	}

	s.logger.WithFields(logrus.Fields{
		"hospital": result.Hospital,
		"resource": result.Resource,
		"total":    result.Total(),
		"status":   string(result.Status),
	}).Info("Resource ledger updated")

	s.persist(ctx)
	s.broadcast()
	return &result, nil
}

// updateRow bumps availability by the delta and re-derives progress and
// status. Capacity and priority are unchanged; a zero capacity inherits
// the new availability. Availability never goes below zero.
func (s *Service) updateRow(row *models.ResourceItem, delta int) {
	available := row.Available + delta
	if available < 0 {
		available = 0
	}
	capacity := row.Capacity
	if capacity == 0 {
		capacity = available
	}

	row.Available = available
	row.Capacity = capacity
	row.Progress = progressFor(available, capacity)

	switch {
	case available <= 3:
		row.Status = models.StatusUrgent
	case float64(available) < float64(capacity)/2:
		row.Status = models.StatusInProgress
	default:
		row.Status = models.StatusAvailable
	}
}

// createRow derives a fresh row from the initial quantity. Capacity is at
// least 10 so small initial stocks read as partially filled.
func (s *Service) createRow(hospital, label string, quantity int) *models.ResourceItem {
	capacity := quantity
	if capacity < 10 {
		capacity = 10
	}

	status := models.StatusAvailable
	priority := models.ResourcePriorityMedium
	switch {
	case quantity <= 3:
		status = models.StatusUrgent
		priority = models.ResourcePriorityUrgent
	case quantity < 10:
		status = models.StatusInProgress
		priority = models.ResourcePriorityHigh
	}

	return &models.ResourceItem{
		ID:          uuid.NewString(),
		Hospital:    hospital,
		Resource:    label,
		Status:      status,
		Progress:    progressFor(quantity, capacity),
		Available:   quantity,
		Capacity:    capacity,
		CreatedDate: s.now().Format("02/01/2006"),
		DueDate:     "—",
		Priority:    priority,
	}
}

// GetStats returns ledger statistics
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	urgent := 0
	for _, item := range s.items {
		if item.Status == models.StatusUrgent {
			urgent++
		}
	}
	return Stats{
		TotalRows:   len(s.items),
		RowsCreated: s.created,
		RowsUpdated: s.updated,
		UrgentRows:  urgent,
	}
}

// persist writes the full ledger snapshot, best effort
func (s *Service) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	s.mu.RLock()
	snapshot := s.snapshotLocked()
	s.mu.RUnlock()

	if err := s.store.SaveResources(ctx, snapshot); err != nil {
		s.logger.WithError(err).Warn("Failed to persist resource ledger")
	}
}

// broadcast snapshots the listener set and the ledger, then invokes every
// listener outside the lock.
func (s *Service) broadcast() {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	snapshot := s.snapshotLocked()
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
}

// snapshotLocked copies the ledger rows. Callers must hold at least a
// read lock.
func (s *Service) snapshotLocked() []*models.ResourceItem {
	out := make([]*models.ResourceItem, len(s.items))
	for i, item := range s.items {
		clone := *item
		out[i] = &clone
	}
	return out
}

// progressFor is the fill percentage, clamped to 0..100
func progressFor(available, capacity int) int {
	if capacity == 0 {
		capacity = 1
	}
	progress := int(math.Round(float64(available) / float64(capacity) * 100))
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// demoRows is the starter ledger installed on first run
func (s *Service) demoRows() []*models.ResourceItem {
	return []*models.ResourceItem{
		{
			ID: uuid.NewString(), Hospital: "City General Hospital", Resource: "ICU Beds",
			Status: models.StatusAvailable, Progress: 75, Available: 8, Capacity: 12,
			CreatedDate: "02-09-2025", DueDate: "2h left", Priority: models.ResourcePriorityHigh,
		},
		{
			ID: uuid.NewString(), Hospital: "Metro Medical Center", Resource: "Oxygen Tanks",
			Status: models.StatusInProgress, Progress: 45, Available: 45, Capacity: 100,
			CreatedDate: "02-09-2025", DueDate: "4h left", Priority: models.ResourcePriorityMedium,
		},
		{
			ID: uuid.NewString(), Hospital: "Regional Hospital", Resource: "Ventilators",
			Status: models.StatusUrgent, Progress: 90, Available: 2, Capacity: 5,
			CreatedDate: "02-09-2025", DueDate: "1h left", Priority: models.ResourcePriorityUrgent,
		},
		{
			ID: uuid.NewString(), Hospital: "Community Health", Resource: "Staff Nurses",
			Status: models.StatusAvailable, Progress: 60, Available: 12, Capacity: 20,
			CreatedDate: "02-09-2025", DueDate: "6h left", Priority: models.ResourcePriorityLow,
		},
	}
}
