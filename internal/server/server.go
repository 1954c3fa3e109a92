// File: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/careops/hospitalhub/internal/metrics"
	"github.com/careops/hospitalhub/internal/models"
	"github.com/careops/hospitalhub/internal/notification"
	"github.com/careops/hospitalhub/internal/resource"
	"github.com/careops/hospitalhub/internal/storage"
	"github.com/careops/hospitalhub/pkg/utils"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          int           `json:"port"`
	Host          string        `json:"host"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	EnableMetrics bool          `json:"enable_metrics"`
	EnableHealth  bool          `json:"enable_health"`
	Version       string        `json:"version"`
}

// HTTPServer represents the HTTP server
type HTTPServer struct {
	config         *ServerConfig
	server         *http.Server
	router         *mux.Router
	storage        storage.Store
	notifications  *notification.Service
	resources      *resource.Service
	metricsManager *metrics.Manager
	logger         *logrus.Logger
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(
	config *ServerConfig,
	store storage.Store,
	notifications *notification.Service,
	resources *resource.Service,
	metricsManager *metrics.Manager,
) (*HTTPServer, error) {

	server := &HTTPServer{
		config:         config,
		storage:        store,
		notifications:  notifications,
		resources:      resources,
		metricsManager: metricsManager,
		logger:         utils.GetLogger(),
	}

	server.setupRouter()

	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      server.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return server, nil
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	// Middleware
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	if s.metricsManager != nil {
		s.router.Use(s.metricsMiddleware)
	}

	// API routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Health check endpoint
	if s.config.EnableHealth {
		api.HandleFunc("/health", s.healthHandler).Methods("GET")
		api.HandleFunc("/health/detailed", s.detailedHealthHandler).Methods("GET")
	}

	// Metrics endpoint
	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler())
		api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	}

	// Notification endpoints
	api.HandleFunc("/notifications", s.listNotificationsHandler).Methods("GET")
	api.HandleFunc("/notifications", s.createNotificationHandler).Methods("POST")
	api.HandleFunc("/notifications/read-all", s.markAllReadHandler).Methods("POST")
	api.HandleFunc("/notifications/{id}/read", s.markReadHandler).Methods("POST")
	api.HandleFunc("/notifications/archive", s.archiveHandler).Methods("GET")

	// Notification settings endpoints
	api.HandleFunc("/settings", s.getSettingsHandler).Methods("GET")
	api.HandleFunc("/settings", s.updateSettingsHandler).Methods("PUT")

	// Convenience alert endpoints
	api.HandleFunc("/alerts/emergency", s.emergencyAlertHandler).Methods("POST")
	api.HandleFunc("/alerts/resource", s.resourceAlertHandler).Methods("POST")
	api.HandleFunc("/alerts/appointment", s.appointmentReminderHandler).Methods("POST")
	api.HandleFunc("/alerts/insight", s.aiInsightHandler).Methods("POST")

	// Resource ledger endpoints
	api.HandleFunc("/resources", s.listResourcesHandler).Methods("GET")
	api.HandleFunc("/resources", s.updateResourceHandler).Methods("POST")
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	// Prime metrics so they appear on the first scrape
	if s.metricsManager != nil {
		s.updateHealthMetrics()
		go s.systemMetricsUpdater()
	}

	errChan := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
			errChan <- err
		}
	}()

	// Catch immediate binding errors
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// updateHealthMetrics refreshes the system and component health gauges
func (s *HTTPServer) updateHealthMetrics() {
	s.metricsManager.UpdateSystemMetrics()
	prom := s.metricsManager.GetPrometheusMetrics()

	if s.storage != nil {
		prom.UpdateComponentHealth("storage", s.storage.GetHealth().Healthy)
	}
	if s.notifications != nil {
		prom.UpdateComponentHealth("notification", s.notifications.GetHealth().Healthy)
		prom.UpdateUnreadNotifications(len(s.notifications.UnreadNotifications()))
	}
	if s.resources != nil {
		prom.UpdateComponentHealth("resource", s.resources.GetHealth().Healthy)
		stats := s.resources.GetStats()
		prom.UpdateResourceRows(stats.TotalRows, stats.UrgentRows)
	}
}

// systemMetricsUpdater updates system metrics periodically
func (s *HTTPServer) systemMetricsUpdater() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.updateHealthMetrics()
	}
}

// Handler returns the configured router
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop() error {
	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// Health Handlers

// healthHandler returns basic health status
func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		"version":         s.config.Version,
		"metrics_enabled": s.config.EnableMetrics,
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// detailedHealthHandler returns detailed health status
func (s *HTTPServer) detailedHealthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   s.config.Version,
		"components": map[string]interface{}{
			"storage":      s.storage.GetHealth(),
			"notification": s.notifications.GetHealth().Healthy,
			"resource":     s.resources.GetHealth().Healthy,
		},
	}

	s.writeJSON(w, http.StatusOK, health)
}

// statsHandler returns application statistics
func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	storageStats, err := s.storage.GetStats()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve storage stats", err)
		return
	}

	stats := map[string]interface{}{
		"timestamp":       time.Now(),
		"storage":         storageStats,
		"notification":    s.notifications.GetStats(),
		"resource":        s.resources.GetStats(),
		"metrics_enabled": s.config.EnableMetrics,
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// Notification Handlers

// listNotificationsHandler returns the live notification list, newest first
func (s *HTTPServer) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	notifications := s.notifications.Notifications()

	unread := 0
	for _, n := range notifications {
		if !n.IsRead {
			unread++
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"total":         len(notifications),
		"unread":        unread,
	})
}

// createNotificationHandler creates a notification from a raw input payload
func (s *HTTPServer) createNotificationHandler(w http.ResponseWriter, r *http.Request) {
	var input models.NotificationInput

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	n, err := s.notifications.CreateNotification(r.Context(), input)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Failed to create notification", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, n)
}

// markReadHandler marks a single notification as read
func (s *HTTPServer) markReadHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	s.notifications.MarkAsRead(r.Context(), id)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":         "Notification marked as read",
		"notification_id": id,
	})
}

// markAllReadHandler marks every notification as read
func (s *HTTPServer) markAllReadHandler(w http.ResponseWriter, r *http.Request) {
	s.notifications.MarkAllAsRead(r.Context())

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "All notifications marked as read",
	})
}

// archiveHandler lists archived notifications from storage
func (s *HTTPServer) archiveHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil {
			offset = o
		}
	}

	notifications, err := s.storage.GetNotifications(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve archive", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"limit":         limit,
		"offset":        offset,
		"total":         len(notifications),
	})
}

// Settings Handlers

// getSettingsHandler returns the current notification settings
func (s *HTTPServer) getSettingsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.notifications.Settings())
}

// updateSettingsHandler applies a partial settings update
func (s *HTTPServer) updateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var patch models.SettingsPatch

	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	merged := s.notifications.UpdateSettings(r.Context(), patch)
	s.writeJSON(w, http.StatusOK, merged)
}

// Alert Handlers

// emergencyAlertHandler creates a critical emergency notification
func (s *HTTPServer) emergencyAlertHandler(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Message  string `json:"message"`
		Location string `json:"location"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if request.Message == "" {
		s.writeError(w, http.StatusBadRequest, "Message is required", nil)
		return
	}

	n, err := s.notifications.CreateEmergencyAlert(r.Context(), request.Message, request.Location)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to create emergency alert", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, n)
}

// resourceAlertHandler creates a resource shortage notification
func (s *HTTPServer) resourceAlertHandler(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Resource string `json:"resource"`
		Status   string `json:"status"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if request.Resource == "" {
		s.writeError(w, http.StatusBadRequest, "Resource is required", nil)
		return
	}

	n, err := s.notifications.CreateResourceAlert(r.Context(), request.Resource, request.Status)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to create resource alert", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, n)
}

// appointmentReminderHandler creates an appointment reminder notification
func (s *HTTPServer) appointmentReminderHandler(w http.ResponseWriter, r *http.Request) {
	var request struct {
		PatientName string `json:"patient_name"`
		Time        string `json:"time"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if request.PatientName == "" {
		s.writeError(w, http.StatusBadRequest, "Patient name is required", nil)
		return
	}

	n, err := s.notifications.CreateAppointmentReminder(r.Context(), request.PatientName, request.Time)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to create appointment reminder", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, n)
}

// aiInsightHandler creates an AI insight notification
func (s *HTTPServer) aiInsightHandler(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Insight    string `json:"insight"`
		Confidence int    `json:"confidence"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if request.Insight == "" {
		s.writeError(w, http.StatusBadRequest, "Insight is required", nil)
		return
	}

	n, err := s.notifications.CreateAIInsight(r.Context(), request.Insight, request.Confidence)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to create AI insight", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, n)
}

// Resource Handlers

// listResourcesHandler returns the resource ledger with rendered totals
func (s *HTTPServer) listResourcesHandler(w http.ResponseWriter, r *http.Request) {
	items := s.resources.Resources()

	rows := make([]map[string]interface{}, len(items))
	for i, item := range items {
		rows[i] = resourceRow(item)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"resources": rows,
		"total":     len(rows),
	})
}

// updateResourceHandler applies an administrative stock update. When the
// resulting row is urgent a resource shortage alert is raised as well.
func (s *HTTPServer) updateResourceHandler(w http.ResponseWriter, r *http.Request) {
	var update models.ResourceUpdate

	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	row, err := s.resources.AddOrUpdateResource(r.Context(), update)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Failed to update resource", err)
		return
	}

	if row.Status == models.StatusUrgent {
		resourceName := fmt.Sprintf("%s at %s", row.Resource, row.Hospital)
		if _, err := s.notifications.CreateResourceAlert(r.Context(), resourceName, string(row.Status)); err != nil {
			s.logger.WithError(err).Warn("Failed to raise resource shortage alert")
		}
	}

	s.writeJSON(w, http.StatusOK, resourceRow(row))
}

// resourceRow renders a ledger row for the API, including the
// denormalized total string.
func resourceRow(item *models.ResourceItem) map[string]interface{} {
	return map[string]interface{}{
		"id":           item.ID,
		"hospital":     item.Hospital,
		"resource":     item.Resource,
		"status":       item.Status,
		"progress":     item.Progress,
		"available":    item.Available,
		"capacity":     item.Capacity,
		"total":        item.Total(),
		"created_date": item.CreatedDate,
		"due_date":     item.DueDate,
		"priority":     item.Priority,
	}
}

// Utility Methods

// writeJSON writes a JSON response
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string, err error) {
	errorResponse := map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": time.Now(),
	}

	if err != nil {
		errorResponse["details"] = err.Error()
		s.logger.WithFields(logrus.Fields{
			"status":  status,
			"message": message,
			"error":   err,
		}).Error("HTTP error")
	}

	s.writeJSON(w, status, errorResponse)
}
