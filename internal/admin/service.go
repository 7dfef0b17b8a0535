package admin

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/machine-telemetry-qa-platform/internal/auth"
	"github.com/machine-telemetry-qa-platform/internal/database"
	"github.com/machine-telemetry-qa-platform/internal/queue"
)

// Service provides operational endpoints: authentication, store statistics,
// dead letter queue management, retention settings and system health.
type Service struct {
	db        *database.Repository
	snapshots *database.SnapshotRepository
	answers   *database.AnswerRepository
	queue     *queue.NATSSnapshotQueue
	userStore auth.UserStore
	jwt       *auth.JWTManager

	mu        sync.RWMutex
	retention *RetentionSettings
}

// NewService creates a new admin service
func NewService(db *database.Repository, snapshots *database.SnapshotRepository, answers *database.AnswerRepository, q *queue.NATSSnapshotQueue, jwtManager *auth.JWTManager) *Service {
	userStore := auth.NewInMemoryUserStore()
	// Initialize default users from environment or defaults
	if err := auth.InitializeDefaultUsers(userStore); err != nil {
		// Users can still be created via AUTH_USERS on restart
		log.Printf("[Admin] Failed to initialize default users: %v", err)
	}

	return &Service{
		db:        db,
		snapshots: snapshots,
		answers:   answers,
		queue:     q,
		userStore: userStore,
		jwt:       jwtManager,
		retention: &RetentionSettings{
			SnapshotRetentionDays: 30,
			AnswerRetentionDays:   90,
			UpdatedAt:             time.Now(),
			UpdatedBy:             "system",
		},
	}
}

// RegisterRoutes registers admin API routes
func (s *Service) RegisterRoutes(router *mux.Router) {
	s.RegisterAuthRoutes(router)

	adminRouter := router.PathPrefix("/api/v1/admin").Subrouter()
	adminRouter.Use(s.requireAdmin)

	// Store statistics
	adminRouter.HandleFunc("/store/stats", s.getStoreStats).Methods("GET")

	// Answer audit log
	adminRouter.HandleFunc("/answers", s.listRecentAnswers).Methods("GET")

	// Dead letter queue
	adminRouter.HandleFunc("/dlq", s.listDLQMessages).Methods("GET")
	adminRouter.HandleFunc("/dlq/{id}/republish", s.republishDLQMessage).Methods("POST")

	// Retention settings
	adminRouter.HandleFunc("/retention", s.getRetention).Methods("GET")
	adminRouter.HandleFunc("/retention", s.updateRetention).Methods("PUT")

	// System health
	adminRouter.HandleFunc("/health", s.getSystemHealth).Methods("GET")
}

// requireAdmin rejects requests without a valid admin bearer token
func (s *Service) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.claimsFromRequest(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if claims.Role != "admin" {
			respondError(w, http.StatusForbidden, "Admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Store statistics

func (s *Service) getStoreStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.snapshots.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to query store statistics")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// Answer audit log

func (s *Service) listRecentAnswers(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	answers, err := s.answers.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to query answers")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"answers": answers})
}

// Dead letter queue

func (s *Service) listDLQMessages(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		respondError(w, http.StatusServiceUnavailable, "Queue not configured")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	messages, err := s.queue.ListDLQMessages(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list DLQ messages")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}

func (s *Service) republishDLQMessage(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		respondError(w, http.StatusServiceUnavailable, "Queue not configured")
		return
	}

	vars := mux.Vars(r)
	id := vars["id"]
	if id == "" {
		respondError(w, http.StatusBadRequest, "Message ID is required")
		return
	}

	if err := s.queue.RepublishFromDLQ(id); err != nil {
		respondError(w, http.StatusNotFound, "Failed to republish message")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":     "republished",
		"message_id": id,
	})
}

// Retention settings

func (s *Service) getRetention(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	settings := *s.retention
	s.mu.RUnlock()

	respondJSON(w, http.StatusOK, settings)
}

func (s *Service) updateRetention(w http.ResponseWriter, r *http.Request) {
	var req UpdateRetentionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	if req.SnapshotRetentionDays != nil {
		if *req.SnapshotRetentionDays < 1 {
			s.mu.Unlock()
			respondError(w, http.StatusBadRequest, "snapshot_retention_days must be at least 1")
			return
		}
		s.retention.SnapshotRetentionDays = *req.SnapshotRetentionDays
	}
	if req.AnswerRetentionDays != nil {
		if *req.AnswerRetentionDays < 1 {
			s.mu.Unlock()
			respondError(w, http.StatusBadRequest, "answer_retention_days must be at least 1")
			return
		}
		s.retention.AnswerRetentionDays = *req.AnswerRetentionDays
	}
	s.retention.UpdatedAt = time.Now()
	if claims, err := s.claimsFromRequest(r); err == nil {
		s.retention.UpdatedBy = claims.Username
	}
	settings := *s.retention
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, settings)
}

// Retention returns the current retention settings.
func (s *Service) Retention() RetentionSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.retention
}

// System health

func (s *Service) getSystemHealth(w http.ResponseWriter, r *http.Request) {
	health := &SystemHealth{
		Status:    "healthy",
		Timestamp: time.Now(),
	}

	// Database
	dbStart := time.Now()
	if err := s.db.HealthCheck(r.Context()); err != nil {
		health.Status = "degraded"
		health.Database = ComponentHealth{
			Status:    "unhealthy",
			Message:   err.Error(),
			LastCheck: time.Now(),
		}
	} else {
		health.Database = ComponentHealth{
			Status:    "healthy",
			Latency:   float64(time.Since(dbStart).Microseconds()) / 1000.0,
			LastCheck: time.Now(),
		}
	}

	// Queue
	if s.queue != nil {
		if info, err := s.queue.GetConsumerInfo(); err != nil {
			health.Status = "degraded"
			health.Queue = ComponentHealth{
				Status:    "unhealthy",
				Message:   err.Error(),
				LastCheck: time.Now(),
			}
		} else {
			health.Queue = ComponentHealth{
				Status:    "healthy",
				LastCheck: time.Now(),
			}
			health.QueueLag = int64(info.NumPending)
			health.AckPending = int64(info.NumAckPending)
		}
	} else {
		health.Queue = ComponentHealth{
			Status:    "disabled",
			LastCheck: time.Now(),
		}
	}

	dbStats := s.db.GetConnectionStats()
	health.DBOpenConnections = dbStats.OpenConnections
	health.DBInUse = dbStats.InUse

	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, health)
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
