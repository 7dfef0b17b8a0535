package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	appconfig "github.com/machine-telemetry-qa-platform/config"
	"github.com/machine-telemetry-qa-platform/internal/admin"
	"github.com/machine-telemetry-qa-platform/internal/ai"
	"github.com/machine-telemetry-qa-platform/internal/auth"
	"github.com/machine-telemetry-qa-platform/internal/database"
	"github.com/machine-telemetry-qa-platform/internal/metrics"
	"github.com/machine-telemetry-qa-platform/internal/models"
	"github.com/machine-telemetry-qa-platform/internal/qa"
	"github.com/machine-telemetry-qa-platform/internal/queue"
	"github.com/machine-telemetry-qa-platform/internal/server"
	"github.com/machine-telemetry-qa-platform/internal/tracing"
	"github.com/machine-telemetry-qa-platform/internal/websocket"
)

func main() {
	cfg := appconfig.Load()

	log.Printf("Starting question-answering API")

	// Tracing
	tracingConfig := tracing.DefaultConfig(cfg.Tracing.ServiceName)
	tracingConfig.OTLPEndpoint = cfg.Tracing.Endpoint
	tracingConfig.Enabled = cfg.Tracing.Enabled
	shutdownTracing, err := tracing.InitTracer(tracingConfig)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("Error shutting down tracing: %v", err)
		}
	}()

	// Database
	dbConfig := database.DefaultConnectionConfig()
	dbConfig.Host = cfg.Database.Host
	dbConfig.Port = cfg.Database.Port
	dbConfig.User = cfg.Database.User
	dbConfig.Password = cfg.Database.Password
	dbConfig.Database = cfg.Database.Database
	dbConfig.SSLMode = cfg.Database.SSLMode

	conn, err := database.NewConnection(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()
	log.Printf("Connected to database %s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	repo := database.NewRepository(conn)
	snapshots := database.NewSnapshotRepository(conn)
	answers := database.NewAnswerRepository(conn)

	// NATS is optional for the API; DLQ administration degrades without it
	var snapshotQueue *queue.NATSSnapshotQueue
	natsConfig := queue.DefaultNATSConfig()
	natsConfig.URL = cfg.NATS.URL
	if snapshotQueue, err = queue.NewNATSSnapshotQueue(natsConfig); err != nil {
		log.Printf("NATS unavailable, DLQ administration disabled: %v", err)
		snapshotQueue = nil
	} else {
		defer snapshotQueue.Close()
	}

	jwtManager := auth.NewJWTManager(os.Getenv("JWT_SECRET"), 15*time.Minute, 7*24*time.Hour)

	// Question-answering pipeline
	var generator qa.Generator
	if cfg.Engine.EnrichmentEnabled {
		generator = ai.NewMockProvider()
		log.Println("Generative enrichment enabled (mock provider)")
	}

	pipeline := qa.NewPipeline(
		qa.NewTimeRangeResolver(),
		qa.NewIntentClassifier(),
		qa.NewQueryCompiler(cfg.Engine.ResultLimit, models.QueryScope{
			Hostname: cfg.Engine.ScopeHostname,
			Username: cfg.Engine.ScopeUsername,
		}),
		snapshots,
		generator,
		qa.PipelineConfig{
			SearchTimeout:   cfg.Engine.SearchTimeout,
			GenerateTimeout: cfg.Engine.GenerateTimeout,
		},
	)

	sessionManager := ai.NewSessionManager(24 * time.Hour)

	wsHub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wsHub.Run(ctx)

	adminService := admin.NewService(repo, snapshots, answers, snapshotQueue, jwtManager)

	apiServer := NewAPIServer(pipeline, sessionManager, answers, wsHub, jwtManager, adminService, cfg)

	log.Printf("Listening on :%d", cfg.HTTP.Port)
	if err := apiServer.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// APIServer serves the question-answering HTTP API.
type APIServer struct {
	pipeline       *qa.Pipeline
	sessionManager *ai.SessionManager
	answers        *database.AnswerRepository
	wsHub          *websocket.Hub
	jwt            *auth.JWTManager
	adminService   *admin.Service
	config         *appconfig.Config
	httpServer     *server.Server
}

func NewAPIServer(pipeline *qa.Pipeline, sessionManager *ai.SessionManager, answers *database.AnswerRepository,
	wsHub *websocket.Hub, jwtManager *auth.JWTManager, adminService *admin.Service, cfg *appconfig.Config) *APIServer {
	return &APIServer{
		pipeline:       pipeline,
		sessionManager: sessionManager,
		answers:        answers,
		wsHub:          wsHub,
		jwt:            jwtManager,
		adminService:   adminService,
		config:         cfg,
	}
}

func (s *APIServer) Start() error {
	router := mux.NewRouter()

	// Question-answering API routes
	api := router.PathPrefix("/api/v1/qa").Subrouter()
	api.HandleFunc("/ask", s.handleAsk).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	api.HandleFunc("/capabilities", s.handleGetCapabilities).Methods("GET")

	// Auth and operational routes
	s.adminService.RegisterRoutes(router)

	// WebSocket endpoint for real-time updates
	wsHandler := websocket.NewHandler(s.wsHub, s.jwt)
	router.HandleFunc("/api/v1/ws/updates", wsHandler.ServeHTTP)
	router.HandleFunc("/api/v1/ws/broadcast", wsHandler.HandleBroadcast).Methods("POST")

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:5174"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := otelhttp.NewHandler(corsHandler.Handler(router), "qa-api")

	tlsConfig := &server.TLSConfig{
		Enabled:    os.Getenv("TLS_ENABLED") == "true",
		CertFile:   os.Getenv("TLS_CERT_FILE"),
		KeyFile:    os.Getenv("TLS_KEY_FILE"),
		MinVersion: os.Getenv("TLS_MIN_VERSION"),
	}

	s.httpServer = server.NewServer(":"+strconv.Itoa(s.config.HTTP.Port), handler, tlsConfig)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down server...")
		if err := s.httpServer.Shutdown(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	return s.httpServer.Start()
}

// AskRequest is one question from a client.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// AskResponse wraps the answer with session bookkeeping.
type AskResponse struct {
	Answer    models.Answer `json:"answer"`
	SessionID string        `json:"session_id,omitempty"`
}

func (s *APIServer) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}

	session := s.resolveSession(r, req.SessionID)

	// The clock is sampled once; every window computation for this question
	// sees the same "now"
	start := time.Now()
	answer := s.pipeline.Process(r.Context(), req.Question, start)
	metrics.ObserveQuestion(&answer, time.Since(start))

	if err := s.answers.Save(r.Context(), &answer); err != nil {
		log.Printf("Failed to persist answer %s: %v", answer.ID, err)
	}

	if session != nil {
		session.AddExchange(req.Question, answer)
	}

	s.broadcastAnswer(&answer)

	resp := AskResponse{Answer: answer}
	if session != nil {
		resp.SessionID = session.ID
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// resolveSession finds or creates the session for a request. Session handling
// is best effort; a nil session just means no history is kept.
func (s *APIServer) resolveSession(r *http.Request, sessionID string) *ai.Session {
	if sessionID != "" {
		if session, err := s.sessionManager.GetSession(r.Context(), sessionID); err == nil {
			return session
		}
	}

	session, err := s.sessionManager.CreateSession(r.Context(), s.userID(r))
	if err != nil {
		return nil
	}
	return session
}

// userID derives a user identity from the bearer token when one is presented
func (s *APIServer) userID(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && header[:7] == "Bearer " {
		if claims, err := s.jwt.ValidateAccessToken(header[7:]); err == nil {
			return claims.UserID
		}
	}
	return "anonymous"
}

func (s *APIServer) broadcastAnswer(answer *models.Answer) {
	s.wsHub.BroadcastToChannel("answers", map[string]interface{}{
		"answer_id":    answer.ID,
		"query":        answer.Query,
		"intent":       string(answer.Intent.Category),
		"confidence":   answer.Intent.Confidence,
		"record_count": answer.RecordCount,
		"text":         answer.NaturalText,
		"timestamp":    answer.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

func (s *APIServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessionManager.ListUserSessions(r.Context(), s.userID(r))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

func (s *APIServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessionManager.CreateSession(r.Context(), s.userID(r))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	s.respondJSON(w, http.StatusCreated, session)
}

func (s *APIServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]

	session, err := s.sessionManager.GetSession(r.Context(), sessionID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	s.respondJSON(w, http.StatusOK, session)
}

func (s *APIServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]

	if err := s.sessionManager.DeleteSession(r.Context(), sessionID); err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleGetCapabilities(w http.ResponseWriter, r *http.Request) {
	capabilities := map[string]interface{}{
		"version": "1.0.0",
		"intents": []string{
			string(models.IntentVPNStatus),
			string(models.IntentSpeedInfo),
			string(models.IntentSystemInfo),
			string(models.IntentLocationInfo),
			string(models.IntentDeviceListing),
			string(models.IntentTimeAnalysis),
			string(models.IntentDataCoverage),
			string(models.IntentGeneralStatus),
		},
		"time_expressions": []string{
			"last N minutes/hours/days", "N days/weeks/months ago",
			"at HH:MM", "today", "yesterday", "this morning",
			"this evening", "this week", "this month",
		},
	}

	s.respondJSON(w, http.StatusOK, capabilities)
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *APIServer) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *APIServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}
