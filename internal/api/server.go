// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"querydesk/internal/common/logger"
	"querydesk/internal/common/observability"
	"querydesk/internal/router"
)

// QueryRequest is the body of POST /api/query. UserID is the requester's
// email address; its domain selects the organization.
type QueryRequest struct {
	UserID string `json:"userId"`
	Query  string `json:"query"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// QueryRouter is the routing surface the HTTP layer needs.
type QueryRouter interface {
	Process(ctx context.Context, userID, query string) (*router.Response, error)
}

// DirectoryHealth reports how many organizations are loaded.
type DirectoryHealth interface {
	Stats() (organizations int, refreshedAt time.Time)
}

// Server exposes the query workflow over HTTP.
type Server struct {
	router    QueryRouter
	directory DirectoryHealth
	timeout   time.Duration
	obs       *observability.Observability
	log       logger.Logger
}

func NewServer(r QueryRouter, directory DirectoryHealth, timeout time.Duration, obs *observability.Observability, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		router:    r,
		directory: directory,
		timeout:   timeout,
		obs:       obs,
		log:       log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	return mux
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.NewString()

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", RequestID: requestID})
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Query = strings.TrimSpace(req.Query)
	if req.UserID == "" || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId and query are required", RequestID: requestID})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	started := time.Now()
	resp, err := s.router.Process(ctx, req.UserID, req.Query)
	if err != nil {
		s.log.Error("query processing failed", map[string]interface{}{
			"request_id": requestID,
			"user":       req.UserID,
			"error":      err.Error(),
		})
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "query processing failed", RequestID: requestID})
		return
	}

	if s.obs != nil {
		s.obs.RecordQueryProcessed(ctx, resp.State)
		s.obs.RecordQueryDuration(ctx, time.Since(started), resp.State)
	}
	s.log.Info("query processed", map[string]interface{}{
		"request_id": requestID,
		"user":       req.UserID,
		"state":      resp.State,
		"duration":   time.Since(started).String(),
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	organizations := 0
	var refreshedAt time.Time
	if s.directory != nil {
		organizations, refreshedAt = s.directory.Stats()
	}
	status := "ready"
	code := http.StatusOK
	if organizations == 0 {
		status = "not ready"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":        status,
		"organizations": organizations,
		"refreshed_at":  refreshedAt.Format(time.RFC3339),
		"time":          time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
