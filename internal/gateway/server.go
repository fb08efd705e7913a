// Package gateway exposes the approval queue over a small HTTP surface so
// remote clients (phone, scripts) can review and resolve pending requests.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hbashir/aide/internal/approval"
	"github.com/hbashir/aide/internal/executor"
	"github.com/hbashir/aide/internal/version"
)

// ApprovalService is the slice of the engine the gateway needs.
type ApprovalService interface {
	Pending() []approval.Request
	Approve(ctx context.Context, id, approver, notes string) (approval.Request, executor.Result, error)
	Reject(id, approver, reason string) (approval.Request, error)
}

// Config holds the gateway listen settings.
type Config struct {
	Host  string
	Port  int
	Token string
}

// Server wraps the HTTP listener.
type Server struct {
	cfg        Config
	approvals  ApprovalService
	httpServer *http.Server
}

// New creates a gateway server.
func New(cfg Config, approvals ApprovalService) *Server {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 18990
	}

	cfg.Host = host
	cfg.Port = port
	return &Server{cfg: cfg, approvals: approvals}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	mux := NewHandler(s.cfg.Token, s.approvals)
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("gateway listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// NewHandler builds the route table. A non-empty token gates the approval
// endpoints behind bearer auth; health and version stay open.
func NewHandler(token string, approvals ApprovalService) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"request_id": getRequestID(r),
		})
	})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"version":    version.Version,
			"request_id": getRequestID(r),
		})
	})

	mux.HandleFunc("GET /approvals", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if !authorize(w, r, token, requestID) {
			return
		}
		if approvals == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "approval service is not configured")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"pending":    approvals.Pending(),
			"request_id": requestID,
		})
	})

	mux.HandleFunc("POST /approvals/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if !authorize(w, r, token, requestID) {
			return
		}
		if approvals == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "approval service is not configured")
			return
		}

		var body struct {
			Approver string `json:"approver"`
			Notes    string `json:"notes"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		approver := strings.TrimSpace(body.Approver)
		if approver == "" {
			approver = "gateway"
		}

		id := r.PathValue("id")
		req, result, err := approvals.Approve(r.Context(), id, approver, body.Notes)
		if err != nil {
			writeApprovalError(w, requestID, id, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"request":    req,
			"result":     result,
			"request_id": requestID,
		})
	})

	mux.HandleFunc("POST /approvals/{id}/reject", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if !authorize(w, r, token, requestID) {
			return
		}
		if approvals == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "approval service is not configured")
			return
		}

		var body struct {
			Approver string `json:"approver"`
			Reason   string `json:"reason"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		approver := strings.TrimSpace(body.Approver)
		if approver == "" {
			approver = "gateway"
		}

		id := r.PathValue("id")
		req, err := approvals.Reject(id, approver, body.Reason)
		if err != nil {
			writeApprovalError(w, requestID, id, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"request":    req,
			"request_id": requestID,
		})
	})

	return mux
}

func writeApprovalError(w http.ResponseWriter, requestID, id string, err error) {
	switch {
	case errors.Is(err, approval.ErrNotFound):
		writeError(w, requestID, http.StatusNotFound, "not_found", fmt.Sprintf("approval request %s not found", id))
	case errors.Is(err, approval.ErrAlreadyProcessed):
		writeError(w, requestID, http.StatusConflict, "already_processed", fmt.Sprintf("approval request %s already processed", id))
	default:
		slog.Error("gateway approval operation failed", "request_id", requestID, "id", id, "error", err)
		writeError(w, requestID, http.StatusInternalServerError, "internal_error", "approval operation failed")
	}
}

func authorize(w http.ResponseWriter, r *http.Request, token, requestID string) bool {
	if strings.TrimSpace(token) == "" {
		return true
	}
	if !isAuthorized(r, token) {
		writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return false
	}
	return true
}

func isAuthorized(r *http.Request, expected string) bool {
	got := strings.TrimSpace(r.Header.Get("Authorization"))
	if got == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(got, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(got, prefix))
	return token == expected
}

func getRequestID(r *http.Request) string {
	rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if rid != "" {
		return rid
	}
	return uuid.NewString()
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":       code,
		"message":    message,
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
