// Package api exposes the HTTP surface around the routing engine: account
// creation, login, transcript and online-user queries, file download, and
// the WebSocket entry point.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"parley/internal/account"
	"parley/internal/auth"
	"parley/internal/blob"
	"parley/internal/config"
	"parley/internal/history"
	"parley/internal/presence"
	"parley/internal/router"
	"parley/internal/ws"
	"parley/pkg/wire"
)

// Server is pure HTTP plumbing: request parsing, token checks, and JSON
// serialization. All chat semantics live behind it.
type Server struct {
	cfg       *config.Config
	accounts  *account.Store
	tokens    *auth.Manager
	histories *history.Store
	blobs     *blob.Manager
	registry  *ws.Registry
	notifier  *presence.Notifier
	router    *router.Router
	mux       *http.ServeMux
}

// NewServer wires the HTTP surface to the engine components.
func NewServer(cfg *config.Config, accounts *account.Store, tokens *auth.Manager, histories *history.Store, blobs *blob.Manager, registry *ws.Registry, notifier *presence.Notifier, messageRouter *router.Router) *Server {
	s := &Server{
		cfg:       cfg,
		accounts:  accounts,
		tokens:    tokens,
		histories: histories,
		blobs:     blobs,
		registry:  registry,
		notifier:  notifier,
		router:    messageRouter,
		mux:       http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.Handle("/signup", s.corsMiddleware(http.HandlerFunc(s.handleSignup)))
	s.mux.Handle("/login", s.corsMiddleware(http.HandlerFunc(s.handleLogin)))
	s.mux.Handle("/history", s.corsMiddleware(http.HandlerFunc(s.handleHistory)))
	s.mux.Handle("/online_users", s.corsMiddleware(http.HandlerFunc(s.handleOnlineUsers)))
	s.mux.Handle("/download/", s.corsMiddleware(http.HandlerFunc(s.handleDownload)))
	s.mux.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.accounts.Create(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, account.ErrUserExists) {
			s.sendError(w, account.ErrUserExists.Error(), http.StatusBadRequest)
			return
		}
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]string{
		"type":    "success",
		"message": "registration successful",
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.accounts.Authenticate(r.Context(), req.Username, req.Password); err != nil {
		s.sendError(w, account.ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	}

	token, err := s.tokens.Issue(req.Username)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"username": req.Username,
			"error":    err,
		}).Error("Token issuance failed")
		s.sendError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]string{
		"type":  "login",
		"token": token,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"type":     "history",
		"messages": s.histories.Get(identity),
	})
}

func (s *Server) handleOnlineUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	users := lo.Map(s.registry.Enumerate(), func(entry ws.Entry, _ int) string {
		return entry.Identity
	})

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"type":  "online_users",
		"users": users,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	fileID := strings.TrimPrefix(r.URL.Path, "/download/")
	if fileID == "" || strings.Contains(fileID, "/") {
		s.sendError(w, "Invalid file id", http.StatusBadRequest)
		return
	}

	data, meta, err := s.blobs.Fetch(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			s.sendError(w, blob.ErrNotFound.Error(), http.StatusNotFound)
			return
		}
		logrus.WithFields(logrus.Fields{
			"file_id": fileID,
			"error":   err,
		}).Error("Blob fetch failed")
		s.sendError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+meta.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// authenticate resolves the session token from the query string or the
// Authorization header. On failure it writes the 401 response itself.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		s.sendError(w, "Invalid token", http.StatusUnauthorized)
		return "", false
	}

	identity, err := s.tokens.Verify(token)
	if err != nil {
		s.sendError(w, "Invalid token", http.StatusUnauthorized)
		return "", false
	}
	return identity, true
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithFields(logrus.Fields{"error": err}).Error("Response encoding failed")
	}
}

// sendError writes the original wire-style error envelope.
func (s *Server) sendError(w http.ResponseWriter, message string, status int) {
	s.sendJSON(w, status, wire.ErrorFrame{Type: wire.TypeError, Message: message})
}

// engineContext is the base context for session goroutines. Request contexts
// cannot be used: they are canceled as soon as the upgrade handler returns.
func (s *Server) engineContext() context.Context {
	return context.Background()
}
