package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"sunny/internal/api"
	"sunny/internal/config"
	"sunny/internal/logging"
	"sunny/internal/services"
	"sunny/internal/sessions"
)

type apiServer struct {
	bind       string
	logger     *slog.Logger
	daemon     *Daemon
	sessionSvc *api.SessionService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:       bind,
		logger:     logger,
		daemon:     d,
		sessionSvc: api.NewSessionService(d.store),
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.protect(token, srv.handleStatus))
	mux.HandleFunc("/api/sessions", srv.protect(token, srv.handleSessions))
	mux.HandleFunc("/api/sessions/", srv.protect(token, srv.handleSession))
	mux.HandleFunc("/api/memory", srv.protect(token, srv.handleMemory))
	mux.HandleFunc("/api/notify/test", srv.protect(token, srv.handleTestNotify))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listen address, useful when binding port 0.
func (s *apiServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// protect wraps a handler with bearer authentication and request correlation.
func (s *apiServer) protect(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				s.writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		ctx := services.WithRequestID(r.Context(), uuid.NewString())
		next(w, r.WithContext(ctx))
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		SessionDBPath: status.SessionDBPath,
		LockFilePath:  status.LockFilePath,
		Workflow:      api.FromStatusSummary(status.Workflow),
	})
}

func (s *apiServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listSessions(w, r)
	case http.MethodPost:
		s.createSession(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listSessions(w http.ResponseWriter, r *http.Request) {
	var statuses []sessions.Status
	for _, value := range r.URL.Query()["status"] {
		parsed, ok := sessions.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, parsed)
	}
	listed, err := s.sessionSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionListResponse{Sessions: listed})
}

func (s *apiServer) createSession(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := s.daemon.CreateSession(r.Context(), req.MeetingURL, req.RecipientEmail, req.SendEmail)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.SessionResponse{Session: api.FromSession(session)})
}

func (s *apiServer) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.describeSession(w, r, id)
	case action == "summary" && r.Method == http.MethodGet:
		s.sessionSummary(w, r, id)
	case action == "report" && r.Method == http.MethodGet:
		s.sessionReport(w, r, id)
	case action == "cancel" && r.Method == http.MethodPost:
		s.cancelSession(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) describeSession(w http.ResponseWriter, r *http.Request, id int64) {
	session, err := s.sessionSvc.Describe(r.Context(), id)
	if err != nil || session == nil {
		s.writeSessionError(w, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: *session})
}

func (s *apiServer) sessionSummary(w http.ResponseWriter, r *http.Request, id int64) {
	session, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeSessionError(w, id, err)
		return
	}
	if strings.TrimSpace(session.SummaryJSON) == "" {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("session %d has no summary yet", id))
		return
	}
	payload := api.SummaryResponse{SessionID: id, Summary: json.RawMessage(session.SummaryJSON)}
	if session.AnalysisJSON != "" {
		payload.Analysis = json.RawMessage(session.AnalysisJSON)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) sessionReport(w http.ResponseWriter, r *http.Request, id int64) {
	session, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeSessionError(w, id, err)
		return
	}
	if strings.TrimSpace(session.ReportFile) == "" {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("session %d has no report yet", id))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("meeting_report_%d.docx", id)))
	http.ServeFile(w, r, session.ReportFile)
}

func (s *apiServer) cancelSession(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.daemon.CancelSession(r.Context(), id); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("session %d not found", id))
			return
		}
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancel requested"})
}

func (s *apiServer) handleMemory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	matches, err := s.sessionSvc.SearchMemory(r.Context(), query, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.MemorySearchResponse{Query: query, Matches: matches})
}

func (s *apiServer) handleTestNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sent, detail, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("%s: %v", detail, err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.NotifyTestResponse{Sent: sent, Detail: detail})
}

func (s *apiServer) writeSessionError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, sessions.ErrNotFound) || err == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("session %d not found", id))
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
