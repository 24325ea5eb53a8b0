package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/broker-crm/internal/assist"
	"github.com/sells-group/broker-crm/internal/model"
	"github.com/sells-group/broker-crm/internal/settings"
	"github.com/sells-group/broker-crm/internal/store"
)

// SyncFunc triggers one orchestrator run.
type SyncFunc func(ctx context.Context) (*model.RunResult, error)

// Server exposes the dashboard API: sync triggers, deal queries, deal
// mutations, the chat assistant, and sync settings.
type Server struct {
	store     store.Store
	assistant *assist.Assistant
	state     *settings.State
	syncForms SyncFunc
	syncEmail SyncFunc
	apiToken  string
	log       *zap.Logger
}

// Options wires the server's collaborators.
type Options struct {
	Store     store.Store
	State     *settings.State
	SyncForms SyncFunc
	SyncEmail SyncFunc
	APIToken  string
}

func New(opts Options) *Server {
	return &Server{
		store:     opts.Store,
		assistant: assist.New(opts.Store),
		state:     opts.State,
		syncForms: opts.SyncForms,
		syncEmail: opts.SyncEmail,
		apiToken:  opts.APIToken,
		log:       zap.L().With(zap.String("component", "server")),
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth)

		r.Post("/sync/forms", s.handleSync("forms"))
		r.Post("/sync/email", s.handleSync("email"))

		r.Get("/deals", s.handleListDeals)
		r.Patch("/deals/{id}/status", s.handleUpdateStatus)
		r.Patch("/deals/{id}/notes", s.handleUpdateNotes)

		r.Post("/assist", s.handleAssist)

		r.Get("/settings", s.handleGetSettings)
		r.Patch("/settings", s.handlePatchSettings)
	})

	return r
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

// auth enforces the bearer API token when one is configured.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got != s.apiToken {
				writeError(w, http.StatusUnauthorized, "invalid or missing API token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSync(channel string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var run SyncFunc
		switch channel {
		case "forms":
			run = s.syncForms
		case "email":
			run = s.syncEmail
		}
		if run == nil {
			writeError(w, http.StatusServiceUnavailable, channel+" sync is not configured")
			return
		}

		res, err := run(r.Context())
		if err != nil {
			s.log.Error("sync run failed", zap.String("channel", channel), zap.Error(err))
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}

		if s.state != nil {
			if channel == "forms" {
				s.state.RecordFormsRun(res)
			} else {
				s.state.RecordEmailRun(res)
			}
			if err := s.state.Save(r.Context()); err != nil {
				s.log.Warn("failed to persist sync state", zap.Error(err))
			}
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleListDeals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.DealFilter{
		Status:   model.DealStatus(q.Get("status")),
		LoanType: model.LoanType(q.Get("loan_type")),
		Source:   q.Get("source"),
		Search:   q.Get("search"),
	}
	if v := q.Get("min_amount"); v != "" {
		filter.MinAmount, _ = strconv.ParseFloat(v, 64)
	}
	if v := q.Get("max_amount"); v != "" {
		filter.MaxAmount, _ = strconv.ParseFloat(v, 64)
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.CreatedFrom = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.CreatedTo = t
		}
	}

	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	result, err := s.store.QueryDeals(r.Context(), filter, page, pageSize)
	if err != nil {
		s.log.Error("query deals failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := model.DealStatus(req.Status)
	if !validStatus(status) {
		writeError(w, http.StatusBadRequest, "unknown status: "+req.Status)
		return
	}

	if err := s.store.UpdateStatus(r.Context(), id, status); err != nil {
		if strings.Contains(err.Error(), "deal not found") {
			writeError(w, http.StatusNotFound, "deal not found")
			return
		}
		s.log.Error("update status failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

func (s *Server) handleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.UpdateNotes(r.Context(), id, req.Notes); err != nil {
		if strings.Contains(err.Error(), "deal not found") {
			writeError(w, http.StatusNotFound, "deal not found")
			return
		}
		s.log.Error("update notes failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleAssist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.assistant.Reply(r.Context(), req.Message)
	if err != nil {
		s.log.Error("assist failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "assistant unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	if s.state == nil {
		writeError(w, http.StatusServiceUnavailable, "settings are not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.state.Snapshot())
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	if s.state == nil {
		writeError(w, http.StatusServiceUnavailable, "settings are not configured")
		return
	}

	var req struct {
		AutoSyncEnabled *bool `json:"auto_sync_enabled"`
		IntervalMinutes *int  `json:"interval_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.AutoSyncEnabled != nil {
		s.state.SetAutoSync(*req.AutoSyncEnabled)
	}
	if req.IntervalMinutes != nil {
		if *req.IntervalMinutes < 0 {
			writeError(w, http.StatusBadRequest, "interval_minutes must be >= 0")
			return
		}
		s.state.SetInterval(*req.IntervalMinutes)
	}
	if err := s.state.Save(r.Context()); err != nil {
		s.log.Error("failed to persist settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	writeJSON(w, http.StatusOK, s.state.Snapshot())
}

func validStatus(status model.DealStatus) bool {
	for _, s := range model.AllDealStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
