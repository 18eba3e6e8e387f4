package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazz-dev/hostwatch/internal/config"
	"github.com/hazz-dev/hostwatch/internal/notify"
	"github.com/hazz-dev/hostwatch/internal/probe"
	"github.com/hazz-dev/hostwatch/internal/storage"
)

// Journal defines the transition queries the server needs.
type Journal interface {
	HostTransitions(ctx context.Context, host, limit, offset int) ([]storage.Transition, int, error)
}

// StatusSource provides the live status of every host.
type StatusSource interface {
	Snapshot() []probe.Outcome
}

// Server holds the chi router and its dependencies.
type Server struct {
	status  StatusSource
	journal Journal
	hosts   []config.Host
	router  chi.Router
	logger  *slog.Logger
}

// New creates a new Server and registers all routes.
func New(status StatusSource, journal Journal, hosts []config.Host, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		status:  status,
		journal: journal,
		hosts:   hosts,
		router:  chi.NewRouter(),
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/hosts", s.handleListHosts)
	r.Get("/api/hosts/{index}", s.handleGetHost)
	r.Get("/api/hosts/{index}/transitions", s.handleGetHostTransitions)
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// hostIndex parses the {index} URL parameter and checks it is configured.
func (s *Server) hostIndex(r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 || idx >= len(s.hosts) {
		return 0, false
	}
	return idx, true
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type hostDetail struct {
	Index   int    `json:"index"`
	Label   string `json:"label"`
	Address string `json:"address"`
	Status  string `json:"status"`
	Glyph   string `json:"glyph"`
}

func (s *Server) detail(i int, snap []probe.Outcome) hostDetail {
	o := probe.Unknown
	if i < len(snap) {
		o = snap[i]
	}
	return hostDetail{
		Index:   i,
		Label:   notify.Label(i),
		Address: s.hosts[i].Address,
		Status:  string(o),
		Glyph:   o.Glyph(),
	}
}

func (s *Server) handleListHosts(w http.ResponseWriter, r *http.Request) {
	snap := s.status.Snapshot()
	details := make([]hostDetail, 0, len(s.hosts))
	for i := range s.hosts {
		details = append(details, s.detail(i, snap))
	}
	writeJSON(w, http.StatusOK, details)
}

type hostDetailResponse struct {
	hostDetail
	RecentTransitions []storage.Transition `json:"recent_transitions"`
}

func (s *Server) handleGetHost(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.hostIndex(r)
	if !ok {
		writeError(w, http.StatusNotFound, "host not found")
		return
	}

	recent, _, err := s.journal.HostTransitions(r.Context(), idx, 10, 0)
	if err != nil {
		s.logger.Error("HostTransitions", "host", idx, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if recent == nil {
		recent = []storage.Transition{}
	}

	writeJSON(w, http.StatusOK, hostDetailResponse{
		hostDetail:        s.detail(idx, s.status.Snapshot()),
		RecentTransitions: recent,
	})
}

type transitionsResponse struct {
	Transitions []storage.Transition `json:"transitions"`
	Total       int                  `json:"total"`
}

func (s *Server) handleGetHostTransitions(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.hostIndex(r)
	if !ok {
		writeError(w, http.StatusNotFound, "host not found")
		return
	}

	const maxLimit = 1000

	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		offset = n
	}

	ts, total, err := s.journal.HostTransitions(r.Context(), idx, limit, offset)
	if err != nil {
		s.logger.Error("HostTransitions", "host", idx, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if ts == nil {
		ts = []storage.Transition{}
	}

	writeJSON(w, http.StatusOK, transitionsResponse{
		Transitions: ts,
		Total:       total,
	})
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
