// Package api provides the HTTP server for EduGuardian.
// Identity arrives in the X-User-ID header set by the upstream gateway.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/eduguardian/guardian/internal/app/progression"
	"github.com/eduguardian/guardian/internal/domain"
	"github.com/eduguardian/guardian/internal/health"
	"github.com/eduguardian/guardian/internal/infra/logger"
)

// UserHeader carries the authenticated user id.
const UserHeader = "X-User-ID"

// BadgeStats reports how many users hold each badge.
type BadgeStats interface {
	BadgeHolders(ctx context.Context) (map[string]int64, error)
}

// Options tunes the router.
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	Metrics        bool
}

// Server is the EduGuardian HTTP API server.
type Server struct {
	engine   *progression.Engine
	activity *progression.ActivityService
	ai       *progression.AIService
	badges   BadgeStats
	health   *health.Checker
	log      *logger.Logger
	opts     Options
	validate *validator.Validate
	board    singleflight.Group
}

// NewServer creates a new API server. badges and checker may be nil.
func NewServer(engine *progression.Engine, activity *progression.ActivityService, ai *progression.AIService,
	badges BadgeStats, checker *health.Checker, log *logger.Logger, opts Options) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{
		engine:   engine,
		activity: activity,
		ai:       ai,
		badges:   badges,
		health:   checker,
		log:      log.With("component", "api"),
		opts:     opts,
		validate: validator.New(),
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(s.requestLogger)
	r.Use(corsMiddleware(s.opts.CORSOrigins))

	r.Get("/health", s.handleHealth)
	if s.opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Post("/users", s.handleRegister)
	r.Get("/badges", s.handleListBadges)
	r.Get("/badges/{id}", s.handleGetBadge)
	r.Get("/leaderboard", s.handleLeaderboard)

	// Routes acting on the calling user.
	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Get("/user/profile", s.handleProfile)
		r.Get("/user/activity", s.handleListActivity)
		r.Delete("/user/activity", s.handleClearActivity)
		r.Post("/user/study-complete", s.handleStudyComplete)

		r.Post("/notes/{id}/summarize", s.handleSummarize)
		r.Post("/notes/{id}/generate-flashcards", s.handleGenerateFlashcards)
		r.Post("/notes/{id}/favorite", s.handleToggleFavorite)
	})

	// Callbacks from the notes service; the user is named in the body.
	r.Route("/events", func(r chi.Router) {
		r.Post("/note-uploaded", s.handleNoteUploaded)
		r.Post("/rating-received", s.handleRatingReceived)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

type ctxKey struct{}

// requireUser rejects requests without an X-User-ID header.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// decode reads a JSON body and runs struct validation on it.
func (s *Server) decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Invalid("body", err.Error())
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.Invalid(verrs[0].Field(), "failed "+verrs[0].Tag())
		}
		return domain.Invalid("body", err.Error())
	}
	return nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    typ,
		},
	})
}

// writeDomainError maps engine errors onto HTTP statuses. Storage details
// never leave the server.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrBadgeNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrUserExists):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrAIUnavailable):
		writeError(w, http.StatusBadGateway, "ai_unavailable", domain.ErrAIUnavailable.Error())
	case errors.Is(err, domain.ErrPersistence):
		s.log.Error("persistence failure", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "persistence_error", "unable to record study session")
	default:
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// corsMiddleware adds CORS headers. An empty origin list allows any origin.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case len(allowed) == 0:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+UserHeader)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs one line per request at a level chosen by status.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		fields := []interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		}
		switch {
		case ww.Status() >= 500:
			s.log.Error("HTTP request", fields...)
		case ww.Status() >= 400:
			s.log.Warn("HTTP request", fields...)
		default:
			s.log.Debug("HTTP request", fields...)
		}
	})
}
