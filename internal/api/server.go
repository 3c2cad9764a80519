package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/config"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/metrics"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/orchestrator"
)

// Runner executes one crawl.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) crawler.Result
}

// Quota resolves limits and settles credits.
type Quota interface {
	crawler.QuotaGate
	Overage(tenant crawler.Tenant, added int) int
	Credit(ctx context.Context, userID string, amount int) (int, error)
}

// PlaceResolver turns a store URL into a place id.
type PlaceResolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Runner    Runner
	Directory crawler.StoreDirectory
	Sink      crawler.PersistenceSink
	Quota     Quota
	Places    PlaceResolver
	Clock     crawler.Clock
}

// Server wires HTTP handlers to the crawl engine.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
}

const userHeader = "X-User-ID"

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{deps: deps, cfg: cfg, logger: logger.Named("api")}

	timeout := time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 6 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(metrics.Middleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Use(tenantMiddleware)
		r.Post("/crawl", s.crawl)
		r.Post("/stores/extract", s.extractPlace)
		r.Post("/billing/credits", s.addCredits)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type crawlRequest struct {
	PlaceID string `json:"placeId"`
	StoreID string `json:"storeId"`
}

func (s *Server) crawl(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := tenantFrom(ctx)

	var body crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	body.PlaceID = strings.TrimSpace(body.PlaceID)
	body.StoreID = strings.TrimSpace(body.StoreID)
	if body.PlaceID == "" && body.StoreID == "" {
		writeError(w, http.StatusBadRequest, "placeId or storeId required")
		return
	}

	tenant, err := s.deps.Directory.GetTenant(ctx, userID)
	if err != nil {
		s.writeLookupError(w, err, "tenant not found")
		return
	}

	req := orchestrator.Request{PlaceID: body.PlaceID, UserID: userID}
	if body.StoreID != "" {
		store, err := s.deps.Directory.GetStore(ctx, userID, body.StoreID)
		if err != nil {
			s.writeLookupError(w, err, "store not found")
			return
		}
		// The checkpoint belongs to the store's place; crawling another place
		// under it would skip that place's older reviews.
		if req.PlaceID != "" && req.PlaceID != store.PlaceID {
			writeError(w, http.StatusBadRequest, "placeId does not match store")
			return
		}
		storeID := store.ID
		req.StoreID = &storeID
		req.Since = store.LastCrawledAt
		req.PlaceID = store.PlaceID
	}

	limits, err := s.deps.Quota.Limits(ctx, tenant)
	if errors.Is(err, crawler.ErrQuotaExhausted) {
		writeError(w, http.StatusPaymentRequired, "review quota exhausted")
		return
	}
	if err != nil {
		s.logger.Error("resolve quota", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "quota unavailable")
		return
	}
	req.MaxReviews = limits.MaxReviews
	req.DayWindows = limits.DayWindows

	result := s.deps.Runner.Run(ctx, req)

	// Settle with a context that survives a client disconnect.
	settle := context.WithoutCancel(ctx)
	if req.StoreID != nil {
		if err := s.deps.Sink.UpdateCheckpoint(settle, *req.StoreID, s.deps.Clock.Now()); err != nil {
			s.logger.Warn("advance checkpoint", zap.String("store_id", *req.StoreID), zap.Error(err))
		}
	}
	if over := s.deps.Quota.Overage(tenant, result.Count); over > 0 {
		if _, err := s.deps.Quota.Debit(settle, userID, over); err != nil {
			s.logger.Warn("debit overage", zap.String("user_id", userID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, result)
}

type extractRequest struct {
	URL string `json:"url"`
}

func (s *Server) extractPlace(w http.ResponseWriter, r *http.Request) {
	var body extractRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.URL) == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	placeID, err := s.deps.Places.Resolve(r.Context(), body.URL)
	if err != nil {
		s.logger.Info("place id not resolved", zap.String("url", body.URL), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, "no place id found in url")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"placeId": placeID})
}

type creditRequest struct {
	Amount int `json:"amount"`
}

func (s *Server) addCredits(w http.ResponseWriter, r *http.Request) {
	var body creditRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "positive amount required")
		return
	}
	balance, err := s.deps.Quota.Credit(r.Context(), tenantFrom(r.Context()), body.Amount)
	if err != nil {
		s.writeLookupError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"extraCredits": balance})
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error, notFoundMsg string) {
	if errors.Is(err, crawler.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	s.logger.Error("lookup failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

type requestIDKey struct{}

type tenantKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(userHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+userHeader)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey{}, userID)))
	})
}

func tenantFrom(ctx context.Context) string {
	id, _ := ctx.Value(tenantKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
