package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tixswap/tixswap/internal/application/availability"
	appNegotiation "github.com/tixswap/tixswap/internal/application/negotiation"
	appNotification "github.com/tixswap/tixswap/internal/application/notification"
	appPurchase "github.com/tixswap/tixswap/internal/application/purchase"
	"github.com/tixswap/tixswap/internal/infrastructure/metrics"
	"github.com/tixswap/tixswap/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	gate            *availability.Gate
	purchaseSvc     *appPurchase.Service
	negotiationSvc  *appNegotiation.Service
	notificationSvc *appNotification.Service
	hub             *sse.Hub
	metrics         *metrics.Metrics
	jwtSecret       []byte
	requestTimeout  time.Duration
	logger          zerolog.Logger
}

// NewServer creates the HTTP server. m may be nil.
func NewServer(
	gate *availability.Gate,
	purchaseSvc *appPurchase.Service,
	negotiationSvc *appNegotiation.Service,
	notificationSvc *appNotification.Service,
	hub *sse.Hub,
	m *metrics.Metrics,
	jwtSecret string,
	requestTimeout time.Duration,
	logger zerolog.Logger,
) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Server{
		gate:            gate,
		purchaseSvc:     purchaseSvc,
		negotiationSvc:  negotiationSvc,
		notificationSvc: notificationSvc,
		hub:             hub,
		metrics:         m,
		jwtSecret:       []byte(jwtSecret),
		requestTimeout:  requestTimeout,
		logger:          logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAuth)

		// long-lived, so outside the request timeout
		r.Get("/notifications/stream", s.streamNotifications)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.requestTimeout))

			r.Route("/listings/{listingId}", func(r chi.Router) {
				r.Get("/availability", s.getAvailability)
				r.Post("/purchases", s.createPurchase)
			})

			r.Route("/purchases", func(r chi.Router) {
				r.Get("/", s.listPurchases)
				r.Get("/{purchaseId}", s.getPurchase)
				r.Get("/{purchaseId}/history", s.getPurchaseHistory)
				r.Post("/{purchaseId}/transitions", s.transitionPurchase)
			})

			r.Route("/offers", func(r chi.Router) {
				r.Post("/", s.createOffer)
				r.Get("/", s.listOffers)
				r.Get("/{offerId}", s.getOffer)
				r.Post("/{offerId}/close", s.closeOffer)
				r.Post("/{offerId}/proposals", s.submitProposal)
				r.Get("/{offerId}/proposals", s.listProposals)
				r.Post("/{offerId}/proposals/{proposalId}/accept", s.acceptProposal)
				r.Post("/{offerId}/proposals/{proposalId}/reject", s.rejectProposal)
			})

			r.Get("/notifications", s.listNotifications)
			r.Post("/notifications/{notificationId}/read", s.markNotificationRead)
		})
	})

	return r
}

// logRequests writes one log line per request and records its latency by route pattern.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(r.Method, route, strconv.Itoa(status), elapsed.Seconds())

		evt := s.logger.Info()
		if status >= http.StatusInternalServerError {
			evt = s.logger.Error()
		}
		evt.Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("http request")
	})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val := chi.URLParam(r, key)
	return uuid.Parse(val)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// callerID returns the authenticated user; requireAuth guarantees one on /v1 routes.
func callerID(r *http.Request) uuid.UUID {
	if u := authUserFromContext(r.Context()); u != nil {
		return u.UserID
	}
	return uuid.Nil
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
