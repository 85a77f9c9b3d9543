package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"fleetnav/engine"
	"fleetnav/store"
)

type Handlers struct {
	engine   *engine.Engine
	db       *store.DB
	sessions *sessions.CookieStore
	eventHub *EventHub
	limiter  *rate.Limiter
	checks   []HealthCheck
}

// HealthCheck reports one dependency's state on /api/health.
type HealthCheck struct {
	Name string
	OK   func() bool
}

// NewRouter builds the HTTP API. The returned func stops the SSE hub.
func NewRouter(eng *engine.Engine, db *store.DB, checks ...HealthCheck) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	web := eng.AppConfig().Web
	h := &Handlers{
		engine:   eng,
		db:       db,
		sessions: newSessionStore(web.SessionSecret),
		eventHub: hub,
		limiter:  newLimiter(web.RateLimit, web.RateBurst),
		checks:   checks,
	}

	h.ensureDefaultOperator(db)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// SSE
	r.Get("/events", hub.SSEHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealthCheck)
		r.Get("/graph", h.apiGraph)
		r.Get("/graph/path", h.apiGraphPath)
		r.Get("/chargers", h.apiChargers)
		r.Get("/robots", h.apiListRobots)
		r.Get("/robots/{id}", h.apiGetRobot)
		r.Get("/occupancy", h.apiOccupancy)
		r.Get("/reservations", h.apiReservations)
		r.Get("/events", h.apiListEvents)
		r.Get("/tasks", h.apiListTasks)

		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)

		// Commands
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Use(h.rateLimit)
			r.Post("/robots", h.apiCreateRobot)
			r.Post("/robots/{id}/task", h.apiAssignTask)
			r.Post("/robots/{id}/charge", h.apiSetCharging)
		})
	})

	stopFn := func() {
		hub.Stop()
	}

	return otelhttp.NewHandler(r, "fleetnav"), stopFn
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (h *Handlers) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			h.jsonError(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
