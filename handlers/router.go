package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/idkrafsan/BetTracker/observability"
	"github.com/idkrafsan/BetTracker/service"
	log "github.com/sirupsen/logrus"
)

// Dependencies are the collaborators served by the router. Metrics and
// Websocket are optional.
type Dependencies struct {
	Bets        service.BetService
	Accounts    service.AccountService
	Dashboard   service.DashboardProvider
	Health      HealthChecker
	Metrics     *observability.Metrics
	Websocket   http.Handler
	CORSOrigins []string
}

// NewRouter builds the HTTP API
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Long lived, so kept out of the request timeout and latency histogram
	if deps.Websocket != nil {
		r.Method(http.MethodGet, "/ws/dashboard", deps.Websocket)
	}

	r.Group(func(r chi.Router) {
		if deps.Metrics != nil {
			r.Use(deps.Metrics.Middleware)
		}
		r.Use(chimiddleware.Timeout(30 * time.Second))

		r.Get("/health", HealthCheck(deps.Health))
		if deps.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
		}

		bets := NewBetHandler(deps.Bets)
		accounts := NewAccountHandler(deps.Accounts)
		dashboard := NewDashboardHandler(deps.Dashboard)

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/bets", func(r chi.Router) {
				r.Get("/", bets.ListBets)
				r.Post("/", bets.CreateBet)
				r.Get("/{id}", bets.GetBet)
				r.Put("/{id}", bets.EditBet)
				r.Delete("/{id}", bets.DeleteBet)
				r.Post("/{id}/delete", bets.SoftDeleteBet)
			})

			r.Route("/account", func(r chi.Router) {
				r.Get("/", accounts.GetAccount)
				r.Put("/username", accounts.SetUsername)
				r.Post("/deposit", accounts.Deposit)
				r.Post("/withdraw", accounts.Withdraw)
				r.Get("/history", accounts.BalanceHistory)
			})

			r.Get("/dashboard", dashboard.GetDashboard)
		})
	})

	return r
}

// requestLogger logs one line per request through logrus
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		entry := log.WithFields(log.Fields{
			"requestID": chimiddleware.GetReqID(r.Context()),
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"bytes":     ww.BytesWritten(),
			"duration":  time.Since(start).String(),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("HTTP request failed")
			return
		}
		entry.Debug("HTTP request")
	})
}
