// Package api routes the operator HTTP surface (spec.md §6 "Operator
// API"): engine enable/disable, ATC clearances, the logbook, the
// learning and tuning stores, the advisor, and the broadcast WebSocket.
// Grounded on Asgard's internal/api/router.go: chi.NewRouter with the
// standard middleware stack and cors.Handler, routes nested under
// r.Route, protected sub-routers carrying a RequireAuth middleware.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/windward/autoflight/internal/advisor"
	"github.com/windward/autoflight/internal/atc"
	"github.com/windward/autoflight/internal/auth"
	"github.com/windward/autoflight/internal/broadcast"
	"github.com/windward/autoflight/internal/evaluator"
	"github.com/windward/autoflight/internal/learning"
	"github.com/windward/autoflight/internal/logbook"
	"github.com/windward/autoflight/internal/tuning"
)

// NewRouter assembles the full operator API. enableAdvisor and
// enableBroadcast gate the advisor query endpoint and the broadcast
// WebSocket respectively, per the deployer's config flags.
func NewRouter(
	authSvc *auth.Service,
	eval *evaluator.Evaluator,
	atcCtrl *atc.Controller,
	logbookStore *logbook.Store,
	learnStore *learning.Store,
	tuningStore *tuning.Store,
	advisorClient *advisor.Client,
	streamer *broadcast.Streamer,
	enableAdvisor bool,
	enableBroadcast bool,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authHandler := NewAuthHandler(authSvc)
	engineHandler := NewEngineHandler(eval)
	atcHandler := NewATCHandler(atcCtrl)
	logbookHandler := NewLogbookHandler(logbookStore)
	learningHandler := NewLearningHandler(learnStore, logbookStore, tuningStore)
	tuningHandler := NewTuningHandler(tuningStore)
	advisorHandler := NewAdvisorHandler(advisorClient, tuningStore, learnStore)

	requireAuth := RequireAuth(authSvc)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/auth/login", authHandler.Login)

		r.Route("/engine", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/status", engineHandler.Status)
			r.Post("/enable", engineHandler.Enable)
			r.Post("/disable", engineHandler.Disable)
			r.Post("/cruise-altitude", engineHandler.SetCruiseAltitude)
			r.Post("/request-takeoff", engineHandler.RequestTakeoff)
		})

		r.Route("/atc", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/status", atcHandler.Status)
			r.Post("/taxi", atcHandler.RequestTaxi)
			r.Post("/takeoff-clearance/request", atcHandler.RequestTakeoffClearance)
			r.Post("/takeoff-clearance/issue", atcHandler.IssueTakeoffClearance)
			r.Post("/deactivate", atcHandler.Deactivate)
		})

		r.Route("/logbook", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/recent", logbookHandler.Recent)
		})

		r.Route("/learning", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", learningHandler.List)
			r.Post("/reset", learningHandler.Reset)
		})

		r.Route("/tuning", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", tuningHandler.Get)
			r.Post("/", tuningHandler.Set)
		})

		if enableAdvisor {
			r.Route("/advisor", func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/query", advisorHandler.Query)
			})
		}
	})

	if enableBroadcast {
		r.Route("/ws", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/broadcast", streamer.HandleWebSocket)
		})
	}

	return r
}
