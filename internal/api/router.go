package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/handlers"
	custommiddleware "github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/middleware"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/config"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/service"
)

// Services bundles the service-layer dependencies the router wires into
// handlers.
type Services struct {
	System     *service.SystemService
	TreatyRule *service.TreatyRuleService
	Statement  *service.StatementService
	Dividend   *service.DividendService
	Reclaim    *service.ReclaimService
	Form       *service.FormService
	Profile    *service.ProfileService
}

// NewRouter creates and configures the HTTP router
func NewRouter(svc Services, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace, no user identity required
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svc.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		// Treaty-rule namespace: reference data, shared across users
		r.Route("/treaty-rule", func(r chi.Router) {
			ruleHandler := handlers.NewTreatyRuleHandler(svc.TreatyRule)
			r.Get("/", ruleHandler.ListRules)
			r.Post("/", ruleHandler.CreateRule)
			r.Get("/resolve", ruleHandler.ResolveRule)
		})

		// Everything below acts on a specific user's data
		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.RequireUser)

			r.Route("/statement", func(r chi.Router) {
				statementHandler := handlers.NewStatementHandler(svc.Statement)
				r.Get("/", statementHandler.ListStatements)
				r.Post("/", statementHandler.CreateStatement)
				r.Route("/{uuid}", func(r chi.Router) {
					r.Use(custommiddleware.ValidateUUIDMiddleware)
					r.Get("/", statementHandler.GetStatement)
					r.Post("/transition", statementHandler.TransitionStatement)
					r.Post("/parse", statementHandler.ParseStatement)
					r.Post("/parsed", statementHandler.ApplyParsed)
				})
			})

			r.Route("/dividend", func(r chi.Router) {
				dividendHandler := handlers.NewDividendHandler(svc.Dividend)
				r.Get("/", dividendHandler.ListDividends)
				r.Post("/", dividendHandler.CreateDividend)
				r.Route("/{uuid}", func(r chi.Router) {
					r.Use(custommiddleware.ValidateUUIDMiddleware)
					r.Get("/", dividendHandler.GetDividend)
					r.Delete("/", dividendHandler.DeleteDividend)
				})
			})

			r.Route("/calculation", func(r chi.Router) {
				calculationHandler := handlers.NewCalculationHandler(svc.Reclaim, svc.Dividend, svc.Profile)
				r.Post("/user", calculationHandler.CalculateUser)
				r.Route("/dividend/{uuid}", func(r chi.Router) {
					r.Use(custommiddleware.ValidateUUIDMiddleware)
					r.Post("/", calculationHandler.CalculateDividend)
				})
			})

			r.Route("/form", func(r chi.Router) {
				formHandler := handlers.NewFormHandler(svc.Form)
				r.Get("/", formHandler.ListForms)
				r.Post("/", formHandler.GenerateForm)
				r.Route("/{uuid}", func(r chi.Router) {
					r.Use(custommiddleware.ValidateUUIDMiddleware)
					r.Get("/", formHandler.GetForm)
					r.Get("/download", formHandler.DownloadForm)
					r.Post("/regenerate", formHandler.RegenerateForm)
					r.Delete("/", formHandler.DeleteForm)
				})
			})

			r.Route("/profile", func(r chi.Router) {
				profileHandler := handlers.NewProfileHandler(svc.Profile)
				r.Get("/", profileHandler.GetProfile)
				r.Put("/", profileHandler.UpsertProfile)
			})
		})
	})

	return r
}
