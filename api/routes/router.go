package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scrapesafe/scrapesafe-backend/api/controllers"
	"github.com/scrapesafe/scrapesafe-backend/api/middleware"
	"github.com/scrapesafe/scrapesafe-backend/internal/licensing"
	"github.com/scrapesafe/scrapesafe-backend/internal/nonces"
	"github.com/scrapesafe/scrapesafe-backend/internal/sites"
	"github.com/scrapesafe/scrapesafe-backend/internal/verification"
	"github.com/scrapesafe/scrapesafe-backend/pkg/config"
	"github.com/scrapesafe/scrapesafe-backend/pkg/db"
	"github.com/scrapesafe/scrapesafe-backend/pkg/logger"
	"github.com/scrapesafe/scrapesafe-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	sitesService sites.Service,
	verificationService verification.Service,
	licensingService licensing.Service,
	noncesService nonces.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.Ping())

		r.Route("/sites", func(r chi.Router) {
			r.Post("/", controllers.RegisterSite(sitesService, logg))
			r.Route("/{siteId}", func(r chi.Router) {
				r.Get("/", controllers.GetSite(sitesService, logg))
				r.Get("/well-known", controllers.SiteWellKnown(sitesService, logg))
				r.Post("/verify", controllers.VerifySite(verificationService, logg))
				r.Post("/terms", controllers.SetSiteTerms(licensingService, logg))
				r.Get("/terms", controllers.GetSiteTerms(licensingService, logg))
			})
		})

		r.Route("/licenses", func(r chi.Router) {
			r.Post("/purchase", controllers.PurchaseLicense(licensingService, logg))
			r.Post("/{licenseId}/revoke", controllers.RevokeLicense(licensingService, logg))
			r.Get("/check", controllers.CheckLicense(licensingService, logg))
			r.Post("/validate", controllers.ValidateProof(licensingService, logg))
		})

		r.Route("/nonces", func(r chi.Router) {
			r.Post("/", controllers.IssueNonce(noncesService, logg))
			r.Post("/consume", controllers.ConsumeNonce(noncesService, logg))
		})
	})

	return r
}
