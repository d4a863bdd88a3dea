package controllers

import (
	"context"
	"net/http"

	"github.com/scrapesafe/scrapesafe-backend/api/responses"
	"github.com/scrapesafe/scrapesafe-backend/pkg/config"
	"github.com/scrapesafe/scrapesafe-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ScrapeSafe-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the backing stores and reports per-dependency status; a
// single failing dependency flips the response to 503.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, redis pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ScrapeSafe-Env", cfg.App.Env)

		checks := map[string]pinger{
			"postgres": db,
			"redis":    redis,
		}

		status := map[string]string{}
		ready := true
		for name, dep := range checks {
			if dep == nil {
				status[name] = "not configured"
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				status[name] = "down"
				ready = false
				if logg != nil {
					ctx := logg.WithField(r.Context(), "dependency", name)
					logg.Error(ctx, "readiness check failed", err)
				}
				continue
			}
			status[name] = "ok"
		}

		if !ready {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, status)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
