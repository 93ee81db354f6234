package main

import (
	"net/http"

	"github.com/aanand-mishra/contact-form/internal/config"
	"github.com/aanand-mishra/contact-form/internal/http/handlers/contact"
	"github.com/aanand-mishra/contact-form/internal/http/middleware"
	"github.com/aanand-mishra/contact-form/internal/metrics"
	"github.com/aanand-mishra/contact-form/internal/notify"
	"github.com/aanand-mishra/contact-form/internal/storage"
	"github.com/aanand-mishra/contact-form/internal/utils/response"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRouter wires the route table:
//
//	ANY  /api/contact   submit the form (non-POST gets 405 from the handler)
//	GET  /health        liveness probe
//	GET  /metrics       Prometheus scrape endpoint
func newRouter(cfg *config.Config, archive storage.Archive, notifier notify.Notifier) http.Handler {
	router := http.NewServeMux()

	submit := contact.New(archive, notifier, contact.Options{
		OwnerAddress:  cfg.Notify.OwnerAddress,
		MaxBodyBytes:  cfg.HTTPServer.MaxBodyBytes,
		NotifyTimeout: cfg.Notify.Timeout,
	})
	router.Handle("/api/contact", metrics.Instrument("/api/contact", submit))

	router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(middleware.RequestLogging(router))
}
