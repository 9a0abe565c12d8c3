package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/pgkit/internal/httpx"
)

// Routes returns the HTTP API. Writes need a bearer token naming the actor;
// reads accept one but do not require it.
func (app *App) Routes() http.Handler {
	secret := []byte(app.config.SecretKey)
	write := httpx.Actor(secret, true)
	read := httpx.Actor(secret, false)

	mux := http.NewServeMux()
	mux.Handle("POST /records", write(httpx.Wrap(app.logger, app.upsertRecords)))
	mux.Handle("DELETE /records/{id}", write(httpx.Wrap(app.logger, app.softDeleteRecord)))
	mux.Handle("POST /records/{id}/restore", write(httpx.Wrap(app.logger, app.restoreRecord)))
	mux.Handle("GET /audit-logs", read(httpx.Wrap(app.logger, app.listAuditLogs)))
	mux.Handle("GET /version", httpx.Wrap(app.logger, app.versionInfo))
	mux.Handle("GET /metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	return httpx.Chain(mux, httpx.Recover(app.logger), httpx.Logging(app.logger))
}
