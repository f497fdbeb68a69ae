package httpserver

import (
	"net/http"
	"time"
)

// New builds the engine's HTTP server. Evaluation and snapshot endpoints
// answer quickly; proof exports write larger documents, so the write timeout
// is the generous bound.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
