package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/heliosquant/helios/internal/api/handlers"
	"github.com/heliosquant/helios/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	policyHandler *handlers.PolicyHandler,
	recommendHandler *handlers.RecommendHandler,
	backtestHandler *handlers.BacktestHandler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Policy endpoints
	api.HandleFunc("/policy", policyHandler.GetPolicy).Methods("GET")

	// Recommendation endpoints
	api.HandleFunc("/recommendations", recommendHandler.Recommend).Methods("POST")

	// Backtest endpoints
	api.HandleFunc("/backtests", backtestHandler.StartRun).Methods("POST")
	api.HandleFunc("/backtests", backtestHandler.ListRuns).Methods("GET")
	api.HandleFunc("/backtests/{id}", backtestHandler.GetRun).Methods("GET")

	// Live progress stream
	r.HandleFunc("/ws/backtests/{id}", backtestHandler.StreamProgress)

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "helios-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
