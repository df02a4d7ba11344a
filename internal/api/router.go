package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Ziarant/StarPupil/internal/api/handlers"
	"github.com/Ziarant/StarPupil/pkg/logger"
)

// NewRouter wires all routes and middleware.
func NewRouter(
	signalHandler *handlers.SignalHandler,
	instrumentHandler *handlers.InstrumentHandler,
	pipelineHandler *handlers.PipelineHandler,
	signalFeed http.Handler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/signals", signalHandler.ListByDate).Methods("GET")
	api.HandleFunc("/instruments", instrumentHandler.ListActive).Methods("GET")
	api.HandleFunc("/instruments/{id:[0-9]+}/signals", signalHandler.ListByInstrument).Methods("GET")

	api.HandleFunc("/pipeline/run", pipelineHandler.TriggerRun).Methods("POST")
	api.HandleFunc("/scheduler/jobs", pipelineHandler.ListJobs).Methods("GET")
	api.HandleFunc("/scheduler/stats", pipelineHandler.JobStats).Methods("GET")

	if signalFeed != nil {
		r.Handle("/ws/signals", signalFeed)
	}

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "starpupil-api",
	})
}

// loggingMiddleware logs HTTP requests.
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

// recoveryMiddleware recovers from handler panics.
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
