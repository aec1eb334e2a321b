package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"quiz-engine/internal/app"
	"quiz-engine/internal/metrics"
)

type ctxKey int

const requestIDKey ctxKey = iota

// NewRouter wires every route of the service. m and gatherer may be nil, in
// which case no metrics are recorded or exposed.
func NewRouter(service *app.QuizService, log logrus.FieldLogger, m *metrics.Metrics, gatherer prometheus.Gatherer) *mux.Router {
	h := NewHandler(service, log)
	ws := NewWSHandler(service, log)

	r := mux.NewRouter()
	r.Use(requestLogging(log, m))

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.HandleFunc("/ws", ws.ServeWS)

	quiz := r.PathPrefix("/quiz/{quiz_id}").Subrouter()
	quiz.HandleFunc("/question", h.CreateQuestion).Methods(http.MethodPost)
	quiz.HandleFunc("/question/{question_id}", h.GetQuestion).Methods(http.MethodGet)
	quiz.HandleFunc("/question/{question_id}/start", h.StartQuestion).Methods(http.MethodGet)
	quiz.HandleFunc("/answer", h.SubmitAnswer).Methods(http.MethodPost)
	quiz.HandleFunc("/answer/", h.SubmitAnswer).Methods(http.MethodPost)
	quiz.HandleFunc("/rankings", h.Rankings).Methods(http.MethodGet)
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogging tags each request with an id, logs it and records metrics.
func requestLogging(log logrus.FieldLogger, m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))

			// websocket upgrades need the raw writer (http.Hijacker)
			if r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			elapsed := time.Since(start)
			if m != nil {
				m.ObserveRequest(r.Method, route, rec.status, elapsed.Seconds())
			}
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"duration":   elapsed.String(),
				"request_id": requestID,
			}).Info("request served")
		})
	}
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
