package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the quiz engine. It implements
// app.Recorder.
type Metrics struct {
	QuestionsCreated *prometheus.CounterVec
	WindowsOpened    prometheus.Counter
	Answers          *prometheus.CounterVec
	AnswerElapsed    prometheus.Histogram
	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QuestionsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quiz",
				Name:      "questions_created_total",
				Help:      "Question create calls by result",
			},
			[]string{"result"},
		),
		WindowsOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "windows_opened_total",
			Help:      "Answer windows opened or refreshed",
		}),
		Answers: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quiz",
				Name:      "answers_total",
				Help:      "Answer submissions by outcome",
			},
			[]string{"outcome"},
		),
		AnswerElapsed: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quiz",
			Name:      "answer_elapsed_seconds",
			Help:      "Seconds between window open and accepted answer",
			Buckets:   []float64{1, 2, 5, 10, 15, 20},
		}),
		RequestCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quiz",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "quiz",
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) QuestionCreated(result string) {
	m.QuestionsCreated.WithLabelValues(result).Inc()
}

func (m *Metrics) WindowOpened() {
	m.WindowsOpened.Inc()
}

func (m *Metrics) AnswerAccepted(correct bool, elapsedSeconds int64) {
	outcome := "incorrect"
	if correct {
		outcome = "correct"
	}
	m.Answers.WithLabelValues(outcome).Inc()
	m.AnswerElapsed.Observe(float64(elapsedSeconds))
}

func (m *Metrics) AnswerRejected(reason string) {
	m.Answers.WithLabelValues(reason).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	m.RequestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(seconds)
}
