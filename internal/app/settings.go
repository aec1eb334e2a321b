package app

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultAnswerWindow    = 20 * time.Second
	DefaultQuestionTTL     = 30 * 24 * time.Hour
	DefaultResponseTimeTTL = 30 * 24 * time.Hour
)

// Settings holds the retention constants of the engine.
type Settings struct {
	AnswerWindow    time.Duration
	QuestionTTL     time.Duration
	ResponseTimeTTL time.Duration
}

// DefaultSettings returns the production retention constants.
func DefaultSettings() Settings {
	return Settings{
		AnswerWindow:    DefaultAnswerWindow,
		QuestionTTL:     DefaultQuestionTTL,
		ResponseTimeTTL: DefaultResponseTimeTTL,
	}
}

func (s Settings) withDefaults() Settings {
	if s.AnswerWindow <= 0 {
		s.AnswerWindow = DefaultAnswerWindow
	}
	if s.QuestionTTL <= 0 {
		s.QuestionTTL = DefaultQuestionTTL
	}
	if s.ResponseTimeTTL <= 0 {
		s.ResponseTimeTTL = DefaultResponseTimeTTL
	}
	return s
}

// Recorder receives engine events, typically to export them as metrics.
type Recorder interface {
	QuestionCreated(result string)
	WindowOpened()
	AnswerAccepted(correct bool, elapsedSeconds int64)
	AnswerRejected(reason string)
}

type nopRecorder struct{}

func (nopRecorder) QuestionCreated(string)     {}
func (nopRecorder) WindowOpened()              {}
func (nopRecorder) AnswerAccepted(bool, int64) {}
func (nopRecorder) AnswerRejected(string)      {}

// Option customizes the components built by NewQuizService.
type Option func(*options)

type options struct {
	now      func() time.Time
	log      logrus.FieldLogger
	recorder Recorder
	archive  QuestionArchive
}

func discardLogger() logrus.FieldLogger {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return discard
}

func defaultOptions() options {
	return options{
		now:      time.Now,
		log:      discardLogger(),
		recorder: nopRecorder{},
	}
}

// WithClock overrides the wall clock; used for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used for partially applied submissions. A nil
// logger keeps the default, which discards everything.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithRecorder sets the event recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithArchive adds a durable question archive behind the store.
func WithArchive(a QuestionArchive) Option {
	return func(o *options) { o.archive = a }
}
