package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"quiz-engine/internal/app"
	"quiz-engine/internal/domain"
)

// Handler binds the quiz use cases to JSON over HTTP.
type Handler struct {
	service  *app.QuizService
	log      logrus.FieldLogger
	validate *validator.Validate
}

func NewHandler(service *app.QuizService, log logrus.FieldLogger) *Handler {
	validate := validator.New()
	// report JSON names in validation errors
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		service:  service,
		log:      log,
		validate: validate,
	}
}

// flexibleID accepts both JSON strings and numbers; older clients send numeric
// question ids.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

type createQuestionRequest struct {
	QuizID        flexibleID `json:"quiz_id"`
	QuestionID    flexibleID `json:"question_id" validate:"required"`
	QuestionText  string     `json:"question_text" validate:"required"`
	CorrectAnswer string     `json:"correct_answer" validate:"required"`
}

type answerRequest struct {
	UserID     string     `json:"user_id" validate:"required"`
	QuizID     flexibleID `json:"quiz_id"`
	QuestionID flexibleID `json:"question_id" validate:"required"`
	Answer     string     `json:"answer"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type answerResponse struct {
	Message      string `json:"message"`
	ResponseTime int64  `json:"response_time"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateQuestion handles POST /quiz/{quiz_id}/question.
func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	quizID := mux.Vars(r)["quiz_id"]

	var req createQuestionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.QuizID != "" && string(req.QuizID) != quizID {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quiz_id does not match path"})
		return
	}

	result, err := h.service.CreateQuestion(r.Context(), domain.Question{
		QuizID:        quizID,
		QuestionID:    string(req.QuestionID),
		Text:          req.QuestionText,
		CorrectAnswer: req.CorrectAnswer,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if result == domain.AlreadyExists {
		writeJSON(w, http.StatusOK, messageResponse{Message: "Question already exists"})
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Question has been created"})
}

// GetQuestion handles GET /quiz/{quiz_id}/question/{question_id}.
func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	q, err := h.service.GetQuestion(r.Context(), vars["quiz_id"], vars["question_id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// StartQuestion handles GET /quiz/{quiz_id}/question/{question_id}/start?user_id=.
func (h *Handler) StartQuestion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing user_id"})
		return
	}

	opened, err := h.service.StartQuestion(r.Context(), userID, vars["quiz_id"], vars["question_id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opened)
}

// SubmitAnswer handles POST /quiz/{quiz_id}/answer.
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	quizID := mux.Vars(r)["quiz_id"]

	var req answerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.QuizID != "" && string(req.QuizID) != quizID {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quiz_id does not match path"})
		return
	}

	receipt, err := h.service.SubmitAnswer(r.Context(), req.UserID, quizID, string(req.QuestionID), req.Answer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Message: "Answer recorded", ResponseTime: receipt.ElapsedSeconds})
}

// Rankings handles GET /quiz/{quiz_id}/rankings.
func (h *Handler) Rankings(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Rankings(r.Context(), mux.Vars(r)["quiz_id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.log.WithError(err).Warn("health check failed")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithFields(logrus.Fields{
			"path":       r.URL.Path,
			"request_id": requestIDFrom(r.Context()),
		}).WithError(err).Error("request failed")
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAnswerWindowExpired),
		errors.Is(err, domain.ErrDuplicateAnswer),
		errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrInvalidSubmission):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "invalid field " + strconv.Quote(verrs[0].Field()) + ": " + verrs[0].Tag()
	}
	return "invalid request"
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
