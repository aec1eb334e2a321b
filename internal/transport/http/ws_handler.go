package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"quiz-engine/internal/app"
)

const wsReadTimeout = 60 * time.Second

// WSHandler serves a per-player request/response channel. The server only
// writes in reply to a client message.
type WSHandler struct {
	service  *app.QuizService
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log logrus.FieldLogger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	QuestionID flexibleID `json:"questionId"`
}

type answerPayload struct {
	QuestionID flexibleID `json:"questionId"`
	Answer     string     `json:"answer"`
}

type answerResult struct {
	QuestionID   string `json:"questionId"`
	Correct      bool   `json:"correct"`
	ResponseTime int64  `json:"responseTime"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithFields(logrus.Fields{
		"quiz_id":    quizID,
		"user_id":    userID,
		"request_id": requestIDFrom(r.Context()),
	})
	log.Debug("ws connected")

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("ws read failed")
			}
			break
		}
		reply := h.dispatch(r, quizID, userID, inbound)
		if err := conn.WriteJSON(reply); err != nil {
			log.WithError(err).Warn("ws write failed")
			break
		}
	}
	log.Debug("ws closed")
}

func (h *WSHandler) dispatch(r *http.Request, quizID, userID string, inbound inboundMessage) interface{} {
	ctx := r.Context()
	switch inbound.Type {
	case "start":
		var payload startPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuestionID == "" {
			return wsError("invalid start payload")
		}
		opened, err := h.service.StartQuestion(ctx, userID, quizID, string(payload.QuestionID))
		if err != nil {
			return h.serviceError(r, err)
		}
		return outboundMessage[any]{Type: "started", Payload: opened}
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuestionID == "" {
			return wsError("invalid answer payload")
		}
		receipt, err := h.service.SubmitAnswer(ctx, userID, quizID, string(payload.QuestionID), payload.Answer)
		if err != nil {
			return h.serviceError(r, err)
		}
		return outboundMessage[any]{Type: "answerResult", Payload: answerResult{
			QuestionID:   string(payload.QuestionID),
			Correct:      receipt.Correct,
			ResponseTime: receipt.ElapsedSeconds,
		}}
	case "rankings":
		snapshot, err := h.service.Rankings(ctx, quizID)
		if err != nil {
			return h.serviceError(r, err)
		}
		return outboundMessage[any]{Type: "rankings", Payload: snapshot}
	default:
		return wsError("unsupported message type")
	}
}

func (h *WSHandler) serviceError(r *http.Request, err error) outboundMessage[errorPayload] {
	if statusFor(err) >= http.StatusInternalServerError {
		h.log.WithField("request_id", requestIDFrom(r.Context())).WithError(err).Error("ws request failed")
		return wsError("internal error")
	}
	return wsError(err.Error())
}

func wsError(msg string) outboundMessage[errorPayload] {
	return outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: msg}}
}
