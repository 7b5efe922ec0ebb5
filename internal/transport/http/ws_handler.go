package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizmusic-service/internal/app"
)

// WSHandler plays one quiz per connection: the server sends the drawn prompts,
// the client answers once and receives its graded result. A "score" message
// retries persisting a score that failed to store.
type WSHandler struct {
	service  *app.QuizService
	log      *zap.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewWSHandler(service *app.QuizService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
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
	themeCode := r.URL.Query().Get("theme")
	userID := r.URL.Query().Get("userId")
	if themeCode == "" || userID == "" {
		http.Error(w, "missing theme or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	session, err := h.service.StartQuiz(ctx, themeCode)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	defer func() {
		// The request context is done once the client hangs up. Graded sessions stay
		// so a score that failed to persist can still be recorded.
		ctx := context.Background()
		if current, err := h.service.Session(ctx, session.ID()); err == nil && current.State() == app.StateReady {
			h.service.Abandon(ctx, session.ID())
		}
	}()

	send := make(chan outboundMessage[any], 4)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.String("session_id", session.ID()), zap.Error(err))
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "quiz", Payload: quizResponse{
		SessionID: session.ID(),
		Theme:     session.Theme(),
		State:     session.State(),
		Total:     session.Total(),
		Prompts:   session.Prompts(),
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answers":
			var payload answersRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answers payload"}}
				continue
			}
			if payload.ElapsedSeconds == nil {
				elapsed := int(h.now().Sub(session.CreatedAt()).Seconds())
				payload.ElapsedSeconds = &elapsed
			}
			result, err := h.service.Submit(ctx, session.ID(), app.Submission{
				UserID:         userID,
				Answers:        payload.Answers,
				ElapsedSeconds: payload.ElapsedSeconds,
			})
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "result", Payload: result}
		case "score":
			result, err := h.service.RecordScore(ctx, session.ID())
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "result", Payload: result}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(send)
	<-writerDone
}
