package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

// WSHandler terminates client connections and maps transport events onto the
// battle service: inbound messages demultiplex to room operations, and the
// room's event stream is forwarded back over the socket.
type WSHandler struct {
	service  *app.BattleService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(service *app.BattleService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
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

type joinRoomPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type startPayload struct {
	RoomID        string            `json:"roomId"`
	QuestionSetID string            `json:"questionSetId"`
	Questions     []domain.Question `json:"questions"`
}

type answerPayload struct {
	RoomID      string `json:"roomId"`
	AnswerIndex *int   `json:"answerIndex"` // nil means no answer
}

// ServeWS upgrades HTTP requests to websockets and runs the connection's
// read loop. Each connection gets an opaque id and belongs to at most one
// room; on any disconnect path the room leave runs exactly once.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	send := make(chan domain.Event, 32)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.String("connId", connID), zap.Error(err))
				return
			}
		}
	}()

	var (
		roomID        string
		forwarderDone chan struct{}
		leaveOnce     sync.Once
	)
	leave := func() {
		leaveOnce.Do(func() {
			if roomID != "" {
				h.service.Leave(context.Background(), roomID, connID)
			}
		})
	}
	defer func() {
		leave()
		close(closeSignals)
		if forwarderDone != nil {
			<-forwarderDone
		}
		close(send)
		<-writerDone
	}()

	sendError := func(message string) {
		select {
		case send <- domain.Event{Type: domain.EventError, Payload: domain.ErrorPayload{Message: message}}:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "joinRoom":
			var payload joinRoomPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.RoomID == "" || payload.DisplayName == "" {
				sendError("invalid joinRoom payload")
				continue
			}
			if roomID != "" {
				if roomID != payload.RoomID {
					sendError(domain.ErrAlreadyInRoom.Error())
				}
				continue
			}
			events, err := h.service.Join(r.Context(), payload.RoomID, connID, payload.DisplayName)
			if err != nil {
				sendError(err.Error())
				continue
			}
			roomID = payload.RoomID
			forwarderDone = make(chan struct{})
			go forwardEvents(events, send, closeSignals, forwarderDone)
			select {
			case send <- domain.Event{Type: domain.EventJoined, Payload: domain.JoinedPayload{ConnectionID: connID, RoomID: roomID}}:
			case <-writerDone:
			}

		case "startGame", "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError("invalid start payload")
				continue
			}
			if roomID == "" || payload.RoomID != roomID {
				continue // stale or out-of-room message
			}
			if err := h.service.Start(r.Context(), roomID, connID, payload.QuestionSetID, payload.Questions); err != nil {
				if errors.Is(err, domain.ErrNotHost) {
					sendError(domain.ErrNotHost.Error())
				} else {
					sendError(err.Error())
				}
			}

		case "submitAnswer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError("invalid submitAnswer payload")
				continue
			}
			if roomID == "" || payload.RoomID != roomID {
				continue
			}
			answerIndex := domain.NoAnswer
			if payload.AnswerIndex != nil {
				answerIndex = *payload.AnswerIndex
			}
			h.service.SubmitAnswer(r.Context(), roomID, connID, answerIndex)

		default:
			sendError("unsupported message type")
		}
	}
}

// forwardEvents pumps room events onto the connection's send channel until
// the room closes the stream or the connection shuts down.
func forwardEvents(events <-chan domain.Event, send chan<- domain.Event, closeSignals <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			select {
			case send <- ev:
			case <-closeSignals:
				return
			}
		case <-closeSignals:
			return
		}
	}
}
