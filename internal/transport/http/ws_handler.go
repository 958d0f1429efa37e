package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, logger *zap.Logger) *WSHandler {
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

type sessionPayload struct {
	SessionID string `json:"sessionId"`
	Option    *int   `json:"option,omitempty"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Serve upgrades the request to a websocket. Anonymous connections receive leaderboard updates
// only; authenticated ones can also play sessions over the socket.
func (h *WSHandler) Serve(c *gin.Context) {
	who := identityFrom(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	updates, cancel := h.service.Subscribe(ctx)
	defer cancel()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections support one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				// unblocks ReadJSON in the read loop
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case _, ok := <-updates:
				if !ok {
					return
				}
				msg := h.leaderboardMessage(ctx, who.ID)
				select {
				case send <- msg:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			case <-writerDone:
				return
			}
		}
	}()

	ok := deliver(send, writerDone, []outboundMessage{h.leaderboardMessage(ctx, who.ID)})
	for ok {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		ok = deliver(send, writerDone, h.dispatch(ctx, who, inbound))
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// deliver queues msgs for the writer. It reports false once the writer has stopped.
func deliver(send chan<- outboundMessage, writerDone <-chan struct{}, msgs []outboundMessage) bool {
	for _, msg := range msgs {
		select {
		case send <- msg:
		case <-writerDone:
			return false
		}
	}
	return true
}

func (h *WSHandler) dispatch(ctx context.Context, who domain.Identity, inbound inboundMessage) []outboundMessage {
	var payload sessionPayload
	if len(inbound.Payload) > 0 {
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return []outboundMessage{errorMessage(fmt.Errorf("%w: %v", domain.ErrValidation, err))}
		}
	}

	switch inbound.Type {
	case "start":
		return sessionMessage(h.service.Start(ctx, who))
	case "select":
		if payload.Option == nil {
			return []outboundMessage{errorMessage(domain.ErrValidation)}
		}
		return sessionMessage(h.service.SelectOption(ctx, who, payload.SessionID, *payload.Option))
	case "advance":
		return sessionMessage(h.service.Advance(ctx, who, payload.SessionID))
	case "submit":
		view, preview, err := h.service.OpenSubmission(ctx, who, payload.SessionID)
		if err != nil {
			return []outboundMessage{errorMessage(err)}
		}
		return []outboundMessage{{Type: "session", Payload: submissionResponse{Session: view, Preview: preview}}}
	case "complete":
		return resultMessage(h.service.Complete(ctx, who, payload.SessionID))
	case "retry":
		return resultMessage(h.service.RetrySave(ctx, who, payload.SessionID))
	case "leaderboard":
		return []outboundMessage{h.leaderboardMessage(ctx, who.ID)}
	default:
		return []outboundMessage{{Type: "error", Payload: errorPayload{Message: "unsupported message type", Code: http.StatusBadRequest}}}
	}
}

func (h *WSHandler) leaderboardMessage(ctx context.Context, viewerID string) outboundMessage {
	lb, err := h.service.Leaderboard(ctx, viewerID)
	if err != nil {
		return errorMessage(err)
	}
	return outboundMessage{Type: "leaderboard", Payload: lb}
}

func sessionMessage(view app.SessionView, err error) []outboundMessage {
	if err != nil {
		return []outboundMessage{errorMessage(err)}
	}
	return []outboundMessage{{Type: "session", Payload: view}}
}

func resultMessage(result domain.Result, err error) []outboundMessage {
	switch {
	case err == nil:
		return []outboundMessage{{Type: "result", Payload: resultResponse{Result: result, Saved: true}}}
	case errors.Is(err, domain.ErrPersistence) && result.ID != "":
		return []outboundMessage{{Type: "result", Payload: resultResponse{Result: result, Error: err.Error()}}}
	default:
		return []outboundMessage{errorMessage(err)}
	}
}

func errorMessage(err error) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error(), Code: statusFor(err)}}
}
