package support

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/logger"
	"github.com/zjoart/varlixo/pkg/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 << 10
	requestTimeout = 15 * time.Second
)

var ErrUnknownEvent = apperr.Validation("unknown event")

// Authenticator resolves the bearer token sent in the handshake.
type Authenticator func(ctx context.Context, token string) (*user.User, error)

type inboundFrame struct {
	Event string          `json:"event"`
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data"`
}

type Ack struct {
	OK      bool        `json:"ok"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type conversationRequest struct {
	ConversationID string `json:"conversation_id"`
}

// Gateway serves the /support-chat websocket endpoint.
type Gateway struct {
	manager      *Manager
	authenticate Authenticator
	upgrader     websocket.Upgrader
	buffer       int
}

func NewGateway(manager *Manager, authenticate Authenticator, allowedOrigins []string) *Gateway {
	return &Gateway{
		manager:      manager,
		authenticate: authenticate,
		buffer:       DefaultBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			a = strings.TrimSpace(a)
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Authorization required", nil)
		return
	}
	caller, err := g.authenticate(r.Context(), token)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Invalid token", nil)
		return
	}

	// registered before the upgrade so no broadcast is missed once the
	// client sees the handshake complete
	sub := NewSubscriber(caller.ID.String(), caller.IsAdmin(), g.buffer)
	g.manager.Hub().Register(sub)

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.manager.Hub().Unregister(sub)
		logger.Warn("Support chat upgrade failed", logger.WithError(err))
		return
	}
	logger.Debug("Support chat connected", logger.Fields{logger.UserIdKey: sub.UserID, "admin": sub.Admin})

	go g.writePump(conn, sub)
	g.readPump(conn, *caller, sub)
}

func (g *Gateway) readPump(conn *websocket.Conn, caller user.User, sub *Subscriber) {
	defer func() {
		g.manager.Hub().Unregister(sub)
		sub.Close()
		conn.Close()
		logger.Debug("Support chat disconnected", logger.Fields{logger.UserIdKey: sub.UserID})
	}()

	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Support chat read failed", logger.WithError(err))
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			sub.Deliver(Event{Event: EventAck, Data: Ack{OK: false, Message: "invalid frame"}})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		data, push, err := g.dispatch(ctx, caller, sub, frame)
		cancel()

		if err != nil {
			if apperr.HTTPStatus(err) == http.StatusInternalServerError {
				logger.Error("Support chat event failed", logger.Merge(logger.Fields{"event": frame.Event}, logger.WithError(err)))
			}
			sub.Deliver(Event{Event: EventAck, ID: frame.ID, Data: Ack{OK: false, Message: apperr.MessageOf(err)}})
			continue
		}

		sub.Deliver(Event{Event: EventAck, ID: frame.ID, Data: Ack{OK: true, Data: data}})
		if push != nil {
			sub.Deliver(*push)
		}
	}
}

func (g *Gateway) writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case e := <-sub.Events():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				sub.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sub.Close()
				return
			}
		case <-sub.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func decodeData(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.Validation("invalid event data")
	}
	return nil
}

// dispatch runs one inbound event. push, when set, is sent right after the ack.
func (g *Gateway) dispatch(ctx context.Context, caller user.User, sub *Subscriber, frame inboundFrame) (interface{}, *Event, error) {
	switch frame.Event {
	case EventAdminList:
		list, err := g.manager.AdminList(ctx, caller)
		return list, nil, err

	case EventAdminAssign, EventAdminUnassign, EventAdminJoin:
		var req conversationRequest
		if err := decodeData(frame.Data, &req); err != nil {
			return nil, nil, err
		}
		switch frame.Event {
		case EventAdminAssign:
			c, err := g.manager.AdminAssign(ctx, caller, req.ConversationID)
			return c, nil, err
		case EventAdminUnassign:
			c, err := g.manager.AdminUnassign(ctx, caller, req.ConversationID)
			return c, nil, err
		default:
			h, err := g.manager.AdminJoin(ctx, caller, sub, req.ConversationID)
			if err != nil {
				return nil, nil, err
			}
			return h, &Event{Event: EventMessages, Data: h}, nil
		}

	case EventJoin:
		h, err := g.manager.UserJoin(ctx, caller, sub)
		if err != nil {
			return nil, nil, err
		}
		return h, &Event{Event: EventMessages, Data: h}, nil

	case EventMessage:
		var in SendInput
		if err := decodeData(frame.Data, &in); err != nil {
			return nil, nil, err
		}
		msg, err := g.manager.SendMessage(ctx, caller, sub, in)
		return msg, nil, err

	default:
		return nil, nil, ErrUnknownEvent
	}
}
