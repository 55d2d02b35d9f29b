package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/internal/httputil"
	"github.com/tendant/dailyhome/pkg/auth"
	"github.com/tendant/dailyhome/pkg/domain"
	"github.com/tendant/dailyhome/pkg/mess"
	"golang.org/x/net/websocket"
)

// Client control events.
const (
	EventJoinMessRoom             = "join-mess-room"
	EventLeaveMessRoom            = "leave-mess-room"
	EventSubscribeRequestStatus   = "subscribe-request-status"
	EventUnsubscribeRequestStatus = "unsubscribe-request-status"
	EventPing                     = "ping"
)

// Server events besides the membership broadcasts.
const (
	EventConnected                 = "connected"
	EventJoinedMessRoom            = "joined-mess-room"
	EventLeftMessRoom              = "left-mess-room"
	EventSubscribedRequestStatus   = "subscribed-request-status"
	EventUnsubscribedRequestStatus = "unsubscribed-request-status"
	EventPong                      = "pong"
	EventError                     = "error"
)

const maxDecodeErrors = 5

// UserLoader resolves a token subject to a live user.
type UserLoader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// HandlerConfig configures the websocket endpoint.
type HandlerConfig struct {
	// AuthTimeout bounds token validation and the user lookup.
	AuthTimeout time.Duration
	// SendBuffer is the outbound queue length of each connection.
	SendBuffer int
}

// Handler authenticates websocket clients and serves their control events.
type Handler struct {
	hub    *Hub
	tokens *auth.TokenService
	users  UserLoader
	config HandlerConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a websocket handler.
func NewHandler(hub *Hub, tokens *auth.TokenService, users UserLoader, config HandlerConfig, logger *slog.Logger) *Handler {
	if config.AuthTimeout <= 0 {
		config.AuthTimeout = 5 * time.Second
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:    hub,
		tokens: tokens,
		users:  users,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// ErrorPayload is the data of an error frame.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

type roomPayload struct {
	MessID uuid.UUID `json:"messId"`
}

type pongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type connectedPayload struct {
	UserID uuid.UUID `json:"userId"`
}

// tokenFromRequest reads the token query parameter, then the access token cookie.
// fromCookie reports whether the browser attached the credential on its own.
func tokenFromRequest(r *http.Request) (token string, fromCookie bool) {
	if token := r.URL.Query().Get("token"); token != "" {
		return token, false
	}
	if token, ok := httputil.GetAccessTokenFromCookie(r); ok {
		return token, true
	}
	return "", false
}

var errCrossOrigin = errors.New("websocket origin does not match host")

// sameOrigin rejects handshakes whose Origin is missing or names another host.
func sameOrigin(config *websocket.Config, r *http.Request) error {
	origin, err := websocket.Origin(config, r)
	if err != nil {
		return err
	}
	if origin == nil || origin.Host != r.Host {
		return errCrossOrigin
	}
	config.Origin = origin
	return nil
}

// ServeHTTP authenticates the request and upgrades it. Failed authentication
// answers 401 without upgrading.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, fromCookie := tokenFromRequest(r)
	user, err := h.authenticate(r, token)
	if err != nil {
		h.logger.Warn("realtime authentication failed", "remote", r.RemoteAddr, "error", err)
		if domain.KindOf(err) == domain.KindInternal {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteError(w, domain.ErrInvalidToken)
		return
	}

	server := websocket.Server{
		Handler: func(ws *websocket.Conn) {
			h.serve(ws, user.ID)
		},
	}
	// Cookie credentials are honored from same-origin pages only.
	if fromCookie {
		server.Handshake = sameOrigin
	}
	server.ServeHTTP(w, r)
}

func (h *Handler) authenticate(r *http.Request, token string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.config.AuthTimeout)
	defer cancel()

	userID, err := h.tokens.UserIDFromToken(token)
	if err != nil {
		return nil, err
	}
	user, err := h.users.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidToken
	}
	return user, err
}

func (h *Handler) serve(ws *websocket.Conn, userID uuid.UUID) {
	// Server read and write timeouts outlive the hijack; the socket is long-lived.
	_ = ws.SetDeadline(time.Time{})

	c := newConn(ws, userID, h.config.SendBuffer, h.now())
	if err := h.hub.register(c); err != nil {
		c.Close()
		return
	}
	defer h.hub.unregister(c)
	go c.writeLoop()

	h.hub.Join(c, mess.UserRoom(userID))
	h.hub.send(c, EventConnected, connectedPayload{UserID: userID})
	h.logger.Info("realtime client connected", "user_id", userID, "conn_id", c.ID, "remote", ws.Request().RemoteAddr)
	defer h.logger.Info("realtime client disconnected", "user_id", userID, "conn_id", c.ID)

	decodeErrors := 0
	for {
		var frame Frame
		err := websocket.JSON.Receive(ws, &frame)
		if err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				decodeErrors++
				h.hub.send(c, EventError, ErrorPayload{Message: "invalid frame payload"})
				if decodeErrors >= maxDecodeErrors {
					return
				}
				continue
			}
			if !errors.Is(err, io.EOF) {
				select {
				case <-c.Done():
				default:
					h.logger.Debug("realtime read failed", "user_id", userID, "error", err)
				}
			}
			return
		}
		decodeErrors = 0
		h.dispatch(ws.Request().Context(), c, frame)
	}
}

func (h *Handler) dispatch(ctx context.Context, c *Conn, frame Frame) {
	switch frame.Event {
	case EventJoinMessRoom:
		h.joinMessRoom(ctx, c, frame)
	case EventLeaveMessRoom:
		messID, err := decodeMessID(frame.Data)
		if err != nil {
			h.sendError(c, frame.Event, "mess id is required")
			return
		}
		h.hub.Leave(c, mess.MessRoom(messID))
		h.hub.send(c, EventLeftMessRoom, roomPayload{MessID: messID})
	case EventSubscribeRequestStatus:
		h.hub.Join(c, mess.RequestStatusRoom(c.UserID))
		h.hub.send(c, EventSubscribedRequestStatus, connectedPayload{UserID: c.UserID})
	case EventUnsubscribeRequestStatus:
		h.hub.Leave(c, mess.RequestStatusRoom(c.UserID))
		h.hub.send(c, EventUnsubscribedRequestStatus, connectedPayload{UserID: c.UserID})
	case EventPing:
		h.hub.send(c, EventPong, pongPayload{Timestamp: h.now().UnixMilli()})
	default:
		h.sendError(c, frame.Event, "unsupported event")
	}
}

// joinMessRoom admits c to a mess room only when its user currently belongs
// to that mess.
func (h *Handler) joinMessRoom(ctx context.Context, c *Conn, frame Frame) {
	messID, err := decodeMessID(frame.Data)
	if err != nil {
		h.sendError(c, frame.Event, "mess id is required")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.AuthTimeout)
	defer cancel()
	user, err := h.users.GetUser(ctx, c.UserID)
	if err != nil {
		h.logger.Warn("realtime user lookup failed", "user_id", c.UserID, "error", err)
		h.sendError(c, frame.Event, "unable to verify membership")
		return
	}
	if user.CurrentMessID == nil || *user.CurrentMessID != messID {
		h.sendError(c, frame.Event, "you are not a member of this mess")
		return
	}

	h.hub.Join(c, mess.MessRoom(messID))
	h.hub.send(c, EventJoinedMessRoom, roomPayload{MessID: messID})
}

func (h *Handler) sendError(c *Conn, event, message string) {
	h.hub.send(c, EventError, ErrorPayload{Event: event, Message: message})
}

// decodeMessID accepts a bare id string or {"messId": id}.
func decodeMessID(data json.RawMessage) (uuid.UUID, error) {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		return uuid.Parse(raw)
	}
	var payload roomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return uuid.Nil, err
	}
	if payload.MessID == uuid.Nil {
		return uuid.Nil, errors.New("missing mess id")
	}
	return payload.MessID, nil
}
