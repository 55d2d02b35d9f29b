package mess

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/pkg/domain"
)

// Event names pushed to realtime clients.
const (
	EventJoinRequestUpdate = "join-request-update"
	EventMessUpdate        = "mess-update"
	EventNotification      = "notification"
)

// Mess update types carried in MessUpdate.Type.
const (
	UpdateMessCreated      = "mess-created"
	UpdateNewJoinRequest   = "new-join-request"
	UpdateMemberJoined     = "member-joined"
	UpdateRequestCancelled = "request-cancelled"
	UpdateMemberLeft       = "member-left"
	UpdateMemberRemoved    = "member-removed"
)

// Status is the relationship of a user to a mess as reported to clients.
type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusRemoved   Status = "removed"
)

// Message returns the text shown to the user for a status change.
func (s Status) Message() string {
	switch s {
	case StatusAccepted:
		return "Your join request has been accepted!"
	case StatusRejected:
		return "Your join request was rejected."
	case StatusPending:
		return "Your join request is pending approval."
	case StatusCancelled:
		return "Your join request was cancelled."
	case StatusRemoved:
		return "You have been removed from the mess."
	default:
		return "Request status updated."
	}
}

// UserRoom is the room every connection of a user is subscribed to.
func UserRoom(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// MessRoom is the room for membership changes of one mess.
func MessRoom(messID uuid.UUID) string {
	return "mess:" + messID.String()
}

// RequestStatusRoom is the room a requester subscribes to while waiting for a decision.
func RequestStatusRoom(userID uuid.UUID) string {
	return "request-status:" + userID.String()
}

// JoinRequestUpdate is the payload of EventJoinRequestUpdate.
type JoinRequestUpdate struct {
	Status    Status              `json:"status"`
	Message   string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
	Mess      *domain.MessSummary `json:"mess"`
}

// MessUpdate is the payload of EventMessUpdate and EventNotification.
type MessUpdate struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers an event to every connection subscribed to a room.
type Publisher interface {
	Publish(room, event string, payload any) error
}

// ErrNoGateway is returned by NopPublisher.
var ErrNoGateway = errors.New("realtime gateway not initialized")

// NopPublisher drops every event. It stands in when no gateway runs.
type NopPublisher struct{}

// Publish always returns ErrNoGateway.
func (NopPublisher) Publish(room, event string, payload any) error {
	return ErrNoGateway
}

// emitter turns membership transitions into events. Publish failures are
// logged and swallowed: the committed transition is the source of truth.
type emitter struct {
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func (e *emitter) publish(room, event string, payload any) {
	if err := e.publisher.Publish(room, event, payload); err != nil {
		e.logger.Warn("realtime publish failed", "room", room, "event", event, "error", err)
	}
}

// joinRequestUpdate sends the same status event to the request-status and user rooms.
func (e *emitter) joinRequestUpdate(userID uuid.UUID, status Status, mess *domain.MessSummary) {
	payload := JoinRequestUpdate{
		Status:    status,
		Message:   status.Message(),
		Timestamp: e.now(),
		Mess:      mess,
	}
	e.publish(RequestStatusRoom(userID), EventJoinRequestUpdate, payload)
	e.publish(UserRoom(userID), EventJoinRequestUpdate, payload)
}

func (e *emitter) messUpdate(messID uuid.UUID, updateType string, data any) {
	e.publish(MessRoom(messID), EventMessUpdate, MessUpdate{
		Type:      updateType,
		Data:      data,
		Timestamp: e.now(),
	})
}

// CancelledRequest is the data of an UpdateRequestCancelled mess update.
type CancelledRequest struct {
	RequestID uuid.UUID `json:"requestId"`
	UserID    uuid.UUID `json:"userId"`
}
