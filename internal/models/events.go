package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Channel is one logical real-time namespace, multiplexed over its own
// connection.
type Channel string

const (
	ChannelChat     Channel = "chat"
	ChannelCalendar Channel = "calendar"
)

// Client-to-server event names.
const (
	EventAuthenticate      = "authenticate"
	EventJoinLead          = "join_lead"
	EventLeaveLead         = "leave_lead"
	EventSendMessage       = "sendMessage"
	EventSubscribeCalendar = "subscribe-calendar"
)

// Server-to-client event names.
const (
	EventNewMessage        = "new_message"
	EventNotification      = "notification"
	EventDemoCreated       = "demo-created"
	EventDemoUpdated       = "demo-updated"
	EventDemoDeleted       = "demo-deleted"
	EventDemoStatusChanged = "demo-status-changed"
	EventDemoReminder      = "demo-reminder"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrInvalidEvent = errors.New("invalid event payload")
)

// Frame is the raw envelope every websocket message travels in.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewFrame(event string, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s frame: %w", event, err)
	}
	return Frame{Event: event, Data: raw}, nil
}

// InboundEvent is the closed union of server-sent events. Payloads are decoded
// and validated exactly once, at the transport boundary.
type InboundEvent interface {
	// Key is the identity used for deduplication.
	Key() string
	inboundEvent()
}

// DirectMessage is a chat message delivered to a joined lead room.
type DirectMessage struct {
	LeadID    string    `json:"leadId"`
	MessageID string    `json:"messageId"`
	Direction Direction `json:"direction"`
	Content   string    `json:"content,omitempty"`
	MediaURL  string    `json:"mediaUrl,omitempty"`
	MediaType string    `json:"mediaType,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m DirectMessage) Key() string   { return m.MessageID }
func (m DirectMessage) inboundEvent() {}

// Message converts the wire shape into the domain message.
func (m DirectMessage) Message() Message {
	return Message{
		ID:        m.MessageID,
		LeadID:    m.LeadID,
		Direction: m.Direction,
		Content:   m.Content,
		MediaURL:  m.MediaURL,
		MediaType: m.MediaType,
		CreatedAt: m.CreatedAt,
	}
}

// UserNotification is a notification-worthy event targeted at the current
// user, already enriched with lead details by the server.
type UserNotification struct {
	LeadID      string           `json:"leadId"`
	LeadName    string           `json:"leadName"`
	PhoneNumber string           `json:"phoneNumber"`
	Message     string           `json:"message"`
	MessageID   string           `json:"messageId"`
	Timestamp   time.Time        `json:"timestamp"`
	Kind        NotificationKind `json:"kind"`
}

func (n UserNotification) Key() string   { return n.LeadID + ":" + n.MessageID }
func (n UserNotification) inboundEvent() {}

// CalendarEvent is a demo lifecycle event on the calendar channel.
type CalendarEvent struct {
	Action    string          `json:"action"`
	DemoID    string          `json:"demoId"`
	LeadID    string          `json:"leadId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (e CalendarEvent) Key() string   { return e.Action + ":" + e.DemoID + ":" + e.Timestamp.UTC().Format(time.RFC3339Nano) }
func (e CalendarEvent) inboundEvent() {}

// DecodeInbound parses a raw frame into the event union. Unknown events return
// ErrUnknownEvent; structurally valid frames with missing identity fields
// return ErrInvalidEvent. Callers log and drop both.
func DecodeInbound(frame Frame) (InboundEvent, error) {
	switch frame.Event {
	case EventNewMessage:
		var m DirectMessage
		if err := json.Unmarshal(frame.Data, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEvent, frame.Event, err)
		}
		if m.LeadID == "" || m.MessageID == "" {
			return nil, fmt.Errorf("%w: %s: missing leadId or messageId", ErrInvalidEvent, frame.Event)
		}
		switch m.Direction {
		case DirectionInbound, DirectionOutbound:
		case "":
			m.Direction = DirectionInbound
		default:
			return nil, fmt.Errorf("%w: %s: direction %q", ErrInvalidEvent, frame.Event, m.Direction)
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		return m, nil

	case EventNotification:
		var n UserNotification
		if err := json.Unmarshal(frame.Data, &n); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEvent, frame.Event, err)
		}
		if n.LeadID == "" || n.MessageID == "" {
			return nil, fmt.Errorf("%w: %s: missing leadId or messageId", ErrInvalidEvent, frame.Event)
		}
		switch n.Kind {
		case NotificationNewChat, NotificationNewMessage:
		case "":
			n.Kind = NotificationNewMessage
		default:
			return nil, fmt.Errorf("%w: %s: kind %q", ErrInvalidEvent, frame.Event, n.Kind)
		}
		if n.Timestamp.IsZero() {
			n.Timestamp = time.Now()
		}
		return n, nil

	case EventDemoCreated, EventDemoUpdated, EventDemoDeleted, EventDemoStatusChanged, EventDemoReminder:
		var e CalendarEvent
		if err := json.Unmarshal(frame.Data, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEvent, frame.Event, err)
		}
		e.Action = frame.Event
		if e.DemoID == "" {
			return nil, fmt.Errorf("%w: %s: missing demoId", ErrInvalidEvent, frame.Event)
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now()
		}
		return e, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event)
}
