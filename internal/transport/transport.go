package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"leadchat/internal/models"

	"github.com/c-pro/geche"
)

type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

var (
	ErrNotConnected = errors.New("channel not connected")
)

// Socket is the minimal surface the manager needs from a websocket
// connection.
type Socket interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a raw connection for one logical channel.
type Dialer interface {
	Dial(ctx context.Context, channel models.Channel) (Socket, error)
}

type authPayload struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type roomPayload struct {
	LeadID string `json:"leadId"`
}

type sendPayload struct {
	LeadID  string `json:"leadId"`
	Content string `json:"content"`
}

type calendarPayload struct {
	UserID string `json:"userId"`
}

type connection struct {
	sock   Socket
	state  ConnState
	closed bool // deliberate disconnect, read errors are expected
}

type Config struct {
	Dialer Dialer
	UserID string
	Token  string

	// DedupTTL bounds how long event identity keys are remembered. Defaults
	// to 10 minutes, long enough to cover a reconnect replay.
	DedupTTL time.Duration

	// BufferSize is the capacity of each outbound stream. Defaults to 256.
	BufferSize int

	Logger *slog.Logger
}

// Manager owns one connection per logical channel and demultiplexes the raw
// event stream into direct messages, user notifications and calendar events.
// It never retries on its own: a dropped connection stays disconnected until
// the caller invokes Connect again.
type Manager struct {
	dialer Dialer
	userID string
	token  string
	log    *slog.Logger

	mu    sync.Mutex
	conns map[models.Channel]*connection
	rooms map[string]bool

	// seen drops replayed events across reconnects, keyed by the event's
	// identity key.
	seen geche.Geche[string, struct{}]

	messages      chan models.DirectMessage
	notifications chan models.UserNotification
	calendar      chan models.CalendarEvent
}

func NewManager(ctx context.Context, cfg Config) *Manager {
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 10 * time.Minute
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Manager{
		dialer:        cfg.Dialer,
		userID:        cfg.UserID,
		token:         cfg.Token,
		log:           cfg.Logger.With("component", "transport"),
		conns:         make(map[models.Channel]*connection),
		rooms:         make(map[string]bool),
		seen:          geche.NewMapTTLCache[string, struct{}](ctx, cfg.DedupTTL, time.Minute),
		messages:      make(chan models.DirectMessage, cfg.BufferSize),
		notifications: make(chan models.UserNotification, cfg.BufferSize),
		calendar:      make(chan models.CalendarEvent, cfg.BufferSize),
	}
}

func (m *Manager) Messages() <-chan models.DirectMessage          { return m.messages }
func (m *Manager) Notifications() <-chan models.UserNotification { return m.notifications }
func (m *Manager) CalendarEvents() <-chan models.CalendarEvent   { return m.calendar }

func (m *Manager) State(channel models.Channel) ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conns[channel]; ok {
		return c.state
	}
	return StateDisconnected
}

// Connect dials the channel and performs the authentication handshake.
// Calling it while the channel is already connecting or connected is a no-op.
func (m *Manager) Connect(ctx context.Context, channel models.Channel) error {
	m.mu.Lock()
	if c, ok := m.conns[channel]; ok && c.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	c := &connection{state: StateConnecting}
	m.conns[channel] = c
	m.mu.Unlock()

	sock, err := m.dialer.Dial(ctx, channel)
	if err != nil {
		m.setDisconnected(channel)
		return fmt.Errorf("dial %s channel: %w", channel, err)
	}

	authFrame, err := models.NewFrame(models.EventAuthenticate, authPayload{UserID: m.userID, Token: m.token})
	if err != nil {
		_ = sock.Close()
		m.setDisconnected(channel)
		return err
	}
	if err := sock.WriteJSON(authFrame); err != nil {
		_ = sock.Close()
		m.setDisconnected(channel)
		return fmt.Errorf("authenticate on %s channel: %w", channel, err)
	}

	m.mu.Lock()
	c.sock = sock
	c.state = StateConnected
	c.closed = false
	m.mu.Unlock()

	go m.readPump(channel, c, sock)

	m.log.Info("channel connected", "channel", channel)
	return nil
}

// Disconnect closes the channel's connection. Idempotent.
func (m *Manager) Disconnect(channel models.Channel) {
	m.mu.Lock()
	c, ok := m.conns[channel]
	if !ok || c.state != StateConnected {
		if ok {
			c.state = StateDisconnected
		}
		m.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateDisconnected
	sock := c.sock
	m.mu.Unlock()

	if sock != nil {
		_ = sock.Close()
	}
	m.log.Info("channel disconnected", "channel", channel)
}

// Close tears down every channel.
func (m *Manager) Close() {
	m.Disconnect(models.ChannelChat)
	m.Disconnect(models.ChannelCalendar)
}

// JoinRoom subscribes to a lead's direct messages. The joined set also gates
// inbound events: messages for rooms never joined are ignored.
func (m *Manager) JoinRoom(leadID string) error {
	m.mu.Lock()
	m.rooms[leadID] = true
	m.mu.Unlock()
	return m.write(models.ChannelChat, models.EventJoinLead, roomPayload{LeadID: leadID})
}

func (m *Manager) LeaveRoom(leadID string) error {
	m.mu.Lock()
	delete(m.rooms, leadID)
	m.mu.Unlock()
	return m.write(models.ChannelChat, models.EventLeaveLead, roomPayload{LeadID: leadID})
}

// Send delivers an outbound message over the chat channel.
func (m *Manager) Send(leadID, content string) error {
	return m.write(models.ChannelChat, models.EventSendMessage, sendPayload{LeadID: leadID, Content: content})
}

// SubscribeCalendar registers for the user's demo events on the calendar
// channel.
func (m *Manager) SubscribeCalendar() error {
	return m.write(models.ChannelCalendar, models.EventSubscribeCalendar, calendarPayload{UserID: m.userID})
}

func (m *Manager) write(channel models.Channel, event string, payload any) error {
	m.mu.Lock()
	c, ok := m.conns[channel]
	if !ok || c.state != StateConnected {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotConnected, channel)
	}
	sock := c.sock
	m.mu.Unlock()

	frame, err := models.NewFrame(event, payload)
	if err != nil {
		return err
	}
	if err := sock.WriteJSON(frame); err != nil {
		return fmt.Errorf("write %s to %s channel: %w", event, channel, err)
	}
	return nil
}

func (m *Manager) setDisconnected(channel models.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conns[channel]; ok {
		c.state = StateDisconnected
	}
}

func (m *Manager) joined(leadID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[leadID]
}

func (m *Manager) readPump(channel models.Channel, c *connection, sock Socket) {
	for {
		var frame models.Frame
		if err := sock.ReadJSON(&frame); err != nil {
			m.mu.Lock()
			deliberate := c.closed
			// A newer connection may have replaced this one already; only
			// transition our own.
			if m.conns[channel] == c {
				c.state = StateDisconnected
			}
			m.mu.Unlock()

			if !deliberate {
				m.log.Warn("connection dropped", "channel", channel, "error", err)
			}
			return
		}

		ev, err := models.DecodeInbound(frame)
		if err != nil {
			m.log.Warn("dropping bad frame", "channel", channel, "event", frame.Event, "error", err)
			continue
		}

		if _, err := m.seen.Get(ev.Key()); err == nil {
			m.log.Debug("dropping duplicate event", "channel", channel, "key", ev.Key())
			continue
		}
		m.seen.Set(ev.Key(), struct{}{})

		m.dispatch(channel, ev)
	}
}

func (m *Manager) dispatch(channel models.Channel, ev models.InboundEvent) {
	switch e := ev.(type) {
	case models.DirectMessage:
		if !m.joined(e.LeadID) {
			m.log.Debug("dropping message for unjoined room", "leadId", e.LeadID)
			return
		}
		select {
		case m.messages <- e:
		default:
			m.log.Warn("message stream full, dropping event", "key", e.Key())
		}
	case models.UserNotification:
		select {
		case m.notifications <- e:
		default:
			m.log.Warn("notification stream full, dropping event", "key", e.Key())
		}
	case models.CalendarEvent:
		select {
		case m.calendar <- e:
		default:
			m.log.Warn("calendar stream full, dropping event", "key", e.Key())
		}
	default:
		m.log.Warn("unhandled event type", "channel", channel, "type", fmt.Sprintf("%T", ev))
	}
}
