package hub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leadchat/internal/content"
	"leadchat/internal/models"
	"leadchat/internal/notify"
	"leadchat/internal/recent"
	"leadchat/internal/window"

	"github.com/c-pro/geche"
	"golang.org/x/sync/errgroup"
)

// Transport is the slice of the transport manager the hub consumes.
type Transport interface {
	Messages() <-chan models.DirectMessage
	Notifications() <-chan models.UserNotification
	CalendarEvents() <-chan models.CalendarEvent
	JoinRoom(leadID string) error
	LeaveRoom(leadID string) error
}

// LeadAPI is the REST collaborator boundary.
type LeadAPI interface {
	GetLead(ctx context.Context, id string) (models.Lead, error)
	SendMessage(ctx context.Context, leadID, content string) (models.Message, error)
	SendAttachment(ctx context.Context, leadID, fileName, mimeType string, data []byte) (models.Message, error)
}

// CalendarSink receives demo lifecycle events. Optional.
type CalendarSink interface {
	HandleCalendarEvent(ev models.CalendarEvent)
}

type Config struct {
	Transport Transport
	API       LeadAPI
	Notify    *notify.Aggregator
	Recent    *recent.Aggregator
	Calendar  CalendarSink

	Viewport window.Viewport

	// LookupTTL bounds the lead enrichment cache. Defaults to 5 minutes.
	LookupTTL time.Duration

	Logger *slog.Logger
}

// Hub fans the transport streams out to the notification feed, the
// recent-chat list and the floating windows. Each consumer's state is
// disjoint, so the three updates per event need no serialization beyond the
// single dispatch goroutine per stream.
type Hub struct {
	transport Transport
	api       LeadAPI
	notify    *notify.Aggregator
	recent    *recent.Aggregator
	windows   *window.Manager
	calendar  CalendarSink

	leadCache geche.Geche[string, models.Lead]
	log       *slog.Logger
}

func New(ctx context.Context, cfg Config) *Hub {
	if cfg.LookupTTL <= 0 {
		cfg.LookupTTL = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	h := &Hub{
		transport: cfg.Transport,
		api:       cfg.API,
		notify:    cfg.Notify,
		recent:    cfg.Recent,
		calendar:  cfg.Calendar,
		leadCache: geche.NewMapTTLCache[string, models.Lead](ctx, cfg.LookupTTL, time.Minute),
		log:       cfg.Logger.With("component", "hub"),
	}

	h.windows = window.NewManager(window.Config{
		Viewport: cfg.Viewport,
		OnOpen: func(leadID string) {
			if err := h.transport.JoinRoom(leadID); err != nil {
				h.log.Warn("failed to join room", "leadId", leadID, "error", err)
			}
		},
		OnClose: func(leadID string) {
			if err := h.transport.LeaveRoom(leadID); err != nil {
				h.log.Warn("failed to leave room", "leadId", leadID, "error", err)
			}
		},
		OnRead: h.markLeadRead,
		Logger: cfg.Logger,
	})

	return h
}

// Windows exposes the floating window manager to the UI layer.
func (h *Hub) Windows() *window.Manager { return h.windows }

// Run consumes the transport streams until the context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case msg := <-h.transport.Messages():
				h.handleMessage(ctx, msg)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case n := <-h.transport.Notifications():
				h.handleNotification(ctx, n)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case ev := <-h.transport.CalendarEvents():
				h.handleCalendar(ctx, ev)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	return g.Wait()
}

// OpenChat opens (or raises) the lead's floating window and joins its room.
func (h *Hub) OpenChat(ctx context.Context, leadID string) error {
	lead, err := h.lookupLead(ctx, leadID)
	if err != nil {
		return fmt.Errorf("open chat for %s: %w", leadID, err)
	}
	h.windows.Open(lead)
	return nil
}

// SendMessage posts an outbound text message. The server's echo on the
// message stream folds it into the window log and recent chats; the recent
// entry is updated optimistically here as well, which is safe because both
// paths are idempotent upserts.
func (h *Hub) SendMessage(ctx context.Context, leadID, text string) error {
	lead, err := h.lookupLead(ctx, leadID)
	if err != nil {
		return err
	}

	msg, err := h.api.SendMessage(ctx, leadID, text)
	if err != nil {
		return fmt.Errorf("send message to %s: %w", leadID, err)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	h.windows.Append(msg)
	h.recent.AddOrUpdate(lead, msg, false)
	return nil
}

// SendAttachment validates and uploads a media message. A payload of an
// unsupported type is rejected before anything leaves the client; core state
// is untouched.
func (h *Hub) SendAttachment(ctx context.Context, leadID, fileName string, data []byte) error {
	mimeType, err := content.SniffAttachment(data)
	if err != nil {
		return fmt.Errorf("attachment rejected: %w", err)
	}

	lead, err := h.lookupLead(ctx, leadID)
	if err != nil {
		return err
	}

	msg, err := h.api.SendAttachment(ctx, leadID, fileName, mimeType, data)
	if err != nil {
		return fmt.Errorf("send attachment to %s: %w", leadID, err)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	h.windows.Append(msg)
	h.recent.AddOrUpdate(lead, msg, false)
	return nil
}

func (h *Hub) handleMessage(ctx context.Context, dm models.DirectMessage) {
	lead, err := h.lookupLead(ctx, dm.LeadID)
	if err != nil {
		h.log.Warn("dropping message, lead lookup failed", "leadId", dm.LeadID, "error", err)
		return
	}

	if !h.recent.CanAccess(lead) {
		h.log.Debug("dropping message for inaccessible lead", "leadId", dm.LeadID)
		return
	}

	msg := dm.Message()
	inbound := dm.Direction == models.DirectionInbound
	isNewChat := !h.recent.Has(dm.LeadID)

	h.windows.Append(msg)
	h.recent.AddOrUpdate(lead, msg, inbound)

	if !inbound {
		return
	}

	if h.windows.IsViewing(dm.LeadID) {
		// The user is looking right at this chat; no notification, and the
		// unread state stays consumed.
		h.markLeadRead(dm.LeadID)
		return
	}

	h.notify.Add(lead, notifyText(msg.Content, msg.MediaURL), msg.ID, isNewChat)
}

func (h *Hub) handleNotification(ctx context.Context, n models.UserNotification) {
	lead, err := h.lookupLead(ctx, n.LeadID)
	if err != nil {
		h.log.Warn("dropping notification, lead lookup failed", "leadId", n.LeadID, "error", err)
		return
	}

	if !h.recent.CanAccess(lead) {
		h.log.Debug("dropping notification for inaccessible lead", "leadId", n.LeadID)
		return
	}

	msg := models.Message{
		ID:        n.MessageID,
		LeadID:    n.LeadID,
		Direction: models.DirectionInbound,
		Content:   n.Message,
		CreatedAt: n.Timestamp,
	}
	h.recent.AddOrUpdate(lead, msg, true)

	if h.windows.IsViewing(n.LeadID) {
		h.markLeadRead(n.LeadID)
		return
	}

	h.notify.Add(lead, n.Message, n.MessageID, n.Kind == models.NotificationNewChat)
}

func (h *Hub) handleCalendar(ctx context.Context, ev models.CalendarEvent) {
	if h.calendar != nil {
		h.calendar.HandleCalendarEvent(ev)
	} else {
		h.log.Debug("calendar event with no sink", "action", ev.Action, "demoId", ev.DemoID)
	}

	// Reminders surface as notifications too, so an imminent demo is visible
	// even with the calendar view closed. The demo id doubles as the dedup key.
	if ev.Action == models.EventDemoReminder && ev.LeadID != "" {
		lead, err := h.lookupLead(ctx, ev.LeadID)
		if err != nil {
			h.log.Warn("dropping reminder, lead lookup failed", "leadId", ev.LeadID, "error", err)
			return
		}
		if !h.recent.CanAccess(lead) {
			return
		}
		h.notify.Add(lead, "Upcoming demo with "+lead.Name, "demo:"+ev.DemoID, false)
	}
}

// markLeadRead is the cross-cutting fan-out: a lead's chat being viewed
// consumes its unread state everywhere.
func (h *Hub) markLeadRead(leadID string) {
	h.notify.MarkLeadRead(leadID)
	h.recent.MarkLeadRead(leadID)
}

func (h *Hub) lookupLead(ctx context.Context, id string) (models.Lead, error) {
	if lead, err := h.leadCache.Get(id); err == nil {
		return lead, nil
	}

	lead, err := h.api.GetLead(ctx, id)
	if err != nil {
		return models.Lead{}, err
	}
	h.leadCache.Set(id, lead)
	return lead, nil
}

func notifyText(text, mediaURL string) string {
	if text == "" && mediaURL != "" {
		return "[attachment]"
	}
	return text
}
