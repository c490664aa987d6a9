package notify

import (
	"log/slog"
	"sync"
	"time"

	"leadchat/internal/content"
	"leadchat/internal/models"

	"github.com/google/uuid"
)

// MaxNotifications caps the feed; the oldest entries are evicted first.
const MaxNotifications = 50

// Toaster surfaces a transient in-app toast.
type Toaster interface {
	ShowToast(n models.Notification)
}

// Sounder plays the notification cue.
type Sounder interface {
	Play()
}

// Pusher delivers an OS-level notification for an unfocused app.
type Pusher interface {
	Push(n models.Notification) error
}

type Store interface {
	LoadNotifications() ([]models.Notification, error)
	SaveNotifications(notifications []models.Notification) error
	ClearNotifications() error
}

type Config struct {
	Store        Store
	Toaster      Toaster
	Sounder      Sounder
	Pusher       Pusher
	SoundEnabled bool
	Logger       *slog.Logger
}

// Aggregator owns the bounded, newest-first notification feed. It is the only
// writer of that state; other components read projections or subscribe to
// OnAdd.
type Aggregator struct {
	mu      sync.Mutex
	items   []models.Notification
	focused bool
	sound   bool

	store   Store
	toaster Toaster
	sounder Sounder
	pusher  Pusher
	log     *slog.Logger

	onAdd []func(models.Notification)
}

func NewAggregator(cfg Config) *Aggregator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	a := &Aggregator{
		store:   cfg.Store,
		toaster: cfg.Toaster,
		sounder: cfg.Sounder,
		pusher:  cfg.Pusher,
		sound:   cfg.SoundEnabled,
		log:     cfg.Logger.With("component", "notify"),
	}

	if cfg.Store != nil {
		items, err := cfg.Store.LoadNotifications()
		if err != nil {
			a.log.Warn("failed to load persisted notifications, starting empty", "error", err)
			items = nil
		}
		if len(items) > MaxNotifications {
			items = items[:MaxNotifications]
		}
		a.items = items
	}

	return a
}

// OnAdd registers a callback fired for every newly created notification.
// Callbacks run outside the aggregator lock. Not safe to call concurrently
// with Add; register during wiring.
func (a *Aggregator) OnAdd(fn func(models.Notification)) {
	a.onAdd = append(a.onAdd, fn)
}

// SetFocused records whether the app currently has the user's attention.
// OS-level pushes are suppressed while focused.
func (a *Aggregator) SetFocused(focused bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.focused = focused
}

func (a *Aggregator) SetSoundEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sound = enabled
}

// Add creates a notification for a lead message and fires the side effects.
// A messageID already present in the feed for the same lead is a no-op, so a
// replayed event cannot duplicate a toast, sound or push.
func (a *Aggregator) Add(lead models.Lead, message, messageID string, isNewChat bool) {
	kind := models.NotificationNewMessage
	if isNewChat {
		kind = models.NotificationNewChat
	}

	n := models.Notification{
		ID:          uuid.NewString(),
		LeadID:      lead.ID,
		LeadName:    lead.Name,
		PhoneNumber: lead.PhoneNumber,
		Message:     content.Preview(message),
		MessageID:   messageID,
		Timestamp:   time.Now(),
		Kind:        kind,
	}

	a.mu.Lock()
	if messageID != "" {
		for _, existing := range a.items {
			if existing.LeadID == lead.ID && existing.MessageID == messageID {
				a.mu.Unlock()
				a.log.Debug("ignoring duplicate notification", "leadId", lead.ID, "messageId", messageID)
				return
			}
		}
	}

	a.items = append([]models.Notification{n}, a.items...)
	if len(a.items) > MaxNotifications {
		a.items = a.items[:MaxNotifications]
	}
	a.persistLocked()

	sound := a.sound
	push := a.pusher != nil && !a.focused
	a.mu.Unlock()

	if a.toaster != nil {
		a.toaster.ShowToast(n)
	}
	if sound && a.sounder != nil {
		a.sounder.Play()
	}
	if push {
		if err := a.pusher.Push(n); err != nil {
			a.log.Warn("push notification failed", "leadId", n.LeadID, "error", err)
		}
	}

	for _, fn := range a.onAdd {
		fn(n)
	}
}

// MarkAsRead marks one notification read. Idempotent.
func (a *Aggregator) MarkAsRead(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	changed := false
	for i := range a.items {
		if a.items[i].ID == id && !a.items[i].IsRead {
			a.items[i].IsRead = true
			changed = true
		}
	}
	if changed {
		a.persistLocked()
	}
}

// MarkAllAsRead marks every notification read. Idempotent.
func (a *Aggregator) MarkAllAsRead() {
	a.mu.Lock()
	defer a.mu.Unlock()

	changed := false
	for i := range a.items {
		if !a.items[i].IsRead {
			a.items[i].IsRead = true
			changed = true
		}
	}
	if changed {
		a.persistLocked()
	}
}

// MarkLeadRead marks every notification for one lead read. Idempotent.
func (a *Aggregator) MarkLeadRead(leadID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	changed := false
	for i := range a.items {
		if a.items[i].LeadID == leadID && !a.items[i].IsRead {
			a.items[i].IsRead = true
			changed = true
		}
	}
	if changed {
		a.persistLocked()
	}
}

// ClearAll empties the feed and the persisted store.
func (a *Aggregator) ClearAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.items = nil
	if a.store != nil {
		if err := a.store.ClearNotifications(); err != nil {
			a.log.Warn("failed to clear persisted notifications", "error", err)
		}
	}
}

// Notifications returns a copy of the feed, newest first.
func (a *Aggregator) Notifications() []models.Notification {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]models.Notification, len(a.items))
	copy(out, a.items)
	return out
}

func (a *Aggregator) UnreadCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := 0
	for _, n := range a.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

func (a *Aggregator) persistLocked() {
	if a.store == nil {
		return
	}
	if err := a.store.SaveNotifications(a.items); err != nil {
		a.log.Warn("failed to persist notifications", "error", err)
	}
}
