package recent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"leadchat/internal/content"
	"leadchat/internal/models"
	"leadchat/internal/store"
)

// MaxEntries caps the recent-chat list; the oldest entries drop first.
const MaxEntries = 50

type LeadSource interface {
	GetLeads(ctx context.Context) ([]models.Lead, error)
}

type Store interface {
	LoadRecentChats() ([]models.RecentChatEntry, error)
	SaveRecentChats(entries []models.RecentChatEntry) error
	LoadPreferences() store.Preferences
	SavePreferences(p store.Preferences) error
}

// Accessible is the role filter: a deterministic, total function of the
// user's role.
func Accessible(lead models.Lead, user models.User) bool {
	switch user.Role {
	case models.RoleAdmin:
		return true
	case models.RoleManager:
		return lead.Category == "" || slices.Contains(user.Categories, lead.Category)
	default: // customer_executive
		return lead.AssignedToID == user.ID
	}
}

type Config struct {
	User     models.User
	Source   LeadSource
	Store    Store
	OnChange func()
	Logger   *slog.Logger
}

// Aggregator owns the ranked recent-chat list for the current user. Entries
// exist only for leads the user may see; events for anything else are
// silently dropped.
type Aggregator struct {
	mu      sync.RWMutex
	user    models.User
	entries []models.RecentChatEntry // sorted by LastMessageTime desc

	source   LeadSource
	store    Store
	onChange func()
	log      *slog.Logger
}

func NewAggregator(cfg Config) *Aggregator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Aggregator{
		user:     cfg.User,
		source:   cfg.Source,
		store:    cfg.Store,
		onChange: cfg.OnChange,
		log:      cfg.Logger.With("component", "recent"),
	}
}

// Refresh re-pulls the accessible lead set, applies the role filter, merges
// locally persisted last-message metadata by leadID and republishes the
// ranked view.
func (a *Aggregator) Refresh(ctx context.Context) error {
	leads, err := a.source.GetLeads(ctx)
	if err != nil {
		return fmt.Errorf("refresh recent chats: %w", err)
	}

	var persisted map[string]models.RecentChatEntry
	if a.store != nil {
		saved, err := a.store.LoadRecentChats()
		if err != nil {
			a.log.Warn("failed to load persisted recent chats, merging nothing", "error", err)
		}
		persisted = make(map[string]models.RecentChatEntry, len(saved))
		for _, e := range saved {
			persisted[e.LeadID] = e
		}
	}

	a.mu.Lock()
	entries := make([]models.RecentChatEntry, 0, len(leads))
	for _, lead := range leads {
		if !Accessible(lead, a.user) {
			continue
		}
		entry := models.RecentChatEntry{
			LeadID:    lead.ID,
			Lead:      lead,
			HasAccess: true,
		}
		if saved, ok := persisted[lead.ID]; ok {
			entry.LastMessage = saved.LastMessage
			entry.LastMessageTime = saved.LastMessageTime
			entry.UnreadCount = saved.UnreadCount
			entry.IsInbound = saved.IsInbound
		}
		entries = append(entries, entry)
	}
	a.entries = entries
	a.rankAndTrimLocked()
	a.persistLocked()
	a.mu.Unlock()

	a.notifyChange()
	return nil
}

// AddOrUpdate folds a message event into the list. Events for leads outside
// the user's role filter are dropped without creating state.
func (a *Aggregator) AddOrUpdate(lead models.Lead, message models.Message, inbound bool) {
	a.mu.Lock()
	if !Accessible(lead, a.user) {
		a.mu.Unlock()
		a.log.Debug("dropping event for inaccessible lead", "leadId", lead.ID, "role", a.user.Role)
		return
	}

	preview := content.Preview(message.Content)
	if preview == "" && message.MediaURL != "" {
		preview = "[attachment]"
	}

	idx := -1
	for i := range a.entries {
		if a.entries[i].LeadID == lead.ID {
			idx = i
			break
		}
	}

	if idx >= 0 {
		e := &a.entries[idx]
		e.Lead = lead
		e.LastMessage = preview
		e.LastMessageTime = message.CreatedAt
		e.IsInbound = inbound
		if inbound {
			e.UnreadCount++
		} else {
			e.UnreadCount = 0
		}
	} else {
		unread := 0
		if inbound {
			unread = 1
		}
		a.entries = append(a.entries, models.RecentChatEntry{
			LeadID:          lead.ID,
			Lead:            lead,
			LastMessage:     preview,
			LastMessageTime: message.CreatedAt,
			UnreadCount:     unread,
			IsInbound:       inbound,
			HasAccess:       true,
		})
	}

	a.rankAndTrimLocked()
	a.persistLocked()
	a.mu.Unlock()

	a.notifyChange()
}

// MarkLeadRead zeroes a lead's unread counter. Idempotent.
func (a *Aggregator) MarkLeadRead(leadID string) {
	a.mu.Lock()
	changed := false
	for i := range a.entries {
		if a.entries[i].LeadID == leadID && a.entries[i].UnreadCount != 0 {
			a.entries[i].UnreadCount = 0
			changed = true
		}
	}
	if changed {
		a.persistLocked()
	}
	a.mu.Unlock()

	if changed {
		a.notifyChange()
	}
}

// Chats returns the ranked, access-filtered view. The filter is re-applied on
// read so a role change takes effect without a refresh.
func (a *Aggregator) Chats() []models.RecentChatEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.RecentChatEntry, 0, len(a.entries))
	for _, e := range a.entries {
		if Accessible(e.Lead, a.user) {
			out = append(out, e)
		}
	}
	return out
}

// CanAccess applies the role filter for the current user.
func (a *Aggregator) CanAccess(lead models.Lead) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Accessible(lead, a.user)
}

// Has reports whether an entry exists for the lead.
func (a *Aggregator) Has(leadID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, e := range a.entries {
		if e.LeadID == leadID {
			return true
		}
	}
	return false
}

func (a *Aggregator) TotalUnread() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	total := 0
	for _, e := range a.entries {
		total += e.UnreadCount
	}
	return total
}

func (a *Aggregator) SetUser(user models.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.user = user
}

// SetViewPreference persists the lead list view mode.
func (a *Aggregator) SetViewPreference(v models.ViewMode) {
	if a.store == nil {
		return
	}
	prefs := a.store.LoadPreferences()
	prefs.LeadView = v
	if err := a.store.SavePreferences(prefs); err != nil {
		a.log.Warn("failed to persist view preference", "error", err)
	}
}

func (a *Aggregator) GetViewPreference() models.ViewMode {
	if a.store == nil {
		return models.ViewModeTable
	}
	return a.store.LoadPreferences().LeadView
}

func (a *Aggregator) rankAndTrimLocked() {
	sort.SliceStable(a.entries, func(i, j int) bool {
		return a.entries[i].LastMessageTime.After(a.entries[j].LastMessageTime)
	})
	if len(a.entries) > MaxEntries {
		a.entries = a.entries[:MaxEntries]
	}
}

func (a *Aggregator) persistLocked() {
	if a.store == nil {
		return
	}
	if err := a.store.SaveRecentChats(a.entries); err != nil {
		a.log.Warn("failed to persist recent chats", "error", err)
	}
}

func (a *Aggregator) notifyChange() {
	if a.onChange != nil {
		a.onChange()
	}
}
