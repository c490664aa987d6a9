package recent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"leadchat/internal/models"
	"leadchat/internal/store"
)

type fakeSource struct {
	leads []models.Lead
	err   error
}

func (f *fakeSource) GetLeads(ctx context.Context) ([]models.Lead, error) {
	return f.leads, f.err
}

type fakeStore struct {
	chats []models.RecentChatEntry
	prefs store.Preferences
}

func newFakeStore() *fakeStore {
	return &fakeStore{prefs: store.DefaultPreferences()}
}

func (f *fakeStore) LoadRecentChats() ([]models.RecentChatEntry, error) {
	out := make([]models.RecentChatEntry, len(f.chats))
	copy(out, f.chats)
	return out, nil
}

func (f *fakeStore) SaveRecentChats(entries []models.RecentChatEntry) error {
	f.chats = make([]models.RecentChatEntry, len(entries))
	copy(f.chats, entries)
	return nil
}

func (f *fakeStore) LoadPreferences() store.Preferences      { return f.prefs }
func (f *fakeStore) SavePreferences(p store.Preferences) error { f.prefs = p; return nil }

var (
	admin     = models.User{ID: "u0", Role: models.RoleAdmin}
	manager   = models.User{ID: "u1", Role: models.RoleManager, Categories: []string{"saas"}}
	executive = models.User{ID: "u2", Role: models.RoleCustomerExecutive}
)

func inboundMsg(leadID, content string, at time.Time) models.Message {
	return models.Message{
		ID: "m-" + leadID, LeadID: leadID, Direction: models.DirectionInbound,
		Content: content, CreatedAt: at,
	}
}

func TestAccessible(t *testing.T) {
	saas := models.Lead{ID: "l1", Category: "saas", AssignedToID: "u9"}
	retail := models.Lead{ID: "l2", Category: "retail", AssignedToID: "u2"}
	uncategorized := models.Lead{ID: "l3", AssignedToID: "u9"}

	cases := []struct {
		name string
		lead models.Lead
		user models.User
		want bool
	}{
		{"admin sees all", retail, admin, true},
		{"manager sees own category", saas, manager, true},
		{"manager sees uncategorized", uncategorized, manager, true},
		{"manager blocked on other category", retail, manager, false},
		{"executive sees assigned", retail, executive, true},
		{"executive blocked on unassigned", saas, executive, false},
		{"unknown role defaults to executive rule", retail, models.User{ID: "u2", Role: "intern"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Accessible(tc.lead, tc.user); got != tc.want {
				t.Errorf("Accessible(%s, %s) = %v, want %v", tc.lead.ID, tc.user.Role, got, tc.want)
			}
		})
	}
}

func TestAggregator_DropsInaccessibleLead(t *testing.T) {
	a := NewAggregator(Config{User: executive, Store: newFakeStore()})

	// Lead assigned to somebody else: the executive must never see it.
	foreign := models.Lead{ID: "l1", AssignedToID: "other-user"}
	a.AddOrUpdate(foreign, inboundMsg("l1", "hi", time.Now()), true)

	if len(a.Chats()) != 0 {
		t.Error("entry created for inaccessible lead")
	}
	if a.TotalUnread() != 0 {
		t.Error("unread incremented for inaccessible lead")
	}
}

func TestAggregator_UnreadRules(t *testing.T) {
	a := NewAggregator(Config{User: admin, Store: newFakeStore()})
	lead := models.Lead{ID: "l1", Name: "Alpha"}
	now := time.Now()

	a.AddOrUpdate(lead, inboundMsg("l1", "one", now), true)
	a.AddOrUpdate(lead, inboundMsg("l1", "two", now.Add(time.Second)), true)

	chats := a.Chats()
	if len(chats) != 1 {
		t.Fatalf("expected a single entry, got %d", len(chats))
	}
	if chats[0].UnreadCount != 2 {
		t.Errorf("expected unread 2, got %d", chats[0].UnreadCount)
	}
	if !chats[0].IsInbound {
		t.Error("entry should be marked inbound")
	}

	// An outbound reply resets the counter.
	out := models.Message{ID: "m3", LeadID: "l1", Direction: models.DirectionOutbound, Content: "reply", CreatedAt: now.Add(2 * time.Second)}
	a.AddOrUpdate(lead, out, false)

	chats = a.Chats()
	if chats[0].UnreadCount != 0 {
		t.Errorf("outbound message did not reset unread, got %d", chats[0].UnreadCount)
	}
	if chats[0].IsInbound {
		t.Error("entry should be marked outbound")
	}
	if chats[0].LastMessage != "reply" {
		t.Errorf("last message not replaced: %q", chats[0].LastMessage)
	}
}

func TestAggregator_RankingInvariant(t *testing.T) {
	a := NewAggregator(Config{User: admin, Store: newFakeStore()})
	base := time.Now()

	// Interleave updates out of time order.
	for i, offset := range []int{5, 1, 9, 3, 7} {
		lead := models.Lead{ID: fmt.Sprintf("l%d", i)}
		a.AddOrUpdate(lead, inboundMsg(lead.ID, "msg", base.Add(time.Duration(offset)*time.Minute)), true)

		chats := a.Chats()
		for j := 1; j < len(chats); j++ {
			if chats[j].LastMessageTime.After(chats[j-1].LastMessageTime) {
				t.Fatalf("ranking violated at observation %d: %v after %v", i,
					chats[j].LastMessageTime, chats[j-1].LastMessageTime)
			}
		}
	}
}

func TestAggregator_CapDropsOldest(t *testing.T) {
	a := NewAggregator(Config{User: admin, Store: newFakeStore()})
	base := time.Now()

	for i := 0; i < MaxEntries+5; i++ {
		lead := models.Lead{ID: fmt.Sprintf("l%d", i)}
		a.AddOrUpdate(lead, inboundMsg(lead.ID, "msg", base.Add(time.Duration(i)*time.Second)), true)
	}

	chats := a.Chats()
	if len(chats) != MaxEntries {
		t.Fatalf("expected cap %d, got %d", MaxEntries, len(chats))
	}
	// The five oldest leads fell off.
	for _, e := range chats {
		if e.LeadID == "l0" || e.LeadID == "l4" {
			t.Errorf("oldest entry %s survived the cap", e.LeadID)
		}
	}
}

func TestAggregator_RefreshMergesPersisted(t *testing.T) {
	st := newFakeStore()
	lastTime := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	st.chats = []models.RecentChatEntry{
		{LeadID: "l1", LastMessage: "welcome back", LastMessageTime: lastTime, UnreadCount: 2, IsInbound: true},
	}

	src := &fakeSource{leads: []models.Lead{
		{ID: "l1", Name: "Mine", AssignedToID: "u2"},
		{ID: "l2", Name: "Foreign", AssignedToID: "u9"},
	}}

	a := NewAggregator(Config{User: executive, Source: src, Store: st})
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	chats := a.Chats()
	if len(chats) != 1 {
		t.Fatalf("expected only the accessible lead, got %d entries", len(chats))
	}
	e := chats[0]
	if e.LeadID != "l1" || e.Lead.Name != "Mine" {
		t.Errorf("wrong entry: %+v", e)
	}
	if e.LastMessage != "welcome back" || e.UnreadCount != 2 {
		t.Errorf("persisted metadata not merged: %+v", e)
	}
	if !e.LastMessageTime.Equal(lastTime) {
		t.Errorf("persisted time not merged: %v", e.LastMessageTime)
	}
}

func TestAggregator_MarkLeadReadIdempotent(t *testing.T) {
	a := NewAggregator(Config{User: admin, Store: newFakeStore()})
	lead := models.Lead{ID: "l1"}
	a.AddOrUpdate(lead, inboundMsg("l1", "one", time.Now()), true)

	a.MarkLeadRead("l1")
	a.MarkLeadRead("l1")
	if a.TotalUnread() != 0 {
		t.Errorf("expected 0 unread, got %d", a.TotalUnread())
	}
}

func TestAggregator_ViewPreferenceRoundTrip(t *testing.T) {
	a := NewAggregator(Config{User: admin, Store: newFakeStore()})

	for _, v := range []models.ViewMode{models.ViewModeKanban, models.ViewModeTable} {
		a.SetViewPreference(v)
		if got := a.GetViewPreference(); got != v {
			t.Errorf("round trip failed: set %s, got %s", v, got)
		}
	}
}
