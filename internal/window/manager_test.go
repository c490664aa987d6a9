package window

import (
	"fmt"
	"testing"
	"time"

	"leadchat/internal/models"
)

func leadN(i int) models.Lead {
	return models.Lead{ID: fmt.Sprintf("l%d", i), Name: fmt.Sprintf("Lead %d", i)}
}

func inbound(leadID, msgID string) models.Message {
	return models.Message{
		ID: msgID, LeadID: leadID, Direction: models.DirectionInbound,
		Content: "hi", CreatedAt: time.Now(),
	}
}

func TestManager_CapEvictsEarliestOpened(t *testing.T) {
	var closed []string
	m := NewManager(Config{
		OnClose: func(id string) { closed = append(closed, id) },
	})

	// Opening 6 distinct leads leaves exactly 5 windows, the first gone.
	for i := 1; i <= 6; i++ {
		m.Open(leadN(i))
	}

	if m.Count() != MaxWindows {
		t.Fatalf("expected %d windows, got %d", MaxWindows, m.Count())
	}
	if _, ok := m.Get("l1"); ok {
		t.Error("first-opened window survived eviction")
	}
	if len(closed) != 1 || closed[0] != "l1" {
		t.Errorf("expected OnClose for l1, got %v", closed)
	}
}

func TestManager_EvictionIgnoresActivity(t *testing.T) {
	m := NewManager(Config{})

	for i := 1; i <= 5; i++ {
		m.Open(leadN(i))
	}
	// Raising l1 must not save it: eviction is FIFO on open order, not on
	// last activity.
	m.BringToFront("l1")
	m.Open(leadN(6))

	if _, ok := m.Get("l1"); ok {
		t.Error("bring-to-front protected l1 from eviction")
	}
	if _, ok := m.Get("l2"); !ok {
		t.Error("l2 should still be open")
	}
}

func TestManager_OpenExistingRestoresInsteadOfDuplicating(t *testing.T) {
	var reads []string
	m := NewManager(Config{
		OnRead: func(id string) { reads = append(reads, id) },
	})

	m.Open(leadN(1))
	m.Minimize("l1")
	m.Append(inbound("l1", "m1"))

	w, _ := m.Get("l1")
	if w.UnreadCount != 1 {
		t.Fatalf("expected unread 1 while minimized, got %d", w.UnreadCount)
	}
	prevZ := w.ZIndex

	m.Open(leadN(1))
	if m.Count() != 1 {
		t.Fatalf("duplicate window created: %d", m.Count())
	}
	w, _ = m.Get("l1")
	if w.IsMinimized {
		t.Error("open did not restore the window")
	}
	if w.UnreadCount != 0 {
		t.Error("open did not reset unread")
	}
	if w.ZIndex <= prevZ {
		t.Error("open did not raise the window")
	}
	if len(reads) != 1 || reads[0] != "l1" {
		t.Errorf("mark-as-read fan-out missing: %v", reads)
	}
}

func TestManager_ZIndexStrictlyIncreasing(t *testing.T) {
	m := NewManager(Config{})
	m.Open(leadN(1))
	m.Open(leadN(2))

	w1, _ := m.Get("l1")
	w2, _ := m.Get("l2")
	if w2.ZIndex <= w1.ZIndex {
		t.Errorf("z order not increasing: %d vs %d", w1.ZIndex, w2.ZIndex)
	}

	m.BringToFront("l1")
	raised, _ := m.Get("l1")
	if raised.ZIndex <= w2.ZIndex {
		t.Errorf("bring-to-front did not assign a higher z: %d vs %d", raised.ZIndex, w2.ZIndex)
	}
}

func TestManager_AppendDeduplicatesMessageID(t *testing.T) {
	m := NewManager(Config{})
	m.Open(leadN(1))

	// The same messageId arriving twice must leave exactly one log entry.
	m.Append(inbound("l1", "m1"))
	m.Append(inbound("l1", "m1"))
	m.Append(inbound("l1", "m2"))

	w, _ := m.Get("l1")
	if len(w.Messages) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(w.Messages))
	}
	count := 0
	for _, msg := range w.Messages {
		if msg.ID == "m1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one m1 entry, got %d", count)
	}
}

func TestManager_AppendWithoutWindow(t *testing.T) {
	m := NewManager(Config{})
	if m.Append(inbound("l1", "m1")) {
		t.Error("Append reported success with no window open")
	}
}

func TestManager_UnreadOnlyWhileMinimized(t *testing.T) {
	m := NewManager(Config{})
	m.Open(leadN(1))

	m.Append(inbound("l1", "m1"))
	w, _ := m.Get("l1")
	if w.UnreadCount != 0 {
		t.Errorf("unread incremented on an open window: %d", w.UnreadCount)
	}

	m.Minimize("l1")
	m.Append(inbound("l1", "m2"))
	// Outbound echoes never count as unread.
	m.Append(models.Message{ID: "m3", LeadID: "l1", Direction: models.DirectionOutbound})

	w, _ = m.Get("l1")
	if w.UnreadCount != 1 {
		t.Errorf("expected unread 1, got %d", w.UnreadCount)
	}

	m.Restore("l1")
	w, _ = m.Get("l1")
	if w.UnreadCount != 0 {
		t.Error("restore did not reset unread")
	}
	if !m.IsViewing("l1") {
		t.Error("restored window should count as actively viewed")
	}
}

func TestManager_PositionsStayOnScreen(t *testing.T) {
	vp := Viewport{Width: 1280, Height: 720}
	m := NewManager(Config{Viewport: vp})

	for i := 1; i <= MaxWindows; i++ {
		m.Open(leadN(i))
	}

	for _, w := range m.Windows() {
		if w.Position.X < 0 || w.Position.X > vp.Width-winWidth {
			t.Errorf("window %s x=%d off-screen", w.LeadID, w.Position.X)
		}
		if w.Position.Y < 0 || w.Position.Y > vp.Height-winHeight {
			t.Errorf("window %s y=%d off-screen", w.LeadID, w.Position.Y)
		}
	}

	// The cascade must not stack every window on the same point.
	first, _ := m.Get("l1")
	second, _ := m.Get("l2")
	if first.Position == second.Position {
		t.Error("cascade produced identical positions")
	}
}

func TestManager_DragClampedAndReclampedOnResize(t *testing.T) {
	m := NewManager(Config{Viewport: Viewport{Width: 1280, Height: 720}})
	m.Open(leadN(1))

	m.Drag("l1", 5000, -200)
	w, _ := m.Get("l1")
	if w.Position.X != 1280-winWidth || w.Position.Y != 0 {
		t.Errorf("drag not clamped: %+v", w.Position)
	}

	m.SetViewport(Viewport{Width: 800, Height: 600})
	w, _ = m.Get("l1")
	if w.Position.X > 800-winWidth || w.Position.Y > 600-winHeight {
		t.Errorf("resize did not re-clamp: %+v", w.Position)
	}
}

func TestManager_CloseUnsubscribes(t *testing.T) {
	var opened, closed []string
	m := NewManager(Config{
		OnOpen:  func(id string) { opened = append(opened, id) },
		OnClose: func(id string) { closed = append(closed, id) },
	})

	m.Open(leadN(1))
	m.Close("l1")
	m.Close("l1") // idempotent

	if len(opened) != 1 || len(closed) != 1 {
		t.Errorf("expected one open and one close callback, got %v / %v", opened, closed)
	}
	if m.Count() != 0 {
		t.Errorf("window survived close")
	}
}
