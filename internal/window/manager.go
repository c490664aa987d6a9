package window

import (
	"log/slog"
	"sync"

	"leadchat/internal/models"
)

const (
	// MaxWindows bounds how many mini chat windows can be open at once.
	MaxWindows = 5

	// maxLogSize bounds each window's in-memory message log.
	maxLogSize = 200

	winWidth  = 320
	winHeight = 420
	margin    = 20

	cascadeStep = 30
	wrapX       = 200
	wrapY       = 150
)

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Window is one floating mini chat surface. Position and stacking order are
// process-local and never persisted.
type Window struct {
	LeadID      string
	Lead        models.Lead
	IsMinimized bool
	Position    Position
	ZIndex      int
	UnreadCount int
	Messages    []models.Message

	seen map[string]bool
}

type Config struct {
	Viewport Viewport

	// OnOpen/OnClose subscribe and unsubscribe the lead's room.
	OnOpen  func(leadID string)
	OnClose func(leadID string)

	// OnRead is the cross-cutting mark-as-read fan-out, fired when a window
	// is restored or opened over existing unread state.
	OnRead func(leadID string)

	Logger *slog.Logger
}

// Manager allocates, stacks, evicts and positions the floating windows. At
// most one window exists per lead.
type Manager struct {
	mu       sync.Mutex
	windows  map[string]*Window
	order    []string // open order, oldest first; drives eviction
	viewport Viewport
	zCounter int
	openSeq  int

	onOpen  func(string)
	onClose func(string)
	onRead  func(string)
	log     *slog.Logger
}

func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Viewport.Width <= 0 || cfg.Viewport.Height <= 0 {
		cfg.Viewport = Viewport{Width: 1920, Height: 1080}
	}
	return &Manager{
		windows:  make(map[string]*Window),
		viewport: cfg.Viewport,
		onOpen:   cfg.OnOpen,
		onClose:  cfg.OnClose,
		onRead:   cfg.OnRead,
		log:      cfg.Logger.With("component", "window"),
	}
}

// Open creates a window for the lead, or restores and raises the existing
// one. Exceeding the cap evicts the window that was opened earliest.
func (m *Manager) Open(lead models.Lead) {
	m.mu.Lock()

	if w, ok := m.windows[lead.ID]; ok {
		restored := w.IsMinimized || w.UnreadCount > 0
		w.IsMinimized = false
		w.UnreadCount = 0
		m.zCounter++
		w.ZIndex = m.zCounter
		m.mu.Unlock()

		if restored && m.onRead != nil {
			m.onRead(lead.ID)
		}
		return
	}

	var evicted string
	if len(m.order) >= MaxWindows {
		evicted = m.order[0]
		m.order = m.order[1:]
		delete(m.windows, evicted)
	}

	m.zCounter++
	w := &Window{
		LeadID:   lead.ID,
		Lead:     lead,
		Position: m.cascadeLocked(m.openSeq),
		ZIndex:   m.zCounter,
		seen:     make(map[string]bool),
	}
	m.openSeq++
	m.windows[lead.ID] = w
	m.order = append(m.order, lead.ID)
	m.mu.Unlock()

	if evicted != "" {
		m.log.Debug("evicted oldest window", "leadId", evicted)
		if m.onClose != nil {
			m.onClose(evicted)
		}
	}
	if m.onOpen != nil {
		m.onOpen(lead.ID)
	}
}

// Close destroys the lead's window. Idempotent.
func (m *Manager) Close(leadID string) {
	m.mu.Lock()
	_, ok := m.windows[leadID]
	if ok {
		delete(m.windows, leadID)
		for i, id := range m.order {
			if id == leadID {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()

	if ok && m.onClose != nil {
		m.onClose(leadID)
	}
}

func (m *Manager) Minimize(leadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[leadID]; ok {
		w.IsMinimized = true
	}
}

// Restore un-minimizes a window, resets its unread counter and fires the
// mark-as-read fan-out.
func (m *Manager) Restore(leadID string) {
	m.mu.Lock()
	w, ok := m.windows[leadID]
	if !ok {
		m.mu.Unlock()
		return
	}
	w.IsMinimized = false
	w.UnreadCount = 0
	m.zCounter++
	w.ZIndex = m.zCounter
	m.mu.Unlock()

	if m.onRead != nil {
		m.onRead(leadID)
	}
}

func (m *Manager) BringToFront(leadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[leadID]; ok {
		m.zCounter++
		w.ZIndex = m.zCounter
	}
}

// Append adds a message to the lead's window log, dropping duplicate
// messageIds. The unread counter moves only while the window is minimized.
// Returns false when no window is open for the lead.
func (m *Manager) Append(msg models.Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[msg.LeadID]
	if !ok {
		return false
	}
	if msg.ID != "" && w.seen[msg.ID] {
		return true
	}
	if msg.ID != "" {
		w.seen[msg.ID] = true
	}

	w.Messages = append(w.Messages, msg)
	if len(w.Messages) > maxLogSize {
		dropped := w.Messages[0]
		w.Messages = w.Messages[1:]
		delete(w.seen, dropped.ID)
	}

	if w.IsMinimized && msg.Direction == models.DirectionInbound {
		w.UnreadCount++
	}
	return true
}

// Drag repositions a window, clamped to the viewport.
func (m *Manager) Drag(leadID string, x, y int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[leadID]; ok {
		w.Position = m.clampLocked(Position{X: x, Y: y})
	}
}

// SetViewport records a resize and re-clamps every window on screen.
func (m *Manager) SetViewport(v Viewport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.Width <= 0 || v.Height <= 0 {
		return
	}
	m.viewport = v
	for _, w := range m.windows {
		w.Position = m.clampLocked(w.Position)
	}
}

// IsViewing reports whether the user is actively looking at the lead's chat:
// window open and not minimized.
func (m *Manager) IsViewing(leadID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[leadID]
	return ok && !w.IsMinimized
}

// Get returns a snapshot of one window.
func (m *Manager) Get(leadID string) (Window, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[leadID]
	if !ok {
		return Window{}, false
	}
	return snapshot(w), true
}

// Windows returns snapshots in open order, oldest first.
func (m *Manager) Windows() []Window {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Window, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, snapshot(m.windows[id]))
	}
	return out
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func snapshot(w *Window) Window {
	out := *w
	out.seen = nil
	out.Messages = make([]models.Message, len(w.Messages))
	copy(out.Messages, w.Messages)
	return out
}

// cascadeLocked computes the spawn position: anchored at the bottom-right,
// stepping up-left per opened window, wrapping at 200px/150px.
func (m *Manager) cascadeLocked(seq int) Position {
	offset := seq * cascadeStep
	return m.clampLocked(Position{
		X: m.viewport.Width - winWidth - margin - offset%wrapX,
		Y: m.viewport.Height - winHeight - margin - offset%wrapY,
	})
}

func (m *Manager) clampLocked(p Position) Position {
	maxX := m.viewport.Width - winWidth
	maxY := m.viewport.Height - winHeight
	if maxX < 0 {
		maxX = 0
	}
	if maxY < 0 {
		maxY = 0
	}
	p.X = min(max(p.X, 0), maxX)
	p.Y = min(max(p.Y, 0), maxY)
	return p
}
