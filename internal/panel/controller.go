package panel

import (
	"sync"
	"time"
)

type State string

const (
	StateHidden      State = "hidden"
	StateAutoShown   State = "auto-shown"
	StateManualShown State = "manually-shown"
)

const (
	defaultAutoCloseAfter = 10 * time.Second
	defaultIndicatorFor   = 3 * time.Second
)

// oneShot is a single-shot timer with explicit arm/cancel. Arming again
// cancels the previous schedule, so a stale firing can never land.
type oneShot struct {
	mu sync.Mutex
	t  *time.Timer
}

func (o *oneShot) Arm(d time.Duration, fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.t != nil {
		o.t.Stop()
	}
	o.t = time.AfterFunc(d, fn)
}

func (o *oneShot) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.t != nil {
		o.t.Stop()
		o.t = nil
	}
}

type Config struct {
	// AutoOpen mirrors the user preference; when false, arriving
	// notifications never auto-open the panel.
	AutoOpen bool

	// AutoCloseAfter and IndicatorFor default to 10s and 3s.
	AutoCloseAfter time.Duration
	IndicatorFor   time.Duration

	// OnChange fires after every visible state transition.
	OnChange func()
}

// Controller decides when the notification panel surfaces and hides. The
// notification panel and the recent-chats panel are mutually exclusive; at
// most one overlay is visible at a time.
type Controller struct {
	mu            sync.Mutex
	state         State
	recentOpen    bool
	autoOpen      bool
	wasAutoOpened bool

	autoCloseAfter time.Duration
	indicatorFor   time.Duration
	autoClose      oneShot
	indicator      oneShot
	onChange       func()
}

func NewController(cfg Config) *Controller {
	if cfg.AutoCloseAfter <= 0 {
		cfg.AutoCloseAfter = defaultAutoCloseAfter
	}
	if cfg.IndicatorFor <= 0 {
		cfg.IndicatorFor = defaultIndicatorFor
	}
	return &Controller{
		state:          StateHidden,
		autoOpen:       cfg.AutoOpen,
		autoCloseAfter: cfg.AutoCloseAfter,
		indicatorFor:   cfg.IndicatorFor,
		onChange:       cfg.OnChange,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WasAutoOpened reports the short-lived visual affordance shown after an
// auto-open. It clears on its own timer, independent of auto-close.
func (c *Controller) WasAutoOpened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wasAutoOpened
}

func (c *Controller) RecentChatsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recentOpen
}

func (c *Controller) SetAutoOpenEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoOpen = enabled
}

// NotificationArrived is called by the aggregator for every new notification.
// It auto-opens the panel only from the hidden state and only when the
// preference allows it.
func (c *Controller) NotificationArrived() {
	c.mu.Lock()
	if c.state != StateHidden || !c.autoOpen {
		c.mu.Unlock()
		return
	}
	c.state = StateAutoShown
	c.recentOpen = false
	c.wasAutoOpened = true
	c.mu.Unlock()

	c.autoClose.Arm(c.autoCloseAfter, c.autoCloseFired)
	c.indicator.Arm(c.indicatorFor, c.indicatorExpired)
	c.notifyChange()
}

func (c *Controller) autoCloseFired() {
	c.mu.Lock()
	if c.state != StateAutoShown {
		c.mu.Unlock()
		return
	}
	c.state = StateHidden
	c.mu.Unlock()
	c.notifyChange()
}

func (c *Controller) indicatorExpired() {
	c.mu.Lock()
	c.wasAutoOpened = false
	c.mu.Unlock()
}

// ToggleNotifications handles a user-initiated open/close. Any pending timer
// is cancelled: once the user touches the panel, automation backs off.
func (c *Controller) ToggleNotifications() {
	c.autoClose.Cancel()
	c.indicator.Cancel()

	c.mu.Lock()
	if c.state == StateHidden {
		c.state = StateManualShown
		c.recentOpen = false
	} else {
		c.state = StateHidden
	}
	c.wasAutoOpened = false
	c.mu.Unlock()
	c.notifyChange()
}

// ToggleRecentChats opens or closes the recent-chats overlay; opening it
// hides the notification panel.
func (c *Controller) ToggleRecentChats() {
	c.autoClose.Cancel()
	c.indicator.Cancel()

	c.mu.Lock()
	c.recentOpen = !c.recentOpen
	if c.recentOpen {
		c.state = StateHidden
		c.wasAutoOpened = false
	}
	c.mu.Unlock()
	c.notifyChange()
}

// CloseAll hides both overlays and cancels pending timers.
func (c *Controller) CloseAll() {
	c.autoClose.Cancel()
	c.indicator.Cancel()

	c.mu.Lock()
	c.state = StateHidden
	c.recentOpen = false
	c.wasAutoOpened = false
	c.mu.Unlock()
	c.notifyChange()
}

func (c *Controller) notifyChange() {
	if c.onChange != nil {
		c.onChange()
	}
}
