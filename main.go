package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"leadchat/internal/config"
	"leadchat/internal/hub"
	"leadchat/internal/leads"
	"leadchat/internal/models"
	"leadchat/internal/notify"
	"leadchat/internal/panel"
	"leadchat/internal/recent"
	"leadchat/internal/store"
	"leadchat/internal/transport"
	"leadchat/internal/window"

	"golang.org/x/sync/errgroup"
)

// logToaster and logSounder stand in for the UI surface; the real frontend
// subscribes to the same aggregator callbacks.
type logToaster struct{ log *slog.Logger }

func (t logToaster) ShowToast(n models.Notification) {
	t.log.Info("toast", "lead", n.LeadName, "message", n.Message, "kind", n.Kind)
}

type logSounder struct{ log *slog.Logger }

func (s logSounder) Play() { s.log.Debug("notification sound") }

// leadSource adapts the REST client to the recent aggregator; the role filter
// runs client-side, so the full set is pulled unfiltered.
type leadSource struct{ api *leads.Client }

func (s leadSource) GetLeads(ctx context.Context) ([]models.Lead, error) {
	return s.api.GetLeads(ctx, leads.Filter{})
}

type calendarLogger struct{ log *slog.Logger }

func (c calendarLogger) HandleCalendarEvent(ev models.CalendarEvent) {
	c.log.Info("calendar event", "action", ev.Action, "demoId", ev.DemoID, "leadId", ev.LeadID)
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	st, err := store.NewBboltStore(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	prefs := st.LoadPreferences()

	api := leads.NewClient(cfg.APIURL, cfg.Token)

	tr := transport.NewManager(ctx, transport.Config{
		Dialer:   transport.NewWebsocketDialer(cfg.WSURL),
		UserID:   cfg.UserID,
		Token:    cfg.Token,
		DedupTTL: cfg.DedupTTL,
		Logger:   logger,
	})
	defer tr.Close()

	var pusher notify.Pusher
	if cfg.PushEnabled() {
		pusher, err = notify.NewWebPushSender(cfg.PushSubscription, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.PushSubscriber)
		if err != nil {
			return err
		}
	}

	notifier := notify.NewAggregator(notify.Config{
		Store:        st,
		Toaster:      logToaster{log: logger},
		Sounder:      logSounder{log: logger},
		Pusher:       pusher,
		SoundEnabled: prefs.SoundEnabled,
		Logger:       logger,
	})

	panels := panel.NewController(panel.Config{AutoOpen: prefs.AutoOpen})
	notifier.OnAdd(func(models.Notification) { panels.NotificationArrived() })

	recents := recent.NewAggregator(recent.Config{
		User:   cfg.User(),
		Source: leadSource{api: api},
		Store:  st,
		Logger: logger,
	})

	h := hub.New(ctx, hub.Config{
		Transport: tr,
		API:       api,
		Notify:    notifier,
		Recent:    recents,
		Calendar:  calendarLogger{log: logger},
		Viewport:  window.Viewport{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
		LookupTTL: cfg.LookupTTL,
		Logger:    logger,
	})

	if err := tr.Connect(ctx, models.ChannelChat); err != nil {
		return err
	}
	if err := tr.Connect(ctx, models.ChannelCalendar); err != nil {
		logger.Warn("calendar channel unavailable", "error", err)
	} else if err := tr.SubscribeCalendar(); err != nil {
		logger.Warn("calendar subscription failed", "error", err)
	}

	if err := recents.Refresh(ctx); err != nil {
		logger.Warn("initial recent-chat refresh failed", "error", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error { return h.Run(gCtx) })

	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down...")
		tr.Close()
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
