package notify

import (
	"encoding/json"
	"fmt"

	"leadchat/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// WebPushSender delivers notifications through the browser push service the
// user granted permission to. When no subscription is configured the feature
// is simply absent (nil Pusher).
type WebPushSender struct {
	sub  *webpush.Subscription
	opts *webpush.Options
}

func NewWebPushSender(subscriptionJSON, vapidPublicKey, vapidPrivateKey, subscriber string) (*WebPushSender, error) {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(subscriptionJSON), &sub); err != nil {
		return nil, fmt.Errorf("parse push subscription: %w", err)
	}
	if sub.Endpoint == "" {
		return nil, fmt.Errorf("push subscription has no endpoint")
	}

	return &WebPushSender{
		sub: &sub,
		opts: &webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  vapidPublicKey,
			VAPIDPrivateKey: vapidPrivateKey,
			TTL:             60,
		},
	}, nil
}

func (s *WebPushSender) Push(n models.Notification) error {
	payload, err := json.Marshal(map[string]string{
		"title": n.LeadName,
		"body":  n.Message,
		"tag":   n.LeadID,
	})
	if err != nil {
		return err
	}

	resp, err := webpush.SendNotification(payload, s.sub, s.opts)
	if err != nil {
		return fmt.Errorf("send web push: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}
