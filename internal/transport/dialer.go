package transport

import (
	"context"
	"fmt"
	"strings"

	"leadchat/internal/models"

	"github.com/gorilla/websocket"
)

// WebsocketDialer opens gorilla websocket connections, one endpoint per
// logical channel (ws://host/ws/chat, ws://host/ws/calendar).
type WebsocketDialer struct {
	baseURL string
	dialer  *websocket.Dialer
}

func NewWebsocketDialer(baseURL string) *WebsocketDialer {
	return &WebsocketDialer{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer:  websocket.DefaultDialer,
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, channel models.Channel) (Socket, error) {
	url := fmt.Sprintf("%s/ws/%s", d.baseURL, channel)
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}
