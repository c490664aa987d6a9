package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func frame(t *testing.T, event string, data any) Frame {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal frame data: %v", err)
	}
	return Frame{Event: event, Data: raw}
}

func TestDecodeInbound_NewMessage(t *testing.T) {
	f := frame(t, EventNewMessage, map[string]any{
		"leadId":    "lead-1",
		"messageId": "msg-1",
		"direction": "inbound",
		"content":   "hello",
		"createdAt": time.Now().Format(time.RFC3339),
	})

	ev, err := DecodeInbound(f)
	if err != nil {
		t.Fatalf("DecodeInbound failed: %v", err)
	}

	m, ok := ev.(DirectMessage)
	if !ok {
		t.Fatalf("expected DirectMessage, got %T", ev)
	}
	if m.LeadID != "lead-1" || m.MessageID != "msg-1" {
		t.Errorf("unexpected identity: %+v", m)
	}
	if m.Key() != "msg-1" {
		t.Errorf("expected key msg-1, got %s", m.Key())
	}
}

func TestDecodeInbound_DefaultsDirectionAndTime(t *testing.T) {
	f := frame(t, EventNewMessage, map[string]any{
		"leadId":    "lead-1",
		"messageId": "msg-1",
	})

	ev, err := DecodeInbound(f)
	if err != nil {
		t.Fatalf("DecodeInbound failed: %v", err)
	}
	m := ev.(DirectMessage)
	if m.Direction != DirectionInbound {
		t.Errorf("expected default direction inbound, got %s", m.Direction)
	}
	if m.CreatedAt.IsZero() {
		t.Error("expected createdAt to be defaulted")
	}
}

func TestDecodeInbound_Notification(t *testing.T) {
	f := frame(t, EventNotification, map[string]any{
		"leadId":    "lead-2",
		"leadName":  "Acme",
		"messageId": "msg-9",
		"message":   "new inquiry",
	})

	ev, err := DecodeInbound(f)
	if err != nil {
		t.Fatalf("DecodeInbound failed: %v", err)
	}
	n, ok := ev.(UserNotification)
	if !ok {
		t.Fatalf("expected UserNotification, got %T", ev)
	}
	if n.Kind != NotificationNewMessage {
		t.Errorf("expected defaulted kind new_message, got %s", n.Kind)
	}
	if n.Key() != "lead-2:msg-9" {
		t.Errorf("unexpected dedup key %s", n.Key())
	}
}

func TestDecodeInbound_Calendar(t *testing.T) {
	f := frame(t, EventDemoReminder, map[string]any{"demoId": "demo-3"})

	ev, err := DecodeInbound(f)
	if err != nil {
		t.Fatalf("DecodeInbound failed: %v", err)
	}
	e := ev.(CalendarEvent)
	if e.Action != EventDemoReminder {
		t.Errorf("expected action %s, got %s", EventDemoReminder, e.Action)
	}
}

func TestDecodeInbound_Rejects(t *testing.T) {
	cases := []struct {
		name string
		f    Frame
		want error
	}{
		{"unknown event", frame(t, "presence-ping", map[string]any{}), ErrUnknownEvent},
		{"missing messageId", frame(t, EventNewMessage, map[string]any{"leadId": "l1"}), ErrInvalidEvent},
		{"missing leadId", frame(t, EventNotification, map[string]any{"messageId": "m1"}), ErrInvalidEvent},
		{"bad direction", frame(t, EventNewMessage, map[string]any{"leadId": "l1", "messageId": "m1", "direction": "sideways"}), ErrInvalidEvent},
		{"malformed payload", Frame{Event: EventNewMessage, Data: json.RawMessage(`{"leadId":42}`)}, ErrInvalidEvent},
		{"calendar missing demoId", frame(t, EventDemoCreated, map[string]any{}), ErrInvalidEvent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeInbound(tc.f); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
