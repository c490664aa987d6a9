package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

type Role string

const (
	RoleAdmin             Role = "admin"
	RoleManager           Role = "manager"
	RoleCustomerExecutive Role = "customer_executive"
)

// User is the currently logged-in CRM agent.
type User struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Role       Role     `json:"role"`
	Categories []string `json:"categories,omitempty"` // manager's assigned categories
}

// Lead represents a CRM lead as returned by the REST collaborator.
type Lead struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PhoneNumber  string `json:"phoneNumber"`
	Category     string `json:"category,omitempty"`
	AssignedToID string `json:"assignedToId,omitempty"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Message is a single chat message for a lead.
type Message struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"leadId"`
	Direction Direction `json:"direction"`
	Content   string    `json:"content,omitempty"`
	MediaURL  string    `json:"mediaUrl,omitempty"`
	MediaType string    `json:"mediaType,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type NotificationKind string

const (
	NotificationNewChat    NotificationKind = "new_chat"
	NotificationNewMessage NotificationKind = "new_message"
)

// Notification is one entry of the notification feed.
type Notification struct {
	ID          string           `json:"id"`
	LeadID      string           `json:"leadId"`
	LeadName    string           `json:"leadName"`
	PhoneNumber string           `json:"phoneNumber"`
	Message     string           `json:"message"`
	MessageID   string           `json:"messageId"`
	Timestamp   time.Time        `json:"timestamp"`
	IsRead      bool             `json:"isRead"`
	Kind        NotificationKind `json:"kind"`
}

// RecentChatEntry is a per-lead rollup of the latest message and unread state.
type RecentChatEntry struct {
	LeadID          string    `json:"leadId"`
	Lead            Lead      `json:"lead"` // owned copy
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int       `json:"unreadCount"`
	IsInbound       bool      `json:"isInbound"`
	HasAccess       bool      `json:"hasAccess"`
}

type ViewMode string

const (
	ViewModeTable  ViewMode = "table"
	ViewModeKanban ViewMode = "kanban"
)
