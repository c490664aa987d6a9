package store

import (
	"fmt"
	"log/slog"
	"time"

	"leadchat/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketNotifications = []byte("chat_notifications")
	bucketRecentChats   = []byte("role_based_recent_chats")
	bucketPreferences   = []byte("preferences")
)

// Preferences are the persisted user toggles. Zero value is not meaningful;
// use DefaultPreferences.
type Preferences struct {
	SoundEnabled bool
	AutoOpen     bool
	LeadView     models.ViewMode
}

func DefaultPreferences() Preferences {
	return Preferences{
		SoundEnabled: true,
		AutoOpen:     true,
		LeadView:     models.ViewModeTable,
	}
}

// BboltStore persists the notification feed, the recent-chat list and user
// preferences. Reads are best-effort: corrupt records are logged and skipped
// so a damaged file degrades to defaults instead of failing the caller.
type BboltStore struct {
	db *bbolt.DB
}

func NewBboltStore(path string) (*BboltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketNotifications, bucketRecentChats, bucketPreferences} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStore{db: db}, nil
}

func (s *BboltStore) Close() error {
	return s.db.Close()
}

// SaveNotifications replaces the persisted feed with the given list,
// preserving its order.
func (s *BboltStore) SaveNotifications(notifications []models.Notification) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := recreateBucket(tx, bucketNotifications)
		if err != nil {
			return err
		}
		for i, n := range notifications {
			dbn := &DBNotification{
				Seq:         uint64(i),
				ID:          n.ID,
				LeadID:      n.LeadID,
				LeadName:    n.LeadName,
				PhoneNumber: n.PhoneNumber,
				Message:     n.Message,
				MessageID:   n.MessageID,
				Timestamp:   n.Timestamp.UnixMilli(),
				IsRead:      n.IsRead,
				Kind:        string(n.Kind),
			}
			data, err := dbn.MarshalBinary()
			if err != nil {
				return fmt.Errorf("failed to marshal notification: %w", err)
			}
			if err := b.Put(dbn.Key(), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadNotifications returns the persisted feed in its saved order. Corrupt
// records are dropped.
func (s *BboltStore) LoadNotifications() ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNotifications)
		return b.ForEach(func(k, v []byte) error {
			var dbn DBNotification
			if err := dbn.UnmarshalBinary(v); err != nil {
				slog.Warn("dropping corrupt notification record", "error", err)
				return nil
			}
			notifications = append(notifications, models.Notification{
				ID:          dbn.ID,
				LeadID:      dbn.LeadID,
				LeadName:    dbn.LeadName,
				PhoneNumber: dbn.PhoneNumber,
				Message:     dbn.Message,
				MessageID:   dbn.MessageID,
				Timestamp:   time.UnixMilli(dbn.Timestamp),
				IsRead:      dbn.IsRead,
				Kind:        models.NotificationKind(dbn.Kind),
			})
			return nil
		})
	})
	return notifications, err
}

// SaveRecentChats replaces the persisted recent-chat list, preserving order.
func (s *BboltStore) SaveRecentChats(entries []models.RecentChatEntry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := recreateBucket(tx, bucketRecentChats)
		if err != nil {
			return err
		}
		for i, e := range entries {
			dbc := &DBRecentChat{
				Seq:             uint64(i),
				LeadID:          e.LeadID,
				LeadName:        e.Lead.Name,
				PhoneNumber:     e.Lead.PhoneNumber,
				Category:        e.Lead.Category,
				AssignedToID:    e.Lead.AssignedToID,
				LastMessage:     e.LastMessage,
				LastMessageTime: e.LastMessageTime.UnixMilli(),
				UnreadCount:     e.UnreadCount,
				IsInbound:       e.IsInbound,
			}
			data, err := dbc.MarshalBinary()
			if err != nil {
				return fmt.Errorf("failed to marshal recent chat: %w", err)
			}
			if err := b.Put(dbc.Key(), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadRecentChats returns the persisted recent-chat list. Corrupt records are
// dropped.
func (s *BboltStore) LoadRecentChats() ([]models.RecentChatEntry, error) {
	var entries []models.RecentChatEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecentChats)
		return b.ForEach(func(k, v []byte) error {
			var dbc DBRecentChat
			if err := dbc.UnmarshalBinary(v); err != nil {
				slog.Warn("dropping corrupt recent chat record", "error", err)
				return nil
			}
			entries = append(entries, models.RecentChatEntry{
				LeadID: dbc.LeadID,
				Lead: models.Lead{
					ID:           dbc.LeadID,
					Name:         dbc.LeadName,
					PhoneNumber:  dbc.PhoneNumber,
					Category:     dbc.Category,
					AssignedToID: dbc.AssignedToID,
				},
				LastMessage:     dbc.LastMessage,
				LastMessageTime: time.UnixMilli(dbc.LastMessageTime),
				UnreadCount:     dbc.UnreadCount,
				IsInbound:       dbc.IsInbound,
			})
			return nil
		})
	})
	return entries, err
}

func (s *BboltStore) SavePreferences(p Preferences) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPreferences)
		dbp := &DBPreferences{
			SoundEnabled: p.SoundEnabled,
			AutoOpen:     p.AutoOpen,
			LeadView:     string(p.LeadView),
		}
		data, err := dbp.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal preferences: %w", err)
		}
		return b.Put(dbp.Key(), data)
	})
}

// LoadPreferences returns the persisted toggles, repaired to defaults when
// missing or corrupt.
func (s *BboltStore) LoadPreferences() Preferences {
	prefs := DefaultPreferences()
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPreferences)
		var dbp DBPreferences
		data := b.Get(dbp.Key())
		if data == nil {
			return nil
		}
		if err := dbp.UnmarshalBinary(data); err != nil {
			slog.Warn("resetting corrupt preferences", "error", err)
			return nil
		}
		prefs.SoundEnabled = dbp.SoundEnabled
		prefs.AutoOpen = dbp.AutoOpen
		switch v := models.ViewMode(dbp.LeadView); v {
		case models.ViewModeTable, models.ViewModeKanban:
			prefs.LeadView = v
		}
		return nil
	})
	if err != nil {
		slog.Warn("failed to load preferences, using defaults", "error", err)
		return DefaultPreferences()
	}
	return prefs
}

// ClearNotifications empties the persisted feed.
func (s *BboltStore) ClearNotifications() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := recreateBucket(tx, bucketNotifications)
		return err
	})
}

func recreateBucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
		return nil, err
	}
	return tx.CreateBucket(name)
}
