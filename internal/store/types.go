package store

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBNotification struct {
	Seq         uint64 `msgpack:"-"`
	ID          string `msgpack:"id"`
	LeadID      string `msgpack:"leadId"`
	LeadName    string `msgpack:"leadName"`
	PhoneNumber string `msgpack:"phoneNumber"`
	Message     string `msgpack:"message"`
	MessageID   string `msgpack:"messageId"`
	Timestamp   int64  `msgpack:"timestamp"` // Unix millis
	IsRead      bool   `msgpack:"isRead"`
	Kind        string `msgpack:"kind"`
}

func (n *DBNotification) Key() []byte {
	return seqKey(n.Seq)
}

func (n *DBNotification) MarshalBinary() (data []byte, err error) {
	type alias DBNotification
	return msgpack.Marshal((*alias)(n))
}

func (n *DBNotification) UnmarshalBinary(data []byte) error {
	type alias DBNotification
	return msgpack.Unmarshal(data, (*alias)(n))
}

type DBRecentChat struct {
	Seq             uint64 `msgpack:"-"`
	LeadID          string `msgpack:"leadId"`
	LeadName        string `msgpack:"leadName"`
	PhoneNumber     string `msgpack:"phoneNumber"`
	Category        string `msgpack:"category"`
	AssignedToID    string `msgpack:"assignedToId"`
	LastMessage     string `msgpack:"lastMessage"`
	LastMessageTime int64  `msgpack:"lastMessageTime"` // Unix millis
	UnreadCount     int    `msgpack:"unreadCount"`
	IsInbound       bool   `msgpack:"isInbound"`
}

func (c *DBRecentChat) Key() []byte {
	return seqKey(c.Seq)
}

func (c *DBRecentChat) MarshalBinary() (data []byte, err error) {
	type alias DBRecentChat
	return msgpack.Marshal((*alias)(c))
}

func (c *DBRecentChat) UnmarshalBinary(data []byte) error {
	type alias DBRecentChat
	return msgpack.Unmarshal(data, (*alias)(c))
}

type DBPreferences struct {
	SoundEnabled bool   `msgpack:"soundEnabled"`
	AutoOpen     bool   `msgpack:"autoOpen"`
	LeadView     string `msgpack:"leadView"`
}

func (p *DBPreferences) Key() []byte {
	return []byte("prefs")
}

func (p *DBPreferences) MarshalBinary() (data []byte, err error) {
	type alias DBPreferences
	return msgpack.Marshal((*alias)(p))
}

func (p *DBPreferences) UnmarshalBinary(data []byte) error {
	type alias DBPreferences
	return msgpack.Unmarshal(data, (*alias)(p))
}

// seqKey preserves list order in bbolt's key-sorted buckets.
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
