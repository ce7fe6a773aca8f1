package models

import (
	"time"
)

// MessageType определяет тип сообщения в чате обмена
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Valid сообщает, известен ли тип сообщения
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// Message представляет сообщение в чате обмена
type Message struct {
	ID         int64       `json:"id"`
	TradeID    int64       `json:"trade_id"`
	SenderID   int64       `json:"sender_id"`
	ReceiverID int64       `json:"receiver_id"`
	Content    string      `json:"content"`
	Type       MessageType `json:"message_type"`
	IsRead     bool        `json:"is_read"`
	CreatedAt  time.Time   `json:"created_at"`

	// Дополнительные поля для API
	Sender *User `json:"sender,omitempty"`
}
