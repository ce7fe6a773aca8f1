package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// EventType определяет тип исходящего события
type EventType string

const (
	EventConnected          EventType = "connected"
	EventJoinedTrade        EventType = "joined_trade"
	EventLeftTrade          EventType = "left_trade"
	EventMessageSent        EventType = "message_sent"
	EventNewMessage         EventType = "new_message"
	EventMessagePreview     EventType = "message_preview"
	EventUserTyping         EventType = "user_typing"
	EventUserStoppedTyping  EventType = "user_stopped_typing"
	EventMessagesMarkedRead EventType = "messages_marked_read"
	EventMessagesRead       EventType = "messages_read"
	EventTradeStatusUpdated EventType = "trade_status_updated"
	EventTradeStatusChanged EventType = "trade_status_changed"
	EventTradeNotification  EventType = "trade_notification"
	EventError              EventType = "error"
)

// Event представляет структуру сообщения для WebSocket
type Event struct {
	Type      EventType       `json:"type"`
	TradeID   int64           `json:"trade_id,omitempty"`
	UserID    int64           `json:"user_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent собирает событие, сериализуя payload
func NewEvent(eventType EventType, tradeID int64, payload any) (Event, error) {
	event := Event{
		Type:      eventType,
		TradeID:   tradeID,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		event.Payload = raw
	}
	return event, nil
}

// TradeRoom возвращает идентификатор комнаты обмена
func TradeRoom(tradeID int64) string {
	return "trade_" + strconv.FormatInt(tradeID, 10)
}

// UserRoom возвращает идентификатор персональной комнаты уведомлений
func UserRoom(userID int64) string {
	return "user_" + strconv.FormatInt(userID, 10)
}

// JoinedTrade подтверждает вход в комнату обмена
type JoinedTrade struct {
	TradeID int64 `json:"trade_id"`
	Members int   `json:"members"`
}

// TradeStatusChanged подтверждает смену статуса инициатору
type TradeStatusChanged struct {
	Trade        *Trade        `json:"trade"`
	NextStatuses []TradeStatus `json:"next_statuses"`
}

// TradeStatusUpdate представляет payload события trade_status_updated
type TradeStatusUpdate struct {
	TradeID   int64       `json:"trade_id"`
	Status    TradeStatus `json:"status"`
	Previous  TradeStatus `json:"previous_status"`
	Notes     string      `json:"notes,omitempty"`
	UpdatedBy string      `json:"updated_by"`
	Trade     *Trade      `json:"trade"`
}

// TradeNotification представляет краткое уведомление в персональную комнату
type TradeNotification struct {
	Kind    string `json:"type"`
	TradeID int64  `json:"trade_id"`
	Message string `json:"message"`
}

// MessagePreview представляет превью сообщения для получателя
type MessagePreview struct {
	TradeID    int64  `json:"trade_id"`
	MessageID  int64  `json:"message_id"`
	SenderID   int64  `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Preview    string `json:"preview"`
}

// TypingPayload представляет payload индикаторов набора текста
type TypingPayload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
}

// ReadReceipt представляет уведомление о прочтении сообщений
type ReadReceipt struct {
	TradeID  int64 `json:"trade_id"`
	ReaderID int64 `json:"reader_id"`
	Count    int64 `json:"count"`
}

// ErrorPayload представляет ошибку, адресованную только отправителю команды
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
