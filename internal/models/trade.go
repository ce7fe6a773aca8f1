package models

import (
	"time"
)

// TradeStatus определяет статус обмена навыками
type TradeStatus string

const (
	TradeStatusPending    TradeStatus = "pending"
	TradeStatusAccepted   TradeStatus = "accepted"
	TradeStatusRejected   TradeStatus = "rejected"
	TradeStatusInProgress TradeStatus = "in_progress"
	TradeStatusCompleted  TradeStatus = "completed"
	TradeStatusCancelled  TradeStatus = "cancelled"
)

// Valid сообщает, известен ли статус
func (s TradeStatus) Valid() bool {
	switch s {
	case TradeStatusPending, TradeStatusAccepted, TradeStatusRejected,
		TradeStatusInProgress, TradeStatusCompleted, TradeStatusCancelled:
		return true
	}
	return false
}

// Trade представляет обмен навыками между двумя пользователями
type Trade struct {
	ID               int64       `json:"id"`
	RequesterID      int64       `json:"requester_id"`
	ProviderID       int64       `json:"provider_id"`
	RequesterSkillID int64       `json:"requester_skill_id"`
	ProviderSkillID  int64       `json:"provider_skill_id"`
	Status           TradeStatus `json:"status"`
	Title            string      `json:"title"`
	Description      string      `json:"description,omitempty"`
	Notes            string      `json:"notes,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
}

// IsParty проверяет, является ли пользователь участником обмена
func (t *Trade) IsParty(userID int64) bool {
	return userID == t.RequesterID || userID == t.ProviderID
}

// Counterpart возвращает второго участника обмена.
// Для пользователя, не участвующего в обмене, возвращает 0.
func (t *Trade) Counterpart(userID int64) int64 {
	switch userID {
	case t.RequesterID:
		return t.ProviderID
	case t.ProviderID:
		return t.RequesterID
	}
	return 0
}
