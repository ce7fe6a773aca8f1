package trade

import (
	"github.com/rajivgeraev/skillswap-api/internal/models"
)

// Role определяет роль участника в обмене
type Role int

const (
	RoleNone Role = iota
	RoleRequester
	RoleProvider
)

// edge описывает разрешённый переход и роли, которым он доступен
type edge struct {
	from, to     models.TradeStatus
	providerOnly bool
}

// Полная таблица переходов жизненного цикла обмена
var transitions = []edge{
	{from: models.TradeStatusPending, to: models.TradeStatusAccepted, providerOnly: true},
	{from: models.TradeStatusPending, to: models.TradeStatusRejected, providerOnly: true},
	{from: models.TradeStatusPending, to: models.TradeStatusCancelled},
	{from: models.TradeStatusAccepted, to: models.TradeStatusInProgress},
	{from: models.TradeStatusInProgress, to: models.TradeStatusCompleted},
	{from: models.TradeStatusInProgress, to: models.TradeStatusCancelled},
}

func findEdge(from, to models.TradeStatus) (edge, bool) {
	for _, e := range transitions {
		if e.from == from && e.to == to {
			return e, true
		}
	}
	return edge{}, false
}

// RoleOf возвращает роль пользователя в обмене
func RoleOf(t *models.Trade, userID int64) Role {
	switch userID {
	case t.ProviderID:
		return RoleProvider
	case t.RequesterID:
		return RoleRequester
	}
	return RoleNone
}

// CanTransition сообщает, существует ли переход from -> to
func CanTransition(from, to models.TradeStatus) bool {
	_, ok := findEdge(from, to)
	return ok
}

// AllowedFor сообщает, может ли роль выполнить переход from -> to
func AllowedFor(role Role, from, to models.TradeStatus) bool {
	e, ok := findEdge(from, to)
	if !ok || role == RoleNone {
		return false
	}
	return !e.providerOnly || role == RoleProvider
}

// NextStatuses возвращает статусы, достижимые из from для роли.
// Для закрытого обмена возвращает пустой список.
func NextStatuses(role Role, from models.TradeStatus) []models.TradeStatus {
	next := []models.TradeStatus{}
	for _, e := range transitions {
		if e.from == from && AllowedFor(role, e.from, e.to) {
			next = append(next, e.to)
		}
	}
	return next
}

// IsTerminal сообщает, что из статуса нет переходов
func IsTerminal(s models.TradeStatus) bool {
	for _, e := range transitions {
		if e.from == s {
			return false
		}
	}
	return true
}
