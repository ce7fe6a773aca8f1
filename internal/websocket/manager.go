package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/skillswap-api/internal/db"
	"github.com/rajivgeraev/skillswap-api/internal/metrics"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

// TradeReader читает обмен для проверки доступа к комнате
type TradeReader interface {
	GetTrade(ctx context.Context, tradeID int64) (*models.Trade, error)
}

// Subscriber представляет зарегистрированное соединение с неизменяемой личностью
// и набором комнат. Членство меняется только через Manager.
type Subscriber struct {
	ID       uuid.UUID
	identity models.Identity
	send     chan []byte
	rooms    map[string]struct{}

	// onDrop закрывает транспорт, когда менеджер отключает соединение
	onDrop func()
}

// Identity возвращает личность владельца соединения
func (s *Subscriber) Identity() models.Identity {
	return s.identity
}

// Outbound возвращает очередь исходящих событий.
// Канал закрывается при отключении соединения.
func (s *Subscriber) Outbound() <-chan []byte {
	return s.send
}

// Manager владеет всеми соединениями и членством в комнатах
type Manager struct {
	mu        sync.RWMutex
	conns     map[uuid.UUID]*Subscriber
	rooms     map[string]map[uuid.UUID]*Subscriber
	trades    TradeReader
	queueSize int
	logger    logrus.FieldLogger
}

// NewManager создает новый экземпляр Manager
func NewManager(trades TradeReader, queueSize int, logger logrus.FieldLogger) *Manager {
	return &Manager{
		conns:     make(map[uuid.UUID]*Subscriber),
		rooms:     make(map[string]map[uuid.UUID]*Subscriber),
		trades:    trades,
		queueSize: queueSize,
		logger:    logger,
	}
}

// Register регистрирует соединение и сразу добавляет его
// в персональную комнату пользователя. onDrop (может быть nil)
// вызывается, когда менеджер сам отключает медленное соединение.
func (m *Manager) Register(identity models.Identity, onDrop func()) *Subscriber {
	sub := &Subscriber{
		ID:       uuid.New(),
		identity: identity,
		send:     make(chan []byte, m.queueSize),
		rooms:    make(map[string]struct{}),
		onDrop:   onDrop,
	}

	m.mu.Lock()
	m.conns[sub.ID] = sub
	m.joinLocked(sub, models.UserRoom(identity.UserID()))
	m.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	m.logger.WithFields(logrus.Fields{
		"conn_id": sub.ID,
		"user_id": identity.UserID(),
	}).Info("WebSocket client connected")

	return sub
}

// Unregister синхронно убирает соединение из всех комнат и закрывает его очередь.
// Уже поставленные в очередь события writer отправит, если сможет.
func (m *Manager) Unregister(sub *Subscriber) {
	m.mu.Lock()
	if m.conns[sub.ID] != sub {
		m.mu.Unlock()
		return
	}
	for room := range sub.rooms {
		m.leaveLocked(sub, room)
	}
	delete(m.conns, sub.ID)
	close(sub.send)
	m.mu.Unlock()

	metrics.ConnectionsActive.Dec()
	m.logger.WithFields(logrus.Fields{
		"conn_id": sub.ID,
		"user_id": sub.identity.UserID(),
	}).Info("WebSocket client disconnected")
}

// JoinTrade добавляет соединение в комнату обмена.
// Доступ перепроверяется по хранилищу при каждом входе.
func (m *Manager) JoinTrade(ctx context.Context, sub *Subscriber, tradeID int64) error {
	trade, err := m.trades.GetTrade(ctx, tradeID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return utils.NewError(utils.KindNotFound, "Обмен %d не найден", tradeID)
		}
		m.logger.WithError(err).WithField("trade_id", tradeID).Error("Ошибка проверки доступа к комнате")
		return utils.Internal("Ошибка проверки доступа к комнате", err)
	}

	if !trade.IsParty(sub.identity.UserID()) {
		return utils.NewError(utils.KindForbidden, "Нет доступа к обмену %d", tradeID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conns[sub.ID] != sub {
		return utils.NewError(utils.KindValidation, "Соединение закрыто")
	}
	m.joinLocked(sub, models.TradeRoom(tradeID))
	return nil
}

// Leave убирает соединение из комнаты. Персональную комнату покинуть нельзя.
func (m *Manager) Leave(sub *Subscriber, room string) {
	if room == models.UserRoom(sub.identity.UserID()) {
		return
	}
	m.mu.Lock()
	m.leaveLocked(sub, room)
	m.mu.Unlock()
}

func (m *Manager) joinLocked(sub *Subscriber, room string) {
	members, ok := m.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]*Subscriber)
		m.rooms[room] = members
	}
	members[sub.ID] = sub
	sub.rooms[room] = struct{}{}
}

func (m *Manager) leaveLocked(sub *Subscriber, room string) {
	delete(sub.rooms, room)
	if members, ok := m.rooms[room]; ok {
		delete(members, sub.ID)
		// Пустые комнаты не храним
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
}

// IsMember сообщает, состоит ли соединение в комнате
func (m *Manager) IsMember(sub *Subscriber, room string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[room][sub.ID]
	return ok
}

// RoomSize возвращает число соединений в комнате
func (m *Manager) RoomSize(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[room])
}

// ConnectionCount возвращает число зарегистрированных соединений
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Broadcast ставит событие в очередь каждого соединения комнаты, кроме exclude.
// Никогда не блокируется: соединение с переполненной очередью отключается.
// Возвращает число соединений, получивших событие.
func (m *Manager) Broadcast(room string, event models.Event, exclude uuid.UUID) int {
	data, err := json.Marshal(event)
	if err != nil {
		m.logger.WithError(err).WithField("type", event.Type).Error("Error marshaling event")
		return 0
	}

	var delivered int
	var slow []*Subscriber

	m.mu.RLock()
	for id, sub := range m.rooms[room] {
		if id == exclude {
			continue
		}
		select {
		case sub.send <- data:
			delivered++
		default:
			slow = append(slow, sub)
		}
	}
	m.mu.RUnlock()

	metrics.EventsDeliveredTotal.WithLabelValues(string(event.Type)).Add(float64(delivered))
	m.dropSlow(slow)

	return delivered
}

// SendTo отправляет событие одному соединению
func (m *Manager) SendTo(sub *Subscriber, event models.Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		m.logger.WithError(err).WithField("type", event.Type).Error("Error marshaling event")
		return false
	}

	m.mu.RLock()
	if m.conns[sub.ID] != sub {
		m.mu.RUnlock()
		return false
	}
	select {
	case sub.send <- data:
		m.mu.RUnlock()
		metrics.EventsDeliveredTotal.WithLabelValues(string(event.Type)).Inc()
		return true
	default:
		m.mu.RUnlock()
		m.dropSlow([]*Subscriber{sub})
		return false
	}
}

func (m *Manager) dropSlow(slow []*Subscriber) {
	for _, sub := range slow {
		m.logger.WithField("conn_id", sub.ID).Warn("Send channel full for client, closing connection")
		metrics.SlowConsumersTotal.Inc()
		m.Unregister(sub)
		if sub.onDrop != nil {
			sub.onDrop()
		}
	}
}

// Shutdown отключает все соединения
func (m *Manager) Shutdown() {
	m.mu.RLock()
	subs := make([]*Subscriber, 0, len(m.conns))
	for _, sub := range m.conns {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		m.Unregister(sub)
		if sub.onDrop != nil {
			sub.onDrop()
		}
	}
}
