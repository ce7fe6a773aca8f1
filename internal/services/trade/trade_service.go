package trade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/skillswap-api/internal/db"
	"github.com/rajivgeraev/skillswap-api/internal/metrics"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

// acceptedMessage появляется в чате после принятия обмена
const acceptedMessage = "Обмен был принят. Вы можете обсудить детали здесь."

// Store описывает часть хранилища, нужную машине состояний
type Store interface {
	GetTrade(ctx context.Context, tradeID int64) (*models.Trade, error)
	CompareAndSetStatus(ctx context.Context, tradeID int64, from, to models.TradeStatus, notes string, at time.Time) (bool, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
}

// Notifier рассылает события по комнатам
type Notifier interface {
	Broadcast(room string, event models.Event, exclude uuid.UUID) int
}

// TradeService представляет машину состояний обмена
type TradeService struct {
	store    Store
	notifier Notifier
	logger   logrus.FieldLogger
	now      func() time.Time
	locks    *tradeLocks
}

// tradeLocks выдает мьютекс на каждый обмен, пока он кому-то нужен
type tradeLocks struct {
	mu    sync.Mutex
	locks map[int64]*tradeLock
}

type tradeLock struct {
	sync.Mutex
	refs int
}

func newTradeLocks() *tradeLocks {
	return &tradeLocks{locks: make(map[int64]*tradeLock)}
}

// lock захватывает мьютекс обмена и возвращает функцию освобождения
func (l *tradeLocks) lock(tradeID int64) func() {
	l.mu.Lock()
	tl, ok := l.locks[tradeID]
	if !ok {
		tl = &tradeLock{}
		l.locks[tradeID] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.Lock()
	return func() {
		tl.Unlock()
		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.locks, tradeID)
		}
		l.mu.Unlock()
	}
}

// NewTradeService создает новый экземпляр TradeService
func NewTradeService(store Store, notifier Notifier, logger logrus.FieldLogger) *TradeService {
	return &TradeService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		locks:    newTradeLocks(),
	}
}

// UpdateStatus атомарно переводит обмен в статус target.
// Текущий статус перечитывается, переход проверяется по таблице и
// сохраняется через compare-and-set; проигравший гонку получает InvalidTransition.
// Смена статуса и её рассылка идут под мьютексом обмена, поэтому
// наблюдатели комнаты видят статусы в порядке переходов.
func (s *TradeService) UpdateStatus(ctx context.Context, identity models.Identity, tradeID int64, target models.TradeStatus, notes string) (*models.Trade, error) {
	trade, err := s.updateStatus(ctx, identity, tradeID, target, notes)
	if err != nil {
		metrics.TradeTransitionsTotal.WithLabelValues(string(target), string(utils.KindOf(err))).Inc()
		return nil, err
	}
	metrics.TradeTransitionsTotal.WithLabelValues(string(target), "ok").Inc()
	return trade, nil
}

func (s *TradeService) updateStatus(ctx context.Context, identity models.Identity, tradeID int64, target models.TradeStatus, notes string) (*models.Trade, error) {
	if !target.Valid() {
		return nil, utils.NewError(utils.KindValidation, "Недопустимый статус обмена: %q", target)
	}

	log := s.logger.WithFields(logrus.Fields{
		"trade_id": tradeID,
		"user_id":  identity.UserID(),
		"target":   target,
	})

	unlock := s.locks.lock(tradeID)
	trade, previous, err := s.transition(ctx, log, identity, tradeID, target, notes)
	if err != nil {
		unlock()
		return nil, err
	}
	s.notify(identity, trade, previous)
	unlock()

	// Системное сообщение пишется вне блокировки: рассылка статуса уже ушла
	if target == models.TradeStatusAccepted {
		s.insertAcceptedMessage(ctx, trade, identity.UserID())
	}

	return trade, nil
}

// transition проверяет и сохраняет переход; вызывается под мьютексом обмена
func (s *TradeService) transition(ctx context.Context, log logrus.FieldLogger, identity models.Identity, tradeID int64, target models.TradeStatus, notes string) (*models.Trade, models.TradeStatus, error) {
	trade, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, "", utils.NewError(utils.KindNotFound, "Обмен %d не найден", tradeID)
		}
		log.WithError(err).Error("Ошибка запроса обмена")
		return nil, "", utils.Internal("Ошибка получения обмена", err)
	}

	role := RoleOf(trade, identity.UserID())
	if role == RoleNone {
		return nil, "", utils.NewError(utils.KindUnauthorized, "Вы не участвуете в этом обмене")
	}

	current := trade.Status
	if IsTerminal(current) {
		return nil, "", utils.NewError(utils.KindInvalidTransition, "Обмен уже закрыт со статусом %s", current)
	}
	if !CanTransition(current, target) {
		return nil, "", utils.NewError(utils.KindInvalidTransition, "Нельзя перевести обмен из %s в %s", current, target)
	}
	if !AllowedFor(role, current, target) {
		return nil, "", utils.NewError(utils.KindForbidden, "Только исполнитель может перевести обмен в %s", target)
	}

	at := s.now().UTC()
	ok, err := s.store.CompareAndSetStatus(ctx, tradeID, current, target, notes, at)
	if err != nil {
		log.WithError(err).Error("Ошибка обновления статуса обмена")
		return nil, "", utils.Internal("Ошибка обновления статуса обмена", err)
	}
	if !ok {
		// Статус успели изменить параллельно
		log.WithField("expected", current).Info("Конфликт при смене статуса обмена")
		return nil, "", utils.NewError(utils.KindInvalidTransition, "Статус обмена уже изменён")
	}

	updated := *trade
	updated.Status = target
	updated.Notes = notes
	updated.UpdatedAt = at
	if target == models.TradeStatusCompleted {
		updated.CompletedAt = &at
	}

	log.WithField("previous", current).Info("Статус обмена обновлён")
	return &updated, current, nil
}

// insertAcceptedMessage добавляет системное сообщение в чат принятого обмена
func (s *TradeService) insertAcceptedMessage(ctx context.Context, t *models.Trade, actorID int64) {
	msg := &models.Message{
		TradeID:    t.ID,
		SenderID:   actorID,
		ReceiverID: t.Counterpart(actorID),
		Content:    acceptedMessage,
		Type:       models.MessageTypeSystem,
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		// Не возвращаем ошибку, т.к. основная функциональность выполнена
		s.logger.WithError(err).WithField("trade_id", t.ID).Warn("Ошибка создания системного сообщения")
	}
}

func (s *TradeService) notify(identity models.Identity, t *models.Trade, previous models.TradeStatus) {
	update, err := models.NewEvent(models.EventTradeStatusUpdated, t.ID, models.TradeStatusUpdate{
		TradeID:   t.ID,
		Status:    t.Status,
		Previous:  previous,
		Notes:     t.Notes,
		UpdatedBy: identity.DisplayName(),
		Trade:     t,
	})
	if err != nil {
		s.logger.WithError(err).Error("Ошибка сборки события")
		return
	}
	update.UserID = identity.UserID()
	s.notifier.Broadcast(models.TradeRoom(t.ID), update, uuid.Nil)

	notification, err := models.NewEvent(models.EventTradeNotification, t.ID, models.TradeNotification{
		Kind:    "status_update",
		TradeID: t.ID,
		Message: fmt.Sprintf("Статус обмена обновлён: %s", t.Status),
	})
	if err != nil {
		s.logger.WithError(err).Error("Ошибка сборки события")
		return
	}
	s.notifier.Broadcast(models.UserRoom(t.Counterpart(identity.UserID())), notification, uuid.Nil)
}
