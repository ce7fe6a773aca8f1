package chat

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/skillswap-api/internal/db"
	"github.com/rajivgeraev/skillswap-api/internal/metrics"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

const (
	// Максимальная длина сообщения в символах
	MaxContentLength = 5000

	// Длина превью для персональной комнаты получателя
	PreviewLength = 50

	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// Store описывает часть хранилища, нужную чату
type Store interface {
	GetTrade(ctx context.Context, tradeID int64) (*models.Trade, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	MarkMessagesRead(ctx context.Context, tradeID, receiverID int64) (int64, error)
	ListMessages(ctx context.Context, tradeID, beforeID int64, limit int) ([]models.Message, error)
}

// Notifier рассылает события по комнатам
type Notifier interface {
	Broadcast(room string, event models.Event, exclude uuid.UUID) int
}

// ChatService доставляет сообщения и события присутствия участникам обмена
type ChatService struct {
	store    Store
	notifier Notifier
	logger   logrus.FieldLogger
}

// NewChatService создает новый экземпляр ChatService
func NewChatService(store Store, notifier Notifier, logger logrus.FieldLogger) *ChatService {
	return &ChatService{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// partyTrade читает актуальную запись обмена и проверяет, что пользователь в нём участвует
func (s *ChatService) partyTrade(ctx context.Context, identity models.Identity, tradeID int64) (*models.Trade, error) {
	trade, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, utils.NewError(utils.KindNotFound, "Обмен %d не найден", tradeID)
		}
		s.logger.WithError(err).WithField("trade_id", tradeID).Error("Ошибка запроса обмена")
		return nil, utils.Internal("Ошибка получения обмена", err)
	}
	if !trade.IsParty(identity.UserID()) {
		return nil, utils.NewError(utils.KindUnauthorized, "Вы не участвуете в этом обмене")
	}
	return trade, nil
}

// SendMessage сохраняет сообщение и рассылает его участникам.
// Получатель всегда вычисляется как вторая сторона обмена.
func (s *ChatService) SendMessage(ctx context.Context, identity models.Identity, tradeID int64, content string, msgType models.MessageType) (*models.Message, error) {
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if !msgType.Valid() || msgType == models.MessageTypeSystem {
		return nil, utils.NewError(utils.KindValidation, "Недопустимый тип сообщения: %q", msgType)
	}
	if strings.TrimSpace(content) == "" {
		return nil, utils.NewError(utils.KindValidation, "Сообщение не может быть пустым")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, utils.NewError(utils.KindValidation, "Сообщение длиннее %d символов", MaxContentLength)
	}

	trade, err := s.partyTrade(ctx, identity, tradeID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		TradeID:    tradeID,
		SenderID:   identity.UserID(),
		ReceiverID: trade.Counterpart(identity.UserID()),
		Content:    content,
		Type:       msgType,
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		s.logger.WithError(err).WithField("trade_id", tradeID).Error("Ошибка сохранения сообщения")
		return nil, utils.Internal("Ошибка сохранения сообщения", err)
	}
	msg.Sender = identity.User()

	metrics.MessagesSentTotal.WithLabelValues(string(msgType)).Inc()

	if event, err := models.NewEvent(models.EventNewMessage, tradeID, msg); err == nil {
		event.UserID = identity.UserID()
		s.notifier.Broadcast(models.TradeRoom(tradeID), event, uuid.Nil)
	} else {
		s.logger.WithError(err).Error("Ошибка сборки события")
	}

	preview, err := models.NewEvent(models.EventMessagePreview, tradeID, models.MessagePreview{
		TradeID:    tradeID,
		MessageID:  msg.ID,
		SenderID:   identity.UserID(),
		SenderName: identity.DisplayName(),
		Preview:    Preview(msg),
	})
	if err != nil {
		s.logger.WithError(err).Error("Ошибка сборки события")
		return msg, nil
	}
	s.notifier.Broadcast(models.UserRoom(msg.ReceiverID), preview, uuid.Nil)

	return msg, nil
}

// Preview возвращает первые PreviewLength символов сообщения
func Preview(msg *models.Message) string {
	runes := []rune(msg.Content)
	if len(runes) <= PreviewLength {
		return msg.Content
	}
	return string(runes[:PreviewLength])
}

// MarkRead отмечает прочитанными сообщения обмена, адресованные пользователю.
// Повторный вызов ничего не меняет. Если что-то изменилось, в комнату
// обмена (кроме соединения exclude) уходит уведомление о прочтении.
func (s *ChatService) MarkRead(ctx context.Context, identity models.Identity, tradeID int64, exclude uuid.UUID) (int64, error) {
	if _, err := s.partyTrade(ctx, identity, tradeID); err != nil {
		return 0, err
	}

	changed, err := s.store.MarkMessagesRead(ctx, tradeID, identity.UserID())
	if err != nil {
		s.logger.WithError(err).WithField("trade_id", tradeID).Error("Ошибка обновления статуса прочтения")
		return 0, utils.Internal("Ошибка обновления статуса прочтения", err)
	}

	if changed > 0 {
		receipt, err := models.NewEvent(models.EventMessagesRead, tradeID, models.ReadReceipt{
			TradeID:  tradeID,
			ReaderID: identity.UserID(),
			Count:    changed,
		})
		if err != nil {
			s.logger.WithError(err).Error("Ошибка сборки события")
			return changed, nil
		}
		s.notifier.Broadcast(models.TradeRoom(tradeID), receipt, exclude)
	}

	return changed, nil
}

// Typing рассылает индикатор набора текста в комнату обмена, кроме соединения отправителя.
// Проверка членства в комнате остаётся за вызывающим.
func (s *ChatService) Typing(identity models.Identity, tradeID int64, from uuid.UUID, started bool) {
	eventType := models.EventUserStoppedTyping
	if started {
		eventType = models.EventUserTyping
	}

	event, err := models.NewEvent(eventType, tradeID, models.TypingPayload{
		UserID:   identity.UserID(),
		Username: identity.Username(),
	})
	if err != nil {
		s.logger.WithError(err).Error("Ошибка сборки события")
		return
	}
	event.UserID = identity.UserID()
	s.notifier.Broadcast(models.TradeRoom(tradeID), event, from)
}

// History возвращает сообщения обмена от новых к старым
func (s *ChatService) History(ctx context.Context, identity models.Identity, tradeID, beforeID int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	if _, err := s.partyTrade(ctx, identity, tradeID); err != nil {
		return nil, err
	}

	messages, err := s.store.ListMessages(ctx, tradeID, beforeID, limit)
	if err != nil {
		s.logger.WithError(err).WithField("trade_id", tradeID).Error("Ошибка запроса сообщений")
		return nil, utils.Internal("Ошибка получения сообщений", err)
	}
	return messages, nil
}
