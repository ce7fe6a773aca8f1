package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/skillswap-api/internal/metrics"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/services/trade"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

// CommandType определяет тип входящей команды
type CommandType string

const (
	CmdAuthenticate      CommandType = "authenticate"
	CmdJoinTrade         CommandType = "join_trade"
	CmdLeaveTrade        CommandType = "leave_trade"
	CmdSendMessage       CommandType = "send_message"
	CmdTypingStart       CommandType = "typing_start"
	CmdTypingStop        CommandType = "typing_stop"
	CmdMarkMessagesRead  CommandType = "mark_messages_read"
	CmdUpdateTradeStatus CommandType = "update_trade_status"
)

// Command представляет одну из закрытого набора входящих команд
type Command interface {
	Type() CommandType
}

// Authenticate отправляется первым кадром, если нет заголовка Authorization
type Authenticate struct {
	Token string `json:"token" validate:"required"`
}

// JoinTrade запрашивает вход в комнату обмена
type JoinTrade struct {
	TradeID int64 `json:"trade_id" validate:"required,gt=0"`
}

// LeaveTrade запрашивает выход из комнаты обмена
type LeaveTrade struct {
	TradeID int64 `json:"trade_id" validate:"required,gt=0"`
}

// SendMessage отправляет сообщение в чат обмена
type SendMessage struct {
	TradeID     int64              `json:"trade_id" validate:"required,gt=0"`
	Content     string             `json:"content"`
	MessageType models.MessageType `json:"message_type"`
}

// Typing передает индикатор набора текста
type Typing struct {
	TradeID int64 `json:"trade_id" validate:"required,gt=0"`
	Started bool  `json:"-"`
}

// MarkMessagesRead отмечает сообщения обмена прочитанными
type MarkMessagesRead struct {
	TradeID int64 `json:"trade_id" validate:"required,gt=0"`
}

// UpdateTradeStatus запрашивает смену статуса обмена
type UpdateTradeStatus struct {
	TradeID int64              `json:"trade_id" validate:"required,gt=0"`
	Status  models.TradeStatus `json:"status" validate:"required"`
	Notes   string             `json:"notes" validate:"max=2000"`
}

func (Authenticate) Type() CommandType      { return CmdAuthenticate }
func (JoinTrade) Type() CommandType         { return CmdJoinTrade }
func (LeaveTrade) Type() CommandType        { return CmdLeaveTrade }
func (SendMessage) Type() CommandType       { return CmdSendMessage }
func (MarkMessagesRead) Type() CommandType  { return CmdMarkMessagesRead }
func (UpdateTradeStatus) Type() CommandType { return CmdUpdateTradeStatus }

func (t Typing) Type() CommandType {
	if t.Started {
		return CmdTypingStart
	}
	return CmdTypingStop
}

// frame представляет конверт входящего кадра
type frame struct {
	Type      CommandType     `json:"type"`
	RequestID string          `json:"request_id"`
	Payload   json.RawMessage `json:"payload"`
}

var validate = validator.New()

// DecodeCommand разбирает кадр в типизированную команду.
// request_id возвращается даже при ошибке разбора payload.
func DecodeCommand(data []byte) (Command, string, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", utils.NewError(utils.KindValidation, "Неверный формат кадра")
	}

	var cmd Command
	switch f.Type {
	case CmdAuthenticate:
		cmd = &Authenticate{}
	case CmdJoinTrade:
		cmd = &JoinTrade{}
	case CmdLeaveTrade:
		cmd = &LeaveTrade{}
	case CmdSendMessage:
		cmd = &SendMessage{}
	case CmdTypingStart:
		cmd = &Typing{Started: true}
	case CmdTypingStop:
		cmd = &Typing{}
	case CmdMarkMessagesRead:
		cmd = &MarkMessagesRead{}
	case CmdUpdateTradeStatus:
		cmd = &UpdateTradeStatus{}
	default:
		return nil, f.RequestID, utils.NewError(utils.KindValidation, "Неизвестная команда: %q", f.Type)
	}

	if len(f.Payload) == 0 {
		return nil, f.RequestID, utils.NewError(utils.KindValidation, "Команда %s без payload", f.Type)
	}
	if err := json.Unmarshal(f.Payload, cmd); err != nil {
		return nil, f.RequestID, utils.NewError(utils.KindValidation, "Неверный payload команды %s", f.Type)
	}
	if err := validate.Struct(cmd); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, f.RequestID, utils.NewError(utils.KindValidation, "Поле %s не прошло проверку %s", verrs[0].Field(), verrs[0].Tag())
		}
		return nil, f.RequestID, utils.NewError(utils.KindValidation, "Неверный payload команды %s", f.Type)
	}

	// Команды в payload передаются по указателю, дальше работаем со значениями
	switch c := cmd.(type) {
	case *Authenticate:
		return *c, f.RequestID, nil
	case *JoinTrade:
		return *c, f.RequestID, nil
	case *LeaveTrade:
		return *c, f.RequestID, nil
	case *SendMessage:
		return *c, f.RequestID, nil
	case *Typing:
		return *c, f.RequestID, nil
	case *MarkMessagesRead:
		return *c, f.RequestID, nil
	case *UpdateTradeStatus:
		return *c, f.RequestID, nil
	}
	return nil, f.RequestID, utils.NewError(utils.KindValidation, "Неизвестная команда: %q", f.Type)
}

// TradeUpdater описывает машину состояний обмена
type TradeUpdater interface {
	UpdateStatus(ctx context.Context, identity models.Identity, tradeID int64, target models.TradeStatus, notes string) (*models.Trade, error)
}

// MessageRelay описывает доставку сообщений и событий присутствия
type MessageRelay interface {
	SendMessage(ctx context.Context, identity models.Identity, tradeID int64, content string, msgType models.MessageType) (*models.Message, error)
	MarkRead(ctx context.Context, identity models.Identity, tradeID int64, exclude uuid.UUID) (int64, error)
	Typing(identity models.Identity, tradeID int64, from uuid.UUID, started bool)
}

// Dispatcher направляет команды соединения в сервисы
type Dispatcher struct {
	manager *Manager
	trades  TradeUpdater
	relay   MessageRelay
	logger  logrus.FieldLogger
}

// NewDispatcher создает новый экземпляр Dispatcher
func NewDispatcher(manager *Manager, trades TradeUpdater, relay MessageRelay, logger logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		manager: manager,
		trades:  trades,
		relay:   relay,
		logger:  logger,
	}
}

// Dispatch выполняет команду от имени соединения. Ответы отправителю
// уходят в его очередь с тем же request_id; ошибку возвращает вызывающему.
func (d *Dispatcher) Dispatch(ctx context.Context, sub *Subscriber, cmd Command, requestID string) error {
	err := d.dispatch(ctx, sub, cmd, requestID)

	result := "ok"
	if err != nil {
		result = string(utils.KindOf(err))
	}
	metrics.CommandsTotal.WithLabelValues(string(cmd.Type()), result).Inc()

	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, sub *Subscriber, cmd Command, requestID string) error {
	identity := sub.Identity()

	switch c := cmd.(type) {
	case Authenticate:
		return utils.NewError(utils.KindValidation, "Соединение уже аутентифицировано")

	case JoinTrade:
		if err := d.manager.JoinTrade(ctx, sub, c.TradeID); err != nil {
			return err
		}
		d.reply(sub, models.EventJoinedTrade, c.TradeID, requestID, models.JoinedTrade{
			TradeID: c.TradeID,
			Members: d.manager.RoomSize(models.TradeRoom(c.TradeID)),
		})

	case LeaveTrade:
		d.manager.Leave(sub, models.TradeRoom(c.TradeID))
		d.reply(sub, models.EventLeftTrade, c.TradeID, requestID, tradeRef{TradeID: c.TradeID})

	case SendMessage:
		msg, err := d.relay.SendMessage(ctx, identity, c.TradeID, c.Content, c.MessageType)
		if err != nil {
			return err
		}
		d.reply(sub, models.EventMessageSent, c.TradeID, requestID, msg)

	case Typing:
		// Индикатор от соединения вне комнаты молча отбрасывается
		if !d.manager.IsMember(sub, models.TradeRoom(c.TradeID)) {
			return nil
		}
		d.relay.Typing(identity, c.TradeID, sub.ID, c.Started)

	case MarkMessagesRead:
		if _, err := d.relay.MarkRead(ctx, identity, c.TradeID, sub.ID); err != nil {
			return err
		}
		d.reply(sub, models.EventMessagesMarkedRead, c.TradeID, requestID, tradeRef{TradeID: c.TradeID})

	case UpdateTradeStatus:
		updated, err := d.trades.UpdateStatus(ctx, identity, c.TradeID, c.Status, c.Notes)
		if err != nil {
			return err
		}
		d.reply(sub, models.EventTradeStatusChanged, c.TradeID, requestID, models.TradeStatusChanged{
			Trade:        updated,
			NextStatuses: trade.NextStatuses(trade.RoleOf(updated, identity.UserID()), updated.Status),
		})

	default:
		return utils.NewError(utils.KindValidation, "Неизвестная команда: %q", cmd.Type())
	}

	return nil
}

type tradeRef struct {
	TradeID int64 `json:"trade_id"`
}

func (d *Dispatcher) reply(sub *Subscriber, eventType models.EventType, tradeID int64, requestID string, payload any) {
	event, err := models.NewEvent(eventType, tradeID, payload)
	if err != nil {
		d.logger.WithError(err).Error("Error building event")
		return
	}
	event.RequestID = requestID
	d.manager.SendTo(sub, event)
}

// SendError отправляет ошибку только соединению-отправителю
func (d *Dispatcher) SendError(sub *Subscriber, err error, requestID string) {
	d.manager.SendTo(sub, errorEvent(err, requestID))
}

func errorEvent(err error, requestID string) models.Event {
	event, _ := models.NewEvent(models.EventError, 0, models.ErrorPayload{
		Code:    string(utils.KindOf(err)),
		Message: utils.PublicMessage(err),
	})
	event.RequestID = requestID
	return event
}
