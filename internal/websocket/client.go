package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rajivgeraev/skillswap-api/internal/config"
	"github.com/rajivgeraev/skillswap-api/internal/metrics"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

const (
	// Максимальное время ожидания для pong от клиента
	pongWait = 60 * time.Second

	// Отправлять ping-сообщения клиенту с этим интервалом
	pingPeriod = (pongWait * 9) / 10

	// Время на запись одного кадра
	writeWait = 10 * time.Second

	// Время на выполнение одной команды
	commandTimeout = 15 * time.Second
)

// Authenticator проверяет учётные данные при рукопожатии
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (models.Identity, error)
}

// Handler принимает WebSocket соединения на /ws
type Handler struct {
	manager    *Manager
	dispatcher *Dispatcher
	auth       Authenticator
	cfg        config.WebSocketConfig
	upgrader   websocket.Upgrader
	logger     logrus.FieldLogger
}

// NewHandler создает новый экземпляр Handler
func NewHandler(manager *Manager, dispatcher *Dispatcher, auth Authenticator, cfg config.WebSocketConfig, logger logrus.FieldLogger) *Handler {
	return &Handler{
		manager:    manager,
		dispatcher: dispatcher,
		auth:       auth,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// Client представляет собой отдельное WebSocket соединение
type Client struct {
	conn       *websocket.Conn
	sub        *Subscriber
	manager    *Manager
	dispatcher *Dispatcher
	limiter    *rate.Limiter
	maxSize    int64
	logger     logrus.FieldLogger
}

// ServeHTTP выполняет upgrade, рукопожатие и запускает клиентские горутины
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade the websocket")
		return
	}

	identity, err := h.handshake(conn, r)
	if err != nil {
		metrics.HandshakesTotal.WithLabelValues(string(utils.KindOf(err))).Inc()
		h.logger.WithError(err).Info("WebSocket handshake rejected")
		h.reject(conn, err)
		return
	}
	metrics.HandshakesTotal.WithLabelValues("ok").Inc()

	client := &Client{
		conn:       conn,
		manager:    h.manager,
		dispatcher: h.dispatcher,
		limiter:    rate.NewLimiter(rate.Limit(h.cfg.CommandsPerSecond), h.cfg.CommandBurst),
		maxSize:    h.cfg.MaxMessageSize,
	}
	client.sub = h.manager.Register(identity, func() { conn.Close() })
	client.logger = h.logger.WithFields(logrus.Fields{
		"conn_id": client.sub.ID,
		"user_id": identity.UserID(),
	})

	connected, _ := models.NewEvent(models.EventConnected, 0, identity.User())
	connected.UserID = identity.UserID()
	h.manager.SendTo(client.sub, connected)

	go client.writePump()
	client.readPump()
}

// handshake достаёт учётные данные из заголовка, параметра token
// или первого кадра authenticate, пришедшего за HandshakeTimeout
func (h *Handler) handshake(conn *websocket.Conn, r *http.Request) (models.Identity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.HandshakeTimeout)
	defer cancel()

	credential := r.Header.Get("Authorization")
	if credential == "" {
		credential = r.URL.Query().Get("token")
	}

	if credential == "" {
		conn.SetReadLimit(h.cfg.MaxMessageSize)
		conn.SetReadDeadline(time.Now().Add(h.cfg.HandshakeTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return models.Identity{}, utils.NewError(utils.KindUnauthenticated, "Аутентификация не пройдена вовремя")
		}
		cmd, _, err := DecodeCommand(data)
		if err != nil {
			return models.Identity{}, utils.NewError(utils.KindUnauthenticated, "Ожидалась команда authenticate")
		}
		auth, ok := cmd.(Authenticate)
		if !ok {
			return models.Identity{}, utils.NewError(utils.KindUnauthenticated, "Ожидалась команда authenticate")
		}
		credential = auth.Token
	}

	identity, err := h.auth.Authenticate(ctx, credential)
	if err != nil {
		return models.Identity{}, err
	}
	return identity, nil
}

// reject отправляет ошибку и закрывает соединение до регистрации
func (h *Handler) reject(conn *websocket.Conn, err error) {
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(errorEvent(err, "")); err != nil {
		return
	}
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthenticated"),
		time.Now().Add(writeWait),
	)
}

// readPump обрабатывает входящие команды клиента строго по очереди,
// поэтому события одного отправителя попадают в комнаты в порядке отправки
func (c *Client) readPump() {
	defer func() {
		c.manager.Unregister(c.sub)
		c.conn.Close()
	}()

	// Настраиваем соединение
	c.conn.SetReadLimit(c.maxSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.WithError(err).Warn("Unexpected close error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		c.handleIncomingMessage(message)
	}
}

// handleIncomingMessage разбирает и выполняет одну команду
func (c *Client) handleIncomingMessage(message []byte) {
	cmd, requestID, err := DecodeCommand(message)
	if err != nil {
		c.dispatcher.SendError(c.sub, err, requestID)
		return
	}

	if !c.limiter.Allow() {
		c.dispatcher.SendError(c.sub, utils.NewError(utils.KindRateLimited, "Слишком много команд"), requestID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := c.dispatcher.Dispatch(ctx, c.sub, cmd, requestID); err != nil {
		if utils.KindOf(err) == utils.KindInternal {
			c.logger.WithError(err).WithField("command", cmd.Type()).Error("Command failed")
		}
		c.dispatcher.SendError(c.sub, err, requestID)
	}
}

// writePump отправляет события клиенту, пока очередь не закрыта
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	outbound := c.sub.Outbound()
	for {
		select {
		case message, ok := <-outbound:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрыт, отправляем сообщение о закрытии соединения
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.WithError(err).Debug("Error writing message")
				return
			}
		case <-ticker.C:
			// Отправляем ping для поддержания соединения
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
