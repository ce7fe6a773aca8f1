package chat

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/skillswap-api/internal/middleware"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

// SetupRoutes настраивает маршруты чата обмена.
// router уже защищён AuthMiddleware.
func (s *ChatService) SetupRoutes(router fiber.Router) {
	// Маршрут для получения сообщений обмена
	router.Get("/:id/messages", s.GetTradeMessages)

	// Маршрут для отправки сообщения
	router.Post("/:id/messages", s.PostMessage)
}

// GetTradeMessages возвращает историю сообщений обмена
func (s *ChatService) GetTradeMessages(c fiber.Ctx) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	tradeID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || tradeID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID обмена"})
	}

	var beforeID int64
	if before := c.Query("before"); before != "" {
		beforeID, err = strconv.ParseInt(before, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный параметр before"})
		}
	}

	limit := defaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		if limit, err = strconv.Atoi(l); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный параметр limit"})
		}
	}

	messages, err := s.History(context.Background(), identity, tradeID, beforeID, limit)
	if err != nil {
		return c.Status(utils.HTTPStatus(err)).JSON(fiber.Map{
			"error": utils.PublicMessage(err),
			"code":  utils.KindOf(err),
		})
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"count":    len(messages),
	})
}

// PostMessage отправляет сообщение в чат обмена
func (s *ChatService) PostMessage(c fiber.Ctx) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	tradeID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || tradeID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID обмена"})
	}

	var requestData struct {
		Content     string `json:"content"`
		MessageType string `json:"message_type"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	msg, err := s.SendMessage(context.Background(), identity, tradeID, requestData.Content, models.MessageType(requestData.MessageType))
	if err != nil {
		return c.Status(utils.HTTPStatus(err)).JSON(fiber.Map{
			"error": utils.PublicMessage(err),
			"code":  utils.KindOf(err),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": msg,
	})
}
