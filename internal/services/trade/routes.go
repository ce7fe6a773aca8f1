package trade

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/skillswap-api/internal/middleware"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

// SetupRoutes настраивает маршруты для API обменов.
// router уже защищён AuthMiddleware.
func (s *TradeService) SetupRoutes(router fiber.Router) {
	// Маршрут для обновления статуса обмена
	router.Put("/:id/status", s.UpdateTradeStatus)
}

// UpdateTradeStatus обновляет статус обмена
func (s *TradeService) UpdateTradeStatus(c fiber.Ctx) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	tradeID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || tradeID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID обмена"})
	}

	var requestData struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		s.logger.WithError(err).Debug("Ошибка декодирования тела запроса")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	trade, err := s.UpdateStatus(context.Background(), identity, tradeID, models.TradeStatus(requestData.Status), requestData.Notes)
	if err != nil {
		return c.Status(utils.HTTPStatus(err)).JSON(fiber.Map{
			"error": utils.PublicMessage(err),
			"code":  utils.KindOf(err),
		})
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"message":       statusMessage(trade.Status),
		"trade":         trade,
		"next_statuses": NextStatuses(RoleOf(trade, identity.UserID()), trade.Status),
	})
}

func statusMessage(status models.TradeStatus) string {
	switch status {
	case models.TradeStatusAccepted:
		return "Предложение обмена принято"
	case models.TradeStatusRejected:
		return "Предложение обмена отклонено"
	case models.TradeStatusCancelled:
		return "Предложение обмена отменено"
	case models.TradeStatusInProgress:
		return "Обмен начат"
	case models.TradeStatusCompleted:
		return "Обмен завершён"
	}
	return "Статус обмена обновлён"
}
