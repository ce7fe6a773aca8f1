package cloudinary

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/skillswap-api/internal/middleware"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

// SetupRoutes настраивает маршруты загрузки вложений.
// router уже защищён AuthMiddleware.
func (s *CloudinaryService) SetupRoutes(router fiber.Router) {
	// Маршрут для получения параметров загрузки
	router.Get("/params", s.UploadParamsHandler)
}

// UploadParamsHandler возвращает подписанные параметры загрузки
func (s *CloudinaryService) UploadParamsHandler(c fiber.Ctx) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	tradeID, err := strconv.ParseInt(c.Query("trade_id"), 10, 64)
	if err != nil || tradeID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID обмена"})
	}

	msgType := models.MessageType(c.Query("type", string(models.MessageTypeImage)))
	params, err := s.GenerateUploadParams(context.Background(), identity, tradeID, msgType)
	if err != nil {
		return c.Status(utils.HTTPStatus(err)).JSON(fiber.Map{
			"error": utils.PublicMessage(err),
			"code":  utils.KindOf(err),
		})
	}

	return c.JSON(params)
}
