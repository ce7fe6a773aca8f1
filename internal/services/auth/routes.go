package auth

import (
	"context"

	"github.com/gofiber/fiber/v3"
)

// SetupRoutes регистрирует маршруты в Fiber
func (v *IdentityVerifier) SetupRoutes(app *fiber.App) {
	app.Post("/api/auth/telegram", v.TelegramAuthHandler)
}

// TelegramAuthHandler проверяет initData, создает JWT и возвращает его
func (v *IdentityVerifier) TelegramAuthHandler(c fiber.Ctx) error {
	var payload struct {
		InitData string `json:"init_data"`
	}

	if err := c.Bind().Body(&payload); err != nil || payload.InitData == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	token, identity, err := v.IssueTokenForTelegram(context.Background(), payload.InitData)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  identity.User(),
	})
}
