package middleware

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

const identityKey = "identity"

// Authenticator проверяет учётные данные и возвращает личность
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (models.Identity, error)
}

// AuthMiddleware создаёт middleware для проверки Bearer токена
func AuthMiddleware(verifier Authenticator) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		identity, err := verifier.Authenticate(context.Background(), authHeader)
		if err != nil {
			if utils.KindOf(err) == utils.KindInternal {
				return err
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		// Добавляем личность в контекст
		c.Locals(identityKey, identity)

		return c.Next()
	}
}

// IdentityFrom достаёт проверенную личность из контекста запроса
func IdentityFrom(c fiber.Ctx) (models.Identity, bool) {
	identity, ok := c.Locals(identityKey).(models.Identity)
	if !ok || identity.IsZero() {
		return models.Identity{}, false
	}
	return identity, true
}
