package recommendation

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/skillswap-api/internal/middleware"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

// SetupRoutes настраивает маршруты рекомендаций.
// Тренды публичные и регистрируются до защищённой группы.
func (e *Engine) SetupRoutes(app *fiber.App, authMiddleware fiber.Handler) {
	app.Get("/api/recommendations/trending", e.GetTrending)

	protected := app.Group("/api/recommendations", authMiddleware)
	protected.Get("/:userId", e.GetRecommendations)
}

// GetTrending возвращает популярные навыки
func (e *Engine) GetTrending(c fiber.Ctx) error {
	limit, err := queryLimit(c, DefaultTrendingLimit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный параметр limit"})
	}

	trending, err := e.Trending(context.Background(), limit)
	if err != nil {
		return c.Status(utils.HTTPStatus(err)).JSON(fiber.Map{"error": utils.PublicMessage(err)})
	}

	return c.JSON(fiber.Map{
		"trending_skills": trending,
	})
}

// GetRecommendations возвращает кандидатов в партнёры.
// Чужие рекомендации доступны только администратору.
func (e *Engine) GetRecommendations(c fiber.Ctx) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	userID, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil || userID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	if userID != identity.UserID() && !identity.IsAdmin() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Нет доступа к рекомендациям другого пользователя"})
	}

	limit, err := queryLimit(c, DefaultRecommendLimit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный параметр limit"})
	}

	candidates, err := e.Recommend(context.Background(), userID, limit)
	if err != nil {
		return c.Status(utils.HTTPStatus(err)).JSON(fiber.Map{"error": utils.PublicMessage(err)})
	}

	response := fiber.Map{
		"recommendations": candidates,
	}
	if len(candidates) == 0 {
		response["message"] = "Пока нет подходящих партнёров. Добавьте навыки, которые вы ищете или предлагаете."
	}

	return c.JSON(response)
}

func queryLimit(c fiber.Ctx, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
