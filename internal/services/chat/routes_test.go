package chat

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/skillswap-api/internal/middleware"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

type tokenAuth struct{}

func (tokenAuth) Authenticate(_ context.Context, credential string) (models.Identity, error) {
	switch credential {
	case "Bearer alice":
		return identity(aliceID, "alice"), nil
	case "Bearer eve":
		return identity(eveID, "eve"), nil
	}
	return models.Identity{}, utils.NewError(utils.KindUnauthenticated, "bad token")
}

func TestMessageRoutes(t *testing.T) {
	svc, _, notifier := setup(t)
	app := fiber.New()
	svc.SetupRoutes(app.Group("/api/trades", middleware.AuthMiddleware(tokenAuth{})))

	req := httptest.NewRequest(fiber.MethodPost, "/api/trades/42/messages", strings.NewReader(`{"content":"hi bob"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer alice")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Len(t, notifier.sent(), 2)

	req = httptest.NewRequest(fiber.MethodGet, "/api/trades/42/messages?limit=10", nil)
	req.Header.Set("Authorization", "Bearer alice")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Messages []models.Message `json:"messages"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "hi bob", body.Messages[0].Content)
	assert.Equal(t, bobID, body.Messages[0].ReceiverID)

	req = httptest.NewRequest(fiber.MethodGet, "/api/trades/42/messages", nil)
	req.Header.Set("Authorization", "Bearer eve")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodGet, "/api/trades/42/messages?before=x", nil)
	req.Header.Set("Authorization", "Bearer alice")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
