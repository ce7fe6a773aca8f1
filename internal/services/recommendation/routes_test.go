package recommendation

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

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
	case "Bearer user":
		return models.NewIdentity(models.User{ID: 1, Username: "me"}), nil
	case "Bearer other":
		return models.NewIdentity(models.User{ID: 5, Username: "chef"}), nil
	case "Bearer admin":
		return models.NewIdentity(models.User{ID: 99, Username: "root", Role: models.RoleAdmin}), nil
	}
	return models.Identity{}, utils.NewError(utils.KindUnauthenticated, "bad token")
}

func newRouteApp(t *testing.T) *fiber.App {
	t.Helper()
	engine := NewEngine(seed(t), DefaultWeights(), 30*24*time.Hour, testLogger())
	app := fiber.New()
	engine.SetupRoutes(app, middleware.AuthMiddleware(tokenAuth{}))
	return app
}

func get(t *testing.T, app *fiber.App, path, token string) (int, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestTrendingRoute_Public(t *testing.T) {
	app := newRouteApp(t)

	status, body := get(t, app, "/api/recommendations/trending?limit=2", "")
	assert.Equal(t, fiber.StatusOK, status)

	var skills []models.TrendingSkill
	require.NoError(t, json.Unmarshal(body["trending_skills"], &skills))
	assert.Len(t, skills, 2)
}

func TestRecommendationsRoute(t *testing.T) {
	app := newRouteApp(t)

	status, body := get(t, app, "/api/recommendations/1?limit=2", "user")
	assert.Equal(t, fiber.StatusOK, status)
	var candidates []models.RecommendationCandidate
	require.NoError(t, json.Unmarshal(body["recommendations"], &candidates))
	require.Len(t, candidates, 2)
	assert.Equal(t, int64(2), candidates[0].UserID)

	status, _ = get(t, app, "/api/recommendations/1", "other")
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = get(t, app, "/api/recommendations/1", "admin")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = get(t, app, "/api/recommendations/1", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = get(t, app, "/api/recommendations/1?limit=many", "user")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestRecommendationsRoute_EmptyHasMessage(t *testing.T) {
	app := newRouteApp(t)

	// У администратора нет своих навыков
	status, body := get(t, app, "/api/recommendations/99", "admin")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body["recommendations"]))
	assert.Contains(t, body, "message")
}
