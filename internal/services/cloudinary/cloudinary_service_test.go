package cloudinary

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/skillswap-api/internal/config"
	"github.com/rajivgeraev/skillswap-api/internal/db/memdb"
	"github.com/rajivgeraev/skillswap-api/internal/middleware"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

func member(id int64) models.Identity {
	return models.NewIdentity(models.User{ID: id, Username: "user" + strconv.FormatInt(id, 10), IsActive: true})
}

func testService(cfg config.CloudinaryConfig) *CloudinaryService {
	store := memdb.New()
	store.AddTrade(models.Trade{ID: 42, RequesterID: 7, ProviderID: 9, Status: models.TradeStatusAccepted})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := NewCloudinaryService(cfg, store, logger)
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	return svc
}

func enabledConfig() config.CloudinaryConfig {
	return config.CloudinaryConfig{
		CloudName:    "demo",
		APIKey:       "key",
		APISecret:    "secret",
		UploadFolder: "skillswap/messages",
	}
}

func TestGenerateUploadParams(t *testing.T) {
	params, err := testService(enabledConfig()).GenerateUploadParams(context.Background(), member(7), 42, models.MessageTypeImage)
	require.NoError(t, err)

	assert.Equal(t, "1700000000", params.Timestamp)
	assert.Equal(t, "skillswap/messages/trade_42", params.Folder)
	assert.Equal(t, "image", params.ResourceType)

	// Подпись Cloudinary: SHA-1 от отсортированных параметров с секретом в конце
	sum := sha1.Sum([]byte("folder=skillswap/messages/trade_42&timestamp=1700000000secret"))
	assert.Equal(t, hex.EncodeToString(sum[:]), params.Signature)
}

func TestGenerateUploadParams_Errors(t *testing.T) {
	ctx := context.Background()
	svc := testService(enabledConfig())

	_, err := svc.GenerateUploadParams(ctx, member(9), 42, models.MessageTypeText)
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = svc.GenerateUploadParams(ctx, member(11), 42, models.MessageTypeImage)
	assert.ErrorIs(t, err, utils.ErrUnauthorized)

	_, err = svc.GenerateUploadParams(ctx, member(7), 404, models.MessageTypeImage)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	_, err = testService(config.CloudinaryConfig{}).GenerateUploadParams(ctx, member(7), 42, models.MessageTypeFile)
	assert.ErrorIs(t, err, utils.ErrInternal)
}

// userAuth принимает "Bearer <user id>"
type userAuth struct{}

func (userAuth) Authenticate(_ context.Context, credential string) (models.Identity, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(credential, "Bearer "), 10, 64)
	if err != nil {
		return models.Identity{}, utils.NewError(utils.KindUnauthenticated, "bad token")
	}
	return member(id), nil
}

func TestUploadParamsHandler(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		query  string
		status int
	}{
		{"party gets params", "7", "?trade_id=42&type=file", fiber.StatusOK},
		{"outsider rejected", "11", "?trade_id=42&type=image", fiber.StatusForbidden},
		{"missing trade", "7", "?trade_id=404", fiber.StatusNotFound},
		{"bad trade id", "7", "?trade_id=abc", fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			testService(enabledConfig()).SetupRoutes(app.Group("/api/uploads", middleware.AuthMiddleware(userAuth{})))

			req := httptest.NewRequest(fiber.MethodGet, "/api/uploads/params"+tt.query, nil)
			req.Header.Set("Authorization", "Bearer "+tt.user)

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
