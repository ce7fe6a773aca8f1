package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/rajivgeraev/skillswap-api/internal/db"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

// Срок жизни данных инициализации Telegram
const telegramInitDataTTL = 24 * time.Hour

// UserStore описывает часть хранилища, нужную для проверки личности
type UserStore interface {
	GetActiveUser(ctx context.Context, userID int64) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
}

// IdentityVerifier проверяет учётные данные и выдаёт неизменяемую Identity
type IdentityVerifier struct {
	jwtService       *utils.JWTService
	users            UserStore
	telegramBotToken string
	logger           logrus.FieldLogger
}

// NewIdentityVerifier создает новый экземпляр IdentityVerifier.
// Пустой telegramBotToken отключает вход через Telegram.
func NewIdentityVerifier(jwtService *utils.JWTService, users UserStore, telegramBotToken string, logger logrus.FieldLogger) *IdentityVerifier {
	return &IdentityVerifier{
		jwtService:       jwtService,
		users:            users,
		telegramBotToken: telegramBotToken,
		logger:           logger,
	}
}

// Authenticate проверяет подпись и срок действия учётных данных,
// затем убеждается, что пользователь существует и активен.
// Поддерживаются формы "Bearer <jwt>", "<jwt>" и "tma <initData>".
func (v *IdentityVerifier) Authenticate(ctx context.Context, credential string) (models.Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return models.Identity{}, utils.NewError(utils.KindUnauthenticated, "Отсутствуют учётные данные")
	}

	scheme, value, found := strings.Cut(credential, " ")
	if !found {
		return v.authenticateJWT(ctx, credential)
	}

	value = strings.TrimSpace(value)
	switch strings.ToLower(scheme) {
	case "bearer":
		return v.authenticateJWT(ctx, value)
	case "tma":
		return v.authenticateTelegram(ctx, value)
	}

	return models.Identity{}, utils.NewError(utils.KindUnauthenticated, "Неверный формат учётных данных")
}

func (v *IdentityVerifier) authenticateJWT(ctx context.Context, token string) (models.Identity, error) {
	userID, err := v.jwtService.ExtractUserID(token)
	if err != nil {
		v.logger.WithError(err).Debug("JWT не прошёл проверку")
		return models.Identity{}, utils.NewError(utils.KindUnauthenticated, "Недействительный или просроченный токен")
	}

	user, err := v.users.GetActiveUser(ctx, userID)
	return v.identityFor(user, err, userID)
}

func (v *IdentityVerifier) authenticateTelegram(ctx context.Context, rawInitData string) (models.Identity, error) {
	if v.telegramBotToken == "" {
		return models.Identity{}, utils.NewError(utils.KindUnauthenticated, "Вход через Telegram отключён")
	}

	// Проверяем initData
	if err := initdata.Validate(rawInitData, v.telegramBotToken, telegramInitDataTTL); err != nil {
		v.logger.WithError(err).Debug("initData не прошли проверку")
		return models.Identity{}, utils.NewError(utils.KindUnauthenticated, "Недействительные данные Telegram")
	}

	data, err := initdata.Parse(rawInitData)
	if err != nil || data.User.ID == 0 {
		return models.Identity{}, utils.NewError(utils.KindUnauthenticated, "Не удалось разобрать данные Telegram")
	}

	user, err := v.users.GetUserByTelegramID(ctx, data.User.ID)
	return v.identityFor(user, err, data.User.ID)
}

func (v *IdentityVerifier) identityFor(user *models.User, err error, ref int64) (models.Identity, error) {
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.Identity{}, utils.NewError(utils.KindUnauthenticated, "Пользователь не найден или заблокирован")
		}
		v.logger.WithError(err).WithField("ref", ref).Error("Ошибка проверки пользователя")
		return models.Identity{}, utils.Internal("Ошибка проверки пользователя", err)
	}
	if !user.IsActive {
		return models.Identity{}, utils.NewError(utils.KindUnauthenticated, "Пользователь не найден или заблокирован")
	}

	return models.NewIdentity(*user), nil
}

// IssueTokenForTelegram обменивает initData Telegram на JWT для уже привязанного пользователя
func (v *IdentityVerifier) IssueTokenForTelegram(ctx context.Context, rawInitData string) (string, models.Identity, error) {
	identity, err := v.authenticateTelegram(ctx, rawInitData)
	if err != nil {
		return "", models.Identity{}, err
	}

	token, err := v.jwtService.GenerateToken(identity.UserID())
	if err != nil {
		return "", models.Identity{}, utils.Internal("Не удалось создать токен", err)
	}

	return token, identity, nil
}
