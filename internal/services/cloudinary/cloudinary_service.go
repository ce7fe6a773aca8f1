package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/skillswap-api/internal/config"
	"github.com/rajivgeraev/skillswap-api/internal/db"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

// UploadParams представляет подписанные параметры прямой загрузки вложения в Cloudinary
type UploadParams struct {
	Timestamp    string `json:"timestamp"`
	Signature    string `json:"signature"`
	APIKey       string `json:"api_key"`
	CloudName    string `json:"cloud_name"`
	Folder       string `json:"folder"`
	UploadPreset string `json:"upload_preset,omitempty"`
	ResourceType string `json:"resource_type"`
}

// TradeReader читает обмен для проверки участия
type TradeReader interface {
	GetTrade(ctx context.Context, tradeID int64) (*models.Trade, error)
}

// CloudinaryService подписывает загрузки вложений для сообщений image/file
type CloudinaryService struct {
	cfg    config.CloudinaryConfig
	trades TradeReader
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewCloudinaryService создает новый экземпляр CloudinaryService
func NewCloudinaryService(cfg config.CloudinaryConfig, trades TradeReader, logger logrus.FieldLogger) *CloudinaryService {
	return &CloudinaryService{
		cfg:    cfg,
		trades: trades,
		logger: logger,
		now:    time.Now,
	}
}

// Enabled сообщает, настроен ли Cloudinary
func (s *CloudinaryService) Enabled() bool {
	return s.cfg.CloudName != "" && s.cfg.APIKey != "" && s.cfg.APISecret != ""
}

// GenerateUploadParams подписывает параметры загрузки для обмена tradeID.
// Подпись выдается только участнику обмена.
func (s *CloudinaryService) GenerateUploadParams(ctx context.Context, identity models.Identity, tradeID int64, msgType models.MessageType) (*UploadParams, error) {
	if !s.Enabled() {
		return nil, utils.NewError(utils.KindInternal, "Загрузка файлов не настроена")
	}

	trade, err := s.trades.GetTrade(ctx, tradeID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, utils.NewError(utils.KindNotFound, "Обмен %d не найден", tradeID)
		}
		s.logger.WithError(err).WithField("trade_id", tradeID).Error("Ошибка запроса обмена")
		return nil, utils.Internal("Ошибка получения обмена", err)
	}
	if !trade.IsParty(identity.UserID()) {
		return nil, utils.NewError(utils.KindUnauthorized, "Вы не участвуете в этом обмене")
	}

	var resourceType string
	switch msgType {
	case models.MessageTypeImage:
		resourceType = "image"
	case models.MessageTypeFile:
		resourceType = "raw"
	default:
		return nil, utils.NewError(utils.KindValidation, "Загрузка доступна только для image и file")
	}

	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	folder := fmt.Sprintf("%s/%s", s.cfg.UploadFolder, models.TradeRoom(tradeID))

	// Параметры для подписи
	params := url.Values{}
	params.Set("timestamp", timestamp)
	params.Set("folder", folder)
	if s.cfg.UploadPreset != "" {
		params.Set("upload_preset", s.cfg.UploadPreset)
	}

	signature, err := api.SignParameters(params, s.cfg.APISecret)
	if err != nil {
		return nil, utils.Internal("Ошибка подписи параметров загрузки", err)
	}

	return &UploadParams{
		Timestamp:    timestamp,
		Signature:    signature,
		APIKey:       s.cfg.APIKey,
		CloudName:    s.cfg.CloudName,
		Folder:       folder,
		UploadPreset: s.cfg.UploadPreset,
		ResourceType: resourceType,
	}, nil
}
