package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config структура конфигурации
type Config struct {
	Port             string
	WSPort           string
	TelegramBotToken string
	JWTSecret        string
	DatabaseURL      string
	AutoMigrate      bool
	DatabaseConfig   DatabaseConfig
	CloudinaryConfig CloudinaryConfig
	RedisConfig      RedisConfig
	WebSocket        WebSocketConfig
	Recommendation   RecommendationConfig
	AppEnv           string
}

// DatabaseConfig содержит конфигурацию базы данных
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// CloudinaryConfig содержит конфигурацию для Cloudinary
type CloudinaryConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
	UploadFolder string
}

// RedisConfig содержит параметры подключения к Redis для кэша трендов.
// Пустой Addr отключает кэш.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// WebSocketConfig содержит параметры живых соединений
type WebSocketConfig struct {
	HandshakeTimeout  time.Duration
	SendQueueSize     int
	CommandsPerSecond float64
	CommandBurst      int
	MaxMessageSize    int64
}

// RecommendationConfig содержит веса скоринга и окно трендов
type RecommendationConfig struct {
	OfferingMatch     float64
	SeekingMatch      float64
	CategoryMatch     float64
	RatingFactor      float64
	TradeFactor       float64
	TradeBonusCap     float64
	ExpertBonus       float64
	IntermediateBonus float64
	TrendingWindow    time.Duration
}

// LoadConfig загружает переменные из .env и окружения
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Info("⚠️ .env файл не найден, используем переменные окружения")
	}

	var errs []error

	dbConfig := DatabaseConfig{
		Host:     getEnv("PGHOST", "localhost"),
		Port:     getEnv("PGPORT", "5432"),
		User:     getEnv("PGUSER", "skillswap_user"),
		Password: getEnv("PGPASSWORD", "skillswap_pass"),
		Name:     getEnv("PGDATABASE", "skillswap"),
		SSLMode:  getEnv("PGSSLMODE", "disable"),
		MaxConns: int32(getInt("PG_MAX_CONNS", 10, &errs)),
		MinConns: int32(getInt("PG_MIN_CONNS", 2, &errs)),
	}

	// Формируем строку подключения к базе данных
	dbURL := getEnv("DATABASE_URL", fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name, dbConfig.SSLMode))

	cloudinaryConfig := CloudinaryConfig{
		CloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
		APIKey:       getEnv("CLOUDINARY_API_KEY", ""),
		APISecret:    getEnv("CLOUDINARY_API_SECRET", ""),
		UploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", "skillswap_chat"),
		UploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "skillswap/messages"),
	}

	redisConfig := RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getInt("REDIS_DB", 0, &errs),
		TTL:      getDuration("TRENDING_CACHE_TTL", 5*time.Minute, &errs),
	}

	wsConfig := WebSocketConfig{
		HandshakeTimeout:  getDuration("WS_HANDSHAKE_TIMEOUT", 10*time.Second, &errs),
		SendQueueSize:     getInt("WS_SEND_QUEUE", 256, &errs),
		CommandsPerSecond: getFloat("WS_COMMANDS_PER_SECOND", 20, &errs),
		CommandBurst:      getInt("WS_COMMAND_BURST", 40, &errs),
		MaxMessageSize:    int64(getInt("WS_MAX_MESSAGE_SIZE", 512*1024, &errs)),
	}

	recConfig := RecommendationConfig{
		OfferingMatch:     getFloat("RECOMMEND_WEIGHT_OFFERING", 10, &errs),
		SeekingMatch:      getFloat("RECOMMEND_WEIGHT_SEEKING", 8, &errs),
		CategoryMatch:     getFloat("RECOMMEND_WEIGHT_CATEGORY", 3, &errs),
		RatingFactor:      getFloat("RECOMMEND_WEIGHT_RATING", 2, &errs),
		TradeFactor:       getFloat("RECOMMEND_WEIGHT_TRADES", 0.5, &errs),
		TradeBonusCap:     getFloat("RECOMMEND_TRADES_CAP", 10, &errs),
		ExpertBonus:       getFloat("RECOMMEND_WEIGHT_EXPERT", 2, &errs),
		IntermediateBonus: getFloat("RECOMMEND_WEIGHT_INTERMEDIATE", 1, &errs),
		TrendingWindow:    time.Duration(getInt("TRENDING_WINDOW_DAYS", 30, &errs)) * 24 * time.Hour,
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		WSPort:           getEnv("WS_PORT", "8081"),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		DatabaseURL:      dbURL,
		AutoMigrate:      getEnv("DB_AUTO_MIGRATE", "false") == "true",
		DatabaseConfig:   dbConfig,
		CloudinaryConfig: cloudinaryConfig,
		RedisConfig:      redisConfig,
		WebSocket:        wsConfig,
		Recommendation:   recConfig,
		AppEnv:           getEnv("APP_ENV", "production"), // По умолчанию production
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("не задана обязательная переменная JWT_SECRET"))
	}
	if cfg.WebSocket.SendQueueSize <= 0 {
		errs = append(errs, errors.New("WS_SEND_QUEUE должен быть положительным"))
	}
	if cfg.WebSocket.CommandsPerSecond <= 0 {
		errs = append(errs, errors.New("WS_COMMANDS_PER_SECOND должен быть положительным"))
	}
	if cfg.WebSocket.CommandBurst <= 0 {
		errs = append(errs, errors.New("WS_COMMAND_BURST должен быть положительным"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("❌ ошибка конфигурации: %w", err)
	}

	return cfg, nil
}

// IsDevelopment сообщает, запущено ли приложение в режиме разработки
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// getEnv получает переменную окружения или использует дефолтное значение
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return parsed
}

func getFloat(key string, defaultValue float64, errs *[]error) float64 {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return parsed
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return parsed
}
