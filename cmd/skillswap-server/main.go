package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rajivgeraev/skillswap-api/internal/config"
	"github.com/rajivgeraev/skillswap-api/internal/db"
	"github.com/rajivgeraev/skillswap-api/internal/middleware"
	"github.com/rajivgeraev/skillswap-api/internal/services/auth"
	"github.com/rajivgeraev/skillswap-api/internal/services/chat"
	"github.com/rajivgeraev/skillswap-api/internal/services/cloudinary"
	"github.com/rajivgeraev/skillswap-api/internal/services/recommendation"
	"github.com/rajivgeraev/skillswap-api/internal/services/trade"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
	"github.com/rajivgeraev/skillswap-api/internal/websocket"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// Загружаем конфигурацию
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.IsDevelopment() {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	}

	// Инициализируем базу данных
	pool, err := db.InitDB(ctx, cfg, log)
	if err != nil {
		log.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
	}
	if cfg.AutoMigrate {
		if err := db.ApplySchema(ctx, pool); err != nil {
			log.Fatalf("❌ %v", err)
		}
	}
	store := db.NewStore(pool)
	defer store.Close()

	// Кэш трендов в Redis необязателен
	var redisClient *redis.Client
	if cfg.RedisConfig.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("❌ Ошибка подключения к Redis: %v", err)
		}
		defer redisClient.Close()
	}

	// Создаём сервисы
	jwtService := utils.NewJWTService(cfg.JWTSecret)
	verifier := auth.NewIdentityVerifier(jwtService, store, cfg.TelegramBotToken, log)
	manager := websocket.NewManager(store, cfg.WebSocket.SendQueueSize, log)
	tradeService := trade.NewTradeService(store, manager, log)
	chatService := chat.NewChatService(store, manager, log)
	cloudinaryService := cloudinary.NewCloudinaryService(cfg.CloudinaryConfig, store, log)
	engine := recommendation.NewEngine(
		store,
		recommendation.WeightsFromConfig(cfg.Recommendation),
		cfg.Recommendation.TrendingWindow,
		log,
	)
	if redisClient != nil {
		engine.WithCache(redisClient, cfg.RedisConfig.TTL)
	}
	dispatcher := websocket.NewDispatcher(manager, tradeService, chatService, log)

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "SkillSwap API",
		ErrorHandler: errorHandler(log),
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	app.Get("/health", func(c fiber.Ctx) error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{
			"status":      "ok",
			"connections": manager.ConnectionCount(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Настраиваем middleware для аутентификации
	authMiddleware := middleware.AuthMiddleware(verifier)

	// Регистрируем маршруты
	verifier.SetupRoutes(app)
	engine.SetupRoutes(app, authMiddleware)

	trades := app.Group("/api/trades", authMiddleware)
	tradeService.SetupRoutes(trades)
	chatService.SetupRoutes(trades)

	cloudinaryService.SetupRoutes(app.Group("/api/uploads", authMiddleware))

	// WebSocket работает на отдельном net/http сервере
	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.NewHandler(manager, dispatcher, verifier, cfg.WebSocket, log))
	wsServer := &http.Server{
		Addr:              ":" + cfg.WSPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("✅ SkillSwap API запущен на порту %s", cfg.Port)
		return app.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true})
	})
	g.Go(func() error {
		log.Infof("✅ WebSocket сервер запущен на порту %s", cfg.WSPort)
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Останавливаем серверы")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		manager.Shutdown()
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Ошибка остановки WebSocket сервера")
		}
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := utils.HTTPStatus(err)
		message := utils.PublicMessage(err)

		// Проверяем, является ли ошибка из Fiber
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			message = fiberErr.Message
		}

		if code >= fiber.StatusInternalServerError {
			log.WithError(err).WithField("path", c.Path()).Error("Ошибка обработки запроса")
		}

		// Отправляем ошибку в JSON
		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}
