package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dashboard/internal/api"
	"dashboard/internal/bridge"
	"dashboard/internal/config"
	"dashboard/internal/repository"
	"dashboard/internal/service"
	"dashboard/internal/websocket"
	"dashboard/pkg/crypto"
	"dashboard/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger := utils.InitLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	utils.SetGlobalLogger(logger)
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", utils.Err(err))
	}
	defer db.Close()

	logger.Info("connected to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Шифрование секретов бирж
	cipher, err := crypto.NewCipher([]byte(cfg.Security.EncryptionKey))
	if err != nil {
		logger.Fatal("failed to initialize cipher", utils.Err(err))
	}

	// Клиент Trading Bridge
	bridgeClient := bridge.NewClient(
		cfg.Bridge.BaseURL,
		cfg.Bridge.ProvisionTimeout,
		cfg.Bridge.DiagnosticsTimeout,
		logger,
	)

	// Инициализация репозиториев
	credRepo := repository.NewCredentialRepository(db)
	clientRepo := repository.NewClientRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Инициализация сервисов
	credService := service.NewCredentialService(credRepo, clientRepo, cipher, bridgeClient, logger)
	clientService := service.NewClientService(clientRepo, logger)
	authService := service.NewAuthService(
		userRepo,
		cfg.Security.JWTSecret,
		time.Duration(cfg.Security.SessionTimeout)*time.Second,
		cfg.Security.LoginRateLimit,
		cfg.Security.LoginBurst,
		logger,
	)

	// WebSocket hub для событий frontend
	hub := websocket.NewHub(logger)
	go hub.Run()
	credService.SetWebSocketHub(hub)

	// Настройка HTTP роутера
	router := api.SetupRoutes(api.Dependencies{
		AuthService:       authService,
		ClientService:     clientService,
		CredentialService: credService,
		WSHub:             hub,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		Logger:            logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		logger.Info("starting server", utils.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", utils.Err(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", utils.Err(err))
	}

	logger.Info("server exited")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
