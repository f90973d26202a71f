package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dashboard/internal/api/handlers"
	"dashboard/internal/api/middleware"
	"dashboard/internal/service"
	"dashboard/internal/websocket"
	"dashboard/pkg/utils"
)

// Dependencies - зависимости для построения маршрутов
type Dependencies struct {
	AuthService       service.AuthServiceInterface
	ClientService     service.ClientServiceInterface
	CredentialService service.CredentialServiceInterface
	WSHub             *websocket.Hub
	AllowedOrigins    []string
	Logger            *utils.Logger
}

// SetupRoutes настраивает все маршруты API
func SetupRoutes(deps Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Порядок важен: Recovery снаружи, чтобы ловить паники остальных
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORS(deps.AllowedOrigins))

	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.Logger)
	apiKeyHandler := handlers.NewAPIKeyHandler(deps.CredentialService, deps.Logger)
	clientHandler := handlers.NewClientHandler(deps.ClientService, deps.CredentialService, deps.Logger)
	bridgeHandler := handlers.NewBridgeHandler(deps.CredentialService, deps.Logger)

	// Служебные endpoints без аутентификации
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// WebSocket поток событий. Браузер не может выставить
	// Authorization заголовок на ws - токен уходит в query
	upgrader := websocket.NewUpgrader(deps.WSHub, deps.AllowedOrigins, func(token string) error {
		_, err := deps.AuthService.ValidateToken(token)
		return err
	})
	router.HandleFunc("/ws/stream", upgrader.ServeWS)

	// Публичный login
	router.HandleFunc("/api/v1/auth/login", authHandler.Login).Methods(http.MethodPost)

	// Все остальное /api/v1 за JWT
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(deps.AuthService))

	// Клиенты
	api.HandleFunc("/clients", clientHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/clients", clientHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/clients/{id}", clientHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/clients/{id}/api-keys", apiKeyHandler.ListForClient).Methods(http.MethodGet)
	api.HandleFunc("/clients/{id}/reinitialize", clientHandler.Reinitialize).Methods(http.MethodPost)
	api.HandleFunc("/clients/{id}/trading-bridge-status", clientHandler.TradingBridgeStatus).Methods(http.MethodGet)

	// API ключи. GET по id отдаёт расшифрованные секреты,
	// поэтому закрыт ролью admin поверх общей аутентификации
	api.HandleFunc("/api-keys", apiKeyHandler.Create).Methods(http.MethodPost)
	api.Handle("/api-keys/{id}", middleware.RequireAdmin(http.HandlerFunc(apiKeyHandler.Get))).Methods(http.MethodGet)
	api.HandleFunc("/api-keys/{id}", apiKeyHandler.Update).Methods(http.MethodPut)
	api.HandleFunc("/api-keys/{id}", apiKeyHandler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/api-keys/{id}/verify", apiKeyHandler.Verify).Methods(http.MethodPost)

	// Диагностика Trading Bridge
	api.HandleFunc("/trading-bridge/health", bridgeHandler.Health).Methods(http.MethodGet)

	return router
}
