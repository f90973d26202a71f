package handlers

import (
	"net/http"

	"dashboard/internal/service"
	"dashboard/pkg/utils"
)

// BridgeHandler обрабатывает диагностические запросы Trading Bridge
type BridgeHandler struct {
	credService service.CredentialServiceInterface
	logger      *utils.Logger
}

// NewBridgeHandler создает новый BridgeHandler
func NewBridgeHandler(credService service.CredentialServiceInterface, logger *utils.Logger) *BridgeHandler {
	if logger == nil {
		logger = utils.L()
	}
	return &BridgeHandler{
		credService: credService,
		logger:      logger.WithComponent("bridge_handler"),
	}
}

// Health обрабатывает GET /api/v1/trading-bridge/health
//
// Недоступность bridge - это валидный ответ диагностики, а не ошибка
// нашего API: клиент получает 200 с healthy=false.
func (h *BridgeHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, err := h.credService.BridgeHealth(r.Context())
	if err != nil {
		h.logger.Warn("trading bridge health check failed", utils.Err(err))
		status.Healthy = false
		if status.Detail == "" {
			status.Detail = err.Error()
		}
	}

	respondWithJSON(w, http.StatusOK, status)
}
