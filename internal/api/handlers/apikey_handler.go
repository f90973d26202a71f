package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"dashboard/internal/bridge"
	"dashboard/internal/models"
	"dashboard/internal/repository"
	"dashboard/internal/service"
	"dashboard/pkg/crypto"
	"dashboard/pkg/utils"
)

// APIKeyHandler обрабатывает запросы управления API ключами бирж
type APIKeyHandler struct {
	credService service.CredentialServiceInterface
	logger      *utils.Logger
}

// NewAPIKeyHandler создает новый APIKeyHandler
func NewAPIKeyHandler(credService service.CredentialServiceInterface, logger *utils.Logger) *APIKeyHandler {
	if logger == nil {
		logger = utils.L()
	}
	return &APIKeyHandler{
		credService: credService,
		logger:      logger.WithComponent("apikey_handler"),
	}
}

// Create обрабатывает POST /api/v1/api-keys
//
// Ключ сохраняется всегда, даже если настройка Trading Bridge не удалась:
// ответ несет trading_bridge_configured и trading_bridge_warning.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCredentialRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.credService.Create(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExchangeNotSupported):
			respondWithErrorCode(w, http.StatusBadRequest, "exchange is not supported", "exchange_not_supported")
		case errors.Is(err, service.ErrPassphraseRequired):
			respondWithErrorCode(w, http.StatusBadRequest, "passphrase is required for this exchange", "passphrase_required")
		case errors.Is(err, service.ErrMissingCredentials):
			respondWithError(w, http.StatusBadRequest, "api_key and api_secret are required")
		case errors.Is(err, repository.ErrClientNotFound):
			respondWithError(w, http.StatusNotFound, "client not found")
		case errors.Is(err, repository.ErrCredentialExists):
			respondWithError(w, http.StatusConflict, "credential with this label already exists for the exchange")
		default:
			h.logger.Error("failed to create credential", utils.Err(err))
			respondWithError(w, http.StatusInternalServerError, "failed to create credential")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

// ListForClient обрабатывает GET /api/v1/clients/{id}/api-keys
func (h *APIKeyHandler) ListForClient(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["id"]

	items, err := h.credService.ListForClient(clientID)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			respondWithError(w, http.StatusNotFound, "client not found")
			return
		}
		h.logger.Error("failed to list credentials", utils.Err(err), utils.ClientID(clientID))
		respondWithError(w, http.StatusInternalServerError, "failed to list credentials")
		return
	}

	respondWithJSON(w, http.StatusOK, items)
}

// Get обрабатывает GET /api/v1/api-keys/{id}
//
// Возвращает расшифрованные секреты - маршрут закрыт RequireAdmin.
// Ошибка расшифровки отдаётся отдельным кодом: оператору нужно
// перевводить ключ, а не повторять запрос.
func (h *APIKeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	detail, err := h.credService.GetDetail(id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCredentialNotFound):
			respondWithError(w, http.StatusNotFound, "credential not found")
		case errors.Is(err, crypto.ErrDecryptionFailed):
			respondWithErrorCode(w, http.StatusUnprocessableEntity,
				"failed to decrypt credential, re-enter the api key", "decryption_failed")
		default:
			h.logger.Error("failed to get credential", utils.Err(err), utils.CredentialID(id))
			respondWithError(w, http.StatusInternalServerError, "failed to get credential")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, detail)
}

// Update обрабатывает PUT /api/v1/api-keys/{id}
//
// Обновляются только метаданные (label, is_active, notes). Секреты
// неизменяемы: ротация ключа - это удаление и создание заново.
func (h *APIKeyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// Строгий разбор: api_key/api_secret в теле PUT - это ошибка
	// клиента, а не поле, которое можно молча проигнорировать
	var req models.UpdateCredentialRequest
	if err := decodeBodyStrict(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body: secrets cannot be updated, recreate the credential instead")
		return
	}

	item, err := h.credService.Update(id, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNothingToUpdate):
			respondWithError(w, http.StatusBadRequest, "no updatable fields provided")
		case errors.Is(err, repository.ErrCredentialNotFound):
			respondWithError(w, http.StatusNotFound, "credential not found")
		case errors.Is(err, repository.ErrCredentialExists):
			respondWithError(w, http.StatusConflict, "credential with this label already exists for the exchange")
		default:
			h.logger.Error("failed to update credential", utils.Err(err), utils.CredentialID(id))
			respondWithError(w, http.StatusInternalServerError, "failed to update credential")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, item)
}

// Delete обрабатывает DELETE /api/v1/api-keys/{id}
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.credService.Delete(id); err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			respondWithError(w, http.StatusNotFound, "credential not found")
			return
		}
		h.logger.Error("failed to delete credential", utils.Err(err), utils.CredentialID(id))
		respondWithError(w, http.StatusInternalServerError, "failed to delete credential")
		return
	}

	// Удаление локальное: коннектор в Trading Bridge не трогаем
	respondWithJSON(w, http.StatusOK, SuccessResponse{
		Message: "credential deleted; trading bridge connector left untouched",
	})
}

// Verify обрабатывает POST /api/v1/api-keys/{id}/verify
//
// Повторно проталкивает ключ в Trading Bridge и фиксирует момент
// успешной проверки.
func (h *APIKeyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	item, err := h.credService.Verify(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			respondWithError(w, http.StatusNotFound, "credential not found")
			return
		}

		var bridgeErr *bridge.Error
		if errors.As(err, &bridgeErr) {
			respondBridgeError(w, bridgeErr)
			return
		}

		h.logger.Error("failed to verify credential", utils.Err(err), utils.CredentialID(id))
		respondWithError(w, http.StatusInternalServerError, "failed to verify credential")
		return
	}

	respondWithJSON(w, http.StatusOK, item)
}

// respondBridgeError переводит классифицированную ошибку Trading Bridge
// в HTTP статус
func respondBridgeError(w http.ResponseWriter, err *bridge.Error) {
	switch err.Kind {
	case bridge.KindTimeout:
		respondWithErrorCode(w, http.StatusGatewayTimeout, "trading bridge request timed out", string(err.Kind))
	case bridge.KindRemoteRejected:
		// Bridge ответил, но отверг ключ - проблема в данных, не в канале
		respondWithErrorCode(w, http.StatusBadRequest, err.Message, string(err.Kind))
	case bridge.KindTransport:
		respondWithErrorCode(w, http.StatusBadGateway, "trading bridge is unreachable", string(err.Kind))
	default:
		respondWithErrorCode(w, http.StatusBadGateway, "trading bridge request failed", string(err.Kind))
	}
}
