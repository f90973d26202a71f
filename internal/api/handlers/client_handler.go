package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"dashboard/internal/bridge"
	"dashboard/internal/models"
	"dashboard/internal/repository"
	"dashboard/internal/service"
	"dashboard/pkg/utils"
)

// ClientHandler обрабатывает запросы управления клиентами
type ClientHandler struct {
	clientService service.ClientServiceInterface
	credService   service.CredentialServiceInterface
	logger        *utils.Logger
}

// NewClientHandler создает новый ClientHandler
func NewClientHandler(clientService service.ClientServiceInterface, credService service.CredentialServiceInterface, logger *utils.Logger) *ClientHandler {
	if logger == nil {
		logger = utils.L()
	}
	return &ClientHandler{
		clientService: clientService,
		credService:   credService,
		logger:        logger.WithComponent("client_handler"),
	}
}

// List обрабатывает GET /api/v1/clients
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clientService.List()
	if err != nil {
		h.logger.Error("failed to list clients", utils.Err(err))
		respondWithError(w, http.StatusInternalServerError, "failed to list clients")
		return
	}

	respondWithJSON(w, http.StatusOK, clients)
}

// Create обрабатывает POST /api/v1/clients
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateClientRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	client, err := h.clientService.Create(&req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientNameRequired):
			respondWithError(w, http.StatusBadRequest, "client name is required")
		case errors.Is(err, repository.ErrClientExists):
			respondWithError(w, http.StatusConflict, "client already exists")
		default:
			h.logger.Error("failed to create client", utils.Err(err))
			respondWithError(w, http.StatusInternalServerError, "failed to create client")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, client)
}

// Get обрабатывает GET /api/v1/clients/{id}
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	client, err := h.clientService.Get(id)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			respondWithError(w, http.StatusNotFound, "client not found")
			return
		}
		h.logger.Error("failed to get client", utils.Err(err), utils.ClientID(id))
		respondWithError(w, http.StatusInternalServerError, "failed to get client")
		return
	}

	respondWithJSON(w, http.StatusOK, client)
}

// Reinitialize обрабатывает POST /api/v1/clients/{id}/reinitialize
//
// Сверка состояния: аккаунт в Trading Bridge создается при необходимости,
// затем все активные ключи клиента проталкиваются заново. Частичный
// провал не прерывает проход - результат несет итог по каждому коннектору.
func (h *ClientHandler) Reinitialize(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	result, err := h.credService.Reinitialize(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			respondWithError(w, http.StatusNotFound, "client not found")
			return
		}

		var bridgeErr *bridge.Error
		if errors.As(err, &bridgeErr) {
			respondBridgeError(w, bridgeErr)
			return
		}

		h.logger.Error("reinitialize failed", utils.Err(err), utils.ClientID(id))
		respondWithError(w, http.StatusInternalServerError, "reinitialize failed")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// TradingBridgeStatus обрабатывает GET /api/v1/clients/{id}/trading-bridge-status
func (h *ClientHandler) TradingBridgeStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	status, err := h.credService.BridgeStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			respondWithError(w, http.StatusNotFound, "client not found")
			return
		}

		var bridgeErr *bridge.Error
		if errors.As(err, &bridgeErr) {
			respondBridgeError(w, bridgeErr)
			return
		}

		h.logger.Error("failed to get bridge status", utils.Err(err), utils.ClientID(id))
		respondWithError(w, http.StatusInternalServerError, "failed to get trading bridge status")
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}
