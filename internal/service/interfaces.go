package service

import (
	"context"
	"time"

	"dashboard/internal/bridge"
	"dashboard/internal/models"
)

// CredentialRepositoryInterface определяет интерфейс репозитория API ключей
type CredentialRepositoryInterface interface {
	Create(cred *models.Credential) error
	GetByID(id string) (*models.Credential, error)
	GetByClientID(clientID string) ([]*models.Credential, error)
	GetActiveByClientID(clientID string) ([]*models.Credential, error)
	UpdateMetadata(id string, label string, isActive bool, notes string) error
	MarkVerified(id string, verifiedAt time.Time) error
	Delete(id string) error
}

// ClientRepositoryInterface определяет интерфейс репозитория клиентов
type ClientRepositoryInterface interface {
	Create(client *models.Client) error
	GetByID(id string) (*models.Client, error)
	GetAll() ([]*models.Client, error)
}

// UserRepositoryInterface определяет интерфейс репозитория пользователей
type UserRepositoryInterface interface {
	GetByEmail(email string) (*models.User, error)
	GetByID(id string) (*models.User, error)
}

// BridgeClientInterface определяет интерфейс клиента Trading Bridge
type BridgeClientInterface interface {
	EnsureAccount(ctx context.Context, accountName string) (bool, error)
	AddConnector(ctx context.Context, accountName, connector, apiKey, apiSecret, passphrase string) error
	Provision(ctx context.Context, accountName, connector, apiKey, apiSecret, passphrase string) (bridge.ProvisionResult, error)
	Health(ctx context.Context) (bridge.HealthStatus, error)
	AccountExists(ctx context.Context, accountName string) (bool, error)
	ListConnectors(ctx context.Context, accountName string) ([]string, error)
}

// CredentialServiceInterface - интерфейс сервиса API ключей для handlers
type CredentialServiceInterface interface {
	Create(ctx context.Context, req *models.CreateCredentialRequest) (*models.CredentialResponse, error)
	ListForClient(clientID string) ([]*models.CredentialListItem, error)
	GetDetail(id string) (*models.CredentialDetail, error)
	Update(id string, req *models.UpdateCredentialRequest) (*models.CredentialListItem, error)
	Delete(id string) error
	Verify(ctx context.Context, id string) (*models.CredentialListItem, error)
	Reinitialize(ctx context.Context, clientID string) (*models.ReinitializeResult, error)
	BridgeStatus(ctx context.Context, clientID string) (*models.BridgeStatus, error)
	BridgeHealth(ctx context.Context) (bridge.HealthStatus, error)
}

// ClientServiceInterface - интерфейс сервиса клиентов для handlers
type ClientServiceInterface interface {
	Create(req *models.CreateClientRequest) (*models.Client, error)
	Get(id string) (*models.Client, error)
	List() ([]*models.Client, error)
}

// AuthServiceInterface - интерфейс сервиса аутентификации для handlers
type AuthServiceInterface interface {
	Login(email, password, remoteIP string) (*models.LoginResponse, error)
	ValidateToken(token string) (*Claims, error)
}

// EventBroadcaster - интерфейс для отправки событий через WebSocket
type EventBroadcaster interface {
	BroadcastCredentialUpdate(action, clientID string, data interface{})
	BroadcastProvisionResult(clientID, exchange string, configured bool, warning string)
	BroadcastBridgeStatus(healthy bool, detail string)
	BroadcastReinitializeDone(clientID string, result interface{})
}
