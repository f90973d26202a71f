package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dashboard/internal/bridge"
	"dashboard/internal/models"
	"dashboard/internal/repository"
	"dashboard/internal/service"
)

// ============ Mock Credential Service ============

// MockCredentialService мок для CredentialServiceInterface
type MockCredentialService struct {
	items       map[string]*models.CredentialListItem
	clients     map[string]bool
	createErr   error
	getErr      error
	updateErr   error
	deleteErr   error
	verifyErr   error
	reinitErr   error
	statusErr   error
	healthErr   error
	healthy     bool
	provisioned bool
	warning     string
	nextID      int
	mu          sync.RWMutex
}

// NewMockCredentialService создает новый мок сервиса API ключей
func NewMockCredentialService() *MockCredentialService {
	return &MockCredentialService{
		items:       make(map[string]*models.CredentialListItem),
		clients:     make(map[string]bool),
		healthy:     true,
		provisioned: true,
		nextID:      1,
	}
}

func (m *MockCredentialService) Create(ctx context.Context, req *models.CreateCredentialRequest) (*models.CredentialResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return nil, m.createErr
	}
	if !m.clients[req.ClientID] {
		return nil, repository.ErrClientNotFound
	}

	id := fmt.Sprintf("cred-%d", m.nextID)
	m.nextID++

	cred := models.Credential{
		ID:        id,
		ClientID:  req.ClientID,
		Exchange:  strings.ToLower(req.Exchange),
		Label:     req.Label,
		IsTestnet: req.IsTestnet,
		IsActive:  true,
		Notes:     req.Notes,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.items[id] = &models.CredentialListItem{
		Credential:    cred,
		APIKeyPreview: models.MaskAPIKey(req.APIKey),
	}

	return &models.CredentialResponse{
		Credential:              cred,
		APIKeyPreview:           models.MaskAPIKey(req.APIKey),
		TradingBridgeConfigured: m.provisioned,
		TradingBridgeWarning:    m.warning,
	}, nil
}

func (m *MockCredentialService) ListForClient(clientID string) ([]*models.CredentialListItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	if !m.clients[clientID] {
		return nil, repository.ErrClientNotFound
	}

	result := make([]*models.CredentialListItem, 0)
	for _, item := range m.items {
		if item.ClientID == clientID {
			result = append(result, item)
		}
	}
	return result, nil
}

func (m *MockCredentialService) GetDetail(id string) (*models.CredentialDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	item, exists := m.items[id]
	if !exists {
		return nil, repository.ErrCredentialNotFound
	}
	return &models.CredentialDetail{
		Credential: item.Credential,
		APIKey:     "AKIA1234567890SECRET",
		APISecret:  "very-secret-value",
	}, nil
}

func (m *MockCredentialService) Update(id string, req *models.UpdateCredentialRequest) (*models.CredentialListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if req.Label == nil && req.IsActive == nil && req.Notes == nil {
		return nil, service.ErrNothingToUpdate
	}

	item, exists := m.items[id]
	if !exists {
		return nil, repository.ErrCredentialNotFound
	}

	if req.Label != nil {
		item.Label = *req.Label
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}
	if req.Notes != nil {
		item.Notes = *req.Notes
	}
	item.UpdatedAt = time.Now()
	return item, nil
}

func (m *MockCredentialService) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, exists := m.items[id]; !exists {
		return repository.ErrCredentialNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MockCredentialService) Verify(ctx context.Context, id string) (*models.CredentialListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.verifyErr != nil {
		return nil, m.verifyErr
	}

	item, exists := m.items[id]
	if !exists {
		return nil, repository.ErrCredentialNotFound
	}
	now := time.Now()
	item.LastVerifiedAt = &now
	return item, nil
}

func (m *MockCredentialService) Reinitialize(ctx context.Context, clientID string) (*models.ReinitializeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.reinitErr != nil {
		return nil, m.reinitErr
	}
	if !m.clients[clientID] {
		return nil, repository.ErrClientNotFound
	}

	result := &models.ReinitializeResult{ClientID: clientID}
	for _, item := range m.items {
		if item.ClientID != clientID || !item.IsActive {
			continue
		}
		result.Total++
		result.Configured++
		result.Connectors = append(result.Connectors, models.ConnectorOutcome{
			CredentialID: item.ID,
			Exchange:     item.Exchange,
			Configured:   true,
		})
	}
	return result, nil
}

func (m *MockCredentialService) BridgeStatus(ctx context.Context, clientID string) (*models.BridgeStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.statusErr != nil {
		return nil, m.statusErr
	}
	if !m.clients[clientID] {
		return nil, repository.ErrClientNotFound
	}

	status := &models.BridgeStatus{
		ClientID:      clientID,
		AccountExists: true,
		Connectors:    []string{},
		Missing:       []string{},
	}
	for _, item := range m.items {
		if item.ClientID == clientID && item.IsActive {
			status.Connectors = append(status.Connectors, item.Exchange)
		}
	}
	return status, nil
}

func (m *MockCredentialService) BridgeHealth(ctx context.Context) (bridge.HealthStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.healthErr != nil {
		return bridge.HealthStatus{Healthy: false}, m.healthErr
	}
	return bridge.HealthStatus{Healthy: m.healthy, Version: "1.4.2"}, nil
}

// SetError устанавливает ошибку для указанной операции
func (m *MockCredentialService) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch operation {
	case "create":
		m.createErr = err
	case "get":
		m.getErr = err
	case "update":
		m.updateErr = err
	case "delete":
		m.deleteErr = err
	case "verify":
		m.verifyErr = err
	case "reinitialize":
		m.reinitErr = err
	case "status":
		m.statusErr = err
	case "health":
		m.healthErr = err
	}
}

// AddClient регистрирует клиента (для настройки тестов)
func (m *MockCredentialService) AddClient(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[clientID] = true
}

// AddItem добавляет ключ напрямую (для настройки тестов)
func (m *MockCredentialService) AddItem(id, clientID, exchange string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[id] = &models.CredentialListItem{
		Credential: models.Credential{
			ID:        id,
			ClientID:  clientID,
			Exchange:  exchange,
			Label:     "default",
			IsActive:  true,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
		APIKeyPreview: "AKIA12...CRET",
	}
}

// SetProvisioning задает результат provisioning для Create
func (m *MockCredentialService) SetProvisioning(configured bool, warning string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.provisioned = configured
	m.warning = warning
}

// ============ Mock Client Service ============

// MockClientService мок для ClientServiceInterface
type MockClientService struct {
	clients   map[string]*models.Client
	createErr error
	getErr    error
	nextID    int
	mu        sync.RWMutex
}

// NewMockClientService создает новый мок сервиса клиентов
func NewMockClientService() *MockClientService {
	return &MockClientService{
		clients: make(map[string]*models.Client),
		nextID:  1,
	}
}

func (m *MockClientService) Create(req *models.CreateClientRequest) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return nil, m.createErr
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, service.ErrClientNameRequired
	}

	id := fmt.Sprintf("client-%d", m.nextID)
	m.nextID++

	client := &models.Client{
		ID:          id,
		Name:        req.Name,
		AccountName: bridge.DeriveAccountName(req.Name),
		Email:       req.Email,
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.clients[id] = client
	return client, nil
}

func (m *MockClientService) Get(id string) (*models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	if client, exists := m.clients[id]; exists {
		return client, nil
	}
	return nil, repository.ErrClientNotFound
}

func (m *MockClientService) List() ([]*models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	result := make([]*models.Client, 0, len(m.clients))
	for _, c := range m.clients {
		result = append(result, c)
	}
	return result, nil
}

// SetError устанавливает ошибку для указанной операции
func (m *MockClientService) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch operation {
	case "create":
		m.createErr = err
	case "get":
		m.getErr = err
	}
}

// AddClient добавляет клиента напрямую (для настройки тестов)
func (m *MockClientService) AddClient(id, name, accountName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[id] = &models.Client{
		ID:          id,
		Name:        name,
		AccountName: accountName,
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

// ============ Mock Auth Service ============

// MockAuthService мок для AuthServiceInterface
type MockAuthService struct {
	loginResp *models.LoginResponse
	loginErr  error
	claims    *service.Claims
	tokenErr  error
	mu        sync.RWMutex
}

// NewMockAuthService создает новый мок сервиса аутентификации
func NewMockAuthService() *MockAuthService {
	return &MockAuthService{
		loginResp: &models.LoginResponse{
			Token:     "test-token",
			ExpiresAt: time.Now().Add(time.Hour),
			User:      models.User{ID: "user-1", Email: "admin@example.com", Role: models.RoleAdmin},
		},
	}
}

func (m *MockAuthService) Login(email, password, remoteIP string) (*models.LoginResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return m.loginResp, nil
}

func (m *MockAuthService) ValidateToken(token string) (*service.Claims, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.tokenErr != nil {
		return nil, m.tokenErr
	}
	if m.claims != nil {
		return m.claims, nil
	}
	claims := &service.Claims{Email: "admin@example.com", Role: models.RoleAdmin}
	claims.Subject = "user-1"
	return claims, nil
}

// SetLoginError устанавливает ошибку для Login
func (m *MockAuthService) SetLoginError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginErr = err
}

// ============ Helper errors for tests ============

var ErrMockService = errors.New("mock service error")

// ============ Проверяем, что моки реализуют интерфейсы ============

var _ service.CredentialServiceInterface = (*MockCredentialService)(nil)
var _ service.ClientServiceInterface = (*MockClientService)(nil)
var _ service.AuthServiceInterface = (*MockAuthService)(nil)
