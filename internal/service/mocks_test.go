package service

import (
	"context"
	"fmt"
	"time"

	"dashboard/internal/bridge"
	"dashboard/internal/models"
	"dashboard/internal/repository"
)

// ============ Mock CredentialRepository ============

type MockCredentialRepository struct {
	creds     map[string]*models.Credential
	nextID    int
	createErr error
	getErr    error
	updateErr error
	deleteErr error
}

func NewMockCredentialRepository() *MockCredentialRepository {
	return &MockCredentialRepository{
		creds:  make(map[string]*models.Credential),
		nextID: 1,
	}
}

func (m *MockCredentialRepository) Create(cred *models.Credential) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.creds {
		if existing.ClientID == cred.ClientID && existing.Exchange == cred.Exchange &&
			existing.Label == cred.Label && existing.IsActive && cred.IsActive {
			return repository.ErrCredentialExists
		}
	}
	cred.ID = fmt.Sprintf("cred-%d", m.nextID)
	m.nextID++
	now := time.Now()
	cred.CreatedAt = now
	cred.UpdatedAt = now
	copied := *cred
	m.creds[cred.ID] = &copied
	return nil
}

func (m *MockCredentialRepository) GetByID(id string) (*models.Credential, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if cred, ok := m.creds[id]; ok {
		copied := *cred
		return &copied, nil
	}
	return nil, repository.ErrCredentialNotFound
}

func (m *MockCredentialRepository) GetByClientID(clientID string) ([]*models.Credential, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Credential
	for _, cred := range m.creds {
		if cred.ClientID == clientID {
			copied := *cred
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockCredentialRepository) GetActiveByClientID(clientID string) ([]*models.Credential, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Credential
	for _, cred := range m.creds {
		if cred.ClientID == clientID && cred.IsActive {
			copied := *cred
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockCredentialRepository) UpdateMetadata(id string, label string, isActive bool, notes string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	cred, ok := m.creds[id]
	if !ok {
		return repository.ErrCredentialNotFound
	}
	cred.Label = label
	cred.IsActive = isActive
	cred.Notes = notes
	cred.UpdatedAt = time.Now()
	return nil
}

func (m *MockCredentialRepository) MarkVerified(id string, verifiedAt time.Time) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	cred, ok := m.creds[id]
	if !ok {
		return repository.ErrCredentialNotFound
	}
	cred.LastVerifiedAt = &verifiedAt
	return nil
}

func (m *MockCredentialRepository) Delete(id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.creds[id]; !ok {
		return repository.ErrCredentialNotFound
	}
	delete(m.creds, id)
	return nil
}

// ============ Mock ClientRepository ============

type MockClientRepository struct {
	clients   map[string]*models.Client
	nextID    int
	createErr error
	getErr    error
}

func NewMockClientRepository() *MockClientRepository {
	return &MockClientRepository{
		clients: make(map[string]*models.Client),
		nextID:  1,
	}
}

func (m *MockClientRepository) Create(client *models.Client) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.clients {
		if existing.Name == client.Name {
			return repository.ErrClientExists
		}
	}
	client.ID = fmt.Sprintf("client-%d", m.nextID)
	m.nextID++
	now := time.Now()
	client.CreatedAt = now
	client.UpdatedAt = now
	copied := *client
	m.clients[client.ID] = &copied
	return nil
}

func (m *MockClientRepository) GetByID(id string) (*models.Client, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if client, ok := m.clients[id]; ok {
		copied := *client
		return &copied, nil
	}
	return nil, repository.ErrClientNotFound
}

func (m *MockClientRepository) GetAll() ([]*models.Client, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.Client, 0, len(m.clients))
	for _, client := range m.clients {
		copied := *client
		result = append(result, &copied)
	}
	return result, nil
}

// addClient регистрирует готового клиента для тестов
func (m *MockClientRepository) addClient(id, name, accountName string) {
	m.clients[id] = &models.Client{
		ID:          id,
		Name:        name,
		AccountName: accountName,
		IsActive:    true,
	}
}

// ============ Mock UserRepository ============

type MockUserRepository struct {
	users  map[string]*models.User // по email
	getErr error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*models.User)}
}

func (m *MockUserRepository) GetByEmail(email string) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if user, ok := m.users[email]; ok && user.IsActive {
		copied := *user
		return &copied, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *MockUserRepository) GetByID(id string) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, user := range m.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// ============ Mock BridgeClient ============

// MockBridgeClient считает вызовы и позволяет подставлять ошибки
// per-operation и per-exchange
type MockBridgeClient struct {
	ensureAccountCalls int
	addConnectorCalls  int
	provisionCalls     int

	accounts   map[string]bool
	connectors map[string][]string // accountName -> connectors

	ensureAccountErr error
	addConnectorErr  map[string]error // по имени коннектора
	healthErr        error
	healthy          bool
}

func NewMockBridgeClient() *MockBridgeClient {
	return &MockBridgeClient{
		accounts:        make(map[string]bool),
		connectors:      make(map[string][]string),
		addConnectorErr: make(map[string]error),
		healthy:         true,
	}
}

func (m *MockBridgeClient) EnsureAccount(ctx context.Context, accountName string) (bool, error) {
	m.ensureAccountCalls++
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if m.ensureAccountErr != nil {
		return false, m.ensureAccountErr
	}
	created := !m.accounts[accountName]
	m.accounts[accountName] = true
	return created, nil
}

func (m *MockBridgeClient) AddConnector(ctx context.Context, accountName, connector, apiKey, apiSecret, passphrase string) error {
	m.addConnectorCalls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := m.addConnectorErr[connector]; ok && err != nil {
		return err
	}
	m.connectors[accountName] = append(m.connectors[accountName], connector)
	return nil
}

func (m *MockBridgeClient) Provision(ctx context.Context, accountName, connector, apiKey, apiSecret, passphrase string) (bridge.ProvisionResult, error) {
	m.provisionCalls++
	result := bridge.ProvisionResult{AccountName: accountName, Connector: connector}

	created, err := m.EnsureAccount(ctx, accountName)
	m.ensureAccountCalls-- // Provision считается одним вызовом
	if err != nil {
		result.Warning = "account setup failed: " + err.Error()
		return result, err
	}
	result.AccountCreated = created

	if err := m.AddConnector(ctx, accountName, connector, apiKey, apiSecret, passphrase); err != nil {
		m.addConnectorCalls--
		result.Warning = "connector setup failed: " + err.Error()
		return result, err
	}
	m.addConnectorCalls--
	result.ConnectorAdded = true
	return result, nil
}

func (m *MockBridgeClient) Health(ctx context.Context) (bridge.HealthStatus, error) {
	if m.healthErr != nil {
		return bridge.HealthStatus{}, m.healthErr
	}
	return bridge.HealthStatus{Healthy: m.healthy}, nil
}

func (m *MockBridgeClient) AccountExists(ctx context.Context, accountName string) (bool, error) {
	return m.accounts[accountName], nil
}

func (m *MockBridgeClient) ListConnectors(ctx context.Context, accountName string) ([]string, error) {
	return m.connectors[accountName], nil
}

// ============ Mock EventBroadcaster ============

type broadcastEvent struct {
	kind     string
	clientID string
	payload  interface{}
}

type MockBroadcaster struct {
	events []broadcastEvent
}

func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{}
}

func (m *MockBroadcaster) BroadcastCredentialUpdate(action, clientID string, data interface{}) {
	m.events = append(m.events, broadcastEvent{kind: "credentialUpdate:" + action, clientID: clientID, payload: data})
}

func (m *MockBroadcaster) BroadcastProvisionResult(clientID, exchange string, configured bool, warning string) {
	m.events = append(m.events, broadcastEvent{kind: "provisionResult", clientID: clientID, payload: configured})
}

func (m *MockBroadcaster) BroadcastBridgeStatus(healthy bool, detail string) {
	m.events = append(m.events, broadcastEvent{kind: "bridgeStatus", payload: healthy})
}

func (m *MockBroadcaster) BroadcastReinitializeDone(clientID string, result interface{}) {
	m.events = append(m.events, broadcastEvent{kind: "reinitializeDone", clientID: clientID, payload: result})
}

func (m *MockBroadcaster) hasEvent(kind string) bool {
	for _, e := range m.events {
		if e.kind == kind {
			return true
		}
	}
	return false
}
