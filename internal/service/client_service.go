package service

import (
	"errors"
	"strings"

	"dashboard/internal/bridge"
	"dashboard/internal/models"
	"dashboard/pkg/utils"
)

// Ошибки сервиса клиентов
var (
	ErrClientNameRequired = errors.New("client name is required")
)

// ClientService - управление клиентами дашборда
type ClientService struct {
	clientRepo ClientRepositoryInterface
	logger     *utils.Logger
}

// NewClientService создает новый экземпляр сервиса
func NewClientService(clientRepo ClientRepositoryInterface, logger *utils.Logger) *ClientService {
	if logger == nil {
		logger = utils.L()
	}
	return &ClientService{
		clientRepo: clientRepo,
		logger:     logger.WithComponent("clients"),
	}
}

// Create создает клиента и выводит для него имя аккаунта
// Trading Bridge из отображаемого имени
func (s *ClientService) Create(req *models.CreateClientRequest) (*models.Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrClientNameRequired
	}

	client := &models.Client{
		Name:        name,
		AccountName: bridge.DeriveAccountName(name),
		Email:       strings.TrimSpace(req.Email),
		IsActive:    true,
	}

	if err := s.clientRepo.Create(client); err != nil {
		return nil, err
	}

	s.logger.Info("client created",
		utils.ClientID(client.ID),
		utils.AccountName(client.AccountName))

	return client, nil
}

// Get возвращает клиента по ID
func (s *ClientService) Get(id string) (*models.Client, error) {
	return s.clientRepo.GetByID(id)
}

// List возвращает всех клиентов
func (s *ClientService) List() ([]*models.Client, error) {
	return s.clientRepo.GetAll()
}
