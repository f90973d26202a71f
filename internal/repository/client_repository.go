package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"dashboard/internal/models"
)

// Ошибки репозитория клиентов
var (
	ErrClientNotFound = errors.New("client not found")
	ErrClientExists   = errors.New("client with this name already exists")
)

// ClientRepository - работа с таблицей clients
type ClientRepository struct {
	db *sql.DB
}

// NewClientRepository создает новый экземпляр репозитория
func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create создает нового клиента.
// AccountName должен быть уже выведен из имени (client_<slug>).
func (r *ClientRepository) Create(client *models.Client) error {
	query := `
		INSERT INTO clients (id, name, account_name, email, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	now := time.Now()
	client.CreatedAt = now
	client.UpdatedAt = now

	if client.ID == "" {
		client.ID = uuid.NewString()
	}

	_, err := r.db.Exec(
		query,
		client.ID,
		client.Name,
		client.AccountName,
		client.Email,
		client.IsActive,
		client.CreatedAt,
		client.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrClientExists
		}
		return err
	}

	return nil
}

// GetByID возвращает клиента по ID
func (r *ClientRepository) GetByID(id string) (*models.Client, error) {
	query := `
		SELECT id, name, account_name, email, is_active, created_at, updated_at
		FROM clients
		WHERE id = $1`

	client := &models.Client{}
	err := r.db.QueryRow(query, id).Scan(
		&client.ID,
		&client.Name,
		&client.AccountName,
		&client.Email,
		&client.IsActive,
		&client.CreatedAt,
		&client.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	return client, nil
}

// GetAll возвращает всех клиентов
func (r *ClientRepository) GetAll() ([]*models.Client, error) {
	query := `
		SELECT id, name, account_name, email, is_active, created_at, updated_at
		FROM clients
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		client := &models.Client{}
		err := rows.Scan(
			&client.ID,
			&client.Name,
			&client.AccountName,
			&client.Email,
			&client.IsActive,
			&client.CreatedAt,
			&client.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return clients, nil
}
