package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"dashboard/internal/models"
)

// Ошибки репозитория API ключей
var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrCredentialExists   = errors.New("credential already exists for this client, exchange and label")
)

// credentialColumns - общий список колонок для SELECT запросов
const credentialColumns = `id, client_id, exchange, label, api_key, api_secret, passphrase, is_testnet, is_active, notes, last_verified_at, created_at, updated_at`

// CredentialRepository - работа с таблицей exchange_credentials
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository создает новый экземпляр репозитория
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create сохраняет новый API ключ (секретные поля уже зашифрованы).
// Уникальность (client_id, exchange, label) среди активных записей
// обеспечивается частичным индексом в БД.
func (r *CredentialRepository) Create(cred *models.Credential) error {
	query := `
		INSERT INTO exchange_credentials (id, client_id, exchange, label, api_key, api_secret, passphrase, is_testnet, is_active, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	now := time.Now()
	cred.CreatedAt = now
	cred.UpdatedAt = now

	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	if cred.Label == "" {
		cred.Label = "default"
	}

	_, err := r.db.Exec(
		query,
		cred.ID,
		cred.ClientID,
		cred.Exchange,
		cred.Label,
		cred.APIKey,
		cred.APISecret,
		cred.Passphrase,
		cred.IsTestnet,
		cred.IsActive,
		cred.Notes,
		cred.CreatedAt,
		cred.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrCredentialExists
		}
		return err
	}

	return nil
}

// GetByID возвращает запись по ID
func (r *CredentialRepository) GetByID(id string) (*models.Credential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM exchange_credentials
		WHERE id = $1`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByClientID возвращает все ключи клиента (включая деактивированные)
func (r *CredentialRepository) GetByClientID(clientID string) ([]*models.Credential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM exchange_credentials
		WHERE client_id = $1
		ORDER BY created_at DESC`

	return r.queryMany(query, clientID)
}

// GetActiveByClientID возвращает только активные ключи клиента.
// Используется при сверке с Trading Bridge.
func (r *CredentialRepository) GetActiveByClientID(clientID string) ([]*models.Credential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM exchange_credentials
		WHERE client_id = $1 AND is_active = true
		ORDER BY created_at DESC`

	return r.queryMany(query, clientID)
}

// UpdateMetadata обновляет метаданные ключа.
// Секретные поля не изменяются: ротация = удаление + создание.
func (r *CredentialRepository) UpdateMetadata(id string, label string, isActive bool, notes string) error {
	query := `
		UPDATE exchange_credentials
		SET label = $1, is_active = $2, notes = $3, updated_at = $4
		WHERE id = $5`

	result, err := r.db.Exec(query, label, isActive, notes, time.Now(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCredentialExists
		}
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrCredentialNotFound
	}

	return nil
}

// MarkVerified проставляет время последней успешной проверки ключа
func (r *CredentialRepository) MarkVerified(id string, verifiedAt time.Time) error {
	query := `
		UPDATE exchange_credentials
		SET last_verified_at = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(query, verifiedAt, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrCredentialNotFound
	}

	return nil
}

// Delete удаляет запись
func (r *CredentialRepository) Delete(id string) error {
	query := `DELETE FROM exchange_credentials WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrCredentialNotFound
	}

	return nil
}

// scanOne сканирует одну запись из QueryRow
func (r *CredentialRepository) scanOne(row *sql.Row) (*models.Credential, error) {
	cred := &models.Credential{}
	err := row.Scan(
		&cred.ID,
		&cred.ClientID,
		&cred.Exchange,
		&cred.Label,
		&cred.APIKey,
		&cred.APISecret,
		&cred.Passphrase,
		&cred.IsTestnet,
		&cred.IsActive,
		&cred.Notes,
		&cred.LastVerifiedAt,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}

	return cred, nil
}

// queryMany выполняет запрос и сканирует все записи
func (r *CredentialRepository) queryMany(query string, args ...interface{}) ([]*models.Credential, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		cred := &models.Credential{}
		err := rows.Scan(
			&cred.ID,
			&cred.ClientID,
			&cred.Exchange,
			&cred.Label,
			&cred.APIKey,
			&cred.APISecret,
			&cred.Passphrase,
			&cred.IsTestnet,
			&cred.IsActive,
			&cred.Notes,
			&cred.LastVerifiedAt,
			&cred.CreatedAt,
			&cred.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return creds, nil
}

// isUniqueViolation определяет нарушение уникального индекса Postgres (код 23505)
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "23505")
}
