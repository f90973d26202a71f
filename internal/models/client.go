package models

import "time"

// Client представляет клиента, для которого ведётся маркет-мейкинг.
//
// Инвариант: AccountName всегда равен bridge.DeriveAccountName(Name).
// Колонка хранится для выборок, но источником остаётся вывод из имени;
// переименование клиентов не поддерживается, чтобы связка с аккаунтом
// Trading Bridge не разъехалась.
type Client struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`                 // отображаемое имя, напр. "Sharp Foundation"
	AccountName string    `json:"account_name" db:"account_name"` // имя аккаунта в Trading Bridge: client_sharp_foundation
	Email       string    `json:"email,omitempty" db:"email"`     // контакт для уведомлений, может быть пустым
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// CreateClientRequest - запрос на создание клиента
type CreateClientRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// ReinitializeResult - итог сверки клиента с Trading Bridge
type ReinitializeResult struct {
	ClientID    string             `json:"client_id"`
	AccountName string             `json:"account_name"`
	Total       int                `json:"total"`
	Configured  int                `json:"configured"`
	Failed      int                `json:"failed"`
	Connectors  []ConnectorOutcome `json:"connectors"`
}

// ConnectorOutcome - результат настройки одного коннектора при сверке
type ConnectorOutcome struct {
	CredentialID string `json:"credential_id"`
	Exchange     string `json:"exchange"`
	Configured   bool   `json:"configured"`
	Error        string `json:"error,omitempty"`
}

// BridgeStatus - текущее состояние клиента в Trading Bridge
type BridgeStatus struct {
	ClientID      string   `json:"client_id"`
	AccountName   string   `json:"account_name"`
	AccountExists bool     `json:"account_exists"`
	Connectors    []string `json:"connectors"`
	Missing       []string `json:"missing"` // биржи с активными ключами, но без коннектора
}
