package models

import "time"

// Credential представляет API ключ биржи, привязанный к клиенту.
// Секретные поля хранятся в БД зашифрованными (AES-256-GCM) и
// никогда не возвращаются в JSON.
type Credential struct {
	ID         string `json:"id" db:"id"`
	ClientID   string `json:"client_id" db:"client_id"`
	Exchange   string `json:"exchange" db:"exchange"` // bitmart, okx, kucoin, ...
	Label      string `json:"label" db:"label"`       // пользовательская метка, напр. "main"
	APIKey     string `json:"-" db:"api_key"`         // зашифрован
	APISecret  string `json:"-" db:"api_secret"`      // зашифрован
	Passphrase string `json:"-" db:"passphrase"`      // для okx/kucoin/bitmart, зашифрован

	IsTestnet bool   `json:"is_testnet" db:"is_testnet"`
	IsActive  bool   `json:"is_active" db:"is_active"`
	Notes     string `json:"notes,omitempty" db:"notes"`

	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty" db:"last_verified_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// DecryptedCredential - расшифрованные секреты для передачи в Trading Bridge.
// Существует только в памяти, не сериализуется.
type DecryptedCredential struct {
	ID         string
	ClientID   string
	Exchange   string
	APIKey     string
	APISecret  string
	Passphrase string
	IsTestnet  bool
}

// CreateCredentialRequest - запрос на добавление API ключа
type CreateCredentialRequest struct {
	ClientID   string `json:"client_id"`
	Exchange   string `json:"exchange"`
	Label      string `json:"label"`
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"passphrase,omitempty"`
	IsTestnet  bool   `json:"is_testnet"`
	Notes      string `json:"notes,omitempty"`
}

// UpdateCredentialRequest - запрос на изменение метаданных ключа.
// Секретные поля через PUT не меняются: для ротации ключа
// запись удаляется и создаётся заново.
type UpdateCredentialRequest struct {
	Label    *string `json:"label,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

// CredentialResponse - Credential плюс результат provisioning.
// Ключ сохраняется в БД даже если Trading Bridge недоступен,
// поэтому статус provisioning отдаётся отдельными полями.
type CredentialResponse struct {
	Credential
	APIKeyPreview            string `json:"api_key_preview"`
	TradingBridgeConfigured  bool   `json:"trading_bridge_configured"`
	TradingBridgeWarning     string `json:"trading_bridge_warning,omitempty"`
}

// CredentialListItem - элемент списка ключей клиента с маскированным превью
type CredentialListItem struct {
	Credential
	APIKeyPreview string `json:"api_key_preview"`
}

// CredentialDetail - полная запись с расшифрованными секретами.
// Отдаётся только по явному admin-запросу GET /api-keys/{id},
// в списках секреты всегда маскированы.
type CredentialDetail struct {
	Credential
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"passphrase,omitempty"`
}

// MaskAPIKey возвращает маскированное превью ключа: первые 6 и
// последние 4 символа. Короткие ключи маскируются полностью.
func MaskAPIKey(key string) string {
	if len(key) <= 10 {
		return "***"
	}
	return key[:6] + "..." + key[len(key)-4:]
}
