package websocket

// Типы сообщений, уходящих на frontend
const (
	TypeCredentialUpdate = "credentialUpdate"
	TypeProvisionResult  = "provisionResult"
	TypeBridgeStatus     = "bridgeStatus"
	TypeReinitializeDone = "reinitializeDone"
)

// Типизированные сообщения: без map[string]interface{},
// сериализация известных типов обходится без рефлексии.

// CredentialUpdateMessage - изменение API ключа (создан/обновлён/удалён)
type CredentialUpdateMessage struct {
	Type     string      `json:"type"`
	Action   string      `json:"action"` // created, updated, deleted, verified
	ClientID string      `json:"client_id"`
	Data     interface{} `json:"data,omitempty"`
}

// ProvisionResultMessage - итог настройки коннектора в Trading Bridge
type ProvisionResultMessage struct {
	Type       string `json:"type"`
	ClientID   string `json:"client_id"`
	Exchange   string `json:"exchange"`
	Configured bool   `json:"configured"`
	Warning    string `json:"warning,omitempty"`
}

// BridgeStatusMessage - изменение доступности Trading Bridge
type BridgeStatusMessage struct {
	Type    string `json:"type"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// ReinitializeDoneMessage - завершение сверки клиента
type ReinitializeDoneMessage struct {
	Type     string      `json:"type"`
	ClientID string      `json:"client_id"`
	Data     interface{} `json:"data"`
}
