package bridge

import "fmt"

// ErrorKind классифицирует ошибки Trading Bridge для отчётов пользователю
type ErrorKind string

const (
	// KindTimeout - операция не уложилась в таймаут
	KindTimeout ErrorKind = "timeout"
	// KindRemoteRejected - Trading Bridge ответил ошибкой (4xx/5xx)
	KindRemoteRejected ErrorKind = "remote_rejected"
	// KindTransport - сетевая ошибка, сервис недоступен
	KindTransport ErrorKind = "transport_error"
	// KindUnknown - всё остальное
	KindUnknown ErrorKind = "unknown"
)

// Error - типизированная ошибка операции с Trading Bridge.
// Kind позволяет вызывающему коду различать таймауты, отказы и
// сетевые проблемы через errors.As.
type Error struct {
	Kind      ErrorKind
	Operation string // ensure_account, add_connector, diagnostics
	Status    int    // HTTP статус если есть
	Message   string
	Err       error // исходная ошибка
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("bridge %s failed (%s, status %d): %s", e.Operation, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("bridge %s failed (%s): %s", e.Operation, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ProvisionResult - итог двухшагового provisioning: создание аккаунта
// плюс добавление коннектора. Значение, а не указатель: результат
// валиден даже при частичном успехе.
type ProvisionResult struct {
	AccountName     string
	AccountCreated  bool // аккаунт создан этим вызовом (false = уже существовал)
	ConnectorAdded  bool
	Connector       string
	Warning         string // человекочитаемое описание проблемы при частичном успехе
}

// Configured сообщает завершились ли оба шага успешно
func (r ProvisionResult) Configured() bool {
	return r.ConnectorAdded
}

// ============================================================
// Wire-типы Trading Bridge API
// ============================================================

// createAccountRequest - тело POST /accounts/create
type createAccountRequest struct {
	AccountName string `json:"account_name"`
}

// addConnectorRequest - тело POST /connectors/add.
// Passphrase передаётся в поле memo (так его называет Trading Bridge).
type addConnectorRequest struct {
	AccountName string `json:"account_name"`
	Connector   string `json:"connector"`
	APIKey      string `json:"api_key"`
	APISecret   string `json:"api_secret"`
	Memo        string `json:"memo,omitempty"`
}

// apiResponse - обобщённый ответ Trading Bridge
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// connectorsResponse - ответ GET /connectors?account={name}
type connectorsResponse struct {
	Connectors []string `json:"connectors"`
}

// HealthStatus - состояние Trading Bridge из GET /health
type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version,omitempty"`
	Detail  string `json:"detail,omitempty"`
}
