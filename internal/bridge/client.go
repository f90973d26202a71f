package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"dashboard/pkg/retry"
	"dashboard/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client - HTTP клиент Trading Bridge
//
// Provisioning медленный (Trading Bridge проверяет ключи на бирже),
// диагностика только читает состояние, поэтому таймауты раздельные.
type Client struct {
	baseURL            string
	provisionTimeout   time.Duration
	diagnosticsTimeout time.Duration
	httpClient         *http.Client
	logger             *utils.Logger

	// Retry только для диагностических GET: provisioning не повторяем,
	// чтобы не дублировать медленные проверки ключей на бирже
	diagRetry retry.Config
}

// NewClient создает клиента Trading Bridge
func NewClient(baseURL string, provisionTimeout, diagnosticsTimeout time.Duration, logger *utils.Logger) *Client {
	if provisionTimeout <= 0 {
		provisionTimeout = 30 * time.Second
	}
	if diagnosticsTimeout <= 0 {
		diagnosticsTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = utils.L()
	}

	// Connection pooling: запросы идут к одному хосту
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	c := &Client{
		baseURL:            strings.TrimSuffix(baseURL, "/"),
		provisionTimeout:   provisionTimeout,
		diagnosticsTimeout: diagnosticsTimeout,
		httpClient:         &http.Client{Transport: transport},
		logger:             logger.WithComponent("bridge"),
	}

	c.diagRetry = retry.Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
		RetryIf:      retry.NotContext,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.logger.Debug("retrying diagnostics request",
				utils.Int("attempt", attempt), utils.Err(err))
		},
	}

	return c
}

// ============================================================
// Provisioning
// ============================================================

// EnsureAccount создает аккаунт клиента в Trading Bridge.
// Уже существующий аккаунт не является ошибкой (created = false).
func (c *Client) EnsureAccount(ctx context.Context, accountName string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.provisionTimeout)
	defer cancel()

	body, status, err := c.doRequest(ctx, http.MethodPost, "/accounts/create",
		createAccountRequest{AccountName: accountName})
	if err != nil {
		return false, classify(err, "ensure_account")
	}

	if status == http.StatusConflict || (status < 300 && alreadyExists(body)) {
		c.logger.Debug("account already exists", utils.AccountName(accountName))
		return false, nil
	}

	if status >= 400 {
		return false, remoteError("ensure_account", status, body)
	}

	c.logger.Info("account created", utils.AccountName(accountName))
	return true, nil
}

// AddConnector добавляет биржевой коннектор в аккаунт.
// Passphrase уходит в поле memo. Повторное добавление того же
// коннектора считается успехом.
func (c *Client) AddConnector(ctx context.Context, accountName, connector, apiKey, apiSecret, passphrase string) error {
	ctx, cancel := context.WithTimeout(ctx, c.provisionTimeout)
	defer cancel()

	req := addConnectorRequest{
		AccountName: accountName,
		Connector:   connector,
		APIKey:      apiKey,
		APISecret:   apiSecret,
		Memo:        passphrase,
	}

	body, status, err := c.doRequest(ctx, http.MethodPost, "/connectors/add", req)
	if err != nil {
		return classify(err, "add_connector")
	}

	if status == http.StatusConflict || (status < 300 && alreadyExists(body)) {
		c.logger.Debug("connector already configured",
			utils.AccountName(accountName), utils.Connector(connector))
		return nil
	}

	if status >= 400 {
		return remoteError("add_connector", status, body)
	}

	c.logger.Info("connector added",
		utils.AccountName(accountName), utils.Connector(connector))
	return nil
}

// Provision выполняет оба шага: ensure account + add connector.
// Частичный успех (аккаунт есть, коннектор не добавлен) отражается
// в ProvisionResult.Warning, ошибка при этом тоже возвращается.
func (c *Client) Provision(ctx context.Context, accountName, connector, apiKey, apiSecret, passphrase string) (ProvisionResult, error) {
	result := ProvisionResult{
		AccountName: accountName,
		Connector:   connector,
	}

	created, err := c.EnsureAccount(ctx, accountName)
	if err != nil {
		result.Warning = fmt.Sprintf("account setup failed: %v", err)
		return result, err
	}
	result.AccountCreated = created

	if err := c.AddConnector(ctx, accountName, connector, apiKey, apiSecret, passphrase); err != nil {
		result.Warning = fmt.Sprintf("connector setup failed: %v", err)
		return result, err
	}
	result.ConnectorAdded = true

	return result, nil
}

// ============================================================
// Диагностика
// ============================================================

// Health проверяет доступность Trading Bridge
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.diagnosticsTimeout)
	defer cancel()

	body, status, err := c.getWithRetry(ctx, "/health")
	if err != nil {
		return HealthStatus{}, classify(err, "diagnostics")
	}

	if status >= 400 {
		return HealthStatus{Healthy: false, Detail: string(body)},
			remoteError("diagnostics", status, body)
	}

	var hs HealthStatus
	if err := json.Unmarshal(body, &hs); err != nil {
		// Пустой или нестандартный ответ при 200 считаем здоровым
		return HealthStatus{Healthy: true}, nil
	}
	// Сервис ответил 200 без явного поля healthy
	if !hs.Healthy && hs.Detail == "" {
		hs.Healthy = true
	}
	return hs, nil
}

// AccountExists проверяет наличие аккаунта в Trading Bridge.
// Существование определяется статусом GET /accounts/{name}:
// 404 - аккаунта нет, любой 2xx - есть.
func (c *Client) AccountExists(ctx context.Context, accountName string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.diagnosticsTimeout)
	defer cancel()

	body, status, err := c.getWithRetry(ctx, "/accounts/"+url.PathEscape(accountName))
	if err != nil {
		return false, classify(err, "diagnostics")
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if status >= 400 {
		return false, remoteError("diagnostics", status, body)
	}

	return true, nil
}

// ListConnectors возвращает коннекторы аккаунта.
// Отсутствие аккаунта даёт пустой список без ошибки.
func (c *Client) ListConnectors(ctx context.Context, accountName string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.diagnosticsTimeout)
	defer cancel()

	path := "/connectors?account=" + url.QueryEscape(accountName)
	body, status, err := c.getWithRetry(ctx, path)
	if err != nil {
		return nil, classify(err, "diagnostics")
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status >= 400 {
		return nil, remoteError("diagnostics", status, body)
	}

	var resp connectorsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{
			Kind:      KindUnknown,
			Operation: "diagnostics",
			Message:   "malformed connectors response",
			Err:       err,
		}
	}
	return resp.Connectors, nil
}

// ============================================================
// Внутреннее
// ============================================================

// doRequest выполняет запрос и возвращает тело и статус.
// Сетевые ошибки возвращаются как есть, классификация - на вызывающем.
func (c *Client) doRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}

// httpResult - ответ одного HTTP запроса для retry обёртки
type httpResult struct {
	body   []byte
	status int
}

// getWithRetry выполняет GET с повтором транспортных сбоев.
// Ответы с любым HTTP статусом не повторяются - их разбирает вызывающий.
func (c *Client) getWithRetry(ctx context.Context, path string) ([]byte, int, error) {
	res, err := retry.DoWithResult(ctx, func() (httpResult, error) {
		body, status, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return httpResult{}, err
		}
		return httpResult{body: body, status: status}, nil
	}, c.diagRetry)
	return res.body, res.status, err
}

// classify превращает транспортную ошибку в типизированную *Error
func classify(err error, operation string) error {
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		return err
	}

	kind := KindTransport
	msg := "trading bridge unreachable"

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
		msg = "trading bridge did not respond in time"
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
		msg = "trading bridge did not respond in time"
	case errors.Is(err, context.Canceled):
		kind = KindUnknown
		msg = "request canceled"
	}

	return &Error{
		Kind:      kind,
		Operation: operation,
		Message:   msg,
		Err:       err,
	}
}

// remoteError строит *Error для ответа с кодом >= 400
func remoteError(operation string, status int, body []byte) error {
	msg := extractDetail(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{
		Kind:      KindRemoteRejected,
		Operation: operation,
		Status:    status,
		Message:   msg,
	}
}

// extractDetail вытаскивает сообщение об ошибке из тела ответа
func extractDetail(body []byte) string {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return strings.TrimSpace(string(body))
	}
	if resp.Detail != "" {
		return resp.Detail
	}
	return resp.Message
}

// alreadyExists распознаёт идемпотентный повтор по тексту ответа
func alreadyExists(body []byte) bool {
	return strings.Contains(strings.ToLower(string(body)), "already exists")
}
