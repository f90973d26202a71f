package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"dashboard/internal/bridge"
	"dashboard/internal/metrics"
	"dashboard/internal/models"
	"dashboard/pkg/crypto"
	"dashboard/pkg/utils"
)

// Ошибки сервиса API ключей
var (
	ErrExchangeNotSupported = errors.New("exchange is not supported")
	ErrPassphraseRequired   = errors.New("passphrase is required for this exchange")
	ErrMissingCredentials   = errors.New("api_key and api_secret are required")
	ErrNothingToUpdate      = errors.New("no updatable fields in request")
)

// CredentialService - бизнес-логика жизненного цикла API ключей.
//
// Ключевой инвариант: запись в БД первична. Provisioning в Trading
// Bridge выполняется best-effort и его неудача НИКОГДА не откатывает
// сохранённый ключ - пользователь видит предупреждение и может
// повторить настройку через reinitialize.
type CredentialService struct {
	credRepo   CredentialRepositoryInterface
	clientRepo ClientRepositoryInterface
	cipher     *crypto.Cipher
	bridge     BridgeClientInterface
	logger     *utils.Logger

	// WebSocket hub для событий frontend
	wsHub EventBroadcaster
}

// NewCredentialService создает новый экземпляр сервиса
func NewCredentialService(
	credRepo CredentialRepositoryInterface,
	clientRepo ClientRepositoryInterface,
	cipher *crypto.Cipher,
	bridgeClient BridgeClientInterface,
	logger *utils.Logger,
) *CredentialService {
	if logger == nil {
		logger = utils.L()
	}
	return &CredentialService{
		credRepo:   credRepo,
		clientRepo: clientRepo,
		cipher:     cipher,
		bridge:     bridgeClient,
		logger:     logger.WithComponent("credentials"),
	}
}

// SetWebSocketHub устанавливает WebSocket hub для событий.
// Вызывается после инициализации Hub в main.go.
func (s *CredentialService) SetWebSocketHub(hub EventBroadcaster) {
	s.wsHub = hub
}

// Create добавляет API ключ клиента.
//
// Выполняет:
//  1. Валидацию запроса (биржа, обязательные поля, passphrase)
//  2. Шифрование секретов
//  3. Сохранение в БД
//  4. Best-effort provisioning в Trading Bridge
//
// Ошибка provisioning не откатывает запись: ответ несёт
// trading_bridge_configured = false и предупреждение.
func (s *CredentialService) Create(ctx context.Context, req *models.CreateCredentialRequest) (*models.CredentialResponse, error) {
	exchange := bridge.NormalizeExchange(req.Exchange)

	// 1. Валидация
	if !bridge.IsSupported(exchange) {
		return nil, ErrExchangeNotSupported
	}
	if strings.TrimSpace(req.APIKey) == "" || strings.TrimSpace(req.APISecret) == "" {
		return nil, ErrMissingCredentials
	}
	if bridge.RequiresPassphrase(exchange) && strings.TrimSpace(req.Passphrase) == "" {
		return nil, ErrPassphraseRequired
	}

	client, err := s.clientRepo.GetByID(req.ClientID)
	if err != nil {
		return nil, err
	}

	// 2. Шифруем секреты перед сохранением
	encryptedKey, err := s.cipher.Encrypt(req.APIKey)
	if err != nil {
		return nil, err
	}
	encryptedSecret, err := s.cipher.Encrypt(req.APISecret)
	if err != nil {
		return nil, err
	}
	encryptedPassphrase := ""
	if req.Passphrase != "" {
		encryptedPassphrase, err = s.cipher.Encrypt(req.Passphrase)
		if err != nil {
			return nil, err
		}
	}

	cred := &models.Credential{
		ClientID:   client.ID,
		Exchange:   exchange,
		Label:      strings.TrimSpace(req.Label),
		APIKey:     encryptedKey,
		APISecret:  encryptedSecret,
		Passphrase: encryptedPassphrase,
		IsTestnet:  req.IsTestnet,
		IsActive:   true,
		Notes:      req.Notes,
	}

	// 3. Сохраняем: с этого момента ключ существует независимо
	// от исхода provisioning
	if err := s.credRepo.Create(cred); err != nil {
		metrics.CredentialsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}
	metrics.CredentialsTotal.WithLabelValues("create", "success").Inc()

	s.logger.Info("credential created",
		utils.CredentialID(cred.ID),
		utils.ClientID(client.ID),
		utils.Exchange(exchange))

	// 4. Best-effort provisioning. Отвязано от отмены запроса:
	// обрыв соединения клиентом не должен оставлять недонастроенный
	// коннектор, вызов ограничен только собственным таймаутом
	configured, warning := s.provision(context.WithoutCancel(ctx), client, exchange, req.APIKey, req.APISecret, req.Passphrase)

	if s.wsHub != nil {
		s.wsHub.BroadcastCredentialUpdate("created", client.ID, s.listItem(cred, req.APIKey))
		s.wsHub.BroadcastProvisionResult(client.ID, exchange, configured, warning)
	}

	return &models.CredentialResponse{
		Credential:              *cred,
		APIKeyPreview:           models.MaskAPIKey(req.APIKey),
		TradingBridgeConfigured: configured,
		TradingBridgeWarning:    warning,
	}, nil
}

// ListForClient возвращает ключи клиента с маскированным превью.
// Секреты расшифровываются только для построения превью и не
// покидают процесс.
func (s *CredentialService) ListForClient(clientID string) ([]*models.CredentialListItem, error) {
	if _, err := s.clientRepo.GetByID(clientID); err != nil {
		return nil, err
	}

	creds, err := s.credRepo.GetByClientID(clientID)
	if err != nil {
		return nil, err
	}

	items := make([]*models.CredentialListItem, 0, len(creds))
	for _, cred := range creds {
		preview := "***"
		if plain, err := s.cipher.Decrypt(cred.APIKey); err == nil {
			preview = models.MaskAPIKey(plain)
		} else {
			// Ключ другой ENCRYPTION_KEY или повреждён: показываем
			// запись, но превью недоступно
			s.logger.Warn("failed to decrypt api key for preview",
				utils.CredentialID(cred.ID), utils.Err(err))
		}
		items = append(items, &models.CredentialListItem{
			Credential:    *cred,
			APIKeyPreview: preview,
		})
	}

	return items, nil
}

// GetDetail возвращает запись с расшифрованными секретами.
// Единственный путь, по которому секреты уходят наружу; маршрут
// закрыт RequireAdmin. Ошибка расшифровки (сменился ENCRYPTION_KEY)
// отдаётся как crypto.ErrDecryptionFailed: лечится перевводом ключа.
func (s *CredentialService) GetDetail(id string) (*models.CredentialDetail, error) {
	cred, err := s.credRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	plain, err := s.decrypt(cred)
	if err != nil {
		return nil, err
	}

	return &models.CredentialDetail{
		Credential: *cred,
		APIKey:     plain.APIKey,
		APISecret:  plain.APISecret,
		Passphrase: plain.Passphrase,
	}, nil
}

// GetDecrypted возвращает расшифрованные секреты ключа.
// Используется только внутренними потребителями (reinitialize, verify).
func (s *CredentialService) GetDecrypted(id string) (*models.DecryptedCredential, error) {
	cred, err := s.credRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return s.decrypt(cred)
}

// Update изменяет метаданные ключа. Секретные поля неизменяемы:
// ротация выполняется удалением и созданием новой записи.
func (s *CredentialService) Update(id string, req *models.UpdateCredentialRequest) (*models.CredentialListItem, error) {
	if req.Label == nil && req.IsActive == nil && req.Notes == nil {
		return nil, ErrNothingToUpdate
	}

	cred, err := s.credRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	label := cred.Label
	if req.Label != nil {
		label = strings.TrimSpace(*req.Label)
	}
	isActive := cred.IsActive
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	notes := cred.Notes
	if req.Notes != nil {
		notes = *req.Notes
	}

	if err := s.credRepo.UpdateMetadata(id, label, isActive, notes); err != nil {
		metrics.CredentialsTotal.WithLabelValues("update", "error").Inc()
		return nil, err
	}
	metrics.CredentialsTotal.WithLabelValues("update", "success").Inc()

	cred.Label = label
	cred.IsActive = isActive
	cred.Notes = notes

	if s.wsHub != nil {
		s.wsHub.BroadcastCredentialUpdate("updated", cred.ClientID, s.listItemEncrypted(cred))
	}

	return s.listItemEncrypted(cred), nil
}

// Delete удаляет ключ из БД.
// Коннектор в Trading Bridge намеренно не трогаем: он мог быть
// настроен другим ключом, а удаление здесь должно быть мгновенным.
func (s *CredentialService) Delete(id string) error {
	cred, err := s.credRepo.GetByID(id)
	if err != nil {
		return err
	}

	if err := s.credRepo.Delete(id); err != nil {
		metrics.CredentialsTotal.WithLabelValues("delete", "error").Inc()
		return err
	}
	metrics.CredentialsTotal.WithLabelValues("delete", "success").Inc()

	s.logger.Info("credential deleted",
		utils.CredentialID(id),
		utils.ClientID(cred.ClientID),
		utils.Exchange(cred.Exchange))

	if s.wsHub != nil {
		s.wsHub.BroadcastCredentialUpdate("deleted", cred.ClientID, map[string]string{"id": id})
	}

	return nil
}

// Verify повторно проталкивает ключ в Trading Bridge и при успехе
// проставляет last_verified_at. Add connector идемпотентен, поэтому
// повторная проверка безопасна.
func (s *CredentialService) Verify(ctx context.Context, id string) (*models.CredentialListItem, error) {
	cred, err := s.credRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	client, err := s.clientRepo.GetByID(cred.ClientID)
	if err != nil {
		return nil, err
	}

	plain, err := s.decrypt(cred)
	if err != nil {
		return nil, err
	}

	// Вызов моста доводится до конца независимо от отмены запроса
	if err := s.bridge.AddConnector(context.WithoutCancel(ctx), client.AccountName, cred.Exchange, plain.APIKey, plain.APISecret, plain.Passphrase); err != nil {
		metrics.CredentialsTotal.WithLabelValues("verify", "error").Inc()
		metrics.ProvisioningTotal.WithLabelValues(cred.Exchange, outcomeFromErr(err)).Inc()
		return nil, err
	}

	now := time.Now()
	if err := s.credRepo.MarkVerified(id, now); err != nil {
		return nil, err
	}
	cred.LastVerifiedAt = &now

	metrics.CredentialsTotal.WithLabelValues("verify", "success").Inc()
	metrics.ProvisioningTotal.WithLabelValues(cred.Exchange, "success").Inc()

	if s.wsHub != nil {
		s.wsHub.BroadcastCredentialUpdate("verified", cred.ClientID, s.listItemEncrypted(cred))
	}

	return s.listItemEncrypted(cred), nil
}

// Reinitialize сверяет состояние клиента с Trading Bridge: создаёт
// аккаунт при необходимости и проталкивает все активные ключи.
//
// Ошибка одного коннектора не прерывает сверку - результаты
// собираются по всем ключам.
func (s *CredentialService) Reinitialize(ctx context.Context, clientID string) (*models.ReinitializeResult, error) {
	client, err := s.clientRepo.GetByID(clientID)
	if err != nil {
		return nil, err
	}

	creds, err := s.credRepo.GetActiveByClientID(clientID)
	if err != nil {
		return nil, err
	}

	result := &models.ReinitializeResult{
		ClientID:    clientID,
		AccountName: client.AccountName,
		Total:       len(creds),
		Connectors:  make([]models.ConnectorOutcome, 0, len(creds)),
	}

	// Начатая сверка доводится до конца даже если оператор оборвал
	// запрос: каждый вызов моста ограничен своим таймаутом
	ctx = context.WithoutCancel(ctx)

	// Аккаунт создаётся один раз; если этот шаг упал, ни один
	// коннектор настроен не будет
	if _, err := s.bridge.EnsureAccount(ctx, client.AccountName); err != nil {
		s.logger.Error("reinitialize: account setup failed",
			utils.ClientID(clientID), utils.Err(err))
		metrics.ReinitializeRuns.WithLabelValues("failed").Inc()
		return nil, err
	}

	for _, cred := range creds {
		outcome := models.ConnectorOutcome{
			CredentialID: cred.ID,
			Exchange:     cred.Exchange,
		}

		plain, err := s.decrypt(cred)
		if err == nil {
			err = s.bridge.AddConnector(ctx, client.AccountName, cred.Exchange, plain.APIKey, plain.APISecret, plain.Passphrase)
		}

		if err != nil {
			outcome.Error = err.Error()
			result.Failed++
			metrics.ProvisioningTotal.WithLabelValues(cred.Exchange, outcomeFromErr(err)).Inc()
			s.logger.Warn("reinitialize: connector failed",
				utils.CredentialID(cred.ID),
				utils.Exchange(cred.Exchange),
				utils.Err(err))
		} else {
			outcome.Configured = true
			result.Configured++
			metrics.ProvisioningTotal.WithLabelValues(cred.Exchange, "success").Inc()
		}

		result.Connectors = append(result.Connectors, outcome)
	}

	switch {
	case result.Failed == 0:
		metrics.ReinitializeRuns.WithLabelValues("complete").Inc()
	case result.Configured > 0:
		metrics.ReinitializeRuns.WithLabelValues("partial").Inc()
	default:
		metrics.ReinitializeRuns.WithLabelValues("failed").Inc()
	}

	s.logger.Info("reinitialize finished",
		utils.ClientID(clientID),
		utils.Int("configured", result.Configured),
		utils.Int("failed", result.Failed))

	if s.wsHub != nil {
		s.wsHub.BroadcastReinitializeDone(clientID, result)
	}

	return result, nil
}

// BridgeStatus возвращает состояние клиента в Trading Bridge:
// существование аккаунта, настроенные коннекторы и биржи с
// активными ключами, у которых коннектор отсутствует.
func (s *CredentialService) BridgeStatus(ctx context.Context, clientID string) (*models.BridgeStatus, error) {
	client, err := s.clientRepo.GetByID(clientID)
	if err != nil {
		return nil, err
	}

	status := &models.BridgeStatus{
		ClientID:    clientID,
		AccountName: client.AccountName,
		Connectors:  []string{},
		Missing:     []string{},
	}

	exists, err := s.bridge.AccountExists(ctx, client.AccountName)
	if err != nil {
		return nil, err
	}
	status.AccountExists = exists

	configured := make(map[string]bool)
	if exists {
		connectors, err := s.bridge.ListConnectors(ctx, client.AccountName)
		if err != nil {
			return nil, err
		}
		for _, c := range connectors {
			configured[c] = true
		}
		if connectors != nil {
			status.Connectors = connectors
		}
	}

	creds, err := s.credRepo.GetActiveByClientID(clientID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, cred := range creds {
		if !configured[cred.Exchange] && !seen[cred.Exchange] {
			status.Missing = append(status.Missing, cred.Exchange)
			seen[cred.Exchange] = true
		}
	}

	return status, nil
}

// BridgeHealth проверяет доступность Trading Bridge и обновляет метрику
func (s *CredentialService) BridgeHealth(ctx context.Context) (bridge.HealthStatus, error) {
	hs, err := s.bridge.Health(ctx)
	if err != nil || !hs.Healthy {
		metrics.BridgeUp.Set(0)
	} else {
		metrics.BridgeUp.Set(1)
	}
	return hs, err
}

// ============================================================
// Внутреннее
// ============================================================

// provision выполняет best-effort настройку коннектора.
// Возвращает (configured, warning) - ошибки наружу не выходят.
func (s *CredentialService) provision(ctx context.Context, client *models.Client, exchange, apiKey, apiSecret, passphrase string) (bool, string) {
	start := time.Now()
	result, err := s.bridge.Provision(ctx, client.AccountName, exchange, apiKey, apiSecret, passphrase)
	metrics.BridgeRequestDuration.WithLabelValues("provision").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProvisioningTotal.WithLabelValues(exchange, outcomeFromErr(err)).Inc()
		s.logger.Warn("provisioning failed, credential kept",
			utils.ClientID(client.ID),
			utils.Exchange(exchange),
			utils.Err(err))

		warning := result.Warning
		if warning == "" {
			warning = "trading bridge setup failed: " + err.Error()
		}
		return false, warning
	}

	metrics.ProvisioningTotal.WithLabelValues(exchange, "success").Inc()
	return true, ""
}

// decrypt расшифровывает секреты записи
func (s *CredentialService) decrypt(cred *models.Credential) (*models.DecryptedCredential, error) {
	apiKey, err := s.cipher.Decrypt(cred.APIKey)
	if err != nil {
		return nil, err
	}
	apiSecret, err := s.cipher.Decrypt(cred.APISecret)
	if err != nil {
		return nil, err
	}
	passphrase := ""
	if cred.Passphrase != "" {
		passphrase, err = s.cipher.Decrypt(cred.Passphrase)
		if err != nil {
			return nil, err
		}
	}

	return &models.DecryptedCredential{
		ID:         cred.ID,
		ClientID:   cred.ClientID,
		Exchange:   cred.Exchange,
		APIKey:     apiKey,
		APISecret:  apiSecret,
		Passphrase: passphrase,
		IsTestnet:  cred.IsTestnet,
	}, nil
}

// listItem строит элемент списка из записи и plaintext ключа
func (s *CredentialService) listItem(cred *models.Credential, plainKey string) *models.CredentialListItem {
	return &models.CredentialListItem{
		Credential:    *cred,
		APIKeyPreview: models.MaskAPIKey(plainKey),
	}
}

// listItemEncrypted строит элемент списка, расшифровывая ключ для превью
func (s *CredentialService) listItemEncrypted(cred *models.Credential) *models.CredentialListItem {
	preview := "***"
	if plain, err := s.cipher.Decrypt(cred.APIKey); err == nil {
		preview = models.MaskAPIKey(plain)
	}
	return &models.CredentialListItem{
		Credential:    *cred,
		APIKeyPreview: preview,
	}
}

// outcomeFromErr сводит ошибку Trading Bridge к label метрики
func outcomeFromErr(err error) string {
	var bridgeErr *bridge.Error
	if errors.As(err, &bridgeErr) {
		return string(bridgeErr.Kind)
	}
	return string(bridge.KindUnknown)
}
