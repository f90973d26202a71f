package websocket

import (
	"bytes"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"dashboard/internal/metrics"
	"dashboard/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Пул JSON буферов - убирает аллокации при каждом Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями.
//
// Frontend получает real-time события без polling:
// - credentialUpdate: ключ создан/обновлён/удалён
// - provisionResult: итог настройки коннектора в Trading Bridge
// - bridgeStatus: изменение доступности Trading Bridge
// - reinitializeDone: завершение сверки клиента
//
// Использование:
//  1. hub := NewHub()
//  2. go hub.Run()
//  3. hub.BroadcastProvisionResult(...)
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	mu     sync.RWMutex
	logger *utils.Logger
}

// NewHub создает новый Hub
func NewHub(logger *utils.Logger) *Hub {
	if logger == nil {
		logger = utils.L()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.WithComponent("websocket"),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(total))
			h.logger.Debug("client connected", utils.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(total))
			h.logger.Debug("client disconnected", utils.Int("total", total))

		case message := <-h.broadcast:
			// Копируем список клиентов под коротким RLock
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			// Отправка без блокировки: не задерживаем register/unregister
			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает читать - помечаем для удаления
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				metrics.WebsocketClients.Set(float64(total))
				h.logger.Warn("removed slow clients",
					utils.Int("removed", len(toRemove)), utils.Int("total", total))
			}
		}
	}
}

// Broadcast отправляет сообщение всем подключенным клиентам.
// Буферы берутся из sync.Pool.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.logger.Error("failed to marshal broadcast message", utils.Err(err))
		jsonBufferPool.Put(buf)
		return
	}

	// Убираем trailing newline от Encode
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	// Копируем данные, буфер возвращается в пул
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.broadcast <- msgCopy
}

// BroadcastCredentialUpdate отправляет изменение API ключа
func (h *Hub) BroadcastCredentialUpdate(action, clientID string, data interface{}) {
	h.Broadcast(&CredentialUpdateMessage{
		Type:     TypeCredentialUpdate,
		Action:   action,
		ClientID: clientID,
		Data:     data,
	})
}

// BroadcastProvisionResult отправляет итог настройки коннектора
func (h *Hub) BroadcastProvisionResult(clientID, exchange string, configured bool, warning string) {
	h.Broadcast(&ProvisionResultMessage{
		Type:       TypeProvisionResult,
		ClientID:   clientID,
		Exchange:   exchange,
		Configured: configured,
		Warning:    warning,
	})
}

// BroadcastBridgeStatus отправляет изменение доступности Trading Bridge
func (h *Hub) BroadcastBridgeStatus(healthy bool, detail string) {
	h.Broadcast(&BridgeStatusMessage{
		Type:    TypeBridgeStatus,
		Healthy: healthy,
		Detail:  detail,
	})
}

// BroadcastReinitializeDone отправляет итог сверки клиента
func (h *Hub) BroadcastReinitializeDone(clientID string, result interface{}) {
	h.Broadcast(&ReinitializeDoneMessage{
		Type:     TypeReinitializeDone,
		ClientID: clientID,
		Data:     result,
	})
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
