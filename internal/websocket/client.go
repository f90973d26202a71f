package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"dashboard/pkg/utils"
)

const (
	// Время ожидания записи сообщения
	writeWait = 10 * time.Second

	// Время ожидания между pong сообщениями
	pongWait = 60 * time.Second

	// Интервал отправки ping сообщений (должен быть меньше pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 4096

	// Размер буфера отправки клиента
	clientSendBufferSize = 256
)

// OriginChecker проверяет Origin с O(1) lookup через map.
// Потокобезопасен для чтения после инициализации.
type OriginChecker struct {
	allowedOrigins map[string]struct{}
	allowAll       bool
}

// NewOriginChecker создаёт чекер из списка разрешённых origin'ов.
// Пустой список или "*" разрешает всё (development mode).
func NewOriginChecker(origins []string) *OriginChecker {
	checker := &OriginChecker{
		allowedOrigins: make(map[string]struct{}),
	}

	if len(origins) == 0 {
		checker.allowAll = true
		return checker
	}

	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			checker.allowAll = true
			continue
		}
		if origin != "" {
			checker.allowedOrigins[origin] = struct{}{}
		}
	}

	return checker
}

// Check проверяет origin за O(1)
func (oc *OriginChecker) Check(origin string) bool {
	if origin == "" {
		return true // non-browser клиенты (curl, мониторинг)
	}
	if oc.allowAll {
		return true
	}
	_, ok := oc.allowedOrigins[origin]
	return ok
}

// Client представляет одно WebSocket соединение.
//
// Каждый клиент имеет две горутины:
//  1. readPump - читает сообщения от клиента и контролирует соединение
//  2. writePump - пишет сообщения из буферизованного канала send
type Client struct {
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
}

// readPump читает сообщения от клиента.
// Поток данных идёт от сервера к frontend, входящие сообщения игнорируются,
// но чтение нужно для обработки pong и close фреймов.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", utils.Err(err))
			}
			break
		}
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Дописываем накопившиеся сообщения в тот же фрейм
		drainLoop:
			for {
				select {
				case msg, ok := <-c.send:
					if !ok {
						break drainLoop
					}
					w.Write([]byte{'\n'})
					w.Write(msg)
				default:
					break drainLoop
				}
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TokenCheck валидирует токен доступа из query параметра.
// WebSocket из браузера не может выставить Authorization заголовок,
// поэтому токен приходит как ?token=.
type TokenCheck func(token string) error

// Upgrader апгрейдит HTTP соединение до WebSocket и запускает
// горутины клиента. Используется как handler /ws/stream.
type Upgrader struct {
	hub        *Hub
	upgrader   websocket.Upgrader
	checkToken TokenCheck
}

// NewUpgrader создает Upgrader с проверкой Origin и токена.
// checkToken == nil отключает аутентификацию (тесты, dev режим).
func NewUpgrader(hub *Hub, allowedOrigins []string, checkToken TokenCheck) *Upgrader {
	checker := NewOriginChecker(allowedOrigins)
	return &Upgrader{
		hub:        hub,
		checkToken: checkToken,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				return checker.Check(r.Header.Get("Origin"))
			},
		},
	}
}

// ServeWS обрабатывает WebSocket запросы от frontend
//
// Использование в routes:
//
//	router.HandleFunc("/ws/stream", upgrader.ServeWS)
func (u *Upgrader) ServeWS(w http.ResponseWriter, r *http.Request) {
	if u.checkToken != nil {
		if err := u.checkToken(r.URL.Query().Get("token")); err != nil {
			u.hub.logger.Warn("websocket auth failed", utils.Err(err))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		u.hub.logger.Warn("websocket upgrade failed", utils.Err(err))
		return
	}

	client := &Client{
		conn: conn,
		hub:  u.hub,
		send: make(chan []byte, clientSendBufferSize),
	}

	u.hub.register <- client

	go client.writePump()
	go client.readPump()
}
