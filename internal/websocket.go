package internal

import (
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	apperrors "github.com/hanbo386/number-maze/pkg/errors"
)

// 系統設計：
//   每條連線兩個 goroutine：
//     readPump  讀取文字訊息 → 限流 → Dispatcher（單一 goroutine，Session 不需要鎖）
//     writePump 從 send 通道取訊息寫出，並定期發送 Ping
//   房間廣播只做非阻塞入列，慢客戶端不會拖住房間。
//   連線關閉（讀取錯誤、Pong 超時、Hub 停止）時由 readPump 通知 Dispatcher。

// Hub WebSocket 連接中心
type Hub struct {
	dispatcher *Dispatcher
	cfg        WebSocketConfig
	logger     *slog.Logger
	upgrader   websocket.Upgrader

	mu          sync.Mutex
	connections map[*Connection]struct{}
	stopped     bool
	wg          sync.WaitGroup
}

// Connection 一條 WebSocket 連線，同時是該玩家的 Mailbox
type Connection struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	session *Session

	mu     sync.Mutex
	closed bool
}

// NewHub 創建 WebSocket Hub
func NewHub(dispatcher *Dispatcher, cfg WebSocketConfig, logger *slog.Logger) *Hub {
	hub := &Hub{
		dispatcher:  dispatcher,
		cfg:         cfg,
		logger:      logger,
		connections: make(map[*Connection]struct{}),
	}
	hub.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     hub.checkOrigin,
	}
	return hub
}

// checkOrigin 未配置 allowed_origins 時接受所有來源
func (hub *Hub) checkOrigin(r *http.Request) bool {
	if len(hub.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(hub.cfg.AllowedOrigins, origin)
}

// ServeWS 升級為 WebSocket 並啟動讀寫 goroutine
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	hub.mu.Lock()
	stopped := hub.stopped
	hub.mu.Unlock()
	if stopped {
		http.Error(w, "服務器正在關閉", http.StatusServiceUnavailable)
		return
	}

	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := &Connection{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, hub.cfg.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(hub.cfg.RatePerSecond), hub.cfg.RateBurst),
	}
	c.session = NewSession(c)

	if !hub.register(c) {
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()

	hub.logger.Debug("WebSocket 連接建立", "remote", r.RemoteAddr)
}

func (hub *Hub) register(c *Connection) bool {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if hub.stopped {
		return false
	}
	hub.connections[c] = struct{}{}
	hub.wg.Add(1)
	return true
}

func (hub *Hub) unregister(c *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if _, exists := hub.connections[c]; exists {
		delete(hub.connections, c)
		hub.wg.Done()
	}
}

// ConnectionCount 當前連線數
func (hub *Hub) ConnectionCount() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.connections)
}

// Stop 關閉所有連線並等待讀取 goroutine 結束
func (hub *Hub) Stop() {
	hub.mu.Lock()
	if hub.stopped {
		hub.mu.Unlock()
		return
	}
	hub.stopped = true
	conns := make([]*Connection, 0, len(hub.connections))
	for c := range hub.connections {
		conns = append(conns, c)
	}
	hub.mu.Unlock()

	// 關閉 send 通道後 writePump 送出 Close 訊息並關閉底層連線，readPump 隨之結束
	for _, c := range conns {
		c.closeSend()
	}
	hub.wg.Wait()

	hub.logger.Info("WebSocket Hub 已停止")
}

// Send 實作 Mailbox：非阻塞入列
func (c *Connection) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Connection) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump 讀取客戶端訊息
//
// 讀取超時 pong_wait，收到 Pong 時延長；超時即視為斷線。
func (c *Connection) readPump() {
	defer func() {
		c.hub.dispatcher.Disconnect(c.session)
		c.closeSend()
		_ = c.conn.Close()
		c.hub.unregister(c)
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(cfg.ReadLimit)
	if err := c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket 讀取錯誤",
					"error", err,
					"room_code", c.session.RoomCode(),
					"player_id", c.session.PlayerID())
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		if !c.limiter.Allow() {
			c.Send(encodeMessage(NewErrorMessage(apperrors.ErrRateLimited)))
			continue
		}

		c.handleFrame(message)
	}
}

// handleFrame 單一訊息的 panic 不影響連線
func (c *Connection) handleFrame(message []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.hub.logger.Error("處理訊息時發生 panic",
				"panic", r,
				"room_code", c.session.RoomCode(),
				"player_id", c.session.PlayerID())
			c.Send(encodeMessage(NewErrorMessage(apperrors.ErrInternal)))
		}
	}()

	c.hub.dispatcher.HandleFrame(c.session, message)
}

// writePump 寫出訊息並定期 Ping
func (c *Connection) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 一併送出已排隊的訊息（每則仍是獨立的文字訊息）
			n := len(c.send)
			for range n {
				next, ok := <-c.send
				if !ok {
					return
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, next); err != nil {
					return
				}
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
