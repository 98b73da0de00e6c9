package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	apperrors "visionary-design-server/modules/common/errors"
	"visionary-design-server/modules/common/logger"
	"visionary-design-server/modules/common/model"
)

// Inbound message types
const (
	MessageCredentialSelected = "credential_selected"
	MessagePing               = "ping"
	MessagePong               = "pong"
	MessageError              = "error"
	MessageConnected          = "connected"
)

// Message - 클라이언트에서 들어오는 메시지
type Message struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
	APIKey    string `json:"apiKey,omitempty"`
}

// reply - 개별 클라이언트 응답
type reply struct {
	Type         string `json:"type"`
	SessionID    string `json:"sessionId,omitempty"`
	ClientID     string `json:"clientId,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Handler processes one inbound message for a session.
type Handler func(ctx context.Context, sessionID string, msg Message) error

// 연결된 클라이언트 정보
type Client struct {
	conn     *websocket.Conn
	roomID   string
	clientID string
	send     chan []byte
}

// Room groups the connections watching one studio session.
type Room struct {
	id           string
	clients      map[string]*Client
	mutex        sync.RWMutex
	createdAt    time.Time
	lastActivity time.Time
}

// 서버 메트릭
type Metrics struct {
	TotalRooms       int       `json:"totalRooms"`
	ActiveRooms      int       `json:"activeRooms"`
	TotalConnections int       `json:"totalConnections"`
	CurrentClients   int       `json:"currentClients"`
	Uptime           string    `json:"uptime"`
	StartTime        time.Time `json:"startTime"`
}

// Hub fans session events out to WebSocket clients.
type Hub struct {
	rooms    map[string]*Room
	mutex    sync.RWMutex
	upgrader websocket.Upgrader

	handlersMu sync.RWMutex
	handlers   map[string]Handler
	accept     func(sessionID string) bool

	metricsMu        sync.Mutex
	totalRooms       int
	totalConnections int
	startTime        time.Time
}

func New() *Hub {
	return &Hub{
		rooms: make(map[string]*Room),
		upgrader: websocket.Upgrader{
			// 모든 origin 허용 (CORS는 HTTP 미들웨어와 동일 정책)
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		handlers:  make(map[string]Handler),
		startTime: time.Now(),
	}
}

// Handle registers fn for inbound messages of msgType.
func (h *Hub) Handle(msgType string, fn Handler) {
	h.handlersMu.Lock()
	defer h.handlersMu.Unlock()
	h.handlers[msgType] = fn
}

// Accept sets the check run before upgrading a connection for a session.
func (h *Hub) Accept(fn func(sessionID string) bool) {
	h.handlersMu.Lock()
	defer h.handlersMu.Unlock()
	h.accept = fn
}

// join adds client to its room, creating the room on first use. Both steps
// happen under the hub lock so cleanup never drops a room being joined.
func (h *Hub) join(client *Client) (*Room, int) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, exists := h.rooms[client.roomID]
	if !exists {
		now := time.Now()
		room = &Room{
			id:           client.roomID,
			clients:      make(map[string]*Client),
			createdAt:    now,
			lastActivity: now,
		}
		h.rooms[client.roomID] = room

		h.metricsMu.Lock()
		h.totalRooms++
		h.metricsMu.Unlock()

		logger.WithFields(logrus.Fields{"session_id": client.roomID, "active_rooms": len(h.rooms)}).Info("✅ [Hub] Created room")
	}
	return room, room.addClient(client)
}

func (h *Hub) room(roomID string) *Room {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.rooms[roomID]
}

// 클라이언트를 룸에 추가
func (r *Room) addClient(client *Client) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.clients[client.clientID] = client
	r.lastActivity = time.Now()
	return len(r.clients)
}

// 클라이언트를 룸에서 제거
func (r *Room) removeClient(clientID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if client, exists := r.clients[clientID]; exists {
		close(client.send)
		delete(r.clients, clientID)
		r.lastActivity = time.Now()

		logger.WithFields(logrus.Fields{
			"session_id": r.id,
			"client_id":  clientID,
			"remaining":  len(r.clients),
		}).Info("👋 [Hub] Client left")
	}
}

// 룸의 모든 클라이언트에게 전송, 버퍼가 찬 클라이언트는 끊음
func (r *Room) broadcast(payload []byte) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	sent := 0
	for clientID, client := range r.clients {
		select {
		case client.send <- payload:
			sent++
		default:
			close(client.send)
			delete(r.clients, clientID)
			logger.WithField("client_id", clientID).Warn("⚠️  [Hub] Client buffer full, dropped")
		}
	}
	r.lastActivity = time.Now()
	return sent
}

func (r *Room) size() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.clients)
}

// HasListeners reports whether any client is connected to sessionID.
func (h *Hub) HasListeners(sessionID string) bool {
	room := h.room(sessionID)
	return room != nil && room.size() > 0
}

// Broadcast sends event to every client of sessionID.
func (h *Hub) Broadcast(sessionID string, event model.Event) {
	room := h.room(sessionID)
	if room == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.WithError(err).Error("❌ [Hub] Failed to marshal event")
		return
	}

	sent := room.broadcast(payload)
	if event.Type != model.EventProgress {
		logger.WithFields(logrus.Fields{"session_id": sessionID, "type": event.Type, "clients": sent}).Debug("📤 [Hub] Event sent")
	}
}

// ServeWS upgrades GET /ws?session=<id>.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "missing session parameter", http.StatusBadRequest)
		return
	}

	h.handlersMu.RLock()
	accept := h.accept
	h.handlersMu.RUnlock()
	if accept != nil && !accept(sessionID) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	clientID := uuid.NewString()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Warn("⚠️  [Hub] WebSocket upgrade failed")
		return
	}

	client := &Client{
		conn:     conn,
		roomID:   sessionID,
		clientID: clientID,
		send:     make(chan []byte, 256),
	}

	room, count := h.join(client)

	h.metricsMu.Lock()
	h.totalConnections++
	h.metricsMu.Unlock()

	logger.WithFields(logrus.Fields{"session_id": sessionID, "client_id": clientID, "clients": count}).Info("👤 [Hub] Client joined")

	room.sendTo(clientID, reply{Type: MessageConnected, SessionID: sessionID, ClientID: clientID})

	go client.writePump()
	go h.readPump(client, room)
}

// 클라이언트로부터 메시지 읽기
func (h *Hub) readPump(c *Client, room *Room) {
	defer func() {
		room.removeClient(c.clientID)
		c.conn.Close()
	}()

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.WithError(err).Warn("⚠️  [Hub] WebSocket error")
			}
			return
		}

		if msg.Type == MessagePing {
			room.sendTo(c.clientID, reply{Type: MessagePong})
			continue
		}

		h.handlersMu.RLock()
		handler := h.handlers[msg.Type]
		h.handlersMu.RUnlock()

		if handler == nil {
			logger.WithFields(logrus.Fields{"client_id": c.clientID, "type": msg.Type}).Debug("[Hub] Ignoring unknown message")
			continue
		}

		if err := handler(context.Background(), c.roomID, msg); err != nil {
			logger.WithError(err).WithField("type", msg.Type).Warn("⚠️  [Hub] Message handler failed")
			room.sendTo(c.clientID, reply{Type: MessageError, ErrorMessage: apperrors.UserMessage(err, "Message could not be processed.")})
		}
	}
}

// 클라이언트로 메시지 쓰기
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.WithError(err).Warn("⚠️  [Hub] WebSocket write error")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// sendTo queues msg for one client of the room, if it is still connected.
func (r *Room) sendTo(clientID string, msg reply) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	client, exists := r.clients[clientID]
	if !exists {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

// CleanupEmptyRooms removes rooms without clients and returns how many.
func (h *Hub) CleanupEmptyRooms() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	cleaned := 0
	for roomID, room := range h.rooms {
		if room.size() == 0 {
			delete(h.rooms, roomID)
			cleaned++
			logger.WithField("session_id", roomID).Debug("🧹 [Hub] Cleaned up empty room")
		}
	}

	if cleaned > 0 {
		logger.WithFields(logrus.Fields{"cleaned": cleaned, "active_rooms": len(h.rooms)}).Info("🗑️  [Hub] Cleaned up empty rooms")
	}
	return cleaned
}

// CloseRoom disconnects every client of sessionID.
func (h *Hub) CloseRoom(sessionID string) {
	h.mutex.Lock()
	room, exists := h.rooms[sessionID]
	delete(h.rooms, sessionID)
	h.mutex.Unlock()

	if !exists {
		return
	}

	room.mutex.Lock()
	defer room.mutex.Unlock()
	for clientID, client := range room.clients {
		close(client.send)
		delete(room.clients, clientID)
		logger.WithFields(logrus.Fields{"session_id": sessionID, "client_id": clientID}).Info("🔌 [Hub] Disconnecting client")
	}
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mutex.RLock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	h.mutex.RUnlock()

	for _, id := range ids {
		h.CloseRoom(id)
	}
}

// StartCleanupRoutine - 5분마다 빈 룸 정리, ctx 종료 시 중단
func (h *Hub) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.CleanupEmptyRooms()
			}
		}
	}()

	logger.WithField("interval", interval.String()).Info("🔄 [Hub] Started room cleanup routine")
}

// Metrics - 서버 메트릭 스냅샷
func (h *Hub) Metrics() Metrics {
	h.mutex.RLock()
	active := len(h.rooms)
	clients := 0
	for _, room := range h.rooms {
		clients += room.size()
	}
	h.mutex.RUnlock()

	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return Metrics{
		TotalRooms:       h.totalRooms,
		ActiveRooms:      active,
		TotalConnections: h.totalConnections,
		CurrentClients:   clients,
		Uptime:           time.Since(h.startTime).String(),
		StartTime:        h.startTime,
	}
}
