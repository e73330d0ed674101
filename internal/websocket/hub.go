package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"unkahi/backend/internal/domain"
)

// AccessResolver 把访问凭证解析成对应的主页句柄
type AccessResolver interface {
	Resolve(code string) (string, error)
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 没有 Origin 视为同源请求
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}

			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeNewMessage  MessageType = "message.new"
	MessageTypeInboxUpdate MessageType = "inbox.update"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeSubscribed  MessageType = "subscribed"
	MessageTypeError       MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Handle    string          `json:"handle,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID      string
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	handles map[string]bool // 已订阅的句柄
	mu      sync.RWMutex
	log     *zap.Logger
	// 认证信息
	Handle string // 凭证对应的句柄，只能订阅它
}

// Hub 管理所有WebSocket连接
type Hub struct {
	clients        map[string]*Client            // clientID -> Client
	handles        map[string]map[string]*Client // handle -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *BroadcastMessage
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	resolver       AccessResolver
}

// BroadcastMessage 广播消息
type BroadcastMessage struct {
	Handle  string
	Message *Message
}

// NewHub 创建WebSocket Hub
//
// 参数:
//   - allowedOrigins: 允许的 Origin 列表，用于 WebSocket 连接验证
//   - resolver: 访问凭证解析器，用于认证连接
//   - log: 日志记录器
func NewHub(allowedOrigins []string, resolver AccessResolver, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Hub{
		clients:        make(map[string]*Client),
		handles:        make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *BroadcastMessage, 256),
		log:            log,
		allowedOrigins: allowedOrigins,
		resolver:       resolver,
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run 启动Hub
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.log.Info("client registered", zap.String("id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for handle := range client.handles {
					if clients, exists := h.handles[handle]; exists {
						delete(clients, client.ID)
						if len(clients) == 0 {
							delete(h.handles, handle)
						}
					}
				}
				delete(h.clients, client.ID)
				close(client.send)
				h.log.Info("client unregistered", zap.String("id", client.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToHandle(msg.Handle, msg.Message)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// NewMessageData 新消息通知数据
type NewMessageData struct {
	MessageID     string `json:"messageId"`
	Handle        string `json:"handle"`
	Preview       string `json:"preview,omitempty"`
	SenderBrowser string `json:"senderBrowser,omitempty"`
	SenderDevice  string `json:"senderDevice,omitempty"`
	SenderCountry string `json:"senderCountry,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

// NotifyNewMessage 向在线的收件人推送新消息，实现 service.MessageNotifier。
func (h *Hub) NotifyNewMessage(handle string, message *domain.Message) {
	preview := message.Body
	if runes := []rune(preview); len(runes) > 100 {
		preview = string(runes[:100])
	}

	newMessageData := NewMessageData{
		MessageID:     message.ID,
		Handle:        handle,
		Preview:       preview,
		SenderBrowser: message.SenderBrowser,
		SenderDevice:  message.SenderDevice,
		SenderCountry: message.SenderCountry,
		CreatedAt:     message.CreatedAt.Format(time.RFC3339),
	}

	data, err := json.Marshal(newMessageData)
	if err != nil {
		h.log.Error("failed to marshal new message data", zap.Error(err))
		return
	}

	msg := &Message{
		Type:      MessageTypeNewMessage,
		Handle:    handle,
		Data:      data,
		Timestamp: time.Now(),
	}

	h.log.Info("broadcasting new message notification",
		zap.String("handle", handle),
		zap.String("messageID", message.ID))

	h.broadcast <- &BroadcastMessage{
		Handle:  handle,
		Message: msg,
	}
}

// InboxUpdateData 收件箱更新通知数据
type InboxUpdateData struct {
	Handle       string `json:"handle"`
	MessageCount int    `json:"messageCount"`
	LastActivity string `json:"lastActivity"`
}

// NotifyInboxUpdate 通知收件箱计数变化
func (h *Hub) NotifyInboxUpdate(identity *domain.Identity) {
	updateData := InboxUpdateData{
		Handle:       identity.Handle,
		MessageCount: identity.MessageCount,
		LastActivity: time.Now().Format(time.RFC3339),
	}

	data, err := json.Marshal(updateData)
	if err != nil {
		h.log.Error("failed to marshal inbox update data", zap.Error(err))
		return
	}

	msg := &Message{
		Type:      MessageTypeInboxUpdate,
		Handle:    identity.Handle,
		Data:      data,
		Timestamp: time.Now(),
	}

	h.broadcast <- &BroadcastMessage{
		Handle:  identity.Handle,
		Message: msg,
	}
}

// broadcastToHandle 向订阅特定句柄的客户端广播消息
func (h *Hub) broadcastToHandle(handle string, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	// 订阅表会被 readPump 并发修改，发送期间必须持有读锁
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.handles[handle] {
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

// pingAllClients 向所有客户端发送ping
func (h *Hub) pingAllClients() {
	msg := &Message{
		Type:      MessageTypePing,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			// 跳过阻塞的客户端
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.handles = make(map[string]map[string]*Client)
}

// authenticateClient 用访问凭证认证客户端
func (h *Hub) authenticateClient(c *gin.Context) (*Client, error) {
	code := c.Query("code")
	if code == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				code = parts[1]
			}
		}
	}

	if code == "" {
		return nil, errors.New("missing access code")
	}

	handle, err := h.resolver.Resolve(code)
	if err != nil {
		return nil, errors.New("invalid access code")
	}

	client := &Client{
		ID:      generateClientID(),
		Handle:  handle,
		handles: make(map[string]bool),
		log:     h.log,
	}

	h.log.Info("websocket authentication successful",
		zap.String("handle", handle))

	return client, nil
}

// HandleWebSocket 处理WebSocket连接
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		client, err := hub.authenticateClient(c)
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client.conn = conn
		client.hub = hub
		client.send = make(chan []byte, 256)

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.subscribeHandle(msg.Handle)
	case MessageTypeUnsubscribe:
		c.unsubscribeHandle(msg.Handle)
	case MessageTypePong:
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	default:
		c.log.Warn("unknown message type", zap.String("type", string(msg.Type)))
	}
}

// subscribeHandle 订阅句柄，凭证只能订阅它所属的句柄
func (c *Client) subscribeHandle(handle string) {
	if handle == "" {
		// 省略句柄时默认订阅凭证所属句柄
		handle = c.Handle
	}

	if handle != c.Handle {
		c.log.Warn("subscription denied: no permission",
			zap.String("clientID", c.ID),
			zap.String("handle", handle))
		c.sendError(fmt.Sprintf("no permission to access inbox: %s", handle))
		return
	}

	c.mu.Lock()
	c.handles[handle] = true
	c.mu.Unlock()

	c.hub.mu.Lock()
	if c.hub.handles[handle] == nil {
		c.hub.handles[handle] = make(map[string]*Client)
	}
	c.hub.handles[handle][c.ID] = c
	c.hub.mu.Unlock()

	c.log.Info("subscribed to inbox",
		zap.String("clientID", c.ID),
		zap.String("handle", handle))

	c.sendMessage(&Message{
		Type:      MessageTypeSubscribed,
		Handle:    handle,
		Timestamp: time.Now(),
	})
}

// sendError 发送错误消息给客户端
func (c *Client) sendError(errMsg string) {
	msg := &Message{
		Type:      MessageTypeError,
		Error:     errMsg,
		Timestamp: time.Now(),
	}
	c.sendMessage(msg)
}

// sendMessage 发送消息给客户端
func (c *Client) sendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked", zap.String("clientID", c.ID))
	}
}

// unsubscribeHandle 取消订阅句柄
func (c *Client) unsubscribeHandle(handle string) {
	if handle == "" {
		handle = c.Handle
	}

	c.mu.Lock()
	delete(c.handles, handle)
	c.mu.Unlock()

	c.hub.mu.Lock()
	if clients, exists := c.hub.handles[handle]; exists {
		delete(clients, c.ID)
		if len(clients) == 0 {
			delete(c.hub.handles, handle)
		}
	}
	c.hub.mu.Unlock()

	c.log.Info("unsubscribed from inbox",
		zap.String("clientID", c.ID),
		zap.String("handle", handle))
}

// generateClientID 生成客户端ID
func generateClientID() string {
	return time.Now().Format("20060102150405") + "-" + uuid.NewString()[:8]
}
