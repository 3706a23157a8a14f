package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"whisperflow/backend/internal/domain"
)

// LinkResolver 用收件令牌解析信箱（通常是 LinkService）。
type LinkResolver interface {
	ResolveByInboxID(inboxID string) (*domain.Link, error)
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeNewMessage MessageType = "new_message"
	MessageTypeLinkUpdate MessageType = "link_update"
	MessageTypePing       MessageType = "ping"
	MessageTypePong       MessageType = "pong"
	MessageTypeError      MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	LinkID    string          `json:"linkId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
//
// 连接在建立时就用收件令牌换成了信箱ID，此后只接收该信箱的
// 事件，不支持动态改订阅。
type Client struct {
	ID     string
	linkID string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
}

// Hub 管理所有WebSocket连接
type Hub struct {
	clients    map[string]*Client            // clientID -> Client
	links      map[string]map[string]*Client // linkID -> clientID -> Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage
	done       chan struct{} // Run 退出后关闭，解除注册/注销的阻塞
	mu         sync.RWMutex
	log        *zap.Logger

	resolver       LinkResolver
	allowedOrigins []string
}

type broadcastMessage struct {
	linkID  string
	message *Message
}

// NewHub 创建WebSocket Hub
func NewHub(resolver LinkResolver, allowedOrigins []string, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		clients:        make(map[string]*Client),
		links:          make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *broadcastMessage, 256),
		done:           make(chan struct{}),
		log:            log,
		resolver:       resolver,
		allowedOrigins: allowedOrigins,
	}
}

// Run 运行 Hub 的事件循环，直到上下文取消。
func (h *Hub) Run(ctx context.Context) {
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			// 事件循环退出后放行还卡在注册/注销上的读写泵
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if h.links[client.linkID] == nil {
				h.links[client.linkID] = make(map[string]*Client)
			}
			h.links[client.linkID][client.ID] = client
			h.mu.Unlock()

			h.log.Debug("websocket客户端已连接",
				zap.String("client_id", client.ID),
				zap.String("link_id", client.linkID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				if subs := h.links[client.linkID]; subs != nil {
					delete(subs, client.ID)
					if len(subs) == 0 {
						delete(h.links, client.linkID)
					}
				}
				close(client.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToLink(msg.linkID, msg.message)

		case <-pingTicker.C:
			h.pingAllClients()
		}
	}
}

// ConnectionCount 返回当前连接数。
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NotifyNewMessage 向信箱的订阅者推送新留言。
//
// 实现 service.MessageNotifier，投递入库后由留言服务调用。
func (h *Hub) NotifyNewMessage(link *domain.Link, message *domain.Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Warn("新留言事件序列化失败", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{
		linkID: link.ID,
		message: &Message{
			Type:      MessageTypeNewMessage,
			LinkID:    link.ID,
			Data:      data,
			Timestamp: time.Now().UTC(),
		},
	}:
	default:
		h.log.Warn("广播队列已满，丢弃新留言事件",
			zap.String("link_id", link.ID))
	}
}

// NotifyLinkUpdate 向信箱的订阅者推送信箱状态变化（封禁、解封）。
func (h *Hub) NotifyLinkUpdate(link *domain.Link) {
	data, err := json.Marshal(link)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{
		linkID: link.ID,
		message: &Message{
			Type:      MessageTypeLinkUpdate,
			LinkID:    link.ID,
			Data:      data,
			Timestamp: time.Now().UTC(),
		},
	}:
	default:
	}
}

func (h *Hub) broadcastToLink(linkID string, msg *Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.links[linkID] {
		select {
		case client.send <- payload:
		default:
			// 发送缓冲已满的慢客户端直接跳过
		}
	}
}

func (h *Hub) pingAllClients() {
	payload, err := json.Marshal(&Message{
		Type:      MessageTypePing,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- payload:
		default:
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.send)
		client.conn.Close()
		delete(h.clients, id)
	}
	h.links = make(map[string]map[string]*Client)
}

func (h *Hub) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range h.allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				return true
			}

			for _, origin := range h.allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// HandleWebSocket 返回订阅端点的处理函数。
//
// 路径中的收件令牌就是鉴权凭证，解析失败直接 404，
// 和 HTTP 收件箱接口保持一致。
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		link, err := hub.resolver.ResolveByInboxID(c.Param("inboxId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		upgrader := hub.upgrader()
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("websocket升级失败", zap.Error(err))
			return
		}

		client := &Client{
			ID:     uuid.NewString(),
			linkID: link.ID,
			conn:   conn,
			send:   make(chan []byte, 64),
			hub:    hub,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			// Hub 已停止，不再接受新连接
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	maxMsgSize = 4 * 1024
)

// release 把客户端交还给 Hub 注销。Hub 已经停止时直接返回，
// 避免读泵在进程关闭阶段永远阻塞在注销通道上。
func (h *Hub) release(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// readPump 读取客户端消息（只处理 pong 和关闭）
func (c *Client) readPump() {
	defer func() {
		c.hub.release(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		// 客户端的 pong 应用层消息同样刷新读超时
		if msg.Type == MessageTypePong {
			c.conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}
}

// writePump 把 send 通道里的消息写给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker((pongWait * 9) / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
