package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType WebSocket 消息类型
const (
	MsgTypeInit          = "init"           // 初始化数据（工作区数据集状态）
	MsgTypeDatasetLoaded = "dataset_loaded" // 上传或加载演示数据完成
	MsgTypeDatasetReset  = "dataset_reset"  // 数据集被清空或过期
)

// Message WebSocket 消息结构
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// DatasetLoaded dataset_loaded 消息内容
type DatasetLoaded struct {
	Count    int    `json:"count"`
	Rejected int    `json:"rejected"`
	Kind     string `json:"kind"`
}

// Client WebSocket 客户端，属于一个工作区
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	workspaceID string
	send        chan []byte
}

type envelope struct {
	workspaceID string
	payload     []byte
}

// Hub WebSocket 连接管理中心，消息只发给同一工作区的客户端
type Hub struct {
	logger     *zap.Logger
	clients    map[string]map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	// 初始数据提供者回调
	getInitData func(workspaceID string) interface{}
}

// NewHub 创建 Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetInitDataProvider 设置初始数据提供者
func (h *Hub) SetInitDataProvider(provider func(workspaceID string) interface{}) {
	h.getInitData = provider
}

// Run 运行 Hub，ctx 取消后关闭所有客户端
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, clients := range h.clients {
				for client := range clients {
					close(client.send)
				}
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.workspaceID] == nil {
				h.clients[client.workspaceID] = make(map[*Client]bool)
			}
			h.clients[client.workspaceID][client] = true
			h.mu.Unlock()
			h.logger.Info("WebSocket client connected",
				zap.String("workspace_id", client.workspaceID),
				zap.Int("total_clients", h.ClientCount()))

			// 发送初始数据
			h.sendInitData(client)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.logger.Info("WebSocket client disconnected",
				zap.String("workspace_id", client.workspaceID),
				zap.Int("total_clients", h.ClientCount()))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.workspaceID] {
				select {
				case client.send <- msg.payload:
				default:
					// 慢消费者，关闭连接
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove 调用方持有写锁
func (h *Hub) remove(client *Client) {
	clients := h.clients[client.workspaceID]
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.workspaceID)
	}
}

// sendInitData 发送初始数据给新连接的客户端
func (h *Hub) sendInitData(client *Client) {
	if h.getInitData == nil {
		h.logger.Warn("No init data provider set")
		return
	}

	initData := h.getInitData(client.workspaceID)
	if initData == nil {
		return
	}

	data, err := json.Marshal(Message{Type: MsgTypeInit, Data: initData})
	if err != nil {
		h.logger.Error("Failed to marshal init data", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client.workspaceID][client] {
		return
	}
	select {
	case client.send <- data:
		h.logger.Debug("Sent init data to client")
	default:
		h.logger.Warn("Failed to send init data, client buffer full")
	}
}

// BroadcastMessage 把结构化消息发给某个工作区的所有客户端
func (h *Hub) BroadcastMessage(workspaceID, msgType string, data interface{}) {
	jsonData, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- envelope{workspaceID: workspaceID, payload: jsonData}:
	default:
		h.logger.Warn("Broadcast queue full, dropping message",
			zap.String("workspace_id", workspaceID), zap.String("type", msgType))
	}
}

// BroadcastDatasetLoaded 通知数据集已加载
func (h *Hub) BroadcastDatasetLoaded(workspaceID string, loaded DatasetLoaded) {
	h.BroadcastMessage(workspaceID, MsgTypeDatasetLoaded, loaded)
}

// BroadcastDatasetReset 通知数据集已清空
func (h *Hub) BroadcastDatasetReset(workspaceID string) {
	h.BroadcastMessage(workspaceID, MsgTypeDatasetReset, struct{}{})
}

// ClientCount 获取客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

// WorkspaceClientCount 某个工作区的客户端数量
func (h *Hub) WorkspaceClientCount(workspaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[workspaceID])
}

// NewClient 创建客户端
func NewClient(hub *Hub, conn *websocket.Conn, workspaceID string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		workspaceID: workspaceID,
		send:        make(chan []byte, 256),
	}
}

// Register 注册客户端，Hub 已停止时返回 false
func (c *Client) Register() bool {
	select {
	case c.hub.register <- c:
		return true
	case <-c.hub.done:
		return false
	}
}

// Unregister 注销客户端
func (c *Client) Unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// ReadPump 读取消息（保持连接活跃）
func (c *Client) ReadPump() {
	defer func() {
		c.Unregister()
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
		// 不处理客户端消息，仅保持连接
	}
}

// WritePump 发送消息
func (c *Client) WritePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}
