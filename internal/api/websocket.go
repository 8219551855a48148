// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Corphon/MVScenePlanner/internal/services"
	"github.com/Corphon/MVScenePlanner/internal/utils"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsSendBuffer = 32
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 本地单用户工具，允许任意来源
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketClient 表示一个订阅项目变更的连接
type WebSocketClient struct {
	conn      *websocket.Conn
	projectID string
	send      chan []byte
	done      chan struct{}
	closed    int32 // 0=开启，1=关闭
	createdAt time.Time
}

// Close 安全关闭客户端连接
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		close(client.done)
		client.conn.Close()
	}
}

// IsClosed 检查连接是否已关闭
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// enqueue 非阻塞地放入发送队列，队列满时返回 false
func (client *WebSocketClient) enqueue(msg []byte) bool {
	if client.IsClosed() {
		return false
	}
	select {
	case client.send <- msg:
		return true
	default:
		return false
	}
}

// WebSocketManager 按项目管理连接，并把场景变更推送给订阅者
type WebSocketManager struct {
	connections map[string]map[*WebSocketClient]struct{} // projectID -> clients
	mutex       sync.RWMutex
	logger      *utils.Logger
	metrics     *utils.MetricsCollector
}

// NewWebSocketManager 创建管理器
func NewWebSocketManager(metrics *utils.MetricsCollector) *WebSocketManager {
	if metrics == nil {
		metrics = utils.GetMetricsCollector()
	}
	return &WebSocketManager{
		connections: make(map[string]map[*WebSocketClient]struct{}),
		logger:      utils.GetLogger(),
		metrics:     metrics,
	}
}

var _ services.ChangeNotifier = (*WebSocketManager)(nil)

// Serve 升级连接并阻塞直到连接结束
func (manager *WebSocketManager) Serve(w http.ResponseWriter, r *http.Request, projectID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &WebSocketClient{
		conn:      conn,
		projectID: projectID,
		send:      make(chan []byte, wsSendBuffer),
		done:      make(chan struct{}),
		createdAt: time.Now(),
	}
	manager.register(client)

	welcome, _ := json.Marshal(map[string]interface{}{
		"type":       "connected",
		"project_id": projectID,
		"timestamp":  time.Now().UTC(),
	})
	client.enqueue(welcome)

	go manager.writePump(client)
	manager.readPump(client)
	return nil
}

func (manager *WebSocketManager) register(client *WebSocketClient) {
	manager.mutex.Lock()
	if manager.connections[client.projectID] == nil {
		manager.connections[client.projectID] = make(map[*WebSocketClient]struct{})
	}
	manager.connections[client.projectID][client] = struct{}{}
	manager.mutex.Unlock()

	manager.metrics.IncGauge("ws_connections")
	manager.logger.Info("WebSocket client connected", map[string]interface{}{"project_id": client.projectID})
}

func (manager *WebSocketManager) unregister(client *WebSocketClient) {
	manager.mutex.Lock()
	removed := false
	if clients, exists := manager.connections[client.projectID]; exists {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			removed = true
		}
		if len(clients) == 0 {
			delete(manager.connections, client.projectID)
		}
	}
	manager.mutex.Unlock()

	client.Close()
	if removed {
		manager.metrics.DecGauge("ws_connections")
		manager.logger.Info("WebSocket client disconnected", map[string]interface{}{"project_id": client.projectID})
	}
}

// readPump 只处理控制帧；客户端发送的数据被忽略
func (manager *WebSocketManager) readPump(client *WebSocketClient) {
	defer manager.unregister(client)

	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (manager *WebSocketManager) writePump(client *WebSocketClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		manager.unregister(client)
	}()

	for {
		select {
		case <-client.done:
			return

		case message := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				manager.logger.Warnf("WebSocket write failed: %v", err)
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// NotifySceneChange 推送场景变更给该项目的所有订阅者
func (manager *WebSocketManager) NotifySceneChange(event services.ChangeEvent) {
	msg, err := json.Marshal(event)
	if err != nil {
		manager.logger.Errorf("marshal scene event: %v", err)
		return
	}
	manager.BroadcastToProject(event.ProjectID, msg)
}

// BroadcastToProject 向指定项目广播消息。发送队列已满的客户端会被断开。
func (manager *WebSocketManager) BroadcastToProject(projectID string, msg []byte) {
	manager.mutex.RLock()
	clients := make([]*WebSocketClient, 0, len(manager.connections[projectID]))
	for client := range manager.connections[projectID] {
		clients = append(clients, client)
	}
	manager.mutex.RUnlock()

	for _, client := range clients {
		if !client.enqueue(msg) && !client.IsClosed() {
			manager.logger.Warn("WebSocket client too slow, disconnecting", map[string]interface{}{"project_id": projectID})
			go manager.unregister(client)
		}
	}
}

// ClientCount 项目当前的连接数
func (manager *WebSocketManager) ClientCount(projectID string) int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()
	return len(manager.connections[projectID])
}

// GetStatus 获取管理器状态
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	projects := make(map[string]int, len(manager.connections))
	total := 0
	for projectID, clients := range manager.connections {
		projects[projectID] = len(clients)
		total += len(clients)
	}
	return map[string]interface{}{
		"total_projects":    len(manager.connections),
		"total_connections": total,
		"projects":          projects,
	}
}

// Shutdown 关闭所有连接
func (manager *WebSocketManager) Shutdown() {
	manager.mutex.Lock()
	var all []*WebSocketClient
	for _, clients := range manager.connections {
		for client := range clients {
			all = append(all, client)
		}
	}
	manager.mutex.Unlock()

	for _, client := range all {
		client.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		manager.unregister(client)
	}
}
