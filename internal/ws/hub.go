package ws

import (
	"sync"

	"github.com/ghasnhhz/chat-app/internal/metrics"
)

// Hub 维护房间 id 到连接集合的扇出表。成员变更（加入/离开/断开）与
// 广播遍历都在同一把锁下进行；单个慢连接只会被丢弃，不会拖住同房间
// 其他连接的投递。
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*Client]bool
}

func NewHub() *Hub { return &Hub{rooms: make(map[uint]map[*Client]bool)} }

// JoinRoom 把连接绑定到房间的扇出集合。这里不校验房间成员资格，
// 任何已认证连接都可以订阅它知道的房间 id。
func (h *Hub) JoinRoom(c *Client, roomID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	room := h.rooms[roomID]
	if room == nil {
		room = make(map[*Client]bool)
		h.rooms[roomID] = room
	}
	if room[c] {
		return
	}
	room[c] = true
	c.bound[roomID] = true
	h.broadcastLocked(roomID, presenceEvent(EventUserJoined, roomID, c, len(room)))
}

// LeaveRoom 把连接从房间的扇出集合移除，连接不在集合中时为无操作。
func (h *Hub) LeaveRoom(c *Client, roomID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[roomID]
	if room == nil || !room[c] {
		return
	}
	delete(room, c)
	delete(c.bound, roomID)
	if len(room) == 0 {
		delete(h.rooms, roomID)
		return
	}
	h.broadcastLocked(roomID, presenceEvent(EventUserLeft, roomID, c, len(room)))
}

// Disconnect 把连接从所有房间移除并关闭发送通道，可重复调用。
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// Broadcast 把载荷投递给当前绑定到房间的每个连接，含发送者自身。
func (h *Hub) Broadcast(roomID uint, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(roomID, payload)
}

// CloseRoom 清空房间的扇出集合，用于房间被删除后的强制解绑。
// 连接本身保持打开，只是不再绑定该房间。
func (h *Hub) CloseRoom(roomID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[roomID] {
		delete(c.bound, roomID)
	}
	delete(h.rooms, roomID)
}

// Online 返回房间当前绑定的连接数，供 REST 接口复用。
func (h *Hub) Online(roomID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// broadcastLocked 在持锁状态下遍历房间连接；发送缓冲已满的连接被
// 当作失活直接剔除。
func (h *Hub) broadcastLocked(roomID uint, payload []byte) {
	for c := range h.rooms[roomID] {
		select {
		case c.send <- payload:
		default:
			h.dropLocked(c)
		}
	}
}

// dropLocked 在持锁状态下把连接从全部房间摘除并关闭发送通道。
func (h *Hub) dropLocked(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	for roomID := range c.bound {
		if room := h.rooms[roomID]; room != nil {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			} else {
				h.broadcastLocked(roomID, presenceEvent(EventUserLeft, roomID, c, len(room)))
			}
		}
	}
	c.bound = make(map[uint]bool)
	close(c.send)
	metrics.WsConnections.Dec()
}
