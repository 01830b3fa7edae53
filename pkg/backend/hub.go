package backend

import (
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer 每个订阅者缓冲的消息数，满时丢弃新消息
const subscriberBuffer = 16

// Hub 将新记录广播给所有SSE订阅者
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]chan []byte
	closed      bool
}

// NewHub 创建广播中心
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]chan []byte)}
}

// Subscribe 注册订阅者，Hub 关闭后返回已关闭的通道
func (h *Hub) Subscribe() (string, <-chan []byte) {
	id := uuid.NewString()
	ch := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe 移除订阅者并关闭其通道
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Broadcast 非阻塞地发送给每个订阅者，返回被丢弃的次数
func (h *Hub) Broadcast(payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := 0
	for _, ch := range h.subscribers {
		select {
		case ch <- payload:
		default:
			dropped++
		}
	}
	return dropped
}

// Len 返回订阅者数量
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close 关闭所有订阅者通道，可重复调用
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}
