package websocket

import (
	"errors"
	"sync"

	"TurnMatch/internal/launcher"
	"TurnMatch/internal/utils"

	"github.com/charmbracelet/log"
)

var (
	ErrClientGone     = errors.New("client not connected")
	ErrSendBufferFull = errors.New("client send buffer full")
)

type HubInterface interface {
	BroadcastToPlayers(addrs []string, msg OutgoingMessage)
	ClientByAddress(addr string) (*Client, bool)
	SendToPlayer(addr string, msg OutgoingMessage)
	Screen(addr string) launcher.HostRef
	Close()
}

type Hub struct {
	clients    map[string]*Client // address -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastReq
	sendOne    chan sendReq
	// OnIncoming 在客户端读协程中调用，同一玩家的消息按顺序到达
	OnIncoming func(IncomingMessage)
	// OnUnregister 连接断开后调用（在 Hub 协程之外）
	OnUnregister func(address string)
	// OnReplace 同一地址的新连接顶替旧连接时调用。在 Hub 协程中同步执行，
	// 新连接的读写协程要等它返回后才启动；回调内不能再通过 Hub 的 channel 发消息
	OnReplace func(address string)
	quit         chan struct{}
	mu           sync.RWMutex
	log          *log.Logger
}

type broadcastReq struct {
	Addresses []string
	Message   OutgoingMessage
}

type sendReq struct {
	Address string
	Message OutgoingMessage
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastReq),
		sendOne:    make(chan sendReq),
		quit:       make(chan struct{}),
		log:        utils.Named("hub"),
	}
}

func (h *Hub) Run() {
	h.log.Info("Hub started")

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			replaced := false
			// 同一地址重连：关闭旧连接
			if old, ok := h.clients[c.Address]; ok && old != c {
				close(old.Send)
				replaced = true
			}
			h.clients[c.Address] = c
			h.log.Info("Hub.register", "address", c.Address, "clients", len(h.clients), "replaced", replaced)
			h.mu.Unlock()
			if replaced && h.OnReplace != nil {
				h.OnReplace(c.Address)
			}
			if c.registered != nil {
				close(c.registered)
			}

		case c := <-h.unregister:
			h.mu.Lock()
			removed := false
			// 只移除仍是当前连接的客户端，避免误删重连后的新连接
			if cur, ok := h.clients[c.Address]; ok && cur == c {
				delete(h.clients, c.Address)
				close(c.Send)
				removed = true
				h.log.Info("Hub.unregister", "address", c.Address, "clients", len(h.clients))
			}
			h.mu.Unlock()
			if removed && h.OnUnregister != nil {
				go h.OnUnregister(c.Address)
			}

		case req := <-h.broadcast:
			h.mu.RLock()
			for _, addr := range req.Addresses {
				if client, ok := h.clients[addr]; ok {
					trySend(client, req.Message)
				}
			}
			h.mu.RUnlock()

		case req := <-h.sendOne:
			h.mu.RLock()
			if client, ok := h.clients[req.Address]; ok {
				trySend(client, req.Message)
			}
			h.mu.RUnlock()

		case <-h.quit:
			h.mu.Lock()
			for addr, c := range h.clients {
				close(c.Send)
				delete(h.clients, addr)
			}
			h.mu.Unlock()
			return
		}
	}
}

func trySend(c *Client, msg OutgoingMessage) bool {
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// Broadcast to multiple players
func (h *Hub) BroadcastToPlayers(addrs []string, msg OutgoingMessage) {
	select {
	case h.broadcast <- broadcastReq{Addresses: addrs, Message: msg}:
	case <-h.quit:
	}
}

// Send to a single player (safe concurrent)
func (h *Hub) SendToPlayer(addr string, msg OutgoingMessage) {
	select {
	case h.sendOne <- sendReq{Address: addr, Message: msg}:
	case <-h.quit:
	}
}

// Lookup for a player client by address
func (h *Hub) ClientByAddress(addr string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[addr]
	return c, ok
}

// sendTo 直接投递给指定连接；该连接已被替换或断开时返回 ErrClientGone
func (h *Hub) sendTo(c *Client, msg OutgoingMessage) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if cur, ok := h.clients[c.Address]; !ok || cur != c {
		return ErrClientGone
	}
	if !trySend(c, msg) {
		return ErrSendBufferFull
	}
	return nil
}

func (h *Hub) dispatch(msg IncomingMessage) {
	if h.OnIncoming != nil {
		h.OnIncoming(msg)
	}
}

func (h *Hub) Close() {
	close(h.quit)
}
