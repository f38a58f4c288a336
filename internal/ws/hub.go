// Package ws fans stock level changes out to streaming subscribers.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
)

// AllProducts is the subscription key that receives every product's events.
const AllProducts = "*"

const broadcastBuffer = 64

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub manages stream subscriptions by product ID.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	count     chan chan int
	stop      chan struct{}
	once      sync.Once
	logger    *slog.Logger
}

type message struct {
	productID string
	payload   []byte
}

type subscription struct {
	productID string
	client    Subscriber
}

// NewHub creates an initialized Hub and starts its dispatch loop.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message, broadcastBuffer),
		count:     make(chan chan int),
		stop:      make(chan struct{}),
		logger:    logger,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.productID]; !ok {
				h.clients[sub.productID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.productID][sub.client] = struct{}{}
		case sub := <-h.unreg:
			h.remove(sub.productID, sub.client)
		case msg := <-h.broadcast:
			h.deliver(msg.productID, msg.payload)
			h.deliver(AllProducts, msg.payload)
		case reply := <-h.count:
			n := 0
			for _, clients := range h.clients {
				n += len(clients)
			}
			reply <- n
		case <-h.stop:
			for key, clients := range h.clients {
				for c := range clients {
					c.Close()
				}
				delete(h.clients, key)
			}
			return
		}
	}
}

func (h *Hub) deliver(key string, payload []byte) {
	clients, ok := h.clients[key]
	if !ok {
		return
	}
	for c := range clients {
		if err := c.Send(payload); err != nil {
			c.Close()
			delete(clients, c)
		}
	}
	if len(clients) == 0 {
		delete(h.clients, key)
	}
}

func (h *Hub) remove(key string, client Subscriber) {
	if clients, ok := h.clients[key]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, key)
		}
	}
}

// Register adds a client to a product stream. Use AllProducts to follow the
// whole catalog.
func (h *Hub) Register(productID string, client Subscriber) {
	select {
	case h.register <- subscription{productID: productID, client: client}:
	case <-h.stop:
		client.Close()
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(productID string, client Subscriber) {
	select {
	case h.unreg <- subscription{productID: productID, client: client}:
	case <-h.stop:
	}
}

// Broadcast queues payload for all clients of the product. When the queue is
// full the event is dropped; subscribers only ever need the latest level.
func (h *Hub) Broadcast(productID string, payload []byte) {
	select {
	case h.broadcast <- message{productID: productID, payload: payload}:
	case <-h.stop:
	default:
		h.logger.Warn("stock event dropped", "product_id", productID)
	}
}

// PublishStock encodes a stock event and broadcasts it.
func (h *Hub) PublishStock(event domain.StockEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encode stock event", "error", err)
		return
	}
	h.Broadcast(event.ProductID, payload)
}

// Subscribers reports the number of registered clients.
func (h *Hub) Subscribers() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.stop:
		return 0
	}
}

// Close disconnects every subscriber and stops the dispatch loop.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.stop) })
}
