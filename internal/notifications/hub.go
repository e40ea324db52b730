package notifications

import (
	"context"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/davidbarrios/platerush-backend/pkg/logger"
)

const subscriberBuffer = 64

// Subscriber receives channel payloads until Close or hub shutdown. Slow
// consumers are dropped rather than allowed to stall the fanout.
type Subscriber struct {
	hub     *Hub
	channel string
	send    chan []byte
	once    sync.Once
}

// Receive returns the payload stream for this subscriber.
func (s *Subscriber) Receive() <-chan []byte {
	return s.send
}

// Close detaches the subscriber from the hub.
func (s *Subscriber) Close() {
	s.hub.unsubscribe(s)
}

// Hub fans notification payloads out to websocket subscribers grouped by
// channel. It holds no delivery guarantees; the persisted notification row
// is the durable copy.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscriber]struct{}
	logger      *logger.Logger
}

// NewHub builds an empty hub.
func NewHub(logg *logger.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Subscriber]struct{}),
		logger:      logg,
	}
}

// Subscribe attaches a new subscriber to the channel.
func (h *Hub) Subscribe(channel string) *Subscriber {
	sub := &Subscriber{
		hub:     h,
		channel: channel,
		send:    make(chan []byte, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[channel] == nil {
		h.subscribers[channel] = make(map[*Subscriber]struct{})
	}
	h.subscribers[channel][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subscribers[sub.channel]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subscribers, sub.channel)
	}
	sub.once.Do(func() { close(sub.send) })
}

// Broadcast delivers payload to every subscriber of the channel. A full
// subscriber buffer drops the payload for that subscriber only.
func (h *Hub) Broadcast(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers[channel] {
		select {
		case sub.send <- payload:
		default:
		}
	}
}

// SubscriberCount reports active subscribers on a channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channel])
}

type patternSubscriber interface {
	PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub
	ChannelKey(channel string) string
}

// Bridge pumps redis pub/sub messages into the hub until ctx is done. Run
// it on its own goroutine from main.
func (h *Hub) Bridge(ctx context.Context, sub patternSubscriber) {
	pubsub := sub.PSubscribe(ctx, "*")
	defer pubsub.Close()

	prefix := sub.ChannelKey("")
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			channel := strings.TrimPrefix(msg.Channel, prefix)
			channel = strings.TrimPrefix(channel, ":")
			h.Broadcast(channel, []byte(msg.Payload))
		}
	}
}
