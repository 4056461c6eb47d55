package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/allinone-studio/remote-support-server/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

// Event types published on session channels.
const (
	EventPeerJoined    = "peer-joined"
	EventStatusChanged = "status-changed"
	EventChatMessage   = "chat-message"
	EventSignal        = "signal"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	Code   string
	Events chan Event
	Done   chan struct{}
}

// Broker fans session events out to subscribed participants. With a Redis
// client it bridges instances over pub/sub; without one, events stay
// in-process, which is all a single-instance deployment needs.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool // session code -> set of clients
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewBroker creates a broker. redisClient may be nil.
func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(code string) *Client {
	client := &Client{
		Code:   code,
		Events: make(chan Event, 100),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[code] == nil {
		b.clients[code] = make(map[*Client]bool)
		if b.redis != nil {
			go b.subscribeToRedis(code)
		}
	}
	b.clients[code][client] = true
	clientCount := len(b.clients[code])
	b.mu.Unlock()

	log.Info().
		Str("code", code).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.Code]; ok {
		delete(clients, client)
		close(client.Done)

		if len(clients) == 0 {
			delete(b.clients, client.Code)
		}

		log.Info().
			Str("code", client.Code).
			Int("clientCount", len(clients)).
			Msg("sse client unsubscribed")
	}
}

func (b *Broker) Publish(ctx context.Context, code string, event Event) error {
	if b.redis == nil {
		b.broadcast(code, event)
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.SessionChannel(code)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(code string) {
	channel := redisclient.SessionChannel(code)
	pubsub := b.redis.Subscribe(b.ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("code", code).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(code, event)
		}
	}
}

func (b *Broker) broadcast(code string, event Event) {
	b.mu.RLock()
	clients := b.clients[code]
	b.mu.RUnlock()

	for client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("code", code).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
}

func (b *Broker) ClientCount(code string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[code])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
