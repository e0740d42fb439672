package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"inputbid-service/internal/ports/outbound"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroadcaster implements the broadcaster interface using Redis pub/sub
type RedisBroadcaster struct {
	client            *redis.Client
	subscribers       map[string]chan outbound.Event // clientID -> local channel
	pubsubs           map[string]*redis.PubSub       // clientID -> pubsub instance
	clientsToAudience map[string]map[string]bool     // clientID -> channel -> subscribed
	mu                sync.RWMutex
	ctx               context.Context
	cancel            context.CancelFunc
	logger            zerolog.Logger
}

type RedisBroadcasterParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

func NewBroadcaster(params RedisBroadcasterParams) *RedisBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBroadcaster{
		client:            params.RedisClient,
		subscribers:       make(map[string]chan outbound.Event),
		pubsubs:           make(map[string]*redis.PubSub),
		clientsToAudience: make(map[string]map[string]bool),
		ctx:               ctx,
		cancel:            cancel,
		logger:            params.Logger.With().Str("component", "redis_broadcaster").Logger(),
	}
}

// Subscribe subscribes a client to the events of one audience. The first
// subscription of a client returns once Redis confirmed it.
func (r *RedisBroadcaster) Subscribe(ctx context.Context, audience outbound.Audience, clientID string, eventChan chan outbound.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	channelName := audience.Channel()

	if r.clientsToAudience[clientID][channelName] {
		r.logger.Debug().
			Str("client_id", clientID).
			Str("channel", channelName).
			Msg("Client already subscribed to audience")
		return nil
	}

	if pubsub, exists := r.pubsubs[clientID]; exists {
		if err := pubsub.Subscribe(ctx, channelName); err != nil {
			r.logger.Error().Err(err).Str("client_id", clientID).Str("channel", channelName).Msg("Failed to subscribe to Redis channel")
			return err
		}
	} else {
		pubsub := r.client.Subscribe(ctx, channelName)
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			r.logger.Error().Err(err).Str("client_id", clientID).Str("channel", channelName).Msg("Failed to subscribe to Redis channel")
			return fmt.Errorf("failed to subscribe to %s: %w", channelName, err)
		}
		r.pubsubs[clientID] = pubsub
		r.subscribers[clientID] = eventChan

		go r.listenForRedisMessages(pubsub, clientID, eventChan)
	}

	if r.clientsToAudience[clientID] == nil {
		r.clientsToAudience[clientID] = make(map[string]bool)
	}
	r.clientsToAudience[clientID][channelName] = true

	r.logger.Info().
		Str("client_id", clientID).
		Str("channel", channelName).
		Msg("Client subscribed to audience via Redis")
	return nil
}

// Unsubscribe removes one audience; the last one closes the client's channel
func (r *RedisBroadcaster) Unsubscribe(ctx context.Context, audience outbound.Audience, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	channelName := audience.Channel()
	clientAudiences, exists := r.clientsToAudience[clientID]
	if !exists {
		return nil
	}
	delete(clientAudiences, channelName)

	if len(clientAudiences) > 0 {
		if pubsub, exists := r.pubsubs[clientID]; exists {
			if err := pubsub.Unsubscribe(ctx, channelName); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Str("channel", channelName).Msg("Error unsubscribing from Redis channel")
			}
		}
	} else {
		r.dropClient(clientID)
	}

	r.logger.Info().
		Str("client_id", clientID).
		Str("channel", channelName).
		Msg("Client unsubscribed from audience")
	return nil
}

// dropClient releases every resource held for the client. Callers hold r.mu.
func (r *RedisBroadcaster) dropClient(clientID string) {
	delete(r.clientsToAudience, clientID)

	if pubsub, exists := r.pubsubs[clientID]; exists {
		if err := pubsub.Close(); err != nil {
			r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing Redis pubsub for client")
		}
		delete(r.pubsubs, clientID)
	}

	if eventChan, exists := r.subscribers[clientID]; exists {
		close(eventChan)
		delete(r.subscribers, clientID)
	}
}

// Publish publishes an event to every session of the audience via Redis
func (r *RedisBroadcaster) Publish(ctx context.Context, audience outbound.Audience, event outbound.Event) error {
	channelName := audience.Channel()

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := r.client.Publish(ctx, channelName, eventJSON)
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	r.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("request_id", event.RequestID.String()).
		Str("channel", channelName).
		Int("seq", event.Seq).
		Int64("subscriber_count", result.Val()).
		Msg("Published event to audience")

	return nil
}

// IsSubscribed checks if a client listens on the audience
func (r *RedisBroadcaster) IsSubscribed(ctx context.Context, audience outbound.Audience, clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.clientsToAudience[clientID][audience.Channel()]
}

// listenForRedisMessages forwards Redis messages to the client's local
// channel, dropping events when it is full.
func (r *RedisBroadcaster) listenForRedisMessages(pubsub *redis.PubSub, clientID string, localChan chan outbound.Event) {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error().Interface("panic", err).Str("client_id", clientID).Msg("Redis message listener panic for client")
		}
	}()

	ch := pubsub.Channel()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				r.logger.Debug().Str("client_id", clientID).Msg("Redis channel closed for client")
				return
			}

			var event outbound.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to unmarshal Redis message for client")
				continue
			}

			r.mu.RLock()
			_, live := r.subscribers[clientID]
			if live {
				select {
				case localChan <- event:
				default:
					r.logger.Warn().
						Str("client_id", clientID).
						Str("event_type", string(event.Type)).
						Msg("Local channel full for client, dropping event")
				}
			}
			r.mu.RUnlock()
			if !live {
				return
			}

		case <-r.ctx.Done():
			return
		}
	}
}

// Close stops every listener and releases all client subscriptions. The
// Redis client itself stays open.
func (r *RedisBroadcaster) Close() error {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for clientID := range r.clientsToAudience {
		r.dropClient(clientID)
	}
	for clientID := range r.pubsubs {
		r.dropClient(clientID)
	}

	return nil
}
