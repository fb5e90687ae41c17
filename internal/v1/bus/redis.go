// Package bus handles cross-instance fan-out and presence over Redis.
// When Redis is disabled the service degrades to single-instance mode:
// every method becomes a no-op.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer/internal/v1/logging"
	"github.com/TheZedxD/HomeGameServer/internal/v1/metrics"
)

// RoomEvent is the container for room messages relayed between instances.
type RoomEvent struct {
	RoomCode string          `json:"roomCode"`
	Event    string          `json:"event"`
	Payload  json.RawMessage `json:"payload"`
	SenderID string          `json:"senderId"` // prevents echo loops
}

// Service handles all interaction with Redis.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// Client returns the underlying Redis client, or nil in single-instance mode.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// NewService connects to Redis and wraps the connection in a circuit
// breaker so a Redis outage cannot stall room processing.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateVal)
		},
	}

	logging.Info(context.Background(), "connected to redis", zap.String("addr", addr))
	return &Service{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

func roomChannel(roomCode string) string {
	return fmt.Sprintf("game:room:%s", roomCode)
}

// Publish relays a room event to every other instance hosting players of
// this room. Failures degrade gracefully: the local room keeps running.
func (s *Service) Publish(ctx context.Context, roomCode, event string, payload any, senderID string) error {
	if s == nil || s.client == nil {
		return nil
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		innerBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		msg := RoomEvent{
			RoomCode: roomCode,
			Event:    event,
			Payload:  innerBytes,
			SenderID: senderID,
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal room event: %w", err)
		}
		return nil, s.client.Publish(ctx, roomChannel(roomCode), data).Err()
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			logging.Warn(ctx, "redis circuit open, dropping publish", zap.String("room_code", roomCode))
			return nil
		}
		logging.Error(ctx, "redis publish failed", zap.String("room_code", roomCode), zap.Error(err))
		return err
	}
	return nil
}

// Subscribe listens for room events published by other instances and
// invokes handler for each. Returns immediately; the listener runs until
// ctx is cancelled.
func (s *Service) Subscribe(ctx context.Context, roomCode string, wg *sync.WaitGroup, handler func(RoomEvent)) {
	if s == nil || s.client == nil {
		return
	}

	channel := roomChannel(roomCode)
	pubsub := s.client.Subscribe(ctx, channel)

	if wg != nil {
		wg.Add(1)
	}
	go func() {
		defer pubsub.Close()
		if wg != nil {
			defer wg.Done()
		}

		logging.Info(ctx, "subscribed to redis channel", zap.String("channel", channel))
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					logging.Warn(ctx, "redis subscription closed", zap.String("channel", channel))
					return
				}
				var event RoomEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logging.Error(ctx, "malformed redis message", zap.Error(err))
					continue
				}
				handler(event)
			}
		}
	}()
}

// PresenceAdd records a player as present in a room, for cross-instance
// room directories.
func (s *Service) PresenceAdd(ctx context.Context, roomCode, playerID string) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.SAdd(ctx, presenceKey(roomCode), playerID).Err()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			logging.Warn(ctx, "redis circuit open, skipping presence add", zap.String("room_code", roomCode))
			return nil
		}
		return fmt.Errorf("presence add: %w", err)
	}
	return nil
}

// PresenceRemove drops a player from a room's presence set.
func (s *Service) PresenceRemove(ctx context.Context, roomCode, playerID string) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.SRem(ctx, presenceKey(roomCode), playerID).Err()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			logging.Warn(ctx, "redis circuit open, skipping presence remove", zap.String("room_code", roomCode))
			return nil
		}
		return fmt.Errorf("presence remove: %w", err)
	}
	return nil
}

// PresenceMembers lists player ids present in a room across instances.
func (s *Service) PresenceMembers(ctx context.Context, roomCode string) ([]string, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.SMembers(ctx, presenceKey(roomCode)).Result()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			logging.Warn(ctx, "redis circuit open, returning empty presence", zap.String("room_code", roomCode))
			return nil, nil
		}
		return nil, fmt.Errorf("presence members: %w", err)
	}
	return res.([]string), nil
}

func presenceKey(roomCode string) string {
	return fmt.Sprintf("game:presence:%s", roomCode)
}

// Ping checks Redis connectivity. Used by readiness probes.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	return err
}

// Close shuts down the Redis connection.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
