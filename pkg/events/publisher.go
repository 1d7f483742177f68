// Package events publishes booking lifecycle notifications to an external bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"slotbot/pkg/domain"
)

const (
	BackendNone  = "none"
	BackendRedis = "redis"
	BackendAMQP  = "amqp"
)

// Publisher delivers booking events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, evt domain.Event) error
	Close() error
}

// Config selects and configures a publisher backend.
type Config struct {
	Backend string

	RedisAddr     string
	RedisPassword string
	Stream        string
	MaxLen        int64

	AMQPURL      string
	AMQPExchange string
}

// New builds the publisher named by cfg.Backend. An empty backend means none.
func New(cfg Config) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return NopPublisher{}, nil
	case BackendRedis:
		p, err := NewRedisStreamPublisher(RedisStreamConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.Stream,
			MaxLen:   cfg.MaxLen,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendAMQP:
		p, err := NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Event) error { return nil }
func (NopPublisher) Close() error                                { return nil }

func encode(evt domain.Event) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}
