// Package mq publishes and consumes activity messages over a pluggable
// broker backend.
package mq

import (
	"context"
	"errors"
	"fmt"

	"github.com/softdesk/apiserver/config"
)

// Message is a broker-agnostic payload. Key is used for routing on backends
// that support it and travels as an attribute on the others.
type Message struct {
	ID         string
	Key        string
	Data       []byte
	Attributes map[string]string
}

// ErrClosed is returned by a broker used after Close.
var ErrClosed = errors.New("broker closed")

// Handler processes a delivered message. Returning an error asks the backend
// to redeliver.
type Handler func(ctx context.Context, msg Message) error

// Broker is implemented by every backend.
type Broker interface {
	Publish(ctx context.Context, topic string, msg Message) (string, error)
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// Open connects to the backend selected in cfg. With no backend configured it
// returns nil and no error; callers treat that as "publishing disabled".
func Open(ctx context.Context, cfg config.MQConfig) (Broker, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.BackendPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}
