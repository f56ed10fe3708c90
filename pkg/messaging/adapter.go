package messaging

import (
	"context"
	"encoding/json"
	"fmt"
)

type BrokerAdapter struct {
	broker  Broker
	onError func(topic string, err error)
}

// NewBrokerAdapter wraps broker. onError, when set, receives handler errors;
// delivery continues either way.
func NewBrokerAdapter(broker Broker, onError func(topic string, err error)) MessageBroker {
	return &BrokerAdapter{broker: broker, onError: onError}
}

func (a *BrokerAdapter) Publish(ctx context.Context, topic string, payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("payload for %s is not valid JSON", topic)
	}
	return a.broker.Publish(ctx, topic, json.RawMessage(payload))
}

func (a *BrokerAdapter) Close() error {
	return a.broker.Close()
}

// Subscribe delivers messages to handler until ctx is done.
func (a *BrokerAdapter) Subscribe(ctx context.Context, topic string, handler func([]byte) error) error {
	msgChan, err := a.broker.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgChan {
			if err := handler(msg); err != nil && a.onError != nil {
				a.onError(topic, err)
			}
		}
	}()

	return nil
}
