package ports

import "context"

// MessageHandler receives a message delivered by the broker. It may be invoked
// concurrently from the broker client's delivery goroutines.
type MessageHandler func(topic string, payload []byte)

// Broker is the publish/subscribe transport used by the MQTT gateway and the node proxy.
// All publishes and subscriptions are at-least-once (QoS 1).
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, filter string, handler MessageHandler) error
	Close()
}
