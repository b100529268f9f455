package broker

import (
	"context"
	"fmt"
	"sync"
	"time"
	"wolff/internal/ports"
	"wolff/internal/types"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// QoS is used for every publish and subscription (at least once).
const QoS byte = 1

// Paho implements ports.Broker on an MQTT 3.1.1 connection. Subscriptions are restored
// after a reconnect.
type Paho struct {
	cli mqtt.Client

	mu   sync.Mutex
	subs map[string]ports.MessageHandler
}

type Options struct {
	BrokerURL      string
	ClientID       string
	ConnectTimeout time.Duration
}

// Connect dials the broker and blocks until the session is up or ctx ends.
func Connect(ctx context.Context, o Options) (*Paho, error) {
	if o.ClientID == "" {
		o.ClientID = "wolff-" + uuid.NewString()
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	p := &Paho{subs: map[string]ports.MessageHandler{}}

	opts := mqtt.NewClientOptions().
		AddBroker(o.BrokerURL).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectTimeout(o.ConnectTimeout).
		// replies are correlated by topic, delivery order is irrelevant
		SetOrderMatters(false).
		SetOnConnectHandler(p.resubscribe).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("mqtt connection lost")
		})
	p.cli = mqtt.NewClient(opts)

	if err := wait(ctx, p.cli.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", o.BrokerURL, err)
	}
	log.WithFields(log.Fields{"broker": o.BrokerURL, "clientID": o.ClientID}).Info("mqtt connected")
	return p, nil
}

func (p *Paho) Publish(ctx context.Context, topic string, payload []byte) error {
	return wait(ctx, p.cli.Publish(topic, QoS, false, payload))
}

func (p *Paho) Subscribe(ctx context.Context, filter string, handler ports.MessageHandler) error {
	p.mu.Lock()
	p.subs[filter] = handler
	p.mu.Unlock()
	return wait(ctx, p.cli.Subscribe(filter, QoS, deliver(handler)))
}

func (p *Paho) Close() {
	p.cli.Disconnect(250)
}

func (p *Paho) resubscribe(c mqtt.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for filter, h := range p.subs {
		tok := c.Subscribe(filter, QoS, deliver(h))
		go func(filter string, tok mqtt.Token) {
			if tok.WaitTimeout(10*time.Second) && tok.Error() != nil {
				log.WithError(tok.Error()).WithField("filter", filter).Error("mqtt resubscribe failed")
			}
		}(filter, tok)
	}
}

func deliver(h ports.MessageHandler) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		h(m.Topic(), m.Payload())
	}
}

func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return types.Err(types.ErrTimeout, ctx.Err(), "mqtt")
	}
}
