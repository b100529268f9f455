package server

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"
	"wolff/internal/metrics"
	"wolff/internal/ports"
	"wolff/internal/types"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// NodeProxy accepts frames from local devices over TCP and relays them to the MQTT gateway.
// Each request waits on its own correlation id, so replies may arrive in any order.
type NodeProxy struct {
	streamServer

	broker  ports.Broker
	nodeID  string
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan []byte
}

func NewNodeProxy(b ports.Broker, nodeID string, timeout time.Duration) *NodeProxy {
	p := &NodeProxy{
		broker:  b,
		nodeID:  nodeID,
		timeout: timeout,
		pending: map[string]chan []byte{},
	}
	p.name = "node proxy"
	// serveFrames cancels a request when its connection closes, which drops its waiter
	p.handle = func(ctx context.Context, conn net.Conn) {
		serveFrames(ctx, conn, p.Request)
	}
	return p
}

// Start subscribes to this node's reply topics. It must be called before Serve.
func (p *NodeProxy) Start(ctx context.Context) error {
	filter := ReplyTopicRoot + "/" + p.nodeID + "/+"
	if err := p.broker.Subscribe(ctx, filter, p.onReply); err != nil {
		return err
	}
	log.WithField("filter", filter).Info("node proxy subscribed")
	return nil
}

// Request publishes frame and waits for the matching reply. An empty reply, a timeout or
// ctx ending fails the request.
func (p *NodeProxy) Request(ctx context.Context, frame []byte) ([]byte, error) {
	id := uuid.NewString()
	ch := make(chan []byte, 1)

	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	metrics.ProxyPendingRequests.Inc()
	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		metrics.ProxyPendingRequests.Dec()
	}()

	logger := log.WithField("requestID", id)
	if err := p.broker.Publish(ctx, RequestTopic(p.nodeID, id), frame); err != nil {
		return nil, err
	}
	logger.Debug("request published")

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case reply := <-ch:
		if len(reply) == 0 {
			return nil, types.Err(types.ErrUpstream, nil, "gateway reported failure for %s", id)
		}
		return reply, nil
	case <-timer.C:
		metrics.ProxyTimeoutsTotal.Inc()
		return nil, types.Err(types.ErrTimeout, nil, "no reply for %s after %v", id, p.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pending reports how many requests are waiting for a reply.
func (p *NodeProxy) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *NodeProxy) onReply(topic string, payload []byte) {
	id := topic[strings.LastIndex(topic, "/")+1:]
	p.mu.Lock()
	ch, ok := p.pending[id]
	delete(p.pending, id)
	p.mu.Unlock()
	if !ok {
		log.WithField("topic", topic).Debug("dropping reply with no waiter")
		return
	}
	ch <- payload
}
