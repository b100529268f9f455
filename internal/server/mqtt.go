package server

import (
	"context"
	"strings"
	"wolff/internal/ports"

	log "github.com/sirupsen/logrus"
)

const (
	RequestTopicRoot = "posts"
	ReplyTopicRoot   = "responses"
)

// RequestTopic is where a node publishes a frame: posts/<node>/<request-id>.
func RequestTopic(nodeID, requestID string) string {
	return RequestTopicRoot + "/" + nodeID + "/" + requestID
}

// ReplyTopic maps posts/<node>/<request-id> to responses/<node>/<request-id>.
func ReplyTopic(requestTopic string) (string, bool) {
	parts := strings.Split(requestTopic, "/")
	if len(parts) != 3 || parts[0] != RequestTopicRoot || parts[1] == "" || parts[2] == "" {
		return "", false
	}
	parts[0] = ReplyTopicRoot
	return strings.Join(parts, "/"), true
}

// MQTTGateway serves frames published by node proxies. Each reply goes to the request's
// reply topic; an empty payload signals failure.
type MQTTGateway struct {
	broker  ports.Broker
	handler FrameHandler

	ctx    context.Context
	cancel context.CancelFunc
}

func NewMQTTGateway(b ports.Broker, h FrameHandler) *MQTTGateway {
	return &MQTTGateway{broker: b, handler: h}
}

// Start subscribes to every node's request topics. Messages are handled until Stop.
func (g *MQTTGateway) Start(ctx context.Context) error {
	g.ctx, g.cancel = context.WithCancel(context.Background())
	if err := g.broker.Subscribe(ctx, RequestTopicRoot+"/#", g.onRequest); err != nil {
		g.cancel()
		return err
	}
	log.WithField("filter", RequestTopicRoot+"/#").Info("mqtt gateway subscribed")
	return nil
}

func (g *MQTTGateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
}

func (g *MQTTGateway) onRequest(topic string, payload []byte) {
	logger := log.WithField("topic", topic)
	replyTopic, ok := ReplyTopic(topic)
	if !ok {
		logger.Warn("ignoring message on unexpected topic")
		return
	}
	reply, err := g.handler.HandleFrame(g.ctx, payload)
	if err != nil {
		logger.WithError(err).Info("request failed, sending empty reply")
		reply = []byte{}
	}
	if err := g.broker.Publish(g.ctx, replyTopic, reply); err != nil {
		logger.WithError(err).Error("failed to publish reply")
	}
}
