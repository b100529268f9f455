package broker

import (
	"context"
	"strings"
	"sync"
	"wolff/internal/ports"
)

// Memory is an in-process broker with MQTT topic filter semantics (`+` and `#`).
// Messages are delivered asynchronously, one goroutine per delivery, so handlers see
// no ordering guarantee, as with a real broker at QoS 1.
type Memory struct {
	mu     sync.RWMutex
	subs   []memorySub
	closed bool
	wg     sync.WaitGroup
}

type memorySub struct {
	filter  string
	handler ports.MessageHandler
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, topic string, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil
	}
	for _, s := range m.subs {
		if TopicMatches(s.filter, topic) {
			msg := append([]byte(nil), payload...)
			m.wg.Add(1)
			go func(h ports.MessageHandler) {
				defer m.wg.Done()
				h(topic, msg)
			}(s.handler)
		}
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, filter string, handler ports.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, memorySub{filter: filter, handler: handler})
	return nil
}

func (m *Memory) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wg.Wait()
}

// TopicMatches reports whether topic matches an MQTT subscription filter.
func TopicMatches(filter, topic string) bool {
	fs := strings.Split(filter, "/")
	ts := strings.Split(topic, "/")
	for i, f := range fs {
		if f == "#" {
			return true
		}
		if i >= len(ts) {
			return false
		}
		if f != "+" && f != ts[i] {
			return false
		}
	}
	return len(fs) == len(ts)
}
