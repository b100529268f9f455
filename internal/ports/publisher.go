package ports

import "context"

// Publisher delivers a serialized event (e.g. a sale) to the topic named by arn.
// Delivery is best-effort from the caller's point of view.
type Publisher interface {
	PublishRaw(ctx context.Context, arn string, payload []byte) error
}
