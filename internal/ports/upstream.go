package ports

import (
	"context"
	"wolff/internal/types"
)

// Upstream performs a signed HTTP call. A non-2xx status is not an error: it is returned
// in the response for the handler to interpret. Errors are transport failures only.
type Upstream interface {
	Call(ctx context.Context, req types.UpstreamRequest) (types.UpstreamResponse, error)
}
