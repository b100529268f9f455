package server

import (
	"context"
	"io"
	"net"
	"time"
	"wolff/internal/flow"
	"wolff/internal/types"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// UpdateHandler serves one update request.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u types.UpdateRequest) ([]byte, error)
}

const (
	MaxUpdateBytes = 64 << 10
	UpdateTimeout  = 30 * time.Second
)

// UpdateServer reads a single JSON object per connection, replies SUCCESS or FAILURE on
// its own line and closes the connection.
type UpdateServer struct {
	streamServer
}

func NewUpdateServer(h UpdateHandler) *UpdateServer {
	s := &UpdateServer{}
	s.name = "update server"
	s.handle = func(ctx context.Context, conn net.Conn) {
		serveUpdate(ctx, conn, h)
	}
	return s
}

func serveUpdate(ctx context.Context, conn net.Conn, h UpdateHandler) {
	logger := log.WithField("remote", conn.RemoteAddr().String())
	_ = conn.SetDeadline(time.Now().Add(UpdateTimeout))

	result := flow.UpdateFailure
	defer func() {
		if _, err := io.WriteString(conn, result+"\n"); err != nil {
			logger.WithError(err).Debug("write failed")
		}
	}()

	dec := json.NewDecoder(io.LimitReader(conn, MaxUpdateBytes))
	dec.UseNumber()
	var u types.UpdateRequest
	if err := dec.Decode(&u); err != nil {
		logger.WithError(err).Info("invalid update request")
		return
	}
	reply, err := h.HandleUpdate(ctx, u)
	if err != nil {
		logger.WithError(err).Info("update failed")
		return
	}
	result = string(reply)
}
