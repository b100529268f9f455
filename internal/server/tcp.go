package server

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
	"wolff/internal/codec"

	log "github.com/sirupsen/logrus"
)

// FrameHandler turns one request frame into reply bytes.
type FrameHandler interface {
	HandleFrame(ctx context.Context, frame []byte) ([]byte, error)
}

// IdleTimeout closes connections that send nothing for this long.
const IdleTimeout = 5 * time.Minute

// FrameServer reads fixed-size frames and writes one reply per frame on the same
// connection. Any failure closes the connection without a reply; the server keeps
// accepting.
type FrameServer struct {
	streamServer
}

func NewFrameServer(h FrameHandler) *FrameServer {
	s := &FrameServer{}
	s.name = "frame server"
	s.handle = func(ctx context.Context, conn net.Conn) {
		serveFrames(ctx, conn, h.HandleFrame)
	}
	return s
}

// serveFrames is the per-connection loop shared by the frame server and the node proxy.
// While a request is in flight the connection is watched, and the request context is
// canceled as soon as the peer goes away.
func serveFrames(ctx context.Context, conn net.Conn, handle func(ctx context.Context, frame []byte) ([]byte, error)) {
	logger := log.WithField("remote", conn.RemoteAddr().String())
	logger.Debug("connection opened")
	defer logger.Debug("connection closed")

	frame := make([]byte, codec.FrameSize)
	// bytes of the next frame already consumed by the hangup watcher
	have := 0
	for {
		if err := conn.SetReadDeadline(time.Now().Add(IdleTimeout)); err != nil {
			return
		}
		if _, err := io.ReadFull(conn, frame[have:]); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.WithError(err).Debug("read failed")
			}
			return
		}

		reqCtx, cancel := context.WithCancel(ctx)
		w := watchHangup(conn, cancel)
		reply, err := handle(reqCtx, append([]byte(nil), frame...))
		cancel()
		readAhead, hungUp := w.stop()
		if hungUp {
			logger.Debug("peer closed during request")
			return
		}
		if err != nil {
			logger.WithError(err).Info("closing connection after failed request")
			return
		}
		if _, err := conn.Write(reply); err != nil {
			logger.WithError(err).Debug("write failed")
			return
		}
		have = copy(frame, readAhead)
	}
}

// hangupWatch blocks in a one-byte read so that a peer closing its end is noticed while
// the request is still being served.
type hangupWatch struct {
	conn net.Conn
	buf  [1]byte
	n    int
	err  error
	done chan struct{}
}

func watchHangup(conn net.Conn, cancel context.CancelFunc) *hangupWatch {
	w := &hangupWatch{conn: conn, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		w.n, w.err = conn.Read(w.buf[:])
		if w.n == 0 && w.err != nil && !errors.Is(w.err, os.ErrDeadlineExceeded) {
			cancel()
		}
	}()
	return w
}

// stop ends the watch. It returns any byte the peer sent ahead of the reply and whether
// the peer went away.
func (w *hangupWatch) stop() ([]byte, bool) {
	_ = w.conn.SetReadDeadline(time.Now())
	<-w.done
	if w.n > 0 {
		return w.buf[:w.n], false
	}
	return nil, w.err != nil && !errors.Is(w.err, os.ErrDeadlineExceeded)
}
