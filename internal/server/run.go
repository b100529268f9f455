package server

import (
	"context"
	"errors"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// ShutdownTimeout bounds how long in-flight connections get to finish on stop.
const ShutdownTimeout = 15 * time.Second

// Server is a stream server driven by RunServerInterruptible.
type Server interface {
	Serve(ln net.Listener) error
	Shutdown(ctx context.Context) error
}

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server closed")

// RunServerInterruptible listens on addr and serves in the background. Closing or sending on
// stop shuts the server down gracefully; done yields the Serve error (nil on a clean stop).
func RunServerInterruptible(name, addr string, srv Server) (stop chan<- struct{}, done <-chan error, err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	// one-shot channels for control & completion
	stopCh := make(chan struct{})
	doneCh := make(chan error, 1)

	go func() {
		log.WithField("addr", ln.Addr().String()).Infof("%s listening", name)
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, ErrServerClosed) {
			doneCh <- err
			return
		}
		doneCh <- nil
	}()

	go func() {
		<-stopCh
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warnf("%s shutdown", name)
		}
	}()
	return stopCh, doneCh, nil
}
