package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultHost keeps the unauthenticated admin endpoints on the loopback interface unless
// WOLFF_ADMIN_HOST says otherwise.
const DefaultHost = "127.0.0.1"

// Addr is the admin listen address for host and port. An empty host means DefaultHost.
func Addr(host string, port int) string {
	if host == "" {
		host = DefaultHost
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// RunServerInterruptible runs the admin server (/health, /metrics, /clients) in the background
// and immediately returns. Closing stop shuts it down gracefully.
func RunServerInterruptible(host string, port int, reloader ClientReloader) (stop chan<- struct{}, done <-chan error) {
	srv := &http.Server{
		Addr:              Addr(host, port),
		Handler:           NewHandler(reloader).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// one-shot channels for control & completion
	stopCh := make(chan struct{})
	doneCh := make(chan error, 1) // buffered so goroutines can finish without blocking

	go func() {
		log.WithField("addr", srv.Addr).Info("admin listening")
		err := srv.ListenAndServe()
		// http.ErrServerClosed is returned on Shutdown; treat that as clean exit
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			doneCh <- err
			return
		}
		doneCh <- nil
	}()

	go func() {
		<-stopCh
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	return stopCh, doneCh
}
