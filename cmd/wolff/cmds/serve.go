package cmds

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
	"wolff/internal/api"
	"wolff/internal/broker"
	"wolff/internal/config"
	"wolff/internal/server"

	log "github.com/sirupsen/logrus"
)

var errUsage = errors.New("usage")

// service is one background server: closing stop shuts it down and done yields its result.
type service struct {
	name string
	stop chan<- struct{}
	done <-chan error
}

// waitServices blocks until ctx ends or any service exits, then stops all of them and
// returns the first failure.
func waitServices(ctx context.Context, services []service) error {
	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(services))
	for _, s := range services {
		go func(s service) { results <- result{s.name, <-s.done} }(s)
	}

	var first error
	remaining := len(services)
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case r := <-results:
		remaining--
		if r.err != nil {
			first = fmt.Errorf("%s: %w", r.name, r.err)
		} else {
			log.Warnf("%s stopped", r.name)
		}
	}
	for _, s := range services {
		close(s.stop)
	}
	for ; remaining > 0; remaining-- {
		if r := <-results; r.err != nil && first == nil {
			first = fmt.Errorf("%s: %w", r.name, r.err)
		}
	}
	return first
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(fs.Output(), "unexpected arguments: %v\n", fs.Args())
		return errUsage
	}
	return nil
}

func runGateway(cfg config.Config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.Gateway.Addr, "addr", cfg.Gateway.Addr, "frame listen address")
	fs.StringVar(&cfg.Gateway.UpdateAddr, "update-addr", cfg.Gateway.UpdateAddr, "update listen address")
	fs.StringVar(&cfg.Admin.Host, "admin-host", cfg.Admin.Host, "admin HTTP bind host")
	fs.IntVar(&cfg.Admin.Port, "admin-port", cfg.Admin.Port, "admin HTTP port (0 disables)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var services []service
	stop, done, err := server.RunServerInterruptible("frame server", cfg.Gateway.Addr, server.NewFrameServer(st.gateway))
	if err != nil {
		return err
	}
	services = append(services, service{"frame server", stop, done})

	more, err := commonServices(cfg, st)
	if err != nil {
		stopAll(services)
		return err
	}
	return waitServices(ctx, append(services, more...))
}

func runMQTTGateway(cfg config.Config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("mqtt-gateway", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.MQTT.Broker, "broker", cfg.MQTT.Broker, "MQTT broker URL")
	fs.StringVar(&cfg.Gateway.UpdateAddr, "update-addr", cfg.Gateway.UpdateAddr, "update listen address")
	fs.StringVar(&cfg.Admin.Host, "admin-host", cfg.Admin.Host, "admin HTTP bind host")
	fs.IntVar(&cfg.Admin.Port, "admin-port", cfg.Admin.Port, "admin HTTP port (0 disables)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	b, err := connectBroker(ctx, cfg.MQTT)
	if err != nil {
		return err
	}
	defer b.Close()

	gw := server.NewMQTTGateway(b, st.gateway)
	if err := gw.Start(ctx); err != nil {
		return err
	}
	defer gw.Stop()

	services, err := commonServices(cfg, st)
	if err != nil {
		return err
	}
	return waitServices(ctx, services)
}

func runNodeProxy(cfg config.Config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("node-proxy", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.Proxy.Addr, "addr", cfg.Proxy.Addr, "local listen address")
	fs.StringVar(&cfg.MQTT.Broker, "broker", cfg.MQTT.Broker, "MQTT broker URL")
	fs.StringVar(&cfg.MQTT.NodeID, "node", cfg.MQTT.NodeID, "node id used in topics")
	fs.DurationVar(&cfg.Proxy.Timeout, "timeout", cfg.Proxy.Timeout, "reply timeout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if cfg.Proxy.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	ctx, cancel := signalContext()
	defer cancel()

	b, err := connectBroker(ctx, cfg.MQTT)
	if err != nil {
		return err
	}
	defer b.Close()

	proxy := server.NewNodeProxy(b, cfg.MQTT.NodeID, cfg.Proxy.Timeout)
	if err := proxy.Start(ctx); err != nil {
		return err
	}
	stop, done, err := server.RunServerInterruptible("node proxy", cfg.Proxy.Addr, proxy)
	if err != nil {
		return err
	}
	return waitServices(ctx, []service{{"node proxy", stop, done}})
}

// commonServices starts the update server and, unless disabled, the admin endpoint.
func commonServices(cfg config.Config, st *stack) ([]service, error) {
	var services []service
	stop, done, err := server.RunServerInterruptible("update server", cfg.Gateway.UpdateAddr, server.NewUpdateServer(st.gateway))
	if err != nil {
		return nil, err
	}
	services = append(services, service{"update server", stop, done})

	if cfg.Admin.Port > 0 {
		stop, done := api.RunServerInterruptible(cfg.Admin.Host, cfg.Admin.Port, st.resolver)
		services = append(services, service{"admin", stop, done})
	}
	return services, nil
}

func stopAll(services []service) {
	for _, s := range services {
		close(s.stop)
		<-s.done
	}
}

func connectBroker(ctx context.Context, cfg config.MQTTConfig) (*broker.Paho, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return broker.Connect(connectCtx, broker.Options{
		BrokerURL: cfg.Broker,
		ClientID:  cfg.ClientID,
	})
}
