package cmds

import (
	"context"
	"wolff/internal/backends"
	"wolff/internal/config"
	"wolff/internal/flow"
	"wolff/internal/ports"
	"wolff/internal/pub"
	"wolff/internal/registry"
	"wolff/internal/upstream"

	log "github.com/sirupsen/logrus"
)

// stack is everything a gateway process shares between its transports.
type stack struct {
	registry *registry.Registry
	creds    ports.CredentialStore
	records  ports.RecordStore
	resolver *flow.Resolver
	gateway  *flow.Gateway
}

func loadRegistry(cfg config.Config) (*registry.Registry, error) {
	if cfg.Gateway.RegistryFile == "" {
		return registry.Default(), nil
	}
	reg, err := registry.LoadFile(cfg.Gateway.RegistryFile)
	if err != nil {
		return nil, err
	}
	log.WithField("file", cfg.Gateway.RegistryFile).Info("registry loaded")
	return reg, nil
}

func newPublisher(ctx context.Context, cfg config.Config) (ports.Publisher, error) {
	if cfg.Gateway.SalesSNSArn == "" {
		return pub.Noop{}, nil
	}
	return pub.NewSNSFromConfig(ctx, cfg.SNSEndpoint)
}

// openStack builds the stores, the resolver (with its client snapshot loaded) and the
// gateway. On error everything opened so far is closed again.
func openStack(ctx context.Context, cfg config.Config) (st *stack, err error) {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}
	st = &stack{registry: reg}
	defer func() {
		if err != nil {
			st.Close()
			st = nil
		}
	}()

	if st.creds, err = backends.CredentialBackendFromConfig(ctx, cfg); err != nil {
		return st, err
	}
	if st.records, err = backends.RecordBackendFromConfig(ctx, cfg); err != nil {
		return st, err
	}
	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		return st, err
	}

	st.resolver = flow.NewResolver(reg, st.creds, st.records)
	if _, err = st.resolver.Reload(ctx); err != nil {
		return st, err
	}
	st.gateway = flow.NewGateway(flow.Deps{
		Registry:    reg,
		Resolver:    st.resolver,
		Credentials: st.creds,
		Records:     st.records,
		Upstream:    upstream.NewOAuth1Client(cfg.Gateway.UpstreamTimeout, nil),
		Publisher:   publisher,
		SalesArn:    cfg.Gateway.SalesSNSArn,
	})
	return st, nil
}

// Close releases whichever stores were opened.
func (s *stack) Close() {
	if s.records != nil {
		if err := s.records.Close(); err != nil {
			log.WithError(err).Warn("closing record store")
		}
	}
	if s.creds != nil {
		if err := s.creds.Close(); err != nil {
			log.WithError(err).Warn("closing credential store")
		}
	}
}
