package flow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
	"wolff/internal/codec"
	"wolff/internal/ports"
	"wolff/internal/registry"
	"wolff/internal/types"

	log "github.com/sirupsen/logrus"
)

// OwnerCacheTTL bounds how long a listing→client lookup is served from memory.
const OwnerCacheTTL = 5 * time.Minute

// Resolver finds the onboarded client that issued a request. It never falls back to a
// default client.
type Resolver struct {
	registry *registry.Registry
	creds    ports.CredentialStore
	records  ports.RecordStore

	mu      sync.RWMutex
	clients map[string]types.ClientRecord
	order   []string

	// serializes id assignment in RegisterClient
	regMu sync.Mutex

	owners *TTL[string, string]
}

func NewResolver(reg *registry.Registry, creds ports.CredentialStore, records ports.RecordStore) *Resolver {
	return &Resolver{
		registry: reg,
		creds:    creds,
		records:  records,
		clients:  map[string]types.ClientRecord{},
		owners:   NewTTL[string, string](),
	}
}

// Reload replaces the client snapshot with what the credential store holds now. It loads,
// for every client, each payload identifier the registry declares.
func (r *Resolver) Reload(ctx context.Context) (int, error) {
	ids, err := r.creds.ListClients(ctx)
	if err != nil {
		return 0, err
	}
	idents := r.payloadIdentifiers()
	clients := make(map[string]types.ClientRecord, len(ids))
	for _, id := range ids {
		rec := types.ClientRecord{ID: id, Resources: map[string][]string{}}
		for _, ident := range idents {
			values, err := r.creds.GetResource(ctx, id, ident.service, ident.name)
			if errors.Is(err, types.ErrNotFound) {
				continue
			}
			if err != nil {
				return 0, err
			}
			rec.Resources[types.ResourceKey(ident.service, ident.name)] = values
		}
		clients[id] = rec
	}
	order := sortedClientIDs(clients)

	r.mu.Lock()
	r.clients = clients
	r.order = order
	r.mu.Unlock()
	r.owners.Purge()

	log.WithField("clients", len(clients)).Info("client snapshot loaded")
	return len(clients), nil
}

// FindClientBy returns the client owning value for the given service identifier.
// Listing ids are resolved through the record store; every other identifier is matched
// against the resources in the client snapshot.
func (r *Resolver) FindClientBy(ctx context.Context, service, identifier, value string) (types.ClientRecord, error) {
	if value == "" {
		return types.ClientRecord{}, types.Err(types.ErrMissingIdentifier, nil, "%s/%s", service, identifier)
	}
	if identifier == codec.ParamListingID {
		return r.findByListing(ctx, value)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		c := r.clients[id]
		if c.Owns(service, identifier, value) {
			return c, nil
		}
	}
	return types.ClientRecord{}, types.Err(types.ErrClientNotFound, nil, "no client owns %s=%s on %s", identifier, value, service)
}

func (r *Resolver) findByListing(ctx context.Context, listingID string) (types.ClientRecord, error) {
	if id, ok := r.owners.Get(listingID); ok {
		return r.client(id), nil
	}
	if _, err := r.records.RecordIDForListing(ctx, listingID); err != nil {
		return types.ClientRecord{}, notFoundAsClientErr(err, listingID)
	}
	id, err := r.records.ClientForListing(ctx, listingID)
	if err != nil {
		return types.ClientRecord{}, notFoundAsClientErr(err, listingID)
	}
	r.owners.Set(listingID, id, OwnerCacheTTL)
	return r.client(id), nil
}

func notFoundAsClientErr(err error, listingID string) error {
	if errors.Is(err, types.ErrNotFound) {
		return types.Err(types.ErrClientNotFound, err, "listing %s", listingID)
	}
	return err
}

// client returns the snapshot record for id, or a bare record when the client was
// onboarded after the last reload.
func (r *Resolver) client(id string) types.ClientRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.clients[id]; ok {
		return c
	}
	return types.ClientRecord{ID: id, Resources: map[string][]string{}}
}

// Clients returns the snapshot ordered by client number.
func (r *Resolver) Clients() []types.ClientRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ClientRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.clients[id])
	}
	return out
}

// RegisterClient onboards a client: it assigns the next `client_<n>` id unless cfg names
// one, stores the credential bundle (never overwriting) and the resources, and adds the
// client to the snapshot.
func (r *Resolver) RegisterClient(ctx context.Context, cfg types.ClientConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", types.Err(types.ErrInvalidParameter, err, "")
	}
	r.regMu.Lock()
	defer r.regMu.Unlock()

	id := cfg.ClientID
	if id == "" {
		existing, err := r.creds.ListClients(ctx)
		if err != nil {
			return "", err
		}
		id = types.ClientIDFromNumber(nextClientNumber(existing))
	}
	if err := r.creds.Put(ctx, id, cfg.Service, cfg.OAuth1, false); err != nil {
		return "", err
	}

	rec := types.ClientRecord{ID: id, Resources: map[string][]string{}}
	names := make([]string, 0, len(cfg.Resources))
	for name := range cfg.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		values := cfg.Resources[name]
		if err := r.creds.PutResource(ctx, id, cfg.Service, name, values); err != nil {
			return "", err
		}
		rec.Resources[types.ResourceKey(cfg.Service, name)] = values
	}

	r.mu.Lock()
	if prev, ok := r.clients[id]; ok {
		for k, v := range prev.Resources {
			if _, set := rec.Resources[k]; !set {
				rec.Resources[k] = v
			}
		}
	}
	r.clients[id] = rec
	r.order = sortedClientIDs(r.clients)
	r.mu.Unlock()

	log.WithFields(log.Fields{"client": id, "service": cfg.Service}).Info("client registered")
	return id, nil
}

// nextClientNumber is one more than the highest `client_<n>` id, starting at 1.
func nextClientNumber(ids []string) int {
	highest := 0
	for _, id := range ids {
		if n, ok := types.ClientNumber(id); ok && n > highest {
			highest = n
		}
	}
	return highest + 1
}

type identifier struct{ service, name string }

func (r *Resolver) payloadIdentifiers() []identifier {
	seen := map[identifier]struct{}{}
	var out []identifier
	for _, e := range r.registry.Entries() {
		if e.IdentifierInEnvelope || e.Identifier == codec.ParamListingID {
			continue
		}
		k := identifier{e.Service, e.Identifier}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].service != out[j].service {
			return out[i].service < out[j].service
		}
		return out[i].name < out[j].name
	})
	return out
}

// sortedClientIDs orders numbered clients numerically, then any others lexically.
func sortedClientIDs(clients map[string]types.ClientRecord) []string {
	ids := make([]string, 0, len(clients))
	for id := range clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, oki := types.ClientNumber(ids[i])
		nj, okj := types.ClientNumber(ids[j])
		switch {
		case oki && okj:
			return ni < nj
		case oki != okj:
			return oki
		default:
			return ids[i] < ids[j]
		}
	})
	return ids
}
