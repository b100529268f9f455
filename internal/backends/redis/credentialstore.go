package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"wolff/internal/types"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	credKeyNameTemplate     = "_wolff_cred_%s_%s"
	resourceKeyNameTemplate = "_wolff_res_%s_%s_%s"
	clientsKeyName          = "_wolff_clients"
)

// CredentialStore keeps each bundle as one JSON string and each resource as a set.
// Every client that was ever written is tracked in a set so ListClients needs no KEYS scan.
type CredentialStore struct {
	cli *redis.Client
}

func NewCredentialStore(cli *redis.Client) *CredentialStore {
	return &CredentialStore{cli: cli}
}

// Close closes the underlying redis client.
func (s *CredentialStore) Close() error {
	return s.cli.Close()
}

func (s *CredentialStore) Get(ctx context.Context, clientID, service string) (types.CredentialBundle, error) {
	out := s.cli.Get(ctx, credKey(clientID, service))
	if err := out.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return types.CredentialBundle{}, types.Err(types.ErrNoSuchCredential, nil, "%s/%s", clientID, service)
		}
		return types.CredentialBundle{}, types.Err(types.ErrStorage, err, "")
	}
	var b types.CredentialBundle
	if err := json.Unmarshal([]byte(out.Val()), &b); err != nil {
		return types.CredentialBundle{}, types.Err(types.ErrStorage, err, "%s/%s", clientID, service)
	}
	if err := b.Validate(); err != nil {
		return types.CredentialBundle{}, types.Err(types.ErrStorage, err, "%s/%s", clientID, service)
	}
	return b, nil
}

func (s *CredentialStore) Put(ctx context.Context, clientID, service string, bundle types.CredentialBundle, overwrite bool) error {
	if err := bundle.Validate(); err != nil {
		return err
	}
	out, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	key := credKey(clientID, service)
	if overwrite {
		if err := s.cli.Set(ctx, key, string(out), 0).Err(); err != nil {
			return types.Err(types.ErrStorage, err, "")
		}
	} else {
		ok, err := s.cli.SetNX(ctx, key, string(out), 0).Result()
		if err != nil {
			return types.Err(types.ErrStorage, err, "")
		}
		if !ok {
			return types.Err(types.ErrAlreadyExists, nil, "%s/%s", clientID, service)
		}
	}
	if err := s.cli.SAdd(ctx, clientsKeyName, clientID).Err(); err != nil {
		return types.Err(types.ErrStorage, err, "")
	}
	return nil
}

func (s *CredentialStore) ListClients(ctx context.Context) ([]string, error) {
	clients, err := s.cli.SMembers(ctx, clientsKeyName).Result()
	if err != nil {
		return nil, types.Err(types.ErrStorage, err, "")
	}
	sort.Strings(clients)
	return clients, nil
}

func (s *CredentialStore) GetResource(ctx context.Context, clientID, service, resource string) ([]string, error) {
	key := resourceKey(clientID, service, resource)
	n, err := s.cli.Exists(ctx, key).Result()
	if err != nil {
		return nil, types.Err(types.ErrStorage, err, "")
	}
	if n == 0 {
		return nil, types.Err(types.ErrNotFound, nil, "resource %s/%s/%s", clientID, service, resource)
	}
	values, err := s.cli.SMembers(ctx, key).Result()
	if err != nil {
		return nil, types.Err(types.ErrStorage, err, "")
	}
	sort.Strings(values)
	return values, nil
}

func (s *CredentialStore) PutResource(ctx context.Context, clientID, service, resource string, values []string) error {
	if resource == types.ResourceOAuth1 {
		return types.Err(types.ErrInvalidParameter, nil, "resource name %q is reserved", resource)
	}
	key := resourceKey(clientID, service, resource)
	members := make([]any, 0, len(values))
	for _, v := range values {
		members = append(members, v)
	}
	_, err := s.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.SAdd(ctx, key, members...)
		}
		pipe.SAdd(ctx, clientsKeyName, clientID)
		return nil
	})
	if err != nil {
		return types.Err(types.ErrStorage, err, "")
	}
	log.WithFields(log.Fields{"client": clientID, "service": service, "resource": resource}).
		Debug("stored client resource")
	return nil
}

func credKey(clientID, service string) string {
	return fmt.Sprintf(credKeyNameTemplate, clientID, service)
}

func resourceKey(clientID, service, resource string) string {
	return fmt.Sprintf(resourceKeyNameTemplate, clientID, service, resource)
}
