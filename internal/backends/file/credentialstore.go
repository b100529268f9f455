package file

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"wolff/internal/types"

	log "github.com/sirupsen/logrus"
)

// CredentialStore keeps one directory per client:
//
//	<root>/<client_id>/<service>/oauth1      key<TAB>value lines
//	<root>/<client_id>/<service>/<resource>  one value per line
//
// Every write goes to a temporary file in the target directory followed by a rename (or a
// hard link for create-only puts), so readers see either the old or the new content.
type CredentialStore struct {
	root string
}

func NewCredentialStore(root string) (*CredentialStore, error) {
	if root == "" {
		return nil, fmt.Errorf("credential root directory is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, types.Err(types.ErrStorage, err, "create %s", root)
	}
	return &CredentialStore{root: root}, nil
}

func (s *CredentialStore) Close() error { return nil }

func (s *CredentialStore) Get(_ context.Context, clientID, service string) (types.CredentialBundle, error) {
	p, err := s.path(clientID, service, types.ResourceOAuth1)
	if err != nil {
		return types.CredentialBundle{}, err
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.CredentialBundle{}, types.Err(types.ErrNoSuchCredential, nil, "%s/%s", clientID, service)
		}
		return types.CredentialBundle{}, types.Err(types.ErrStorage, err, "")
	}
	fields, err := parseBundle(raw)
	if err != nil {
		return types.CredentialBundle{}, types.Err(types.ErrStorage, err, "%s/%s", clientID, service)
	}
	b, err := types.BundleFromFields(fields)
	if err != nil {
		return types.CredentialBundle{}, types.Err(types.ErrStorage, err, "%s/%s", clientID, service)
	}
	return b, nil
}

func (s *CredentialStore) Put(_ context.Context, clientID, service string, bundle types.CredentialBundle, overwrite bool) error {
	if err := bundle.Validate(); err != nil {
		return err
	}
	p, err := s.path(clientID, service, types.ResourceOAuth1)
	if err != nil {
		return err
	}
	return writeAtomic(p, formatBundle(bundle), overwrite)
}

func (s *CredentialStore) ListClients(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, types.Err(types.ErrStorage, err, "")
	}
	clients := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			clients = append(clients, e.Name())
		}
	}
	sort.Strings(clients)
	return clients, nil
}

func (s *CredentialStore) GetResource(_ context.Context, clientID, service, resource string) ([]string, error) {
	p, err := s.path(clientID, service, resource)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, types.Err(types.ErrNotFound, nil, "resource %s/%s/%s", clientID, service, resource)
		}
		return nil, types.Err(types.ErrStorage, err, "")
	}
	var values []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		if v := strings.TrimSpace(sc.Text()); v != "" {
			values = append(values, v)
		}
	}
	return values, sc.Err()
}

func (s *CredentialStore) PutResource(_ context.Context, clientID, service, resource string, values []string) error {
	if resource == types.ResourceOAuth1 {
		return types.Err(types.ErrInvalidParameter, nil, "resource name %q is reserved", resource)
	}
	p, err := s.path(clientID, service, resource)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, v := range values {
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
	return writeAtomic(p, buf.Bytes(), true)
}

func (s *CredentialStore) path(clientID, service, resource string) (string, error) {
	for _, seg := range []string{clientID, service, resource} {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsAny(seg, `/\`) {
			return "", types.Err(types.ErrInvalidParameter, nil, "invalid path segment %q", seg)
		}
	}
	return filepath.Join(s.root, clientID, service, resource), nil
}

func writeAtomic(path string, content []byte, overwrite bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return types.Err(types.ErrStorage, err, "")
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return types.Err(types.ErrAlreadyExists, nil, "%s", path)
		}
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return types.Err(types.ErrStorage, err, "")
	}
	tmpName := tmp.Name()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.WithError(err).Warn("failed to remove temporary credential file")
		}
	}()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return types.Err(types.ErrStorage, err, "")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return types.Err(types.ErrStorage, err, "")
	}
	if err := tmp.Close(); err != nil {
		return types.Err(types.ErrStorage, err, "")
	}
	if overwrite {
		if err := os.Rename(tmpName, path); err != nil {
			return types.Err(types.ErrStorage, err, "")
		}
		return nil
	}
	// link(2) fails if path exists, which makes create-only puts race free.
	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return types.Err(types.ErrAlreadyExists, nil, "%s", path)
		}
		return types.Err(types.ErrStorage, err, "")
	}
	return nil
}

func formatBundle(b types.CredentialBundle) []byte {
	fields := b.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s\t%s\n", k, fields[k])
	}
	return buf.Bytes()
}

func parseBundle(raw []byte) (map[string]string, error) {
	out := make(map[string]string, 4)
	sc := bufio.NewScanner(bytes.NewReader(raw))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		k, v, ok := strings.Cut(text, "\t")
		if !ok {
			return nil, fmt.Errorf("line %d: expected key<TAB>value", line)
		}
		if _, dup := out[k]; dup {
			return nil, fmt.Errorf("line %d: duplicate key %q", line, k)
		}
		out[k] = v
	}
	return out, sc.Err()
}
