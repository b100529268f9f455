package cmds

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"wolff/internal/backends"
	"wolff/internal/config"
	"wolff/internal/flow"
	"wolff/internal/ports"
	"wolff/internal/types"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"
)

func runClient(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}
	switch args[0] {
	case "put":
		return runClientPut(cfg, args[1:], stdout, stderr)
	case "get":
		return runClientGet(cfg, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown client command: %s\n", args[0])
		return errUsage
	}
}

// readClientConfig parses an onboarding document.
func readClientConfig(path string) (types.ClientConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.ClientConfig{}, err
	}
	var cc types.ClientConfig
	if err := yaml.Unmarshal(raw, &cc); err != nil {
		return types.ClientConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cc, nil
}

func runClientPut(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("client put", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: wolff client put <file.yml>")
		return errUsage
	}
	cc, err := readClientConfig(fs.Arg(0))
	if err != nil {
		return err
	}

	ctx := context.Background()
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	creds, err := backends.CredentialBackendFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCredentials(creds)
	// onboarding touches credentials only
	id, err := flow.NewResolver(reg, creds, nil).RegisterClient(ctx, cc)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, id)
	return nil
}

func runClientGet(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("client get", flag.ContinueOnError)
	fs.SetOutput(stderr)
	reveal := fs.Bool("reveal", false, "print secrets instead of masking them")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "usage: wolff client get [-reveal] <client_id> <service>")
		return errUsage
	}
	clientID, service := fs.Arg(0), fs.Arg(1)

	ctx := context.Background()
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	creds, err := backends.CredentialBackendFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCredentials(creds)
	bundle, err := creds.Get(ctx, clientID, service)
	if err != nil {
		return err
	}
	if !*reveal {
		bundle.ClientSecret = mask(bundle.ClientSecret)
		bundle.ResourceOwnerSecret = mask(bundle.ResourceOwnerSecret)
	}

	out := types.ClientConfig{ClientID: clientID, Service: service, OAuth1: bundle}
	for _, e := range reg.Entries() {
		if e.Service != service || e.IdentifierInEnvelope {
			continue
		}
		if _, ok := out.Resources[e.Identifier]; ok {
			continue
		}
		values, err := creds.GetResource(ctx, clientID, service, e.Identifier)
		if errors.Is(err, types.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if out.Resources == nil {
			out.Resources = map[string][]string{}
		}
		out.Resources[e.Identifier] = values
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}

func closeCredentials(creds ports.CredentialStore) {
	if err := creds.Close(); err != nil {
		log.WithError(err).Warn("closing credential store")
	}
}
