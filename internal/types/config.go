package types

import (
	"fmt"
	"strings"
)

// ClientConfig is the onboarding document for one client on one service. It is read from
// YAML by `wolff client put` and written to the credential store.
// ClientID is optional; when empty the next free `client_<n>` id is assigned.
// Resources maps a service identifier name (e.g. shipping_template_id) to the values the
// client owns; the resolver scans them to find which client issued a frame.
type ClientConfig struct {
	ClientID  string              `json:"client_id,omitempty" yaml:"client_id"`
	Service   string              `json:"service" yaml:"service"`
	OAuth1    CredentialBundle    `json:"oauth1" yaml:"oauth1"`
	Resources map[string][]string `json:"resources,omitempty" yaml:"resources"`
}

const (
	ClientIDPrefix = "client_"

	// ResourceOAuth1 is the reserved resource name under which the credential bundle lives.
	ResourceOAuth1 = AuthOAuth1
)

func (c ClientConfig) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("service is required")
	}
	if c.ClientID != "" && !strings.HasPrefix(c.ClientID, ClientIDPrefix) {
		return fmt.Errorf("client_id must start with %q", ClientIDPrefix)
	}
	if err := c.OAuth1.Validate(); err != nil {
		return fmt.Errorf("oauth1: %w", err)
	}
	for name, values := range c.Resources {
		if name == "" || strings.ContainsAny(name, "/\\#") {
			return fmt.Errorf("invalid resource name %q", name)
		}
		if name == ResourceOAuth1 {
			return fmt.Errorf("resource name %q is reserved", name)
		}
		for _, v := range values {
			if v == "" || strings.ContainsAny(v, "\n\r") {
				return fmt.Errorf("invalid value %q for resource %s", v, name)
			}
		}
	}
	return nil
}
