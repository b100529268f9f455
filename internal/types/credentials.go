package types

import "fmt"

const (
	AuthOAuth1 = "oauth1"

	FieldClientKey           = "client_key"
	FieldClientSecret        = "client_secret"
	FieldResourceOwnerKey    = "resource_owner_key"
	FieldResourceOwnerSecret = "resource_owner_secret"
)

// CredentialBundle holds the four OAuth1 secrets used to sign upstream calls on behalf
// of one client for one service. Values are opaque strings and are never logged.
type CredentialBundle struct {
	ClientKey           string `json:"client_key" yaml:"client_key" dynamodbav:"client_key"`
	ClientSecret        string `json:"client_secret" yaml:"client_secret" dynamodbav:"client_secret"`
	ResourceOwnerKey    string `json:"resource_owner_key" yaml:"resource_owner_key" dynamodbav:"resource_owner_key"`
	ResourceOwnerSecret string `json:"resource_owner_secret" yaml:"resource_owner_secret" dynamodbav:"resource_owner_secret"`
}

func (b CredentialBundle) Validate() error {
	if b.ClientKey == "" {
		return fmt.Errorf("%s is required", FieldClientKey)
	}
	if b.ClientSecret == "" {
		return fmt.Errorf("%s is required", FieldClientSecret)
	}
	if b.ResourceOwnerKey == "" {
		return fmt.Errorf("%s is required", FieldResourceOwnerKey)
	}
	if b.ResourceOwnerSecret == "" {
		return fmt.Errorf("%s is required", FieldResourceOwnerSecret)
	}
	return nil
}

// Fields returns the bundle as field name to value.
func (b CredentialBundle) Fields() map[string]string {
	return map[string]string{
		FieldClientKey:           b.ClientKey,
		FieldClientSecret:        b.ClientSecret,
		FieldResourceOwnerKey:    b.ResourceOwnerKey,
		FieldResourceOwnerSecret: b.ResourceOwnerSecret,
	}
}

// BundleFromFields is the inverse of Fields. Unknown fields are rejected.
func BundleFromFields(m map[string]string) (CredentialBundle, error) {
	var b CredentialBundle
	for k, v := range m {
		switch k {
		case FieldClientKey:
			b.ClientKey = v
		case FieldClientSecret:
			b.ClientSecret = v
		case FieldResourceOwnerKey:
			b.ResourceOwnerKey = v
		case FieldResourceOwnerSecret:
			b.ResourceOwnerSecret = v
		default:
			return CredentialBundle{}, fmt.Errorf("unknown credential field %q", k)
		}
	}
	return b, b.Validate()
}
