package registry

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"wolff/internal/types"
)

// Entry describes how one {service, method} pair maps onto the upstream REST API.
// Identifier names the single parameter that ties a request to one onboarded client.
// When IdentifierInEnvelope is set the identifier is the record id carried in the
// request envelope instead of a payload field.
type Entry struct {
	Service              string            `yaml:"service"`
	Method               string            `yaml:"method"`
	URITemplate          string            `yaml:"uri"`
	Verb                 string            `yaml:"verb"`
	Identifier           string            `yaml:"identifier"`
	IdentifierInEnvelope bool              `yaml:"identifier_in_envelope"`
	Special              map[string]string `yaml:"special"`
	Auth                 string            `yaml:"auth"`
}

// Placeholder returns the name of the `:name` token in the template, if any.
func (e Entry) Placeholder() (string, bool) {
	m := placeholderRe.FindStringSubmatch(e.URITemplate)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (e Entry) Validate() error {
	if e.Service == "" || e.Method == "" {
		return fmt.Errorf("service and method are required")
	}
	if e.Identifier == "" {
		return fmt.Errorf("%s/%s: identifier is required", e.Service, e.Method)
	}
	switch e.Verb {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
	default:
		return fmt.Errorf("%s/%s: unsupported verb %q", e.Service, e.Method, e.Verb)
	}
	if e.Auth != types.AuthOAuth1 {
		return fmt.Errorf("%s/%s: unsupported auth scheme %q", e.Service, e.Method, e.Auth)
	}
	if len(placeholderRe.FindAllString(e.URITemplate, -1)) > 1 {
		return fmt.Errorf("%s/%s: at most one placeholder is supported", e.Service, e.Method)
	}
	if _, clash := e.Special[e.Identifier]; clash {
		return fmt.Errorf("%s/%s: special parameters cannot override the identifier", e.Service, e.Method)
	}
	return nil
}

var placeholderRe = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

type key struct{ service, method string }

// Registry is the static operation table. It is built once at startup and shared,
// read-only, by every request.
type Registry struct {
	baseURLs map[string]string
	entries  map[key]Entry
}

func New(baseURLs map[string]string, entries ...Entry) (*Registry, error) {
	r := &Registry{
		baseURLs: make(map[string]string, len(baseURLs)),
		entries:  make(map[key]Entry, len(entries)),
	}
	for svc, base := range baseURLs {
		r.baseURLs[svc] = strings.TrimRight(base, "/")
	}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, ok := r.baseURLs[e.Service]; !ok {
			return nil, fmt.Errorf("%s/%s: no base url for service", e.Service, e.Method)
		}
		k := key{e.Service, e.Method}
		if _, dup := r.entries[k]; dup {
			return nil, fmt.Errorf("%s/%s: duplicate entry", e.Service, e.Method)
		}
		r.entries[k] = e
	}
	return r, nil
}

// Default returns the built-in Etsy v2 table.
func Default() *Registry {
	r, err := New(
		map[string]string{types.ServiceEtsy: "https://openapi.etsy.com/v2"},
		Entry{
			Service:     types.ServiceEtsy,
			Method:      types.MethodCreateListing,
			URITemplate: "listings",
			Verb:        http.MethodPost,
			Identifier:  "shipping_template_id",
			Special:     map[string]string{"taxonomy_id": "1"},
			Auth:        types.AuthOAuth1,
		},
		Entry{
			Service:              types.ServiceEtsy,
			Method:               types.MethodCheckListingStock,
			URITemplate:          "listings/:listing_id",
			Verb:                 http.MethodGet,
			Identifier:           "listing_id",
			IdentifierInEnvelope: true,
			Auth:                 types.AuthOAuth1,
		},
		Entry{
			Service:              types.ServiceEtsy,
			Method:               types.MethodUpdateListing,
			URITemplate:          "listings/:listing_id",
			Verb:                 http.MethodPut,
			Identifier:           "listing_id",
			IdentifierInEnvelope: true,
			Auth:                 types.AuthOAuth1,
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Resolve(service, method string) (Entry, error) {
	e, ok := r.entries[key{service, method}]
	if !ok {
		return Entry{}, types.Err(types.ErrUnknownOperation, nil, "%s/%s", service, method)
	}
	return e, nil
}

// BuildURL returns the absolute URL for an operation. The template placeholder, if any,
// is replaced with substitution, which must come from gateway state (e.g. a listing id
// read from the record store) and never from raw client input.
func (r *Registry) BuildURL(service, method, substitution string) (string, error) {
	e, err := r.Resolve(service, method)
	if err != nil {
		return "", err
	}
	uri := e.URITemplate
	if name, ok := e.Placeholder(); ok {
		if substitution == "" {
			return "", types.Err(types.ErrMissingSubstitution, nil, "%s/%s needs :%s", service, method, name)
		}
		uri = strings.Replace(uri, ":"+name, url.PathEscape(substitution), 1)
	}
	return r.baseURLs[service] + "/" + strings.TrimLeft(uri, "/"), nil
}

// IdentifierValue returns the service identifier carried by req.
func (r *Registry) IdentifierValue(service, method string, req types.DecodedRequest) (string, error) {
	e, err := r.Resolve(service, method)
	if err != nil {
		return "", err
	}
	if e.IdentifierInEnvelope {
		if req.RecordID <= 0 {
			return "", types.Err(types.ErrMissingIdentifier, nil, "%s/%s: no record id in request", service, method)
		}
		return types.FormatValue(req.RecordID), nil
	}
	v, ok := req.Params.String(e.Identifier)
	if !ok || v == "" {
		return "", types.Err(types.ErrMissingIdentifier, nil, "%s/%s: parameter %s", service, method, e.Identifier)
	}
	return v, nil
}

// InjectSpecialParameters returns a copy of params with the entry's constant parameters
// merged in. Constants win over client-supplied values.
func (r *Registry) InjectSpecialParameters(service, method string, params types.Params) (types.Params, error) {
	e, err := r.Resolve(service, method)
	if err != nil {
		return nil, err
	}
	out := params.Clone()
	for k, v := range e.Special {
		out[k] = v
	}
	return out, nil
}

// Entries lists the table, for logging at startup.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}
