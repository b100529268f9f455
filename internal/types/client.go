package types

import (
	"slices"
	"strconv"
	"strings"
)

// ClientRecord is an onboarded client. Its identity never changes once created;
// resources are keyed by "<service>/<resource>".
type ClientRecord struct {
	ID        string
	Resources map[string][]string
}

func ResourceKey(service, resource string) string {
	return service + "/" + resource
}

// Owns reports whether the client registered value under service/resource.
func (c ClientRecord) Owns(service, resource, value string) bool {
	return slices.Contains(c.Resources[ResourceKey(service, resource)], value)
}

// ClientNumber extracts n from a `client_<n>` id; ok is false for any other shape.
func ClientNumber(id string) (int, bool) {
	raw, found := strings.CutPrefix(id, ClientIDPrefix)
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func ClientIDFromNumber(n int) string {
	return ClientIDPrefix + strconv.Itoa(n)
}
