package types

import (
	"fmt"
	"strconv"
)

// Service and method names known to the wire codec.
const (
	ServiceEtsy = "etsy"

	MethodCreateListing     = "create_listing"
	MethodCheckListingStock = "check_listing_stock"
	MethodUpdateListing     = "update_listing"
)

// APIDetails names the upstream operation a frame maps to.
type APIDetails struct {
	Service string
	Method  string
}

func (a APIDetails) String() string {
	return a.Service + "/" + a.Method
}

// Params holds operation parameters by name. Values are string, int, int64, float64 or bool.
type Params map[string]any

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// String renders the named parameter the way it is sent upstream.
func (p Params) String(name string) (string, bool) {
	v, ok := p[name]
	if !ok || v == nil {
		return "", false
	}
	return FormatValue(v), true
}

// Form flattens the parameters into upstream form values.
func (p Params) Form() map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = FormatValue(v)
	}
	return out
}

// FormatValue stringifies a parameter value.
func FormatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case float64:
		return strconv.FormatFloat(t, 'f', 2, 64)
	default:
		return fmt.Sprint(t)
	}
}

// DecodedRequest is what the codec produces from a frame. RecordID is the envelope value
// carried by stock frames and update requests; it is zero for create_listing.
type DecodedRequest struct {
	API      APIDetails
	Params   Params
	RecordID int64
}

// UpdateRequest is the JSON body accepted by the update endpoint. ListingID holds the
// record id returned to the client when the listing was created.
type UpdateRequest struct {
	ListingID int64          `json:"listing_id"`
	Update    map[string]any `json:"update"`
}
