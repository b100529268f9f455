package types

// UpstreamRequest is a fully annotated call: URL substituted, special parameters merged
// and credentials resolved.
type UpstreamRequest struct {
	Verb        string
	URL         string
	Params      map[string]string
	Credentials CredentialBundle
}

type UpstreamResponse struct {
	Status int
	Body   []byte
}

func (r UpstreamResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Call is the context a response handler needs about the request it answers.
type Call struct {
	API       APIDetails
	ClientID  string
	RecordID  int64
	ListingID string
	Request   DecodedRequest
	Update    map[string]any
}
