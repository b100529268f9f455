package flow

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"
	"wolff/internal/codec"
	"wolff/internal/metrics"
	"wolff/internal/ports"
	"wolff/internal/registry"
	"wolff/internal/types"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// Deps are the long-lived collaborators of a Gateway.
type Deps struct {
	Registry    *registry.Registry
	Resolver    *Resolver
	Credentials ports.CredentialStore
	Records     ports.RecordStore
	Upstream    ports.Upstream
	// Handlers defaults to DefaultHandlers(Records, Publisher, SalesArn).
	Handlers  map[string]Handler
	Publisher ports.Publisher
	SalesArn  string
}

// Gateway drives a request from raw bytes to reply bytes:
// Received → Decoded → Annotated → Dispatched → Responded → Replied, or Failed.
// It is constructed once and shared by every transport.
type Gateway struct {
	registry *registry.Registry
	resolver *Resolver
	creds    ports.CredentialStore
	records  ports.RecordStore
	upstream ports.Upstream
	handlers map[string]Handler
}

func NewGateway(d Deps) *Gateway {
	handlers := d.Handlers
	if handlers == nil {
		handlers = DefaultHandlers(d.Records, d.Publisher, d.SalesArn)
	}
	resolver := d.Resolver
	if resolver == nil {
		resolver = NewResolver(d.Registry, d.Credentials, d.Records)
	}
	return &Gateway{
		registry: d.Registry,
		resolver: resolver,
		creds:    d.Credentials,
		records:  d.Records,
		upstream: d.Upstream,
		handlers: handlers,
	}
}

func (g *Gateway) Resolver() *Resolver {
	return g.resolver
}

// HandleFrame serves one 13-byte request frame.
func (g *Gateway) HandleFrame(ctx context.Context, frame []byte) ([]byte, error) {
	t := newTrace("frame")
	req, err := codec.Decode(frame)
	if err != nil {
		return nil, t.fail(err)
	}
	t.advance(Decoded, log.Fields{"operation": req.API.String()})
	return g.process(ctx, t, req, nil)
}

// HandleUpdate serves an update request. u.ListingID is the record id handed out when the
// listing was created.
func (g *Gateway) HandleUpdate(ctx context.Context, u types.UpdateRequest) ([]byte, error) {
	t := newTrace("update")
	if u.ListingID <= 0 {
		return nil, t.fail(types.Err(types.ErrInvalidParameter, nil, "listing_id must be a positive record id"))
	}
	if len(u.Update) == 0 {
		return nil, t.fail(types.Err(types.ErrInvalidParameter, nil, "update is empty"))
	}
	req := types.DecodedRequest{
		API:      types.APIDetails{Service: types.ServiceEtsy, Method: types.MethodUpdateListing},
		Params:   normalizeUpdate(u.Update),
		RecordID: u.ListingID,
	}
	t.advance(Decoded, log.Fields{"operation": req.API.String()})
	return g.process(ctx, t, req, u.Update)
}

func (g *Gateway) process(ctx context.Context, t *trace, req types.DecodedRequest, update map[string]any) ([]byte, error) {
	service, method := req.API.Service, req.API.Method
	entry, err := g.registry.Resolve(service, method)
	if err != nil {
		return nil, t.fail(err)
	}

	call := types.Call{API: req.API, RecordID: req.RecordID, Request: req, Update: update}
	identValue, err := g.registry.IdentifierValue(service, method, req)
	if err != nil {
		return nil, t.fail(err)
	}
	if entry.IdentifierInEnvelope {
		// the envelope carries our record id; upstream knows the listing id
		listingID, err := g.records.ListingForRecord(ctx, req.RecordID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				err = types.Err(types.ErrMissingSubstitution, err, "")
			}
			return nil, t.fail(err)
		}
		call.ListingID = listingID
		identValue = listingID
	}

	client, err := g.resolver.FindClientBy(ctx, service, entry.Identifier, identValue)
	if err != nil {
		return nil, t.fail(err)
	}
	call.ClientID = client.ID
	t.with(log.Fields{"client": client.ID, "identifier": entry.Identifier, "value": identValue})

	bundle, err := g.creds.Get(ctx, client.ID, service)
	if err != nil {
		return nil, t.fail(err)
	}
	url, err := g.registry.BuildURL(service, method, call.ListingID)
	if err != nil {
		return nil, t.fail(err)
	}
	params, err := g.registry.InjectSpecialParameters(service, method, req.Params)
	if err != nil {
		return nil, t.fail(err)
	}
	if entry.IdentifierInEnvelope {
		delete(params, entry.Identifier)
	}
	t.advance(Annotated, log.Fields{"verb": entry.Verb, "url": url})

	upstreamReq := types.UpstreamRequest{
		Verb:        entry.Verb,
		URL:         url,
		Params:      params.Form(),
		Credentials: bundle,
	}
	t.advance(Dispatched, nil)
	start := time.Now()
	resp, err := g.upstream.Call(ctx, upstreamReq)
	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.Status)
	}
	metrics.UpstreamDuration.WithLabelValues(method, status).Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, types.ErrUpstream) {
			err = types.Err(types.ErrUpstream, err, "")
		}
		return nil, t.fail(err)
	}
	t.advance(Responded, log.Fields{"status": resp.Status})

	handler, ok := g.handlers[method]
	if !ok {
		return nil, t.fail(types.Err(types.ErrUnknownOperation, nil, "no response handler for %s", method))
	}
	reply, err := handler.Handle(ctx, resp, call)
	if err != nil {
		return nil, t.fail(err)
	}
	t.advance(Replied, log.Fields{"replyBytes": len(reply)})
	t.done()
	return reply, nil
}

// normalizeUpdate turns decoded JSON numbers into integers where they are whole so that
// they are sent upstream without a fractional part.
func normalizeUpdate(update map[string]any) types.Params {
	out := make(types.Params, len(update))
	for k, v := range update {
		switch n := v.(type) {
		case json.Number:
			if i, err := n.Int64(); err == nil {
				out[k] = i
			} else if f, err := n.Float64(); err == nil {
				out[k] = f
			} else {
				out[k] = n.String()
			}
		case float64:
			if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
				out[k] = int64(n)
			} else {
				out[k] = n
			}
		default:
			out[k] = v
		}
	}
	return out
}

// trace carries the state and log fields of one request.
type trace struct {
	kind   string
	state  State
	fields log.Fields
	start  time.Time
}

func newTrace(kind string) *trace {
	t := &trace{kind: kind, state: Received, fields: log.Fields{"kind": kind}, start: time.Now()}
	log.WithFields(t.fields).Trace(Received.String())
	return t
}

func (t *trace) with(fields log.Fields) {
	for k, v := range fields {
		t.fields[k] = v
	}
}

func (t *trace) advance(s State, fields log.Fields) {
	t.with(fields)
	t.state = s
	log.WithFields(t.fields).Debug(s.String())
}

func (t *trace) operation() string {
	if op, ok := t.fields["operation"].(string); ok {
		return op
	}
	return "unknown"
}

func (t *trace) fail(err error) error {
	metrics.RequestsTotal.WithLabelValues(t.operation(), metrics.OutcomeFailed).Inc()
	metrics.FailuresTotal.WithLabelValues(t.state.String()).Inc()
	log.WithFields(t.fields).WithFields(log.Fields{
		"state":   Failed.String(),
		"after":   t.state.String(),
		"reason":  FailureKind(err),
		"elapsed": time.Since(t.start).String(),
	}).WithError(err).Warn("request failed")
	t.state = Failed
	return err
}

func (t *trace) done() {
	metrics.RequestsTotal.WithLabelValues(t.operation(), metrics.OutcomeOK).Inc()
	log.WithFields(t.fields).WithField("elapsed", time.Since(t.start).String()).Info("request served")
}

var failureKinds = []struct {
	err  error
	kind string
}{
	{types.ErrMalformedFrame, "malformed_frame"},
	{types.ErrUnknownEnumerationValue, "unknown_enumeration_value"},
	{types.ErrInvalidParameter, "invalid_parameter"},
	{types.ErrUnknownOperation, "unknown_operation"},
	{types.ErrMissingIdentifier, "missing_identifier"},
	{types.ErrMissingSubstitution, "missing_substitution"},
	{types.ErrClientNotFound, "client_not_found"},
	{types.ErrNoSuchCredential, "no_such_credential"},
	{types.ErrUpstream, "upstream"},
	{types.ErrTimeout, "timeout"},
	{types.ErrNotFound, "not_found"},
	{types.ErrStorage, "storage"},
}

// FailureKind names the first sentinel err matches, for logs and metrics.
func FailureKind(err error) string {
	for _, fk := range failureKinds {
		if errors.Is(err, fk.err) {
			return fk.kind
		}
	}
	return "internal"
}
