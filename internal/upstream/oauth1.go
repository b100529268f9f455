package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"wolff/internal/types"

	"github.com/dghubble/oauth1"
	log "github.com/sirupsen/logrus"
)

// MaxResponseBytes caps how much of an upstream response body is read.
const MaxResponseBytes = 1 << 20

// OAuth1Client signs each request with the caller's credential bundle (HMAC-SHA1).
type OAuth1Client struct {
	base    *http.Client
	timeout time.Duration
}

// NewOAuth1Client returns a client bounded by timeout per call. base may be nil.
func NewOAuth1Client(timeout time.Duration, base *http.Client) *OAuth1Client {
	if base == nil {
		base = &http.Client{}
	}
	return &OAuth1Client{base: base, timeout: timeout}
}

func (c *OAuth1Client) Call(ctx context.Context, req types.UpstreamRequest) (types.UpstreamResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := buildRequest(ctx, req)
	if err != nil {
		return types.UpstreamResponse{}, types.Err(types.ErrUpstream, err, "build request")
	}

	cfg := oauth1.NewConfig(req.Credentials.ClientKey, req.Credentials.ClientSecret)
	token := oauth1.NewToken(req.Credentials.ResourceOwnerKey, req.Credentials.ResourceOwnerSecret)
	httpClient := cfg.Client(context.WithValue(ctx, oauth1.HTTPClient, c.base), token)

	start := time.Now()
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return types.UpstreamResponse{}, types.Err(types.ErrUpstream, err, "%s %s", req.Verb, req.URL)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return types.UpstreamResponse{}, types.Err(types.ErrUpstream, err, "read body")
	}
	log.WithFields(log.Fields{
		"verb":    req.Verb,
		"url":     req.URL,
		"status":  resp.StatusCode,
		"elapsed": time.Since(start).String(),
	}).Debug("upstream call")
	return types.UpstreamResponse{Status: resp.StatusCode, Body: body}, nil
}

// buildRequest puts params in the query string for GET and DELETE, in a form body otherwise.
func buildRequest(ctx context.Context, req types.UpstreamRequest) (*http.Request, error) {
	verb := strings.ToUpper(req.Verb)
	if verb == "" {
		return nil, fmt.Errorf("empty verb")
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	values := url.Values{}
	for k, v := range req.Params {
		values.Set(k, v)
	}

	switch verb {
	case http.MethodGet, http.MethodDelete:
		q := u.Query()
		for k, vs := range values {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		return http.NewRequestWithContext(ctx, verb, u.String(), nil)
	default:
		httpReq, err := http.NewRequestWithContext(ctx, verb, u.String(), strings.NewReader(values.Encode()))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return httpReq, nil
	}
}
