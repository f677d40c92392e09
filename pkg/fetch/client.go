// Package fetch retrieves datasets from the remote data endpoint.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/go-querystring/query"

	"github.com/ritzau/insights-dashboard/pkg/model"
)

// Fetcher retrieves the dataset matching a filter set
type Fetcher interface {
	Fetch(ctx context.Context, filters model.FilterSet) (model.Dataset, error)
}

// Kind classifies a FetchError
type Kind string

const (
	KindRequest   Kind = "request"   // the request could not be built
	KindTransport Kind = "transport" // network failure
	KindStatus    Kind = "status"    // non-2xx response
	KindDecode    Kind = "decode"    // body is not a JSON array of records
)

// FetchError reports a failed fetch. The caller keeps showing its previous dataset.
type FetchError struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client issues one GET per Fetch call. There is no retry and no client-side
// timeout; only the caller's context can abort a request.
type Client struct {
	endpoint string
	http     *http.Client
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// NewClient creates a client for endpoint
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured endpoint
func (c *Client) Endpoint() string {
	return c.endpoint
}

// RequestURL builds the GET URL for filters. Every filter key is sent, empty
// values included; the endpoint treats empty as unconstrained.
func (c *Client) RequestURL(filters model.FilterSet) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint: %w", err)
	}

	params, err := query.Values(filters)
	if err != nil {
		return "", fmt.Errorf("encoding filters: %w", err)
	}

	// keep any query the endpoint itself carries
	merged := u.Query()
	for k, v := range params {
		merged[k] = v
	}
	u.RawQuery = merged.Encode()
	return u.String(), nil
}

// Fetch retrieves the records matching filters, in response order
func (c *Client) Fetch(ctx context.Context, filters model.FilterSet) (model.Dataset, error) {
	target, err := c.RequestURL(filters)
	if err != nil {
		return nil, &FetchError{Kind: KindRequest, URL: c.endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindRequest, URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused; the error body is not interpreted
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Kind: KindStatus, URL: target, StatusCode: resp.StatusCode}
	}

	ds, err := decode(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: KindDecode, URL: target, StatusCode: resp.StatusCode, Err: err}
	}
	return ds, nil
}

func decode(r io.Reader) (model.Dataset, error) {
	var ds model.Dataset
	dec := json.NewDecoder(r)
	if err := dec.Decode(&ds); err != nil {
		return nil, err
	}
	if ds == nil {
		// a literal null is not an array of records
		return nil, errors.New("response body is null")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after the record array")
	}
	return ds, nil
}
