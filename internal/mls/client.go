// Package mls fetches listing data from realtor.com and RapidAPI.
package mls

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultSuggestURL  = "https://parser-external.geo.moveaws.com/suggest"
	defaultHulkURL     = "https://www.realtor.com/api/v1/hulk_main_srp?client_id=rdc-x&schema=vesta"
	defaultRapidAPIURL = "https://us-real-estate-listings.p.rapidapi.com/v2/property"
	rapidAPIHost       = "us-real-estate-listings.p.rapidapi.com"
	userAgent          = "Mozilla/5.0"
)

// ErrNoMatch is returned when an address does not resolve to a listing.
var ErrNoMatch = errors.New("no listing matches address")

// Listing holds the data returned from a lookup.
type Listing struct {
	MprID      string          `json:"mpr_id"`
	RealtorURL string          `json:"realtor_url"`
	RawJSON    json.RawMessage `json:"raw_json"`
}

// Client fetches listing data from external APIs.
type Client struct {
	httpClient  *http.Client
	rapidAPIKey string

	suggestURL  string
	hulkURL     string
	rapidAPIURL string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoints overrides the upstream URLs. Empty values keep the default.
func WithEndpoints(suggestURL, hulkURL, rapidAPIURL string) Option {
	return func(c *Client) {
		if suggestURL != "" {
			c.suggestURL = suggestURL
		}
		if hulkURL != "" {
			c.hulkURL = hulkURL
		}
		if rapidAPIURL != "" {
			c.rapidAPIURL = rapidAPIURL
		}
	}
}

// NewClient creates a client with the given RapidAPI key.
func NewClient(rapidAPIKey string, opts ...Option) (*Client, error) {
	if rapidAPIKey == "" {
		return nil, fmt.Errorf("RapidAPI key is required")
	}
	c := &Client{
		httpClient:  &http.Client{Timeout: 20 * time.Second},
		rapidAPIKey: rapidAPIKey,
		suggestURL:  defaultSuggestURL,
		hulkURL:     defaultHulkURL,
		rapidAPIURL: defaultRapidAPIURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lookup resolves an address to a listing: geocoder, then realtor.com URL,
// then the RapidAPI detail document. Only the last call is metered.
func (c *Client) Lookup(ctx context.Context, address string) (*Listing, error) {
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}

	mprID, err := c.lookupMprID(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("geocoder lookup: %w", err)
	}

	href, err := c.lookupRealtorURL(ctx, mprID)
	if err != nil {
		return nil, fmt.Errorf("realtor URL lookup: %w", err)
	}

	raw, err := c.fetchDetail(ctx, href)
	if err != nil {
		return nil, fmt.Errorf("listing detail fetch: %w", err)
	}

	return &Listing{MprID: mprID, RealtorURL: href, RawJSON: raw}, nil
}

type suggestResponse struct {
	Autocomplete []struct {
		MprID string `json:"mpr_id"`
	} `json:"autocomplete"`
}

func (c *Client) lookupMprID(ctx context.Context, address string) (string, error) {
	params := url.Values{
		"input":     {address},
		"client_id": {"rdc-home"},
		"limit":     {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.suggestURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	var result suggestResponse
	if err := c.doJSON(req, &result); err != nil {
		return "", err
	}
	if len(result.Autocomplete) == 0 || result.Autocomplete[0].MprID == "" {
		return "", fmt.Errorf("%w: %s", ErrNoMatch, address)
	}
	return result.Autocomplete[0].MprID, nil
}

type hulkRequest struct {
	Query string `json:"query"`
}

type hulkResponse struct {
	Data struct {
		Home struct {
			Href       string `json:"href"`
			PropertyID string `json:"property_id"`
		} `json:"home"`
	} `json:"data"`
}

func (c *Client) lookupRealtorURL(ctx context.Context, mprID string) (string, error) {
	body, err := json.Marshal(hulkRequest{
		Query: fmt.Sprintf(`query { home(property_id: "%s") { href property_id } }`, mprID),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.hulkURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	var result hulkResponse
	if err := c.doJSON(req, &result); err != nil {
		return "", err
	}
	if result.Data.Home.Href == "" {
		return "", fmt.Errorf("%w: no realtor.com URL for %s", ErrNoMatch, mprID)
	}
	return result.Data.Home.Href, nil
}

func (c *Client) fetchDetail(ctx context.Context, realtorURL string) (json.RawMessage, error) {
	params := url.Values{"property_url": {realtorURL}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rapidAPIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("x-rapidapi-host", rapidAPIHost)
	req.Header.Set("x-rapidapi-key", c.rapidAPIKey)

	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func (c *Client) doJSON(req *http.Request, v any) error {
	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request) (body []byte, err error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing body: %w", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}
