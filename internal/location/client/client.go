// Package client is the HTTP adapter for the upstream geocoding provider.
// It normalizes the provider's heterogeneous payloads into the canonical
// shapes in internal/location/transport; callers never see raw responses.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"backoffice_portal_backend/internal/location/transport"
	"backoffice_portal_backend/platform/config"
	"backoffice_portal_backend/platform/logger"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Endpoint names used in FetchError and in log lines.
const (
	EndpointSearch           = "search"
	EndpointReverseGeocode   = "reverse-geocode"
	EndpointPlaceDetails     = "place-details"
	EndpointPostalByDistrict = "postal-by-district"
	EndpointPostalByCountry  = "postal-by-country"
)

// MinQueryLength is the shortest free-text query that triggers a search call.
// Shorter queries return an empty result set without touching the network.
const MinQueryLength = 3

// Variant selects which place-details payload shape the provider returns.
type Variant string

const (
	VariantDomestic      Variant = "domestic"
	VariantInternational Variant = "international"
)

// FetchError is the single typed error for network and parse failures. The
// adapter never swallows upstream failures; callers decide retry policy.
type FetchError struct {
	Endpoint string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("location provider %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client talks to one provider deployment (one base URL, one variant).
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	countryCode string
	variant     Variant
	limiter     *rate.Limiter
	group       singleflight.Group
	cache       *Cache
	log         *logger.Logger
}

// New creates a provider client for the given endpoint and variant.
// cache may be nil to disable response caching.
func New(endpoint config.ProviderEndpoint, variant Variant, cfg config.ProviderConfig, cache *Cache, log *logger.Logger) *Client {
	limit := cfg.GetProviderRateLimit()
	if limit <= 0 {
		limit = 10
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.GetProviderTimeout()},
		baseURL:     strings.TrimRight(endpoint.BaseURL, "/"),
		apiKey:      cfg.GetProviderAPIKey(),
		countryCode: endpoint.CountryCode,
		variant:     variant,
		limiter:     rate.NewLimiter(rate.Limit(limit), int(limit)),
		cache:       cache,
		log:         log,
	}
}

// Variant returns the place-details payload shape this client decodes.
func (c *Client) Variant() Variant {
	return c.variant
}

// CountryCode returns the country this client searches within.
func (c *Client) CountryCode() string {
	return c.countryCode
}

// SearchLocations returns autocomplete candidates for the query. Queries
// shorter than MinQueryLength yield an empty list without a network call;
// the length guard belongs to the caller, but the adapter tolerates being
// called anyway.
func (c *Client) SearchLocations(ctx context.Context, query string) ([]transport.LocationSuggestion, error) {
	trimmed := strings.TrimSpace(query)
	if len([]rune(trimmed)) < MinQueryLength {
		return []transport.LocationSuggestion{}, nil
	}

	params := url.Values{}
	params.Set("q", trimmed)
	params.Set("country", c.countryCode)

	body, err := c.get(ctx, EndpointSearch, fmt.Sprintf("%s/v1/locations/search?%s", c.baseURL, params.Encode()))
	if err != nil {
		return nil, err
	}

	suggestions, err := decodeSuggestions(body)
	if err != nil {
		return nil, &FetchError{Endpoint: EndpointSearch, Err: err}
	}

	return suggestions, nil
}

// ReverseGeocode resolves coordinates to a coarse address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (transport.AddressComponents, error) {
	cacheKey := fmt.Sprintf("loc:rev:%.5f:%.5f", lat, lng)

	var cached transport.AddressComponents
	if c.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lng", fmt.Sprintf("%f", lng))

	body, err := c.get(ctx, EndpointReverseGeocode, fmt.Sprintf("%s/v1/locations/reverse?%s", c.baseURL, params.Encode()))
	if err != nil {
		return transport.AddressComponents{}, err
	}

	address, err := decodeAddress(body)
	if err != nil {
		return transport.AddressComponents{}, &FetchError{Endpoint: EndpointReverseGeocode, Err: err}
	}

	c.cacheSet(ctx, cacheKey, address)
	return address, nil
}

// GetPlaceDetails fetches the enriched place record for a suggestion or
// reverse-geocode placeId. Concurrent lookups for the same place are
// deduplicated.
func (c *Client) GetPlaceDetails(ctx context.Context, placeID string) (transport.LocationDetails, error) {
	if strings.TrimSpace(placeID) == "" {
		return transport.LocationDetails{}, &FetchError{Endpoint: EndpointPlaceDetails, Err: fmt.Errorf("empty place id")}
	}

	cacheKey := fmt.Sprintf("loc:place:%s:%s", c.variant, placeID)

	var cached transport.LocationDetails
	if c.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	value, err, _ := c.group.Do(cacheKey, func() (interface{}, error) {
		body, err := c.get(ctx, EndpointPlaceDetails, fmt.Sprintf("%s/v1/places/%s", c.baseURL, url.PathEscape(placeID)))
		if err != nil {
			return nil, err
		}

		details, err := decodePlaceDetails(body, c.variant)
		if err != nil {
			return nil, &FetchError{Endpoint: EndpointPlaceDetails, Err: err}
		}
		if details.Info.PlaceID == "" {
			details.Info.PlaceID = placeID
		}

		c.cacheSet(ctx, cacheKey, details)
		return details, nil
	})
	if err != nil {
		return transport.LocationDetails{}, err
	}

	return value.(transport.LocationDetails), nil
}

// GetPostalCodesByDistrict lists postal codes for one district.
func (c *Client) GetPostalCodesByDistrict(ctx context.Context, districtID string) ([]transport.PostalCodeOption, error) {
	if strings.TrimSpace(districtID) == "" {
		return []transport.PostalCodeOption{}, nil
	}

	return c.postalCodes(ctx, EndpointPostalByDistrict,
		fmt.Sprintf("loc:postal:district:%s", districtID),
		fmt.Sprintf("%s/v1/districts/%s/postal-codes", c.baseURL, url.PathEscape(districtID)))
}

// GetPostalCodesByCountry lists postal codes for a country, used by the
// international variant's postal select.
func (c *Client) GetPostalCodesByCountry(ctx context.Context, countryCode string) ([]transport.PostalCodeOption, error) {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if code == "" {
		code = c.countryCode
	}

	return c.postalCodes(ctx, EndpointPostalByCountry,
		fmt.Sprintf("loc:postal:country:%s", code),
		fmt.Sprintf("%s/v1/countries/%s/postal-codes", c.baseURL, url.PathEscape(code)))
}

func (c *Client) postalCodes(ctx context.Context, endpoint, cacheKey, reqURL string) ([]transport.PostalCodeOption, error) {
	var cached []transport.PostalCodeOption
	if c.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	value, err, _ := c.group.Do(cacheKey, func() (interface{}, error) {
		body, err := c.get(ctx, endpoint, reqURL)
		if err != nil {
			return nil, err
		}

		options, err := decodePostalOptions(body)
		if err != nil {
			return nil, &FetchError{Endpoint: endpoint, Err: err}
		}

		c.cacheSet(ctx, cacheKey, options)
		return options, nil
	})
	if err != nil {
		return nil, err
	}

	return value.([]transport.PostalCodeOption), nil
}

func (c *Client) get(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.UpstreamError(endpoint, err)
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("upstream status %d", resp.StatusCode)
		c.log.UpstreamError(endpoint, err)
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}

	c.log.Debug("provider call", "endpoint", endpoint, "latency_ms", time.Since(start).Milliseconds())
	return body, nil
}

func (c *Client) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if c.cache == nil {
		return false
	}
	return c.cache.Get(ctx, key, dest)
}

func (c *Client) cacheSet(ctx context.Context, key string, value interface{}) {
	if c.cache == nil {
		return
	}
	c.cache.Set(ctx, key, value)
}
