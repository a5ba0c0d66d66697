package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/UnknownOlympus/cartograph/internal/models"
	"googlemaps.github.io/maps"
)

const (
	// GoogleBaseURL is the Google Maps API base URL.
	GoogleBaseURL = "https://maps.googleapis.com"
	// GeocodePath is the path of the JSON geocoding endpoint.
	GeocodePath = "/maps/api/geocode/json"

	// StatusOK is the only API status that carries results.
	StatusOK = "OK"
	// StatusZeroResults means the address was understood but not found.
	StatusZeroResults = "ZERO_RESULTS"
)

// Common errors for Google provider.
var (
	ErrStatusNotOK        = errors.New("google maps API returned non-OK status")
	ErrMalformedResponse  = errors.New("malformed response from Google Maps API")
	ErrEmptyAddress       = errors.New("google provider got empty address")
	ErrUnexpectedHTTPCode = errors.New("google maps API returned unexpected HTTP status")
)

// StatusError is returned when the API answers with a status other than OK,
// e.g. ZERO_RESULTS or REQUEST_DENIED.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("google maps status: %s", e.Status)
	}
	return fmt.Sprintf("google maps status: %s - %s", e.Status, e.Message)
}

// Unwrap makes errors.Is(err, ErrStatusNotOK) true for every StatusError.
func (e *StatusError) Unwrap() error {
	return ErrStatusNotOK
}

// geocodeResponse is the body of a geocoding response. Results are kept raw
// until the first one has been checked against resultShape.
type geocodeResponse struct {
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message"`
	Results      []json.RawMessage `json:"results"`
}

// resultShape marks the fields of a result that must be present. The
// googlemaps schema uses value structs, so absent fields would decode as 0.
type resultShape struct {
	Geometry *struct {
		Location *struct {
			Lat *float64 `json:"lat"`
			Lng *float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// GoogleProvider geocodes addresses with the Google Maps Geocoding API,
// issuing exactly one request per address.
type GoogleProvider struct {
	client  HTTPClient   // HTTP client for making requests
	baseURL string       // Base URL for the Google Maps API
	apiKey  string       // API key with geocoding access
	log     *slog.Logger // Logger for logging operations
}

// NewGoogleProvider creates a Google provider using client for transport.
// An empty baseURL selects GoogleBaseURL.
func NewGoogleProvider(client HTTPClient, baseURL, apiKey string, log *slog.Logger) *GoogleProvider {
	if baseURL == "" {
		baseURL = GoogleBaseURL
	}

	return &GoogleProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     log,
	}
}

// Geocode takes a context and an address string as input, and returns the geographical coordinates
// of the first result. A non-OK API status is returned as a *StatusError; a response that does not
// match the expected shape wraps ErrMalformedResponse.
func (gp *GoogleProvider) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "address", address)

	if strings.TrimSpace(address) == "" {
		return nil, ErrEmptyAddress
	}

	resp, err := gp.lookup(ctx, address)
	if err != nil {
		return nil, err
	}

	if resp.Status != StatusOK {
		return nil, &StatusError{Status: resp.Status, Message: resp.ErrorMessage}
	}

	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("%w: status OK without results", ErrMalformedResponse)
	}

	result, err := decodeResult(resp.Results[0])
	if err != nil {
		return nil, err
	}
	location := result.Geometry.Location

	gp.log.DebugContext(ctx, "Google Maps found result", "address", address,
		"formatted_address", result.FormattedAddress, "lat", location.Lat, "lng", location.Lng)

	return &models.Coordinates{Latitude: location.Lat, Longitude: location.Lng}, nil
}

// decodeResult decodes one result, requiring geometry.location with numeric
// lat and lng.
func decodeResult(raw json.RawMessage) (*maps.GeocodingResult, error) {
	var shape resultShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if shape.Geometry == nil || shape.Geometry.Location == nil ||
		shape.Geometry.Location.Lat == nil || shape.Geometry.Location.Lng == nil {
		return nil, fmt.Errorf("%w: result without geometry.location", ErrMalformedResponse)
	}

	var result maps.GeocodingResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return &result, nil
}

// lookup performs a single geocoding request and decodes the body. The API
// status is not interpreted here.
func (gp *GoogleProvider) lookup(ctx context.Context, address string) (*geocodeResponse, error) {
	reqURL, err := url.Parse(gp.baseURL + GeocodePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("address", address)
	query.Set("key", gp.apiKey)
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := gp.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		gp.log.ErrorContext(ctx, "Google Maps API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedHTTPCode, resp.StatusCode)
	}

	var result geocodeResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if result.Status == "" {
		return nil, fmt.Errorf("%w: missing status field", ErrMalformedResponse)
	}

	return &result, nil
}
