package geocoding

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ProviderName labels the Google provider in metrics.
const ProviderName = "google"

// ErrEmptyAPIKey is returned when no API key is configured.
var ErrEmptyAPIKey = errors.New("API key is required for Google provider")

// ProviderConfig holds configuration for creating a geocoding provider.
type ProviderConfig struct {
	APIKey  string        // API key for the Google Maps API
	BaseURL string        // Base URL of the API, GoogleBaseURL when empty
	Timeout time.Duration // HTTP client timeout, no timeout when zero
	Logger  *slog.Logger  // Logger for the provider
}

// NewProvider creates the Google provider from the configuration, with its
// own HTTP client. It fails if the API key is empty or the base URL is not
// an absolute URL.
func NewProvider(config ProviderConfig) (*GoogleProvider, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	if config.BaseURL != "" {
		parsed, err := url.Parse(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse base URL: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("base URL must be absolute: %q", config.BaseURL)
		}
	}

	client := &http.Client{Timeout: config.Timeout}

	return NewGoogleProvider(client, config.BaseURL, config.APIKey, config.Logger), nil
}
