package geocoding

import (
	"context"
	"errors"
	"fmt"
)

// ProbeAddress is a known-good address geocoded to validate the API key.
const ProbeAddress = "1600 Amphitheatre Parkway, Mountain View, CA"

// ErrInvalidKey is returned by ValidateKey when the probe request fails.
var ErrInvalidKey = errors.New("google maps API key validation failed")

var remediationSteps = []string{
	"1. Visit https://console.cloud.google.com/",
	"2. Select your project",
	"3. Go to 'APIs & Services' > 'Credentials'",
	"4. Check if the API key is correctly created and has the necessary permissions",
	"5. Ensure the Geocoding API is enabled for your project",
	"6. If you've recently created the key, wait a few minutes for it to activate",
}

// ValidateKey geocodes ProbeAddress once. Any status other than OK, and any
// transport or decoding failure, is reported as ErrInvalidKey after logging
// the likely causes and how to fix them.
func (gp *GoogleProvider) ValidateKey(ctx context.Context) error {
	resp, err := gp.lookup(ctx, ProbeAddress)
	if err != nil {
		gp.log.ErrorContext(ctx, "An unexpected error occurred while validating the API key", "error", err)
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	if resp.Status != StatusOK {
		statusErr := &StatusError{Status: resp.Status, Message: resp.ErrorMessage}
		gp.log.ErrorContext(ctx, "API Key validation failed", "status", resp.Status, "message", resp.ErrorMessage)
		gp.log.ErrorContext(ctx,
			"Please check your API key and ensure it's correctly set up in the Google Cloud Console.")
		for _, step := range remediationSteps {
			gp.log.ErrorContext(ctx, step)
		}
		return fmt.Errorf("%w: %w", ErrInvalidKey, statusErr)
	}

	gp.log.InfoContext(ctx, "API key validated")

	return nil
}
