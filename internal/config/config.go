package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Default values of the fixed spreadsheet layout.
const (
	DefaultInputFile     = "addresses.xlsx"
	DefaultOutputFile    = "address_coordinates.xlsx"
	DefaultAddressColumn = 8
	DefaultLogDir        = "logs"
	DefaultBaseURL       = "https://maps.googleapis.com"
	DefaultTimeout       = "10s"
	DefaultEnv           = "local"
)

const envPrefix = "GEOCODER"

// Keys of the configuration values, also used as environment variable
// suffixes (GEOCODER_<KEY>).
const (
	keyEnv         = "env"
	keyAPIKey      = "api_key"
	keyInputFile   = "input_file"
	keyOutputFile  = "output_file"
	keyColumn      = "address_column"
	keyLogDir      = "log_dir"
	keyBaseURL     = "base_url"
	keyTimeout     = "timeout"
	keyMetricsFile = "metrics_file"
)

// Flag names registered by RegisterFlags.
const (
	FlagInput  = "input"
	FlagOutput = "output"
	FlagColumn = "column"
	FlagLogDir = "log-dir"
)

// ErrInvalidColumn is returned when the address column is not a positive integer.
var ErrInvalidColumn = errors.New("address column must be a positive integer")

// Config holds the configuration settings for a batch geocoding run.
//
// Fields:
// - Env: The current environment (local, development, production).
// - APIKey: The Google Maps API key (GOOGLE_MAPS_API_KEY).
// - InputFile: The spreadsheet the addresses are read from.
// - OutputFile: The spreadsheet the results are written to.
// - AddressColumn: The 1-based column holding the address text.
// - LogDir: The directory receiving the per-run log file.
// - BaseURL: The Google Maps API base URL.
// - Timeout: The HTTP client timeout for geocoding requests.
// - MetricsFile: Optional path of a Prometheus textfile written at the end of the run.
type Config struct {
	Env           string
	APIKey        string
	InputFile     string
	OutputFile    string
	AddressColumn int
	LogDir        string
	BaseURL       string
	Timeout       time.Duration
	MetricsFile   string
}

// RegisterFlags adds the command line overrides to the flag set.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(FlagInput, DefaultInputFile, "input spreadsheet with addresses")
	flags.String(FlagOutput, DefaultOutputFile, "output spreadsheet with coordinates")
	flags.Int(FlagColumn, DefaultAddressColumn, "1-based column holding the address")
	flags.String(FlagLogDir, DefaultLogDir, "directory for the run log file")
}

// Load reads the configuration from the environment (and an optional .env
// file). Flags that were explicitly set on the command line take precedence;
// flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	vpr := viper.New()
	vpr.SetEnvPrefix(envPrefix)
	vpr.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	vpr.AutomaticEnv()

	if err := vpr.BindEnv(keyAPIKey, "GOOGLE_MAPS_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key variable: %w", err)
	}

	vpr.SetDefault(keyEnv, DefaultEnv)
	vpr.SetDefault(keyInputFile, DefaultInputFile)
	vpr.SetDefault(keyOutputFile, DefaultOutputFile)
	vpr.SetDefault(keyColumn, strconv.Itoa(DefaultAddressColumn))
	vpr.SetDefault(keyLogDir, DefaultLogDir)
	vpr.SetDefault(keyBaseURL, DefaultBaseURL)
	vpr.SetDefault(keyTimeout, DefaultTimeout)

	if flags != nil {
		bindings := map[string]string{
			keyInputFile:  FlagInput,
			keyOutputFile: FlagOutput,
			keyColumn:     FlagColumn,
			keyLogDir:     FlagLogDir,
		}
		for key, name := range bindings {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := vpr.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
			}
		}
	}

	column, err := strconv.Atoi(vpr.GetString(keyColumn))
	if err != nil || column < 1 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, vpr.GetString(keyColumn))
	}

	timeout, err := time.ParseDuration(vpr.GetString(keyTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to parse timeout from configuration: %w", err)
	}

	return &Config{
		Env:           vpr.GetString(keyEnv),
		APIKey:        vpr.GetString(keyAPIKey),
		InputFile:     vpr.GetString(keyInputFile),
		OutputFile:    vpr.GetString(keyOutputFile),
		AddressColumn: column,
		LogDir:        vpr.GetString(keyLogDir),
		BaseURL:       vpr.GetString(keyBaseURL),
		Timeout:       timeout,
		MetricsFile:   vpr.GetString(keyMetricsFile),
	}, nil
}
