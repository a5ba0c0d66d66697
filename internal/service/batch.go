package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/cartograph/internal/geocoding"
	"github.com/UnknownOlympus/cartograph/internal/metrics"
	"github.com/UnknownOlympus/cartograph/internal/models"
)

// errNoCoordinates is recorded when a provider returns neither coordinates nor an error.
var errNoCoordinates = errors.New("provider returned no coordinates")

// AddressSource yields the addresses of one input file, once.
type AddressSource interface {
	Addresses() iter.Seq2[models.AddressRecord, error]
	Close() error
}

// SourceOpener opens the input file at path.
type SourceOpener func(path string) (AddressSource, error)

// ResultSink accumulates output rows and persists them in one operation.
type ResultSink interface {
	Append(record models.AddressRecord, result models.GeocodeResult)
	Len() int
	Save(path string) error
}

// BatchService runs the batch: validate the credential, read every address,
// geocode it once, collect the results and save them.
type BatchService struct {
	log          *slog.Logger           // Logger for logging service activities
	validator    geocoding.KeyValidator // Validator for the provider credential
	provider     geocoding.Provider     // Geocoding provider for external geocoding services
	providerName string                 // Name of the provider for metrics labeling
	metrics      *metrics.Metrics       // Metrics for tracking service performance
	open         SourceOpener           // Opener for the input file
	sink         ResultSink             // Sink for the output rows
	inputPath    string                 // Path of the input spreadsheet
	outputPath   string                 // Path of the output spreadsheet
}

// NewBatchService creates a new instance of BatchService.
// It takes a logger, the credential validator and the geocoding provider,
// provider name for metrics, metrics for monitoring, the input opener and
// output sink, and both file paths.
func NewBatchService(
	log *slog.Logger,
	validator geocoding.KeyValidator,
	provider geocoding.Provider,
	providerName string,
	metrics *metrics.Metrics,
	open SourceOpener,
	sink ResultSink,
	inputPath string,
	outputPath string,
) *BatchService {
	return &BatchService{
		log:          log,
		validator:    validator,
		provider:     provider,
		providerName: providerName,
		metrics:      metrics,
		open:         open,
		sink:         sink,
		inputPath:    inputPath,
		outputPath:   outputPath,
	}
}

// Run executes the batch once. It returns an error only when the run was
// aborted: invalid credential, unreadable input or cancellation. A failed
// save is logged and reported through Summary.Saved instead.
func (bs *BatchService) Run(ctx context.Context) (models.Summary, error) {
	summary := models.Summary{OutputFile: bs.outputPath}

	bs.log.InfoContext(ctx, "Validating API key...")
	if err := bs.validator.ValidateKey(ctx); err != nil {
		bs.log.ErrorContext(ctx, "Exiting due to invalid API key.")
		return summary, err
	}

	source, err := bs.open(bs.inputPath)
	if err != nil {
		bs.log.ErrorContext(ctx, "Failed to open input file", "path", bs.inputPath, "error", err)
		return summary, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() {
		if errClose := source.Close(); errClose != nil {
			bs.log.WarnContext(ctx, "Failed to close input file", "path", bs.inputPath, "error", errClose)
		}
	}()

	bs.log.InfoContext(ctx, "Processing addresses", "input", bs.inputPath)

	for record, errRead := range source.Addresses() {
		if errRead != nil {
			bs.log.ErrorContext(ctx, "Failed to read input row, stopping", "error", errRead)
			break
		}
		if ctx.Err() != nil {
			break
		}

		result := bs.geocode(ctx, record)
		bs.sink.Append(record, result)
		summary.Record(result)
	}

	if err = ctx.Err(); err != nil {
		bs.log.WarnContext(ctx, "Run interrupted, output file not written", "processed", summary.Total)
		return summary, fmt.Errorf("run interrupted: %w", err)
	}

	if err = bs.sink.Save(bs.outputPath); err != nil {
		bs.log.ErrorContext(ctx, "Error saving output file", "path", bs.outputPath, "error", err)
	} else {
		summary.Saved = true
		bs.log.InfoContext(ctx, "Geocoding complete. Results written to output file",
			"output", bs.outputPath, "rows", bs.sink.Len())
	}

	bs.logSummary(ctx, summary)
	bs.metrics.LastRun.SetToCurrentTime()

	return summary, nil
}

// geocode issues one request for the record and converts the outcome into a
// result. Failures are logged and never returned as errors: a non-OK status is
// a warning, anything else an error.
func (bs *BatchService) geocode(ctx context.Context, record models.AddressRecord) models.GeocodeResult {
	bs.log.InfoContext(ctx, "Geocoding", "row", record.Row, "address", record.Address)

	startTime := time.Now()
	coords, err := bs.provider.Geocode(ctx, record.Address)
	duration := time.Since(startTime).Seconds()
	bs.metrics.RequestSeconds.WithLabelValues(bs.providerName).Observe(duration)

	if err == nil && coords != nil {
		bs.metrics.RowsProcessed.WithLabelValues(metrics.StatusSuccess).Inc()
		return models.Success(*coords)
	}
	if err == nil {
		err = errNoCoordinates
	}

	bs.metrics.RowsProcessed.WithLabelValues(metrics.StatusFailure).Inc()

	var statusErr *geocoding.StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != geocoding.StatusZeroResults {
		bs.metrics.APIErrors.Inc()
	}

	if statusErr != nil {
		bs.log.WarnContext(ctx, "No results found for address",
			"row", record.Row, "address", record.Address, "status", statusErr.Status)
	} else {
		bs.log.ErrorContext(ctx, "Error geocoding address",
			"row", record.Row, "address", record.Address, "error", err)
	}

	return models.Failure(err)
}

// logSummary reports the counters; they reflect processing, not persistence.
func (bs *BatchService) logSummary(ctx context.Context, summary models.Summary) {
	bs.log.InfoContext(ctx, "Total addresses processed", "count", summary.Total, "output", summary.OutputFile)
	bs.log.InfoContext(ctx, "Successful geocodes", "count", summary.Successful, "output", summary.OutputFile)
	bs.log.InfoContext(ctx, "Failed geocodes", "count", summary.Failed, "output", summary.OutputFile)
}
