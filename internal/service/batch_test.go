package service_test

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/cartograph/internal/geocoding"
	"github.com/UnknownOlympus/cartograph/internal/metrics"
	"github.com/UnknownOlympus/cartograph/internal/models"
	"github.com/UnknownOlympus/cartograph/internal/service"
	"github.com/UnknownOlympus/cartograph/internal/spreadsheet"
	"github.com/UnknownOlympus/cartograph/test/mocks"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// sliceSource is an in-memory AddressSource.
type sliceSource struct {
	records []models.AddressRecord
	readErr error
	closed  bool
}

func (s *sliceSource) Addresses() iter.Seq2[models.AddressRecord, error] {
	return func(yield func(models.AddressRecord, error) bool) {
		for _, record := range s.records {
			if !yield(record, nil) {
				return
			}
		}
		if s.readErr != nil {
			yield(models.AddressRecord{}, s.readErr)
		}
	}
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

// failingSink keeps rows in memory but never saves.
type failingSink struct {
	*spreadsheet.ResultTable
}

func (failingSink) Save(string) error {
	return assert.AnError
}

type fixture struct {
	validator *mocks.KeyValidator
	provider  *mocks.Provider
	metrics   *metrics.Metrics
	logs      *bytes.Buffer
	opened    int
	output    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	return &fixture{
		validator: mocks.NewKeyValidator(t),
		provider:  mocks.NewProvider(t),
		metrics:   metrics.NewMetrics(prometheus.NewRegistry()),
		logs:      &bytes.Buffer{},
		output:    filepath.Join(filet.TmpDir(t, ""), "address_coordinates.xlsx"),
	}
}

func (f *fixture) service(source *sliceSource, sink service.ResultSink) *service.BatchService {
	logger := slog.New(slog.NewTextHandler(f.logs, nil))
	open := func(string) (service.AddressSource, error) {
		f.opened++
		return source, nil
	}

	return service.NewBatchService(logger, f.validator, f.provider, geocoding.ProviderName, f.metrics,
		open, sink, "addresses.xlsx", f.output)
}

func records(addresses ...string) []models.AddressRecord {
	out := make([]models.AddressRecord, 0, len(addresses))
	for i, address := range addresses {
		out = append(out, models.AddressRecord{Row: i + 2, Address: address})
	}
	return out
}

func TestBatchService_Run(t *testing.T) {
	defer filet.CleanUp(t)
	header := []any{"Address", "Latitude", "Longitude", "Status"}

	t.Run("mixed outcomes keep order and counts", func(t *testing.T) {
		fix := newFixture(t)
		source := &sliceSource{records: records("1 Main St", "???", "X", "2 Main St")}
		table := spreadsheet.NewResultTable()

		fix.validator.On("ValidateKey", mock.Anything).Return(nil).Once()
		fix.provider.On("Geocode", mock.Anything, "1 Main St").
			Return(&models.Coordinates{Latitude: 37.4, Longitude: -122.1}, nil).Once()
		fix.provider.On("Geocode", mock.Anything, "???").
			Return(nil, &geocoding.StatusError{Status: "ZERO_RESULTS"}).Once()
		fix.provider.On("Geocode", mock.Anything, "X").
			Return(nil, errors.New("connection reset by peer")).Once()
		fix.provider.On("Geocode", mock.Anything, "2 Main St").
			Return(&models.Coordinates{Latitude: 1.5, Longitude: 2.5}, nil).Once()

		summary, err := fix.service(source, table).Run(t.Context())

		require.NoError(t, err)
		want := [][]any{
			header,
			{"1 Main St", 37.4, -122.1, "Success"},
			{"???", "Not found", "Not found", "Failed"},
			{"X", "Not found", "Not found", "Failed"},
			{"2 Main St", 1.5, 2.5, "Success"},
		}
		if diff := cmp.Diff(want, table.Rows()); diff != "" {
			t.Errorf("unexpected rows (-want +got):\n%s", diff)
		}

		assert.Equal(t, 4, summary.Total)
		assert.Equal(t, 2, summary.Successful)
		assert.Equal(t, 2, summary.Failed)
		assert.Equal(t, summary.Total, summary.Successful+summary.Failed)
		assert.True(t, summary.Saved)
		assert.Equal(t, fix.output, summary.OutputFile)
		assert.True(t, source.closed)
		assert.FileExists(t, fix.output)

		logs := fix.logs.String()
		assert.Contains(t, logs, `level=WARN msg="No results found for address"`)
		assert.Contains(t, logs, `address=??? status=ZERO_RESULTS`)
		assert.Contains(t, logs, `level=ERROR msg="Error geocoding address"`)
		assert.Contains(t, logs, `error="connection reset by peer"`)
		assert.Contains(t, logs, `msg="Total addresses processed" count=4`)
		assert.Contains(t, logs, `msg="Successful geocodes" count=2`)
		assert.Contains(t, logs, `msg="Failed geocodes" count=2`)
		assert.Contains(t, logs, "Geocoding complete")

		assert.InDelta(t, 2, testutil.ToFloat64(fix.metrics.RowsProcessed.WithLabelValues(metrics.StatusSuccess)), 0)
		assert.InDelta(t, 2, testutil.ToFloat64(fix.metrics.RowsProcessed.WithLabelValues(metrics.StatusFailure)), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(fix.metrics.APIErrors), 0)
		assert.Positive(t, testutil.ToFloat64(fix.metrics.LastRun))
	})

	t.Run("invalid key opens nothing", func(t *testing.T) {
		fix := newFixture(t)
		table := spreadsheet.NewResultTable()

		fix.validator.On("ValidateKey", mock.Anything).Return(geocoding.ErrInvalidKey).Once()

		summary, err := fix.service(&sliceSource{records: records("1 Main St")}, table).Run(t.Context())

		require.ErrorIs(t, err, geocoding.ErrInvalidKey)
		assert.Equal(t, 0, fix.opened)
		assert.Equal(t, 0, summary.Total)
		assert.False(t, summary.Saved)
		assert.NoFileExists(t, fix.output)
		assert.Contains(t, fix.logs.String(), "Exiting due to invalid API key.")
		fix.provider.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
	})

	t.Run("input cannot be opened", func(t *testing.T) {
		fix := newFixture(t)
		logger := slog.New(slog.NewTextHandler(fix.logs, nil))
		open := func(string) (service.AddressSource, error) {
			return nil, os.ErrNotExist
		}

		fix.validator.On("ValidateKey", mock.Anything).Return(nil).Once()

		svc := service.NewBatchService(logger, fix.validator, fix.provider, geocoding.ProviderName, fix.metrics,
			open, spreadsheet.NewResultTable(), "addresses.xlsx", fix.output)
		_, err := svc.Run(t.Context())

		require.ErrorIs(t, err, os.ErrNotExist)
		assert.NoFileExists(t, fix.output)
		assert.Contains(t, fix.logs.String(), "Failed to open input file")
	})

	t.Run("save failure still reports summary", func(t *testing.T) {
		fix := newFixture(t)
		sink := failingSink{spreadsheet.NewResultTable()}

		fix.validator.On("ValidateKey", mock.Anything).Return(nil).Once()
		fix.provider.On("Geocode", mock.Anything, "1 Main St").
			Return(&models.Coordinates{Latitude: 37.4, Longitude: -122.1}, nil).Once()

		summary, err := fix.service(&sliceSource{records: records("1 Main St")}, sink).Run(t.Context())

		require.NoError(t, err)
		assert.False(t, summary.Saved)
		assert.Equal(t, 1, summary.Total)
		assert.Equal(t, 1, summary.Successful)
		logs := fix.logs.String()
		assert.Contains(t, logs, `level=ERROR msg="Error saving output file"`)
		assert.NotContains(t, logs, "Geocoding complete")
		assert.Contains(t, logs, `msg="Total addresses processed" count=1`)
	})

	t.Run("empty input writes header only", func(t *testing.T) {
		fix := newFixture(t)
		table := spreadsheet.NewResultTable()

		fix.validator.On("ValidateKey", mock.Anything).Return(nil).Once()

		summary, err := fix.service(&sliceSource{}, table).Run(t.Context())

		require.NoError(t, err)
		assert.Equal(t, 0, summary.Total)
		assert.Equal(t, [][]any{header}, table.Rows())
		assert.True(t, summary.Saved)
	})

	t.Run("provider returns neither coordinates nor error", func(t *testing.T) {
		fix := newFixture(t)
		table := spreadsheet.NewResultTable()

		fix.validator.On("ValidateKey", mock.Anything).Return(nil).Once()
		fix.provider.On("Geocode", mock.Anything, "1 Main St").Return(nil, nil).Once()

		summary, err := fix.service(&sliceSource{records: records("1 Main St")}, table).Run(t.Context())

		require.NoError(t, err)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, []any{"1 Main St", "Not found", "Not found", "Failed"}, table.Rows()[1])
	})

	t.Run("read error stops the loop but saves", func(t *testing.T) {
		fix := newFixture(t)
		table := spreadsheet.NewResultTable()
		source := &sliceSource{records: records("1 Main St"), readErr: assert.AnError}

		fix.validator.On("ValidateKey", mock.Anything).Return(nil).Once()
		fix.provider.On("Geocode", mock.Anything, "1 Main St").
			Return(&models.Coordinates{Latitude: 37.4, Longitude: -122.1}, nil).Once()

		summary, err := fix.service(source, table).Run(t.Context())

		require.NoError(t, err)
		assert.Equal(t, 1, summary.Total)
		assert.True(t, summary.Saved)
		assert.Contains(t, fix.logs.String(), "Failed to read input row, stopping")
	})

	t.Run("cancellation skips the save", func(t *testing.T) {
		fix := newFixture(t)
		table := spreadsheet.NewResultTable()
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		fix.validator.On("ValidateKey", mock.Anything).Return(nil).Once()
		fix.provider.On("Geocode", mock.Anything, "1 Main St").
			Run(func(mock.Arguments) { cancel() }).
			Return(nil, context.Canceled).Once()

		summary, err := fix.service(&sliceSource{records: records("1 Main St", "2 Main St")}, table).Run(ctx)

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, summary.Total)
		assert.False(t, summary.Saved)
		assert.NoFileExists(t, fix.output)
	})

	t.Run("OK response without location fails the row", func(t *testing.T) {
		fix := newFixture(t)
		table := spreadsheet.NewResultTable()
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			_, _ = writer.Write([]byte(`{"status":"OK","results":[{}]}`))
		}))
		defer server.Close()

		fix.validator.On("ValidateKey", mock.Anything).Return(nil).Once()

		logger := slog.New(slog.NewTextHandler(fix.logs, nil))
		provider := geocoding.NewGoogleProvider(server.Client(), server.URL, "test-api-key", logger)
		open := func(string) (service.AddressSource, error) {
			return &sliceSource{records: records("1 Main St")}, nil
		}
		svc := service.NewBatchService(logger, fix.validator, provider, geocoding.ProviderName, fix.metrics,
			open, table, "addresses.xlsx", fix.output)

		summary, err := svc.Run(t.Context())

		require.NoError(t, err)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, 0, summary.Successful)
		assert.Equal(t, []any{"1 Main St", "Not found", "Not found", "Failed"}, table.Rows()[1])
		logs := fix.logs.String()
		assert.Contains(t, logs, `level=ERROR msg="Error geocoding address"`)
		assert.Contains(t, logs, "result without geometry.location")
		assert.InDelta(t, 1, testutil.ToFloat64(fix.metrics.APIErrors), 0)
	})
}
