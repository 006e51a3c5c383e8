// Package harvest implements the bulk-download engine: a per-segment
// pagination/retry state machine and the coordinator that dispatches segment
// jobs to a bounded worker pool through a priority queue.
package harvest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/z3c0/metalharvest/pkg/archive"
	"github.com/z3c0/metalharvest/pkg/cache"
	"github.com/z3c0/metalharvest/pkg/sink"
)

// PageClient is the HTTP fetch capability a segment fetcher consumes.
type PageClient interface {
	Fetch(ctx context.Context, key cache.Key, url string) (status int, body []byte, err error)
	IsBusy(status int) bool
	IsAccepted(status int) bool
}

// EndpointFunc builds the page URL for a segment and offset.
type EndpointFunc func(segment string, offset, pageSize int) string

// DecodeFunc parses a page body into records and the segment total.
type DecodeFunc func(body []byte) (archive.Page, error)

// FetcherConfig holds the pagination and retry settings.
type FetcherConfig struct {
	// PageSize is the number of records requested per page.
	PageSize int

	// MaxAttempts is the attempt cap before a page is abandoned and its
	// failure recorded.
	MaxAttempts int

	// Backoff is the fixed sleep after a transient-busy response.
	Backoff time.Duration
}

// DefaultFetcherConfig returns the reference settings.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		PageSize:    500,
		MaxAttempts: 3,
		Backoff:     10 * time.Second,
	}
}

// SegmentFetcher paginates one named segment to completion, applying
// retry/backoff and routing results and errors to the sinks. A fetcher is
// stateless between calls; each Download owns its accumulators exclusively.
type SegmentFetcher struct {
	client   PageClient
	endpoint EndpointFunc
	decode   DecodeFunc
	sinks    *sink.Set
	config   FetcherConfig
	logger   zerolog.Logger
}

// NewSegmentFetcher creates a segment fetcher.
func NewSegmentFetcher(client PageClient, endpoint EndpointFunc, decode DecodeFunc, sinks *sink.Set, cfg FetcherConfig) *SegmentFetcher {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 10 * time.Second
	}

	return &SegmentFetcher{
		client:   client,
		endpoint: endpoint,
		decode:   decode,
		sinks:    sinks,
		config:   cfg,
		logger:   log.With().Str("component", "fetcher").Logger(),
	}
}

// Download fully paginates one segment. Pages are fetched sequentially; the
// offset only advances after a successful decode or after the attempt cap is
// exhausted. The segment total is unknown (-1) until the first successful
// decode, which guarantees the loop exactly one pass to discover it.
//
// On return the data sink holds either the segment's full record set or
// nothing, and the error sink holds one row per abandoned page.
func (f *SegmentFetcher) Download(ctx context.Context, segment string) error {
	pageSize := f.config.PageSize

	offset := 0
	total := -1
	attempts := 0
	var records [][]string
	var failures [][]string

	for {
		url := f.endpoint(segment, offset, pageSize)
		key := cache.Key{Segment: segment, Offset: offset, PageSize: pageSize}

		status, body, err := f.client.Fetch(ctx, key, url)
		if err != nil {
			// No response at all: give up on the segment, but keep the
			// failure rows already collected.
			if sinkErr := f.sinks.Errors.Append(failures); sinkErr != nil {
				f.logger.Error().Err(sinkErr).Str("segment", segment).Msg("Failed to write parse failures")
			}
			return fmt.Errorf("segment %s offset %d: %w", segment, offset, err)
		}

		if f.client.IsBusy(status) {
			// Give the server a moment to catch its breath, then retry
			// the same offset.
			transientRetriesTotal.WithLabelValues(segment).Inc()
			f.logger.Debug().
				Str("segment", segment).
				Int("offset", offset).
				Dur("backoff", f.config.Backoff).
				Msg("Server busy, backing off")

			attempts++
			select {
			case <-ctx.Done():
				if sinkErr := f.sinks.Errors.Append(failures); sinkErr != nil {
					f.logger.Error().Err(sinkErr).Str("segment", segment).Msg("Failed to write parse failures")
				}
				return ctx.Err()
			case <-time.After(f.config.Backoff):
			}
			continue
		}

		if !f.client.IsAccepted(status) {
			// Anomalous status. The body may still be usable, so decode
			// anyway.
			f.sinks.Log.Message(fmt.Sprintf("%s:%d %d error encountered (attempt %d)",
				segment, offset, status, attempts+1))
			f.logger.Warn().
				Str("segment", segment).
				Int("offset", offset).
				Int("status", status).
				Msg("Unexpected status code")
		}

		page, err := f.decode(body)
		if err != nil {
			attempts++
			if attempts < f.config.MaxAttempts {
				continue
			}

			// Attempt cap reached: record the failure and move on rather
			// than looping forever.
			f.sinks.Log.Message(fmt.Sprintf("%s:%d decode error encountered", segment, offset))
			f.sinks.Log.Message(fmt.Sprintf("%s failed to download records %d - %d",
				segment, offset, offset+pageSize))
			failures = append(failures, []string{
				segment, url, strconv.Itoa(status), archive.Sanitize(body),
			})
			parseFailuresTotal.WithLabelValues(segment).Inc()

			attempts = 0
			offset += pageSize
			if offset > total {
				break
			}
			continue
		}

		records = append(records, page.Records...)
		total = page.Total
		attempts = 0
		offset += pageSize
		if offset > total {
			break
		}
	}

	if total != -1 {
		f.sinks.Log.Message(fmt.Sprintf("%s complete (%d records)", segment, total))
		f.logger.Info().
			Str("segment", segment).
			Int("records", len(records)).
			Int("total", total).
			Msg("Segment complete")

		if err := f.sinks.Data.Append(records); err != nil {
			return fmt.Errorf("segment %s: write records: %w", segment, err)
		}
		segmentsCompletedTotal.Inc()
		recordsDownloadedTotal.Add(float64(len(records)))
	} else {
		f.sinks.Log.Message(fmt.Sprintf("%s failed to download", segment))
		f.logger.Warn().Str("segment", segment).Msg("Segment failed")
		segmentsFailedTotal.Inc()
	}

	if err := f.sinks.Errors.Append(failures); err != nil {
		return fmt.Errorf("segment %s: write parse failures: %w", segment, err)
	}
	return nil
}
