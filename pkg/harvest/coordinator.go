package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/z3c0/metalharvest/pkg/queue"
	"github.com/z3c0/metalharvest/pkg/sink"
)

// Downloader is the per-segment work a worker performs. Satisfied by
// *SegmentFetcher; tests substitute stubs.
type Downloader interface {
	Download(ctx context.Context, segment string) error
}

// CoordinatorConfig sizes the pool and queue. Zero values derive from the
// segment enumeration: one worker per three segments, queue capacity of half
// the segment count.
type CoordinatorConfig struct {
	// Segments is the enumeration of segment keys in dispatch order.
	// Earlier segments are dispatched first.
	Segments []string

	// Workers is the fixed worker pool size.
	Workers int

	// QueueCapacity bounds the number of queued jobs.
	QueueCapacity int

	// Verbose enables the run log; when false the log sink is disabled
	// before any message is written.
	Verbose bool
}

// Coordinator orchestrates a run: it sizes the pool and queue, enqueues all
// segment jobs by position, waits for the drain barrier, and on completion or
// interruption shuts the pool down through sentinel jobs.
type Coordinator struct {
	fetcher Downloader
	sinks   *sink.Set
	config  CoordinatorConfig
	logger  zerolog.Logger
}

// NewCoordinator creates a coordinator.
func NewCoordinator(fetcher Downloader, sinks *sink.Set, cfg CoordinatorConfig) (*Coordinator, error) {
	if len(cfg.Segments) == 0 {
		return nil, fmt.Errorf("at least one segment is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = len(cfg.Segments) / 3
		if cfg.Workers < 1 {
			cfg.Workers = 1
		}
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = len(cfg.Segments) / 2
		if cfg.QueueCapacity < 1 {
			cfg.QueueCapacity = 1
		}
	}

	return &Coordinator{
		fetcher: fetcher,
		sinks:   sinks,
		config:  cfg,
		logger:  log.With().Str("component", "coordinator").Logger(),
	}, nil
}

// Run downloads every segment. It blocks until all dispatched jobs complete
// or ctx is cancelled; either way the workers are sent sentinels and any
// undispatched jobs are discarded, so the run always terminates. The returned
// error is ctx's error on interruption, nil on a clean run.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.config.Verbose {
		c.sinks.Log.Disable()
	} else {
		c.sinks.Log.Message("beginning download")
	}

	q := queue.New(c.config.QueueCapacity)

	var wg sync.WaitGroup
	for i := 0; i < c.config.Workers; i++ {
		wg.Add(1)
		go c.worker(ctx, q, i, &wg)
	}

	c.logger.Info().
		Int("segments", len(c.config.Segments)).
		Int("workers", c.config.Workers).
		Int("queue_capacity", c.config.QueueCapacity).
		Msg("Starting harvest")

	runErr := c.dispatch(ctx, q)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			c.sinks.Log.Message("interrupt detected")
			c.logger.Warn().Msg("Harvest interrupted, shutting down")
		} else {
			c.sinks.Log.Message(runErr.Error())
			c.logger.Error().Err(runErr).Msg("Harvest aborted, shutting down")
		}
	}

	// Guaranteed cleanup: discard anything no worker has taken yet, then
	// stop the pool. Stale jobs are drained before the sentinels go in so
	// the drain cannot swallow a sentinel.
	c.sinks.Log.Message("sending close signal to workers")

	discarded := 0
	for !q.IsEmpty() {
		job, ok := q.TryGet()
		if !ok {
			break
		}
		q.MarkDone()
		c.logger.Debug().Str("segment", job.Segment).Msg("Discarding undispatched job")
		discarded++
	}
	if discarded > 0 {
		jobsDiscardedTotal.Add(float64(discarded))
		c.logger.Info().Int("discarded", discarded).Msg("Dropped undispatched jobs")
	}

	for i := 0; i < c.config.Workers; i++ {
		// Background context: shutdown must complete even when ctx is
		// already cancelled.
		if err := q.Put(context.Background(), queue.Sentinel()); err != nil {
			c.logger.Error().Err(err).Msg("Failed to enqueue sentinel")
		}
	}

	wg.Wait()
	c.logger.Info().Msg("All workers stopped")

	return runErr
}

// dispatch enqueues every segment job and waits on the drain barrier.
func (c *Coordinator) dispatch(ctx context.Context, q *queue.Queue) error {
	for i, segment := range c.config.Segments {
		// Priority position+1: earlier segments are larger and should
		// start first; 0 stays reserved for sentinels.
		job := queue.Job{Priority: i + 1, Segment: segment}
		if err := q.Put(ctx, job); err != nil {
			return err
		}
	}
	return q.Join(ctx)
}

// worker pops jobs until it receives a sentinel or fails fatally. MarkDone is
// guaranteed for every dequeued job, so a failing segment cannot wedge the
// drain barrier. Workers are not restarted.
func (c *Coordinator) worker(ctx context.Context, q *queue.Queue, id int, wg *sync.WaitGroup) {
	defer wg.Done()
	logger := c.logger.With().Int("worker_id", id).Logger()

	for {
		job := q.Get()
		if c.process(ctx, q, logger, job) {
			logger.Debug().Msg("Worker stopping")
			return
		}
	}
}

// process handles one dequeued job and reports whether the worker should
// stop.
func (c *Coordinator) process(ctx context.Context, q *queue.Queue, logger zerolog.Logger, job queue.Job) (stop bool) {
	defer q.MarkDone()
	defer func() {
		if r := recover(); r != nil {
			c.sinks.Log.Message(fmt.Sprint(r))
			logger.Error().Interface("panic", r).Str("segment", job.Segment).Msg("Worker failed")
			stop = true
		}
	}()

	if job.IsSentinel() {
		return true
	}

	if err := c.fetcher.Download(ctx, job.Segment); err != nil {
		// A failed segment is reported and skipped; the pool keeps going.
		c.sinks.Log.Message(err.Error())
		logger.Warn().Err(err).Str("segment", job.Segment).Msg("Segment download failed")
	}
	return false
}
