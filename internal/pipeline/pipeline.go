// Package pipeline drives a sync: it reads every message a source emits,
// writes records to a destination in batches and persists the per-stream
// state the source reports once a stream is complete.
//
// # Basic Usage
//
//	p := pipeline.NewSyncPipeline(source, destination, store, &pipeline.Config{
//	    BatchSize: 500,
//	    Mode:      core.SyncModeIncremental,
//	}, logger)
//	err := p.Run(ctx)
//
// State is saved only after the records preceding it have been written and
// flushed, so a crash never persists a cursor past undelivered records.
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shayan-nathan/airbyte/pkg/config"
	"github.com/shayan-nathan/airbyte/pkg/connector/core"
	"github.com/shayan-nathan/airbyte/pkg/errors"
	"github.com/shayan-nathan/airbyte/pkg/logger"
	"github.com/shayan-nathan/airbyte/pkg/metrics"
	"github.com/shayan-nathan/airbyte/pkg/observability"
	"github.com/shayan-nathan/airbyte/pkg/pool"
)

// StateStore persists state between runs. *state.Store implements it.
type StateStore interface {
	Load() (core.State, error)
	Save(st core.State) error
}

// Config contains pipeline configuration parameters.
type Config struct {
	BatchSize     int           // Records per destination write
	FlushInterval time.Duration // Partial batches are written after this long
	Mode          core.SyncMode
	Streams       []string // Empty means every stream of the source
	SyncID        string   // Tags every log line of the run, generated when empty
}

// DefaultConfig returns an incremental sync of every stream.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:     500,
		FlushInterval: 5 * time.Second,
		Mode:          core.SyncModeIncremental,
	}
}

// ConfigFromBase takes batching settings from a destination config.
func ConfigFromBase(cfg *config.BaseConfig, mode core.SyncMode, streams []string) *Config {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.Performance.BatchSize > 0 {
			c.BatchSize = cfg.Performance.BatchSize
		}
		if cfg.Performance.FlushInterval > 0 {
			c.FlushInterval = cfg.Performance.FlushInterval
		}
	}
	if mode != "" {
		c.Mode = mode
	}
	c.Streams = streams
	return c
}

// SyncPipeline moves one source read into one destination.
type SyncPipeline struct {
	source      core.Source
	destination core.Destination
	store       StateStore
	transforms  []Transform
	cfg         Config
	logger      *zap.Logger

	mu               sync.Mutex
	state            core.State
	recordsRead      int64
	recordsWritten   int64
	recordsFiltered  int64
	batchesWritten   int64
	statesSaved      int64
	streamsCompleted []string
	startTime        time.Time
	duration         time.Duration
}

// NewSyncPipeline creates a pipeline. store may be nil, in which case state
// is kept in memory only.
func NewSyncPipeline(source core.Source, destination core.Destination, store StateStore, cfg *Config, logger *zap.Logger) *SyncPipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultConfig().BatchSize
	}
	if c.Mode == "" {
		c.Mode = core.SyncModeIncremental
	}
	if c.SyncID == "" {
		c.SyncID = pool.GenerateID("sync")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncPipeline{
		source:      source,
		destination: destination,
		store:       store,
		cfg:         c,
		logger:      logger.With(zap.String("component", "sync_pipeline")),
		state:       core.State{},
	}
}

// AddTransform adds a transformation applied to every record before it is
// batched. Transforms run in the order they were added.
func (p *SyncPipeline) AddTransform(transform Transform) {
	p.transforms = append(p.transforms, transform)
}

// Run executes the sync and blocks until the source is exhausted, a fatal
// error occurs or ctx is cancelled.
func (p *SyncPipeline) Run(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.sync")
	defer func() { observability.EndSpan(span, err) }()

	ctx = context.WithValue(ctx, logger.SyncIDKey, p.cfg.SyncID)
	log := logger.WithContext(ctx, p.logger)

	timer := metrics.NewTimer("sync")
	p.mu.Lock()
	p.startTime = time.Now()
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.duration = timer.Stop()
		p.mu.Unlock()
	}()

	if err := p.loadState(); err != nil {
		return err
	}

	log.Info("starting sync",
		zap.String("mode", string(p.cfg.Mode)),
		zap.Strings("streams", p.cfg.Streams),
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.Duration("flush_interval", p.cfg.FlushInterval))

	// Cancelling readCtx stops the source producer when the pipeline fails.
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rs, err := p.source.Read(readCtx, core.ReadRequest{Streams: p.cfg.Streams, Mode: p.cfg.Mode})
	if err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "failed to start source read")
	}

	if err := p.consume(ctx, rs); err != nil {
		log.Error("sync failed", zap.Error(err))
		return err
	}

	if err := p.destination.Flush(ctx); err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "final destination flush failed")
	}

	p.mu.Lock()
	log.Info("sync completed",
		zap.Int64("records_read", p.recordsRead),
		zap.Int64("records_written", p.recordsWritten),
		zap.Int64("records_filtered", p.recordsFiltered),
		zap.Strings("streams_completed", p.streamsCompleted),
		zap.Duration("duration", time.Since(p.startTime)))
	p.mu.Unlock()
	return nil
}

func (p *SyncPipeline) loadState() error {
	if p.store == nil {
		return p.source.SetState(p.State())
	}
	st, err := p.store.Load()
	if err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "failed to load state")
	}
	p.mu.Lock()
	p.state = st.Clone()
	p.mu.Unlock()
	return p.source.SetState(st)
}

// consume reads messages until the source closes its stream.
func (p *SyncPipeline) consume(ctx context.Context, rs *core.RecordStream) error {
	batch := make([]*pool.Record, 0, p.cfg.BatchSize)

	var tick <-chan time.Time
	if p.cfg.FlushInterval > 0 {
		ticker := time.NewTicker(p.cfg.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := p.write(ctx, batch)
		batch = batch[:0]
		return err
	}

	for {
		select {
		case msg, ok := <-rs.Messages:
			if !ok {
				if err := flush(); err != nil {
					return err
				}
				if err, ok := <-rs.Errors; ok && err != nil {
					return errors.Wrap(err, errors.TypeOf(err), "source read failed")
				}
				if ctx.Err() != nil {
					return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "sync cancelled")
				}
				return nil
			}

			switch msg.Type {
			case core.MessageTypeRecord:
				rec, err := p.transform(ctx, msg.Record)
				if err != nil {
					releaseAll(batch)
					return err
				}
				if rec == nil {
					continue
				}
				batch = append(batch, rec)
				if len(batch) >= p.cfg.BatchSize {
					if err := flush(); err != nil {
						return err
					}
				}

			case core.MessageTypeState:
				if err := flush(); err != nil {
					return err
				}
				if err := p.checkpoint(ctx, msg.Stream, msg.State); err != nil {
					return err
				}
			}

		case <-tick:
			if err := flush(); err != nil {
				return err
			}

		case <-ctx.Done():
			releaseAll(batch)
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "sync cancelled")
		}
	}
}

func (p *SyncPipeline) transform(ctx context.Context, rec *pool.Record) (*pool.Record, error) {
	p.mu.Lock()
	p.recordsRead++
	p.mu.Unlock()

	out := rec
	for i, t := range p.transforms {
		result, err := t(ctx, out)
		if err != nil {
			rec.Release()
			return nil, errors.Wrap(err, errors.ErrorTypeData, "transform failed").
				WithDetail("transform", i).
				WithDetail("record_id", rec.ID)
		}
		if result == nil {
			rec.Release()
			p.mu.Lock()
			p.recordsFiltered++
			p.mu.Unlock()
			return nil, nil
		}
		out = result
	}
	return out, nil
}

// write hands a batch to the destination and releases its records.
func (p *SyncPipeline) write(ctx context.Context, batch []*pool.Record) error {
	defer releaseAll(batch)

	if err := p.destination.Write(ctx, batch); err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "destination write failed").
			WithDetail("batch_size", len(batch))
	}

	p.mu.Lock()
	p.recordsWritten += int64(len(batch))
	p.batchesWritten++
	p.mu.Unlock()
	logger.WithContext(ctx, p.logger).Debug("batch written", zap.Int("records", len(batch)))
	return nil
}

// checkpoint makes written records durable, then persists the stream state.
func (p *SyncPipeline) checkpoint(ctx context.Context, stream string, ss core.StreamState) error {
	if err := p.destination.Flush(ctx); err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "destination flush failed").
			WithDetail("stream", stream)
	}

	p.mu.Lock()
	p.state[stream] = ss
	snapshot := p.state.Clone()
	p.streamsCompleted = append(p.streamsCompleted, stream)
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.Save(snapshot); err != nil {
			return errors.Wrap(err, errors.TypeOf(err), "failed to save state").
				WithDetail("stream", stream)
		}
		p.mu.Lock()
		p.statesSaved++
		p.mu.Unlock()
	}

	logger.WithContext(ctx, p.logger).Info("stream state saved", zap.String("stream", stream), zap.Any("state", ss))
	return nil
}

// State returns a copy of the state accumulated so far.
func (p *SyncPipeline) State() core.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone()
}

// Metrics returns pipeline metrics
func (p *SyncPipeline) Metrics() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	duration := p.duration
	if duration == 0 && !p.startTime.IsZero() {
		duration = time.Since(p.startTime)
	}
	_, pooled := pool.RecordPool.Stats()
	throughput := 0.0
	if duration > 0 {
		throughput = float64(p.recordsWritten) / duration.Seconds()
	}

	return map[string]interface{}{
		"records_read":      p.recordsRead,
		"records_written":   p.recordsWritten,
		"records_filtered":  p.recordsFiltered,
		"batches_written":   p.batchesWritten,
		"states_saved":      p.statesSaved,
		"streams_completed": append([]string(nil), p.streamsCompleted...),
		"duration":          duration.String(),
		"throughput_rps":    throughput,
		"batch_size":        p.cfg.BatchSize,
		"flush_interval_ms": p.cfg.FlushInterval.Milliseconds(),
		"transform_count":   len(p.transforms),
		"sync_id":           p.cfg.SyncID,
		"records_in_flight": pooled,
	}
}

func releaseAll(records []*pool.Record) {
	for _, r := range records {
		r.Release()
	}
}
