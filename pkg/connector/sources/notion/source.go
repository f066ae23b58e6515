// Package notion implements a source connector for the Notion REST API.
//
// It reads five streams: users (full refresh) plus databases, pages, blocks
// and comments (incremental on last_edited_time). Blocks are read by walking
// the block tree of every page. The cursor of an incremental stream only
// moves forward once the whole stream has been read, and the new value is
// emitted as a STATE message after the last record of the stream.
package notion

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shayan-nathan/airbyte/pkg/config"
	"github.com/shayan-nathan/airbyte/pkg/connector/base"
	"github.com/shayan-nathan/airbyte/pkg/connector/core"
	"github.com/shayan-nathan/airbyte/pkg/errors"
	jsonpool "github.com/shayan-nathan/airbyte/pkg/json"
	"github.com/shayan-nathan/airbyte/pkg/logger"
	"github.com/shayan-nathan/airbyte/pkg/metrics"
	"github.com/shayan-nathan/airbyte/pkg/observability"
	"github.com/shayan-nathan/airbyte/pkg/pool"
)

// Version of the connector.
const Version = "1.0.0"

// Source reads Notion workspaces.
type Source struct {
	*base.BaseConnector

	settings *Settings
	client   *Client
	defs     []streamDef
	catalog  *core.Catalog
}

// NewSource creates an uninitialized Notion source.
func NewSource(name string) *Source {
	defs := streamDefs()
	return &Source{
		BaseConnector: base.NewBaseConnector(name, core.ConnectorTypeSource, Version),
		defs:          defs,
		catalog:       newCatalog(defs),
	}
}

// Initialize validates cfg and builds the API client.
func (s *Source) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if err := s.BaseConnector.Initialize(ctx, cfg); err != nil {
		return err
	}

	settings, err := ParseSettings(cfg)
	if err != nil {
		return err
	}
	s.settings = settings

	collector := s.GetMetricsCollector()
	retry := s.GetRetryPolicy().Clone()
	retry.OnRetry = func(_ int, d base.Decision) {
		collector.RecordRetry(d.Reason)
	}
	s.SetRetryPolicy(retry)

	s.client = NewClient(settings, cfg, retry, s.GetLogger(), collector)
	s.client.observe = s.ObserveRequest

	s.GetLogger().Info("notion source initialized",
		zap.String("base_url", settings.BaseURL),
		zap.String("notion_version", settings.NotionVersion),
		zap.String("start_date", FormatTime(settings.StartDate)),
		zap.Int("max_block_depth", settings.MaxBlockDepth))
	return nil
}

// Discover returns the static catalog of the source.
func (s *Source) Discover(_ context.Context) (*core.Catalog, error) {
	return s.catalog, nil
}

// SupportsIncremental returns true.
func (s *Source) SupportsIncremental() bool {
	return true
}

// Read starts reading the requested streams in order on a single
// goroutine. Per-stream state is taken from GetState at the start of each
// stream and updated when the stream ends.
func (s *Source) Read(ctx context.Context, req core.ReadRequest) (*core.RecordStream, error) {
	if s.client == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "source not initialized")
	}

	defs, err := s.selectStreams(req.Streams)
	if err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = core.SyncModeIncremental
	}

	msgs := make(chan *core.Message, s.GetConfig().Performance.BufferSize)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(msgs)

		for _, def := range defs {
			if err := s.readStream(ctx, def, mode, msgs); err != nil {
				errs <- s.GetErrorHandler().HandleFatal(err, zap.String("stream", def.desc.Name))
				return
			}
		}
	}()

	return &core.RecordStream{Messages: msgs, Errors: errs}, nil
}

// Close releases the HTTP client.
func (s *Source) Close(ctx context.Context) error {
	if s.client != nil {
		_ = s.client.Close()
	}
	return s.BaseConnector.Close(ctx)
}

func (s *Source) selectStreams(names []string) ([]streamDef, error) {
	if len(names) == 0 {
		return s.defs, nil
	}
	byName := make(map[string]streamDef, len(s.defs))
	for _, d := range s.defs {
		byName[d.desc.Name] = d
	}
	out := make([]streamDef, 0, len(names))
	for _, n := range names {
		d, ok := byName[n]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "unknown stream %q", n)
		}
		out = append(out, d)
	}
	return out, nil
}

// floor is the earliest last_edited_time a stream read keeps: the later of
// the configured start date and the persisted cursor. Full refresh and
// full refresh only streams ignore the persisted cursor.
func (s *Source) floor(desc core.StreamDescriptor, mode core.SyncMode) time.Time {
	floor := s.settings.StartDate
	if mode != core.SyncModeIncremental || !desc.SupportsIncremental() {
		return floor
	}
	raw, ok := s.StreamState(desc.Name)[desc.CursorField].(string)
	if !ok {
		return floor
	}
	persisted, err := ParseTime(raw)
	if err != nil {
		s.GetLogger().Warn("ignoring unparsable stream state",
			zap.String("stream", desc.Name), zap.String("value", raw), zap.Error(err))
		return floor
	}
	if persisted.After(floor) {
		return persisted
	}
	return floor
}

func (s *Source) readStream(ctx context.Context, def streamDef, mode core.SyncMode, out chan<- *core.Message) (err error) {
	name := def.desc.Name
	ctx, span := observability.StartSpan(ctx, "notion.read_stream",
		observability.AttrConnector.String(s.Name()),
		observability.AttrStream.String(name))
	ctx = context.WithValue(ctx, logger.StreamKey, name)
	timer := metrics.NewTimer(name)
	progress := s.GetProgressReporter()

	run := &streamRun{
		name:      name,
		source:    s.Name(),
		client:    s.client,
		settings:  s.settings,
		watermark: NewWatermark(s.floor(def.desc, mode)),
		out:       out,
		logger:    logger.WithContext(ctx, s.GetLogger()),
		progress:  progress,
		collector: s.GetMetricsCollector(),
		errors:    s.GetErrorHandler(),
	}

	run.logger.Info("reading stream",
		zap.String("mode", string(mode)),
		zap.String("floor", FormatTime(run.watermark.Floor())))
	progress.StartStream(name)

	defer func() {
		n := progress.FinishStream(name)
		span.SetAttributes(observability.AttrRecords.Int64(n))
		s.GetMetricsCollector().ObserveStream(name, timer.Stop())
		observability.EndSpan(span, err)
	}()

	if err := def.read(ctx, run); err != nil {
		return err
	}

	if mode != core.SyncModeIncremental || !def.desc.SupportsIncremental() {
		return nil
	}
	if run.truncated {
		run.logger.Warn("stream listing was cut short, keeping cursor at floor",
			zap.String("floor", FormatTime(run.watermark.Floor())))
	} else {
		run.watermark.MarkFinished()
	}
	st := core.StreamState{def.desc.CursorField: FormatTime(run.watermark.Value())}
	s.SetStreamState(name, st)
	return run.send(ctx, &core.Message{Type: core.MessageTypeState, Stream: name, State: st})
}

// streamRun is the state of one stream read. It is confined to the read
// goroutine.
type streamRun struct {
	name      string
	source    string
	client    *Client
	settings  *Settings
	watermark *Watermark
	// truncated is set once a rejected cursor ended a listing early
	truncated bool
	out       chan<- *core.Message
	logger    *zap.Logger
	progress  *base.ProgressReporter
	collector *metrics.Collector
	errors    *base.ErrorHandler
}

// floor is the lower bound records of the stream are filtered against.
func (r *streamRun) floor() time.Time {
	return r.watermark.Floor()
}

// emit sends obj as a record. extra fields are added to the payload, slice
// names the parent the object was read under and a non-zero cursor advances
// the watermark.
func (r *streamRun) emit(ctx context.Context, obj *Object, slice string, extra map[string]interface{}, cursor time.Time) error {
	rec := pool.NewRecordFromPool(r.source)
	if err := jsonpool.Decode(bytes.NewReader(obj.Raw), &rec.Data); err != nil {
		rec.Release()
		return errors.Wrap(err, errors.ErrorTypeData, "failed to decode "+r.name+" record")
	}
	for k, v := range extra {
		rec.SetData(k, v)
	}
	if obj.ID != "" {
		rec.ID = obj.ID
	}
	if slice != "" {
		rec.SetMetadata(pool.MetadataSlice, slice)
	}
	rec.RawData = obj.Raw
	rec.Metadata.StreamID = r.name
	rec.Metadata.Cursor = cursor

	if err := r.send(ctx, &core.Message{Type: core.MessageTypeRecord, Stream: r.name, Record: rec}); err != nil {
		rec.Release()
		return err
	}
	if !cursor.IsZero() {
		r.watermark.Advance(cursor)
	}
	r.collector.RecordEmitted(r.name)
	r.progress.Increment(r.name)
	return nil
}

func (r *streamRun) send(ctx context.Context, msg *core.Message) error {
	select {
	case r.out <- msg:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "read cancelled")
	}
}

// recover swallows err when it only costs the current branch: the failure
// is logged and counted, and nil is returned. Any other error is returned.
func (r *streamRun) recover(err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	reason := branchReason(err)
	if reason == "" {
		return err
	}

	apiErr, _ := asAPIError(err)
	msg := fmt.Sprintf("Stream %s: %s", r.name, apiErr.Message)
	if reason == reasonInvalidCursor {
		msg = fmt.Sprintf("Skipping stream %s, error message: %s", r.name, apiErr.Message)
	}
	if reason == reasonInvalidCursor {
		r.truncated = true
	}
	r.errors.HandleSkipped(err, msg, fields...)
	r.collector.RecordAbandoned(r.name, reason)
	return nil
}
