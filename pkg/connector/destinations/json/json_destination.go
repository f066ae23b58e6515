// Package json implements a destination writing records as JSON Lines or
// as a single JSON array, to a file or to stdout, optionally compressed.
package json

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/shayan-nathan/airbyte/pkg/compression"
	"github.com/shayan-nathan/airbyte/pkg/config"
	"github.com/shayan-nathan/airbyte/pkg/connector/base"
	"github.com/shayan-nathan/airbyte/pkg/connector/core"
	"github.com/shayan-nathan/airbyte/pkg/errors"
	jsonpool "github.com/shayan-nathan/airbyte/pkg/json"
	"github.com/shayan-nathan/airbyte/pkg/pool"
)

// Format is the layout of the output.
type Format string

const (
	// FormatLines writes one JSON object per line
	FormatLines Format = "lines"
	// FormatArray writes a single JSON array of objects
	FormatArray Format = "array"
)

// Credential keys read from SecurityConfig.Credentials.
const (
	CredPath   = "path"
	CredFormat = "format"
)

// StdoutPath selects standard output instead of a file.
const StdoutPath = "-"

// envelope is one output line. Slice is the parent object of child stream
// records.
type envelope struct {
	Stream    string                 `json:"stream"`
	Slice     string                 `json:"slice,omitempty"`
	EmittedAt int64                  `json:"emitted_at"`
	Data      map[string]interface{} `json:"data"`
}

// JSONDestination writes records to a JSON file
type JSONDestination struct {
	*base.BaseConnector

	path      string
	format    Format
	algorithm compression.Algorithm

	stdout     io.Writer
	file       *os.File
	compressor io.WriteCloser
	writer     *bufio.Writer
	encoder    *jsonpool.StreamingEncoder
	mu         sync.Mutex

	recordsWritten int64
	flushes        int64
}

// NewJSONDestination creates a JSON destination. It is opened by Initialize.
func NewJSONDestination(cfg *config.BaseConfig) (core.Destination, error) {
	name := "json"
	if cfg != nil && cfg.Name != "" {
		name = cfg.Name
	}
	return &JSONDestination{
		BaseConnector: base.NewBaseConnector(name, core.ConnectorTypeDestination, "1.0.0"),
		stdout:        os.Stdout,
	}, nil
}

// Initialize opens the output. The path credential is required; "-"
// writes to stdout. When compression is enabled the algorithm's extension
// is appended to the path.
func (d *JSONDestination) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if err := d.BaseConnector.Initialize(ctx, cfg); err != nil {
		return err
	}

	d.path = cfg.Security.Credential(CredPath, "")
	if d.path == "" {
		return errors.New(errors.ErrorTypeConfig, "missing required file path in security.credentials")
	}

	d.format = Format(cfg.Security.Credential(CredFormat, string(FormatLines)))
	if d.format != FormatLines && d.format != FormatArray {
		return errors.Newf(errors.ErrorTypeConfig, "unsupported format %q", d.format)
	}

	d.algorithm = compression.None
	if cfg.Advanced.IsCompressionEnabled() {
		algo, err := compression.ParseAlgorithm(cfg.Advanced.CompressionAlgorithm)
		if err != nil {
			return err
		}
		d.algorithm = algo
	}

	var out io.Writer = d.stdout
	if d.path != StdoutPath {
		if ext := d.algorithm.Extension(); ext != "" && !strings.HasSuffix(d.path, ext) {
			d.path += ext
		}
		if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory")
		}
		file, err := os.Create(d.path)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file")
		}
		d.file = file
		out = file
	}

	cw, err := compression.NewWriter(out, d.algorithm, cfg.Advanced.CompressionLevel)
	if err != nil {
		d.closeFile()
		return err
	}
	d.compressor = cw
	d.writer = bufio.NewWriterSize(cw, 64*1024)

	d.encoder, err = jsonpool.NewStreamingEncoder(d.writer, d.format == FormatArray)
	if err != nil {
		d.closeFile()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to start output")
	}

	d.GetLogger().Info("json destination opened",
		zap.String("path", d.path),
		zap.String("format", string(d.format)),
		zap.String("compression", string(d.algorithm)))
	return nil
}

// Write encodes records in order. The records stay owned by the caller.
func (d *JSONDestination) Write(ctx context.Context, records []*pool.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.encoder == nil {
		return errors.New(errors.ErrorTypeFile, "destination is not open")
	}

	perStream := make(map[string]int)
	defer func() {
		for stream, n := range perStream {
			d.GetMetricsCollector().RecordWritten(stream, n)
		}
	}()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTimeout, "write cancelled")
		}
		env := envelope{
			Stream:    rec.Metadata.StreamID,
			EmittedAt: rec.GetTimestamp().UnixMilli(),
			Data:      rec.Data,
		}
		if slice, ok := rec.GetMetadata(pool.MetadataSlice); ok {
			env.Slice, _ = slice.(string)
		}
		if err := d.encoder.Encode(env); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record")
		}
		perStream[rec.Metadata.StreamID]++
		atomic.AddInt64(&d.recordsWritten, 1)
	}
	return nil
}

// Flush pushes buffered output through the encoder to the file and syncs
// it.
func (d *JSONDestination) Flush(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushLocked()
}

func (d *JSONDestination) flushLocked() error {
	if d.writer == nil {
		return nil
	}
	if err := d.writer.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output")
	}
	if f, ok := d.compressor.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush compressor")
		}
	}
	if d.file != nil {
		if err := d.file.Sync(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to sync output")
		}
	}
	atomic.AddInt64(&d.flushes, 1)
	return nil
}

// Close terminates the output and closes the file. It is idempotent.
func (d *JSONDestination) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if d.encoder != nil {
		keep(d.encoder.Close())
		d.encoder = nil
	}
	if d.writer != nil {
		keep(d.writer.Flush())
		d.writer = nil
	}
	if d.compressor != nil {
		keep(d.compressor.Close())
		d.compressor = nil
	}
	keep(d.closeFile())
	keep(d.BaseConnector.Close(ctx))

	if firstErr != nil {
		return errors.Wrap(firstErr, errors.ErrorTypeFile, "failed to close output")
	}
	return nil
}

func (d *JSONDestination) closeFile() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// Path returns the output path, extension included.
func (d *JSONDestination) Path() string {
	return d.path
}

// Health reports an error when the output is not open.
func (d *JSONDestination) Health(ctx context.Context) error {
	d.mu.Lock()
	open := d.encoder != nil
	d.mu.Unlock()
	if !open {
		return errors.New(errors.ErrorTypeFile, "output not opened")
	}
	return d.BaseConnector.Health(ctx)
}

// Metrics returns metrics for the destination
func (d *JSONDestination) Metrics() map[string]interface{} {
	m := d.BaseConnector.Metrics()
	m["format"] = string(d.format)
	m["path"] = d.path
	m["compression"] = string(d.algorithm)
	m["records_written"] = atomic.LoadInt64(&d.recordsWritten)
	m["flushes"] = atomic.LoadInt64(&d.flushes)
	return m
}
