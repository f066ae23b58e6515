package json

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shayan-nathan/airbyte/pkg/compression"
	"github.com/shayan-nathan/airbyte/pkg/config"
	"github.com/shayan-nathan/airbyte/pkg/errors"
	jsonpool "github.com/shayan-nathan/airbyte/pkg/json"
	"github.com/shayan-nathan/airbyte/pkg/pool"
	"github.com/shayan-nathan/airbyte/pkg/testutil"
)

func newRecord(stream, id string) *pool.Record {
	rec := pool.GetRecord()
	rec.ID = id
	rec.Metadata.StreamID = stream
	rec.Metadata.Timestamp = time.UnixMilli(1633841400000)
	rec.Data["id"] = id
	return rec
}

func openDestination(t *testing.T, cfg *config.BaseConfig) *JSONDestination {
	t.Helper()
	dst, err := NewJSONDestination(cfg)
	require.NoError(t, err)
	d := dst.(*JSONDestination)
	d.SetLogger(testutil.TestLogger(t))
	require.NoError(t, d.Initialize(context.Background(), cfg))
	return d
}

func fileConfig(t *testing.T, format string) *config.BaseConfig {
	cfg := config.NewBaseConfig("json-test", "json")
	cfg.Security.SetCredential(CredPath, filepath.Join(t.TempDir(), "out", "records.jsonl"))
	cfg.Security.SetCredential(CredFormat, format)
	return cfg
}

func decodeLines(t *testing.T, data []byte) []envelope {
	var out []envelope
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var env envelope
		require.NoError(t, jsonpool.Unmarshal(scanner.Bytes(), &env))
		out = append(out, env)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestWriteLines(t *testing.T) {
	ctx := context.Background()
	d := openDestination(t, fileConfig(t, "lines"))

	block := newRecord("blocks", "b1")
	block.SetMetadata(pool.MetadataSlice, "p1")
	records := []*pool.Record{newRecord("pages", "p1"), block}
	require.NoError(t, d.Write(ctx, records))
	require.NoError(t, d.Flush(ctx))

	data, err := os.ReadFile(d.Path())
	require.NoError(t, err)
	lines := decodeLines(t, data)
	require.Len(t, lines, 2)
	assert.Equal(t, "pages", lines[0].Stream)
	assert.Equal(t, int64(1633841400000), lines[0].EmittedAt)
	assert.Empty(t, lines[0].Slice)
	assert.Equal(t, "b1", lines[1].Data["id"])
	assert.Equal(t, "p1", lines[1].Slice)
	assert.NotContains(t, string(data[:bytes.IndexByte(data, '\n')]), `"slice"`)

	require.NoError(t, d.Close(ctx))
	require.NoError(t, d.Close(ctx))
	assert.Error(t, d.Write(ctx, records))
}

func TestWriteArray(t *testing.T) {
	ctx := context.Background()
	d := openDestination(t, fileConfig(t, "array"))

	require.NoError(t, d.Write(ctx, []*pool.Record{newRecord("pages", "p1")}))
	require.NoError(t, d.Write(ctx, []*pool.Record{newRecord("pages", "p2")}))
	require.NoError(t, d.Close(ctx))

	data, err := os.ReadFile(d.Path())
	require.NoError(t, err)
	var out []envelope
	require.NoError(t, jsonpool.Unmarshal(data, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "p2", out[1].Data["id"])
}

func TestCompressedOutput(t *testing.T) {
	for _, algo := range []compression.Algorithm{compression.Gzip, compression.Zstd, compression.LZ4} {
		t.Run(string(algo), func(t *testing.T) {
			ctx := context.Background()
			cfg := fileConfig(t, "lines")
			cfg.Advanced.EnableCompression = true
			cfg.Advanced.CompressionAlgorithm = string(algo)

			d := openDestination(t, cfg)
			assert.Equal(t, algo.Extension(), filepath.Ext(d.Path()))
			require.NoError(t, d.Write(ctx, []*pool.Record{newRecord("users", "u1")}))
			require.NoError(t, d.Close(ctx))

			raw, err := os.ReadFile(d.Path())
			require.NoError(t, err)
			data, err := compression.Decompress(raw, algo)
			require.NoError(t, err)
			lines := decodeLines(t, data)
			require.Len(t, lines, 1)
			assert.Equal(t, "users", lines[0].Stream)
		})
	}
}

func TestStdoutOutput(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewBaseConfig("json-stdout", "json")
	cfg.Security.SetCredential(CredPath, StdoutPath)

	dst, err := NewJSONDestination(cfg)
	require.NoError(t, err)
	d := dst.(*JSONDestination)
	var buf bytes.Buffer
	d.stdout = &buf
	require.NoError(t, d.Initialize(ctx, cfg))
	require.NoError(t, d.Health(ctx))

	require.NoError(t, d.Write(ctx, []*pool.Record{newRecord("comments", "c1")}))
	require.NoError(t, d.Flush(ctx))
	assert.Len(t, decodeLines(t, buf.Bytes()), 1)

	m := d.Metrics()
	assert.Equal(t, int64(1), m["records_written"])
	assert.Equal(t, "lines", m["format"])
	assert.Equal(t, int64(1), m["flushes"])
	require.NoError(t, d.Close(ctx))
	assert.Error(t, d.Health(ctx))
}

func TestInitializeErrors(t *testing.T) {
	ctx := context.Background()

	cfg := config.NewBaseConfig("json-bad", "json")
	dst, _ := NewJSONDestination(cfg)
	err := dst.Initialize(ctx, cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cfg = fileConfig(t, "csv")
	dst, _ = NewJSONDestination(cfg)
	err = dst.Initialize(ctx, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported format "csv"`)
}

func TestWriteCancelled(t *testing.T) {
	d := openDestination(t, fileConfig(t, "lines"))
	defer d.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Write(ctx, []*pool.Record{newRecord("pages", "p1")})
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
}
