// Package compression wraps output streams with gzip or zstd encoders from
// klauspost/compress, or lz4 frames from pierrec/lz4.
//
//	w, err := compression.NewWriter(file, compression.Zstd, 6)
//	...
//	defer w.Close()
package compression

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/shayan-nathan/airbyte/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None leaves the stream untouched
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
)

// ParseAlgorithm returns the Algorithm named s. The empty string is None.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "", None:
		return None, nil
	case Gzip, Zstd, LZ4:
		return a, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm %q", s)
	}
}

// Extension returns the file suffix conventionally used for a.
func (a Algorithm) Extension() string {
	switch a {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	}
	return ""
}

// NewWriter wraps w with an encoder for algo. level follows the gzip scale
// (1 fastest to 9 smallest); 0 selects the default. Closing the returned
// writer flushes the encoder but does not close w.
func NewWriter(w io.Writer, algo Algorithm, level int) (io.WriteCloser, error) {
	switch algo {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		if level == 0 {
			level = gzip.DefaultCompression
		}
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid gzip level")
		}
		return gw, nil
	case Zstd:
		opts := []zstd.EOption{}
		if level > 0 {
			opts = append(opts, zstd.WithEncoderLevel(zstdLevel(level)))
		}
		zw, err := zstd.NewWriter(w, opts...)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create zstd encoder")
		}
		return zw, nil
	case LZ4:
		lw := lz4.NewWriter(w)
		if level > 0 {
			if err := lw.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid lz4 level")
			}
		}
		return lw, nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm %q", algo)
}

// NewReader wraps r with a decoder for algo.
func NewReader(r io.Reader, algo Algorithm) (io.ReadCloser, error) {
	switch algo {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid gzip stream")
		}
		return gr, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid zstd stream")
		}
		return zr.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm %q", algo)
}

// Compress encodes data in memory.
func Compress(data []byte, algo Algorithm, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, algo, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress decodes data in memory.
func Decompress(data []byte, algo Algorithm) ([]byte, error) {
	r, err := NewReader(bytes.NewReader(data), algo)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// zstdLevel maps the gzip scale onto the four zstd encoder speeds.
func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 2:
		return zstd.SpeedFastest
	case level <= 5:
		return zstd.SpeedDefault
	case level <= 7:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// lz4Level maps the gzip scale onto the lz4 fast and high compression modes.
func lz4Level(level int) lz4.CompressionLevel {
	switch {
	case level <= 2:
		return lz4.Fast
	case level <= 7:
		return lz4.Level5
	default:
		return lz4.Level9
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
