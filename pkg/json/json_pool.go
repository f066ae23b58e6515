// Package json wraps goccy/go-json with pooled buffers and a streaming
// encoder for JSON Lines and array output.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// RawMessage is a raw encoded JSON value.
type RawMessage = gojson.RawMessage

// Number is a JSON number literal preserved as text.
type Number = gojson.Number

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetEncoder returns an encoder writing to w with HTML escaping disabled.
func GetEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// GetDecoder returns a decoder reading from r. Numbers decoded into
// interface{} values are kept as Number so large integers survive.
func GetDecoder(r io.Reader) *gojson.Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > 1024*1024 {
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for encoding/json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is a drop-in replacement for encoding/json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Decode reads a single JSON value from r into v.
func Decode(r io.Reader, v interface{}) error {
	return GetDecoder(r).Decode(v)
}

// StreamingEncoder writes values one at a time either as JSON Lines or as
// the elements of a single JSON array.
type StreamingEncoder struct {
	writer  io.Writer
	isArray bool
	count   int
	closed  bool
}

// NewStreamingEncoder creates a streaming encoder. In array mode the opening
// bracket is written immediately.
func NewStreamingEncoder(w io.Writer, isArray bool) (*StreamingEncoder, error) {
	se := &StreamingEncoder{writer: w, isArray: isArray}
	if isArray {
		if _, err := w.Write([]byte{'['}); err != nil {
			return nil, err
		}
	}
	return se, nil
}

// Encode encodes a single value
func (se *StreamingEncoder) Encode(v interface{}) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if se.isArray && se.count > 0 {
		buf.WriteByte(',')
	}
	if err := GetEncoder(buf).Encode(v); err != nil {
		return err
	}
	if se.isArray {
		// Encode appends a newline; inside an array it is dropped
		buf.Truncate(buf.Len() - 1)
	}

	if _, err := se.writer.Write(buf.Bytes()); err != nil {
		return err
	}
	se.count++
	return nil
}

// Count returns the number of values encoded so far.
func (se *StreamingEncoder) Count() int {
	return se.count
}

// Close writes the closing bracket in array mode. It is idempotent.
func (se *StreamingEncoder) Close() error {
	if se.closed {
		return nil
	}
	se.closed = true
	if se.isArray {
		_, err := se.writer.Write([]byte{']', '\n'})
		return err
	}
	return nil
}
