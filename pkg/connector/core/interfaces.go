// Package core defines the contracts between sources, destinations and the
// sync pipeline.
package core

import (
	"context"
	"time"

	"github.com/shayan-nathan/airbyte/pkg/config"
	"github.com/shayan-nathan/airbyte/pkg/pool"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource      ConnectorType = "source"
	ConnectorTypeDestination ConnectorType = "destination"
)

// SyncMode selects how a stream is read.
type SyncMode string

const (
	// SyncModeIncremental reads only records at or after the persisted cursor
	SyncModeIncremental SyncMode = "incremental"
	// SyncModeFullRefresh ignores persisted state and reads everything
	SyncModeFullRefresh SyncMode = "full_refresh"
)

// StreamState is the persisted state of one stream, for example
// {"last_edited_time": "2021-10-10T04:40:00.000Z"}.
type StreamState map[string]interface{}

// State is the persisted state of every stream, keyed by stream name.
type State map[string]StreamState

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := make(State, len(s))
	for stream, st := range s {
		cp := make(StreamState, len(st))
		for k, v := range st {
			cp[k] = v
		}
		out[stream] = cp
	}
	return out
}

// Field describes one top level field of a stream's records.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
	Nullable    bool      `json:"nullable"`
}

// FieldType represents the data type of a field
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeBool      FieldType = "bool"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeJSON      FieldType = "json"
)

// StreamDescriptor is the static description of a stream a source offers.
type StreamDescriptor struct {
	Name string `json:"name"`
	// SyncModes lists the modes the stream supports
	SyncModes []SyncMode `json:"sync_modes"`
	// CursorField is empty for full refresh only streams
	CursorField string   `json:"cursor_field,omitempty"`
	PrimaryKey  []string `json:"primary_key"`
	// Parent names the stream this one is sliced from
	Parent string  `json:"parent,omitempty"`
	Fields []Field `json:"fields"`
}

// SupportsIncremental reports whether the stream can be read incrementally.
func (d StreamDescriptor) SupportsIncremental() bool {
	for _, m := range d.SyncModes {
		if m == SyncModeIncremental {
			return true
		}
	}
	return false
}

// Catalog lists the streams of a source.
type Catalog struct {
	Streams []StreamDescriptor `json:"streams"`
}

// Stream returns the descriptor named name.
func (c *Catalog) Stream(name string) (StreamDescriptor, bool) {
	for _, s := range c.Streams {
		if s.Name == name {
			return s, true
		}
	}
	return StreamDescriptor{}, false
}

// ReadRequest selects what a Read call produces.
type ReadRequest struct {
	// Streams to read, in order. Empty means every stream in catalog order.
	Streams []string
	Mode    SyncMode
}

// MessageType distinguishes records from state checkpoints.
type MessageType string

const (
	MessageTypeRecord MessageType = "RECORD"
	MessageTypeState  MessageType = "STATE"
)

// Message is one item of a read: a record, or the final state of a stream
// emitted once every record of that stream has been sent.
type Message struct {
	Type   MessageType
	Stream string
	Record *pool.Record
	State  StreamState
}

// RecordStream is the output of Source.Read. Messages is closed when the
// read ends; a fatal error, if any, is then available on Errors.
type RecordStream struct {
	Messages <-chan *Message
	Errors   <-chan error
}

// Source is the interface that all source connectors must implement
type Source interface {
	Initialize(ctx context.Context, config *config.BaseConfig) error
	Discover(ctx context.Context) (*Catalog, error)
	Read(ctx context.Context, req ReadRequest) (*RecordStream, error)
	Close(ctx context.Context) error

	GetState() State
	SetState(state State) error

	SupportsIncremental() bool

	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// Destination is the interface that all destination connectors must implement
type Destination interface {
	Initialize(ctx context.Context, config *config.BaseConfig) error
	// Write persists a batch of records. The destination does not take
	// ownership of the records.
	Write(ctx context.Context, records []*pool.Record) error
	// Flush makes every record written so far durable.
	Flush(ctx context.Context) error
	Close(ctx context.Context) error

	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// HealthStatus represents the health status of a connector
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy", "degraded"
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details"`
	Error     error                  `json:"-"`
}

// ConnectorMetadata provides metadata about a connector
type ConnectorMetadata struct {
	Name         string        `json:"name"`
	Type         ConnectorType `json:"type"`
	Version      string        `json:"version"`
	Description  string        `json:"description"`
	Capabilities []string      `json:"capabilities"`
}
