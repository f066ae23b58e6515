// Package pool provides the pooled Record type that flows from sources
// through the sync pipeline into destinations, together with the generic
// Pool[T] it is built on.
//
//	record := pool.NewRecordFromPool("notion")
//	defer record.Release()
//	record.SetData("id", "b1")
package pool

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Pool is a type safe wrapper over sync.Pool with a reset hook and
// allocation statistics.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
	}
}

// New creates a pool. reset, when non-nil, runs before an object is put back.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object from the pool, allocating one when empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	return p.pool.Get().(T)
}

// Put resets obj and returns it to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns the number of objects ever allocated and currently checked out.
func (p *Pool[T]) Stats() (allocated, inUse int64) {
	return atomic.LoadInt64(&p.stats.allocated), atomic.LoadInt64(&p.stats.inUse)
}

// MetadataSlice is the custom metadata key naming the parent object a
// record was read under, for example the page of a block or comment.
const MetadataSlice = "slice"

// RecordMetadata describes where a record came from.
type RecordMetadata struct {
	// Source is the connector name
	Source string `json:"source,omitempty"`
	// StreamID is the stream the record belongs to (pages, blocks, ...)
	StreamID string `json:"stream_id,omitempty"`
	// Cursor is the record's cursor value, zero when the stream is full refresh
	Cursor time.Time `json:"cursor,omitempty"`
	// Timestamp is when the record was emitted
	Timestamp time.Time `json:"timestamp"`
	// Custom metadata fields for extensibility
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// Record is the unit of data exchanged between connectors.
type Record struct {
	ID       string                 `json:"id"`
	Data     map[string]interface{} `json:"data"`
	Metadata RecordMetadata         `json:"metadata"`
	// RawData keeps the original payload bytes when a source has them
	RawData []byte `json:"-"`
}

// RecordPool and MapPool back GetRecord and GetMap.
var (
	RecordPool = New(
		func() *Record {
			return &Record{Data: make(map[string]interface{}, 16)}
		},
		func(r *Record) {
			r.ID = ""
			r.RawData = nil
			for k := range r.Data {
				delete(r.Data, k)
			}
			r.Metadata = RecordMetadata{}
		},
	)

	MapPool = New(
		func() map[string]interface{} {
			return make(map[string]interface{}, 16)
		},
		func(m map[string]interface{}) {
			for k := range m {
				delete(m, k)
			}
		},
	)
)

var idCounter uint64

// GetRecord retrieves a Record with a fresh timestamp from the pool.
// Records must be returned with Release.
func GetRecord() *Record {
	r := RecordPool.Get()
	if r.Data == nil {
		r.Data = GetMap()
	}
	r.Metadata.Timestamp = time.Now().UTC()
	return r
}

// PutRecord returns a Record to the pool. Safe to call with nil.
func PutRecord(record *Record) {
	if record == nil {
		return
	}
	if record.Metadata.Custom != nil {
		PutMap(record.Metadata.Custom)
		record.Metadata.Custom = nil
	}
	RecordPool.Put(record)
}

// GetMap retrieves an empty map from the pool.
func GetMap() map[string]interface{} {
	return MapPool.Get()
}

// PutMap returns a map to the pool. Safe to call with nil.
func PutMap(m map[string]interface{}) {
	if m != nil {
		MapPool.Put(m)
	}
}

// GenerateID returns "prefix-N" where N is a process wide counter.
func GenerateID(prefix string) string {
	id := atomic.AddUint64(&idCounter, 1)
	return prefix + "-" + strconv.FormatUint(id, 10)
}

// NewRecordFromPool creates an empty record for source.
func NewRecordFromPool(source string) *Record {
	r := GetRecord()
	r.ID = GenerateID("rec")
	r.Metadata.Source = source
	return r
}

// SetData sets a data field in the record.
func (r *Record) SetData(key string, value interface{}) {
	if r.Data == nil {
		r.Data = GetMap()
	}
	r.Data[key] = value
}

// GetData retrieves a data field from the record.
func (r *Record) GetData(key string) (interface{}, bool) {
	if r.Data == nil {
		return nil, false
	}
	val, ok := r.Data[key]
	return val, ok
}

// SetMetadata sets a custom metadata field.
func (r *Record) SetMetadata(key string, value interface{}) {
	if r.Metadata.Custom == nil {
		r.Metadata.Custom = GetMap()
	}
	r.Metadata.Custom[key] = value
}

// GetMetadata retrieves a custom metadata field.
func (r *Record) GetMetadata(key string) (interface{}, bool) {
	if r.Metadata.Custom == nil {
		return nil, false
	}
	val, ok := r.Metadata.Custom[key]
	return val, ok
}

// GetTimestamp returns the record's timestamp.
func (r *Record) GetTimestamp() time.Time {
	return r.Metadata.Timestamp
}

// Release returns the record and its maps to the pools.
func (r *Record) Release() {
	PutRecord(r)
}
