package pipeline

import (
	"context"

	"github.com/shayan-nathan/airbyte/pkg/pool"
)

// Transform modifies a record in flight. Returning a nil record drops it.
type Transform func(ctx context.Context, record *pool.Record) (*pool.Record, error)

// StreamFilterTransform keeps only records of the listed streams.
func StreamFilterTransform(streams ...string) Transform {
	keep := make(map[string]struct{}, len(streams))
	for _, s := range streams {
		keep[s] = struct{}{}
	}
	return FilterTransform(func(r *pool.Record) bool {
		_, ok := keep[r.Metadata.StreamID]
		return ok
	})
}

// FilterTransform drops records for which predicate returns false.
func FilterTransform(predicate func(*pool.Record) bool) Transform {
	return func(_ context.Context, record *pool.Record) (*pool.Record, error) {
		if predicate(record) {
			return record, nil
		}
		return nil, nil
	}
}

// DropFieldsTransform removes top level fields from every record, for
// example large rich text payloads that are not needed downstream.
func DropFieldsTransform(fields ...string) Transform {
	return func(_ context.Context, record *pool.Record) (*pool.Record, error) {
		for _, f := range fields {
			delete(record.Data, f)
		}
		return record, nil
	}
}

// FieldMapperTransform renames fields according to mapping. Unmapped
// fields are preserved.
func FieldMapperTransform(mapping map[string]string) Transform {
	return func(_ context.Context, record *pool.Record) (*pool.Record, error) {
		if record.Data == nil {
			return record, nil
		}
		moved := make(map[string]interface{}, len(mapping))
		for oldField, newField := range mapping {
			if value, ok := record.GetData(oldField); ok {
				moved[newField] = value
				delete(record.Data, oldField)
			}
		}
		for field, value := range moved {
			record.SetData(field, value)
		}
		return record, nil
	}
}
