package pool

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordReleaseClearsState(t *testing.T) {
	r := NewRecordFromPool("notion")
	r.SetData("id", "p1")
	r.SetMetadata(MetadataSlice, "s1")
	r.RawData = []byte(`{"id":"p1"}`)
	r.Release()

	fresh := GetRecord()
	defer fresh.Release()
	assert.Empty(t, fresh.ID)
	assert.Empty(t, fresh.Data)
	assert.Nil(t, fresh.RawData)
	_, ok := fresh.GetMetadata(MetadataSlice)
	assert.False(t, ok)
	assert.False(t, fresh.GetTimestamp().IsZero())
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := GenerateID("rec")
		require.True(t, strings.HasPrefix(id, "rec-"))
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestPoolStats(t *testing.T) {
	p := New(func() *int { v := 0; return &v }, func(v *int) { *v = 0 })
	v := p.Get()
	*v = 42
	_, inUse := p.Stats()
	assert.Equal(t, int64(1), inUse)

	p.Put(v)
	allocated, inUse := p.Stats()
	assert.Equal(t, int64(0), inUse)
	assert.GreaterOrEqual(t, allocated, int64(1))
	assert.Equal(t, 0, *v)
}
