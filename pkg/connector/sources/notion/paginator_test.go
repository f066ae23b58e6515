package notion

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagerIsLazy(t *testing.T) {
	var cursors []string
	pages := map[string][]int{"": {1, 2}, "c1": {}, "c2": {3}}
	next := map[string]string{"": "c1", "c1": "c2", "c2": ""}

	p := NewPager(func(_ context.Context, cursor string) ([]int, string, error) {
		cursors = append(cursors, cursor)
		return pages[cursor], next[cursor], nil
	})
	ctx := context.Background()

	item, ok, err := p.Next(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, item)
	assert.Equal(t, 1, p.Pages())

	var rest []int
	require.NoError(t, p.ForEach(ctx, func(i int) error {
		rest = append(rest, i)
		return nil
	}))
	assert.Equal(t, []int{2, 3}, rest)
	assert.Equal(t, []string{"", "c1", "c2"}, cursors)

	_, ok, err = p.Next(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, p.Pages())
}

func TestPagerErrorIsSticky(t *testing.T) {
	calls := 0
	boom := fmt.Errorf("boom")
	p := NewPager(func(_ context.Context, cursor string) ([]string, string, error) {
		calls++
		if cursor == "" {
			return []string{"a"}, "next", nil
		}
		return nil, "", boom
	})

	var seen []string
	err := p.ForEach(context.Background(), func(s string) error {
		seen = append(seen, s)
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, seen)

	_, ok, err := p.Next(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestPagerStopsOnCallbackError(t *testing.T) {
	p := NewPager(func(context.Context, string) ([]int, string, error) {
		return []int{1, 2, 3}, "", nil
	})
	stop := fmt.Errorf("stop")
	n := 0
	err := p.ForEach(context.Background(), func(int) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}

func TestPageNext(t *testing.T) {
	cursor := "abc"
	yes, no := true, false

	assert.Equal(t, "", (&Page{}).Next())
	assert.Equal(t, "abc", (&Page{NextCursor: &cursor}).Next())
	assert.Equal(t, "abc", (&Page{NextCursor: &cursor, HasMore: &yes}).Next())
	assert.Equal(t, "", (&Page{NextCursor: &cursor, HasMore: &no}).Next())
}
