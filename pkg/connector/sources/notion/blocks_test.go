package notion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shayan-nathan/airbyte/pkg/errors"
	jsonpool "github.com/shayan-nathan/airbyte/pkg/json"
)

// memTree serves block children from memory, one block per page so every
// listing paginates.
type memTree struct {
	t        *testing.T
	children map[string][]obj
	fail     map[string]error
	listed   []string
}

func (m *memTree) list(_ context.Context, id, cursor string) (*Page, error) {
	if cursor == "" {
		m.listed = append(m.listed, id)
	}
	if err, ok := m.fail[id]; ok {
		return nil, err
	}
	items := m.children[id]
	idx := 0
	if cursor != "" {
		_, err := fmt.Sscanf(cursor, "%d", &idx)
		require.NoError(m.t, err)
	}
	page := &Page{}
	if idx < len(items) {
		raw, err := jsonpool.Marshal(items[idx])
		require.NoError(m.t, err)
		page.Results = []jsonpool.RawMessage{raw}
	}
	if idx+1 < len(items) {
		next := fmt.Sprintf("%d", idx+1)
		page.NextCursor = &next
	}
	return page, nil
}

func walkIDs(t *testing.T, tr *Traverser, root string, floor time.Time) ([]string, error) {
	t.Helper()
	var ids []string
	err := tr.Walk(context.Background(), root, floor, func(o *Object) error {
		ids = append(ids, o.ID)
		return nil
	})
	return ids, err
}

func TestTraverserSubtreeBeforeSibling(t *testing.T) {
	//   root -> A -> A1
	//             -> A2 -> A2a
	//        -> B
	tree := &memTree{t: t, children: map[string][]obj{
		"root": {blockObj("A", true, ""), blockObj("B", false, "")},
		"A":    {blockObj("A1", false, ""), blockObj("A2", true, "")},
		"A2":   {blockObj("A2a", false, "")},
	}}
	tr := &Traverser{Children: tree.list}

	ids, err := walkIDs(t, tr, "root", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2a", "A2", "A", "B"}, ids)
	assert.Equal(t, []string{"root", "A", "A2"}, tree.listed)
}

func TestTraverserFloor(t *testing.T) {
	tree := &memTree{t: t, children: map[string][]obj{
		"root":  {blockObj("stale", true, "2020-01-01T00:00:00.000Z"), blockObj("undated", false, "")},
		"stale": {blockObj("fresh", false, "2022-01-01T00:00:00.000Z"), blockObj("old", false, "2020-06-01T00:00:00.000Z")},
	}}
	tr := &Traverser{Children: tree.list}

	ids, err := walkIDs(t, tr, "root", mustTime(t, "2021-01-01T00:00:00.000Z"))
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh", "undated"}, ids)
}

func TestTraverserBranchErrors(t *testing.T) {
	gone := fmt.Errorf("gone")
	tree := &memTree{t: t,
		children: map[string][]obj{"root": {blockObj("A", true, ""), blockObj("B", false, "")}},
		fail:     map[string]error{"A": gone},
	}

	var branches []string
	tr := &Traverser{
		Children: tree.list,
		OnBranchError: func(id string, err error) error {
			branches = append(branches, id)
			return nil
		},
	}
	ids, err := walkIDs(t, tr, "root", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids)
	assert.Equal(t, []string{"A"}, branches)

	tr.OnBranchError = nil
	_, err = walkIDs(t, tr, "root", time.Time{})
	assert.ErrorIs(t, err, gone)
}

func TestTraverserRootFailure(t *testing.T) {
	tree := &memTree{t: t, fail: map[string]error{"root": fmt.Errorf("missing")}}
	tr := &Traverser{Children: tree.list, OnBranchError: func(string, error) error { return nil }}

	ids, err := walkIDs(t, tr, "root", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestTraverserDeepChainRespectsBound(t *testing.T) {
	children := map[string][]obj{}
	for i := 0; i < 50; i++ {
		children[fmt.Sprintf("n%d", i)] = []obj{blockObj(fmt.Sprintf("n%d", i+1), true, "")}
	}
	tree := &memTree{t: t, children: children}
	tr := &Traverser{Children: tree.list}

	ids, err := walkIDs(t, tr, "n0", time.Time{})
	require.NoError(t, err)
	assert.Len(t, ids, DefaultMaxBlockDepth)
	assert.Len(t, tree.listed, DefaultMaxBlockDepth)
	assert.Equal(t, fmt.Sprintf("n%d", DefaultMaxBlockDepth), ids[0])
	assert.Equal(t, "n1", ids[len(ids)-1])
}

func TestTraverserEmitErrorStops(t *testing.T) {
	tree := &memTree{t: t, children: map[string][]obj{"root": {blockObj("A", false, ""), blockObj("B", false, "")}}}
	tr := &Traverser{Children: tree.list}
	stop := errors.New(errors.ErrorTypeTimeout, "read cancelled")

	n := 0
	err := tr.Walk(context.Background(), "root", time.Time{}, func(*Object) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}

func TestTraverserCancelled(t *testing.T) {
	tree := &memTree{t: t, children: map[string][]obj{"root": {blockObj("A", false, "")}}}
	tr := &Traverser{Children: tree.list}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Walk(ctx, "root", time.Time{}, func(*Object) error { return nil })
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	assert.Empty(t, tree.listed)
}
