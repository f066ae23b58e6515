package notion

import (
	"context"

	jsonpool "github.com/shayan-nathan/airbyte/pkg/json"
)

// FetchFunc fetches the page starting at cursor (empty for the first page)
// and returns its items and the cursor of the next page, empty on the last.
type FetchFunc[T any] func(ctx context.Context, cursor string) (items []T, next string, err error)

// Pager yields the items of a cursor paginated listing one at a time,
// fetching a page only when the previous one is consumed. A pager is used
// for a single pass; errors are sticky.
type Pager[T any] struct {
	fetch  FetchFunc[T]
	cursor string
	buf    []T
	pos    int
	pages  int
	done   bool
	err    error
}

// NewPager creates a pager over fetch.
func NewPager[T any](fetch FetchFunc[T]) *Pager[T] {
	return &Pager[T]{fetch: fetch}
}

// Next returns the next item. ok is false once the listing is exhausted or
// after an error.
func (p *Pager[T]) Next(ctx context.Context) (item T, ok bool, err error) {
	for p.pos >= len(p.buf) {
		if p.err != nil {
			return item, false, p.err
		}
		if p.done {
			return item, false, nil
		}

		items, next, err := p.fetch(ctx, p.cursor)
		if err != nil {
			p.err = err
			p.buf = nil
			return item, false, err
		}
		p.pages++
		p.buf, p.pos = items, 0
		p.cursor = next
		p.done = next == ""
	}

	item = p.buf[p.pos]
	p.pos++
	return item, true, nil
}

// Pages returns the number of pages fetched so far.
func (p *Pager[T]) Pages() int {
	return p.pages
}

// ForEach calls fn for every item. It stops at the first error returned by
// fn or by a fetch.
func (p *Pager[T]) ForEach(ctx context.Context, fn func(T) error) error {
	for {
		item, ok, err := p.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}

// pageFetch adapts a Client list call to a FetchFunc.
func pageFetch(call func(ctx context.Context, cursor string) (*Page, error)) FetchFunc[jsonpool.RawMessage] {
	return func(ctx context.Context, cursor string) ([]jsonpool.RawMessage, string, error) {
		page, err := call(ctx, cursor)
		if err != nil {
			return nil, "", err
		}
		return page.Results, page.Next(), nil
	}
}
