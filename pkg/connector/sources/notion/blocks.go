package notion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shayan-nathan/airbyte/pkg/errors"
	jsonpool "github.com/shayan-nathan/airbyte/pkg/json"
)

// Block kinds that are separate pages or databases. They are read by their
// own streams and never expanded as blocks.
var excludedKinds = map[string]bool{
	"child_page":     true,
	"child_database": true,
}

// Object is the part of a Notion object the connector interprets. Raw
// holds the complete payload.
type Object struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	HasChildren    bool   `json:"has_children"`
	LastEditedTime string `json:"last_edited_time"`

	Raw jsonpool.RawMessage `json:"-"`
}

// decodeObject decodes the header fields of raw.
func decodeObject(raw jsonpool.RawMessage) (*Object, error) {
	obj := &Object{}
	if err := jsonpool.Unmarshal(raw, obj); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode object")
	}
	obj.Raw = raw
	return obj, nil
}

// EditedAt returns the parsed last_edited_time. ok is false when the field
// is absent or malformed.
func (o *Object) EditedAt() (t time.Time, ok bool) {
	if o.LastEditedTime == "" {
		return time.Time{}, false
	}
	t, err := ParseTime(o.LastEditedTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Fresh reports whether o passes the incremental filter. Objects without
// a usable timestamp are kept.
func (o *Object) Fresh(floor time.Time) bool {
	t, ok := o.EditedAt()
	return !ok || !t.Before(floor)
}

// ChildrenFunc lists the children of a block, one page per call.
type ChildrenFunc func(ctx context.Context, blockID, cursor string) (*Page, error)

// BranchHandler decides what a failed listing means. It returns nil when
// only the branch is lost and the walk can go on, or the error that must
// stop the walk.
type BranchHandler func(blockID string, err error) error

// frame is a block whose children are being listed. node is nil for the
// root, which is a page and not emitted.
type frame struct {
	node  *Object
	pager *Pager[jsonpool.RawMessage]
}

// Traverser walks block trees depth first over an explicit stack of frames.
type Traverser struct {
	Children ChildrenFunc
	// MaxDepth bounds the number of frames on the stack, root included.
	// Blocks at the bound are emitted without listing their children.
	MaxDepth int
	// OnBranchError defaults to failing the walk on any error
	OnBranchError BranchHandler
	Logger        *zap.Logger
}

func (t *Traverser) push(stack []*frame, id string, node *Object) []*frame {
	fetch := pageFetch(func(ctx context.Context, cursor string) (*Page, error) {
		return t.Children(ctx, id, cursor)
	})
	return append(stack, &frame{node: node, pager: NewPager(fetch)})
}

// Walk visits every block under rootID in post-order: a block is emitted
// after all of its descendants, and the subtree of a block is finished
// before its next sibling is read. Blocks of excluded kinds are skipped
// with their subtrees. Blocks edited before floor are not emitted, but
// their children are still visited.
func (t *Traverser) Walk(ctx context.Context, rootID string, floor time.Time, emit func(*Object) error) error {
	maxDepth := t.MaxDepth
	if maxDepth < 1 {
		maxDepth = DefaultMaxBlockDepth
	}

	stack := t.push(nil, rootID, nil)
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTimeout, "block traversal cancelled")
		}

		top := stack[len(stack)-1]
		raw, ok, err := top.pager.Next(ctx)
		if err != nil {
			if ferr := t.branchError(frameID(top, rootID), err); ferr != nil {
				return ferr
			}
			ok = false
		}

		if !ok {
			stack = stack[:len(stack)-1]
			if top.node != nil && top.node.Fresh(floor) {
				if err := emit(top.node); err != nil {
					return err
				}
			}
			continue
		}

		child, err := decodeObject(raw)
		if err != nil {
			return err
		}
		if excludedKinds[child.Type] {
			continue
		}

		if child.HasChildren {
			if len(stack) < maxDepth {
				stack = t.push(stack, child.ID, child)
				continue
			}
			if t.Logger != nil {
				t.Logger.Debug("max block depth reached",
					zap.String("block_id", child.ID), zap.Int("max_depth", maxDepth))
			}
		}

		if child.Fresh(floor) {
			if err := emit(child); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Traverser) branchError(blockID string, err error) error {
	if t.OnBranchError == nil {
		return err
	}
	return t.OnBranchError(blockID, err)
}

func frameID(f *frame, rootID string) string {
	if f.node == nil {
		return rootID
	}
	return f.node.ID
}
