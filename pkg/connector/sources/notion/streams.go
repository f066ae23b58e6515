package notion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shayan-nathan/airbyte/pkg/connector/core"
	jsonpool "github.com/shayan-nathan/airbyte/pkg/json"
)

// Stream names.
const (
	StreamPages     = "pages"
	StreamDatabases = "databases"
	StreamBlocks    = "blocks"
	StreamComments  = "comments"
	StreamUsers     = "users"
)

// Cursor fields.
const (
	CursorLastEdited     = "last_edited_time"
	CursorPageLastEdited = "page_last_edited_time"
)

var (
	incrementalModes = []core.SyncMode{core.SyncModeFullRefresh, core.SyncModeIncremental}
	fullRefreshModes = []core.SyncMode{core.SyncModeFullRefresh}
)

func commonFields() []core.Field {
	return []core.Field{
		{Name: "id", Type: core.FieldTypeString},
		{Name: "object", Type: core.FieldTypeString},
		{Name: "created_time", Type: core.FieldTypeTimestamp},
		{Name: "last_edited_time", Type: core.FieldTypeTimestamp},
		{Name: "created_by", Type: core.FieldTypeJSON, Nullable: true},
		{Name: "last_edited_by", Type: core.FieldTypeJSON, Nullable: true},
		{Name: "parent", Type: core.FieldTypeJSON},
		{Name: "archived", Type: core.FieldTypeBool},
	}
}

// readFunc reads one stream into run.
type readFunc func(ctx context.Context, run *streamRun) error

type streamDef struct {
	desc core.StreamDescriptor
	read readFunc
}

// streamDefs lists the streams in the order a full read visits them.
func streamDefs() []streamDef {
	return []streamDef{
		{
			desc: core.StreamDescriptor{
				Name:       StreamUsers,
				SyncModes:  fullRefreshModes,
				PrimaryKey: []string{"id"},
				Fields: []core.Field{
					{Name: "id", Type: core.FieldTypeString},
					{Name: "object", Type: core.FieldTypeString},
					{Name: "type", Type: core.FieldTypeString},
					{Name: "name", Type: core.FieldTypeString, Nullable: true},
					{Name: "avatar_url", Type: core.FieldTypeString, Nullable: true},
					{Name: "person", Type: core.FieldTypeJSON, Nullable: true},
					{Name: "bot", Type: core.FieldTypeJSON, Nullable: true},
				},
			},
			read: readUsers,
		},
		{
			desc: core.StreamDescriptor{
				Name:        StreamDatabases,
				SyncModes:   incrementalModes,
				CursorField: CursorLastEdited,
				PrimaryKey:  []string{"id"},
				Fields: append(commonFields(),
					core.Field{Name: "title", Type: core.FieldTypeJSON},
					core.Field{Name: "description", Type: core.FieldTypeJSON, Nullable: true},
					core.Field{Name: "properties", Type: core.FieldTypeJSON},
					core.Field{Name: "url", Type: core.FieldTypeString},
					core.Field{Name: "is_inline", Type: core.FieldTypeBool}),
			},
			read: readSearch(ObjectDatabase),
		},
		{
			desc: core.StreamDescriptor{
				Name:        StreamPages,
				SyncModes:   incrementalModes,
				CursorField: CursorLastEdited,
				PrimaryKey:  []string{"id"},
				Fields: append(commonFields(),
					core.Field{Name: "properties", Type: core.FieldTypeJSON},
					core.Field{Name: "icon", Type: core.FieldTypeJSON, Nullable: true},
					core.Field{Name: "cover", Type: core.FieldTypeJSON, Nullable: true},
					core.Field{Name: "url", Type: core.FieldTypeString}),
			},
			read: readSearch(ObjectPage),
		},
		{
			desc: core.StreamDescriptor{
				Name:        StreamBlocks,
				SyncModes:   incrementalModes,
				CursorField: CursorLastEdited,
				PrimaryKey:  []string{"id"},
				Parent:      StreamPages,
				Fields: append(commonFields(),
					core.Field{Name: "type", Type: core.FieldTypeString},
					core.Field{Name: "has_children", Type: core.FieldTypeBool}),
			},
			read: readBlocks,
		},
		{
			desc: core.StreamDescriptor{
				Name:        StreamComments,
				SyncModes:   incrementalModes,
				CursorField: CursorPageLastEdited,
				PrimaryKey:  []string{"id"},
				Parent:      StreamPages,
				Fields: []core.Field{
					{Name: "id", Type: core.FieldTypeString},
					{Name: "object", Type: core.FieldTypeString},
					{Name: "parent", Type: core.FieldTypeJSON},
					{Name: "discussion_id", Type: core.FieldTypeString},
					{Name: "created_time", Type: core.FieldTypeTimestamp},
					{Name: "last_edited_time", Type: core.FieldTypeTimestamp},
					{Name: "created_by", Type: core.FieldTypeJSON},
					{Name: "rich_text", Type: core.FieldTypeJSON},
					{Name: CursorPageLastEdited, Type: core.FieldTypeTimestamp},
				},
			},
			read: readComments,
		},
	}
}

// newCatalog describes every stream of the source.
func newCatalog(defs []streamDef) *core.Catalog {
	c := &core.Catalog{Streams: make([]core.StreamDescriptor, len(defs))}
	for i, d := range defs {
		c.Streams[i] = d.desc
	}
	return c
}

// readSearch reads pages or databases, newest first, keeping those edited
// at or after the floor.
func readSearch(object string) readFunc {
	return func(ctx context.Context, run *streamRun) error {
		pager := NewPager(pageFetch(func(ctx context.Context, cursor string) (*Page, error) {
			return run.client.Search(ctx, object, cursor)
		}))
		err := pager.ForEach(ctx, func(raw jsonpool.RawMessage) error {
			obj, err := decodeObject(raw)
			if err != nil {
				return err
			}
			if !obj.Fresh(run.floor()) {
				return nil
			}
			t, _ := obj.EditedAt()
			return run.emit(ctx, obj, "", nil, t)
		})
		run.logger.Debug("search finished", zap.Int("pages", pager.Pages()))
		return run.recover(err)
	}
}

// parentPage is one slice of a child stream.
type parentPage struct {
	ID             string
	LastEditedTime string
	editedAt       time.Time
	hasTime        bool
}

// parentPages lists every page shared with the integration, regardless of
// state. A rejected cursor ends the listing with the pages gathered so far.
func parentPages(ctx context.Context, run *streamRun) ([]parentPage, error) {
	var pages []parentPage
	pager := NewPager(pageFetch(func(ctx context.Context, cursor string) (*Page, error) {
		return run.client.Search(ctx, ObjectPage, cursor)
	}))
	err := pager.ForEach(ctx, func(raw jsonpool.RawMessage) error {
		obj, err := decodeObject(raw)
		if err != nil {
			return err
		}
		t, ok := obj.EditedAt()
		pages = append(pages, parentPage{ID: obj.ID, LastEditedTime: obj.LastEditedTime, editedAt: t, hasTime: ok})
		return nil
	})
	if err := run.recover(err); err != nil {
		return nil, err
	}
	return pages, nil
}

// readBlocks walks the block tree of every page.
func readBlocks(ctx context.Context, run *streamRun) error {
	pages, err := parentPages(ctx, run)
	if err != nil {
		return err
	}

	t := &Traverser{
		Children: run.client.BlockChildren,
		MaxDepth: run.settings.MaxBlockDepth,
		OnBranchError: func(blockID string, err error) error {
			return run.recover(err, zap.String("block_id", blockID))
		},
		Logger: run.logger,
	}
	for _, p := range pages {
		pageID := p.ID
		err := t.Walk(ctx, pageID, run.floor(), func(obj *Object) error {
			ts, _ := obj.EditedAt()
			return run.emit(ctx, obj, pageID, nil, ts)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// readComments reads the comments of every page edited at or after the
// floor. Each comment carries the page's last_edited_time, which is the
// stream cursor.
func readComments(ctx context.Context, run *streamRun) error {
	pages, err := parentPages(ctx, run)
	if err != nil {
		return err
	}

	for _, p := range pages {
		if p.hasTime && p.editedAt.Before(run.floor()) {
			continue
		}
		extra := map[string]interface{}{CursorPageLastEdited: p.LastEditedTime}
		blockID := p.ID
		pager := NewPager(pageFetch(func(ctx context.Context, cursor string) (*Page, error) {
			return run.client.Comments(ctx, blockID, cursor)
		}))
		err := pager.ForEach(ctx, func(raw jsonpool.RawMessage) error {
			obj, err := decodeObject(raw)
			if err != nil {
				return err
			}
			return run.emit(ctx, obj, blockID, extra, p.editedAt)
		})
		if err := run.recover(err, zap.String("block_id", blockID)); err != nil {
			return err
		}
	}
	return nil
}

// readUsers reads every workspace user.
func readUsers(ctx context.Context, run *streamRun) error {
	pager := NewPager(pageFetch(run.client.Users))
	err := pager.ForEach(ctx, func(raw jsonpool.RawMessage) error {
		obj, err := decodeObject(raw)
		if err != nil {
			return err
		}
		return run.emit(ctx, obj, "", nil, time.Time{})
	})
	return run.recover(err)
}
