package notion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shayan-nathan/airbyte/pkg/config"
	"github.com/shayan-nathan/airbyte/pkg/connector/base"
	"github.com/shayan-nathan/airbyte/pkg/connector/core"
	jsonpool "github.com/shayan-nathan/airbyte/pkg/json"
	"github.com/shayan-nathan/airbyte/pkg/testutil"
)

type obj = map[string]interface{}

type failure struct {
	status     int
	code       string
	message    string
	retryAfter string
	// times is how many calls fail before the endpoint recovers, 0 for all
	times int
}

// fakeAPI serves the subset of the Notion API the source calls. Listings
// are split into pages of pageSize items with the offset as cursor.
type fakeAPI struct {
	mu       sync.Mutex
	pageSize int
	search   map[string][]obj
	children map[string][]obj
	comments map[string][]obj
	users    []obj
	fail     map[string]failure

	calls   map[string]int
	bodies  []searchRequest
	headers http.Header
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		pageSize: 2,
		search:   map[string][]obj{},
		children: map[string][]obj{},
		comments: map[string][]obj{},
		fail:     map[string]failure{},
		calls:    map[string]int{},
	}
}

func (f *fakeAPI) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers = r.Header.Clone()

	var (
		key    string
		items  []obj
		cursor = r.URL.Query().Get("start_cursor")
		path   = r.URL.Path
	)
	switch {
	case r.Method == http.MethodPost && path == "/v1/search":
		var body searchRequest
		if err := jsonpool.Decode(r.Body, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.bodies = append(f.bodies, body)
		key, items, cursor = "search:"+body.Filter.Value, f.search[body.Filter.Value], body.StartCursor
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/v1/blocks/") && strings.HasSuffix(path, "/children"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/v1/blocks/"), "/children")
		key, items = "children:"+id, f.children[id]
	case r.Method == http.MethodGet && path == "/v1/comments":
		id := r.URL.Query().Get("block_id")
		key, items = "comments:"+id, f.comments[id]
	case r.Method == http.MethodGet && path == "/v1/users":
		key, items = "users", f.users
	default:
		http.NotFound(w, r)
		return
	}

	f.calls[key]++
	if fl, ok := f.fail[key]; ok && (fl.times == 0 || f.calls[key] <= fl.times) {
		if fl.retryAfter != "" {
			w.Header().Set("Retry-After", fl.retryAfter)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fl.status)
		_ = jsonpool.GetEncoder(w).Encode(obj{
			"object": "error", "status": fl.status, "code": fl.code, "message": fl.message,
		})
		return
	}

	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := min(start+f.pageSize, len(items))
	resp := obj{
		"object":      "list",
		"results":     append([]obj{}, items[start:end]...),
		"has_more":    end < len(items),
		"next_cursor": nil,
	}
	if end < len(items) {
		resp["next_cursor"] = strconv.Itoa(end)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = jsonpool.GetEncoder(w).Encode(resp)
}

type harness struct {
	api    *fakeAPI
	source *Source
	sleeps *testutil.SleepRecorder
	logs   *observer.ObservedLogs
}

// newHarness starts a fake API and an initialized source pointed at it.
// creds override the default credentials.
func newHarness(t *testing.T, api *fakeAPI, creds map[string]string) *harness {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := config.NewBaseConfig("notion", "notion")
	cfg.Reliability.RateLimitPerSec = 0
	cfg.Security.SetCredential(CredToken, "secret")
	cfg.Security.SetCredential(CredBaseURL, srv.URL)
	cfg.Security.SetCredential(CredStartDate, "2021-01-01T00:00:00.000Z")
	for k, v := range creds {
		cfg.Security.SetCredential(k, v)
	}

	h := &harness{api: api, source: NewSource("notion"), sleeps: &testutil.SleepRecorder{}}
	log, logs := testutil.ObservedLogger()
	h.logs = logs
	h.source.SetLogger(log)
	h.source.SetRetryPolicy(base.RetryPolicyFromConfig(cfg.Reliability).WithSleep(h.sleeps.Sleep))
	require.NoError(t, h.source.Initialize(context.Background(), cfg))
	t.Cleanup(func() { _ = h.source.Close(context.Background()) })
	return h
}

func (h *harness) read(t *testing.T, mode core.SyncMode, streams ...string) ([]*core.Message, error) {
	t.Helper()
	rs, err := h.source.Read(context.Background(), core.ReadRequest{Streams: streams, Mode: mode})
	require.NoError(t, err)
	return drain(rs)
}

func drain(rs *core.RecordStream) ([]*core.Message, error) {
	var msgs []*core.Message
	for m := range rs.Messages {
		msgs = append(msgs, m)
	}
	return msgs, <-rs.Errors
}

func (h *harness) waitMessages() []string {
	var out []string
	for _, m := range testutil.Messages(h.logs) {
		if strings.HasPrefix(m, "Waiting ") {
			out = append(out, m)
		}
	}
	return out
}

func recordIDs(msgs []*core.Message) []string {
	var ids []string
	for _, m := range msgs {
		if m.Type == core.MessageTypeRecord {
			ids = append(ids, m.Record.ID)
		}
	}
	return ids
}

func stateOf(msgs []*core.Message, stream string) core.StreamState {
	for _, m := range msgs {
		if m.Type == core.MessageTypeState && m.Stream == stream {
			return m.State
		}
	}
	return nil
}

func blockObj(id string, hasChildren bool, edited string) obj {
	return obj{"object": "block", "id": id, "type": "heading_1", "has_children": hasChildren, "last_edited_time": edited}
}

func pageObj(id, edited string) obj {
	return obj{"object": "page", "id": id, "last_edited_time": edited}
}
