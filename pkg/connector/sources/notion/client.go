package notion

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shayan-nathan/airbyte/pkg/clients"
	"github.com/shayan-nathan/airbyte/pkg/config"
	"github.com/shayan-nathan/airbyte/pkg/connector/base"
	"github.com/shayan-nathan/airbyte/pkg/errors"
	jsonpool "github.com/shayan-nathan/airbyte/pkg/json"
	"github.com/shayan-nathan/airbyte/pkg/metrics"
	"github.com/shayan-nathan/airbyte/pkg/observability"
)

// Search object filters.
const (
	ObjectPage     = "page"
	ObjectDatabase = "database"
)

// Page is one page of a paginated list response.
type Page struct {
	Results    []jsonpool.RawMessage `json:"results"`
	NextCursor *string               `json:"next_cursor"`
	HasMore    *bool                 `json:"has_more"`
}

// Next returns the cursor of the following page, empty on the last page.
func (p *Page) Next() string {
	if p.NextCursor == nil || (p.HasMore != nil && !*p.HasMore) {
		return ""
	}
	return *p.NextCursor
}

type searchSort struct {
	Direction string `json:"direction"`
	Timestamp string `json:"timestamp"`
}

type searchFilter struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

type searchRequest struct {
	Sort        searchSort   `json:"sort"`
	Filter      searchFilter `json:"filter"`
	PageSize    int          `json:"page_size"`
	StartCursor string       `json:"start_cursor,omitempty"`
}

// Client calls the Notion REST API. Every call goes through the retry
// policy with the Notion error classification.
type Client struct {
	http     *clients.HTTPClient
	baseURL  string
	version  string
	pageSize int
	retry    *base.RetryPolicy
	logger   *zap.Logger

	// observe receives the outcome of every attempt that says something
	// about the health of the API
	observe func(error)
}

// NewClient creates a client for settings. HTTP timeouts and the rate
// limit come from cfg.
func NewClient(settings *Settings, cfg *config.BaseConfig, retry *base.RetryPolicy, logger *zap.Logger, collector *metrics.Collector) *Client {
	httpCfg := clients.HTTPConfigFromBase(cfg)
	httpCfg.BearerToken = settings.Token

	c := &Client{
		http:     clients.NewHTTPClient(httpCfg, logger),
		baseURL:  settings.BaseURL,
		version:  settings.NotionVersion,
		pageSize: settings.PageSize,
		retry:    retry,
		logger:   logger,
	}
	if collector != nil {
		c.http.SetObserver(func(req *http.Request, status int, elapsed time.Duration) {
			collector.RecordRequest(endpointName(req.URL.Path), status, elapsed)
		})
	}
	return c
}

// Search lists pages or databases shared with the integration, most
// recently edited first.
func (c *Client) Search(ctx context.Context, object, cursor string) (*Page, error) {
	body := &searchRequest{
		Sort:        searchSort{Direction: "descending", Timestamp: "last_edited_time"},
		Filter:      searchFilter{Property: "object", Value: object},
		PageSize:    c.pageSize,
		StartCursor: cursor,
	}
	return c.fetch(ctx, http.MethodPost, "/v1/search", nil, body)
}

// BlockChildren lists the direct children of a block or page.
func (c *Client) BlockChildren(ctx context.Context, blockID, cursor string) (*Page, error) {
	return c.fetch(ctx, http.MethodGet, "/v1/blocks/"+url.PathEscape(blockID)+"/children", c.listQuery(cursor), nil)
}

// Comments lists the unresolved comments of a page or block.
func (c *Client) Comments(ctx context.Context, blockID, cursor string) (*Page, error) {
	q := c.listQuery(cursor)
	q.Set("block_id", blockID)
	return c.fetch(ctx, http.MethodGet, "/v1/comments", q, nil)
}

// Users lists the users of the workspace.
func (c *Client) Users(ctx context.Context, cursor string) (*Page, error) {
	return c.fetch(ctx, http.MethodGet, "/v1/users", c.listQuery(cursor), nil)
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) listQuery(cursor string) url.Values {
	q := url.Values{}
	q.Set("page_size", strconv.Itoa(c.pageSize))
	if cursor != "" {
		q.Set("start_cursor", cursor)
	}
	return q
}

func (c *Client) fetch(ctx context.Context, method, path string, query url.Values, body interface{}) (*Page, error) {
	var page *Page
	err := c.retry.ExecuteWithClassifier(ctx, func(attempt int) error {
		p, err := c.do(ctx, method, path, query, body, attempt)
		if err != nil {
			return err
		}
		page = p
		return nil
	}, classify)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// do performs a single attempt.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, attempt int) (*Page, error) {
	endpoint := endpointName(path)
	ctx, span := observability.StartSpan(ctx, "notion."+endpoint,
		observability.AttrEndpoint.String(endpoint),
		observability.AttrAttempt.Int(attempt+1))

	page, err := c.roundTrip(ctx, method, path, query, body)
	observability.EndSpan(span, err)
	if c.observe != nil && affectsHealth(err) {
		c.observe(err)
	}
	return page, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body interface{}) (*Page, error) {
	var reader io.Reader
	if body != nil {
		buf, err := jsonpool.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode request body")
		}
		reader = bytes.NewReader(buf)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := c.http.NewRequest(ctx, method, u, reader)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to build request")
	}
	req.Header.Set("Notion-Version", c.version)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "request cancelled")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "notion request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp, data)
		return nil, errors.Wrap(apiErr, errorTypeFor(apiErr.Status), "notion "+endpointName(path)).
			WithDetail("status", apiErr.Status)
	}

	page := &Page{}
	if err := jsonpool.Unmarshal(data, page); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode response")
	}
	return page, nil
}

// affectsHealth is false for errors about one object rather than the API.
func affectsHealth(err error) bool {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeNotFound, errors.ErrorTypeValidation, errors.ErrorTypeData:
		return false
	}
	return true
}

// endpointName labels a request path for metrics and spans.
func endpointName(path string) string {
	switch {
	case strings.HasSuffix(path, "/search"):
		return "search"
	case strings.Contains(path, "/blocks/"):
		return "blocks.children"
	case strings.HasSuffix(path, "/comments"):
		return "comments"
	case strings.HasSuffix(path, "/users"):
		return "users"
	}
	return "other"
}
