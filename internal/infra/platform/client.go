package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Envelope is the uniform response shape for every platform call. Expected
// backend rejections surface through StatusCode; errors are reserved for
// transport-level failures.
type Envelope struct {
	StatusCode int
	Data       json.RawMessage
}

// AuthProvider supplies the bearer credential for outgoing calls. Looked up
// per call, never cached, because the token may rotate between calls.
type AuthProvider interface {
	AccessToken() string
}

// Client is a thin wrapper over the platform's two invocation styles:
// named-procedure calls (POST /rest/v1/rpc/<fn>) and resource-table calls.
type Client struct {
	baseURL string
	apiKey  string
	auth    AuthProvider
	http    *http.Client
}

func NewClient(baseURL, apiKey string, auth AuthProvider) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		auth:    auth,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// RPC invokes a named procedure with a JSON body.
func (c *Client) RPC(ctx context.Context, fn string, params any) (Envelope, error) {
	return c.do(ctx, http.MethodPost, c.baseURL+"/rest/v1/rpc/"+fn, nil, params)
}

// Table starts a resource-table call builder.
func (c *Client) Table(name string) *TableQuery {
	return &TableQuery{client: c, table: name}
}

func (c *Client) do(ctx context.Context, method, rawURL string, query url.Values, body any) (Envelope, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return Envelope{}, err
	}
	for k, v := range c.authHeaders() {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Envelope{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{}, fmt.Errorf("read response body: %w", err)
	}
	return Envelope{StatusCode: resp.StatusCode, Data: data}, nil
}

// authHeaders resolves the bearer token at call time; falls back to the api
// key when no session is established yet.
func (c *Client) authHeaders() map[string]string {
	token := ""
	if c.auth != nil {
		token = c.auth.AccessToken()
	}
	if token == "" {
		token = c.apiKey
	}
	return map[string]string{
		"apiKey":        c.apiKey,
		"Authorization": "Bearer " + token,
	}
}

type tableFilter struct {
	column string
	op     string
	value  string
}

// TableQuery builds one insert or select against a resource table.
type TableQuery struct {
	client     *Client
	table      string
	selectCols []string
	filters    []tableFilter
	insertBody any
	upsert     bool
}

// Insert stages a row insert; upsert reconciles on the table's logical key.
func (q *TableQuery) Insert(row any, upsert bool) *TableQuery {
	q.insertBody = row
	q.upsert = upsert
	return q
}

// Select stages a column projection.
func (q *TableQuery) Select(cols ...string) *TableQuery {
	q.selectCols = cols
	return q
}

// Filter adds a column predicate, e.g. Filter("deleted", "eq", "false").
func (q *TableQuery) Filter(column, op string, value any) *TableQuery {
	q.filters = append(q.filters, tableFilter{column: column, op: op, value: fmt.Sprintf("%v", value)})
	return q
}

// Execute performs the staged call and returns the uniform envelope.
func (q *TableQuery) Execute(ctx context.Context) (Envelope, error) {
	target := q.client.baseURL + "/rest/v1/" + q.table

	if q.insertBody != nil {
		return q.client.doInsert(ctx, target, q.insertBody, q.upsert)
	}

	query := url.Values{}
	if len(q.selectCols) > 0 {
		query.Set("select", strings.Join(q.selectCols, ","))
	}
	for _, f := range q.filters {
		query.Set(f.column, f.op+"."+f.value)
	}
	return q.client.do(ctx, http.MethodGet, target, query, nil)
}

func (c *Client) doInsert(ctx context.Context, target string, row any, upsert bool) (Envelope, error) {
	buf, err := json.Marshal(row)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal row: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(buf))
	if err != nil {
		return Envelope{}, err
	}
	for k, v := range c.authHeaders() {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	if upsert {
		req.Header.Set("Prefer", "resolution=merge-duplicates")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Envelope{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{}, fmt.Errorf("read response body: %w", err)
	}
	return Envelope{StatusCode: resp.StatusCode, Data: data}, nil
}
