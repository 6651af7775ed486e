package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Query is a builder for one row-level operation against a table. Obtain one
// from Client.Table, chain filters, then finish with Exec/One/Maybe/All.
// A Query is single-use and not safe for concurrent use.
type Query struct {
	client  *Client
	table   string
	verb    string // GET, POST, PATCH, DELETE
	columns string
	filters url.Values
	order   string
	limit   int
	body    any
	err     error
}

func newQuery(c *Client, table string) *Query {
	return &Query{client: c, table: table, filters: url.Values{}}
}

// Select starts a read. columns follows the backend's select syntax
// ("*", "id,username", ...).
func (q *Query) Select(columns string) *Query {
	q.verb = http.MethodGet
	q.columns = columns
	return q
}

// Insert starts a write of row (struct or map, JSON-encoded).
func (q *Query) Insert(row any) *Query {
	q.verb = http.MethodPost
	q.body = row
	return q
}

// Update starts a partial update with the given changes. Combine with Eq.
func (q *Query) Update(changes any) *Query {
	q.verb = http.MethodPatch
	q.body = changes
	return q
}

// Delete starts a delete. Combine with Eq; a filterless delete is refused at
// execution time.
func (q *Query) Delete() *Query {
	q.verb = http.MethodDelete
	return q
}

// Eq adds an equality filter on column.
func (q *Query) Eq(column string, value any) *Query {
	q.filters.Set(column, fmt.Sprintf("eq.%v", value))
	return q
}

// Order sorts results by column; desc=true for newest-first style listings.
func (q *Query) Order(column string, desc bool) *Query {
	dir := "asc"
	if desc {
		dir = "desc"
	}
	q.order = column + "." + dir
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Exec runs the operation discarding any returned rows.
func (q *Query) Exec(ctx context.Context) error {
	_, err := q.run(ctx, nil)
	return err
}

// All runs the operation decoding every returned row into dest, which must
// be a pointer to a slice.
func (q *Query) All(ctx context.Context, dest any) error {
	_, err := q.run(ctx, dest)
	return err
}

// Maybe runs the operation expecting zero or one row. Returns false with
// dest untouched when no row matched.
func (q *Query) Maybe(ctx context.Context, dest any) (bool, error) {
	q.limit = 1
	var rows json.RawMessage
	n, err := q.run(ctx, &rows)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(rows, &arr); err != nil || len(arr) == 0 {
		return false, err
	}
	return true, json.Unmarshal(arr[0], dest)
}

// One is Maybe that treats a missing row as common.ErrNotFound.
func (q *Query) One(ctx context.Context, dest any) error {
	found, err := q.Maybe(ctx, dest)
	if err != nil {
		return err
	}
	if !found {
		return notFoundError(q.table)
	}
	return nil
}

// run performs the HTTP exchange. dest receives the decoded JSON array when
// non-nil; the returned int is the number of rows (only meaningful for
// reads and representation-returning writes).
func (q *Query) run(ctx context.Context, dest any) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	if q.verb == "" {
		return 0, fmt.Errorf("query on %q has no operation", q.table)
	}
	if q.verb == http.MethodDelete && len(q.filters) == 0 {
		return 0, fmt.Errorf("refusing filterless delete on %q", q.table)
	}

	u := q.client.baseURL + "/rest/v1/" + q.table
	params := url.Values{}
	for k, vs := range q.filters {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	if q.columns != "" {
		params.Set("select", q.columns)
	}
	if q.order != "" {
		params.Set("order", q.order)
	}
	if q.limit > 0 {
		params.Set("limit", strconv.Itoa(q.limit))
	}
	if enc := params.Encode(); enc != "" {
		u += "?" + enc
	}

	var payload io.Reader
	if q.body != nil {
		data, err := json.Marshal(q.body)
		if err != nil {
			return 0, err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, q.verb, u, payload)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("apikey", q.client.Auth.anonKey)
	req.Header.Set("Authorization", "Bearer "+q.client.Auth.accessToken())
	if q.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.verb != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := q.client.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", q.verb, q.table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, decodeError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 || dest == nil {
		return 0, nil
	}

	var count []json.RawMessage
	if err := json.Unmarshal(data, &count); err != nil {
		return 0, fmt.Errorf("decode %s rows: %w", q.table, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return 0, fmt.Errorf("decode %s rows: %w", q.table, err)
	}
	return len(count), nil
}
