package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DatabaseClient issues PostgREST queries. Screens use it for their data
// fetches; results land in the query cache and are refetched after a
// reconnect invalidation.
type DatabaseClient struct {
	client *Client
}

// From starts a query against a table.
func (d *DatabaseClient) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client:     d.client,
		table:      table,
		selectCols: "*",
	}
}

// QueryBuilder accumulates PostgREST query parameters.
type QueryBuilder struct {
	client      *Client
	table       string
	selectCols  string
	filters     []string
	order       string
	limit       int
	accessToken string
}

// Select sets the returned columns.
func (q *QueryBuilder) Select(cols string) *QueryBuilder {
	if cols != "" {
		q.selectCols = cols
	}
	return q
}

// Filter adds an arbitrary operator filter.
func (q *QueryBuilder) Filter(column string, op FilterOperator, value string) *QueryBuilder {
	q.filters = append(q.filters, url.QueryEscape(column)+"="+string(op)+"."+url.QueryEscape(value))
	return q
}

// Eq filters on equality.
func (q *QueryBuilder) Eq(column, value string) *QueryBuilder {
	return q.Filter(column, OpEq, value)
}

// Gt filters on greater-than.
func (q *QueryBuilder) Gt(column, value string) *QueryBuilder {
	return q.Filter(column, OpGt, value)
}

// Order sorts the result.
func (q *QueryBuilder) Order(column string, dir OrderDirection) *QueryBuilder {
	q.order = url.QueryEscape(column) + "." + string(dir)
	return q
}

// Limit caps the number of rows.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// WithToken attaches the user's access token so RLS applies.
func (q *QueryBuilder) WithToken(token string) *QueryBuilder {
	q.accessToken = token
	return q
}

// Execute runs the query and returns the raw JSON body.
func (q *QueryBuilder) Execute(ctx context.Context) ([]byte, error) {
	params := []string{"select=" + url.QueryEscape(q.selectCols)}
	params = append(params, q.filters...)
	if q.order != "" {
		params = append(params, "order="+q.order)
	}
	if q.limit > 0 {
		params = append(params, "limit="+strconv.Itoa(q.limit))
	}

	reqURL := q.client.restURL + "/" + url.PathEscape(q.table) + "?" + strings.Join(params, "&")

	var (
		body       []byte
		statusCode int
		err        error
	)
	if q.accessToken != "" {
		body, statusCode, err = q.client.requestWithToken(ctx, "GET", reqURL, nil, nil, q.accessToken)
	} else {
		body, statusCode, err = q.client.request(ctx, "GET", reqURL, nil, nil)
	}
	if err != nil {
		return nil, err
	}

	if statusCode >= 400 {
		return nil, parseError(body, statusCode)
	}

	return body, nil
}

// ExecuteInto runs the query and unmarshals the result into dest.
func (q *QueryBuilder) ExecuteInto(ctx context.Context, dest interface{}) error {
	body, err := q.Execute(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}
