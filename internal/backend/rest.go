package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const singleObjectMediaType = "application/vnd.pgrst.object+json"

// Query builds one request against a table. Filters accumulate; the verb is
// chosen by Insert, Update, Upsert or Delete and defaults to a select.
type Query struct {
	c      *Client
	table  string
	method string
	params url.Values
	orders []string
	body   any
	prefer []string

	single      bool
	maybeSingle bool
}

// From starts a query against table
func (c *Client) From(table string) *Query {
	return &Query{
		c:      c,
		table:  table,
		method: http.MethodGet,
		params: url.Values{},
	}
}

// Select sets the returned columns, including embedded resources such as "*, children(name)"
func (q *Query) Select(columns string) *Query {
	q.params.Set("select", strings.Join(strings.Fields(columns), ""))
	return q
}

func (q *Query) filter(column, op, value string) *Query {
	q.params.Add(column, op+"."+value)
	return q
}

func (q *Query) Eq(column, value string) *Query { return q.filter(column, "eq", value) }
func (q *Query) Gte(column, value string) *Query { return q.filter(column, "gte", value) }
func (q *Query) Lte(column, value string) *Query { return q.filter(column, "lte", value) }

// Is filters on null, true or false
func (q *Query) Is(column, value string) *Query { return q.filter(column, "is", value) }

// In matches any of values
func (q *Query) In(column string, values ...string) *Query {
	return q.filter(column, "in", "("+strings.Join(values, ",")+")")
}

// Order appends an ordering; calls are applied in sequence
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

func (q *Query) Limit(n int) *Query {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

// Single expects exactly one row. Zero rows fail with code PGRST116.
func (q *Query) Single() *Query {
	q.single = true
	return q
}

// MaybeSingle expects at most one row; with zero rows dest is left untouched
func (q *Query) MaybeSingle() *Query {
	q.maybeSingle = true
	return q
}

// Insert adds row (a struct or a slice of structs)
func (q *Query) Insert(row any) *Query {
	q.method = http.MethodPost
	q.body = row
	return q
}

// Update patches every row matched by the filters
func (q *Query) Update(values any) *Query {
	q.method = http.MethodPatch
	q.body = values
	return q
}

// Upsert inserts row, merging into the existing row on a conflict over onConflict
func (q *Query) Upsert(row any, onConflict string) *Query {
	q.method = http.MethodPost
	q.body = row
	q.prefer = append(q.prefer, "resolution=merge-duplicates")
	if onConflict != "" {
		q.params.Set("on_conflict", onConflict)
	}
	return q
}

// Delete removes every row matched by the filters
func (q *Query) Delete() *Query {
	q.method = http.MethodDelete
	return q
}

// Execute runs the query, decoding the result into dest when it is non-nil.
// Writes return the affected rows when dest is set.
func (q *Query) Execute(ctx context.Context, dest any) error {
	if q.table == "" {
		return errors.New("table name is required")
	}

	if len(q.orders) > 0 {
		q.params.Set("order", strings.Join(q.orders, ","))
	}

	header := http.Header{}
	if q.single {
		header.Set("Accept", singleObjectMediaType)
	}

	prefer := q.prefer
	if q.method != http.MethodGet {
		if dest != nil {
			prefer = append(prefer, "return=representation")
		} else {
			prefer = append(prefer, "return=minimal")
		}
	}
	if len(prefer) > 0 {
		header.Set("Prefer", strings.Join(prefer, ","))
	}

	r := request{
		method: q.method,
		path:   restPath + "/" + q.table,
		query:  q.params,
		header: header,
	}
	if q.body != nil {
		body, err := jsonBody(q.body)
		if err != nil {
			return err
		}
		r.body = body
		header.Set("Content-Type", "application/json")
	}

	if !q.maybeSingle || dest == nil {
		return q.c.do(ctx, r, dest)
	}

	var rows []json.RawMessage
	if err := q.c.do(ctx, r, &rows); err != nil {
		return err
	}
	switch len(rows) {
	case 0:
		return nil
	case 1:
		if err := json.Unmarshal(rows[0], dest); err != nil {
			return fmt.Errorf("failed to decode %s row: %w", q.table, err)
		}
		return nil
	default:
		return fmt.Errorf("%s: expected at most one row, got %d", q.table, len(rows))
	}
}

// RPC calls a remote procedure with named args and decodes its result into dest
func (c *Client) RPC(ctx context.Context, fn string, args any, dest any) error {
	if args == nil {
		args = struct{}{}
	}
	body, err := jsonBody(args)
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   restPath + "/rpc/" + fn,
		body:   body,
		header: jsonHeader(),
	}, dest)
}
