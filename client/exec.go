package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/syssam/grimoire"
	"github.com/syssam/grimoire/dialect"
	"github.com/syssam/grimoire/dialect/sql"
	"github.com/syssam/grimoire/spell"
	"github.com/syssam/grimoire/spellbook"
)

// Record is one result row keyed by attribute name. Columns that are not
// attributes, such as aggregates, keep their result name.
type Record map[string]any

// Result is the outcome of a write.
type Result struct {
	RowsAffected int64
	// LastInsertID is set by drivers reporting it, MySQL and SQLite.
	LastInsertID int64
	// Records holds the rows of a RETURNING clause.
	Records []Record
}

// Find runs a select spell and returns its records.
func (c *Client) Find(ctx context.Context, s *spell.Spell) ([]Record, error) {
	q, st, err := c.compile(s)
	if err != nil {
		return nil, err
	}
	if q.Command() != spell.CommandSelect {
		return nil, grimoire.NewCompileError("find requires a select, got %s", q.Command())
	}
	rs, err := c.read(ctx, q, st)
	if err != nil {
		return nil, err
	}
	return newScanner(q, c.book.Rules()).records(rs)
}

// First returns the first record of a select spell. The spell itself is
// not modified. A *grimoire.NotFoundError is returned when no row matches.
func (c *Client) First(ctx context.Context, s *spell.Spell) (Record, error) {
	recs, err := c.Find(ctx, s.Clone().Limit(1))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, grimoire.NewNotFoundError(s.Model().Name())
	}
	return recs[0], nil
}

// Count returns the number of rows matched by an ungrouped select spell.
func (c *Client) Count(ctx context.Context, s *spell.Spell) (int64, error) {
	recs, err := c.Find(ctx, s.Clone().Count(""))
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}
	return toInt64(recs[0]["count"])
}

// Exec runs a write spell. Spells with a RETURNING clause are run as
// queries on dialects supporting it and their rows returned as records.
func (c *Client) Exec(ctx context.Context, s *spell.Spell) (*Result, error) {
	q, st, err := c.compile(s)
	if err != nil {
		return nil, err
	}
	if q.Command() == spell.CommandSelect {
		return nil, grimoire.NewCompileError("exec requires a write, got %s", q.Command())
	}
	res := &Result{}
	if len(q.Returning()) > 0 && c.book.Rules().Returning() {
		rs, err := c.query(ctx, st)
		if err != nil {
			return nil, err
		}
		if res.Records, err = newScanner(q, c.book.Rules()).records(rs); err != nil {
			return nil, err
		}
		res.RowsAffected = int64(len(res.Records))
	} else {
		var r sql.Result
		if err := c.driver.Exec(ctx, st.SQL, st.Values, &r); err != nil {
			c.failed(ctx, st, err)
			return nil, err
		}
		if n, err := r.RowsAffected(); err == nil {
			res.RowsAffected = n
		}
		if id, err := r.LastInsertId(); err == nil {
			res.LastInsertID = id
		}
	}
	c.written(ctx, q.Tables())
	return res, nil
}

// Tx runs fn in a transaction. The client passed to fn sends every
// statement over the connection of the transaction, which is committed
// when fn returns nil and rolled back otherwise. Calling Tx on a client
// bound to a transaction runs fn in that transaction.
func (c *Client) Tx(ctx context.Context, fn func(tx *Client) error) (err error) {
	if c.tx != nil {
		return fn(c)
	}
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return err
	}
	txc := *c
	txc.driver = &txDriver{conn: tx, dialect: c.driver.Dialect()}
	txc.tx = &txState{}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(&txc); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("client: committing transaction: %w", err)
	}
	c.invalidate(ctx, txc.tx.written())
	return nil
}

func (c *Client) compile(s *spell.Spell) (*spell.Query, *spellbook.Statement, error) {
	if s == nil {
		return nil, nil, grimoire.NewCompileError("nil spell")
	}
	q, err := s.Build()
	if err != nil {
		return nil, nil, err
	}
	st, err := c.book.Compile(q)
	if err != nil {
		return nil, nil, err
	}
	return q, st, nil
}

// query runs a statement returning rows and reads all of them.
func (c *Client) query(ctx context.Context, st *spellbook.Statement) (*rowSet, error) {
	var rows sql.Rows
	if err := c.driver.Query(ctx, st.SQL, st.Values, &rows); err != nil {
		c.failed(ctx, st, err)
		return nil, err
	}
	defer rows.Close()
	rs, err := readRows(rows)
	if err != nil {
		c.failed(ctx, st, err)
		return nil, err
	}
	return rs, nil
}

func (c *Client) failed(ctx context.Context, st *spellbook.Statement, err error) {
	c.logger.ErrorContext(ctx, "statement failed", "sql", st.SQL, "args", st.Values, "error", err)
}

// written records the tables touched by a write. Outside transactions
// their cached results are dropped right away, otherwise on commit.
func (c *Client) written(ctx context.Context, tables []string) {
	if c.tx != nil {
		c.tx.add(tables)
		return
	}
	c.invalidate(ctx, tables)
}

type txState struct {
	mu     sync.Mutex
	tables []string
}

func (s *txState) add(tables []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = append(s.tables, tables...)
}

func (s *txState) written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables
}

// txDriver is the driver of a client bound to a transaction. Commit and
// Rollback are left to Client.Tx.
type txDriver struct {
	conn    dialect.Tx
	dialect string
}

func (d *txDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.conn.Exec(ctx, query, args, v)
}

func (d *txDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.conn.Query(ctx, query, args, v)
}

func (d *txDriver) Tx(context.Context) (dialect.Tx, error) {
	return nil, errors.New("client: transaction already started")
}

func (d *txDriver) Close() error { return nil }

func (d *txDriver) Dialect() string { return d.dialect }

var _ dialect.Driver = (*txDriver)(nil)

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("client: unexpected count %T", v)
}
