// Package client runs spells against a database.
//
// A Client binds a dialect.Driver to the spellbook.Book of its dialect and
// an optional schema.Registry:
//
//	c, err := client.Open(cfg)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	posts, err := c.Find(ctx, c.Select(post).With("comments").Where(expr.Cond{"authorId": 1}))
//
// Results are returned as records keyed by attribute name. Joined
// associations are nested under their qualifier: a slice of records for
// has-many associations, a record (or nil) otherwise.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/grimoire"
	"github.com/syssam/grimoire/config"
	"github.com/syssam/grimoire/dialect"
	"github.com/syssam/grimoire/dialect/sql"
	"github.com/syssam/grimoire/schema"
	"github.com/syssam/grimoire/schema/load"
	"github.com/syssam/grimoire/spell"
	"github.com/syssam/grimoire/spellbook"
)

// Client executes spells. It is safe for concurrent use.
type Client struct {
	driver   dialect.Driver
	book     *spellbook.Book
	registry *schema.Registry
	logger   *slog.Logger
	cache    grimoire.Cache
	ttl      time.Duration
	group    *singleflight.Group
	stats    *sql.StatsDriver
	tx       *txState // Set on clients bound to a transaction.
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger of failed statements and cache events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCache enables the result cache. Single-table selects are cached for
// ttl, 0 meaning no expiry; writes invalidate the cached results of the
// tables they touch.
func WithCache(cache grimoire.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.ttl = ttl
	}
}

// WithRegistry sets the registry used to resolve associations.
func WithRegistry(r *schema.Registry) Option {
	return func(c *Client) {
		c.registry = r
	}
}

// New returns a client running statements on drv.
func New(drv dialect.Driver, opts ...Option) (*Client, error) {
	if drv == nil {
		return nil, errors.New("client: nil driver")
	}
	book, err := spellbook.New(drv.Dialect())
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	c := &Client{
		driver: drv,
		book:   book,
		logger: slog.Default(),
		group:  &singleflight.Group{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if sd, ok := drv.(*sql.StatsDriver); ok {
		c.stats = sd
	}
	return c, nil
}

// Open opens the database described by cfg. Statements are counted and
// slow ones logged; at debug level every statement is logged. The schema
// file of the configuration, if any, provides the registry.
func Open(cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	drv, err := sql.Open(cfg.Dialect, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	db := drv.DB()
	db.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Pool.ConnMaxIdleTime)

	logger := cfg.Log.Logger(os.Stderr)
	stats := sql.NewStatsDriver(drv,
		sql.WithSlowThreshold(cfg.Log.SlowThreshold),
		sql.WithSlowQueryLog(logger),
	)
	var d dialect.Driver = stats
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		d = sql.NewDebugDriver(stats, logger)
	}
	base := []Option{WithLogger(logger)}
	if cfg.Schema != "" {
		reg, err := load.Load(cfg.Schema)
		if err != nil {
			drv.Close()
			return nil, fmt.Errorf("client: %w", err)
		}
		base = append(base, WithRegistry(reg))
	}
	if cfg.Cache.Enabled {
		base = append(base, WithCache(NewMemoryCache(), cfg.Cache.TTL))
	}
	c, err := New(d, append(base, opts...)...)
	if err != nil {
		drv.Close()
		return nil, err
	}
	c.stats = stats
	return c, nil
}

// Driver returns the driver of the client.
func (c *Client) Driver() dialect.Driver { return c.driver }

// Book returns the spellbook compiling the spells of the client.
func (c *Client) Book() *spellbook.Book { return c.book }

// Registry returns the registry of the client, nil when not set.
func (c *Client) Registry() *schema.Registry { return c.registry }

// Stats returns the statement statistics when the driver collects them.
func (c *Client) Stats() (sql.StatsSnapshot, bool) {
	if c.stats == nil {
		return sql.StatsSnapshot{}, false
	}
	return c.stats.Snapshot(), true
}

// Close closes the underlying driver.
func (c *Client) Close() error { return c.driver.Close() }

// Model returns the registered model with the given name.
func (c *Client) Model(name string) (*schema.Model, error) {
	if c.registry == nil {
		return nil, fmt.Errorf("client: no registry to resolve %q", name)
	}
	return c.registry.Lookup(name)
}

func (c *Client) options() []spell.Option {
	if c.registry == nil {
		return nil
	}
	return []spell.Option{spell.WithRegistry(c.registry)}
}

// Select returns a select spell on m bound to the registry of the client.
func (c *Client) Select(m *schema.Model) *spell.Spell {
	return spell.Select(m, c.options()...)
}

// Insert returns an insert spell on m bound to the registry of the client.
func (c *Client) Insert(m *schema.Model, values map[string]any) *spell.Spell {
	return spell.Insert(m, values, c.options()...)
}

// BulkInsert returns a bulk insert spell on m.
func (c *Client) BulkInsert(m *schema.Model, rows []map[string]any) *spell.Spell {
	return spell.BulkInsert(m, rows, c.options()...)
}

// Update returns an update spell on m.
func (c *Client) Update(m *schema.Model, values map[string]any) *spell.Spell {
	return spell.Update(m, values, c.options()...)
}

// Delete returns a delete spell on m.
func (c *Client) Delete(m *schema.Model) *spell.Spell {
	return spell.Delete(m, c.options()...)
}

// Upsert returns an upsert spell on m.
func (c *Client) Upsert(m *schema.Model, values map[string]any) *spell.Spell {
	return spell.Upsert(m, values, c.options()...)
}
