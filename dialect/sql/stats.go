package sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/grimoire/dialect"
)

// Statement kinds counted by a StatsDriver, from the leading keyword of
// the SQL text.
const (
	KindSelect = "select"
	KindInsert = "insert"
	KindUpdate = "update"
	KindDelete = "delete"
	KindOther  = "other"
)

var kinds = [...]string{KindSelect, KindInsert, KindUpdate, KindDelete, KindOther}

// statementKind returns the index in kinds of the statement.
func statementKind(query string) int {
	word, _, _ := strings.Cut(strings.TrimSpace(query), " ")
	for i, k := range kinds[:len(kinds)-1] {
		if strings.EqualFold(word, k) {
			return i
		}
	}
	return len(kinds) - 1
}

// counters holds the live statement statistics of a StatsDriver.
type counters struct {
	queries    atomic.Int64
	execs      atomic.Int64
	duration   atomic.Int64 // nanoseconds
	slow       atomic.Int64
	errors     atomic.Int64
	violations atomic.Int64
	commits    atomic.Int64
	rollbacks  atomic.Int64
	kinds      [len(kinds)]atomic.Int64
}

// StatsSnapshot is a point-in-time snapshot of statement statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
	// ConstraintErrors counts the errors classified as *ConstraintError.
	ConstraintErrors int64
	Commits          int64
	Rollbacks        int64
	// Statements counts statements by kind (KindSelect, KindInsert...).
	Statements map[string]int64
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d constraint=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors, s.ConstraintErrors)
	for _, k := range kinds {
		if n := s.Statements[k]; n > 0 {
			fmt.Fprintf(&b, " %s=%d", k, n)
		}
	}
	return b.String()
}

// SlowQueryHook is a function called when a slow statement is detected.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsDriver wraps a dialect.Driver with statement statistics.
type StatsDriver struct {
	dialect.Driver
	stats         counters
	mu            sync.RWMutex
	slowThreshold time.Duration
	slowHook      SlowQueryHook
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow query detection. Default
// is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements to the logger at warn level. A nil
// logger logs to slog.Default.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	if logger == nil {
		logger = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, duration time.Duration) {
		logger.WarnContext(ctx, "slow query detected", "duration", duration, "query", query, "args", args)
	})
}

// NewStatsDriver wraps a Driver with statistics collection.
//
//	drv, _ := sql.Open(dialect.Postgres, dsn)
//	stats := sql.NewStatsDriver(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(logger),
//	)
//	c, _ := client.New(stats)
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current statistics.
func (d *StatsDriver) Snapshot() StatsSnapshot {
	c := &d.stats
	s := StatsSnapshot{
		TotalQueries:     c.queries.Load(),
		TotalExecs:       c.execs.Load(),
		TotalDuration:    time.Duration(c.duration.Load()),
		SlowQueries:      c.slow.Load(),
		Errors:           c.errors.Load(),
		ConstraintErrors: c.violations.Load(),
		Commits:          c.commits.Load(),
		Rollbacks:        c.rollbacks.Load(),
		Statements:       make(map[string]int64, len(kinds)),
	}
	for i, k := range kinds {
		s.Statements[k] = c.kinds[i].Load()
	}
	return s
}

// Reset sets all statistics to zero.
func (d *StatsDriver) Reset() {
	c := &d.stats
	for _, n := range []*atomic.Int64{&c.queries, &c.execs, &c.duration, &c.slow, &c.errors, &c.violations, &c.commits, &c.rollbacks} {
		n.Store(0)
	}
	for i := range c.kinds {
		c.kinds[i].Store(0)
	}
}

// SlowThreshold returns the current slow query threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow query threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

// Query executes a query and records statistics.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.observe(ctx, query, args, true, func() error {
		return d.Driver.Query(ctx, query, args, v)
	})
}

// Exec executes a statement and records statistics.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.observe(ctx, query, args, false, func() error {
		return d.Driver.Exec(ctx, query, args, v)
	})
}

// observe runs one statement and records its outcome.
func (d *StatsDriver) observe(ctx context.Context, query string, args any, isQuery bool, run func() error) error {
	start := time.Now()
	err := run()
	duration := time.Since(start)

	c := &d.stats
	if isQuery {
		c.queries.Add(1)
	} else {
		c.execs.Add(1)
	}
	c.kinds[statementKind(query)].Add(1)
	c.duration.Add(int64(duration))
	if err != nil {
		c.errors.Add(1)
		if IsConstraintError(err) {
			c.violations.Add(1)
		}
	}

	d.mu.RLock()
	threshold, hook := d.slowThreshold, d.slowHook
	d.mu.RUnlock()
	if duration > threshold {
		c.slow.Add(1)
		if hook != nil {
			argv, _ := args.([]any)
			hook(ctx, query, argv, duration)
		}
	}
	return err
}

// Tx starts a transaction that also records statistics.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

// StatsTx wraps a transaction with statistics collection.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
}

// Query executes a query within the transaction and records statistics.
func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	return tx.driver.observe(ctx, query, args, true, func() error {
		return tx.Tx.Query(ctx, query, args, v)
	})
}

// Exec executes a statement within the transaction and records statistics.
func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	return tx.driver.observe(ctx, query, args, false, func() error {
		return tx.Tx.Exec(ctx, query, args, v)
	})
}

// Commit commits the transaction and counts it.
func (tx *StatsTx) Commit() error {
	err := tx.Tx.Commit()
	if err == nil {
		tx.driver.stats.commits.Add(1)
	}
	return err
}

// Rollback rolls back the transaction and counts it.
func (tx *StatsTx) Rollback() error {
	tx.driver.stats.rollbacks.Add(1)
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*StatsTx)(nil)
)
