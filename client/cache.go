package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/grimoire"
	"github.com/syssam/grimoire/expr"
	"github.com/syssam/grimoire/spell"
	"github.com/syssam/grimoire/spellbook"
)

// read returns the rows of a select, through the cache when the client
// has one and is not bound to a transaction. Only queries reading a single
// table are cached. Concurrent reads of one key run the statement once.
func (c *Client) read(ctx context.Context, q *spell.Query, st *spellbook.Statement) (*rowSet, error) {
	if c.cache == nil || c.tx != nil || !singleTable(q) {
		return c.query(ctx, st)
	}
	key, err := cacheKey(q.Model().Table(), st)
	if err != nil {
		c.logger.DebugContext(ctx, "statement not cacheable", "sql", st.SQL, "error", err)
		return c.query(ctx, st)
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		buf, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.WarnContext(ctx, "cache get failed", "key", key, "error", err)
		case buf != nil:
			rs, err := decodeRows(buf)
			if err == nil {
				c.logger.DebugContext(ctx, "cache hit", "key", key)
				return rs, nil
			}
			c.logger.WarnContext(ctx, "cache entry dropped", "key", key, "error", err)
		}
		rs, err := c.query(ctx, st)
		if err != nil {
			return nil, err
		}
		buf, err = msgpack.Marshal(rs)
		if err != nil {
			c.logger.DebugContext(ctx, "result not cacheable", "key", key, "error", err)
			return rs, nil
		}
		if err := c.cache.Set(ctx, key, buf, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "cache set failed", "key", key, "error", err)
		}
		return rs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rowSet), nil
}

func singleTable(q *spell.Query) bool {
	if len(q.Tables()) != 1 {
		return false
	}
	nested := false
	for _, list := range [][]expr.Expr{q.Columns(), q.Where(), q.Having()} {
		for _, n := range list {
			expr.Walk(n, func(e expr.Expr) bool {
				if _, ok := e.(*expr.Subquery); ok {
					nested = true
				}
				return !nested
			})
		}
	}
	return !nested
}

// invalidate drops the cached results of the tables.
func (c *Client) invalidate(ctx context.Context, tables []string) {
	if c.cache == nil || len(tables) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	done := make(map[string]bool, len(tables))
	for _, t := range tables {
		if done[t] {
			continue
		}
		done[t] = true
		g.Go(func() error {
			return c.cache.DeletePrefix(gctx, grimoire.TablePrefix(t))
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.WarnContext(ctx, "cache invalidation failed", "tables", tables, "error", err)
	}
}

// cacheKey returns the key of a statement: the table prefix and a digest of
// the SQL text and its msgpack encoded values.
func cacheKey(table string, st *spellbook.Statement) (string, error) {
	buf, err := msgpack.Marshal([]any{st.SQL, st.Values})
	if err != nil {
		return "", fmt.Errorf("client: encoding cache key: %w", err)
	}
	sum := sha256.Sum256(buf)
	return grimoire.CacheKey{Table: table, Digest: hex.EncodeToString(sum[:])}.String(), nil
}

func decodeRows(buf []byte) (*rowSet, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(buf))
	dec.UseLooseInterfaceDecoding(true)
	rs := &rowSet{}
	if err := dec.Decode(rs); err != nil {
		return nil, fmt.Errorf("client: decoding cache entry: %w", err)
	}
	return rs, nil
}

// MemoryCache is an in-process grimoire.Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value   []byte
	expires time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), now: time.Now}
}

// Get implements grimoire.Cache.
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[key]
	if !ok || (!it.expires.IsZero() && !m.now().Before(it.expires)) {
		return nil, nil
	}
	return it.value, nil
}

// Set implements grimoire.Cache.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	it := memoryItem{value: value}
	if ttl > 0 {
		it.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = it
	return nil
}

// DeletePrefix implements grimoire.Cache.
func (m *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
		}
	}
	return nil
}

// Len returns the number of entries, expired ones included.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

var _ grimoire.Cache = (*MemoryCache)(nil)
