package engine

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/sooq/internal/querysql"
	"github.com/roach88/sooq/internal/translate"
)

// loadStatement is a converted load-by-key query. Its statement has one
// parameter slot, the primary key.
type loadStatement struct {
	plan   *translate.Plan
	result *querysql.Result
}

// stmtCache holds load-by-key statements per (class, dialect). Concurrent
// misses for the same key convert once.
type stmtCache struct {
	mu      sync.RWMutex
	entries map[string]*loadStatement
	group   singleflight.Group
}

func newStmtCache() *stmtCache {
	return &stmtCache{entries: make(map[string]*loadStatement)}
}

func (c *stmtCache) get(key string) (*loadStatement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ls, ok := c.entries[key]
	return ls, ok
}

// load returns the cached statement for key, building it on a miss.
func (c *stmtCache) load(key string, build func() (*loadStatement, error)) (*loadStatement, bool, error) {
	if ls, ok := c.get(key); ok {
		return ls, true, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if ls, ok := c.get(key); ok {
			return ls, nil
		}
		ls, err := build()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = ls
		c.mu.Unlock()
		return ls, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*loadStatement), false, nil
}

// Len returns the number of cached statements.
func (c *stmtCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// loadPlan returns the load-by-key statement for class, from the cache
// when enabled.
func (s *Session) loadPlan(class string) (*loadStatement, error) {
	build := func() (*loadStatement, error) {
		plan, err := s.translator.ByKey(class)
		if err != nil {
			return nil, err
		}
		res, err := querysql.Convert(plan.Query, s.schema, s.Dialect())
		if err != nil {
			return nil, err
		}
		return &loadStatement{plan: plan, result: res}, nil
	}
	if s.cache == nil {
		return build()
	}

	key := class + "\x00" + s.Dialect().Name
	ls, hit, err := s.cache.load(key, build)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("statement cache", "class", class, "dialect", s.Dialect().Name, "hit", hit)
	return ls, nil
}
