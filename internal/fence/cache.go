package fence

import (
	"container/list"
	"sync"
	"time"
)

// 文档注释：进程内 LRU 缓存（最大级别 quadkey 为键）
// 约束：同一最大级别瓦片内的点命中结果相同；TTL 到期即淘汰，容量超限淘汰最久未用。
type lru struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[cacheKey]*list.Element
}

type cacheKey struct {
	qk       uint64
	maxLevel int
	minLevel int
}

type entry struct {
	k   cacheKey
	v   []Match
	exp time.Time
}

func newLRU(capacity int, ttl time.Duration) *lru {
	return &lru{cap: capacity, ttl: ttl, lst: list.New(), dict: make(map[cacheKey]*list.Element)}
}

func (c *lru) get(k cacheKey) ([]Match, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.dict[k]
	if !ok {
		return nil, false
	}
	it := e.Value.(entry)
	if time.Now().Before(it.exp) {
		c.lst.MoveToFront(e)
		return it.v, true
	}
	c.lst.Remove(e)
	delete(c.dict, k)
	return nil, false
}

func (c *lru) set(k cacheKey, v []Match) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := entry{k: k, v: v, exp: time.Now().Add(c.ttl)}
	if e, ok := c.dict[k]; ok {
		e.Value = it
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(it)
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(entry).k)
		c.lst.Remove(back)
	}
}

func (c *lru) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lst.Init()
	c.dict = make(map[cacheKey]*list.Element)
}
