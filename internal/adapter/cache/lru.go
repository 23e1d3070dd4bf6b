package cache

import (
	"container/list"
	"sync"
	"time"

	"ilfeat/internal/domain"
)

// L1 is a bounded in-memory LRU of descriptor vectors. Entries are tagged with
// the generation they were written in; Invalidate bumps the generation so
// stale entries are dropped on their next lookup.
type L1 struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	recency *list.List // front is most recently used
	maxSize int
	ttl     time.Duration
	gen     uint64
	now     func() time.Time
}

type l1Entry struct {
	key     string
	vec     domain.DescriptorVector
	written time.Time
	gen     uint64
}

// NewL1 creates an LRU holding up to maxSize vectors. A ttl of zero keeps
// entries until they are evicted.
func NewL1(maxSize int, ttl time.Duration) *L1 {
	if maxSize <= 0 {
		maxSize = 4096
	}
	return &L1{
		items:   make(map[string]*list.Element, maxSize),
		recency: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func l1Key(key domain.CacheKey) string {
	return key.Generator + "@" + key.Version + "/" + key.Hash
}

// Get returns the vector for key and marks it recently used. Entries from an
// older generation or past their ttl are dropped.
func (c *L1) Get(key domain.CacheKey) (domain.DescriptorVector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[l1Key(key)]
	if !ok {
		return domain.DescriptorVector{}, false
	}
	e := el.Value.(*l1Entry)
	if e.gen != c.gen || c.expired(e) {
		c.remove(el)
		return domain.DescriptorVector{}, false
	}
	c.recency.MoveToFront(el)
	return e.vec, true
}

func (c *L1) Put(key domain.CacheKey, vec domain.DescriptorVector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := l1Key(key)
	e := &l1Entry{key: k, vec: vec, written: c.now(), gen: c.gen}
	if el, ok := c.items[k]; ok {
		el.Value = e
		c.recency.MoveToFront(el)
		return
	}
	for c.recency.Len() >= c.maxSize {
		c.remove(c.recency.Back())
	}
	c.items[k] = c.recency.PushFront(e)
}

func (c *L1) Delete(key domain.CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[l1Key(key)]; ok {
		c.remove(el)
	}
}

// Invalidate drops every entry.
func (c *L1) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.maxSize)
	c.recency.Init()
	c.gen++
}

func (c *L1) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

func (c *L1) expired(e *l1Entry) bool {
	return c.ttl > 0 && c.now().Sub(e.written) > c.ttl
}

// remove must be called with mu held.
func (c *L1) remove(el *list.Element) {
	c.recency.Remove(el)
	delete(c.items, el.Value.(*l1Entry).key)
}
