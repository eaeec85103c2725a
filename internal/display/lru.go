package display

import (
	"container/list"
	"sync"

	"github.com/couchcryptid/polar-layers/internal/domain"
)

// decoded is a cached layer with its cell index.
type decoded struct {
	layer domain.StyledMapLayer
	index *cellIndex
}

type lruItem struct {
	key   domain.DatasetID
	value *decoded
}

// lruCache is a thread-safe LRU of decoded layers keyed by dataset. Each key
// carries a generation that invalidate bumps, so a load that started before
// an invalidation cannot store its stale result afterwards.
type lruCache struct {
	maxEntries int

	mu    sync.Mutex
	order *list.List // front is most recently used
	items map[domain.DatasetID]*list.Element
	gens  map[domain.DatasetID]uint64
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: max(1, maxEntries),
		order:      list.New(),
		items:      make(map[domain.DatasetID]*list.Element),
		gens:       make(map[domain.DatasetID]uint64),
	}
}

func (c *lruCache) get(key domain.DatasetID) (*decoded, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruItem).value, true
}

// generation returns the token a loader passes back to put.
func (c *lruCache) generation(key domain.DatasetID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

// put stores value unless key was invalidated after gen was read. It reports
// whether the value was stored.
func (c *lruCache) put(key domain.DatasetID, value *decoded, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[key] != gen {
		return false
	}
	if el, ok := c.items[key]; ok {
		el.Value.(*lruItem).value = value
		c.order.MoveToFront(el)
		return true
	}
	c.items[key] = c.order.PushFront(&lruItem{key: key, value: value})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruItem).key)
	}
	return true
}

// invalidate drops key and bumps its generation. It reports whether an entry
// was present.
func (c *lruCache) invalidate(key domain.DatasetID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[key]++
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.order.Remove(el)
	delete(c.items, key)
	return true
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
