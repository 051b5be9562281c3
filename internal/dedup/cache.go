package dedup

import "sync"

// Cache is the in-process front door of the occasion log: a set of
// (task, key) pairs seen since process start. It may hold entries the
// durable log has already swept; it is never the source of truth.
//
// The zero value is not usable; call NewCache.
type Cache struct {
	mu    sync.Mutex
	tasks map[int64]map[string]struct{}
	n     int
}

func NewCache() *Cache {
	return &Cache{tasks: map[int64]map[string]struct{}{}}
}

func (c *Cache) Has(taskID int64, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tasks[taskID][key]
	return ok
}

func (c *Cache) Add(taskID int64, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.tasks[taskID]
	if keys == nil {
		keys = map[string]struct{}{}
		c.tasks[taskID] = keys
	}
	if _, ok := keys[key]; !ok {
		keys[key] = struct{}{}
		c.n++
	}
}

func (c *Cache) Remove(taskID int64, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.tasks[taskID]
	if _, ok := keys[key]; !ok {
		return
	}
	delete(keys, key)
	c.n--
	if len(keys) == 0 {
		delete(c.tasks, taskID)
	}
}

// RemoveTask evicts every key of taskID and returns how many were dropped.
func (c *Cache) RemoveTask(taskID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.tasks[taskID])
	delete(c.tasks, taskID)
	c.n -= n
	return n
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
