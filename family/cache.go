package family

import "sync"

// fitCache memoizes maximum log-likelihoods per model id with an
// at-most-once guarantee per data binding: exactly one fit is in flight per
// id, concurrent callers block on the in-flight result, and a failed fit is
// evicted so a retry stays possible.
type fitCache struct {
	mu      sync.Mutex
	entries map[int]*fitEntry
}

type fitEntry struct {
	done    chan struct{}
	logLike float64
	err     error
}

func newFitCache() *fitCache {
	return &fitCache{entries: make(map[int]*fitEntry)}
}

// reset drops every entry; called when new data is bound.
func (c *fitCache) reset() {
	c.mu.Lock()
	c.entries = make(map[int]*fitEntry)
	c.mu.Unlock()
}

// getOrCompute returns the cached result for id, waiting for an in-flight
// computation if one exists, and otherwise running compute itself.
func (c *fitCache) getOrCompute(id int, compute func() (float64, error)) (float64, error) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		c.mu.Unlock()
		<-e.done
		return e.logLike, e.err
	}
	e := &fitEntry{done: make(chan struct{})}
	c.entries[id] = e
	c.mu.Unlock()

	e.logLike, e.err = compute()
	close(e.done)

	if e.err != nil {
		// Leave the cache unset on failure. Waiters that already hold the
		// entry still observe the error through the closed channel.
		c.mu.Lock()
		if c.entries[id] == e {
			delete(c.entries, id)
		}
		c.mu.Unlock()
	}
	return e.logLike, e.err
}

// len reports the number of completed or in-flight entries.
func (c *fitCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
