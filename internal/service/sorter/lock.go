package sorter

import "sync"

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// claimSet records the message ids a sort pass currently owns.
type claimSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// claim reserves id. It reports false when another pass holds it.
func (c *claimSet) claim(id string) (release func(), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ids == nil {
		c.ids = make(map[string]struct{})
	}
	if _, held := c.ids[id]; held {
		return nil, false
	}
	c.ids[id] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.ids, id)
		c.mu.Unlock()
	}, true
}
