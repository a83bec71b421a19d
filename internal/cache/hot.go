package cache

import "container/list"

// hotCache is a bounded most-recently-used map. Not safe for concurrent use;
// the owning Cache serializes access.
type hotCache struct {
	cap   int
	ll    *list.List // front = most recently used
	items map[string]*list.Element
}

func newHotCache(capacity int) *hotCache {
	return &hotCache{
		cap:   capacity,
		ll:    list.New(),
		items: make(map[string]*list.Element, capacity),
	}
}

// get returns the entry and marks it most recently used.
func (h *hotCache) get(fingerprint string) *Entry {
	el, ok := h.items[fingerprint]
	if !ok {
		return nil
	}
	h.ll.MoveToFront(el)
	return el.Value.(*Entry)
}

// put inserts or refreshes an entry. Re-promoting an already-hot entry is a
// no-op beyond the recency bump.
func (h *hotCache) put(e *Entry) {
	if el, ok := h.items[e.Fingerprint]; ok {
		el.Value = e
		h.ll.MoveToFront(el)
		return
	}
	h.items[e.Fingerprint] = h.ll.PushFront(e)
	for h.ll.Len() > h.cap {
		last := h.ll.Back()
		h.ll.Remove(last)
		delete(h.items, last.Value.(*Entry).Fingerprint)
	}
}

func (h *hotCache) remove(fingerprint string) {
	if el, ok := h.items[fingerprint]; ok {
		h.ll.Remove(el)
		delete(h.items, fingerprint)
	}
}

func (h *hotCache) len() int { return h.ll.Len() }

// each walks entries front-to-back. Used by similarity scans in degraded
// (hot-only) mode.
func (h *hotCache) each(fn func(*Entry)) {
	for el := h.ll.Front(); el != nil; el = el.Next() {
		fn(el.Value.(*Entry))
	}
}

func (h *hotCache) clear() {
	h.ll.Init()
	h.items = make(map[string]*list.Element, h.cap)
}
