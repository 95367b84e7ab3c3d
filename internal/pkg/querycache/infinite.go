package querycache

// InfiniteData is a paginated cache entry: Pages[i] was fetched with
// PageParams[i].
type InfiniteData[P any] struct {
	Pages      []P
	PageParams []any
}

// GetInfinite reads a paginated entry stored under the exact key.
func GetInfinite[P any](s *Store, key Key) (InfiniteData[P], bool) {
	data, stale, ok := s.Get(key)
	if !ok || stale {
		return InfiniteData[P]{}, false
	}
	d, ok := data.(InfiniteData[P])
	return d, ok
}

// SetInfinite replaces the paginated entry under key.
func SetInfinite[P any](s *Store, key Key, d InfiniteData[P]) {
	s.Set(key, d)
}

// AppendPage adds a page fetched with param to the fresh entry under key
// and reports whether it did. Without a fresh entry holding its first page
// there is nothing to extend, so the page is not cached.
func AppendPage[P any](s *Store, key Key, param any, page P) bool {
	k := append(Key(nil), key...)

	s.mu.Lock()
	e, ok := s.entries[k.hash()]
	if !ok || s.isStale(e) {
		s.mu.Unlock()
		return false
	}
	d, ok := e.data.(InfiniteData[P])
	if !ok || len(d.Pages) == 0 {
		s.mu.Unlock()
		return false
	}
	e.data = InfiniteData[P]{
		Pages:      append(append(make([]P, 0, len(d.Pages)+1), d.Pages...), page),
		PageParams: append(append(make([]any, 0, len(d.PageParams)+1), d.PageParams...), param),
	}
	s.mu.Unlock()

	s.notify([]Event{{Type: EventUpdated, Key: k}})
	return true
}

// PageFor returns the cached page fetched with param. Params must be
// comparable values.
func (d InfiniteData[P]) PageFor(param any) (P, bool) {
	for i, p := range d.PageParams {
		if p == param && i < len(d.Pages) {
			return d.Pages[i], true
		}
	}
	var zero P
	return zero, false
}
