package querycache

// Identifiable items expose the id used to find them in cached pages.
type Identifiable interface {
	ItemID() string
}

// IDOf is the default id accessor.
func IDOf[T Identifiable](item T) string {
	return item.ItemID()
}

// ListLens reads and writes the item list of a page. Set must return a new
// page value and leave its argument untouched.
type ListLens[P, T any] struct {
	Get func(page P) []T
	Set func(page P, items []T) P
}

// AddItem prepends item to the first page of every paginated entry addressed
// by key. Entries without pages are left alone. Returns the number of
// entries changed.
func AddItem[P, T any](s *Store, key Key, lens ListLens[P, T], item T) int {
	return s.Update(key, func(_ Key, old any) (any, bool) {
		d, ok := old.(InfiniteData[P])
		if !ok || len(d.Pages) == 0 {
			return nil, false
		}

		list := lens.Get(d.Pages[0])
		items := make([]T, 0, len(list)+1)
		items = append(items, item)
		items = append(items, list...)

		pages := make([]P, len(d.Pages))
		copy(pages, d.Pages)
		pages[0] = lens.Set(d.Pages[0], items)

		return InfiniteData[P]{Pages: pages, PageParams: d.PageParams}, true
	})
}

// ReplaceItem swaps the first item whose id equals tempID for replacement,
// keeping its position, in every paginated entry addressed by key.
func ReplaceItem[P, T any](s *Store, key Key, lens ListLens[P, T], idOf func(T) string, tempID string, replacement T) int {
	return s.Update(key, func(_ Key, old any) (any, bool) {
		d, ok := old.(InfiniteData[P])
		if !ok {
			return nil, false
		}

		for pi, page := range d.Pages {
			list := lens.Get(page)
			for i, item := range list {
				if idOf(item) != tempID {
					continue
				}
				items := make([]T, len(list))
				copy(items, list)
				items[i] = replacement

				pages := make([]P, len(d.Pages))
				copy(pages, d.Pages)
				pages[pi] = lens.Set(page, items)

				return InfiniteData[P]{Pages: pages, PageParams: d.PageParams}, true
			}
		}
		return nil, false
	})
}

// RemoveItem drops every item whose id equals tempID from every page of
// every paginated entry addressed by key.
func RemoveItem[P, T any](s *Store, key Key, lens ListLens[P, T], idOf func(T) string, tempID string) int {
	return s.Update(key, func(_ Key, old any) (any, bool) {
		d, ok := old.(InfiniteData[P])
		if !ok {
			return nil, false
		}

		var pages []P
		for pi, page := range d.Pages {
			list := lens.Get(page)
			kept := filterOut(list, idOf, tempID)
			if len(kept) == len(list) {
				continue
			}
			if pages == nil {
				pages = make([]P, len(d.Pages))
				copy(pages, d.Pages)
			}
			pages[pi] = lens.Set(page, kept)
		}
		if pages == nil {
			return nil, false
		}
		return InfiniteData[P]{Pages: pages, PageParams: d.PageParams}, true
	})
}

// ContainsItem reports whether any entry addressed by key holds an item with id.
func ContainsItem[P, T any](s *Store, key Key, lens ListLens[P, T], idOf func(T) string, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if !e.key.HasPrefix(key) {
			continue
		}
		d, ok := e.data.(InfiniteData[P])
		if !ok {
			continue
		}
		for _, page := range d.Pages {
			for _, item := range lens.Get(page) {
				if idOf(item) == id {
					return true
				}
			}
		}
	}
	return false
}

func filterOut[T any](list []T, idOf func(T) string, id string) []T {
	n := 0
	for _, item := range list {
		if idOf(item) != id {
			n++
		}
	}
	if n == len(list) {
		return list
	}
	out := make([]T, 0, n)
	for _, item := range list {
		if idOf(item) != id {
			out = append(out, item)
		}
	}
	return out
}
