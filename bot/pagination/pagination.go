// Package pagination slices an already-fetched list into pages. The backend
// returns whole lists; paging is purely a presentation concern here.
package pagination

// DefaultPageSize is how many list entries one message shows.
const DefaultPageSize = 5

// Pages returns how many pages the list spans. An empty list still has one
// page so "page 1 of 1" renders instead of "1 of 0".
func Pages(total, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// Clamp forces page into [0, Pages-1]. Stale page indexes, e.g. after a list
// shrank between callbacks, land on the nearest valid page.
func Clamp(page, total, size int) int {
	last := Pages(total, size) - 1
	if page < 0 {
		return 0
	}
	if page > last {
		return last
	}
	return page
}

// Window returns the items of the given page plus whether neighbour pages
// exist. The page index is clamped first, so callers can pass user-supplied
// values directly.
func Window[T any](items []T, page, size int) (window []T, hasPrev, hasNext bool) {
	if size <= 0 {
		size = DefaultPageSize
	}
	page = Clamp(page, len(items), size)

	from := page * size
	to := from + size
	if from > len(items) {
		from = len(items)
	}
	if to > len(items) {
		to = len(items)
	}
	return items[from:to], page > 0, to < len(items)
}
