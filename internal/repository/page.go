package repository

// PageBounds converts a page request into a [start, end) window over total
// items, clamped to the available range. A page past the end or a zero
// size yields an empty window.
func PageBounds(page, size, total int) (start, end int) {
	if size <= 0 || page < 0 || total == 0 || page > (total-1)/size {
		return 0, 0
	}
	start = page * size
	end = start + size
	if end > total {
		end = total
	}
	return start, end
}
