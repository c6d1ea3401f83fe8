package catalog

// Page returns the pageIndex-th window of size pageSize over items. It does
// not clamp: an out-of-range index yields an empty slice. Callers clamp with
// ClampPage first.
func Page[T any](items []T, pageIndex, pageSize int) []T {
	if pageSize <= 0 || pageIndex < 0 {
		return nil
	}
	start := pageIndex * pageSize
	if start >= len(items) {
		return nil
	}
	end := min(start+pageSize, len(items))
	return items[start:end]
}

// PageCount is ceil(itemCount / pageSize).
func PageCount(itemCount, pageSize int) int {
	if pageSize <= 0 || itemCount <= 0 {
		return 0
	}
	return (itemCount + pageSize - 1) / pageSize
}

// ClampPage restricts pageIndex to [0, pageCount-1].
func ClampPage(pageIndex, pageCount int) int {
	if pageIndex >= pageCount {
		pageIndex = pageCount - 1
	}
	if pageIndex < 0 {
		return 0
	}
	return pageIndex
}
