package queryir

import "github.com/roach88/docrepo/internal/ir"

// ResolveLimit composes a fixed result cap with a page request.
//
// A page yields limit = size (size+1 for slices, to detect a following
// page) and offset = index*size. A cap > 0 always wins as the limit. When
// the page is larger than the cap and is not the first page, the offset is
// shifted back by size-cap because the cap already truncated earlier pages.
//
//	ResolveLimit(5, &ir.PageRequest{Index: 1, Size: 10}, false) == (5, 5)
//
// A zero limit means "no limit".
func ResolveLimit(limitCap int, page *ir.PageRequest, slice bool) (limit, offset int) {
	if page != nil && page.Size > 0 {
		limit = page.Size
		if slice {
			limit++
		}
		offset = page.Offset()
	}
	if limitCap > 0 {
		if page != nil && page.Size > limitCap && page.Index > 0 {
			offset -= page.Size - limitCap
		}
		limit = limitCap
	}
	return limit, offset
}
