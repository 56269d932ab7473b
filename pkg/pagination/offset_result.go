package pagination

// OffsetResult is one page of items. HasMore is known without counting the full set:
// callers fetch Size+1 items and pass them all in.
type OffsetResult[T any] struct {
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	Size    int  `json:"size"`
	HasMore bool `json:"hasMore"`
}

// NewOffsetResult trims a Size+1 lookahead fetch down to one page.
func NewOffsetResult[T any](items []T, page int, size int) *OffsetResult[T] {
	hasMore := len(items) > size
	if hasMore {
		items = items[:size]
	}
	if items == nil {
		items = []T{}
	}

	return &OffsetResult[T]{
		Items:   items,
		Page:    page,
		Size:    size,
		HasMore: hasMore,
	}
}
