package database

type listOptions struct {
	limit  int
	offset int
	sort   Sort
}

type ListOption func(*listOptions)

// Limit the number of packages returned. Zero selects MaxListLimit.
func WithListLimit(limit int) ListOption {
	return func(o *listOptions) {
		o.limit = limit
	}
}

// Skip the first offset packages.
func WithListOffset(offset int) ListOption {
	return func(o *listOptions) {
		o.offset = offset
	}
}

// Return the packages in a specific order.
func WithListSort(sort Sort) ListOption {
	return func(o *listOptions) {
		o.sort = sort
	}
}
