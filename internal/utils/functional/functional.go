package functional

// Map applies a function to each element of a slice and returns a new slice with the results
func Map[T any, U any](slice []T, fn func(T) U) []U {
	result := make([]U, len(slice))
	for i, item := range slice {
		result[i] = fn(item)
	}
	return result
}

// Filter returns a new slice containing only the elements that satisfy the predicate
func Filter[T any](slice []T, predicate func(T) bool) []T {
	result := make([]T, 0, len(slice))
	for _, item := range slice {
		if predicate(item) {
			result = append(result, item)
		}
	}
	return result
}

// Reduce folds the slice into a single value, left to right.
func Reduce[T any, U any](slice []T, initial U, fn func(U, T) U) U {
	accumulator := initial
	for _, item := range slice {
		accumulator = fn(accumulator, item)
	}
	return accumulator
}

// Any returns true if any element in the slice satisfies the predicate
func Any[T any](slice []T, predicate func(T) bool) bool {
	for _, item := range slice {
		if predicate(item) {
			return true
		}
	}
	return false
}

// PageCount is the number of pages of pageSize needed to hold total items.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize < 1 {
		return 0
	}
	return (total-1)/pageSize + 1
}

// Page returns the items of a 1-based page. Pages past the end yield an empty, non-nil slice.
func Page[T any](slice []T, page, pageSize int) []T {
	if page < 1 || pageSize < 1 || page > PageCount(len(slice), pageSize) {
		return []T{}
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(slice) {
		end = len(slice)
	}
	out := make([]T, end-start)
	copy(out, slice[start:end])
	return out
}
