package functional

// Map applies fn to each element and returns the results in order.
func Map[T any, U any](slice []T, fn func(T) U) []U {
	result := make([]U, len(slice))
	for i, item := range slice {
		result[i] = fn(item)
	}
	return result
}

// Filter returns the elements that satisfy the predicate, preserving order.
func Filter[T any](slice []T, predicate func(T) bool) []T {
	result := make([]T, 0, len(slice))
	for _, item := range slice {
		if predicate(item) {
			result = append(result, item)
		}
	}
	return result
}

// Reduce folds the slice into a single value.
func Reduce[T any, U any](slice []T, initial U, fn func(U, T) U) U {
	accumulator := initial
	for _, item := range slice {
		accumulator = fn(accumulator, item)
	}
	return accumulator
}

// KeyBy indexes the slice by the key returned from fn. Later elements win.
func KeyBy[T any, K comparable](slice []T, fn func(T) K) map[K]T {
	result := make(map[K]T, len(slice))
	for _, item := range slice {
		result[fn(item)] = item
	}
	return result
}

// Take returns at most n leading elements.
func Take[T any](slice []T, n int) []T {
	if n < 0 || n >= len(slice) {
		return slice
	}
	return slice[:n]
}

// TakeLast returns at most n trailing elements.
func TakeLast[T any](slice []T, n int) []T {
	if n < 0 || n >= len(slice) {
		return slice
	}
	return slice[len(slice)-n:]
}
