// Package ptr builds pointers to literals for optional pattern and definition
// fields.
package ptr

// To returns a pointer to a copy of v.
func To[T any](v T) *T {
	return &v
}
