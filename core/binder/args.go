package binder

// Args holds the bound and coerced handler arguments, in declaration order.
//
// Query, Header and Body arguments hold int, string, bool, []byte or
// map[string]any according to their Kind, or nil for "null". Dependency
// arguments hold whatever the dependency returned.
type Args []any

// Value returns the i-th argument as is
func (a Args) Value(i int) any {
	return a[i]
}

// IsNull reports whether the i-th argument is nil
func (a Args) IsNull(i int) bool {
	return a[i] == nil
}

// Int returns the i-th argument, or 0 when it is not an int
func (a Args) Int(i int) int {
	n, _ := a[i].(int)
	return n
}

// String returns the i-th argument, or "" when it is not a string
func (a Args) String(i int) string {
	s, _ := a[i].(string)
	return s
}

// Bool returns the i-th argument, or false when it is not a bool
func (a Args) Bool(i int) bool {
	b, _ := a[i].(bool)
	return b
}

// Bytes returns the i-th argument, or nil when it is not a byte slice
func (a Args) Bytes(i int) []byte {
	b, _ := a[i].([]byte)
	return b
}

// Dict returns the i-th argument, or nil when it is not a JSON object
func (a Args) Dict(i int) map[string]any {
	m, _ := a[i].(map[string]any)
	return m
}
