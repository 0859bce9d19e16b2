// Package scope implements the fixed-width permission bitmask carried by
// every credential. A scope value is a plain uint64; checking a grant
// against a requirement is a single AND, allocation free.
package scope

// Conventional bits used by calling code. The engine assigns no meaning to
// individual bits beyond this convention.
const (
	Read  uint64 = 1 << 0
	Write uint64 = 1 << 1
	Admin uint64 = 1 << 2
)

// Satisfies reports whether the granted mask covers every bit of the
// required mask. A required mask of zero means "no specific scope beyond
// being active and unexpired" and is always satisfied.
func Satisfies(granted, required uint64) bool {
	return granted&required == required
}
