// Package merge joins successive transcript fragments, suppressing text that
// the tail of the running transcript and the head of the new fragment share.
package merge

import "strings"

const (
	// DefaultMaxOverlap is how many trailing characters of the base are searched.
	DefaultMaxOverlap = 80
	// DefaultMinOverlap is the shortest overlap considered a real repetition.
	// Shorter matches are usually common words and would cause spurious merges.
	DefaultMinOverlap = 6
)

// Merger holds the overlap search bounds. The zero value uses the defaults.
type Merger struct {
	MaxOverlap int
	MinOverlap int
}

// Merge combines base and addition with the default bounds.
func Merge(base, addition string) string {
	return Merger{}.Merge(base, addition)
}

// Merge trims both inputs and appends addition to base. When the last k
// characters of base equal the first k characters of addition (ignoring case)
// for some MinOverlap <= k <= MaxOverlap, the largest such k is removed from
// addition before appending. Otherwise the two are joined with a space.
func (m Merger) Merge(base, addition string) string {
	b := strings.TrimSpace(base)
	a := strings.TrimSpace(addition)
	if b == "" {
		return a
	}
	if a == "" {
		return b
	}

	maxOverlap := m.MaxOverlap
	if maxOverlap <= 0 {
		maxOverlap = DefaultMaxOverlap
	}
	minOverlap := m.MinOverlap
	if minOverlap <= 0 {
		minOverlap = DefaultMinOverlap
	}

	br := []rune(b)
	ar := []rune(a)

	tail := br
	if len(tail) > maxOverlap {
		tail = tail[len(tail)-maxOverlap:]
	}

	upper := min(len(tail), len(ar))
	for k := upper; k >= minOverlap; k-- {
		if strings.EqualFold(string(tail[len(tail)-k:]), string(ar[:k])) {
			return strings.TrimSpace(b + string(ar[k:]))
		}
	}
	return strings.TrimSpace(b + " " + a)
}
