package similartext

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const maxDistance = 2

// Distance returns the Levenshtein distance of a and b.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// Find returns a suggestion of the names closest to src, in the form
// ", maybe you mean x?", or an empty string if none is close enough.
func Find(names []string, src string) string {
	if src == "" {
		return ""
	}

	best := -1
	var matches []string
	for _, name := range names {
		d := Distance(name, src)
		switch {
		case best < 0 || d < best:
			best = d
			matches = []string{name}
		case d == best:
			matches = append(matches, name)
		}
	}

	if best < 0 || best > maxDistance {
		return ""
	}
	return fmt.Sprintf(", maybe you mean %s?", strings.Join(matches, " or "))
}

// FindFromMap is like Find, using the sorted keys of names.
func FindFromMap[T any](names map[string]T, src string) string {
	keys := maps.Keys(names)
	slices.Sort(keys)
	return Find(keys, src)
}
