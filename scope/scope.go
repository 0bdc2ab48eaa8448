package scope

import "strings"

// Normalize trims every label, drops empty ones and duplicates, and keeps the
// first-seen order. The result is a fresh slice.
func Normalize(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		for _, part := range strings.Fields(l) {
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

// Format renders labels as the space-delimited claim value.
func Format(labels []string) string {
	return strings.Join(Normalize(labels), " ")
}

// Parse splits a claim value back into labels. An empty claim yields an empty,
// non-nil slice.
func Parse(claim string) []string {
	return Normalize([]string{claim})
}

// Equal reports whether a and b hold the same labels in the same order.
func Equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
