package update

import (
	"strconv"
	"strings"
)

// Compare orders two dotted version strings numerically. Components that are
// not integers are skipped and the shorter version is padded with zeros, so
// "1.1" and "1.1.0" are equal. It returns -1, 0 or +1.
func Compare(a, b string) int {
	left := components(a)
	right := components(b)

	for len(left) < len(right) {
		left = append(left, 0)
	}

	for len(right) < len(left) {
		right = append(right, 0)
	}

	for i := range left {
		switch {
		case left[i] > right[i]:
			return 1
		case left[i] < right[i]:
			return -1
		}
	}

	return 0
}

// IsNewerVersionAvailable reports whether candidate is strictly greater than
// current.
func IsNewerVersionAvailable(current, candidate string) bool {
	return Compare(candidate, current) > 0
}

// TrimTag removes a leading "v" from a release tag.
func TrimTag(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "v")
}

func components(version string) []int {
	parts := strings.Split(version, ".")
	values := make([]int, 0, len(parts))

	for _, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil {
			continue
		}

		values = append(values, value)
	}

	return values
}
