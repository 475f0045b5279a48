package version

import (
	"strconv"
	"strings"
)

type semver struct {
	major, minor, patch int
	pre                 string
}

// parseSemver accepts "v1.2.3", "1.2.3" and an optional "-pre" suffix.
// Incomplete versions like "v2.4" parse with missing parts as zero.
func parseSemver(s string) (semver, bool) {
	s = strings.TrimPrefix(s, "v")
	if s == "" {
		return semver{}, false
	}

	var v semver
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		v.pre = s[idx+1:]
		s = s[:idx]
	}

	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return semver{}, false
	}
	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return semver{}, false
		}
		nums[i] = n
	}
	v.major, v.minor, v.patch = nums[0], nums[1], nums[2]
	return v, true
}

// compareSemver returns -1, 0 or 1. A release sorts above its prereleases.
func compareSemver(a, b semver) int {
	for _, d := range [3]int{a.major - b.major, a.minor - b.minor, a.patch - b.patch} {
		if d != 0 {
			if d > 0 {
				return 1
			}
			return -1
		}
	}
	switch {
	case a.pre == b.pre:
		return 0
	case a.pre == "":
		return 1
	case b.pre == "":
		return -1
	default:
		return strings.Compare(a.pre, b.pre)
	}
}
