// Package version decides which fetched release counts as "latest" and which
// branches and tags are whitelisted for a build.
package version

import (
	"errors"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/deepankarm/docver/internal/config"
)

// ErrNoReleases is returned when the fetched release list is empty and
// "latest" is therefore undefined.
var ErrNoReleases = errors.New("release list is empty, latest version undefined")

// SelectLatest picks the latest published version from a newest-first tag list.
//
// Under PolicyStable the second-most-recent tag wins: the newest tag is
// assumed to be staged and not yet published. A single-element list falls back
// to that element.
func SelectLatest(tags []string, policy config.ReleasePolicy) (string, error) {
	if len(tags) == 0 {
		return "", ErrNoReleases
	}
	if policy == config.PolicyNewest || len(tags) == 1 {
		return tags[0], nil
	}
	return tags[1], nil
}

// BranchWhitelist computes the branches to build. The default branch is always
// included; in development mode the current branch is prepended when it
// differs from the default.
func BranchWhitelist(current, defaultBranch string, development bool) []string {
	if development && current != "" && current != defaultBranch {
		return []string{current, defaultBranch}
	}
	return []string{defaultBranch}
}

// DropdownOrder returns the versions in the order they appear in the site's
// version selector: the default branch first, then the fetched tags
// newest-first.
func DropdownOrder(defaultBranch string, tags []string, includeDefault bool) []string {
	ordered := make([]string, 0, len(tags)+1)
	if includeDefault {
		ordered = append(ordered, defaultBranch)
	}
	return append(ordered, tags...)
}

// SortVersions orders version names newest-first for deterministic output
// listings. Semver-shaped names sort by version; everything else sorts behind
// them using an English collation.
func SortVersions(names []string) {
	coll := collate.New(language.English)
	sort.SliceStable(names, func(i, j int) bool {
		vi, oki := parseSemver(names[i])
		vj, okj := parseSemver(names[j])
		switch {
		case oki && okj:
			return compareSemver(vi, vj) > 0
		case oki:
			return true
		case okj:
			return false
		default:
			return coll.CompareString(names[i], names[j]) < 0
		}
	})
}
