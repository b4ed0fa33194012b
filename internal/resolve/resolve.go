// SPDX-License-Identifier: MPL-2.0

// Package resolve turns requirement strings from version files into concrete
// versions picked from a catalog or the locally installed set.
//
// Requirement grammar, in match order:
//   - aliases ("latest", "lts", channel names) are resolved by the caller
//     against a live catalog; this package only recognizes them
//   - a bare major ("20") becomes the caret range ^20.0.0
//   - a dotted version with missing trailing components ("1.0") is an exact
//     match with the missing components defaulting to zero (=1.0.0)
//   - anything else is parsed as an explicit semver range (">=1.2 <2", "~18.19")
package resolve

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	// ErrNoMatch is returned when no candidate satisfies the requirement.
	ErrNoMatch = errors.New("resolve: no version satisfies requirement")

	// ErrBadRequirement is returned when the requirement string cannot be
	// parsed as a version or range.
	ErrBadRequirement = errors.New("resolve: malformed requirement")

	bareMajorRe  = regexp.MustCompile(`^\d+$`)
	bareDottedRe = regexp.MustCompile(`^\d+(\.\d+){0,2}$`)
)

// Exact reports whether req pins a single concrete version, returning the
// zero-padded form ("1.0" -> "1.0.0"). Bare majors are ranges, not pins.
func Exact(req string) (string, bool) {
	req = strings.TrimSpace(req)
	if bareMajorRe.MatchString(req) || !bareDottedRe.MatchString(req) {
		return "", false
	}
	return pad(req), true
}

// IsAlias reports whether req needs live catalog resolution instead of
// matching against a version list.
func IsAlias(req string) bool {
	switch strings.ToLower(strings.TrimSpace(req)) {
	case "latest", "lts", "stable", "beta", "nightly", "system":
		return true
	default:
		return false
	}
}

// Match selects the highest candidate satisfying req. Candidates that do not
// parse as semver are ignored rather than failing the whole match.
func Match(req string, candidates []string) (string, error) {
	constraint, err := toConstraint(req)
	if err != nil {
		return "", err
	}

	best := ""
	var bestVer *semver.Version
	for _, c := range candidates {
		v, err := semver.NewVersion(strings.TrimPrefix(c, "v"))
		if err != nil {
			continue
		}
		if !constraint.Check(v) {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			best = c
			bestVer = v
		}
	}
	if bestVer == nil {
		return "", fmt.Errorf("%w: %q against %d candidate(s)", ErrNoMatch, req, len(candidates))
	}
	return best, nil
}

// Satisfies reports whether version matches req under the same grammar as Match.
func Satisfies(req, version string) bool {
	constraint, err := toConstraint(req)
	if err != nil {
		return false
	}
	v, err := semver.NewVersion(strings.TrimPrefix(version, "v"))
	if err != nil {
		return false
	}
	return constraint.Check(v)
}

// Highest returns the highest semver entry of versions. Unparseable entries
// are skipped; ok is false when nothing parsed.
func Highest(versions []string) (string, bool) {
	best := ""
	var bestVer *semver.Version
	for _, c := range versions {
		v, err := semver.NewVersion(strings.TrimPrefix(c, "v"))
		if err != nil {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			best = c
			bestVer = v
		}
	}
	return best, bestVer != nil
}

// SortDescending orders versions highest-first. Unparseable entries sort last,
// keeping their relative order.
func SortDescending(versions []string) {
	parsed := make(map[string]*semver.Version, len(versions))
	for _, raw := range versions {
		if v, err := semver.NewVersion(strings.TrimPrefix(raw, "v")); err == nil {
			parsed[raw] = v
		}
	}
	sort.SliceStable(versions, func(i, j int) bool {
		vi, oki := parsed[versions[i]]
		vj, okj := parsed[versions[j]]
		if oki && okj {
			return vi.GreaterThan(vj)
		}
		return oki && !okj
	})
}

// Compare orders two possibly partial version strings, with missing
// components defaulting to zero ("1.0" == "1.0.0"). Unparseable strings
// compare as lowest.
func Compare(a, b string) int {
	va, errA := semver.NewVersion(pad(strings.TrimPrefix(a, "v")))
	vb, errB := semver.NewVersion(pad(strings.TrimPrefix(b, "v")))
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	default:
		return va.Compare(vb)
	}
}

func toConstraint(req string) (*semver.Constraints, error) {
	req = strings.TrimSpace(req)
	if req == "" {
		return nil, fmt.Errorf("%w: empty requirement", ErrBadRequirement)
	}

	switch {
	case bareMajorRe.MatchString(req):
		// "20" means any 20.x.y, highest preferred.
		req = "^" + req + ".0.0"
	case bareDottedRe.MatchString(req):
		// "1.0" pins exactly 1.0.0; missing components default to zero.
		req = "=" + pad(req)
	}

	c, err := semver.NewConstraint(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadRequirement, req, err)
	}
	return c, nil
}

// pad extends a dotted version to three components ("1.0" -> "1.0.0"),
// keeping any prerelease/build suffix intact.
func pad(v string) string {
	base, suffix := v, ""
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		base, suffix = v[:i], v[i:]
	}
	for strings.Count(base, ".") < 2 {
		base += ".0"
	}
	return base + suffix
}
