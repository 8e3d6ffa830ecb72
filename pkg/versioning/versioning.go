// Package versioning compares version strings under a configurable scheme.
// The version-sync task uses it to decide whether two manifests declare the
// same project version even when they format it differently (v-prefix,
// build metadata).
package versioning

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Scheme describes how to interpret and compare version strings.
type Scheme string

const (
	// SchemeSemver interprets versions as Semantic Versioning 2.0.0.
	SchemeSemver Scheme = "semver"
	// SchemeCalver interprets versions as calendar versions (YYYY.MM or YYYY.MM.DD).
	SchemeCalver Scheme = "calver"
	// SchemeLexical compares raw strings.
	SchemeLexical Scheme = "lexical"
)

var (
	semverPattern = regexp.MustCompile(`^(?:[vV])?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z.-]+))?(?:\+([0-9A-Za-z.-]+))?$`)
	calverPattern = regexp.MustCompile(`^([0-9]{4})[._-]([0-9]{1,2})(?:[._-]([0-9]{1,2}))?$`)
)

// Version is a parsed version under some scheme.
type Version struct {
	Scheme     Scheme
	Major      int
	Minor      int
	Patch      int
	Prerelease string
	Raw        string
}

// Parse parses s under the given scheme. For SchemeLexical the string is kept
// as-is and never fails.
func Parse(scheme Scheme, s string) (Version, error) {
	trimmed := strings.TrimSpace(s)
	switch scheme {
	case SchemeSemver, "":
		m := semverPattern.FindStringSubmatch(trimmed)
		if m == nil {
			return Version{}, fmt.Errorf("invalid semver version %q", s)
		}
		major, _ := strconv.Atoi(m[1])
		minor, _ := strconv.Atoi(m[2])
		patch, _ := strconv.Atoi(m[3])
		return Version{Scheme: SchemeSemver, Major: major, Minor: minor, Patch: patch, Prerelease: m[4], Raw: trimmed}, nil
	case SchemeCalver:
		m := calverPattern.FindStringSubmatch(trimmed)
		if m == nil {
			return Version{}, fmt.Errorf("invalid calver version %q", s)
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day := 0
		if m[3] != "" {
			day, _ = strconv.Atoi(m[3])
		}
		return Version{Scheme: SchemeCalver, Major: year, Minor: month, Patch: day, Raw: trimmed}, nil
	case SchemeLexical:
		return Version{Scheme: SchemeLexical, Raw: trimmed}, nil
	default:
		return Version{}, fmt.Errorf("unknown version scheme %q", scheme)
	}
}

// Normalize returns the canonical rendering of a version string under the
// scheme, dropping v-prefix and build metadata. Returns the trimmed input when
// the string does not parse.
func Normalize(scheme Scheme, s string) string {
	v, err := Parse(scheme, s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return v.Canonical()
}

// Canonical renders the version without prefix or build metadata.
func (v Version) Canonical() string {
	switch v.Scheme {
	case SchemeSemver:
		base := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
		if v.Prerelease != "" {
			return base + "-" + v.Prerelease
		}
		return base
	case SchemeCalver:
		if v.Patch > 0 {
			return fmt.Sprintf("%04d.%02d.%02d", v.Major, v.Minor, v.Patch)
		}
		return fmt.Sprintf("%04d.%02d", v.Major, v.Minor)
	default:
		return v.Raw
	}
}

// Equal reports whether two version strings denote the same version under the
// scheme. Strings that fail to parse are compared literally after trimming.
func Equal(scheme Scheme, a, b string) bool {
	return Normalize(scheme, a) == Normalize(scheme, b)
}

// Compare orders a against b: -1, 0, or 1. Lexical scheme falls back to string
// ordering; unparseable versions compare lexically as well.
func Compare(scheme Scheme, a, b string) int {
	va, errA := Parse(scheme, a)
	vb, errB := Parse(scheme, b)
	if errA != nil || errB != nil || scheme == SchemeLexical {
		return strings.Compare(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	if c := compareInt(va.Major, vb.Major); c != 0 {
		return c
	}
	if c := compareInt(va.Minor, vb.Minor); c != 0 {
		return c
	}
	if c := compareInt(va.Patch, vb.Patch); c != 0 {
		return c
	}
	return comparePrerelease(va.Prerelease, vb.Prerelease)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// comparePrerelease follows SemVer: a release outranks any prerelease, and
// prerelease identifiers compare numerically when both are numeric.
func comparePrerelease(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return 1
	}
	if b == "" {
		return -1
	}
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		ai, aNum := strconv.Atoi(as[i])
		bi, bNum := strconv.Atoi(bs[i])
		switch {
		case aNum == nil && bNum == nil:
			if c := compareInt(ai, bi); c != 0 {
				return c
			}
		case aNum == nil:
			return -1 // numeric identifiers sort before alphanumeric
		case bNum == nil:
			return 1
		default:
			if c := strings.Compare(as[i], bs[i]); c != 0 {
				return c
			}
		}
	}
	return compareInt(len(as), len(bs))
}
