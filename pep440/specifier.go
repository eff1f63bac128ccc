package pep440

import (
	"fmt"
	"strings"
)

// Specifier is a single PEP 440 version clause, e.g. ">=1.2" or "==2.1.*".
type Specifier struct {
	Op       string
	Version  string
	Wildcard bool
}

// SpecifierSet is the AND of its clauses. The zero value matches
// every version.
type SpecifierSet struct {
	Specifiers []Specifier
}

var specifierOps = []string{"===", "==", "!=", "~=", ">=", "<=", ">", "<"}

// ParseSpecifier parses a single clause like ">= 1.2.3".
func ParseSpecifier(s string) (Specifier, error) {
	s = strings.TrimSpace(s)
	for _, op := range specifierOps {
		if !strings.HasPrefix(s, op) {
			continue
		}
		ver := strings.TrimSpace(strings.TrimPrefix(s, op))
		if ver == "" {
			return Specifier{}, fmt.Errorf("specifier %q has no version", s)
		}
		spec := Specifier{Op: op, Version: ver}
		if strings.HasSuffix(ver, ".*") {
			if op != "==" && op != "!=" {
				return Specifier{}, fmt.Errorf("wildcard not allowed with %q in %q", op, s)
			}
			spec.Wildcard = true
			spec.Version = strings.TrimSuffix(ver, ".*")
		}
		if op != "===" {
			if _, err := ParseVersion(spec.Version); err != nil {
				return Specifier{}, fmt.Errorf("specifier %q: %w", s, err)
			}
		}
		return spec, nil
	}
	return Specifier{}, fmt.Errorf("specifier %q has no comparison operator", s)
}

// ParseSpecifierSet parses a comma-separated clause list like
// ">=1.2,<2.0". An empty string yields a set that matches everything.
func ParseSpecifierSet(s string) (SpecifierSet, error) {
	var set SpecifierSet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		spec, err := ParseSpecifier(part)
		if err != nil {
			return SpecifierSet{}, err
		}
		set.Specifiers = append(set.Specifiers, spec)
	}
	return set, nil
}

func (s Specifier) String() string {
	v := s.Version
	if s.Wildcard {
		v += ".*"
	}
	return s.Op + v
}

func (s SpecifierSet) String() string {
	parts := make([]string, len(s.Specifiers))
	for i, spec := range s.Specifiers {
		parts[i] = spec.String()
	}
	return strings.Join(parts, ",")
}

// Empty reports whether the set has no clauses.
func (s SpecifierSet) Empty() bool {
	return len(s.Specifiers) == 0
}

// Matches reports whether v satisfies the clause.
func (s Specifier) Matches(v Version) bool {
	if s.Op == "===" {
		return strings.EqualFold(strings.TrimSpace(s.Version), v.Original())
	}

	sv := MustParseVersion(s.Version)

	switch s.Op {
	case "==":
		if s.Wildcard {
			return matchesPrefix(v, sv)
		}
		return equalIgnoringLocal(v, sv)
	case "!=":
		if s.Wildcard {
			return !matchesPrefix(v, sv)
		}
		return !equalIgnoringLocal(v, sv)
	case ">=":
		return v.Compare(sv) >= 0
	case "<=":
		return v.Compare(sv) <= 0
	case ">":
		return v.Compare(sv) > 0
	case "<":
		return v.Compare(sv) < 0
	case "~=":
		return matchesCompatible(v, sv)
	}
	return false
}

// Matches reports whether v satisfies every clause in the set.
func (s SpecifierSet) Matches(v Version) bool {
	for _, spec := range s.Specifiers {
		if !spec.Matches(v) {
			return false
		}
	}
	return true
}

// AllowsPrereleases reports whether any clause explicitly names a
// pre-release or dev version, which is the signal installers use to
// opt candidate pre-releases in.
func (s SpecifierSet) AllowsPrereleases() bool {
	for _, spec := range s.Specifiers {
		if spec.Op == "===" {
			continue
		}
		if v, err := ParseVersion(spec.Version); err == nil && v.IsPrerelease() {
			return true
		}
	}
	return false
}

// equalIgnoringLocal implements "==" equality: the candidate's local
// segment is ignored when the clause carries none, so "==5.1.1"
// accepts "5.1.1+foo".
func equalIgnoringLocal(v, sv Version) bool {
	if sv.Local == "" {
		v.Local = ""
	}
	return v.Compare(sv) == 0
}

// matchesPrefix implements "== X.Y.*": epoch equal and the release
// starts with the prefix release, zero-padded as needed.
func matchesPrefix(v, prefix Version) bool {
	if v.Epoch != prefix.Epoch {
		return false
	}
	for i, n := range prefix.Release {
		got := 0
		if i < len(v.Release) {
			got = v.Release[i]
		}
		if got != n {
			return false
		}
	}
	return true
}

// matchesCompatible implements "~= X.Y[.Z]": at least the given
// version, and matching it with the final release segment wildcarded.
func matchesCompatible(v, base Version) bool {
	if len(base.Release) < 2 {
		return false
	}
	if v.Compare(base) < 0 {
		return false
	}
	prefix := Version{Epoch: base.Epoch, Release: base.Release[:len(base.Release)-1]}
	return matchesPrefix(v, prefix)
}

// Intersect returns a set requiring both s and other.
func (s SpecifierSet) Intersect(other SpecifierSet) SpecifierSet {
	merged := SpecifierSet{}
	merged.Specifiers = append(merged.Specifiers, s.Specifiers...)
	merged.Specifiers = append(merged.Specifiers, other.Specifiers...)
	return merged
}

// ExactPin returns the pinned version when the set is a single "=="
// clause without wildcard, the way lockfile stanzas pin.
func (s SpecifierSet) ExactPin() (string, bool) {
	if len(s.Specifiers) != 1 {
		return "", false
	}
	spec := s.Specifiers[0]
	if spec.Op != "==" || spec.Wildcard {
		return "", false
	}
	return spec.Version, true
}
