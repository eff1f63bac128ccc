// Package verify checks a lockfile's own invariants: every stanza
// pins exactly one artifact, no package is pinned twice, every via
// referrer is itself locked, each pin satisfies the specifiers its
// referrers declare, and the canonical rendering round-trips.
package verify

import (
	"context"
	"strings"

	"piplock/lockfile"
	"piplock/pep440"
	"piplock/requirements"
	"piplock/storage"

	"github.com/sirupsen/logrus"
)

// Index supplies referrer dependency metadata, normally the
// data.Manager. A nil Index skips the metadata-backed checks.
type Index interface {
	Release(ctx context.Context, name, version string) (storage.Release, error)
}

type Verifier struct {
	Index Index
	Log   *logrus.Logger
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type Finding struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Package  string   `json:"package,omitempty"`
	Detail   string   `json:"detail"`
}

type Report struct {
	Entries  int       `json:"entries"`
	Findings []Finding `json:"findings,omitempty"`
}

// Failed reports whether any finding is an error.
func (r *Report) Failed() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (r *Report) add(sev Severity, code, pkg, detail string) {
	r.Findings = append(r.Findings, Finding{Severity: sev, Code: code, Package: pkg, Detail: detail})
}

// Verify runs every check against the lockfile and returns the report.
func (v *Verifier) Verify(ctx context.Context, lf *lockfile.Lockfile) (*Report, error) {
	report := &Report{Entries: len(lf.Entries)}

	byName := lf.ByName()

	v.checkDuplicates(lf, report)
	v.checkPins(lf, report)
	v.checkViaClosure(lf, byName, report)
	v.checkRoundTrip(lf, report)

	if v.Index != nil {
		if err := v.checkReferrerConstraints(ctx, lf, byName, report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func (v *Verifier) checkDuplicates(lf *lockfile.Lockfile, report *Report) {
	seen := make(map[string]lockfile.Entry)
	for _, e := range lf.Entries {
		prev, dup := seen[e.Canonical]
		if !dup {
			seen[e.Canonical] = e
			continue
		}
		if pinText(prev) == pinText(e) {
			report.add(SeverityWarning, "duplicate", e.Name,
				"package appears in more than one stanza with the same pin")
		} else {
			report.add(SeverityError, "duplicate", e.Name,
				"package pinned twice: "+pinText(prev)+" and "+pinText(e))
		}
	}
}

func (v *Verifier) checkPins(lf *lockfile.Lockfile, report *Report) {
	for _, e := range lf.Entries {
		if !e.Pinned() {
			detail := "stanza does not pin an exact version"
			if e.Specifiers != "" {
				detail += " (" + e.Specifiers + ")"
			}
			report.add(SeverityError, "unpinned", e.Name, detail)
		}
	}
}

// checkViaClosure: a via referrer that names a package must itself be
// an entry; a locked environment is transitively closed.
func (v *Verifier) checkViaClosure(lf *lockfile.Lockfile, byName map[string]lockfile.Entry, report *Report) {
	for _, e := range lf.Entries {
		for _, ref := range e.Via {
			if isFileLabel(ref) {
				continue
			}
			if _, ok := byName[pep440.NormalizeName(ref)]; !ok {
				report.add(SeverityError, "missing-referrer", e.Name,
					"via referrer "+ref+" is not locked in this file")
			}
		}
	}
}

func (v *Verifier) checkRoundTrip(lf *lockfile.Lockfile, report *Report) {
	canonical := lf.Canonical()
	reparsed, err := lockfile.Parse(canonical)
	if err != nil {
		report.add(SeverityError, "round-trip", "", "canonical form does not re-parse: "+err.Error())
		return
	}
	if reparsed.Canonical() != canonical {
		report.add(SeverityError, "round-trip", "", "canonical form is not regeneration-stable")
	}
}

// checkReferrerConstraints verifies each pin against the specifiers
// its referrers' pinned releases declare for it, and flags yanked
// pins. Metadata the index cannot supply downgrades to a warning.
func (v *Verifier) checkReferrerConstraints(ctx context.Context, lf *lockfile.Lockfile, byName map[string]lockfile.Entry, report *Report) error {
	requires := make(map[string]map[string]pep440.SpecifierSet)

	for _, e := range lf.Entries {
		if e.Version == "" {
			continue
		}

		rel, err := v.Index.Release(ctx, e.Canonical, e.Version)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			v.Log.WithError(err).Debugf("no metadata for %s==%s", e.Name, e.Version)
			report.add(SeverityWarning, "unknown-metadata", e.Name,
				"index has no metadata for "+e.Name+"=="+e.Version)
			continue
		}
		if rel.Yanked {
			report.add(SeverityWarning, "yanked", e.Name,
				e.Name+"=="+e.Version+" has been yanked from the index")
		}

		declared := make(map[string]pep440.SpecifierSet)
		for _, raw := range rel.Requires {
			dep, err := requirements.ParseRequirement(raw)
			if err != nil {
				continue
			}
			declared[dep.Canonical] = dep.Specifiers
		}
		requires[e.Canonical] = declared
	}

	for _, e := range lf.Entries {
		if e.Version == "" {
			continue
		}
		pinned, err := pep440.ParseVersion(e.Version)
		if err != nil {
			report.add(SeverityError, "invalid-version", e.Name, "pin is not a valid version: "+e.Version)
			continue
		}

		for _, ref := range e.Via {
			if isFileLabel(ref) {
				continue
			}
			refCanonical := pep440.NormalizeName(ref)
			declared, known := requires[refCanonical]
			if !known {
				continue
			}
			specs, listed := declared[e.Canonical]
			if !listed {
				report.add(SeverityWarning, "undeclared", e.Name,
					ref+" does not declare a dependency on "+e.Name)
				continue
			}
			if !specs.Empty() && !specs.Matches(pinned) {
				report.add(SeverityError, "constraint-violated", e.Name,
					e.Name+"=="+e.Version+" does not satisfy "+specs.String()+" declared by "+ref)
			}
		}
	}

	return nil
}

func pinText(e lockfile.Entry) string {
	if e.URL != "" {
		return e.URL
	}
	return e.Version
}

func isFileLabel(ref string) bool {
	return strings.HasPrefix(ref, "-r ") || strings.HasPrefix(ref, "-c ")
}
