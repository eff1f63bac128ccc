// Package requirements parses requirement declarations: the lines of
// .in source files and constraint files, and the requirement strings
// package metadata declares for its dependencies.
package requirements

import (
	"fmt"
	"strings"

	"piplock/pep440"
)

// Requirement is one parsed requirement, e.g.
// "celery[redis]>=5.2,<6.0 ; python_version >= \"3.8\"".
type Requirement struct {
	Name       string
	Canonical  string
	Extras     []string
	Specifiers pep440.SpecifierSet
	URL        string
	Marker     string
	// Origin is the provenance label the requirement entered through,
	// e.g. "-r requirements/base.in" or a referrer package name.
	Origin string
}

// ParseRequirement parses a single PEP 508-style requirement string.
// Environment markers are retained verbatim, not evaluated.
func ParseRequirement(s string) (Requirement, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Requirement{}, fmt.Errorf("empty requirement")
	}

	var req Requirement

	if i := strings.Index(raw, ";"); i >= 0 {
		req.Marker = strings.TrimSpace(raw[i+1:])
		raw = strings.TrimSpace(raw[:i])
	}

	// Direct reference: "name @ https://..."
	if i := strings.Index(raw, "@"); i >= 0 && strings.Contains(raw[i:], "://") {
		req.URL = strings.TrimSpace(raw[i+1:])
		raw = strings.TrimSpace(raw[:i])
	}

	if i := strings.IndexAny(raw, "<>=!~("); i >= 0 {
		specText := strings.TrimSpace(raw[i:])
		specText = strings.TrimPrefix(specText, "(")
		specText = strings.TrimSuffix(specText, ")")
		set, err := pep440.ParseSpecifierSet(specText)
		if err != nil {
			return Requirement{}, fmt.Errorf("requirement %q: %w", s, err)
		}
		req.Specifiers = set
		raw = strings.TrimSpace(raw[:i])
	}

	if i := strings.Index(raw, "["); i >= 0 {
		end := strings.Index(raw, "]")
		if end < i {
			return Requirement{}, fmt.Errorf("requirement %q: unterminated extras", s)
		}
		for _, extra := range strings.Split(raw[i+1:end], ",") {
			extra = strings.TrimSpace(extra)
			if extra != "" {
				req.Extras = append(req.Extras, pep440.NormalizeName(extra))
			}
		}
		raw = strings.TrimSpace(raw[:i] + raw[end+1:])
	}

	if raw == "" {
		return Requirement{}, fmt.Errorf("requirement %q has no package name", s)
	}
	if strings.ContainsAny(raw, " \t") {
		return Requirement{}, fmt.Errorf("requirement %q: invalid package name %q", s, raw)
	}

	req.Name = raw
	req.Canonical = pep440.NormalizeName(raw)
	return req, nil
}

// String renders the requirement back in PEP 508 shape.
func (r Requirement) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if len(r.Extras) > 0 {
		b.WriteString("[" + strings.Join(r.Extras, ",") + "]")
	}
	if r.URL != "" {
		b.WriteString(" @ " + r.URL)
	} else if !r.Specifiers.Empty() {
		b.WriteString(r.Specifiers.String())
	}
	if r.Marker != "" {
		b.WriteString(" ; " + r.Marker)
	}
	return b.String()
}

// Pinned reports whether the requirement fixes a single version.
func (r Requirement) Pinned() bool {
	if r.URL != "" {
		return true
	}
	_, ok := r.Specifiers.ExactPin()
	return ok
}
