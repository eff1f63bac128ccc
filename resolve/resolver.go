// Package resolve compiles requirement source files into a pinned
// lockfile: a breadth-first walk of the requirement graph that picks,
// for every package, the highest index version satisfying every
// specifier and constraint collected for it, and records which
// referrers pulled each package in.
package resolve

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"piplock/lockfile"
	"piplock/pep440"
	"piplock/requirements"
	"piplock/storage"

	"github.com/sirupsen/logrus"
)

// Index supplies candidate versions and release metadata, normally
// the data.Manager.
type Index interface {
	Versions(ctx context.Context, name string) ([]string, error)
	Release(ctx context.Context, name, version string) (storage.Release, error)
}

type Resolver struct {
	Index Index
	Log   *logrus.Logger
	// Command is the invocation recorded in the output banner.
	Command string
}

// ConflictError reports an empty candidate set for a package, naming
// every clause that contributed to it.
type ConflictError struct {
	Package string
	Clauses []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("no version of %s satisfies %s", e.Package, strings.Join(e.Clauses, " and "))
}

type scopedSpec struct {
	specs  pep440.SpecifierSet
	origin string
}

type candidate struct {
	display string
	version string
	url     string
	via     map[string]struct{}
	extras  map[string]struct{}
	specs   []scopedSpec
}

func (c *candidate) extraList() []string {
	out := make([]string, 0, len(c.extras))
	for e := range c.extras {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

type state struct {
	candidates  map[string]*candidate
	constraints map[string][]scopedSpec
}

// Compile resolves the requirement sources into a canonical lockfile.
func (r *Resolver) Compile(ctx context.Context, src *requirements.Sources) (*lockfile.Lockfile, error) {
	st := &state{
		candidates:  make(map[string]*candidate),
		constraints: make(map[string][]scopedSpec),
	}
	for _, c := range src.Constraints {
		if c.Specifiers.Empty() {
			continue
		}
		st.constraints[c.Canonical] = append(st.constraints[c.Canonical],
			scopedSpec{specs: c.Specifiers, origin: c.Origin})
	}

	queue := append([]requirements.Requirement(nil), src.Requirements...)
	for len(queue) > 0 {
		req := queue[0]
		queue = queue[1:]

		deps, err := r.apply(ctx, st, req)
		if err != nil {
			return nil, err
		}
		queue = append(queue, deps...)
	}

	return st.lockfile(r.Command), nil
}

// apply folds one requirement into the state, resolving or
// re-resolving its package, and returns the dependency requirements
// of a newly chosen version.
func (r *Resolver) apply(ctx context.Context, st *state, req requirements.Requirement) ([]requirements.Requirement, error) {
	c := st.candidates[req.Canonical]
	if c == nil {
		c = &candidate{
			display: req.Name,
			via:     make(map[string]struct{}),
			extras:  make(map[string]struct{}),
		}
		st.candidates[req.Canonical] = c
	}
	if req.Origin != "" {
		c.via[req.Origin] = struct{}{}
	}

	newExtras := false
	for _, extra := range req.Extras {
		if _, ok := c.extras[extra]; !ok {
			c.extras[extra] = struct{}{}
			newExtras = true
		}
	}

	if req.URL != "" {
		c.url = req.URL
		return nil, nil
	}
	if c.url != "" {
		// Direct-URL pins are never re-resolved.
		return nil, nil
	}

	if !req.Specifiers.Empty() {
		c.specs = append(c.specs, scopedSpec{specs: req.Specifiers, origin: req.Origin})
	}
	for _, cs := range st.constraints[req.Canonical] {
		c.via[cs.origin] = struct{}{}
	}

	if c.version != "" && st.satisfied(req.Canonical, pep440.MustParseVersion(c.version)) {
		if !newExtras {
			return nil, nil
		}
		// A newly named extra widens the dependency set of the pinned
		// version without changing the pin.
		rel, err := r.Index.Release(ctx, c.display, c.version)
		if err != nil {
			return nil, fmt.Errorf("resolving %s==%s: %w", c.display, c.version, err)
		}
		return dependenciesOf(c.display, c.extraList(), rel), nil
	}

	chosen, rel, err := r.choose(ctx, st, req.Canonical, c)
	if err != nil {
		return nil, err
	}
	if chosen == c.version {
		return nil, nil
	}
	if c.version != "" {
		r.Log.Infof("repinning %s: %s -> %s", c.display, c.version, chosen)
	}
	c.version = chosen

	return dependenciesOf(c.display, c.extraList(), rel), nil
}

// choose picks the highest acceptable version. Pre-releases are
// candidates only when a clause asks for one or nothing else exists;
// yanked releases are skipped.
func (r *Resolver) choose(ctx context.Context, st *state, canonical string, c *candidate) (string, storage.Release, error) {
	available, err := r.Index.Versions(ctx, c.display)
	if err != nil {
		return "", storage.Release{}, fmt.Errorf("resolving %s: %w", c.display, err)
	}

	allowPre := st.allowsPrereleases(canonical)

	var finals, preOnly []pep440.Version
	for _, raw := range available {
		v, err := pep440.ParseVersion(raw)
		if err != nil {
			continue
		}
		if !st.satisfied(canonical, v) {
			continue
		}
		if v.IsPrerelease() && !allowPre {
			preOnly = append(preOnly, v)
			continue
		}
		finals = append(finals, v)
	}

	// Pre-releases are a fallback tried only once every final
	// candidate is exhausted, including by yanked skips.
	for _, group := range [][]pep440.Version{finals, preOnly} {
		sort.Slice(group, func(i, j int) bool { return group[i].Compare(group[j]) > 0 })
		for _, v := range group {
			rel, err := r.Index.Release(ctx, c.display, v.Original())
			if err != nil {
				return "", storage.Release{}, fmt.Errorf("resolving %s==%s: %w", c.display, v.Original(), err)
			}
			if rel.Yanked {
				r.Log.Warnf("skipping yanked release %s==%s", c.display, v.Original())
				continue
			}
			return v.Original(), rel, nil
		}
	}

	return "", storage.Release{}, &ConflictError{Package: c.display, Clauses: st.clauses(canonical)}
}

func (st *state) allSpecs(canonical string) []scopedSpec {
	var specs []scopedSpec
	if c := st.candidates[canonical]; c != nil {
		specs = append(specs, c.specs...)
	}
	specs = append(specs, st.constraints[canonical]...)
	return specs
}

func (st *state) satisfied(canonical string, v pep440.Version) bool {
	for _, s := range st.allSpecs(canonical) {
		if !s.specs.Matches(v) {
			return false
		}
	}
	return true
}

func (st *state) allowsPrereleases(canonical string) bool {
	for _, s := range st.allSpecs(canonical) {
		if s.specs.AllowsPrereleases() {
			return true
		}
	}
	return false
}

func (st *state) clauses(canonical string) []string {
	var out []string
	for _, s := range st.allSpecs(canonical) {
		clause := s.specs.String()
		if s.origin != "" {
			clause += " (via " + s.origin + ")"
		}
		out = append(out, clause)
	}
	if len(out) == 0 {
		out = append(out, "any version")
	}
	sort.Strings(out)
	return out
}

var extraMarker = regexp.MustCompile(`extra\s*==\s*['"]([^'"]+)['"]`)

// dependenciesOf turns a release's declared requirements into queue
// items attributed to the parent. Requirements gated on an extra are
// included only when the parent requirement named that extra; other
// environment markers are carried, not evaluated.
func dependenciesOf(parent string, extras []string, rel storage.Release) []requirements.Requirement {
	var deps []requirements.Requirement
	for _, raw := range rel.Requires {
		dep, err := requirements.ParseRequirement(raw)
		if err != nil {
			continue
		}
		if m := extraMarker.FindStringSubmatch(dep.Marker); m != nil {
			if !containsExtra(extras, pep440.NormalizeName(m[1])) {
				continue
			}
		}
		dep.Origin = pep440.NormalizeName(parent)
		deps = append(deps, dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Canonical < deps[j].Canonical })
	return deps
}

func containsExtra(extras []string, want string) bool {
	for _, e := range extras {
		if e == want {
			return true
		}
	}
	return false
}

// lockfile builds the canonical output from the resolved state.
func (st *state) lockfile(command string) *lockfile.Lockfile {
	lf := &lockfile.Lockfile{Header: lockfile.DefaultHeader(command)}

	for canonical, c := range st.candidates {
		if c.version == "" && c.url == "" {
			continue
		}
		entry := lockfile.Entry{
			Name:      strings.ToLower(c.display),
			Canonical: canonical,
			Version:   c.version,
			URL:       c.url,
		}
		for ref := range c.via {
			entry.Via = append(entry.Via, ref)
		}
		lf.Entries = append(lf.Entries, entry)
	}

	lf.Sort()
	return lf
}
