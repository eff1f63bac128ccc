// Package lockfile reads and writes pip-compile output files: one
// stanza per package pinning an exact version (or a direct URL),
// followed by "# via" comment lines recording which requiring
// packages or requirement files pulled the dependency in.
package lockfile

import (
	"sort"

	"piplock/pep440"
)

// Entry is one dependency stanza.
type Entry struct {
	Name      string   `json:"name"`
	Canonical string   `json:"canonical"`
	Version   string   `json:"version,omitempty"`
	URL       string   `json:"url,omitempty"`
	// Specifiers holds the raw specifier text for malformed stanzas
	// that do not pin an exact version; empty on well-formed entries.
	Specifiers string   `json:"specifiers,omitempty"`
	Via        []string `json:"via,omitempty"`
	Line       int      `json:"-"`
}

// Pinned reports whether the entry fixes a single artifact.
func (e Entry) Pinned() bool {
	return e.Version != "" || e.URL != ""
}

// Lockfile is a parsed pip-compile output file.
type Lockfile struct {
	// Header is the leading comment banner, verbatim, without the
	// trailing blank separator.
	Header []string `json:"header,omitempty"`
	// Options are installer option lines such as --index-url that
	// appear between the banner and the first stanza.
	Options []string `json:"options,omitempty"`
	Entries []Entry  `json:"entries"`
}

// Get returns the first entry for the given package name, looked up
// by canonical name.
func (lf *Lockfile) Get(name string) (Entry, bool) {
	canonical := pep440.NormalizeName(name)
	for _, e := range lf.Entries {
		if e.Canonical == canonical {
			return e, true
		}
	}
	return Entry{}, false
}

// ByName returns entries keyed by canonical name. Duplicate stanzas
// keep the first occurrence; verification reports the duplicates.
func (lf *Lockfile) ByName() map[string]Entry {
	m := make(map[string]Entry, len(lf.Entries))
	for _, e := range lf.Entries {
		if _, ok := m[e.Canonical]; !ok {
			m[e.Canonical] = e
		}
	}
	return m
}

// Sort orders entries by canonical name and each via list
// lexicographically, the order pip-compile emits. File labels start
// with "-r" or "-c" and therefore sort ahead of package names.
func (lf *Lockfile) Sort() {
	for i := range lf.Entries {
		sort.Strings(lf.Entries[i].Via)
	}
	sort.SliceStable(lf.Entries, func(i, j int) bool {
		return lf.Entries[i].Canonical < lf.Entries[j].Canonical
	})
}
