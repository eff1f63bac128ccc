package lockfile

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultHeader is the banner emitted when a lockfile is generated
// from scratch. command is the generating invocation recorded in it.
func DefaultHeader(command string) []string {
	return []string{
		"#",
		"# This file is autogenerated by pip-compile with Python",
		"# by the following command:",
		"#",
		"#    " + command,
		"#",
	}
}

// Render writes the lockfile in pip-compile's output format, exactly
// as its entries are ordered. Use Canonical for the sorted,
// deterministic form.
func (lf *Lockfile) Render() string {
	var b strings.Builder

	for _, line := range lf.Header {
		b.WriteString(line)
		b.WriteString("\n")
	}
	for _, opt := range lf.Options {
		b.WriteString(opt)
		b.WriteString("\n")
	}

	for _, e := range lf.Entries {
		b.WriteString(stanzaLine(e))
		b.WriteString("\n")
		switch {
		case len(e.Via) == 1:
			fmt.Fprintf(&b, "    # via %s\n", e.Via[0])
		case len(e.Via) > 1:
			b.WriteString("    # via\n")
			for _, ref := range e.Via {
				fmt.Fprintf(&b, "    #   %s\n", ref)
			}
		}
	}

	return b.String()
}

func stanzaLine(e Entry) string {
	switch {
	case e.URL != "":
		return fmt.Sprintf("%s @ %s", e.Name, e.URL)
	case e.Version != "":
		return fmt.Sprintf("%s==%s", e.Name, e.Version)
	}
	return e.Name + e.Specifiers
}

// Canonical renders the deterministic form: entries sorted by
// canonical name, via lists sorted, single-reference via collapsed to
// one line. Parsing canonical output and rendering it again is
// byte-identical.
func (lf *Lockfile) Canonical() string {
	sorted := &Lockfile{
		Header:  lf.Header,
		Options: append([]string(nil), lf.Options...),
		Entries: make([]Entry, len(lf.Entries)),
	}
	for i, e := range lf.Entries {
		sorted.Entries[i] = e
		sorted.Entries[i].Via = append([]string(nil), e.Via...)
	}
	sorted.Sort()
	return sorted.Render()
}

// Digest returns a short content digest of the canonical rendering,
// for cheap drift detection between lockfiles.
func (lf *Lockfile) Digest() string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(lf.Canonical()))
}
