// Package pep440 implements the subset of Python's packaging version
// conventions needed to read and verify pip-compile output: PEP 440
// version parsing and ordering, version specifiers, and PEP 503
// package-name normalization.
package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a parsed PEP 440 version.
type Version struct {
	Epoch   int
	Release []int
	Pre     *PreRelease
	Post    *int
	Dev     *int
	Local   string

	original string
}

// PreRelease is the pre-release phase of a version, e.g. the "rc1" in
// "2.0rc1". Label is one of "a", "b" or "rc" after normalization.
type PreRelease struct {
	Label  string
	Number int
}

var versionPattern = regexp.MustCompile(`^v?` +
	`(?:(\d+)!)?` + // epoch
	`(\d+(?:\.\d+)*)` + // release
	`(?:[._-]?(a|alpha|b|beta|rc|c|pre|preview)[._-]?(\d*))?` + // pre
	`(?:(?:-(\d+))|([._-]?(?:post|rev|r)[._-]?\d*))?` + // post
	`([._-]?dev\d*)?` + // dev
	`(?:\+([a-z0-9]+(?:[._-][a-z0-9]+)*))?$`) // local

var digits = regexp.MustCompile(`\d+`)

// ParseVersion parses a PEP 440 version string. Leading/trailing
// whitespace and case are insignificant.
func ParseVersion(s string) (Version, error) {
	orig := strings.TrimSpace(s)
	m := versionPattern.FindStringSubmatch(strings.ToLower(orig))
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}

	v := Version{original: orig}

	if m[1] != "" {
		v.Epoch, _ = strconv.Atoi(m[1])
	}
	for _, part := range strings.Split(m[2], ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("invalid release segment in %q", s)
		}
		v.Release = append(v.Release, n)
	}

	if m[3] != "" {
		label := m[3]
		switch label {
		case "alpha":
			label = "a"
		case "beta":
			label = "b"
		case "c", "pre", "preview":
			label = "rc"
		}
		n := 0
		if m[4] != "" {
			n, _ = strconv.Atoi(m[4])
		}
		v.Pre = &PreRelease{Label: label, Number: n}
	}

	if m[5] != "" {
		n, _ := strconv.Atoi(m[5])
		v.Post = &n
	} else if m[6] != "" {
		n := 0
		if d := digits.FindString(m[6]); d != "" {
			n, _ = strconv.Atoi(d)
		}
		v.Post = &n
	}

	if m[7] != "" {
		n := 0
		if d := digits.FindString(m[7]); d != "" {
			n, _ = strconv.Atoi(d)
		}
		v.Dev = &n
	}

	v.Local = m[8]
	return v, nil
}

// MustParseVersion is ParseVersion for trusted literals; it panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the canonical form of the version.
func (v Version) String() string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	parts := make([]string, len(v.Release))
	for i, n := range v.Release {
		parts[i] = strconv.Itoa(n)
	}
	b.WriteString(strings.Join(parts, "."))
	if v.Pre != nil {
		fmt.Fprintf(&b, "%s%d", v.Pre.Label, v.Pre.Number)
	}
	if v.Post != nil {
		fmt.Fprintf(&b, ".post%d", *v.Post)
	}
	if v.Dev != nil {
		fmt.Fprintf(&b, ".dev%d", *v.Dev)
	}
	if v.Local != "" {
		fmt.Fprintf(&b, "+%s", v.Local)
	}
	return b.String()
}

// Original returns the version exactly as it was parsed.
func (v Version) Original() string {
	if v.original != "" {
		return v.original
	}
	return v.String()
}

// IsPrerelease reports whether the version has a pre-release or dev phase.
func (v Version) IsPrerelease() bool {
	return v.Pre != nil || v.Dev != nil
}

// Compare returns -1, 0 or 1 ordering v against o per PEP 440.
func (v Version) Compare(o Version) int {
	if v.Epoch != o.Epoch {
		return cmpInt(v.Epoch, o.Epoch)
	}
	if c := cmpRelease(v.Release, o.Release); c != 0 {
		return c
	}
	if c := cmpPre(v, o); c != 0 {
		return c
	}
	if c := cmpOptional(v.Post, o.Post, -1); c != 0 {
		return c
	}
	if c := cmpOptional(v.Dev, o.Dev, 1); c != 0 {
		return c
	}
	return cmpLocal(v.Local, o.Local)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Releases compare segment-wise with the shorter side zero-padded, so
// 1.0 == 1.0.0 and 1.10 > 1.9.
func cmpRelease(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			return cmpInt(av, bv)
		}
	}
	return 0
}

// A bare dev release sorts before any pre-release of the same release
// segment, pre-releases sort before the final, finals before posts.
func preRank(v Version) (rank, label, number int) {
	switch {
	case v.Pre == nil && v.Post == nil && v.Dev != nil:
		return -1, 0, 0
	case v.Pre == nil:
		return 1, 0, 0
	}
	labels := map[string]int{"a": 0, "b": 1, "rc": 2}
	return 0, labels[v.Pre.Label], v.Pre.Number
}

func cmpPre(a, b Version) int {
	ar, al, an := preRank(a)
	br, bl, bn := preRank(b)
	if ar != br {
		return cmpInt(ar, br)
	}
	if al != bl {
		return cmpInt(al, bl)
	}
	return cmpInt(an, bn)
}

// cmpOptional orders a possibly-absent numeric phase. missing is -1
// when absence sorts low (post) and 1 when it sorts high (dev).
func cmpOptional(a, b *int, missing int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return missing
	case b == nil:
		return -missing
	}
	return cmpInt(*a, *b)
}

func cmpLocal(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	case a < b:
		return -1
	}
	return 1
}

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// NormalizeName canonicalizes a package name per PEP 503: lowercase,
// with runs of "-", "_" and "." collapsed to a single dash.
func NormalizeName(name string) string {
	return nameSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}
