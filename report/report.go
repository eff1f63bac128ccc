// Package report renders verification reports and lockfile diffs for
// the CLI, in pretty (styled), plain, or json form.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"piplock/lockfile"
	"piplock/verify"

	"github.com/charmbracelet/lipgloss"
)

type Options struct {
	// Format is "pretty", "plain" or "json".
	Format string
}

type styles struct {
	title   lipgloss.Style
	errLine lipgloss.Style
	warn    lipgloss.Style
	good    lipgloss.Style
	dim     lipgloss.Style
}

func newStyles() styles {
	if isNoColor() {
		empty := lipgloss.NewStyle()
		return styles{title: empty, errLine: empty, warn: empty, good: empty, dim: empty}
	}
	return styles{
		title:   lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true).Underline(true),
		errLine: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		good:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// skip color when NO_COLOR is set
func isNoColor() bool {
	return os.Getenv("NO_COLOR") != ""
}

// PrintVerify writes the verification report to w.
func PrintVerify(w io.Writer, rep *verify.Report, opts Options) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	st := newStyles()
	if opts.Format == "plain" {
		empty := lipgloss.NewStyle()
		st = styles{title: empty, errLine: empty, warn: empty, good: empty, dim: empty}
	}

	fmt.Fprintln(w, st.title.Render("Lockfile Verification Report"))
	fmt.Fprintln(w, st.dim.Render(fmt.Sprintf("%d entries checked", rep.Entries)))

	for _, f := range rep.Findings {
		line := fmt.Sprintf("[%s] %s", f.Code, f.Detail)
		if f.Package != "" {
			line = fmt.Sprintf("[%s] %s: %s", f.Code, f.Package, f.Detail)
		}
		switch f.Severity {
		case verify.SeverityError:
			fmt.Fprintln(w, st.errLine.Render("  error   "+line))
		default:
			fmt.Fprintln(w, st.warn.Render("  warning "+line))
		}
	}

	if rep.Failed() {
		fmt.Fprintln(w, st.errLine.Render("Verification failed."))
	} else if len(rep.Findings) > 0 {
		fmt.Fprintln(w, st.warn.Render("Verification passed with warnings."))
	} else {
		fmt.Fprintln(w, st.good.Render("Verification passed."))
	}
	return nil
}

// PrintDiff writes the diff between two lockfiles to w.
func PrintDiff(w io.Writer, d lockfile.Diff, opts Options) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	st := newStyles()
	if opts.Format == "plain" {
		empty := lipgloss.NewStyle()
		st = styles{title: empty, errLine: empty, warn: empty, good: empty, dim: empty}
	}

	if d.Empty() {
		fmt.Fprintln(w, st.good.Render("Lockfiles pin the same set."))
		return nil
	}

	fmt.Fprintln(w, st.title.Render("Lockfile Diff"))
	for _, e := range d.Added {
		fmt.Fprintln(w, st.good.Render(fmt.Sprintf("  + %s", added(e))))
	}
	for _, e := range d.Removed {
		fmt.Fprintln(w, st.errLine.Render(fmt.Sprintf("  - %s", added(e))))
	}
	for _, c := range d.Changed {
		fmt.Fprintln(w, st.warn.Render(fmt.Sprintf("  ~ %s: %s -> %s", c.Name, c.Old, c.New)))
	}
	return nil
}

func added(e lockfile.Entry) string {
	if e.URL != "" {
		return e.Name + " @ " + e.URL
	}
	return e.Name + "==" + e.Version
}
