package requirements

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File is one parsed requirement source file.
type File struct {
	Path         string
	Requirements []Requirement
	// References to other files, as written.
	Referenced  []string // -r includes
	Constraints []string // -c constraint files
	// Installer options such as --index-url, carried but not interpreted.
	Options []string
}

// Sources is the flattened input to a compile: every requirement from
// the root file and its -r includes, plus every constraint from -c
// files. Constraints bound versions but never introduce packages.
type Sources struct {
	Requirements []Requirement
	Constraints  []Requirement
}

// ParseFile parses requirement file text. Lines ending in a backslash
// continue on the next line; inline comments start at " #".
func ParseFile(path, text string) (*File, error) {
	f := &File{Path: path}

	lines := joinContinuations(strings.Split(text, "\n"))
	for lineno, line := range lines {
		line = stripComment(line)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "-r ") || strings.HasPrefix(line, "--requirement "):
			f.Referenced = append(f.Referenced, argOf(line))
		case strings.HasPrefix(line, "-c ") || strings.HasPrefix(line, "--constraint "):
			f.Constraints = append(f.Constraints, argOf(line))
		case strings.HasPrefix(line, "-e ") || strings.HasPrefix(line, "--editable "):
			return nil, fmt.Errorf("%s:%d: editable requirements are not supported", path, lineno+1)
		case strings.HasPrefix(line, "-"):
			f.Options = append(f.Options, line)
		default:
			req, err := ParseRequirement(line)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, lineno+1, err)
			}
			req.Origin = "-r " + path
			f.Requirements = append(f.Requirements, req)
		}
	}
	return f, nil
}

func joinContinuations(lines []string) []string {
	var out []string
	var pending string
	for _, line := range lines {
		if strings.HasSuffix(line, "\\") {
			pending += strings.TrimSuffix(line, "\\")
			continue
		}
		out = append(out, pending+line)
		pending = ""
	}
	if pending != "" {
		out = append(out, pending)
	}
	return out
}

func stripComment(line string) string {
	if strings.HasPrefix(strings.TrimSpace(line), "#") {
		return ""
	}
	if i := strings.Index(line, " #"); i >= 0 {
		return line[:i]
	}
	return line
}

func argOf(line string) string {
	_, arg, _ := strings.Cut(line, " ")
	return strings.TrimSpace(arg)
}

// Load reads the named requirement files and every file they include,
// returning the flattened requirement and constraint lists. Include
// paths resolve relative to the including file; cycles are ignored
// after the first visit.
func Load(paths ...string) (*Sources, error) {
	src := &Sources{}
	seen := make(map[string]bool)

	var walk func(path string, constraint bool) error
	walk = func(path string, constraint bool) error {
		clean := filepath.Clean(path)
		if seen[clean] {
			return nil
		}
		seen[clean] = true

		data, err := os.ReadFile(clean)
		if err != nil {
			return fmt.Errorf("reading requirements: %w", err)
		}
		f, err := ParseFile(path, string(data))
		if err != nil {
			return err
		}

		for i := range f.Requirements {
			if constraint {
				f.Requirements[i].Origin = "-c " + path
				src.Constraints = append(src.Constraints, f.Requirements[i])
			} else {
				src.Requirements = append(src.Requirements, f.Requirements[i])
			}
		}

		dir := filepath.Dir(clean)
		for _, ref := range f.Referenced {
			if err := walk(filepath.Join(dir, ref), constraint); err != nil {
				return err
			}
		}
		for _, ref := range f.Constraints {
			if err := walk(filepath.Join(dir, ref), true); err != nil {
				return err
			}
		}
		return nil
	}

	for _, p := range paths {
		if err := walk(p, false); err != nil {
			return nil, err
		}
	}
	return src, nil
}
