package lockfile

import (
	"fmt"
	"strings"

	"piplock/requirements"
)

// Parse reads pip-compile output text into a Lockfile. The leading
// comment banner is kept verbatim; each stanza line must be a
// requirement, with its "# via" annotations on the following
// indented comment lines.
func Parse(text string) (*Lockfile, error) {
	lf := &Lockfile{}

	lines := strings.Split(text, "\n")
	i := 0

	// Header banner: comment lines before the first stanza.
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "#") {
			lf.Header = append(lf.Header, strings.TrimRight(lines[i], " \t"))
			i++
			continue
		}
		break
	}

	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			i++
			continue
		}

		if strings.HasPrefix(trimmed, "#") {
			return nil, fmt.Errorf("line %d: comment outside a stanza: %q", i+1, trimmed)
		}
		if strings.HasPrefix(trimmed, "-") {
			lf.Options = append(lf.Options, trimmed)
			i++
			continue
		}
		if line != trimmed {
			return nil, fmt.Errorf("line %d: unexpected indented line %q", i+1, trimmed)
		}

		entry, err := parseStanzaLine(trimmed, i+1)
		if err != nil {
			return nil, err
		}

		i++
		entry.Via, i = parseViaBlock(lines, i)
		lf.Entries = append(lf.Entries, entry)
	}

	return lf, nil
}

func parseStanzaLine(line string, lineno int) (Entry, error) {
	req, err := requirements.ParseRequirement(line)
	if err != nil {
		return Entry{}, fmt.Errorf("line %d: %w", lineno, err)
	}

	entry := Entry{
		Name:      req.Name,
		Canonical: req.Canonical,
		URL:       req.URL,
		Line:      lineno,
	}
	if v, ok := req.Specifiers.ExactPin(); ok {
		entry.Version = v
	} else if !req.Specifiers.Empty() {
		entry.Specifiers = req.Specifiers.String()
	}
	return entry, nil
}

// parseViaBlock consumes the indented comment lines after a stanza:
// either "    # via ref" on one line or "    # via" followed by
// "    #   ref" lines. It returns the via refs and the next index.
func parseViaBlock(lines []string, i int) ([]string, int) {
	var via []string

	if i >= len(lines) {
		return nil, i
	}
	line := lines[i]
	if !isStanzaComment(line) {
		return nil, i
	}

	body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "#"))
	switch {
	case body == "via":
		i++
		for i < len(lines) && isStanzaComment(lines[i]) {
			ref := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[i]), "#"))
			if ref != "" {
				via = append(via, ref)
			}
			i++
		}
	case strings.HasPrefix(body, "via "):
		via = append(via, strings.TrimSpace(strings.TrimPrefix(body, "via ")))
		i++
	default:
		// Some generators emit hash or marker comments; skip them.
		for i < len(lines) && isStanzaComment(lines[i]) {
			i++
		}
	}

	return via, i
}

func isStanzaComment(line string) bool {
	return strings.HasPrefix(line, " ") && strings.HasPrefix(strings.TrimSpace(line), "#")
}
