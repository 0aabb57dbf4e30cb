// Package extract converts uploaded document bytes into plain text. The
// output is deliberately best-effort: downstream generation treats it as an
// opaque string and no quality guarantees are made beyond "readable text in
// document order".
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for formats no extractor handles.
var ErrUnsupportedFormat = errors.New("extract: unsupported format")

// Text converts raw document bytes into plain text. hint is a file name or
// extension used to select the extractor.
func Text(data []byte, hint string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("extract: empty input")
	}
	switch normalizeHint(hint) {
	case ".txt", ".md", ".markdown":
		return normalizeNewlines(string(data)), nil
	case ".epub":
		return epubText(data)
	case ".pdf":
		return pdfText(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, hint)
	}
}

func normalizeHint(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if ext := filepath.Ext(hint); ext != "" {
		return ext
	}
	if hint != "" && !strings.HasPrefix(hint, ".") {
		return "." + hint
	}
	return hint
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// collapseBlankRuns trims trailing space per line and squeezes runs of
// blank lines down to one.
func collapseBlankRuns(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blank = 0
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
