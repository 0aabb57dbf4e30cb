// Package export writes the stitched distillation to files a user can keep:
// plain Markdown, or a standalone HTML page rendered from it.
package export

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Exporter writes export files into one directory.
type Exporter struct {
	dir      string
	clock    func() time.Time
	markdown goldmark.Markdown
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Exporter) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// New creates an Exporter targeting dir.
func New(dir string, opts ...Option) (*Exporter, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("export: directory is required")
	}
	e := &Exporter{
		dir:      dir,
		clock:    time.Now,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Markdown writes the stitched body verbatim and returns the file path. No
// markup is added around the accepted-section content.
func (e *Exporter) Markdown(title, body string) (string, error) {
	path := e.target(title, "md")
	if err := e.write(path, []byte(body)); err != nil {
		return "", err
	}
	return path, nil
}

// HTML renders the stitched body to a standalone page and returns the file
// path.
func (e *Exporter) HTML(title, body string) (string, error) {
	var rendered bytes.Buffer
	if err := e.markdown.Convert([]byte(body), &rendered); err != nil {
		return "", fmt.Errorf("export: render markdown: %w", err)
	}
	var page bytes.Buffer
	fmt.Fprintf(&page, "<!doctype html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", html.EscapeString(displayTitle(title)))
	page.Write(rendered.Bytes())
	page.WriteString("</body>\n</html>\n")

	path := e.target(title, "html")
	if err := e.write(path, page.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

func (e *Exporter) target(title, ext string) string {
	name := fmt.Sprintf("%s-%s.%s", slugify(title), e.clock().Format("20060102-150405"), ext)
	return filepath.Join(e.dir, name)
}

func (e *Exporter) write(path string, data []byte) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("export: ensure export dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func displayTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return "Distillation"
	}
	return title
}

var nonSlugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	slug := nonSlugPattern.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "distillation"
	}
	return slug
}
