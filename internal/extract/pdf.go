package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfText extracts the page content streams with pdfcpu and harvests the
// text-showing operators from them. Layout is not reconstructed; the result
// is reading-order text suitable as prompt material, nothing more.
func pdfText(data []byte) (string, error) {
	outDir, err := os.MkdirTemp("", "distill-pdf-*")
	if err != nil {
		return "", fmt.Errorf("extract: create temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContent(bytes.NewReader(data), outDir, "page", nil, conf); err != nil {
		return "", fmt.Errorf("extract: parse pdf: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("extract: read extracted pages: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool { return pageNumber(names[i]) < pageNumber(names[j]) })

	var pages []string
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			return "", fmt.Errorf("extract: read page %s: %w", name, err)
		}
		if text := contentStreamText(content); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("extract: pdf contains no extractable text")
	}
	return collapseBlankRuns(strings.Join(pages, "\n\n")), nil
}

var pageNumberPattern = regexp.MustCompile(`(\d+)`)

func pageNumber(name string) int {
	if m := pageNumberPattern.FindStringSubmatch(name); len(m) >= 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}

var (
	// (string) Tj and (string) ' show literal text.
	showTextPattern = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)\s*(?:Tj|')`)
	// [(a) -120 (b)] TJ shows an array of strings with kerning offsets.
	showArrayPattern   = regexp.MustCompile(`\[((?:\\.|[^\]])*)\]\s*TJ`)
	literalPattern     = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)
	octalEscapePattern = regexp.MustCompile(`\\([0-7]{1,3})`)
)

func contentStreamText(stream []byte) string {
	var out strings.Builder
	appendText := func(raw string) {
		text := decodePDFString(raw)
		if strings.TrimSpace(text) == "" {
			return
		}
		if out.Len() > 0 {
			out.WriteByte(' ')
		}
		out.WriteString(text)
	}
	for _, match := range showTextPattern.FindAllSubmatch(stream, -1) {
		appendText(string(match[1]))
	}
	for _, match := range showArrayPattern.FindAllSubmatch(stream, -1) {
		for _, inner := range literalPattern.FindAllSubmatch(match[1], -1) {
			appendText(string(inner[1]))
		}
	}
	return out.String()
}

func decodePDFString(raw string) string {
	replacer := strings.NewReplacer(
		`\n`, "\n",
		`\r`, "",
		`\t`, " ",
		`\(`, "(",
		`\)`, ")",
		`\\`, `\`,
	)
	decoded := replacer.Replace(raw)
	return octalEscapePattern.ReplaceAllStringFunc(decoded, func(esc string) string {
		code, err := strconv.ParseInt(esc[1:], 8, 32)
		if err != nil || code < 32 || code > 126 {
			return " "
		}
		return string(rune(code))
	})
}
