package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"
)

// An EPUB is a zip archive whose reading order lives in the OPF spine.
// We follow the spine when we can parse it and fall back to the archive's
// HTML entries in name order when we cannot.

type opfContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Manifest []struct {
		ID   string `xml:"id,attr"`
		Href string `xml:"href,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

func epubText(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("extract: open epub: %w", err)
	}
	files := map[string]*zip.File{}
	for _, file := range archive.File {
		files[file.Name] = file
	}

	chapters := spineOrder(files)
	if len(chapters) == 0 {
		chapters = htmlEntriesByName(archive)
	}
	if len(chapters) == 0 {
		return "", fmt.Errorf("extract: epub contains no readable chapters")
	}

	var parts []string
	for _, file := range chapters {
		content, err := readZipFile(file)
		if err != nil {
			return "", fmt.Errorf("extract: read %s: %w", file.Name, err)
		}
		if text := stripMarkup(string(content)); text != "" {
			parts = append(parts, text)
		}
	}
	return collapseBlankRuns(strings.Join(parts, "\n\n")), nil
}

// spineOrder resolves container.xml -> OPF -> spine into zip entries.
func spineOrder(files map[string]*zip.File) []*zip.File {
	container, ok := files["META-INF/container.xml"]
	if !ok {
		return nil
	}
	containerXML, err := readZipFile(container)
	if err != nil {
		return nil
	}
	var parsedContainer opfContainer
	if err := xml.Unmarshal(containerXML, &parsedContainer); err != nil || len(parsedContainer.Rootfiles) == 0 {
		return nil
	}
	opfPath := parsedContainer.Rootfiles[0].FullPath
	opfFile, ok := files[opfPath]
	if !ok {
		return nil
	}
	opfXML, err := readZipFile(opfFile)
	if err != nil {
		return nil
	}
	var parsedOPF opfPackage
	if err := xml.Unmarshal(opfXML, &parsedOPF); err != nil {
		return nil
	}
	hrefByID := map[string]string{}
	for _, item := range parsedOPF.Manifest {
		hrefByID[item.ID] = item.Href
	}
	base := path.Dir(opfPath)
	var ordered []*zip.File
	for _, itemref := range parsedOPF.Spine {
		href, ok := hrefByID[itemref.IDRef]
		if !ok {
			continue
		}
		name := href
		if base != "." {
			name = path.Join(base, href)
		}
		if file, ok := files[name]; ok && isHTMLName(name) {
			ordered = append(ordered, file)
		}
	}
	return ordered
}

func htmlEntriesByName(archive *zip.Reader) []*zip.File {
	var entries []*zip.File
	for _, file := range archive.File {
		if isHTMLName(file.Name) {
			entries = append(entries, file)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

func isHTMLName(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".xhtml", ".html", ".htm":
		return true
	}
	return false
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

var (
	dropBlockPattern = regexp.MustCompile(`(?is)<(script|style|head)[^>]*>.*?</(script|style|head)>`)
	breakTagPattern  = regexp.MustCompile(`(?i)<(br|/p|/div|/h[1-6]|/li|/tr)[^>]*>`)
	anyTagPattern    = regexp.MustCompile(`<[^>]*>`)
)

// stripMarkup reduces an XHTML chapter to plain text, keeping paragraph
// boundaries as newlines.
func stripMarkup(markup string) string {
	text := dropBlockPattern.ReplaceAllString(markup, "")
	text = breakTagPattern.ReplaceAllString(text, "\n")
	text = anyTagPattern.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	return collapseBlankRuns(text)
}
