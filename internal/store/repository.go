package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ErrDocumentNotFound is returned when no record exists for a document id.
var ErrDocumentNotFound = errors.New("store: document not found")

// RecordStore is the persistence boundary for documents and their sections.
// Implementations must make writes visible to subsequent reads within the
// same process.
type RecordStore interface {
	LoadDocument(id string) (Document, error)
	SaveDocument(doc Document) error
	DeleteDocument(id string) error
	ListDocuments() ([]Document, error)
	LoadSections(docID string) ([]Section, error)
	SaveSections(docID string, sections []Section) error
}

// Repository stores records as JSON files, one directory per document:
//
//	<root>/<doc-id>/document.json
//	<root>/<doc-id>/sections.json
type Repository struct {
	root string
}

// NewRepository creates a repository rooted at the library directory.
func NewRepository(root string) *Repository {
	return &Repository{root: root}
}

func (r *Repository) documentPath(id string) string {
	return filepath.Join(r.root, id, "document.json")
}

func (r *Repository) sectionsPath(id string) string {
	return filepath.Join(r.root, id, "sections.json")
}

// LoadDocument reads a single document record.
func (r *Repository) LoadDocument(id string) (Document, error) {
	data, err := os.ReadFile(r.documentPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, fmt.Errorf("store: read document %s: %w", id, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("store: decode document %s: %w", id, err)
	}
	return doc, nil
}

// SaveDocument writes a document record, creating its directory as needed.
func (r *Repository) SaveDocument(doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("store: document id is required")
	}
	path := r.documentPath(doc.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: ensure document dir: %w", err)
	}
	return writeJSON(path, doc)
}

// DeleteDocument removes a document and its sections.
func (r *Repository) DeleteDocument(id string) error {
	if id == "" {
		return fmt.Errorf("store: document id is required")
	}
	if err := os.RemoveAll(filepath.Join(r.root, id)); err != nil {
		return fmt.Errorf("store: delete document %s: %w", id, err)
	}
	return nil
}

// ListDocuments scans the library and returns all documents ordered by
// creation time, oldest first.
func (r *Repository) ListDocuments() ([]Document, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: scan library: %w", err)
	}
	var docs []Document
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		doc, err := r.LoadDocument(entry.Name())
		if err != nil {
			if errors.Is(err, ErrDocumentNotFound) {
				continue
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

// LoadSections reads the section records for a document. A missing file
// means an empty run, not an error.
func (r *Repository) LoadSections(docID string) ([]Section, error) {
	data, err := os.ReadFile(r.sectionsPath(docID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read sections for %s: %w", docID, err)
	}
	var sections []Section
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("store: decode sections for %s: %w", docID, err)
	}
	return sections, nil
}

// SaveSections replaces the section records for a document.
func (r *Repository) SaveSections(docID string, sections []Section) error {
	if docID == "" {
		return fmt.Errorf("store: document id is required")
	}
	path := r.sectionsPath(docID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: ensure document dir: %w", err)
	}
	if sections == nil {
		sections = []Section{}
	}
	return writeJSON(path, sections)
}

func writeJSON(path string, value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, append(encoded, '\n'), 0o644)
}
