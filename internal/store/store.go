// Package store maintains the document library and the ordered section
// records of each distillation run, enforcing the section lifecycle:
// draft -> accepted, draft -> discarded, accepted -> removed by undo.
package store

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSectionNotFound is returned when a section id is unknown.
	ErrSectionNotFound = errors.New("store: section not found")
	// ErrInvalidTransition is returned for status changes other than
	// draft->accepted and draft->discarded.
	ErrInvalidTransition = errors.New("store: invalid status transition")
)

// Store applies the section lifecycle rules on top of a RecordStore.
type Store struct {
	records RecordStore
	clock   func() time.Time
	newID   func() string
}

// Option customizes a Store.
type Option func(*Store)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides identifier generation (primarily for tests).
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// New wires a Store to its record persistence.
func New(records RecordStore, opts ...Option) (*Store, error) {
	if records == nil {
		return nil, fmt.Errorf("store: record store is required")
	}
	s := &Store{
		records: records,
		clock:   time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateDocument adds a document to the library with its initial run
// configuration.
func (s *Store) CreateDocument(title, author, text string, run RunConfig) (Document, error) {
	if run.MaxSections < 1 {
		return Document{}, fmt.Errorf("store: max sections must be at least 1, got %d", run.MaxSections)
	}
	doc := Document{
		ID:          s.newID(),
		Title:       strings.TrimSpace(title),
		Author:      strings.TrimSpace(author),
		Text:        text,
		Run:         run,
		NextOrdinal: 1,
		CreatedAt:   s.clock(),
	}
	if err := s.records.SaveDocument(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Document returns one document by id.
func (s *Store) Document(id string) (Document, error) {
	return s.records.LoadDocument(id)
}

// Documents lists the library ordered by creation time.
func (s *Store) Documents() ([]Document, error) {
	return s.records.ListDocuments()
}

// UpdateDocumentMeta edits a document's display title and author.
func (s *Store) UpdateDocumentMeta(id, title, author string) (Document, error) {
	doc, err := s.records.LoadDocument(id)
	if err != nil {
		return Document{}, err
	}
	doc.Title = strings.TrimSpace(title)
	doc.Author = strings.TrimSpace(author)
	if err := s.records.SaveDocument(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// UpdateRunConfig replaces a document's run configuration.
func (s *Store) UpdateRunConfig(id string, run RunConfig) (Document, error) {
	if run.MaxSections < 1 {
		return Document{}, fmt.Errorf("store: max sections must be at least 1, got %d", run.MaxSections)
	}
	doc, err := s.records.LoadDocument(id)
	if err != nil {
		return Document{}, err
	}
	doc.Run = run
	if err := s.records.SaveDocument(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// DeleteDocument removes a document and its sections from the library.
func (s *Store) DeleteDocument(id string) error {
	if _, err := s.records.LoadDocument(id); err != nil {
		return err
	}
	return s.records.DeleteDocument(id)
}

// Append adds a section with the document's next ordinal. Ordinals grow
// monotonically and are never reused, even after undo removes a section.
func (s *Store) Append(docID, content string, status Status) (Section, error) {
	if !status.Valid() {
		return Section{}, fmt.Errorf("store: unknown status %q", status)
	}
	doc, err := s.records.LoadDocument(docID)
	if err != nil {
		return Section{}, err
	}
	sections, err := s.records.LoadSections(docID)
	if err != nil {
		return Section{}, err
	}
	now := s.clock()
	section := Section{
		ID:         s.newID(),
		DocumentID: docID,
		Ordinal:    doc.NextOrdinal,
		Heading:    deriveHeading(content),
		Content:    content,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	doc.NextOrdinal++
	sections = append(sections, section)
	if err := s.records.SaveSections(docID, sections); err != nil {
		return Section{}, err
	}
	if err := s.records.SaveDocument(doc); err != nil {
		return Section{}, err
	}
	return section, nil
}

// UpdateContent replaces a section's content and recomputes its heading.
func (s *Store) UpdateContent(docID, sectionID, content string) (Section, error) {
	return s.mutateSection(docID, sectionID, func(section *Section) error {
		section.Content = content
		section.Heading = deriveHeading(content)
		return nil
	})
}

// SetStatus transitions a section's lifecycle state. Only draft->accepted
// and draft->discarded are legal; anything else is ErrInvalidTransition.
func (s *Store) SetStatus(docID, sectionID string, status Status) (Section, error) {
	if !status.Valid() {
		return Section{}, fmt.Errorf("store: unknown status %q", status)
	}
	return s.mutateSection(docID, sectionID, func(section *Section) error {
		if section.Status == status {
			return nil
		}
		if section.Status != StatusDraft {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, section.Status, status)
		}
		section.Status = status
		return nil
	})
}

// DeleteMostRecentAccepted removes the highest-ordinal accepted section.
// It reports ok=false with no error when there is nothing to undo.
func (s *Store) DeleteMostRecentAccepted(docID string) (Section, bool, error) {
	sections, err := s.records.LoadSections(docID)
	if err != nil {
		return Section{}, false, err
	}
	target := -1
	for i, section := range sections {
		if section.Status != StatusAccepted {
			continue
		}
		if target == -1 || section.Ordinal > sections[target].Ordinal {
			target = i
		}
	}
	if target == -1 {
		return Section{}, false, nil
	}
	removed := sections[target]
	sections = append(sections[:target], sections[target+1:]...)
	if err := s.records.SaveSections(docID, sections); err != nil {
		return Section{}, false, err
	}
	return removed, true, nil
}

// Clear removes every section of a document and restarts ordinals at 1 for
// the next run.
func (s *Store) Clear(docID string) error {
	doc, err := s.records.LoadDocument(docID)
	if err != nil {
		return err
	}
	if err := s.records.SaveSections(docID, nil); err != nil {
		return err
	}
	doc.NextOrdinal = 1
	return s.records.SaveDocument(doc)
}

// ListOrdered returns a document's sections sorted by ordinal ascending.
func (s *Store) ListOrdered(docID string) ([]Section, error) {
	if _, err := s.records.LoadDocument(docID); err != nil {
		return nil, err
	}
	sections, err := s.records.LoadSections(docID)
	if err != nil {
		return nil, err
	}
	sort.Slice(sections, func(i, j int) bool {
		return sections[i].Ordinal < sections[j].Ordinal
	})
	return sections, nil
}

func (s *Store) mutateSection(docID, sectionID string, mutate func(*Section) error) (Section, error) {
	sections, err := s.records.LoadSections(docID)
	if err != nil {
		return Section{}, err
	}
	for i := range sections {
		if sections[i].ID != sectionID {
			continue
		}
		if err := mutate(&sections[i]); err != nil {
			return Section{}, err
		}
		sections[i].UpdatedAt = s.clock()
		if err := s.records.SaveSections(docID, sections); err != nil {
			return Section{}, err
		}
		return sections[i], nil
	}
	return Section{}, ErrSectionNotFound
}

var headingPattern = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)

const maxHeadingRunes = 80

// deriveHeading extracts a display heading from section content: the first
// markdown heading if present, otherwise the first non-empty line.
func deriveHeading(content string) string {
	if m := headingPattern.FindStringSubmatch(content); len(m) >= 2 {
		return clipHeading(m[1])
	}
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return clipHeading(trimmed)
		}
	}
	return ""
}

func clipHeading(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxHeadingRunes {
		return text
	}
	return strings.TrimSpace(string(runes[:maxHeadingRunes])) + "…"
}
