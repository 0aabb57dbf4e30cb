package store

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreAt(t, t.TempDir())
}

func newTestStoreAt(t *testing.T, dir string) *Store {
	t.Helper()
	counter := 0
	s, err := New(NewRepository(dir),
		WithClock(func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("id-%d", counter)
		}),
	)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func testRun() RunConfig {
	return RunConfig{
		Provider:     "openai",
		Model:        "gpt-4o",
		SystemPrompt: "distill the book",
		StopToken:    "<end_of_book>",
		MaxSections:  10,
	}
}

func mustCreateDocument(t *testing.T, s *Store) Document {
	t.Helper()
	doc, err := s.CreateDocument("Walden", "Thoreau", "I went to the woods...", testRun())
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}

func TestAppendAssignsStrictlyIncreasingOrdinals(t *testing.T) {
	s := newTestStore(t)
	doc := mustCreateDocument(t, s)
	for i := 1; i <= 3; i++ {
		section, err := s.Append(doc.ID, fmt.Sprintf("section %d", i), StatusDraft)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if section.Ordinal != i {
			t.Fatalf("ordinal = %d, want %d", section.Ordinal, i)
		}
	}
}

func TestAppendUnknownDocument(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Append("missing", "content", StatusDraft); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestOrdinalsNeverReusedAfterUndo(t *testing.T) {
	s := newTestStore(t)
	doc := mustCreateDocument(t, s)
	for i := 0; i < 2; i++ {
		if _, err := s.Append(doc.ID, "text", StatusAccepted); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	removed, ok, err := s.DeleteMostRecentAccepted(doc.ID)
	if err != nil || !ok {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	if removed.Ordinal != 2 {
		t.Fatalf("removed ordinal = %d, want 2", removed.Ordinal)
	}
	next, err := s.Append(doc.ID, "text", StatusAccepted)
	if err != nil {
		t.Fatalf("append after undo: %v", err)
	}
	if next.Ordinal != 3 {
		t.Fatalf("ordinal after undo = %d, want 3 (no reuse)", next.Ordinal)
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		name    string
		initial Status
		next    Status
		wantErr bool
	}{
		{"draft to accepted", StatusDraft, StatusAccepted, false},
		{"draft to discarded", StatusDraft, StatusDiscarded, false},
		{"accepted to discarded", StatusAccepted, StatusDiscarded, true},
		{"discarded to accepted", StatusDiscarded, StatusAccepted, true},
		{"accepted to draft", StatusAccepted, StatusDraft, true},
		{"same status is a no-op", StatusDiscarded, StatusDiscarded, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t)
			doc := mustCreateDocument(t, s)
			section, err := s.Append(doc.ID, "content", tc.initial)
			if err != nil {
				t.Fatalf("append: %v", err)
			}
			_, err = s.SetStatus(doc.ID, section.ID, tc.next)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				sections, listErr := s.ListOrdered(doc.ID)
				if listErr != nil {
					t.Fatalf("list: %v", listErr)
				}
				if sections[0].Status != tc.initial {
					t.Fatalf("status mutated to %s after rejected transition", sections[0].Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("transition %s -> %s: %v", tc.initial, tc.next, err)
			}
		})
	}
}

func TestDeleteMostRecentAcceptedSkipsDraftsAndDiscarded(t *testing.T) {
	s := newTestStore(t)
	doc := mustCreateDocument(t, s)
	if _, err := s.Append(doc.ID, "first", StatusAccepted); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(doc.ID, "second", StatusAccepted); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(doc.ID, "third", StatusDraft); err != nil {
		t.Fatal(err)
	}
	removed, ok, err := s.DeleteMostRecentAccepted(doc.ID)
	if err != nil || !ok {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	if removed.Content != "second" {
		t.Fatalf("removed %q, want the highest-ordinal accepted section", removed.Content)
	}
	sections, err := s.ListOrdered(doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sections) != 2 {
		t.Fatalf("len(sections) = %d, want 2", len(sections))
	}
	if sections[0].Status != StatusAccepted || sections[0].Ordinal != 1 {
		t.Fatalf("ordinal 1 should remain accepted, got %+v", sections[0])
	}
}

func TestDeleteMostRecentAcceptedWithNothingToUndo(t *testing.T) {
	s := newTestStore(t)
	doc := mustCreateDocument(t, s)
	if _, err := s.Append(doc.ID, "pending", StatusDraft); err != nil {
		t.Fatal(err)
	}
	_, ok, err := s.DeleteMostRecentAccepted(doc.ID)
	if err != nil {
		t.Fatalf("undo should not error: %v", err)
	}
	if ok {
		t.Fatalf("undo reported success with no accepted sections")
	}
}

func TestClearRemovesSectionsAndRestartsOrdinals(t *testing.T) {
	s := newTestStore(t)
	doc := mustCreateDocument(t, s)
	if _, err := s.Append(doc.ID, "one", StatusAccepted); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(doc.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	sections, err := s.ListOrdered(doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sections) != 0 {
		t.Fatalf("sections remain after clear: %d", len(sections))
	}
	section, err := s.Append(doc.ID, "fresh start", StatusDraft)
	if err != nil {
		t.Fatal(err)
	}
	if section.Ordinal != 1 {
		t.Fatalf("ordinal after clear = %d, want 1", section.Ordinal)
	}
}

func TestUpdateContentRecomputesHeading(t *testing.T) {
	s := newTestStore(t)
	doc := mustCreateDocument(t, s)
	section, err := s.Append(doc.ID, "# Original Heading\n\nBody.", StatusDraft)
	if err != nil {
		t.Fatal(err)
	}
	if section.Heading != "Original Heading" {
		t.Fatalf("heading = %q, want Original Heading", section.Heading)
	}
	updated, err := s.UpdateContent(doc.ID, section.ID, "## Revised\n\nNew body.")
	if err != nil {
		t.Fatalf("update content: %v", err)
	}
	if updated.Heading != "Revised" {
		t.Fatalf("heading = %q, want Revised", updated.Heading)
	}
}

func TestDeriveHeadingFallsBackToFirstLine(t *testing.T) {
	s := newTestStore(t)
	doc := mustCreateDocument(t, s)
	section, err := s.Append(doc.ID, "\n\nThe pond in winter was still.\nMore text.", StatusDraft)
	if err != nil {
		t.Fatal(err)
	}
	if section.Heading != "The pond in winter was still." {
		t.Fatalf("heading = %q", section.Heading)
	}
}

func TestRecordsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	s := newTestStoreAt(t, dir)
	doc := mustCreateDocument(t, s)
	if _, err := s.Append(doc.ID, "# Persisted\n\nBody.", StatusAccepted); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(NewRepository(dir))
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	docs, err := reopened.Documents()
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "Walden" {
		t.Fatalf("documents after reopen = %+v", docs)
	}
	sections, err := reopened.ListOrdered(doc.ID)
	if err != nil {
		t.Fatalf("list sections: %v", err)
	}
	if len(sections) != 1 || sections[0].Heading != "Persisted" {
		t.Fatalf("sections after reopen = %+v", sections)
	}
	if docs[0].NextOrdinal != 2 {
		t.Fatalf("next ordinal after reopen = %d, want 2", docs[0].NextOrdinal)
	}
}

func TestCreateDocumentRejectsZeroMaxSections(t *testing.T) {
	s := newTestStore(t)
	run := testRun()
	run.MaxSections = 0
	if _, err := s.CreateDocument("t", "a", "text", run); err == nil {
		t.Fatalf("expected error for max sections < 1")
	}
}
