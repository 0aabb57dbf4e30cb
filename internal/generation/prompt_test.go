package generation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kwren/distill/internal/store"
)

func TestBuildUserPromptFieldOrder(t *testing.T) {
	doc := &store.Document{Title: "Walden", Author: "Thoreau", Text: "the text body"}
	prompt := buildUserPrompt(doc, "accepted so far", "<end_of_book>")

	positions := []int{
		strings.Index(prompt, "Walden"),
		strings.Index(prompt, "Thoreau"),
		strings.Index(prompt, "the text body"),
		strings.Index(prompt, "accepted so far"),
		strings.Index(prompt, "<end_of_book>"),
	}
	for i, pos := range positions {
		if pos < 0 {
			t.Fatalf("field %d missing from prompt:\n%s", i, prompt)
		}
		if i > 0 && pos <= positions[i-1] {
			t.Fatalf("field %d out of order (at %d, previous at %d)", i, pos, positions[i-1])
		}
	}
}

func TestBuildUserPromptUnknownPlaceholders(t *testing.T) {
	doc := &store.Document{Title: "  ", Author: "", Text: "body"}
	prompt := buildUserPrompt(doc, "", "")
	if strings.Count(prompt, "(unknown)") != 2 {
		t.Fatalf("expected (unknown) title and author, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "(none yet)") {
		t.Fatalf("empty history placeholder missing")
	}
}

func TestBuildUserPromptTruncatesLongText(t *testing.T) {
	doc := &store.Document{Text: strings.Repeat("a", maxPromptChars+500)}
	prompt := buildUserPrompt(doc, "", "")
	if !strings.Contains(prompt, "[source text truncated]") {
		t.Fatalf("truncation notice missing")
	}
	if got := strings.Count(prompt, "a"); got > maxPromptChars+100 {
		t.Fatalf("text not truncated: %d a's", got)
	}
}

func TestTruncateRunesKeepsValidUTF8(t *testing.T) {
	text := strings.Repeat("é", 10)
	got, truncated := truncateRunes(text, 4)
	if !truncated {
		t.Fatalf("expected truncation")
	}
	if got != "éééé" {
		t.Fatalf("got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune")
	}
}

func TestTruncateRunesShortTextUntouched(t *testing.T) {
	got, truncated := truncateRunes("short", 100)
	if truncated || got != "short" {
		t.Fatalf("got %q truncated=%v", got, truncated)
	}
}
