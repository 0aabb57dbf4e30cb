package generation

import (
	"fmt"
	"strings"

	"github.com/kwren/distill/internal/store"
)

// maxPromptChars bounds how much of the source text is embedded in a
// request. Anything past the budget is cut; the model sees the truncation
// notice instead.
const maxPromptChars = 100_000

const unknownField = "(unknown)"

// buildUserPrompt renders the user-role payload for one completion request.
// The embedded fields and their order (title, author, source text, accepted
// history) are load-bearing: accepted sections produced under one rendering
// must remain coherent context for the next.
func buildUserPrompt(doc *store.Document, history, stopToken string) string {
	title := doc.Title
	if strings.TrimSpace(title) == "" {
		title = unknownField
	}
	author := doc.Author
	if strings.TrimSpace(author) == "" {
		author = unknownField
	}
	text, truncated := truncateRunes(doc.Text, maxPromptChars)
	if truncated {
		text += "\n\n[source text truncated]"
	}
	if strings.TrimSpace(history) == "" {
		history = "(none yet)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Book title: %s\n", title)
	fmt.Fprintf(&b, "Book author: %s\n\n", author)
	fmt.Fprintf(&b, "Full text of the book:\n---\n%s\n---\n\n", text)
	fmt.Fprintf(&b, "Previously accepted sections of the distillation:\n---\n%s\n---\n\n", history)
	b.WriteString("Write the next section of the distillation, continuing directly from the accepted sections above without repeating them. Begin the section with a Markdown heading.")
	if stopToken != "" {
		fmt.Fprintf(&b, " When the distillation has covered the whole book, end your output with %s.", stopToken)
	}
	return b.String()
}

func truncateRunes(text string, limit int) (string, bool) {
	if len(text) <= limit {
		return text, false
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text, false
	}
	return string(runes[:limit]), true
}
