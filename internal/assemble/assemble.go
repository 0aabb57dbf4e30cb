// Package assemble builds generation context from stored sections. All
// functions are pure: they read a section slice and never touch storage.
package assemble

import (
	"sort"
	"strings"

	"github.com/kwren/distill/internal/store"
)

// separator joins accepted sections with a blank line.
const separator = "\n\n"

// History returns the concatenated content of accepted sections ordered by
// ordinal, and whether the configured stop token appears anywhere in that
// content. Draft and discarded sections are excluded. An empty accepted set
// yields an empty context with no stop token.
func History(sections []store.Section, stopToken string) (string, bool) {
	context := Stitch(sections)
	if stopToken == "" {
		return context, false
	}
	return context, strings.Contains(context, stopToken)
}

// Stitch concatenates accepted sections ordered by ordinal with blank-line
// separators. This is both the generation history and the export body.
func Stitch(sections []store.Section) string {
	accepted := make([]store.Section, 0, len(sections))
	for _, section := range sections {
		if section.Status == store.StatusAccepted {
			accepted = append(accepted, section)
		}
	}
	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].Ordinal < accepted[j].Ordinal
	})
	parts := make([]string, 0, len(accepted))
	for _, section := range accepted {
		parts = append(parts, section.Content)
	}
	return strings.Join(parts, separator)
}

// Latest returns the highest-ordinal section regardless of status. The
// continuation decision inspects the most recently generated content even
// when the human has not ruled on it yet.
func Latest(sections []store.Section) (store.Section, bool) {
	var latest store.Section
	found := false
	for _, section := range sections {
		if !found || section.Ordinal > latest.Ordinal {
			latest = section
			found = true
		}
	}
	return latest, found
}

// CountAccepted returns the number of accepted sections.
func CountAccepted(sections []store.Section) int {
	count := 0
	for _, section := range sections {
		if section.Status == store.StatusAccepted {
			count++
		}
	}
	return count
}
