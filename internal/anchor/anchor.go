// Package anchor binds comment threads to document sections and resolves
// those bindings against a freshly parsed section list.
package anchor

import "github.com/choplin/mdreview/internal/markdown"

// Anchor points a comment thread at a section. LineHint is best effort and is
// only consulted when searching for a reparent candidate.
type Anchor struct {
	SectionSlug string `json:"sectionSlug"`
	ContentHash string `json:"contentHash"`
	LineHint    int    `json:"lineHint"`
}

// Match is the result of resolving an anchor.
type Match struct {
	Section markdown.Section
	IsStale bool
}

// Create projects a section onto a new anchor.
func Create(section markdown.Section) Anchor {
	return Anchor{
		SectionSlug: section.Slug,
		ContentHash: section.ContentHash,
		LineHint:    section.StartLine,
	}
}

// FindAnchoredSection returns the first section whose slug matches the anchor.
// The boolean is false when the anchor is orphaned.
func FindAnchoredSection(sections []markdown.Section, a Anchor) (Match, bool) {
	section, ok := FindSectionBySlug(sections, a.SectionSlug)
	if !ok {
		return Match{}, false
	}
	return Match{Section: section, IsStale: section.ContentHash != a.ContentHash}, true
}

// FindSectionBySlug returns the first section carrying slug.
func FindSectionBySlug(sections []markdown.Section, slug string) (markdown.Section, bool) {
	for _, s := range sections {
		if s.Slug == slug {
			return s, true
		}
	}
	return markdown.Section{}, false
}

// FindSectionContainingLine returns the section whose [StartLine, EndLine)
// range contains line.
func FindSectionContainingLine(sections []markdown.Section, line int) (markdown.Section, bool) {
	for _, s := range sections {
		if line >= s.StartLine && line < s.EndLine {
			return s, true
		}
	}
	return markdown.Section{}, false
}

// DuplicateSlugs lists slugs carried by more than one section, in order of
// their second appearance. Anchors on these slugs always resolve to the first
// occurrence.
func DuplicateSlugs(sections []markdown.Section) []string {
	seen := make(map[string]int, len(sections))
	var dups []string
	for _, s := range sections {
		seen[s.Slug]++
		if seen[s.Slug] == 2 {
			dups = append(dups, s.Slug)
		}
	}
	return dups
}
