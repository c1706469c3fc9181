package markdown

import (
	"regexp"
	"strings"
)

// Section is a heading line plus the body that follows it, up to the next
// heading of any level or the end of the document.
type Section struct {
	Heading     string `json:"heading"`
	Slug        string `json:"slug"`
	Level       int    `json:"level"`
	StartLine   int    `json:"startLine"`
	EndLine     int    `json:"endLine"`
	Content     string `json:"content"`
	ContentHash string `json:"contentHash"`
}

var (
	headingPattern = regexp.MustCompile(`^(#{1,6}) +(.+)$`)
	fencePattern   = regexp.MustCompile("^\\s*(`{3,}|~{3,})")
)

// ParseSections splits document text into sections in document order.
// Lines before the first heading belong to no section, and headings inside
// fenced code blocks are ignored.
func ParseSections(text string) []Section {
	lines := splitLines(text)
	sections := make([]Section, 0)

	var (
		current *Section
		body    []string
		inFence bool
	)

	closeSection := func(end int) {
		if current == nil {
			return
		}
		current.EndLine = end
		current.Content = strings.TrimSpace(strings.Join(body, "\n"))
		current.ContentHash = ContentHash(current.Content, DefaultHashChars)
		sections = append(sections, *current)
		current = nil
		body = nil
	}

	for i, line := range lines {
		if fencePattern.MatchString(line) {
			inFence = !inFence
		} else if !inFence {
			if m := headingPattern.FindStringSubmatch(line); m != nil {
				closeSection(i)
				heading := strings.TrimSpace(m[2])
				current = &Section{
					Heading:   heading,
					Slug:      Slugify(heading),
					Level:     len(m[1]),
					StartLine: i,
				}
				continue
			}
		}
		if current != nil {
			body = append(body, line)
		}
	}
	closeSection(len(lines))

	return sections
}

// CountLines reports the number of lines ParseSections sees in text.
func CountLines(text string) int {
	return len(splitLines(text))
}

func splitLines(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.Split(normalized, "\n")
}
