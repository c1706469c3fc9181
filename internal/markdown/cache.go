package markdown

import "sync"

// SectionCache holds parsed sections keyed by document identity. Entries live
// until Invalidate or Clear is called; the cache never drops them on its own.
type SectionCache struct {
	mu      sync.RWMutex
	entries map[string][]Section
}

// NewSectionCache returns an empty cache.
func NewSectionCache() *SectionCache {
	return &SectionCache{entries: make(map[string][]Section)}
}

// Get returns the cached sections for doc.
func (c *SectionCache) Get(doc string) ([]Section, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sections, ok := c.entries[doc]
	return sections, ok
}

// Put parses text and stores the result for doc, replacing any previous entry.
func (c *SectionCache) Put(doc, text string) []Section {
	sections := ParseSections(text)
	c.mu.Lock()
	c.entries[doc] = sections
	c.mu.Unlock()
	return sections
}

// Load returns the cached sections for doc, calling read and parsing its
// result on a miss. Errors from read are returned without caching anything.
func (c *SectionCache) Load(doc string, read func() (string, error)) ([]Section, error) {
	if sections, ok := c.Get(doc); ok {
		return sections, nil
	}
	text, err := read()
	if err != nil {
		return nil, err
	}
	return c.Put(doc, text), nil
}

// Invalidate drops the entry for doc.
func (c *SectionCache) Invalidate(doc string) {
	c.mu.Lock()
	delete(c.entries, doc)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *SectionCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string][]Section)
	c.mu.Unlock()
}
