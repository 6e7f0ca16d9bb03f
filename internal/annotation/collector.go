// Package annotation collects the id-keyed side data (notes, dates,
// related works, entity references) produced while a page is rendered.
package annotation

import (
	"strings"
)

// Entry is one annotation keyed by the id written into the rendered output.
type Entry struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Map is an insertion-ordered id to value mapping.
type Map struct {
	keys   []string
	values map[string]string
}

func (m *Map) Set(id, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[id]; !ok {
		m.keys = append(m.keys, id)
	}
	m.values[id] = value
}

func (m *Map) Get(id string) (string, bool) {
	v, ok := m.values[id]
	return v, ok
}

func (m *Map) Len() int { return len(m.keys) }

func (m *Map) Entries() []Entry {
	out := make([]Entry, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, Entry{ID: k, Value: m.values[k]})
	}
	return out
}

func (m *Map) reset() {
	m.keys = nil
	m.values = nil
}

// Collector is the per render pass accumulator. It is not safe for
// concurrent use; each page render owns one.
type Collector struct {
	ids      IDGenerator
	all      []string
	notes    Map
	dates    Map
	works    Map
	entities Map
}

// NewCollector returns a collector drawing ids from gen. A nil gen falls
// back to random UUIDs.
func NewCollector(gen IDGenerator) *Collector {
	if gen == nil {
		gen = UUIDGenerator{}
	}
	return &Collector{ids: gen}
}

// NewID allocates an id and records it in the page ledger.
func (c *Collector) NewID() string {
	id := c.ids.NewID()
	c.all = append(c.all, id)
	return id
}

func (c *Collector) AddNote(id, text string) { c.notes.Set(id, text) }
func (c *Collector) AddDate(id, text string) { c.dates.Set(id, text) }
func (c *Collector) AddWork(id, html string) { c.works.Set(id, html) }
func (c *Collector) AddEntity(id, entity string) { c.entities.Set(id, entity) }

// AppendNote extends an existing note. It reports false when id has no
// note yet.
func (c *Collector) AppendNote(id, suffix string) bool {
	v, ok := c.notes.Get(id)
	if !ok {
		return false
	}
	c.notes.Set(id, v+suffix)
	return true
}

// Snapshot copies the current state.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Notes:    c.notes.Entries(),
		Dates:    c.dates.Entries(),
		Works:    c.works.Entries(),
		Entities: c.entities.Entries(),
		AllIDs:   append([]string(nil), c.all...),
	}
}

// Reset clears every map and the id ledger.
func (c *Collector) Reset() {
	c.all = nil
	c.notes.reset()
	c.dates.reset()
	c.works.reset()
	c.entities.reset()
}

// Snapshot is the immutable view of a collector after a page was rendered.
type Snapshot struct {
	Notes    []Entry  `json:"notes,omitempty"`
	Dates    []Entry  `json:"dates,omitempty"`
	Works    []Entry  `json:"works,omitempty"`
	Entities []Entry  `json:"entities,omitempty"`
	AllIDs   []string `json:"all_ids,omitempty"`
}

// Lookup finds id in any of the four maps.
func (s Snapshot) Lookup(id string) (Entry, bool) {
	for _, list := range [][]Entry{s.Notes, s.Dates, s.Works, s.Entities} {
		for _, e := range list {
			if e.ID == id {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// IDs and Values split entries into the parallel lists used by page
// search documents.
func IDs(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func Values(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Value)
	}
	return out
}

// Lemmatize shortens a preview to its first and last token when it has
// more than two space separated tokens.
func Lemmatize(text string) string {
	tokens := strings.Split(text, " ")
	if len(tokens) > 2 {
		return tokens[0] + " … " + tokens[len(tokens)-1]
	}
	return text
}
