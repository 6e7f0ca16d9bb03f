package search

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// Doctypes of the records produced by ingest.
const (
	DoctypeArticle    = "article"
	DoctypePage       = "page"
	DoctypeNote       = "note"
	DoctypeEntity     = "entity"
	DoctypeLiterature = "literature"
)

// Indexer abstracts search indexing so the pipeline package does not depend
// on a specific search implementation.
type Indexer interface {
	IndexDocuments(ctx context.Context, docs ...Document) error
	Close() error
}

// Document is one flat search record. Field values are string or []string;
// empty values are never stored.
type Document struct {
	ID      string
	Doctype string
	Fields  map[string]any
}

func NewDocument(id, doctype string) Document {
	return Document{ID: id, Doctype: doctype, Fields: make(map[string]any)}
}

// Set stores v under name unless it is empty.
func (d *Document) Set(name, v string) {
	if v == "" {
		return
	}
	if d.Fields == nil {
		d.Fields = make(map[string]any)
	}
	d.Fields[name] = v
}

// SetList stores the non-empty items of vs under name unless none remain.
func (d *Document) SetList(name string, vs []string) {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return
	}
	if d.Fields == nil {
		d.Fields = make(map[string]any)
	}
	d.Fields[name] = out
}

// SetValue stores a string or []string value; anything else is ignored.
func (d *Document) SetValue(name string, v any) {
	switch v := v.(type) {
	case string:
		d.Set(name, v)
	case []string:
		d.SetList(name, v)
	}
}

func (d Document) Has(name string) bool {
	_, ok := d.Fields[name]
	return ok
}

// String returns a string field, or the first item of a list field.
func (d Document) String(name string) string {
	switch v := d.Fields[name].(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func (d Document) Strings(name string) []string {
	switch v := d.Fields[name].(type) {
	case string:
		return []string{v}
	case []string:
		return slices.Clone(v)
	}
	return nil
}

// MarshalJSON writes the document as one flat object.
func (d Document) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(d.Fields)+2)
	for k, v := range d.Fields {
		flat[k] = v
	}
	flat["id"] = d.ID
	flat["doctype"] = d.Doctype
	return json.Marshal(flat)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*d = Document{Fields: make(map[string]any)}
	for k, v := range flat {
		switch k {
		case "id":
			d.ID = scalar(v)
		case "doctype":
			d.Doctype = scalar(v)
		default:
			if list, ok := v.([]any); ok {
				items := make([]string, 0, len(list))
				for _, item := range list {
					items = append(items, scalar(item))
				}
				d.SetList(k, items)
				continue
			}
			d.Set(k, scalar(v))
		}
	}
	if d.ID == "" {
		return fmt.Errorf("search document without id")
	}
	return nil
}

func scalar(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}
