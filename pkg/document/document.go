// Package document owns the canonical document store and inverted term
// index, and implements the snapshot-pattern reader that is the
// concurrency core of the retrieval system.
package document

// Document is immutable after insertion; removal is wholesale (delete by
// id), never a partial field update.
type Document struct {
	ID       string
	Content  string
	Name     string
	Path     string
	Metadata map[string]string
}

// Clone returns a deep copy so callers can't mutate the repository's
// internal state through a returned Document.
func (d Document) Clone() Document {
	metadata := make(map[string]string, len(d.Metadata))
	for k, v := range d.Metadata {
		metadata[k] = v
	}
	return Document{ID: d.ID, Content: d.Content, Name: d.Name, Path: d.Path, Metadata: metadata}
}
