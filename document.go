package quoll

import "github.com/google/uuid"

// DocumentIDField is the document field holding the identifier.
const DocumentIDField = "_id"

// Document is an untyped record stored in a collection. Field values must
// be JSON-encodable.
type Document map[string]any

// NewDocument returns an empty document.
func NewDocument() Document {
	return Document{}
}

// ID returns the document's identifier, or "" when none is set.
func (d Document) ID() string {
	id, _ := d[DocumentIDField].(string)
	return id
}

// ensureID returns the document's identifier, assigning a fresh one when
// absent.
func (d Document) ensureID() string {
	if id := d.ID(); id != "" {
		return id
	}
	id := uuid.NewString()
	d[DocumentIDField] = id
	return id
}
