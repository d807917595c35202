package docdb

import "maps"

// DocID identifies a document within a database. Zero is never a valid id.
type DocID uint32

// MaxDocID is the largest id a backend can allocate
const MaxDocID = DocID(^uint32(0))

// Document is an opaque payload passed through to the backend.
type Document struct {
	Data   []byte            `json:"data"`
	Values map[string]string `json:"values,omitempty"`
}

// Clone returns a deep copy so backends can retain documents safely.
func (d Document) Clone() Document {
	out := Document{Values: maps.Clone(d.Values)}
	if d.Data != nil {
		out.Data = append([]byte(nil), d.Data...)
	}
	return out
}
