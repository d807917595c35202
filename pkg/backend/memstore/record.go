package memstore

import (
	"encoding/json"
	"fmt"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
	"github.com/dd0wney/cluso-docdb/pkg/wal"
)

// record is the WAL payload for a document mutation
type record struct {
	ID  docdb.DocID     `json:"id"`
	Doc *docdb.Document `json:"doc,omitempty"`
}

func encodeRecord(op wal.OpType, id docdb.DocID, doc *docdb.Document) (wal.Record, error) {
	data, err := json.Marshal(record{ID: id, Doc: doc})
	if err != nil {
		return wal.Record{}, fmt.Errorf("memstore: marshal document %d: %w", id, err)
	}
	return wal.Record{OpType: op, Data: data}, nil
}

func decodeRecord(e *wal.Entry) (record, error) {
	var rec record
	if err := json.Unmarshal(e.Data, &rec); err != nil {
		return rec, fmt.Errorf("memstore: unmarshal WAL entry LSN=%d: %w", e.LSN, err)
	}
	if rec.ID == 0 {
		return rec, fmt.Errorf("memstore: WAL entry LSN=%d has no document id", e.LSN)
	}
	return rec, nil
}
