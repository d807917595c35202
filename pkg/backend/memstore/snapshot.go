package memstore

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"golang.org/x/exp/mmap"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
	"github.com/dd0wney/cluso-docdb/pkg/wal"
)

const snapshotFileName = "snapshot.json"

type snapshotDoc struct {
	ID  docdb.DocID    `json:"id"`
	Doc docdb.Document `json:"doc"`
}

type snapshot struct {
	LastDocID docdb.DocID   `json:"last_doc_id"`
	Documents []snapshotDoc `json:"documents"`
}

func newSnapshot(docs map[docdb.DocID]docdb.Document, last docdb.DocID) *snapshot {
	snap := &snapshot{
		LastDocID: last,
		Documents: make([]snapshotDoc, 0, len(docs)),
	}
	for id, doc := range docs {
		snap.Documents = append(snap.Documents, snapshotDoc{ID: id, Doc: doc})
	}
	slices.SortFunc(snap.Documents, func(a, b snapshotDoc) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return snap
}

func (s *snapshot) documents() map[docdb.DocID]docdb.Document {
	docs := make(map[docdb.DocID]docdb.Document, len(s.Documents))
	for _, d := range s.Documents {
		docs[d.ID] = d.Doc
	}
	return docs
}

func (s *snapshot) write(path string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("memstore: marshal snapshot: %w", err)
	}
	if err := wal.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("memstore: write snapshot: %w", err)
	}
	return nil
}

// loadSnapshot maps the snapshot file and decodes it. A missing file yields
// an empty snapshot.
func loadSnapshot(path string) (*snapshot, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &snapshot{}, nil
	}

	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("memstore: map snapshot: %w", err)
	}
	defer r.Close()

	snap := &snapshot{}
	if r.Len() == 0 {
		return snap, nil
	}
	if err := json.NewDecoder(io.NewSectionReader(r, 0, int64(r.Len()))).Decode(snap); err != nil {
		return nil, fmt.Errorf("memstore: decode snapshot %s: %w", path, err)
	}
	return snap, nil
}
