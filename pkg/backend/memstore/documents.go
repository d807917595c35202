package memstore

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
	"github.com/dd0wney/cluso-docdb/pkg/wal"
)

var errIDSpaceExhausted = errors.New("memstore: document id space exhausted")

// AddDocument stores doc under a newly allocated id.
func (s *Store) AddDocument(doc docdb.Document) (docdb.DocID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sessionOpen {
		return 0, docdb.ErrSessionNotOpen
	}
	if s.lastDocID == docdb.MaxDocID {
		return 0, errIDSpaceExhausted
	}

	id := s.lastDocID + 1
	if err := s.mutateLocked(wal.OpAddDocument, id, &doc); err != nil {
		return 0, err
	}
	s.lastDocID = id
	return id, nil
}

// DeleteDocument removes the document with the given id.
func (s *Store) DeleteDocument(id docdb.DocID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sessionOpen {
		return docdb.ErrSessionNotOpen
	}
	if _, ok := s.lookupLocked(id); !ok {
		return notFound(id)
	}
	return s.mutateLocked(wal.OpDeleteDocument, id, nil)
}

// ReplaceDocument stores doc under id, creating it if absent.
func (s *Store) ReplaceDocument(id docdb.DocID, doc docdb.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sessionOpen {
		return docdb.ErrSessionNotOpen
	}
	if id == 0 {
		return fmt.Errorf("memstore: replace document 0: %w", docdb.ErrInvalidDocument)
	}
	if err := s.mutateLocked(wal.OpReplaceDocument, id, &doc); err != nil {
		return err
	}
	if id > s.lastDocID {
		s.lastDocID = id
	}
	return nil
}

// mutateLocked stages the change in the open transaction, or journals and
// applies it directly. A nil doc deletes.
func (s *Store) mutateLocked(op wal.OpType, id docdb.DocID, doc *docdb.Document) error {
	if doc != nil {
		cloned := doc.Clone()
		doc = &cloned
	}

	rec, err := encodeRecord(op, id, doc)
	if err != nil {
		return err
	}

	if s.txn != nil {
		s.txn.stage(id, doc, rec)
		return nil
	}

	if s.log != nil {
		if _, err := s.log.Append(rec.OpType, rec.Data); err != nil {
			return fmt.Errorf("memstore: %w", err)
		}
		s.sinceSnapshot++
	}

	if doc == nil {
		delete(s.docs, id)
	} else {
		s.docs[id] = *doc
	}
	return nil
}
