package memstore

import (
	"fmt"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
	"github.com/dd0wney/cluso-docdb/pkg/logging"
	"github.com/dd0wney/cluso-docdb/pkg/wal"
)

// transaction stages mutations until commit. A nil document marks a delete.
type transaction struct {
	changes map[docdb.DocID]*docdb.Document
	records []wal.Record
}

func (t *transaction) stage(id docdb.DocID, doc *docdb.Document, rec wal.Record) {
	t.changes[id] = doc
	t.records = append(t.records, rec)
}

// OpenTransaction starts staging mutations.
func (s *Store) OpenTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sessionOpen {
		return docdb.ErrSessionNotOpen
	}
	if s.txn != nil {
		return ErrTransactionOpen
	}

	s.txn = &transaction{changes: make(map[docdb.DocID]*docdb.Document)}
	return nil
}

// CommitTransaction writes the staged group to the WAL with a single sync and
// applies it. The transaction is over whether or not the write succeeds. A
// failed write, including a failed sync, leaves no part of the group in the
// log, so the documents stay as they were both now and after recovery.
func (s *Store) CommitTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn := s.txn
	s.txn = nil
	if !s.sessionOpen {
		return docdb.ErrSessionNotOpen
	}
	if txn == nil {
		return fmt.Errorf("memstore: no transaction to commit")
	}

	if s.log != nil && len(txn.records) > 0 {
		group := make([]wal.Record, 0, len(txn.records)+2)
		group = append(group, wal.Record{OpType: wal.OpBegin})
		group = append(group, txn.records...)
		group = append(group, wal.Record{OpType: wal.OpCommit})

		lsn, err := s.log.AppendBatch(group)
		if err != nil {
			return fmt.Errorf("memstore: commit: %w", err)
		}
		s.sinceSnapshot += len(group)
		s.logger.Debug("transaction committed",
			logging.Int("records", len(txn.records)),
			logging.LSN(lsn),
		)
	}

	for id, doc := range txn.changes {
		if doc == nil {
			delete(s.docs, id)
			continue
		}
		s.docs[id] = *doc
	}
	return nil
}

// CancelTransaction discards staged mutations. It is safe to call with no
// transaction open.
func (s *Store) CancelTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txn != nil {
		s.logger.Debug("transaction cancelled", logging.Int("records", len(s.txn.records)))
	}
	s.txn = nil
	return nil
}
