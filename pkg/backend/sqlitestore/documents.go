package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
)

// AddDocument inserts doc and returns the id SQLite assigned.
func (s *Store) AddDocument(doc docdb.Document) (docdb.DocID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, docdb.ErrSessionNotOpen
	}

	vals, err := encodeValues(doc.Values)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: %w", err)
	}

	ctx, cancel := s.opContext()
	defer cancel()

	res, err := s.querierLocked().ExecContext(ctx,
		"INSERT INTO documents (data, vals) VALUES (?, ?)", blob(doc.Data), vals)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: insert id: %w", err)
	}
	if id <= 0 || id > int64(docdb.MaxDocID) {
		return 0, fmt.Errorf("sqlitestore: allocated id %d out of range", id)
	}
	return docdb.DocID(id), nil
}

// DeleteDocument removes the document with the given id.
func (s *Store) DeleteDocument(id docdb.DocID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return docdb.ErrSessionNotOpen
	}

	ctx, cancel := s.opContext()
	defer cancel()

	res, err := s.querierLocked().ExecContext(ctx, "DELETE FROM documents WHERE id = ?", int64(id))
	if err != nil {
		return fmt.Errorf("sqlitestore: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlitestore: delete: %w", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

// ReplaceDocument stores doc under id, creating it if absent.
func (s *Store) ReplaceDocument(id docdb.DocID, doc docdb.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return docdb.ErrSessionNotOpen
	}
	if id == 0 {
		return fmt.Errorf("sqlitestore: replace document 0: %w", docdb.ErrInvalidDocument)
	}

	vals, err := encodeValues(doc.Values)
	if err != nil {
		return fmt.Errorf("sqlitestore: %w", err)
	}

	ctx, cancel := s.opContext()
	defer cancel()

	_, err = s.querierLocked().ExecContext(ctx, `
		INSERT INTO documents (id, data, vals) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data=excluded.data, vals=excluded.vals, updated_at=datetime('now')`,
		int64(id), blob(doc.Data), vals)
	if err != nil {
		return fmt.Errorf("sqlitestore: replace: %w", err)
	}
	return nil
}

// Document reads a document. Outside a session the database is opened for
// the duration of the read.
func (s *Store) Document(id docdb.DocID) (docdb.Document, error) {
	var doc docdb.Document
	err := s.read(func(q querier) error {
		ctx, cancel := s.opContext()
		defer cancel()

		var vals sql.NullString
		err := q.QueryRowContext(ctx, "SELECT data, vals FROM documents WHERE id = ?", int64(id)).
			Scan(&doc.Data, &vals)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(id)
		}
		if err != nil {
			return fmt.Errorf("sqlitestore: get: %w", err)
		}
		doc.Values, err = decodeValues(vals)
		return err
	})
	return doc, err
}

// DocCount returns the number of stored documents.
func (s *Store) DocCount() (int, error) {
	var n int
	err := s.read(func(q querier) error {
		ctx, cancel := s.opContext()
		defer cancel()

		if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
			return fmt.Errorf("sqlitestore: count: %w", err)
		}
		return nil
	})
	return n, err
}

func (s *Store) read(fn func(querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return fn(s.querierLocked())
	}

	ctx, cancel := s.opContext()
	defer cancel()

	db, err := openDB(ctx, s.cfg.Path, s.cfg.BusyTimeout)
	if err != nil {
		return fmt.Errorf("sqlitestore: %w", err)
	}
	defer db.Close()

	if err := migrate(ctx, db, s.logger); err != nil {
		return fmt.Errorf("sqlitestore: %w", err)
	}
	return fn(db)
}

// blob keeps empty payloads non-NULL
func blob(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	return data
}
