package pgstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
)

// AddDocument inserts doc and returns the id PostgreSQL assigned.
func (s *Store) AddDocument(doc docdb.Document) (docdb.DocID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return 0, docdb.ErrSessionNotOpen
	}

	vals, err := encodeValues(doc.Values)
	if err != nil {
		return 0, err
	}

	ctx, cancel := s.opContext()
	defer cancel()

	var id int64
	err = s.querierLocked().QueryRow(ctx,
		"INSERT INTO documents (data, vals) VALUES ($1, $2) RETURNING id",
		blob(doc.Data), vals,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("pgstore: insert: %w", err)
	}
	if id <= 0 || id > int64(docdb.MaxDocID) {
		return 0, fmt.Errorf("pgstore: allocated id %d out of range", id)
	}
	return docdb.DocID(id), nil
}

// DeleteDocument removes the document with the given id.
func (s *Store) DeleteDocument(id docdb.DocID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return docdb.ErrSessionNotOpen
	}

	ctx, cancel := s.opContext()
	defer cancel()

	tag, err := s.querierLocked().Exec(ctx, "DELETE FROM documents WHERE id = $1", int64(id))
	if err != nil {
		return fmt.Errorf("pgstore: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

// ReplaceDocument stores doc under id, creating it if absent. The id
// sequence is moved past id so later inserts never collide with it.
func (s *Store) ReplaceDocument(id docdb.DocID, doc docdb.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return docdb.ErrSessionNotOpen
	}
	if id == 0 {
		return fmt.Errorf("pgstore: replace document 0: %w", docdb.ErrInvalidDocument)
	}

	vals, err := encodeValues(doc.Values)
	if err != nil {
		return err
	}

	ctx, cancel := s.opContext()
	defer cancel()

	q := s.querierLocked()
	_, err = q.Exec(ctx, `
		INSERT INTO documents (id, data, vals) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data, vals = EXCLUDED.vals, updated_at = now()`,
		int64(id), blob(doc.Data), vals)
	if err != nil {
		return fmt.Errorf("pgstore: replace: %w", err)
	}

	_, err = q.Exec(ctx, `
		SELECT setval(pg_get_serial_sequence('documents', 'id'),
			GREATEST($1, (SELECT last_value FROM documents_id_seq)))`,
		int64(id))
	if err != nil {
		return fmt.Errorf("pgstore: advance id sequence: %w", err)
	}
	return nil
}

// Document reads a document through the session connection when one is
// held, otherwise through the pool.
func (s *Store) Document(id docdb.DocID) (docdb.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.opContext()
	defer cancel()

	var (
		doc  docdb.Document
		vals []byte
	)
	err := s.querierLocked().QueryRow(ctx,
		"SELECT data, vals FROM documents WHERE id = $1", int64(id),
	).Scan(&doc.Data, &vals)
	if errors.Is(err, pgx.ErrNoRows) {
		return docdb.Document{}, notFound(id)
	}
	if err != nil {
		return docdb.Document{}, fmt.Errorf("pgstore: get: %w", err)
	}

	if len(vals) > 0 {
		if err := json.Unmarshal(vals, &doc.Values); err != nil {
			return docdb.Document{}, fmt.Errorf("pgstore: unmarshal values: %w", err)
		}
	}
	return doc, nil
}

// DocCount returns the number of stored documents.
func (s *Store) DocCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.opContext()
	defer cancel()

	var n int64
	if err := s.querierLocked().QueryRow(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("pgstore: count: %w", err)
	}
	return int(n), nil
}

func encodeValues(values map[string]string) ([]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("pgstore: marshal values: %w", err)
	}
	return data, nil
}

func blob(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	return data
}

func notFound(id docdb.DocID) error {
	return fmt.Errorf("pgstore: document %d: %w", id, docdb.ErrDocNotFound)
}
