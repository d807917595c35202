package pgstore

import "context"

// migrate creates the necessary database tables
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id BIGSERIAL PRIMARY KEY,
		data BYTEA NOT NULL,
		vals JSONB,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}
