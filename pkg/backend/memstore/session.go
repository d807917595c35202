package memstore

import (
	"fmt"
	"path/filepath"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
	"github.com/dd0wney/cluso-docdb/pkg/logging"
	"github.com/dd0wney/cluso-docdb/pkg/wal"
)

// OpenSession opens the WAL and rebuilds state from the snapshot and log.
func (s *Store) OpenSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionOpen {
		return fmt.Errorf("memstore: session already open")
	}

	if s.persistent() {
		if err := wal.EnsureDir(s.cfg.DataDir); err != nil {
			return fmt.Errorf("memstore: create data dir: %w", err)
		}
		if err := s.recoverLocked(); err != nil {
			return err
		}
	}

	s.sessionOpen = true
	s.logger.Debug("session opened", logging.Int("documents", len(s.docs)))
	return nil
}

func (s *Store) recoverLocked() error {
	snap, err := loadSnapshot(s.snapshotPath())
	if err != nil {
		return err
	}

	log, err := s.openWAL()
	if err != nil {
		return fmt.Errorf("memstore: open WAL: %w", err)
	}

	docs := snap.documents()
	last := snap.LastDocID
	res, err := replay(log, docs, &last, s.logger)
	if err != nil {
		_ = log.Close()
		return err
	}

	// Records appended after a dangling begin would be read as part of
	// that group on the next replay
	replayed := res.Records
	if res.OpenGroup > 0 {
		if err := log.Rewind(res.OpenGroup - 1); err != nil {
			_ = log.Close()
			return fmt.Errorf("memstore: drop uncommitted WAL group: %w", err)
		}
		replayed = int(res.OpenGroup - 1)
	}

	s.log = log
	s.docs = docs
	s.lastDocID = last
	s.sinceSnapshot = replayed
	s.logger.Info("recovered from disk",
		logging.Int("snapshot_documents", len(snap.Documents)),
		logging.Int("wal_records", replayed),
		logging.LSN(log.GetCurrentLSN()),
	)
	return nil
}

// CloseSession discards any open transaction and closes the WAL.
func (s *Store) CloseSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sessionOpen {
		return nil
	}

	if s.txn != nil {
		s.logger.Debug("discarding transaction at session close",
			logging.Int("staged", len(s.txn.records)))
		s.txn = nil
	}
	s.sessionOpen = false
	return s.closeLogLocked()
}

// FlushSession makes committed mutations durable. Once enough records have
// accumulated it also writes a snapshot and truncates the WAL.
func (s *Store) FlushSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sessionOpen {
		return docdb.ErrSessionNotOpen
	}
	if s.log == nil {
		return nil
	}

	if err := s.log.Sync(); err != nil {
		return fmt.Errorf("memstore: %w", err)
	}

	threshold := s.cfg.SnapshotThreshold
	if threshold <= 0 || s.sinceSnapshot < threshold {
		return nil
	}
	return s.snapshotLocked()
}

// snapshotLocked persists committed documents and truncates the WAL. Staged
// transaction changes are not part of the snapshot.
func (s *Store) snapshotLocked() error {
	snap := newSnapshot(s.docs, s.lastDocID)
	if err := snap.write(s.snapshotPath()); err != nil {
		return err
	}
	if err := s.log.Truncate(); err != nil {
		return fmt.Errorf("memstore: %w", err)
	}

	s.logger.Info("snapshot written",
		logging.Int("documents", len(snap.Documents)),
		logging.Int("wal_records", s.sinceSnapshot),
		logging.Path(s.snapshotPath()),
	)
	s.sinceSnapshot = 0
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordSnapshot()
	}
	return nil
}

func (s *Store) snapshotPath() string {
	return filepath.Join(s.cfg.DataDir, snapshotFileName)
}
