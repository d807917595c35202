package memstore

import (
	"fmt"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
	"github.com/dd0wney/cluso-docdb/pkg/logging"
	"github.com/dd0wney/cluso-docdb/pkg/wal"
)

// replayResult describes a finished replay. OpenGroup is the LSN of a begin
// record with no commit at the end of the log, or zero.
type replayResult struct {
	Records   int
	OpenGroup uint64
}

// replay applies WAL entries on top of docs. Entries between a begin and a
// commit record are applied only when the commit is present.
func replay(log wal.WALReader, docs map[docdb.DocID]docdb.Document, last *docdb.DocID, logger logging.Logger) (replayResult, error) {
	var (
		group     []*wal.Entry
		inGroup   bool
		count     int
		openGroup uint64
	)

	err := log.Replay(func(e *wal.Entry) error {
		count++
		switch e.OpType {
		case wal.OpBegin:
			if inGroup && len(group) > 0 {
				logger.Warn("discarding uncommitted WAL group", logging.Int("records", len(group)))
			}
			group = group[:0]
			inGroup = true
			openGroup = e.LSN
			return nil
		case wal.OpCommit:
			for _, g := range group {
				if err := applyEntry(g, docs, last); err != nil {
					return err
				}
			}
			group = group[:0]
			inGroup = false
			openGroup = 0
			return nil
		}

		if inGroup {
			group = append(group, e)
			return nil
		}
		return applyEntry(e, docs, last)
	})
	if err != nil {
		return replayResult{Records: count}, fmt.Errorf("memstore: replay: %w", err)
	}

	if inGroup {
		logger.Warn("discarding uncommitted WAL group at end of log",
			logging.Int("records", len(group)),
			logging.LSN(openGroup),
		)
	}
	return replayResult{Records: count, OpenGroup: openGroup}, nil
}

// applyEntry is idempotent so a log replayed over a newer snapshot converges.
func applyEntry(e *wal.Entry, docs map[docdb.DocID]docdb.Document, last *docdb.DocID) error {
	rec, err := decodeRecord(e)
	if err != nil {
		return err
	}

	switch e.OpType {
	case wal.OpAddDocument, wal.OpReplaceDocument:
		if rec.Doc == nil {
			return fmt.Errorf("memstore: WAL entry LSN=%d has no document", e.LSN)
		}
		docs[rec.ID] = *rec.Doc
		if rec.ID > *last {
			*last = rec.ID
		}
	case wal.OpDeleteDocument:
		delete(docs, rec.ID)
	default:
		return fmt.Errorf("memstore: unexpected WAL op %s at LSN=%d", e.OpType, e.LSN)
	}
	return nil
}
