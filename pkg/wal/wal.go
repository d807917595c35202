package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dd0wney/cluso-docdb/pkg/logging"
	"github.com/dd0wney/cluso-docdb/pkg/metrics"
)

// WAL is a Write-Ahead Log for document mutations. Payloads are stored
// either raw or snappy-compressed depending on how the log was created.
type WAL struct {
	file       *FileRotator
	codec      codec
	path       string
	currentLSN uint64
	logger     logging.Logger
	metrics    *metrics.Registry
	stats      Stats
	// failed is set when a failed group could not be rewound. The log may
	// hold a partial group, so further appends are refused.
	failed error
	mu     sync.Mutex
}

// Option configures a WAL
type Option func(*WAL)

// WithLogger sets the logger used for recovery warnings
func WithLogger(logger logging.Logger) Option {
	return func(w *WAL) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMetrics records appended bytes in r
func WithMetrics(r *metrics.Registry) Option {
	return func(w *WAL) {
		w.metrics = r
	}
}

// NewWAL opens or creates an uncompressed WAL in dataDir
func NewWAL(dataDir string, opts ...Option) (*WAL, error) {
	return open(dataDir, walFileName, rawCodec{}, opts)
}

// NewCompressedWAL opens or creates a snappy-compressed WAL in dataDir
func NewCompressedWAL(dataDir string, opts ...Option) (*WAL, error) {
	return open(dataDir, compressedWALFileName, snappyCodec{}, opts)
}

func open(dataDir, name string, c codec, opts []Option) (*WAL, error) {
	if err := EnsureDir(dataDir); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	w := &WAL{
		codec:  c,
		path:   filepath.Join(dataDir, name),
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logging.Component("wal"), logging.Path(w.path))
	w.stats.Compressed = c.compressed()

	// Recover the LSN and cut off any torn tail before appending
	entries, validEnd, err := w.scan()
	if err != nil {
		return nil, fmt.Errorf("failed to recover WAL: %w", err)
	}
	if len(entries) > 0 {
		w.currentLSN = entries[len(entries)-1].LSN
	}
	if size, err := FileSize(w.path); err == nil && size > validEnd {
		w.logger.Warn("truncating corrupt WAL tail",
			logging.Int("entries_recovered", len(entries)),
			logging.Any("valid_bytes", validEnd),
			logging.Any("file_bytes", size),
		)
		if err := os.Truncate(w.path, validEnd); err != nil {
			return nil, fmt.Errorf("failed to truncate corrupt WAL tail: %w", err)
		}
	}

	w.file = NewFileRotator(w.path, 0)
	if err := w.file.Open(); err != nil {
		return nil, err
	}

	return w, nil
}

// Append buffers a new entry. It is durable once Sync returns.
func (w *WAL) Append(opType OpType, data []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.appendLocked(opType, data)
}

func (w *WAL) appendLocked(opType OpType, data []byte) (uint64, error) {
	if w.failed != nil {
		return 0, fmt.Errorf("WAL unusable: %w", w.failed)
	}
	if w.currentLSN == ^uint64(0) {
		return 0, errors.New("WAL LSN space exhausted - require WAL rotation")
	}

	stored := w.codec.encode(data)
	lsn := w.currentLSN + 1
	if err := writeEntry(w.file.Writer(), lsn, opType, stored, time.Now().Unix()); err != nil {
		return 0, fmt.Errorf("failed to write WAL entry: %w", err)
	}
	w.currentLSN = lsn

	w.stats.TotalWrites++
	w.stats.BytesRaw += uint64(len(data))
	w.stats.BytesStored += uint64(len(stored) + entryOverhead)
	if w.metrics != nil {
		w.metrics.RecordWALWrite(len(data), len(stored)+entryOverhead)
	}

	return lsn, nil
}

// AppendBatch writes all records and syncs once. On failure the log is cut
// back to where it was before the call, so no part of the group survives on
// disk or in the write buffer.
func (w *WAL) AppendBatch(records []Record) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(records) == 0 {
		return w.currentLSN, nil
	}

	// Entries appended earlier must not be lost if this group is discarded
	if err := w.file.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush WAL: %w", err)
	}

	startLSN := w.currentLSN
	var lsn uint64
	for _, rec := range records {
		var err error
		if lsn, err = w.appendLocked(rec.OpType, rec.Data); err != nil {
			return 0, w.abortBatchLocked(startLSN, err)
		}
	}

	if err := w.file.Sync(); err != nil {
		return 0, w.abortBatchLocked(startLSN, fmt.Errorf("failed to sync WAL: %w", err))
	}

	return lsn, nil
}

// abortBatchLocked removes a failed group. bufio may already have written
// part of it to the file, and a failed fsync leaves all of it there.
func (w *WAL) abortBatchLocked(startLSN uint64, cause error) error {
	if err := w.rewindLocked(startLSN); err != nil {
		w.failed = err
		w.logger.Error("failed to remove partial WAL group",
			logging.LSN(startLSN),
			logging.Error(err),
		)
		return errors.Join(cause, err)
	}
	return cause
}

// Rewind drops every entry with an LSN greater than lsn. Appends continue
// from lsn+1.
func (w *WAL) Rewind(lsn uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if lsn > w.currentLSN {
		return fmt.Errorf("cannot rewind WAL to LSN %d past current LSN %d", lsn, w.currentLSN)
	}
	if err := w.file.Flush(); err != nil {
		return fmt.Errorf("failed to flush WAL: %w", err)
	}
	if err := w.rewindLocked(lsn); err != nil {
		return err
	}
	w.failed = nil
	return nil
}

func (w *WAL) rewindLocked(lsn uint64) error {
	w.file.Writer().Reset(w.file.File())

	entries, _, err := w.scan()
	if err != nil {
		return fmt.Errorf("failed to scan WAL for rewind: %w", err)
	}

	var offset int64
	dropped := 0
	for _, e := range entries {
		if e.LSN > lsn {
			dropped++
			continue
		}
		offset = e.end
	}

	// The append handle is O_APPEND, so later writes land at the new end
	if err := TruncateFile(w.path, offset); err != nil {
		return fmt.Errorf("failed to rewind WAL: %w", err)
	}

	w.currentLSN = lsn
	w.logger.Warn("WAL rewound",
		logging.LSN(lsn),
		logging.Int("entries_dropped", dropped),
	)
	return nil
}

// Sync flushes buffered entries to disk
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL: %w", err)
	}
	return nil
}

// ReadAll returns every valid entry in the log. A corrupt or torn entry
// ends the read; entries before it are still returned.
func (w *WAL) ReadAll() ([]*Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Flush(); err != nil {
		return nil, err
	}

	entries, _, err := w.scan()
	return entries, err
}

// scan reads the log file from the start and returns the valid entries and
// the byte offset where they end.
func (w *WAL) scan() ([]*Entry, int64, error) {
	file, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	entries := make([]*Entry, 0)
	var offset int64

	for {
		entry, stored, err := readEntry(reader)
		if err == io.EOF {
			break
		}
		if err != nil {
			w.logger.Warn("WAL corruption detected, recovery stopped",
				logging.Int("entries_recovered", len(entries)),
				logging.Error(err),
			)
			break
		}

		data, err := w.codec.decode(stored)
		if err != nil {
			w.logger.Warn("WAL entry could not be decoded, recovery stopped",
				logging.LSN(entry.LSN),
				logging.Error(err),
			)
			break
		}
		entry.Data = data

		offset += int64(entryOverhead + len(stored))
		entry.end = offset
		entries = append(entries, entry)
	}

	return entries, offset, nil
}

// Replay replays WAL entries to reconstruct state
func (w *WAL) Replay(handler func(*Entry) error) error {
	entries, err := w.ReadAll()
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := handler(entry); err != nil {
			return fmt.Errorf("failed to replay entry LSN=%d: %w", entry.LSN, err)
		}
	}

	return nil
}

// Truncate empties the WAL (used after snapshot) and resets the LSN
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Rotate(); err != nil {
		return fmt.Errorf("failed to truncate WAL: %w", err)
	}
	w.currentLSN = 0
	return nil
}

// GetCurrentLSN returns the LSN of the last appended entry
func (w *WAL) GetCurrentLSN() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentLSN
}

// Path returns the log file path
func (w *WAL) Path() string {
	return w.path
}

// Statistics returns write statistics since the WAL was opened
func (w *WAL) Statistics() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := w.stats
	if stats.BytesRaw > 0 && stats.Compressed {
		stats.SpaceSavings = 1.0 - float64(stats.BytesStored)/float64(stats.BytesRaw)
	}
	return stats
}

// Close flushes, syncs and closes the WAL
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Close()
}
