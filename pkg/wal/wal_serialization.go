package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// entryOverhead is the fixed size of an entry without its payload:
// [LSN:8][OpType:1][DataLen:4] ... [Checksum:4][Timestamp:8]
const entryOverhead = 8 + 1 + 4 + 4 + 8

// maxEntrySize bounds a single stored payload so a corrupt length field
// cannot trigger a huge allocation during recovery.
const maxEntrySize = 64 << 20

// writeEntry writes a single entry with its stored payload.
// Format: [LSN:8][OpType:1][DataLen:4][Data:N][Checksum:4][Timestamp:8]
func writeEntry(w *bufio.Writer, lsn uint64, opType OpType, stored []byte, timestamp int64) error {
	var header [13]byte
	binary.LittleEndian.PutUint64(header[0:8], lsn)
	header[8] = byte(opType)
	binary.LittleEndian.PutUint32(header[9:13], uint32(len(stored)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	if _, err := w.Write(stored); err != nil {
		return err
	}

	var trailer [12]byte
	binary.LittleEndian.PutUint32(trailer[0:4], crc32.ChecksumIEEE(stored))
	binary.LittleEndian.PutUint64(trailer[4:12], uint64(timestamp))
	_, err := w.Write(trailer[:])
	return err
}

// readEntry reads a single entry and returns it with its stored payload.
// io.EOF is returned only at a clean entry boundary.
func readEntry(r *bufio.Reader) (*Entry, []byte, error) {
	var header [13]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, nil, fmt.Errorf("truncated entry header: %w", err)
		}
		return nil, nil, err
	}

	entry := &Entry{
		LSN:    binary.LittleEndian.Uint64(header[0:8]),
		OpType: OpType(header[8]),
	}

	dataLen := binary.LittleEndian.Uint32(header[9:13])
	if dataLen > maxEntrySize {
		return nil, nil, fmt.Errorf("entry LSN=%d claims %d bytes", entry.LSN, dataLen)
	}

	stored := make([]byte, dataLen)
	if _, err := io.ReadFull(r, stored); err != nil {
		return nil, nil, fmt.Errorf("truncated entry LSN=%d: %w", entry.LSN, err)
	}

	var trailer [12]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, nil, fmt.Errorf("truncated entry LSN=%d: %w", entry.LSN, err)
	}
	entry.Checksum = binary.LittleEndian.Uint32(trailer[0:4])
	entry.Timestamp = int64(binary.LittleEndian.Uint64(trailer[4:12]))

	if crc32.ChecksumIEEE(stored) != entry.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch at LSN %d", entry.LSN)
	}

	return entry, stored, nil
}
