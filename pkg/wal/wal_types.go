package wal

// OpType represents the type of operation in the WAL
type OpType uint8

const (
	OpAddDocument OpType = iota + 1
	OpReplaceDocument
	OpDeleteDocument
	// OpBegin and OpCommit bracket a transaction group. Replay applies a
	// group only when its OpCommit record is present.
	OpBegin
	OpCommit
)

func (o OpType) String() string {
	switch o {
	case OpAddDocument:
		return "add_document"
	case OpReplaceDocument:
		return "replace_document"
	case OpDeleteDocument:
		return "delete_document"
	case OpBegin:
		return "begin"
	case OpCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// Entry represents a single WAL entry. Data is always the decoded payload.
type Entry struct {
	LSN       uint64
	OpType    OpType
	Data      []byte
	Checksum  uint32 // CRC32 of the stored (possibly compressed) payload
	Timestamp int64

	end int64 // byte offset just past this entry in the log file
}

// Record is an entry waiting to be appended
type Record struct {
	OpType OpType
	Data   []byte
}

// Stats holds write statistics for a WAL
type Stats struct {
	TotalWrites  uint64
	BytesRaw     uint64
	BytesStored  uint64
	Compressed   bool
	SpaceSavings float64 // fraction of raw bytes saved by compression
}

const (
	walFileName           = "wal.log"
	compressedWALFileName = "wal_compressed.log"
)
