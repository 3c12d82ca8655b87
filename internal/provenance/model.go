package provenance

import "time"

// ArchiveRecord is one row of archive_history: the durable mapping from an
// original file path to its object-storage locator. Append-only; it is the
// sole source restore uses to find archived bytes again.
type ArchiveRecord struct {
	RequestID    string
	Requester    string
	RequestDate  time.Time
	OriginalPath string
	S3Path       string
	ArchiveDate  time.Time
	FileSize     int64
}
