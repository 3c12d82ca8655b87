// Package provenance persists and queries the archive_history table: one
// durable record per archived file, written in a single transaction per run
// and queried by exact path or normalized path prefix at restore time.
package provenance

import "context"

type Repository interface {
	// InsertBatch writes all records in one transaction and reports how
	// many rows were actually inserted. Paths already present are skipped,
	// never overwritten: a file is archived once.
	InsertBatch(ctx context.Context, records []ArchiveRecord) (int, error)

	// FindByPath returns records matching an original path exactly.
	FindByPath(ctx context.Context, path string) ([]ArchiveRecord, error)

	// FindByPrefix returns records whose original path lies under the given
	// directory prefix, tolerating separator-normalization drift between
	// archive time and restore time.
	FindByPrefix(ctx context.Context, prefix string) ([]ArchiveRecord, error)
}
