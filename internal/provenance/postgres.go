package provenance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/coldvault/internal/dbx"
	"github.com/dmitrijs2005/coldvault/internal/provenance/migrations"
)

// PostgresRepository implements Repository over PostgreSQL via the pgx
// stdlib driver.
type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// Open connects, verifies the connection, and brings the schema up to date.
func Open(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// InsertBatch writes all records inside one transaction. ON CONFLICT DO
// NOTHING enforces archive-once at the application boundary: a path that is
// already recorded keeps its original row.
func (r *PostgresRepository) InsertBatch(ctx context.Context, records []ArchiveRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO archive_history (
			request_id, requester, request_date,
			original_file_path, s3_path, archive_date, file_size
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (original_file_path) DO NOTHING;
	`

	inserted := 0
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, rec := range records {
			res, err := tx.ExecContext(ctx, query,
				rec.RequestID, rec.Requester, rec.RequestDate,
				rec.OriginalPath, rec.S3Path, rec.ArchiveDate, rec.FileSize)
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected error: %w", err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

const selectColumns = `SELECT request_id, requester, request_date,
	original_file_path, s3_path, archive_date, file_size FROM archive_history`

func (r *PostgresRepository) FindByPath(ctx context.Context, path string) ([]ArchiveRecord, error) {
	return r.query(ctx, selectColumns+` WHERE original_file_path = $1`, path)
}

// FindByPrefix resolves a directory restore. The prefix is normalized to the
// backslash convention the archiver records, then matched with a single
// escaped LIKE pattern: first with the trailing separator, then without it,
// and as a last resort by a substring match on the trailing path segment to
// tolerate separator drift between archive and restore time.
func (r *PostgresRepository) FindByPrefix(ctx context.Context, prefix string) ([]ArchiveRecord, error) {
	normalized := strings.TrimRight(strings.ReplaceAll(prefix, "/", `\`), `\`)
	if normalized == "" {
		return nil, nil
	}

	patterns := []string{
		escapeLike(normalized+`\`) + "%",
		escapeLike(normalized) + "%",
	}
	if seg := lastSegment(normalized); seg != "" {
		patterns = append(patterns, "%"+escapeLike(`\`+seg+`\`)+"%")
	}

	for _, pattern := range patterns {
		records, err := r.query(ctx,
			selectColumns+` WHERE original_file_path LIKE $1 ESCAPE '\' ORDER BY original_file_path`,
			pattern)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			return dedupeByPath(records), nil
		}
	}
	return nil, nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]ArchiveRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select archive records: %w", err)
	}
	defer rows.Close()

	var result []ArchiveRecord
	for rows.Next() {
		var rec ArchiveRecord
		if err := rows.Scan(
			&rec.RequestID, &rec.Requester, &rec.RequestDate,
			&rec.OriginalPath, &rec.S3Path, &rec.ArchiveDate, &rec.FileSize,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// escapeLike protects LIKE metacharacters and the backslash separators that
// saturate archived Windows paths.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func lastSegment(normalized string) string {
	parts := strings.Split(normalized, `\`)
	for i := len(parts) - 1; i >= 0; i-- {
		if strings.TrimSpace(parts[i]) != "" {
			return parts[i]
		}
	}
	return ""
}

func dedupeByPath(records []ArchiveRecord) []ArchiveRecord {
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for _, rec := range records {
		if seen[rec.OriginalPath] {
			continue
		}
		seen[rec.OriginalPath] = true
		out = append(out, rec)
	}
	return out
}
