package restore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/coldvault/internal/manifest"
	"github.com/dmitrijs2005/coldvault/internal/objstore"
)

// SchemaVersion is the current status-document layout. Documents written by
// earlier releases carry no schema_version field and are migrated on load.
const SchemaVersion = 1

// Document is the durable state of one restore run, keyed by request id. It
// is the only thing the request and download phases share.
type Document struct {
	SchemaVersion int       `json:"schema_version"`
	RequestID     string    `json:"request_id"`
	RequestDate   time.Time `json:"request_date"`
	TotalRequests int       `json:"total_requests"`
	Items         []*Item   `json:"items"`
}

// DocStore reads and writes status documents under a state directory, one
// file per request id.
type DocStore struct {
	dir string
}

func NewDocStore(dir string) *DocStore {
	return &DocStore{dir: dir}
}

func (s *DocStore) Path(requestID string) string {
	return filepath.Join(s.dir, "restore_status_"+sanitizeRequestID(requestID)+".json")
}

// Load reads the document for requestID, migrating legacy layouts in memory.
// A missing file is an error: the download phase must not invent state.
func (s *DocStore) Load(requestID string) (*Document, error) {
	path := s.Path(requestID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read status document %s: %w", path, err)
	}

	var probe struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse status document %s: %w", path, err)
	}

	switch probe.SchemaVersion {
	case SchemaVersion:
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse status document %s: %w", path, err)
		}
		return &doc, nil
	case 0:
		doc, err := migrateLegacy(data)
		if err != nil {
			return nil, fmt.Errorf("migrate status document %s: %w", path, err)
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("status document %s has unsupported schema version %d", path, probe.SchemaVersion)
	}
}

// Save writes the document atomically: temp file in the same directory, then
// rename. A crash mid-write leaves the previous document intact.
func (s *DocStore) Save(doc *Document) error {
	doc.SchemaVersion = SchemaVersion

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status document: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".restore_status_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp status file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp status file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(doc.RequestID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace status document: %w", err)
	}
	return nil
}

func sanitizeRequestID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}

// Legacy layout (version 0): items nested per manifest row under
// restore_requests, with the full s3:// path inline instead of bucket and
// key fields.
type legacyDocument struct {
	RequestID       string          `json:"request_id"`
	RequestDate     time.Time       `json:"request_date"`
	TotalRequests   int             `json:"total_requests"`
	RestoreRequests []legacyRequest `json:"restore_requests"`
}

type legacyRequest struct {
	SourcePath  string       `json:"source_path"`
	Destination string       `json:"destination"`
	Mode        string       `json:"mode"`
	FilesFound  []legacyFile `json:"files_found"`
}

type legacyFile struct {
	OriginalFilePath string     `json:"original_file_path"`
	S3Path           string     `json:"s3_path"`
	FileSize         int64      `json:"file_size"`
	RestoreStatus    string     `json:"restore_status"`
	Error            string     `json:"error"`
	RequestedAt      *time.Time `json:"requested_at"`
	DownloadStatus   string     `json:"download_status"`
	DestinationPath  string     `json:"destination_path"`
}

func migrateLegacy(data []byte) (*Document, error) {
	var legacy legacyDocument
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, err
	}
	if legacy.RequestID == "" {
		return nil, fmt.Errorf("missing request_id")
	}

	doc := &Document{
		SchemaVersion: SchemaVersion,
		RequestID:     legacy.RequestID,
		RequestDate:   legacy.RequestDate,
		TotalRequests: legacy.TotalRequests,
	}

	for _, req := range legacy.RestoreRequests {
		mode := manifest.Mode(req.Mode)
		if mode != manifest.ModeFile && mode != manifest.ModeDirectory {
			mode = manifest.ModeFile
		}
		for _, f := range req.FilesFound {
			// Legacy files_found entries are individual files; the request
			// mode only shapes the relative placement path.
			item := &Item{
				OriginalPath:    f.OriginalFilePath,
				RelativePath:    RelativePath(f.OriginalFilePath, req.SourcePath, mode),
				DestDir:         req.Destination,
				Mode:            manifest.ModeFile,
				FileSize:        f.FileSize,
				Status:          Status(f.RestoreStatus),
				Error:           f.Error,
				RequestedAt:     f.RequestedAt,
				DownloadStatus:  f.DownloadStatus,
				DestinationPath: f.DestinationPath,
			}
			if item.Status == "" {
				item.Status = StatusPending
			}
			if loc, err := objstore.ParseS3Path(f.S3Path); err == nil {
				item.Bucket = loc.Bucket
				item.Key = loc.Key
			} else {
				item.Status = StatusFailed
				item.Error = "unparseable s3 path: " + f.S3Path
			}
			doc.Items = append(doc.Items, item)
		}
	}
	return doc, nil
}
