package objstore

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Locator addresses an object in storage.
type Locator struct {
	Bucket string
	Key    string
}

// String renders the locator in s3://bucket/key form, which is how the
// provenance store persists it.
func (l Locator) String() string {
	return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key)
}

// ParseS3Path splits an s3://bucket/key string back into a Locator.
func ParseS3Path(s string) (Locator, error) {
	trimmed := strings.TrimPrefix(s, "s3://")
	if trimmed == s || trimmed == "" {
		return Locator{}, fmt.Errorf("not an s3 path: %q", s)
	}
	bucket, key, ok := strings.Cut(trimmed, "/")
	if !ok || bucket == "" || key == "" {
		return Locator{}, fmt.Errorf("s3 path has no key: %q", s)
	}
	return Locator{Bucket: bucket, Key: key}, nil
}

// KeyForPath derives an object key deterministically from a source path so
// that re-archiving the same file always targets the same key.
//
//	\\server\share\dir\f.txt -> server/share/dir/f.txt
//	C:\dir\f.txt             -> local_c/dir/f.txt
//	anything else            -> other/<normalized>
//
// A path that normalizes to nothing falls back to a timestamped key under
// fallback/ so no upload is ever silently dropped.
func KeyForPath(path string, now time.Time) string {
	normalized := strings.ReplaceAll(path, `\`, "/")

	var key string
	switch {
	case strings.HasPrefix(normalized, "//"):
		server, rest, ok := strings.Cut(normalized[2:], "/")
		if server == "" {
			key = ""
		} else if !ok || rest == "" {
			key = server + "/root"
		} else {
			key = server + "/" + rest
		}
	case len(normalized) > 2 && normalized[1] == ':':
		drive := strings.ToLower(normalized[:1])
		key = "local_" + drive + "/" + strings.TrimPrefix(normalized[2:], "/")
	default:
		key = "other/" + normalized
	}

	// Collapse empty segments left by doubled or trailing separators.
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	clean := parts[:0]
	for _, p := range parts {
		if p != "" {
			clean = append(clean, p)
		}
	}
	key = strings.Join(clean, "/")

	if key == "" || key == "other" {
		return fmt.Sprintf("fallback/%s/%s", now.Format("20060102_150405"), filepath.Base(path))
	}
	return key
}
