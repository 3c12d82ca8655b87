// Package manifest parses and validates the delimited input files that drive
// archive and restore runs, and writes the retry artifacts a failed run
// leaves behind.
//
// A manifest is UTF-8 text, optionally with a byte-order mark, one directive
// per line, with an optional header row. Validation never fails the whole
// parse because of a single bad line: bad lines become ErrorItems and the
// rest of the manifest is processed in order. Only an unreadable manifest
// file is an error.
package manifest

import "strings"

// Mode says whether a directive targets a single file or a directory tree.
type Mode string

const (
	ModeFile      Mode = "file"
	ModeDirectory Mode = "directory"
)

// Entry is one validated archive directive. Entries are immutable after
// parsing.
type Entry struct {
	LineNumber int
	Path       string
	Mode       Mode
}

// RestoreEntry is one validated restore directive: what to bring back and
// where to put it.
type RestoreEntry struct {
	LineNumber int
	SourcePath string
	DestDir    string
	Mode       Mode
}

// ErrorItem records a rejected manifest line together with a human-readable
// reason. ErrorItems are write-once and consumed by the retry-manifest and
// error-report writers.
type ErrorItem struct {
	LineNumber   int
	Content      string
	Reason       string
	OriginalLine string
}

// maxPathLength is the classic Windows MAX_PATH ceiling; the file server
// namespace this tool archives cannot hold longer paths.
const maxPathLength = 260

// minPathLength rejects fragments that cannot be a real absolute path.
const minPathLength = 3

// isHeaderLine reports whether the first manifest line is a column header
// rather than a directive.
func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	for _, keyword := range []string{"directory", "path", "restore"} {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// checkPathSyntax validates characters and length only; it does not touch
// the filesystem. Returns an empty string when the path is acceptable.
func checkPathSyntax(path string) string {
	if len(path) < minPathLength {
		return "path is too short"
	}
	if len(path) > maxPathLength {
		return "path exceeds the 260 character limit"
	}

	// The UNC \\server prefix and a drive colon are legal; everything else
	// from the Windows reserved set is not.
	check := path
	if strings.HasPrefix(check, `\\`) {
		check = check[2:]
	} else if len(check) >= 2 && check[1] == ':' {
		check = check[:1] + check[2:]
	}
	if i := strings.IndexAny(check, `<>:"|?*`); i >= 0 {
		return "path contains an illegal character: " + string(check[i])
	}
	return ""
}

// normalizePath produces the duplicate-detection key for a path: separators
// unified and case folded, since the source namespace is case-insensitive.
func normalizePath(path string) string {
	p := strings.ReplaceAll(path, "/", `\`)
	p = strings.TrimRight(p, `\`)
	return strings.ToLower(p)
}
