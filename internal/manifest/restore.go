package manifest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ParseRestore reads a restore manifest. Lines carry two or three columns:
//
//	source_path, destination_directory[, mode]
//
// When the mode column is omitted it is inferred from the source path: a
// trailing separator means a directory restore, otherwise a single file.
func ParseRestore(path string) ([]RestoreEntry, []ErrorItem, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}

	var entries []RestoreEntry
	var errs []ErrorItem

	for i, raw := range lines {
		lineNum := i + 1
		line := strings.TrimSpace(raw)

		if line == "" {
			continue
		}
		if i == 0 && isHeaderLine(line) {
			continue
		}

		row, err := csv.NewReader(strings.NewReader(line)).Read()
		if err != nil {
			errs = append(errs, ErrorItem{lineNum, line, "malformed CSV line: " + err.Error(), raw})
			continue
		}
		for j := range row {
			row[j] = strings.TrimSpace(row[j])
		}

		var source, dest string
		var mode Mode
		switch len(row) {
		case 2:
			source, dest = row[0], row[1]
			if strings.HasSuffix(source, `\`) || strings.HasSuffix(source, "/") {
				mode = ModeDirectory
			} else {
				mode = ModeFile
			}
		case 3:
			source, dest = row[0], row[1]
			mode = Mode(strings.ToLower(row[2]))
			if mode != ModeFile && mode != ModeDirectory {
				errs = append(errs, ErrorItem{lineNum, line, fmt.Sprintf("invalid restore mode %q (want file or directory)", row[2]), raw})
				continue
			}
		default:
			errs = append(errs, ErrorItem{lineNum, line, fmt.Sprintf("wrong column count %d (want 2 or 3)", len(row)), raw})
			continue
		}

		if reason := checkRestoreRequest(source, dest); reason != "" {
			errs = append(errs, ErrorItem{lineNum, line, reason, raw})
			continue
		}

		entries = append(entries, RestoreEntry{
			LineNumber: lineNum,
			SourcePath: source,
			DestDir:    dest,
			Mode:       mode,
		})
	}

	return entries, errs, nil
}

// checkRestoreRequest validates the source path syntactically and the
// destination directory for existence and writability. The source path is
// not expected to exist locally: it names a file that was archived away.
func checkRestoreRequest(source, dest string) string {
	if source == "" {
		return "source path is empty"
	}
	if len(source) > maxPathLength {
		return "source path exceeds the 260 character limit"
	}
	if dest == "" {
		return "destination directory is empty"
	}

	info, err := os.Stat(dest)
	if os.IsNotExist(err) {
		return "destination directory does not exist"
	}
	if err != nil {
		return "destination directory is not accessible: " + err.Error()
	}
	if !info.IsDir() {
		return "destination is not a directory"
	}

	// Probe writability directly; permission bits alone do not answer this
	// on SMB mounts.
	probe, err := os.CreateTemp(dest, ".coldvault-probe-*")
	if err != nil {
		return "destination directory is not writable"
	}
	name := probe.Name()
	probe.Close()
	os.Remove(filepath.Clean(name))
	return ""
}
