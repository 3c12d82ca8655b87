package manifest

import (
	"fmt"
	"os"
	"strings"
)

// ParseArchive reads an archive manifest: one target path per line. Each
// valid line becomes an Entry whose Mode reflects what the path is on disk
// (a directory tree or a single file). Invalid lines become ErrorItems.
//
// Duplicate normalized paths are recorded as errors, not silently merged:
// a duplicated directory would archive its contents once and then report
// phantom "already archived" skips, which operators found confusing.
func ParseArchive(path string) ([]Entry, []ErrorItem, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}

	var entries []Entry
	var errs []ErrorItem
	seen := make(map[string]bool)

	for i, raw := range lines {
		lineNum := i + 1
		line := strings.TrimSpace(raw)

		if line == "" {
			continue
		}
		if i == 0 && isHeaderLine(line) {
			continue
		}

		if reason := checkPathSyntax(line); reason != "" {
			errs = append(errs, ErrorItem{lineNum, line, reason, raw})
			continue
		}

		key := normalizePath(line)
		if seen[key] {
			errs = append(errs, ErrorItem{lineNum, line, "duplicate path", raw})
			continue
		}
		seen[key] = true

		mode, reason := statTarget(line)
		if reason != "" {
			errs = append(errs, ErrorItem{lineNum, line, reason, raw})
			continue
		}

		entries = append(entries, Entry{LineNumber: lineNum, Path: line, Mode: mode})
	}

	return entries, errs, nil
}

// statTarget checks existence and readability and classifies the target.
func statTarget(path string) (Mode, string) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", "path does not exist"
	}
	if err != nil {
		return "", "path is not accessible: " + err.Error()
	}

	if info.IsDir() {
		f, err := os.Open(path)
		if err != nil {
			return "", "directory is not readable"
		}
		f.Close()
		return ModeDirectory, ""
	}

	f, err := os.Open(path)
	if err != nil {
		return "", "file is not readable"
	}
	f.Close()
	return ModeFile, ""
}

// readLines loads the whole manifest, strips an optional UTF-8 BOM and
// splits on newlines. Carriage returns are trimmed per line so manifests
// written on Windows parse identically.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines, nil
}
