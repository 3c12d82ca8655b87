package manifest

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
)

// utf8BOM is prepended to generated manifests so they round-trip through the
// same spreadsheet tooling that produced the originals.
const utf8BOM = "\ufeff"

// WriteRetry writes a retry manifest in the archive single-column shape:
// a header row followed by the failed target paths, deduplicated and sorted.
// The output can be resubmitted to `coldvault archive` unchanged.
func WriteRetry(path string, header string, targets []string) error {
	if header == "" {
		header = "Directory Path"
	}

	uniq := make(map[string]bool, len(targets))
	var rows []string
	for _, t := range targets {
		if t == "" || uniq[t] {
			continue
		}
		uniq[t] = true
		rows = append(rows, t)
	}
	sort.Strings(rows)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create retry manifest: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{header}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{r}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteErrorReport writes the structured companion to a retry manifest:
// one row per rejected or failed line with the reason it was rejected.
func WriteErrorReport(path string, items []ErrorItem) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create error report: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"line_number", "content", "reason", "original_line"}); err != nil {
		return err
	}
	for _, item := range items {
		row := []string{fmt.Sprintf("%d", item.LineNumber), item.Content, item.Reason, item.OriginalLine}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
