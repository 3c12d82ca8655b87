// Package format holds small human-readable rendering helpers shared by the
// progress display and run summaries.
package format

import "fmt"

// Bytes renders a byte count in binary units (1.5 KB, 1.4 GB, ...).
func Bytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// Speed renders a transfer rate.
func Speed(bytesPerSecond float64) string {
	return Bytes(int64(bytesPerSecond)) + "/s"
}
