// Package restore implements the two-phase restore orchestrator: a request
// phase that resolves archived files and asks cold storage to thaw them, and
// a poll/download phase invoked hours or days later that checks thaw state
// and places completed files. The phases share no process state; everything
// they need to resume crosses through a durable, request-id-scoped status
// document.
package restore

import (
	"time"

	"github.com/dmitrijs2005/coldvault/internal/manifest"
)

// Status is the thaw state of one item.
//
// Lifecycle: pending → requested|already_in_progress → {pending|in_progress}
// → completed. failed, check_failed and unknown are reachable from any
// non-terminal state; completed and failed are terminal.
type Status string

const (
	StatusPending           Status = "pending"
	StatusRequested         Status = "requested"
	StatusAlreadyInProgress Status = "already_in_progress"
	StatusInProgress        Status = "in_progress"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusCheckFailed       Status = "check_failed"
	StatusUnknown           Status = "unknown"
)

// pollable reports whether the poll phase should query this status again.
// check_failed and unknown stay pollable: a transient query error never
// abandons an item.
func (s Status) pollable() bool {
	switch s {
	case StatusRequested, StatusAlreadyInProgress, StatusPending,
		StatusInProgress, StatusCheckFailed, StatusUnknown:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Download outcomes, recorded separately from the thaw status so a completed
// item is downloaded exactly once across invocations.
const (
	DownloadDone    = "completed"
	DownloadSkipped = "skipped"
	DownloadFailed  = "failed"
)

// Item is one file inside a restore run. Items are created at request time
// and mutated in place across invocations; the status document is their only
// home between invocations.
type Item struct {
	OriginalPath string        `json:"original_path"`
	Bucket       string        `json:"bucket"`
	Key          string        `json:"key"`
	RelativePath string        `json:"relative_path"`
	DestDir      string        `json:"dest_dir"`
	Mode         manifest.Mode `json:"mode"`
	FileSize     int64         `json:"file_size"`

	Status Status `json:"restore_status"`
	Error  string `json:"error,omitempty"`

	RequestedAt *time.Time `json:"requested_at,omitempty"`
	CheckedAt   *time.Time `json:"checked_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Expiry      *time.Time `json:"restore_expiry,omitempty"`

	DownloadStatus  string     `json:"download_status,omitempty"`
	DownloadError   string     `json:"download_error,omitempty"`
	DestinationPath string     `json:"destination_path,omitempty"`
	DownloadedAt    *time.Time `json:"downloaded_at,omitempty"`
}
