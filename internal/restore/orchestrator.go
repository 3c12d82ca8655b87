package restore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/coldvault/internal/common"
	"github.com/dmitrijs2005/coldvault/internal/format"
	"github.com/dmitrijs2005/coldvault/internal/logging"
	"github.com/dmitrijs2005/coldvault/internal/manifest"
	"github.com/dmitrijs2005/coldvault/internal/objstore"
	"github.com/dmitrijs2005/coldvault/internal/provenance"
)

// Options carries the restore policy knobs pulled from configuration.
type Options struct {
	Tier         string
	Days         int32
	SkipExisting bool
	Overwrite    bool
	TempDir      string
	Retries      int
	Backoff      time.Duration
}

// Orchestrator drives both phases of a restore run against the provenance
// store and object storage, persisting progress through a DocStore after
// every phase so any invocation can crash and be re-run.
type Orchestrator struct {
	store objstore.Store
	repo  provenance.Repository
	docs  *DocStore
	opts  Options
	now   func() time.Time
	log   logging.Logger
}

func NewOrchestrator(store objstore.Store, repo provenance.Repository, docs *DocStore, opts Options, log logging.Logger) *Orchestrator {
	return &Orchestrator{
		store: store,
		repo:  repo,
		docs:  docs,
		opts:  opts,
		now:   time.Now,
		log:   log,
	}
}

// RequestSummary tallies the request phase.
type RequestSummary struct {
	Entries    int
	Resolved   int
	Unresolved int
	Requested  int
	InProgress int
	Failed     int
}

// RunRequest resolves each manifest entry against the provenance store,
// issues thaw requests for everything resolved, and persists the full item
// list, unresolved entries included, so the audit trail of what could not be
// found survives in the status document. Returns ErrNoValidTargets when not
// a single item could be resolved.
func (o *Orchestrator) RunRequest(ctx context.Context, entries []manifest.RestoreEntry, requestID string) (*Document, RequestSummary, error) {
	doc := &Document{
		SchemaVersion: SchemaVersion,
		RequestID:     requestID,
		RequestDate:   o.now().UTC(),
		TotalRequests: len(entries),
	}
	summary := RequestSummary{Entries: len(entries)}

	for _, entry := range entries {
		records, err := o.resolve(ctx, entry)
		if err != nil {
			// A lookup failure on one entry must not abandon the rest of the
			// manifest: record it as a failed item and keep resolving.
			summary.Failed++
			o.log.Error(ctx, "provenance lookup failed",
				"source", entry.SourcePath, "err", err)
			doc.Items = append(doc.Items, &Item{
				OriginalPath: entry.SourcePath,
				RelativePath: baseName(entry.SourcePath),
				DestDir:      entry.DestDir,
				Mode:         entry.Mode,
				Status:       StatusFailed,
				Error:        "provenance lookup: " + err.Error(),
			})
			continue
		}
		if len(records) == 0 {
			summary.Unresolved++
			o.log.Warn(ctx, "no archive history for restore entry",
				"source", entry.SourcePath, "mode", string(entry.Mode))
			doc.Items = append(doc.Items, &Item{
				OriginalPath: entry.SourcePath,
				RelativePath: baseName(entry.SourcePath),
				DestDir:      entry.DestDir,
				Mode:         entry.Mode,
				Status:       StatusFailed,
				Error:        "no archive history found",
			})
			continue
		}

		for _, rec := range records {
			// Resolved items are individual files even under a directory
			// entry, so a retry row built from one is a file row.
			item := &Item{
				OriginalPath: rec.OriginalPath,
				RelativePath: RelativePath(rec.OriginalPath, entry.SourcePath, entry.Mode),
				DestDir:      entry.DestDir,
				Mode:         manifest.ModeFile,
				FileSize:     rec.FileSize,
				Status:       StatusPending,
			}
			loc, err := objstore.ParseS3Path(rec.S3Path)
			if err != nil {
				item.Status = StatusFailed
				item.Error = "unparseable s3 path in archive history: " + rec.S3Path
				summary.Failed++
				doc.Items = append(doc.Items, item)
				continue
			}
			item.Bucket = loc.Bucket
			item.Key = loc.Key
			summary.Resolved++
			doc.Items = append(doc.Items, item)
		}
	}

	o.requestThaws(ctx, doc, &summary)

	if err := o.docs.Save(doc); err != nil {
		return nil, summary, err
	}

	if summary.Requested+summary.InProgress == 0 {
		return doc, summary, fmt.Errorf("%w: none of %d restore entries could be requested",
			common.ErrNoValidTargets, len(entries))
	}
	return doc, summary, nil
}

// requestThaws issues one restore request per pending item. A thaw that is
// already running counts as success; any other failure marks the item failed
// but never stops the loop.
func (o *Orchestrator) requestThaws(ctx context.Context, doc *Document, summary *RequestSummary) {
	for _, item := range doc.Items {
		if item.Status != StatusPending {
			continue
		}
		loc := objstore.Locator{Bucket: item.Bucket, Key: item.Key}
		now := o.now().UTC()

		err := o.store.Restore(ctx, loc, o.opts.Days, o.opts.Tier)
		switch {
		case err == nil:
			item.Status = StatusRequested
			item.RequestedAt = &now
			summary.Requested++
			o.log.Info(ctx, "restore requested", "key", loc.String(),
				"size", format.Bytes(item.FileSize), "tier", o.opts.Tier)
		case errors.Is(err, objstore.ErrAlreadyInProgress):
			item.Status = StatusAlreadyInProgress
			item.RequestedAt = &now
			summary.InProgress++
			o.log.Info(ctx, "restore already in progress", "key", loc.String())
		default:
			item.Status = StatusFailed
			item.Error = err.Error()
			summary.Failed++
			o.log.Error(ctx, "restore request failed", "key", loc.String(), "err", err)
		}
	}
}

// resolve looks an entry up by exact path for file mode and by prefix for
// directory mode.
func (o *Orchestrator) resolve(ctx context.Context, entry manifest.RestoreEntry) ([]provenance.ArchiveRecord, error) {
	if entry.Mode == manifest.ModeDirectory {
		return o.repo.FindByPrefix(ctx, entry.SourcePath)
	}
	return o.repo.FindByPath(ctx, entry.SourcePath)
}

// DownloadSummary tallies one poll/download invocation.
type DownloadSummary struct {
	Items      int
	Ready      int
	Waiting    int
	Downloaded int
	Skipped    int
	Failed     int
}

// Done reports whether nothing is left to wait for: every item is terminal
// and every completed item has a recorded download outcome.
func (s DownloadSummary) Done() bool {
	return s.Waiting == 0
}

// RunDownload is the resumable second phase: poll thaw state for every
// non-terminal item, then download whatever is ready and not yet placed.
// The document is persisted after both sub-phases, so repeated invocations
// converge without re-requesting thaws or re-downloading files.
func (o *Orchestrator) RunDownload(ctx context.Context, doc *Document) (DownloadSummary, error) {
	summary := DownloadSummary{Items: len(doc.Items)}

	for _, item := range doc.Items {
		if item.Status.pollable() {
			o.poll(ctx, item)
		}
	}
	if err := o.docs.Save(doc); err != nil {
		return summary, err
	}

	for _, item := range doc.Items {
		if item.Status == StatusCompleted && item.DownloadStatus == "" {
			o.download(ctx, item)
		}
	}
	if err := o.docs.Save(doc); err != nil {
		return summary, err
	}

	for _, item := range doc.Items {
		switch {
		case item.Status == StatusCompleted && item.DownloadStatus == DownloadDone:
			summary.Ready++
			summary.Downloaded++
		case item.Status == StatusCompleted && item.DownloadStatus == DownloadSkipped:
			summary.Ready++
			summary.Skipped++
		case item.Status == StatusCompleted && item.DownloadStatus == DownloadFailed:
			summary.Ready++
			summary.Failed++
		case item.Status == StatusFailed:
			summary.Failed++
		default:
			summary.Waiting++
		}
	}

	o.log.Info(ctx, "restore poll finished", "request_id", doc.RequestID,
		"items", summary.Items, "downloaded", summary.Downloaded,
		"skipped", summary.Skipped, "waiting", summary.Waiting, "failed", summary.Failed)
	return summary, nil
}

// poll transitions one item from the thaw state object storage reports.
// Query failures land in check_failed, which stays pollable; a missing or
// non-archived object is permanent.
func (o *Orchestrator) poll(ctx context.Context, item *Item) {
	loc := objstore.Locator{Bucket: item.Bucket, Key: item.Key}
	now := o.now().UTC()
	item.CheckedAt = &now

	status, err := o.store.HeadRestore(ctx, loc)
	if err != nil {
		if objstore.IsPermanent(err) {
			item.Status = StatusFailed
		} else {
			item.Status = StatusCheckFailed
		}
		item.Error = err.Error()
		o.log.Error(ctx, "restore status check failed", "key", loc.String(), "err", err)
		return
	}

	item.Error = ""
	switch status.State {
	case objstore.RestoreNotStarted:
		item.Status = StatusPending
	case objstore.RestoreInProgress:
		item.Status = StatusInProgress
	case objstore.RestoreReady:
		item.Status = StatusCompleted
		item.CompletedAt = &now
		if !status.Expiry.IsZero() {
			expiry := status.Expiry
			item.Expiry = &expiry
		}
		o.log.Info(ctx, "restore completed", "key", loc.String(), "expiry", status.Expiry)
	default:
		item.Status = StatusUnknown
		item.Error = "unparseable restore header: " + status.Raw
		o.log.Warn(ctx, "unparseable restore header", "key", loc.String(), "raw", status.Raw)
	}
}

// download places one thawed item: fetch into a temp file, then move it to
// its final path so a partially written file never appears at the
// destination under its real name.
func (o *Orchestrator) download(ctx context.Context, item *Item) {
	dest := placementPath(item.DestDir, item.RelativePath)
	item.DestinationPath = dest

	if _, err := os.Stat(dest); err == nil {
		if o.opts.SkipExisting && !o.opts.Overwrite {
			item.DownloadStatus = DownloadSkipped
			o.log.Info(ctx, "destination exists, skipping download", "dest", dest)
			return
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		item.DownloadStatus = DownloadFailed
		item.DownloadError = "create destination directory: " + err.Error()
		return
	}

	tmp := filepath.Join(o.opts.TempDir,
		fmt.Sprintf("%d_%s", o.now().UnixNano(), filepath.Base(dest)))
	loc := objstore.Locator{Bucket: item.Bucket, Key: item.Key}

	if err := o.downloadWithRetry(ctx, loc, tmp); err != nil {
		os.Remove(tmp)
		item.DownloadStatus = DownloadFailed
		item.DownloadError = err.Error()
		o.log.Error(ctx, "download failed", "key", loc.String(), "err", err)
		return
	}

	if err := moveFile(tmp, dest); err != nil {
		os.Remove(tmp)
		item.DownloadStatus = DownloadFailed
		item.DownloadError = "move into place: " + err.Error()
		o.log.Error(ctx, "placing downloaded file failed", "dest", dest, "err", err)
		return
	}

	now := o.now().UTC()
	item.DownloadStatus = DownloadDone
	item.DownloadedAt = &now
	o.log.Info(ctx, "downloaded", "key", loc.String(), "dest", dest,
		"size", format.Bytes(item.FileSize))
}

// downloadWithRetry mirrors the upload retry policy: bounded exponential
// backoff, permanent errors abort immediately.
func (o *Orchestrator) downloadWithRetry(ctx context.Context, loc objstore.Locator, localPath string) error {
	attempts := 0
	backoff := retry.WithMaxRetries(uint64(o.opts.Retries-1), retry.NewExponential(o.opts.Backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := o.store.Download(ctx, loc, localPath)
		if err == nil {
			return nil
		}
		if objstore.IsPermanent(err) {
			return err
		}
		o.log.Warn(ctx, "transient download failure, will retry",
			"key", loc.String(), "attempt", attempts, "max", o.opts.Retries, "err", err)
		return retry.RetryableError(err)
	})
	if err != nil && !objstore.IsPermanent(err) && attempts >= o.opts.Retries {
		return fmt.Errorf("retries exhausted after %d attempts: %w", attempts, err)
	}
	return err
}

// moveFile renames, falling back to copy-and-remove when the temp directory
// and the destination sit on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// RetryFailure is one row of the failed-restore retry artifact: enough to
// feed straight back into a new restore manifest, plus the stage and reason
// for the report. Mode is the mode the row carries on resubmission: file for
// resolved items, the original entry mode for entries that never resolved.
type RetryFailure struct {
	SourcePath string
	DestDir    string
	Mode       manifest.Mode
	Stage      string
	Reason     string
}

// Failures extracts the retryable failures from a document: items whose thaw
// failed, and items that thawed but could not be downloaded.
func Failures(doc *Document) []RetryFailure {
	var out []RetryFailure
	for _, item := range doc.Items {
		switch {
		case item.Status == StatusFailed:
			out = append(out, RetryFailure{
				SourcePath: item.OriginalPath,
				DestDir:    item.DestDir,
				Mode:       item.Mode,
				Stage:      "restore",
				Reason:     item.Error,
			})
		case item.DownloadStatus == DownloadFailed:
			out = append(out, RetryFailure{
				SourcePath: item.OriginalPath,
				DestDir:    item.DestDir,
				Mode:       item.Mode,
				Stage:      "download",
				Reason:     item.DownloadError,
			})
		}
	}
	return out
}
