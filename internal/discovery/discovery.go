// Package discovery walks validated manifest targets and produces the flat
// work list the upload pool consumes. Discovery has no side effects beyond
// stat calls, and it is idempotent: files already bearing the archive-marker
// suffix are never selected again.
package discovery

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/coldvault/internal/logging"
	"github.com/dmitrijs2005/coldvault/internal/manifest"
)

// fileStat is a hook for tests.
var fileStat = os.Stat

// FileTask is one file to upload. Created here, consumed exactly once by a
// single upload worker, never mutated.
type FileTask struct {
	Path      string
	Size      int64
	ModTime   time.Time
	SourceDir string
}

// Scanner enumerates eligible files under manifest entries.
type Scanner struct {
	excludeExts   map[string]bool
	archiveSuffix string
	maxFileSize   int64
	log           logging.Logger
}

func NewScanner(excludeExtensions []string, archiveSuffix string, maxFileSize int64, log logging.Logger) *Scanner {
	exts := make(map[string]bool, len(excludeExtensions))
	for _, e := range excludeExtensions {
		exts[strings.ToLower(e)] = true
	}
	return &Scanner{
		excludeExts:   exts,
		archiveSuffix: archiveSuffix,
		maxFileSize:   maxFileSize,
		log:           log,
	}
}

// Collect walks every entry and returns the eligible files. A directory that
// cannot be walked (permissions, vanished path) is logged and skipped;
// collection continues with the remaining entries.
func (s *Scanner) Collect(ctx context.Context, entries []manifest.Entry) []FileTask {
	var tasks []FileTask

	for _, entry := range entries {
		switch entry.Mode {
		case manifest.ModeFile:
			if task, ok := s.examine(ctx, entry.Path, filepath.Dir(entry.Path)); ok {
				tasks = append(tasks, task)
			}
		case manifest.ModeDirectory:
			found := s.walkDir(ctx, entry.Path)
			s.log.Info(ctx, "directory scanned", "dir", entry.Path, "files", len(found))
			tasks = append(tasks, found...)
		}
	}

	return tasks
}

func (s *Scanner) walkDir(ctx context.Context, dir string) []FileTask {
	var tasks []FileTask

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Root error aborts this directory; a subtree error skips it.
			s.log.Warn(ctx, "walk error, skipping", "path", path, "err", err)
			if d == nil {
				return err
			}
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if task, ok := s.examine(ctx, path, dir); ok {
			tasks = append(tasks, task)
		}
		return nil
	})
	if err != nil {
		s.log.Error(ctx, "directory skipped", "dir", dir, "err", err)
	}

	return tasks
}

// examine applies the eligibility filters to one file and stats it.
func (s *Scanner) examine(ctx context.Context, path, sourceDir string) (FileTask, bool) {
	name := filepath.Base(path)

	if strings.HasSuffix(name, s.archiveSuffix) {
		s.log.Debug(ctx, "already archived, skipping", "path", path)
		return FileTask{}, false
	}
	if s.excludeExts[strings.ToLower(filepath.Ext(name))] {
		return FileTask{}, false
	}

	info, err := fileStat(path)
	if err != nil {
		s.log.Warn(ctx, "stat failed, skipping", "path", path, "err", err)
		return FileTask{}, false
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		s.log.Debug(ctx, "over size ceiling, skipping", "path", path, "size", info.Size())
		return FileTask{}, false
	}

	return FileTask{
		Path:      path,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		SourceDir: sourceDir,
	}, true
}
