package uploader

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/coldvault/internal/format"
)

// eventKind tags a progress event from an upload worker.
type eventKind int

const (
	eventStarted eventKind = iota
	eventSucceeded
	eventFailed
)

type progressEvent struct {
	kind    eventKind
	path    string
	size    int64
	elapsed time.Duration
}

// Tally is the final upload accounting returned to the caller.
type Tally struct {
	Total     int
	Succeeded int
	Failed    int
	Bytes     int64
	Elapsed   time.Duration
}

// progressTracker renders upload progress. Workers never touch it directly:
// they publish events on a channel and a single goroutine owns every counter
// and the display line, so no mutex is needed around the read-modify-write
// of counts and rendering.
type progressTracker struct {
	out        io.Writer
	totalFiles int
	totalBytes int64

	processed  int
	succeeded  int
	failed     int
	doneBytes  int64
	inFlight   int
	started    time.Time
	lastRender time.Time
}

// renderInterval throttles the progress line.
const renderInterval = 500 * time.Millisecond

func newProgressTracker(out io.Writer, totalFiles int, totalBytes int64) *progressTracker {
	return &progressTracker{
		out:        out,
		totalFiles: totalFiles,
		totalBytes: totalBytes,
		started:    time.Now(),
	}
}

// run consumes events until the channel closes, then prints the final line.
// It is the only goroutine that writes to out.
func (p *progressTracker) run(events <-chan progressEvent) Tally {
	for ev := range events {
		switch ev.kind {
		case eventStarted:
			p.inFlight++
		case eventSucceeded:
			p.inFlight--
			p.processed++
			p.succeeded++
			p.doneBytes += ev.size
		case eventFailed:
			p.inFlight--
			p.processed++
			p.failed++
		}

		if now := time.Now(); now.Sub(p.lastRender) >= renderInterval {
			p.render()
			p.lastRender = now
		}
	}

	p.render()
	fmt.Fprintln(p.out)

	return Tally{
		Total:     p.totalFiles,
		Succeeded: p.succeeded,
		Failed:    p.failed,
		Bytes:     p.doneBytes,
		Elapsed:   time.Since(p.started),
	}
}

func (p *progressTracker) render() {
	filePct := 0.0
	if p.totalFiles > 0 {
		filePct = float64(p.processed) / float64(p.totalFiles) * 100
	}
	sizePct := 0.0
	if p.totalBytes > 0 {
		sizePct = float64(p.doneBytes) / float64(p.totalBytes) * 100
	}

	elapsed := time.Since(p.started)
	speed := 0.0
	if s := elapsed.Seconds(); s > 0 {
		speed = float64(p.doneBytes) / s
	}

	fmt.Fprintf(p.out, "\r%s %d/%d (%.1f%%|%.1f%%) [%d in flight] ok:%d fail:%d %s",
		progressBar(filePct, 20), p.processed, p.totalFiles, filePct, sizePct,
		p.inFlight, p.succeeded, p.failed, format.Speed(speed))
}

func progressBar(pct float64, width int) string {
	filled := int(float64(width) * pct / 100)
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}
