package objstore

import (
	"net/http"
	"strings"
	"time"
)

// RestoreState is the thaw progress reported by HeadRestore.
type RestoreState int

const (
	// RestoreNotStarted: the object carries no restore header yet; the
	// request was accepted but has not begun.
	RestoreNotStarted RestoreState = iota

	// RestoreInProgress: ongoing-request="true".
	RestoreInProgress

	// RestoreReady: ongoing-request="false"; the bytes are downloadable.
	RestoreReady

	// RestoreStateUnknown: the header was present but unparseable.
	RestoreStateUnknown
)

// RestoreStatus carries the parsed x-amz-restore header. Expiry is zero
// unless the header included an expiry-date.
type RestoreStatus struct {
	State  RestoreState
	Expiry time.Time
	Raw    string
}

// parseRestoreHeader interprets the x-amz-restore header, e.g.
//
//	ongoing-request="true"
//	ongoing-request="false", expiry-date="Fri, 21 Dec 2012 00:00:00 GMT"
func parseRestoreHeader(header *string) RestoreStatus {
	if header == nil {
		return RestoreStatus{State: RestoreNotStarted}
	}
	h := *header

	status := RestoreStatus{State: RestoreStateUnknown, Raw: h}
	switch {
	case strings.Contains(h, `ongoing-request="true"`):
		status.State = RestoreInProgress
	case strings.Contains(h, `ongoing-request="false"`):
		status.State = RestoreReady
	}

	if _, after, ok := strings.Cut(h, `expiry-date="`); ok {
		if value, _, ok := strings.Cut(after, `"`); ok {
			if t, err := time.Parse(http.TimeFormat, value); err == nil {
				status.Expiry = t
			}
		}
	}
	return status
}
