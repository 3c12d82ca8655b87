package objstore

import (
	"errors"
	"fmt"
	"os"

	"github.com/aws/smithy-go"
)

// Typed error taxonomy for the storage boundary. Callers branch with
// errors.Is instead of inspecting message text; anything not matching one of
// these sentinels is treated as transient and is safe to retry.
var (
	// ErrNotFound covers missing local files and missing objects/buckets.
	ErrNotFound = errors.New("not found")

	// ErrPermission covers local and remote access denials.
	ErrPermission = errors.New("permission denied")

	// ErrInvalidState means the object is not in an archive storage class,
	// so a restore request can never succeed.
	ErrInvalidState = errors.New("invalid object state")

	// ErrAlreadyInProgress is returned by Restore when a thaw for the same
	// object is already running. Callers treat it as success.
	ErrAlreadyInProgress = errors.New("restore already in progress")
)

// IsPermanent reports whether err can never be fixed by retrying.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPermission) ||
		errors.Is(err, ErrInvalidState)
}

// classify maps SDK and filesystem failures onto the sentinel taxonomy.
// Unmapped errors pass through unchanged and count as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if os.IsPermission(err) {
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case "AccessDenied":
			return fmt.Errorf("%w: %v", ErrPermission, err)
		case "InvalidObjectState":
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		case "RestoreAlreadyInProgress":
			return fmt.Errorf("%w: %v", ErrAlreadyInProgress, err)
		}
	}
	return err
}
