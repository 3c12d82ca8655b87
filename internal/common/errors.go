// Package common defines shared sentinel errors used across ColdVault
// components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Fatal run-level conditions (unreadable manifest, nothing to do).
	ErrNoValidTargets = errors.New("no valid targets resolved")
)
