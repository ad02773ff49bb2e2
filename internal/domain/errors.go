// Package domain contains the core entities of the timeline scheduler:
// lessons, the dense display sequence built from them, the per-owner
// timeline state and the wake-up events that keep it in sync with the clock.
// Nothing in here performs I/O.
package domain

import "errors"

// Common domain errors.
var (
	ErrEmptyInput        = errors.New("no lessons to order")
	ErrInvalidPeriod     = errors.New("lesson period must be positive")
	ErrInvalidClockTime  = errors.New("invalid clock time")
	ErrNoUsableDay       = errors.New("no usable day found")
	ErrAuth              = errors.New("authentication failed")
	ErrNetwork           = errors.New("network error")
	ErrRemoteFormat      = errors.New("unexpected remote timetable format")
	ErrStaleEvent        = errors.New("stale index event")
	ErrOwnerNotFound     = errors.New("owner not found")
	ErrAmbiguousOwner    = errors.New("owner query matches more than one owner")
	ErrNotAuthenticated  = errors.New("owner has no credentials")
	ErrInvalidTransition = errors.New("invalid timeline status transition")
	ErrSecretNotFound    = errors.New("secret not found")
	ErrEmptyLabel        = errors.New("owner label cannot be empty")
)
