package models

import "fmt"

// AuthError means the catalog rejected our credentials. Fatal: nothing can
// proceed without catalog access.
type AuthError struct {
	URL    string
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("catalog rejected credentials (status %d): %s", e.Status, e.URL)
}

// FeedFormatError means the feed could not be parsed into the expected entry
// shape. Fatal: the run cannot trust any downstream entries.
type FeedFormatError struct {
	URL    string
	Reason string
	Err    error
}

func (e *FeedFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed feed %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed feed %s: %s", e.URL, e.Reason)
}

func (e *FeedFormatError) Unwrap() error { return e.Err }

// TransportError wraps a network-level failure. Never retried internally;
// fatal at the feed level, per-action during downloads.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CollisionError means a download's destination path already exists (or was
// claimed by another action this run). Signals a local/catalog inconsistency;
// the action is skipped and reported.
type CollisionError struct {
	Path string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("destination already exists: %s", e.Path)
}
