package vault

import (
	"errors"
	"fmt"
)

// Common errors returned by the vault packages.
var (
	// ErrNotFound is returned when a record does not exist locally or remotely.
	ErrNotFound = errors.New("record not found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrOffline is returned when a remote operation is attempted without a
	// configured remote queue.
	ErrOffline = errors.New("operation unavailable in offline mode")

	// ErrMalformedRecord is returned when a remote record lacks a required field.
	ErrMalformedRecord = errors.New("malformed remote record")

	// ErrCycleInProgress is returned when a cycle is requested while another
	// one still holds the engine.
	ErrCycleInProgress = errors.New("sync cycle already in progress")
)

// ErrorKind classifies sync failures so callers can decide between
// aborting, skipping and retrying without inspecting messages.
type ErrorKind int

const (
	// KindUnknown is reported for errors that carry no classification.
	KindUnknown ErrorKind = iota
	// KindConnection: remote unreachable, unauthorized or misconfigured.
	// Aborts the current cycle when raised by the fetch stage.
	KindConnection
	// KindMalformedRecord: a required field is missing. The record is skipped
	// and left untouched remotely.
	KindMalformedRecord
	// KindArtifactWrite: the artifact file could not be produced.
	KindArtifactWrite
	// KindLocalPersist: the local store rejected the row. The artifact may be orphaned.
	KindLocalPersist
	// KindRemoteDelete: acknowledging the record remotely failed after it was
	// persisted. Logged only.
	KindRemoteDelete
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindMalformedRecord:
		return "malformed_record"
	case KindArtifactWrite:
		return "artifact_write"
	case KindLocalPersist:
		return "local_persist"
	case KindRemoteDelete:
		return "remote_delete"
	default:
		return "unknown"
	}
}

// ValidationError is returned when configuration validation fails.
// Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// SyncError is returned when a sync stage fails with details.
// Extractable via errors.As(). Supports Unwrap().
type SyncError struct {
	Kind       ErrorKind
	Operation  string
	RemoteID   string
	StatusCode int
	Err        error
}

func (e *SyncError) Error() string {
	msg := fmt.Sprintf("sync: %s failed", e.Operation)
	if e.RemoteID != "" {
		msg += fmt.Sprintf(" for %s", e.RemoteID)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("%s [%s]: %v", msg, e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// KindOf returns the classification of err, or KindUnknown when err does not
// wrap a *SyncError.
func KindOf(err error) ErrorKind {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Kind
	}
	if errors.Is(err, ErrMalformedRecord) {
		return KindMalformedRecord
	}
	return KindUnknown
}

// NewConnectionError wraps err as a KindConnection failure of op.
func NewConnectionError(op string, statusCode int, err error) *SyncError {
	return &SyncError{Kind: KindConnection, Operation: op, StatusCode: statusCode, Err: err}
}

func recordError(kind ErrorKind, op, remoteID string, err error) *SyncError {
	return &SyncError{Kind: kind, Operation: op, RemoteID: remoteID, Err: err}
}
