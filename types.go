package vault

import (
	"fmt"
	"time"
)

// Defaults applied to optional producer fields that arrive empty.
const (
	DefaultSourceLabel = "Unknown"
	DefaultHeader      = "No Header"
)

// RemoteRecord is a producer-authored row read from the remote queue.
// ID and CreatedAt are required; the remaining fields are free text.
type RemoteRecord struct {
	ID          string `json:"id"`
	SourceLabel string `json:"source_label,omitempty"`
	Header      string `json:"header,omitempty"`
	Payload     string `json:"payload,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// Validate reports ErrMalformedRecord when a required field is missing.
func (r RemoteRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	if r.CreatedAt == "" {
		return fmt.Errorf("%w: missing created_at", ErrMalformedRecord)
	}
	return nil
}

// Label returns the source label, or DefaultSourceLabel when empty.
func (r RemoteRecord) Label() string {
	if r.SourceLabel == "" {
		return DefaultSourceLabel
	}
	return r.SourceLabel
}

// HeaderText returns the header, or DefaultHeader when empty.
func (r RemoteRecord) HeaderText() string {
	if r.Header == "" {
		return DefaultHeader
	}
	return r.Header
}

// SyncedRecord is a durable local row for a record drained from the queue.
type SyncedRecord struct {
	LocalID      int64     `json:"local_id"`
	RemoteID     string    `json:"remote_id"`
	SourceLabel  string    `json:"source_label"`
	Header       string    `json:"header"`
	Payload      string    `json:"payload"`
	CreatedAt    string    `json:"created_at"`
	ArtifactPath string    `json:"artifact_path"`
	SyncedAt     time.Time `json:"synced_at"`
}

// NewSyncedRecord builds the local row for r whose artifact lives at artifactPath.
func NewSyncedRecord(r RemoteRecord, artifactPath string) *SyncedRecord {
	return &SyncedRecord{
		RemoteID:     r.ID,
		SourceLabel:  r.Label(),
		Header:       r.HeaderText(),
		Payload:      r.Payload,
		CreatedAt:    r.CreatedAt,
		ArtifactPath: artifactPath,
	}
}

// Outcome is the per-record result of a cycle.
type Outcome string

const (
	OutcomeSynced  Outcome = "synced"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// RecordOutcome describes what happened to one fetched record.
type RecordOutcome struct {
	RemoteID     string  `json:"remote_id"`
	Outcome      Outcome `json:"outcome"`
	ArtifactPath string  `json:"artifact_path,omitempty"`
	// DeleteErr is set when the record was persisted but the remote
	// acknowledgement failed. The record still counts as synced.
	DeleteErr error `json:"-"`
	Err       error `json:"-"`
}

// CycleResult summarizes one reconciliation pass.
type CycleResult struct {
	CycleID      string          `json:"cycle_id"`
	StartedAt    time.Time       `json:"started_at"`
	Duration     time.Duration   `json:"duration"`
	Fetched      int             `json:"fetched"`
	Synced       int             `json:"synced"`
	Skipped      int             `json:"skipped"`
	Failed       int             `json:"failed"`
	DeleteFailed int             `json:"delete_failed"`
	Outcomes     []RecordOutcome `json:"outcomes,omitempty"`

	// Busy is true when the cycle did not run because another one held the engine.
	Busy bool `json:"busy,omitempty"`
	// Interrupted is true when cancellation stopped the cycle before every
	// fetched record was visited.
	Interrupted bool `json:"interrupted,omitempty"`
	// Err is the cycle-fatal error: a fetch failure or ErrCycleInProgress.
	Err error `json:"-"`
}

// Summary renders the counts in the form used by notifications and the CLI.
func (r *CycleResult) Summary() string {
	return fmt.Sprintf("synced=%d skipped=%d failed=%d", r.Synced, r.Skipped, r.Failed)
}

// StoreStats contains local store statistics.
type StoreStats struct {
	RecordCount   int       `json:"record_count"`
	LastSync      time.Time `json:"last_sync"`
	LastCycleID   string    `json:"last_cycle_id,omitempty"`
	SchemaVersion string    `json:"schema_version"`
}

// HealthStatus represents the health of a client.
type HealthStatus struct {
	Healthy         bool   `json:"healthy"`
	StoreOK         bool   `json:"store_ok"`
	RemoteReachable bool   `json:"remote_reachable"`
	Error           string `json:"error,omitempty"`
}
