// Package syncer implements the folder synchronization engine: it plans
// which remote files need transferring, materializes them into the local
// sink, records what was synced in a durable manifest, and drives the
// whole pipeline on a fixed cadence.
package syncer

import (
	"time"

	"github.com/SulePostar/finetica-sub002/internal/drive"
)

// Decision classifies one remote file against local state.
type Decision string

const (
	// DecisionNew means no local copy exists; the file must be fetched.
	DecisionNew Decision = "new"
	// DecisionUpdated means the remote copy is newer; re-fetch.
	DecisionUpdated Decision = "updated"
	// DecisionUpToDate means the local copy is current; skip.
	DecisionUpToDate Decision = "up-to-date"
)

// Plan is the per-file transfer decision, computed fresh every run and
// never persisted.
type Plan struct {
	File      drive.File
	Decision  Decision
	LocalName string
}

// OutcomeKind describes how a planned transfer ended.
type OutcomeKind string

const (
	KindDownloaded OutcomeKind = "downloaded"
	KindExported   OutcomeKind = "exported"
	KindSkipped    OutcomeKind = "skipped"
	KindError      OutcomeKind = "error"
)

// Outcome is the result of materializing one planned file. Failures are
// isolated here; a single bad file never aborts the batch.
type Outcome struct {
	File      drive.File
	Kind      OutcomeKind
	LocalName string
	Bytes     int64
	Reason    string
}

// Transferred reports whether the outcome moved bytes into the sink.
func (o Outcome) Transferred() bool {
	return o.Kind == KindDownloaded || o.Kind == KindExported
}

// Summary aggregates per-file outcomes for one tick.
type Summary struct {
	TotalChecked int       `json:"total_checked"`
	Downloaded   int       `json:"downloaded"`
	Skipped      int       `json:"skipped"`
	Errors       int       `json:"errors"`
	FolderName   string    `json:"folder_name"`
	Timestamp    time.Time `json:"timestamp"`
}

// Status is the read-only introspection surface exposed to the rest of
// the application.
type Status struct {
	Connected     bool       `json:"connected"`
	IsRunning     bool       `json:"is_running"`
	HasToken      bool       `json:"has_token"`
	LastSync      *time.Time `json:"last_sync"`
	SyncInterval  string     `json:"sync_interval"`
	ActiveTenants []string   `json:"active_tenants"`
}
