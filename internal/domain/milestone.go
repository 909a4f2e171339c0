package domain

import (
	"fmt"
	"strings"
	"time"
)

// MilestoneKind names a pipeline progress signal. Kinds are matched exactly
// by the readiness gate, so a downstream pipeline never mistakes an unrelated
// log entry for upstream completion.
type MilestoneKind string

const (
	IngestionStarted        MilestoneKind = "ingestion.started"
	IngestionCompleted      MilestoneKind = "ingestion.completed"
	IngestionFailed         MilestoneKind = "ingestion.failed"
	ClassificationStarted   MilestoneKind = "classification.started"
	ClassificationCompleted MilestoneKind = "classification.completed"
	ClassificationFailed    MilestoneKind = "classification.failed"
)

// MilestoneEvent is one append-only log entry. ID is assigned by the store
// (serial column) and is strictly increasing across all writers; events are
// never updated or deleted.
type MilestoneEvent struct {
	ID       int64
	Kind     MilestoneKind
	Detail   string
	LoadDate time.Time
}

// EncodeMilestone renders the kind and optional detail into the operations
// table's single update column as "<kind>: <detail>".
func EncodeMilestone(kind MilestoneKind, detail string) string {
	if detail == "" {
		return string(kind)
	}
	return fmt.Sprintf("%s: %s", kind, detail)
}

// DecodeMilestone splits an update column value back into kind and detail.
// Entries written by other tools decode to a kind that matches nothing.
func DecodeMilestone(update string) (MilestoneKind, string) {
	kind, detail, found := strings.Cut(update, ": ")
	if !found {
		return MilestoneKind(strings.TrimSpace(update)), ""
	}
	return MilestoneKind(strings.TrimSpace(kind)), detail
}
