package services

import "time"

// LedgerObserver is told about every finished counter operation.
type LedgerObserver interface {
	ObserveLedgerOp(op string, err error, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveLedgerOp(string, error, time.Duration) {}

// Operation names reported to LedgerObserver.
const (
	OpCreate      = "create"
	OpList        = "list"
	OpGet         = "get"
	OpReconfigure = "reconfigure"
	OpDelete      = "delete"
	OpApplyDelta  = "apply_delta"
	OpReorder     = "reorder"
	OpListRecords = "list_records"
	OpExport      = "export"
)
