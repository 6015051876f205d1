package domain

import "fmt"

// EngineError is the unified error type for the pipeline.
// Each error has a numeric code and human-readable message.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Router / catalog errors (-32010 to -32039) ----

var (
	ErrCatalogInvalid  = &EngineError{Code: -32010, Message: "invalid trigger catalog"}
	ErrCatalogNotFound = &EngineError{Code: -32011, Message: "trigger catalog file not found"}
	ErrUnknownDomain   = &EngineError{Code: -32012, Message: "unknown routing domain"}
)

// ---- Ledger errors (-32040 to -32069) ----

var (
	ErrLedgerWrite     = &EngineError{Code: -32040, Message: "ledger write failed"}
	ErrEventInvalid    = &EngineError{Code: -32041, Message: "decision event failed validation"}
	ErrDuplicateEvent  = &EngineError{Code: -32042, Message: "duplicate event_id in ledger"}
	ErrBackfillReplace = &EngineError{Code: -32043, Message: "backfill atomic replace failed"}
)

// ---- Store errors (-32130 to -32159) ----

var (
	ErrStoreInit       = &EngineError{Code: -32130, Message: "failed to initialize store"}
	ErrStoreQuery      = &EngineError{Code: -32131, Message: "store query failed"}
	ErrStoreWrite      = &EngineError{Code: -32132, Message: "store write failed"}
	ErrSchemaMigration = &EngineError{Code: -32133, Message: "schema migration failed"}
	ErrConfigInvalid   = &EngineError{Code: -32136, Message: "invalid configuration"}
)
