package statemachine

import (
	"errors"
)

// ErrNoTransitionFunction is the configuration error returned when a
// StateManager is constructed without a transition function.
var ErrNoTransitionFunction = errors.New("transition function must not be nil")

// ErrContractViolation marks a programmer error in the transition function or
// the caller, not a recoverable runtime condition. It is always joined with a
// more specific error describing the violated contract.
var ErrContractViolation = errors.New("state machine contract violation")

// ErrNilStateChange is returned when Dispatch is invoked with a nil change.
var ErrNilStateChange = errors.New("state change must not be nil")

var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrEmptyChangesTableName = errors.New("empty changes table name supplied")
var ErrEmptySnapshotsTableName = errors.New("empty snapshots table name supplied")
var ErrConcurrencyConflict = errors.New("concurrency error, no rows were affected")
var ErrBuildingQueryFailed = errors.New("building query failed")
var ErrQueryingChangesFailed = errors.New("querying changes failed")
var ErrScanningDBRowFailed = errors.New("scanning database row failed")
var ErrBuildingStorableChangeFailed = errors.New("building storable change failed")
var ErrAppendingChangeFailed = errors.New("appending change failed")
var ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")

// MaxSequenceNumberUint is a type alias for uint, representing the highest
// sequence number of a recorded change history.
type MaxSequenceNumberUint = uint
