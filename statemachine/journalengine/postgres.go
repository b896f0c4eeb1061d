package journalengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine/journalengine/internal/adapters"
)

const (
	defaultChangeTableName   = "changes"
	defaultSnapshotTableName = "state_snapshots"

	logMsgBuildSelectQueryFailed    = "failed to build select query"
	logMsgDBQueryFailed             = "database query execution failed"
	logMsgCloseRowsFailed           = "failed to close database rows"
	logMsgScanRowFailed             = "failed to scan database row"
	logMsgBuildStorableChangeFailed = "failed to build storable change from database row"
	logMsgBuildInsertQueryFailed    = "failed to build insert query"
	logMsgDBExecFailed              = "database execution failed during change append"
	logMsgRowsAffectedFailed        = "failed to get rows affected count"
	logMsgSingleChangeSQLFailed     = "failed to convert single change insert statement to SQL"
	logMsgMultiChangeSQLFailed      = "failed to convert multiple changes insert statement to SQL"
	logMsgReadCompleted             = "read completed"
	logMsgChangesAppended           = "changes appended"
	logMsgSnapshotSaved             = "snapshot saved"
	logMsgSnapshotLoaded            = "snapshot loaded"
	logMsgSnapshotDeleted           = "snapshot deleted"
	logMsgConcurrencyConflict       = "concurrency conflict detected"
	logMsgSQLExecuted               = "executed sql for: "
	logMsgOperation                 = "journal operation: "
	logAttrError                    = "error"
	logAttrQuery                    = "query"
	logAttrChangeType               = "change_type"
	logAttrChangeCount              = "change_count"
	logAttrStateType                = "state_type"
	logAttrDurationMS               = "duration_ms"
	logAttrExpectedChanges          = "expected_changes"
	logAttrRowsAffected             = "rows_affected"
	logAttrExpectedSequence         = "expected_sequence"
	logActionRead                   = "read"
	logActionAppend                 = "append"
	logActionSaveSnapshot           = "save_snapshot"
	logActionLoadSnapshot           = "load_snapshot"
	logActionDeleteSnapshot         = "delete_snapshot"
	colChangeType                   = "change_type"
	colOccurredAt                   = "occurred_at"
	colPayload                      = "payload"
	colMetadata                     = "metadata"
	colSequenceNumber               = "sequence_number"
	colStateType                    = "state_type"
	colData                         = "data"
	colCreatedAt                    = "created_at"
	cteContext                      = "context"
	cteVals                         = "vals"
	dialectPostgres                 = "postgres"
	aliasMaxSeq                     = "max_seq"
	castText                        = "?::text"
	castTimestamp                   = "?::timestamp with time zone"
	castJsonb                       = "?::jsonb"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
	queryDuration     = time.Duration
)

// Journal is a PostgreSQL-backed record of dispatched StateChanges.
// It appends statemachine.StorableChange rows guarded by an optimistic
// sequence check and reads them back in order for deterministic replay.
// It also stores state Snapshots keyed by state type.
type Journal struct {
	db                adapters.DBAdapter
	changeTableName   string
	snapshotTableName string
	logger            Logger
	contextualLogger  ContextualLogger
	metricsCollector  MetricsCollector
	tracingCollector  TracingCollector
}

type queryResultRow struct {
	changeType     string
	payload        []byte
	metadata       []byte
	occurredAt     time.Time
	sequenceNumber statemachine.MaxSequenceNumberUint
}

// NewJournalFromPGXPool creates a new Journal using a pgx Pool with optional configuration.
func NewJournalFromPGXPool(db *pgxpool.Pool, options ...Option) (Journal, error) {
	if db == nil {
		return Journal{}, statemachine.ErrNilDatabaseConnection
	}

	return newJournal(adapters.NewPGXAdapter(db), options...)
}

// NewJournalFromPGXPoolWithReplica creates a new Journal using a primary pgx Pool for
// appends and a replica pgx Pool for reads, with optional configuration.
//
// Routing reads to a replica suits rebuild-heavy workloads: ReadChanges and
// LoadSnapshot go to the replica while Append stays on the primary. A caller
// without a replica should use NewJournalFromPGXPool instead.
func NewJournalFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Journal, error) {
	if db == nil || replica == nil {
		return Journal{}, statemachine.ErrNilDatabaseConnection
	}

	return newJournal(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewJournalFromSQLDB creates a new Journal using a sql.DB with optional configuration.
func NewJournalFromSQLDB(db *sql.DB, options ...Option) (Journal, error) {
	if db == nil {
		return Journal{}, statemachine.ErrNilDatabaseConnection
	}

	return newJournal(adapters.NewSQLAdapter(db), options...)
}

// NewJournalFromSQLX creates a new Journal using a sqlx.DB with optional configuration.
func NewJournalFromSQLX(db *sqlx.DB, options ...Option) (Journal, error) {
	if db == nil {
		return Journal{}, statemachine.ErrNilDatabaseConnection
	}

	return newJournal(adapters.NewSQLXAdapter(db), options...)
}

func newJournal(db adapters.DBAdapter, options ...Option) (Journal, error) {
	journal := Journal{
		db:                db,
		changeTableName:   defaultChangeTableName,
		snapshotTableName: defaultSnapshotTableName,
	}

	for _, option := range options {
		if err := option(&journal); err != nil {
			return Journal{}, err
		}
	}

	return journal, nil
}

// ReadChanges retrieves all recorded changes with a sequence number higher
// than afterSequence, in sequence order, together with the highest sequence
// number seen. The returned sequence number is never lower than afterSequence,
// so it stays valid as the expected sequence for a subsequent Append even when
// the tail is empty. It satisfies statemachine.ChangeReader.
func (j Journal) ReadChanges(ctx context.Context, afterSequence statemachine.MaxSequenceNumberUint) (
	statemachine.StorableChanges,
	statemachine.MaxSequenceNumberUint,
	error,
) {

	var empty statemachine.StorableChanges

	ctx, span := j.startSpan(ctx, spanNameRead, operationRead)

	sqlQuery, buildQueryErr := j.buildSelectQuery(afterSequence)
	if buildQueryErr != nil {
		j.logError(ctx, logMsgBuildSelectQueryFailed, buildQueryErr)
		j.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorTypeQueryFailed})
		return empty, 0, buildQueryErr
	}

	rows, duration, queryErr := j.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		j.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorTypeQueryFailed})
		return empty, 0, queryErr
	}
	defer j.closeRows(ctx, rows)

	changeStream, maxSequenceNumber, scanErr := j.processQueryResults(ctx, rows, afterSequence)
	if scanErr != nil {
		j.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorTypeQueryFailed})
		return empty, 0, scanErr
	}

	j.logOperation(ctx,
		logMsgReadCompleted,
		logAttrChangeCount, len(changeStream),
		logAttrDurationMS, durationToMilliseconds(duration))
	j.recordDuration(ctx, metricReadDuration, duration, operationRead, statusSuccess)
	j.finishSpan(span, statusSuccess, map[string]string{
		logAttrChangeCount: intToString(len(changeStream)),
	})

	return changeStream, maxSequenceNumber, nil
}

// executeQuery executes the SQL query and returns rows with timing information.
func (j Journal) executeQuery(ctx context.Context, sqlQuery string) (
	adapters.DBRows,
	time.Duration,
	error,
) {

	start := time.Now()
	rows, queryErr := j.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	j.logQueryWithDuration(ctx, sqlQuery, logActionRead, duration)

	if queryErr != nil {
		j.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		j.recordError(ctx, operationRead, errorTypeQueryFailed)

		return nil, duration, errors.Join(statemachine.ErrQueryingChangesFailed, queryErr)
	}

	return rows, duration, nil
}

// closeRows safely closes database rows and logs any errors.
func (j Journal) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		j.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// processQueryResults processes database rows and converts them to storable changes.
//
// The returned max sequence number is never lower than afterSequence: when the
// tail is empty the caller already knows the history up to afterSequence, and
// reporting 0 would make the next optimistic Append conflict spuriously.
func (j Journal) processQueryResults(ctx context.Context, rows adapters.DBRows, afterSequence statemachine.MaxSequenceNumberUint) (
	statemachine.StorableChanges,
	statemachine.MaxSequenceNumberUint,
	error,
) {

	var empty statemachine.StorableChanges
	result := queryResultRow{}
	changeStream := make(statemachine.StorableChanges, 0)
	maxSequenceNumber := afterSequence

	for rows.Next() {
		rowScanErr := rows.Scan(&result.changeType, &result.occurredAt, &result.payload, &result.metadata, &result.sequenceNumber)
		if rowScanErr != nil {
			j.logError(ctx, logMsgScanRowFailed, rowScanErr)

			return empty, 0, errors.Join(statemachine.ErrScanningDBRowFailed, rowScanErr)
		}

		change, buildStorableErr := statemachine.BuildStorableChange(result.changeType, result.occurredAt, result.payload, result.metadata)
		if buildStorableErr != nil {
			j.logError(ctx, logMsgBuildStorableChangeFailed, buildStorableErr, logAttrChangeType, result.changeType)

			return empty, 0, errors.Join(statemachine.ErrBuildingStorableChangeFailed, buildStorableErr)
		}

		changeStream = append(changeStream, change)
		maxSequenceNumber = result.sequenceNumber
	}

	return changeStream, maxSequenceNumber, nil
}

// Append attempts to append one or multiple statemachine.StorableChange(s) onto the journal
// respecting the optimistic concurrency constraint given by expectedMaxSequenceNumber.
//
// The expectedMaxSequenceNumber should be the one returned by the ReadChanges (or Replayer.Rebuild)
// call made before dispatching the change: if another writer has appended in between,
// statemachine.ErrConcurrencyConflict is returned and nothing is written.
//
// The insert query to append multiple changes atomically is heavier than the one built to
// append a single change. One dispatch typically records exactly one change; only supply
// multiple changes if you are sure you need to append them as one atomic step.
func (j Journal) Append(
	ctx context.Context,
	expectedMaxSequenceNumber statemachine.MaxSequenceNumberUint,
	change statemachine.StorableChange,
	additionalChanges ...statemachine.StorableChange,
) error {

	allChanges := statemachine.StorableChanges{change}
	allChanges = append(allChanges, additionalChanges...)

	ctx, span := j.startSpan(ctx, spanNameAppend, operationAppend)

	sqlQuery, buildQueryErr := j.buildAppendQuery(ctx, allChanges, expectedMaxSequenceNumber)
	if buildQueryErr != nil {
		j.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorTypeQueryFailed})
		return buildQueryErr
	}

	rowsAffected, duration, execErr := j.executeAppendQuery(ctx, sqlQuery)
	if execErr != nil {
		j.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorTypeExecFailed})
		return execErr
	}

	if err := j.validateAppendResult(ctx, rowsAffected, len(allChanges), expectedMaxSequenceNumber); err != nil {
		j.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorTypeConcurrencyConflict})
		return err
	}

	j.logOperation(ctx,
		logMsgChangesAppended,
		logAttrChangeCount, len(allChanges),
		logAttrDurationMS, durationToMilliseconds(duration))
	j.recordDuration(ctx, metricAppendDuration, duration, operationAppend, statusSuccess)
	j.finishSpan(span, statusSuccess, map[string]string{
		logAttrChangeCount: intToString(len(allChanges)),
	})

	return nil
}

// buildAppendQuery builds the appropriate SQL query for single or multiple changes.
func (j Journal) buildAppendQuery(
	ctx context.Context,
	allChanges statemachine.StorableChanges,
	expectedMaxSequenceNumber statemachine.MaxSequenceNumberUint,
) (sqlQueryString, error) {

	var sqlQuery sqlQueryString
	var buildQueryErr error

	switch len(allChanges) {
	case 1:
		sqlQuery, buildQueryErr = j.buildInsertQueryForSingleChange(ctx, allChanges[0], expectedMaxSequenceNumber)

	default:
		sqlQuery, buildQueryErr = j.buildInsertQueryForMultipleChanges(ctx, allChanges, expectedMaxSequenceNumber)
	}

	if buildQueryErr != nil {
		j.logError(ctx, logMsgBuildInsertQueryFailed, buildQueryErr, logAttrChangeCount, len(allChanges))

		return "", buildQueryErr
	}

	return sqlQuery, nil
}

// executeAppendQuery executes the SQL append query and returns rows affected and duration.
func (j Journal) executeAppendQuery(ctx context.Context, sqlQuery string) (
	rowsAffectedInt64,
	queryDuration,
	error,
) {

	start := time.Now()
	tag, execErr := j.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	j.logQueryWithDuration(ctx, sqlQuery, logActionAppend, duration)

	if execErr != nil {
		j.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		j.recordError(ctx, operationAppend, errorTypeExecFailed)

		return 0, duration, errors.Join(statemachine.ErrAppendingChangeFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := tag.RowsAffected()
	if rowsAffectedErr != nil {
		j.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)

		return 0, duration, errors.Join(statemachine.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, duration, nil
}

// validateAppendResult checks if the append operation was successful and detects concurrency conflicts.
func (j Journal) validateAppendResult(
	ctx context.Context,
	rowsAffected int64,
	expectedChangeCount int,
	expectedMaxSequenceNumber statemachine.MaxSequenceNumberUint,
) error {

	if rowsAffected < int64(expectedChangeCount) {
		j.logOperation(ctx,
			logMsgConcurrencyConflict,
			logAttrExpectedChanges, expectedChangeCount,
			logAttrRowsAffected, rowsAffected,
			logAttrExpectedSequence, expectedMaxSequenceNumber,
		)
		j.recordConcurrencyConflict(ctx)

		return statemachine.ErrConcurrencyConflict
	}

	return nil
}

func (j Journal) buildSelectQuery(afterSequence statemachine.MaxSequenceNumberUint) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(j.changeTableName).
		Select(colChangeType, colOccurredAt, colPayload, colMetadata, colSequenceNumber).
		Order(goqu.I(colSequenceNumber).Asc())

	if afterSequence > 0 {
		selectStmt = selectStmt.Where(goqu.C(colSequenceNumber).Gt(afterSequence))
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(statemachine.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (j Journal) buildInsertQueryForSingleChange(
	ctx context.Context,
	change statemachine.StorableChange,
	expectedMaxSequenceNumber statemachine.MaxSequenceNumberUint,
) (sqlQueryString, error) {

	builder := goqu.Dialect(dialectPostgres)

	// Define the subquery for the CTE
	cteStmt := builder.
		From(j.changeTableName).
		Select(goqu.MAX(colSequenceNumber).As(aliasMaxSeq))

	// Define the SELECT for the INSERT
	selectStmt := builder.
		From(cteContext).
		Select(goqu.V(change.ChangeType), goqu.V(change.OccurredAt), goqu.V(change.PayloadJSON), goqu.V(change.MetadataJSON)).
		Where(goqu.COALESCE(goqu.C(aliasMaxSeq), 0).Eq(goqu.V(expectedMaxSequenceNumber)))

	// Finalize the full INSERT query
	insertStmt := builder.
		Insert(j.changeTableName).
		Cols(colChangeType, colOccurredAt, colPayload, colMetadata).
		FromQuery(selectStmt).
		With(cteContext, cteStmt)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		j.logError(ctx, logMsgSingleChangeSQLFailed, toSQLErr, logAttrChangeType, change.ChangeType)
		return "", errors.Join(statemachine.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (j Journal) buildInsertQueryForMultipleChanges(
	ctx context.Context,
	changes statemachine.StorableChanges,
	expectedMaxSequenceNumber statemachine.MaxSequenceNumberUint,
) (sqlQueryString, error) {

	builder := goqu.Dialect(dialectPostgres)

	// Define the subquery for the CTE
	cteStmt := builder.
		From(j.changeTableName).
		Select(goqu.MAX(colSequenceNumber).As(aliasMaxSeq))

	// Create individual SELECT statements for each change
	unionStatements := make([]*goqu.SelectDataset, len(changes))
	for i, change := range changes {
		unionStatements[i] = builder.
			Select(
				goqu.L(castText, change.ChangeType).As(colChangeType),
				goqu.L(castTimestamp, change.OccurredAt).As(colOccurredAt),
				goqu.L(castJsonb, change.PayloadJSON).As(colPayload),
				goqu.L(castJsonb, change.MetadataJSON).As(colMetadata),
			)
	}

	// Combine all SELECT statements with UNION ALL
	valuesStmt := unionStatements[0]
	for i := 1; i < len(unionStatements); i++ {
		valuesStmt = valuesStmt.UnionAll(unionStatements[i])
	}

	// Finalize the full INSERT query
	valsChangeType := fmt.Sprintf("%s.%s", cteVals, colChangeType)
	valsOccurredAt := fmt.Sprintf("%s.%s", cteVals, colOccurredAt)
	valsPayload := fmt.Sprintf("%s.%s", cteVals, colPayload)
	valsMetadata := fmt.Sprintf("%s.%s", cteVals, colMetadata)

	insertStmt := builder.
		Insert(j.changeTableName).
		Cols(colChangeType, colOccurredAt, colPayload, colMetadata).
		With(cteContext, cteStmt).
		With(cteVals, valuesStmt).
		FromQuery(
			builder.From(cteContext, cteVals).
				Select(valsChangeType, valsOccurredAt, valsPayload, valsMetadata).
				Where(goqu.COALESCE(goqu.C(aliasMaxSeq), 0).Eq(goqu.V(expectedMaxSequenceNumber))),
		)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		j.logError(ctx, logMsgMultiChangeSQLFailed, toSQLErr, logAttrChangeCount, len(changes))
		return "", errors.Join(statemachine.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}
