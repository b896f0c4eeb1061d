package journalengine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
)

const (
	spanNameSaveSnapshot   = "journal.save_snapshot"
	spanNameLoadSnapshot   = "journal.load_snapshot"
	spanNameDeleteSnapshot = "journal.delete_snapshot"
)

// SaveSnapshot stores a state snapshot, replacing any existing snapshot for
// the same state type. The snapshot is validated before anything is written.
func (j Journal) SaveSnapshot(ctx context.Context, snapshot statemachine.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return errors.Join(statemachine.ErrSavingSnapshotFailed, err)
	}

	ctx, span := j.startSpan(ctx, spanNameSaveSnapshot, operationSnapshot)

	record := goqu.Record{
		colStateType:      snapshot.StateType,
		colSequenceNumber: snapshot.SequenceNumber,
		colData:           []byte(snapshot.Data),
		colCreatedAt:      snapshot.CreatedAt,
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(j.snapshotTableName).
		Rows(record).
		OnConflict(goqu.DoUpdate(colStateType, record))

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		j.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorTypeQueryFailed})
		return errors.Join(statemachine.ErrSavingSnapshotFailed, statemachine.ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()
	_, execErr := j.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	j.logQueryWithDuration(ctx, sqlQuery, logActionSaveSnapshot, duration)

	if execErr != nil {
		j.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		j.recordError(ctx, operationSnapshot, errorTypeExecFailed)
		j.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorTypeExecFailed})

		return errors.Join(statemachine.ErrSavingSnapshotFailed, execErr)
	}

	j.logOperation(ctx,
		logMsgSnapshotSaved,
		logAttrStateType, snapshot.StateType,
		logAttrExpectedSequence, snapshot.SequenceNumber,
		logAttrDurationMS, durationToMilliseconds(duration))
	j.recordDuration(ctx, metricSnapshotDuration, duration, operationSnapshot, statusSuccess)
	j.finishSpan(span, statusSuccess, map[string]string{logAttrStateType: snapshot.StateType})

	return nil
}

// LoadSnapshot retrieves the stored snapshot for the given state type.
// It returns nil without error when no snapshot exists, so callers can fall
// back to a full replay.
func (j Journal) LoadSnapshot(ctx context.Context, stateType statemachine.StateTypeString) (*statemachine.Snapshot, error) {
	if stateType == "" {
		return nil, errors.Join(statemachine.ErrLoadingSnapshotFailed, statemachine.ErrEmptyStateType)
	}

	ctx, span := j.startSpan(ctx, spanNameLoadSnapshot, operationSnapshot)

	selectStmt := goqu.Dialect(dialectPostgres).
		From(j.snapshotTableName).
		Select(colStateType, colSequenceNumber, colData, colCreatedAt).
		Where(goqu.C(colStateType).Eq(stateType))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		j.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorTypeQueryFailed})
		return nil, errors.Join(statemachine.ErrLoadingSnapshotFailed, statemachine.ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()
	rows, queryErr := j.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	j.logQueryWithDuration(ctx, sqlQuery, logActionLoadSnapshot, duration)

	if queryErr != nil {
		j.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		j.recordError(ctx, operationSnapshot, errorTypeQueryFailed)
		j.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorTypeQueryFailed})

		return nil, errors.Join(statemachine.ErrLoadingSnapshotFailed, queryErr)
	}
	defer j.closeRows(ctx, rows)

	if !rows.Next() {
		j.finishSpan(span, statusSuccess, map[string]string{logAttrStateType: stateType})
		return nil, nil
	}

	var snapshot statemachine.Snapshot
	var data []byte

	if scanErr := rows.Scan(&snapshot.StateType, &snapshot.SequenceNumber, &data, &snapshot.CreatedAt); scanErr != nil {
		j.logError(ctx, logMsgScanRowFailed, scanErr)
		j.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorTypeQueryFailed})

		return nil, errors.Join(statemachine.ErrLoadingSnapshotFailed, statemachine.ErrScanningDBRowFailed, scanErr)
	}

	snapshot.Data = json.RawMessage(data)

	j.logOperation(ctx,
		logMsgSnapshotLoaded,
		logAttrStateType, snapshot.StateType,
		logAttrExpectedSequence, snapshot.SequenceNumber,
		logAttrDurationMS, durationToMilliseconds(duration))
	j.recordDuration(ctx, metricSnapshotDuration, duration, operationSnapshot, statusSuccess)
	j.finishSpan(span, statusSuccess, map[string]string{logAttrStateType: stateType})

	return &snapshot, nil
}

// DeleteSnapshot removes the stored snapshot for the given state type.
// Deleting a snapshot that does not exist is not an error.
func (j Journal) DeleteSnapshot(ctx context.Context, stateType statemachine.StateTypeString) error {
	if stateType == "" {
		return errors.Join(statemachine.ErrDeletingSnapshotFailed, statemachine.ErrEmptyStateType)
	}

	ctx, span := j.startSpan(ctx, spanNameDeleteSnapshot, operationSnapshot)

	deleteStmt := goqu.Dialect(dialectPostgres).
		Delete(j.snapshotTableName).
		Where(goqu.C(colStateType).Eq(stateType))

	sqlQuery, _, toSQLErr := deleteStmt.ToSQL()
	if toSQLErr != nil {
		j.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorTypeQueryFailed})
		return errors.Join(statemachine.ErrDeletingSnapshotFailed, statemachine.ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()
	_, execErr := j.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	j.logQueryWithDuration(ctx, sqlQuery, logActionDeleteSnapshot, duration)

	if execErr != nil {
		j.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		j.recordError(ctx, operationSnapshot, errorTypeExecFailed)
		j.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorTypeExecFailed})

		return errors.Join(statemachine.ErrDeletingSnapshotFailed, execErr)
	}

	j.logOperation(ctx,
		logMsgSnapshotDeleted,
		logAttrStateType, stateType,
		logAttrDurationMS, durationToMilliseconds(duration))
	j.finishSpan(span, statusSuccess, map[string]string{logAttrStateType: stateType})

	return nil
}
