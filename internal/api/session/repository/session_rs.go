package sessionRepository

import (
	"RailscanGolang/internal/api/session"
	"RailscanGolang/internal/entity"
	contextPkg "RailscanGolang/pkg/context"
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ScanSessionDB struct {
	ID              sql.NullString `db:"id"`
	Name            sql.NullString `db:"name"`
	Description     sql.NullString `db:"description"`
	Status          sql.NullString `db:"status"`
	TotalFrames     sql.NullInt64  `db:"total_frames"`
	ProcessedFrames sql.NullInt64  `db:"processed_frames"`
	TotalCracks     sql.NullInt64  `db:"total_cracks"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r *sessionRepository) CreateSession(ctx context.Context, s entity.ScanSession) error {
	requestID := contextPkg.GetRequestID(ctx)
	argsKV := map[string]interface{}{
		"id":               s.ID,
		"name":             s.Name,
		"description":      s.Description,
		"status":           s.Status,
		"total_frames":     s.TotalFrames,
		"processed_frames": s.ProcessedFrames,
		"total_cracks":     s.TotalCracks,
		"created_at":       time.Now(),
		"updated_at":       time.Now(),
	}

	query, args, err := sqlx.Named(queryCreateSession, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("CreateSession named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating session")
		return err
	}

	return nil
}

func (r *sessionRepository) GetSessionByID(ctx context.Context, id string) (entity.ScanSession, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var row ScanSessionDB

	argsKV := map[string]interface{}{
		"id": id,
	}

	query, args, err := sqlx.Named(queryGetSessionByID, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSessionByID named query preparation err")
		return entity.ScanSession{}, err
	}

	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": id,
			}).Warn("GetSessionByID no rows found")
			return entity.ScanSession{}, session.ErrSessionNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSessionByID execution err")
		return entity.ScanSession{}, err
	}

	return r.makeScanSession(row), nil
}

func (r *sessionRepository) GetSessions(ctx context.Context) ([]entity.ScanSession, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var rows []ScanSessionDB

	query := r.q.Rebind(queryGetSessions)
	if err := r.q.SelectContext(ctx, &rows, query); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSessions execution err")
		return nil, err
	}

	result := make([]entity.ScanSession, 0, len(rows))
	for _, row := range rows {
		result = append(result, r.makeScanSession(row))
	}

	return result, nil
}

func (r *sessionRepository) UpdateSessionStats(ctx context.Context, id string, stats entity.SessionStats) error {
	requestID := contextPkg.GetRequestID(ctx)
	argsKV := map[string]interface{}{
		"id":               id,
		"total_frames":     stats.TotalFrames,
		"processed_frames": stats.ProcessedFrames,
		"total_cracks":     stats.TotalCracks,
		"updated_at":       time.Now(),
	}

	return r.execExpectingRow(ctx, requestID, queryUpdateSessionStats, argsKV, "UpdateSessionStats")
}

func (r *sessionRepository) UpdateSessionStatus(ctx context.Context, id string, status entity.SessionStatus) error {
	requestID := contextPkg.GetRequestID(ctx)
	argsKV := map[string]interface{}{
		"id":         id,
		"status":     string(status),
		"updated_at": time.Now(),
	}

	return r.execExpectingRow(ctx, requestID, queryUpdateSessionStatus, argsKV, "UpdateSessionStatus")
}

func (r *sessionRepository) DeleteSession(ctx context.Context, id string) error {
	requestID := contextPkg.GetRequestID(ctx)
	argsKV := map[string]interface{}{
		"id": id,
	}

	return r.execExpectingRow(ctx, requestID, queryDeleteSession, argsKV, "DeleteSession")
}

func (r *sessionRepository) execExpectingRow(ctx context.Context, requestID, namedQuery string, argsKV map[string]interface{}, op string) error {
	query, args, err := sqlx.Named(namedQuery, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Errorf("%s named query preparation err", op)
		return err
	}

	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Errorf("%s execution err", op)
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Errorf("%s rows affected err", op)
		return err
	}

	if rowsAffected == 0 {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
		}).Warnf("%s no rows affected", op)
		return session.ErrSessionNotFound
	}

	return nil
}

func (r *sessionRepository) makeScanSession(row ScanSessionDB) entity.ScanSession {
	return entity.ScanSession{
		ID:              row.ID.String,
		Name:            row.Name.String,
		Description:     row.Description.String,
		Status:          row.Status.String,
		TotalFrames:     int(row.TotalFrames.Int64),
		ProcessedFrames: int(row.ProcessedFrames.Int64),
		TotalCracks:     int(row.TotalCracks.Int64),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}
