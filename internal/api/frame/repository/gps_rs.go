package frameRepository

import (
	"RailscanGolang/internal/entity"
	contextPkg "RailscanGolang/pkg/context"
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type GpsFixDB struct {
	ID        sql.NullString  `db:"id"`
	SessionID sql.NullString  `db:"session_id"`
	Position  sql.NullInt64   `db:"position"`
	Second    sql.NullInt64   `db:"second"`
	Latitude  sql.NullFloat64 `db:"latitude"`
	Longitude sql.NullFloat64 `db:"longitude"`
	Accuracy  sql.NullFloat64 `db:"accuracy"`
}

// InsertFixes persists the fixes in file order. The position column exists
// only to reproduce that order on read, since the matcher's tie-break
// depends on it.
func (r *gpsRepository) InsertFixes(ctx context.Context, sessionID string, fixes []entity.GpsFix) error {
	requestID := contextPkg.GetRequestID(ctx)

	for position, fix := range fixes {
		id, err := newULID()
		if err != nil {
			return err
		}

		argsKV := map[string]interface{}{
			"id":         id,
			"session_id": sessionID,
			"position":   position,
			"second":     fix.Second,
			"latitude":   fix.Latitude,
			"longitude":  fix.Longitude,
			"accuracy":   fix.Accuracy,
		}

		query, args, err := sqlx.Named(queryInsertGpsFix, argsKV)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("InsertFixes named query preparation err")
			return err
		}
		query = r.q.Rebind(query)

		if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("Database error when inserting gps fix")
			return err
		}
	}

	return nil
}

func (r *gpsRepository) GetFixesBySession(ctx context.Context, sessionID string) ([]entity.GpsFix, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var rows []GpsFixDB

	argsKV := map[string]interface{}{
		"session_id": sessionID,
	}

	query, args, err := sqlx.Named(queryGetFixesBySession, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetFixesBySession named query preparation err")
		return nil, err
	}

	query = r.q.Rebind(query)

	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetFixesBySession execution err")
		return nil, err
	}

	result := make([]entity.GpsFix, 0, len(rows))
	for _, row := range rows {
		result = append(result, entity.GpsFix{
			Second:    int(row.Second.Int64),
			Latitude:  row.Latitude.Float64,
			Longitude: row.Longitude.Float64,
			Accuracy:  row.Accuracy.Float64,
		})
	}

	return result, nil
}

func (r *gpsRepository) DeleteFixesBySession(ctx context.Context, sessionID string) error {
	requestID := contextPkg.GetRequestID(ctx)

	argsKV := map[string]interface{}{
		"session_id": sessionID,
	}

	query, args, err := sqlx.Named(queryDeleteFixesBySession, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteFixesBySession named query preparation err")
		return err
	}

	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteFixesBySession execution err")
		return err
	}

	return nil
}
