package frameRepository

import (
	"RailscanGolang/internal/api/frame"
	"RailscanGolang/internal/entity"
	contextPkg "RailscanGolang/pkg/context"
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type UploadedFrameDB struct {
	ID          sql.NullString `db:"id"`
	SessionID   sql.NullString `db:"session_id"`
	FrameID     sql.NullString `db:"frame_id"`
	ImagePath   sql.NullString `db:"image_path"`
	ContentType sql.NullString `db:"content_type"`
	SizeBytes   sql.NullInt64  `db:"size_bytes"`
	CreatedAt   time.Time      `db:"created_at"`
}

type ProcessedFrameDB struct {
	ID                 sql.NullString  `db:"id"`
	SessionID          sql.NullString  `db:"session_id"`
	FrameID            sql.NullString  `db:"frame_id"`
	ImagePath          sql.NullString  `db:"image_path"`
	ProcessedImagePath sql.NullString  `db:"processed_image_path"`
	Latitude           sql.NullFloat64 `db:"latitude"`
	Longitude          sql.NullFloat64 `db:"longitude"`
	Confidence         sql.NullFloat64 `db:"confidence"`
	Class              sql.NullString  `db:"class"`
	HasCrack           sql.NullBool    `db:"has_crack"`
	CreatedAt          time.Time       `db:"created_at"`
}

type PredictionDB struct {
	ID         sql.NullString  `db:"id"`
	FrameID    sql.NullString  `db:"frame_id"`
	X          sql.NullFloat64 `db:"x"`
	Y          sql.NullFloat64 `db:"y"`
	Width      sql.NullFloat64 `db:"width"`
	Height     sql.NullFloat64 `db:"height"`
	Confidence sql.NullFloat64 `db:"confidence"`
	Class      sql.NullString  `db:"class"`
}

func (r *frameRepository) RegisterUpload(ctx context.Context, upload entity.UploadedFrame) error {
	requestID := contextPkg.GetRequestID(ctx)
	argsKV := map[string]interface{}{
		"id":           upload.ID,
		"session_id":   upload.SessionID,
		"frame_id":     upload.FrameID,
		"image_path":   upload.ImagePath,
		"content_type": upload.ContentType,
		"size_bytes":   upload.SizeBytes,
		"created_at":   time.Now(),
	}

	query, args, err := sqlx.Named(queryRegisterUpload, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("RegisterUpload named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when registering uploaded frame")
		return err
	}

	return nil
}

func (r *frameRepository) GetUpload(ctx context.Context, sessionID, frameID string) (entity.UploadedFrame, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var row UploadedFrameDB

	argsKV := map[string]interface{}{
		"session_id": sessionID,
		"frame_id":   frameID,
	}

	query, args, err := sqlx.Named(queryGetUpload, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetUpload named query preparation err")
		return entity.UploadedFrame{}, err
	}

	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": sessionID,
				"frame_id":   frameID,
			}).Warn("GetUpload no rows found")
			return entity.UploadedFrame{}, frame.ErrFrameNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetUpload execution err")
		return entity.UploadedFrame{}, err
	}

	return r.makeUploadedFrame(row), nil
}

func (r *frameRepository) GetUploadsBySession(ctx context.Context, sessionID string) ([]entity.UploadedFrame, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var rows []UploadedFrameDB

	argsKV := map[string]interface{}{
		"session_id": sessionID,
	}

	query, args, err := sqlx.Named(queryGetUploadsBySession, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetUploadsBySession named query preparation err")
		return nil, err
	}

	query = r.q.Rebind(query)

	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetUploadsBySession execution err")
		return nil, err
	}

	result := make([]entity.UploadedFrame, 0, len(rows))
	for _, row := range rows {
		result = append(result, r.makeUploadedFrame(row))
	}

	return result, nil
}

// UpsertProcessedFrame replaces any prior result for the frame and inserts
// its predictions. No history is kept for reprocessed frames; callers run
// this inside a transaction so the delete and insert land together.
func (r *frameRepository) UpsertProcessedFrame(ctx context.Context, pf entity.ProcessedFrame) error {
	requestID := contextPkg.GetRequestID(ctx)

	deleteArgs := map[string]interface{}{
		"session_id": pf.SessionID,
		"frame_id":   pf.FrameID,
	}

	query, args, err := sqlx.Named(queryDeleteProcessedFrame, deleteArgs)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpsertProcessedFrame delete preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpsertProcessedFrame delete execution err")
		return err
	}

	insertArgs := map[string]interface{}{
		"id":                   pf.ID,
		"session_id":           pf.SessionID,
		"frame_id":             pf.FrameID,
		"image_path":           pf.ImagePath,
		"processed_image_path": nullableString(pf.ProcessedImagePath),
		"latitude":             pf.Latitude,
		"longitude":            pf.Longitude,
		"confidence":           nullableFloat(pf.Confidence),
		"class":                nullableString(pf.Class),
		"has_crack":            pf.HasCrack,
		"created_at":           time.Now(),
	}

	query, args, err = sqlx.Named(queryInsertProcessedFrame, insertArgs)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpsertProcessedFrame insert preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpsertProcessedFrame insert execution err")
		return err
	}

	for _, pred := range pf.Predictions {
		predID, err := newULID()
		if err != nil {
			return err
		}

		predArgs := map[string]interface{}{
			"id":         predID,
			"frame_id":   pf.ID,
			"x":          nullableFloat(pred.X),
			"y":          nullableFloat(pred.Y),
			"width":      nullableFloat(pred.Width),
			"height":     nullableFloat(pred.Height),
			"confidence": pred.Confidence,
			"class":      pred.Class,
		}

		query, args, err = sqlx.Named(queryInsertPrediction, predArgs)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("UpsertProcessedFrame prediction preparation err")
			return err
		}
		query = r.q.Rebind(query)

		if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("UpsertProcessedFrame prediction insert err")
			return err
		}
	}

	return nil
}

func (r *frameRepository) GetProcessedFramesBySession(ctx context.Context, sessionID string) ([]entity.ProcessedFrame, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var rows []ProcessedFrameDB

	argsKV := map[string]interface{}{
		"session_id": sessionID,
	}

	query, args, err := sqlx.Named(queryGetProcessedFramesBySession, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetProcessedFramesBySession named query preparation err")
		return nil, err
	}

	query = r.q.Rebind(query)

	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetProcessedFramesBySession execution err")
		return nil, err
	}

	result := make([]entity.ProcessedFrame, 0, len(rows))
	for _, row := range rows {
		pf := r.makeProcessedFrame(row)

		predictions, err := r.getPredictionsByFrame(ctx, row.ID.String)
		if err != nil {
			return nil, err
		}
		pf.Predictions = predictions

		result = append(result, pf)
	}

	return result, nil
}

func (r *frameRepository) getPredictionsByFrame(ctx context.Context, frameRowID string) ([]entity.Prediction, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var rows []PredictionDB

	argsKV := map[string]interface{}{
		"frame_id": frameRowID,
	}

	query, args, err := sqlx.Named(queryGetPredictionsByFrame, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("getPredictionsByFrame named query preparation err")
		return nil, err
	}

	query = r.q.Rebind(query)

	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("getPredictionsByFrame execution err")
		return nil, err
	}

	result := make([]entity.Prediction, 0, len(rows))
	for _, row := range rows {
		result = append(result, entity.Prediction{
			X:          floatPtrFromNull(row.X),
			Y:          floatPtrFromNull(row.Y),
			Width:      floatPtrFromNull(row.Width),
			Height:     floatPtrFromNull(row.Height),
			Confidence: row.Confidence.Float64,
			Class:      row.Class.String,
		})
	}

	return result, nil
}

func (r *frameRepository) makeUploadedFrame(row UploadedFrameDB) entity.UploadedFrame {
	return entity.UploadedFrame{
		ID:          row.ID.String,
		SessionID:   row.SessionID.String,
		FrameID:     row.FrameID.String,
		ImagePath:   row.ImagePath.String,
		ContentType: row.ContentType.String,
		SizeBytes:   row.SizeBytes.Int64,
		CreatedAt:   row.CreatedAt,
	}
}

func (r *frameRepository) makeProcessedFrame(row ProcessedFrameDB) entity.ProcessedFrame {
	pf := entity.ProcessedFrame{
		ID:                 row.ID.String,
		SessionID:          row.SessionID.String,
		FrameID:            row.FrameID.String,
		ImagePath:          row.ImagePath.String,
		ProcessedImagePath: row.ProcessedImagePath.String,
		Latitude:           row.Latitude.Float64,
		Longitude:          row.Longitude.Float64,
		Class:              row.Class.String,
		HasCrack:           row.HasCrack.Bool,
		CreatedAt:          row.CreatedAt,
	}

	if row.Confidence.Valid {
		confidence := row.Confidence.Float64
		pf.Confidence = &confidence
	}

	return pf
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtrFromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	value := v.Float64
	return &value
}

func newULID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
