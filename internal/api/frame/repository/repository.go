package frameRepository

import (
	"RailscanGolang/internal/entity"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type SQLExecutor interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var sqlExecutor SQLExecutor
	var commitFunc, rollbackFunc func() error

	sqlExecutor = r.DB

	if tx {
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		sqlExecutor = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		Frame:    &frameRepository{q: sqlExecutor, log: r.log},
		Gps:      &gpsRepository{q: sqlExecutor, log: r.log},
		Commit:   commitFunc,
		Rollback: rollbackFunc,
	}, nil
}

type Client struct {
	Frame interface {
		RegisterUpload(ctx context.Context, upload entity.UploadedFrame) error
		GetUpload(ctx context.Context, sessionID, frameID string) (entity.UploadedFrame, error)
		GetUploadsBySession(ctx context.Context, sessionID string) ([]entity.UploadedFrame, error)
		UpsertProcessedFrame(ctx context.Context, frame entity.ProcessedFrame) error
		GetProcessedFramesBySession(ctx context.Context, sessionID string) ([]entity.ProcessedFrame, error)
	}

	Gps interface {
		InsertFixes(ctx context.Context, sessionID string, fixes []entity.GpsFix) error
		GetFixesBySession(ctx context.Context, sessionID string) ([]entity.GpsFix, error)
		DeleteFixesBySession(ctx context.Context, sessionID string) error
	}

	Commit   func() error
	Rollback func() error
}

type frameRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}

type gpsRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
