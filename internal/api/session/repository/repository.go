package sessionRepository

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
		Session:  &sessionRepository{q: sqlExecutor, log: r.log},
		Commit:   commitFunc,
		Rollback: rollbackFunc,
	}, nil
}

type Client struct {
	Session interface {
		CreateSession(ctx context.Context, session entity.ScanSession) error
		GetSessionByID(ctx context.Context, id string) (entity.ScanSession, error)
		GetSessions(ctx context.Context) ([]entity.ScanSession, error)
		UpdateSessionStats(ctx context.Context, id string, stats entity.SessionStats) error
		UpdateSessionStatus(ctx context.Context, id string, status entity.SessionStatus) error
		DeleteSession(ctx context.Context, id string) error
	}

	Commit   func() error
	Rollback func() error
}

type sessionRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
