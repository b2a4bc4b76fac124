package sessionService

import (
	"RailscanGolang/internal/api/session"
	"RailscanGolang/internal/entity"
	contextPkg "RailscanGolang/pkg/context"
	redisPkg "RailscanGolang/pkg/redis"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const statsCacheTTL = 30 * time.Second

func statsCacheKey(sessionID string) string {
	return fmt.Sprintf("session:stats:%s", sessionID)
}

func (s *sessionService) CreateSession(ctx context.Context, name, description string) (entity.ScanSession, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.sessionRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return entity.ScanSession{}, err
	}

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate session id")
		return entity.ScanSession{}, err
	}

	newSession := entity.ScanSession{
		ID:          id,
		Name:        name,
		Description: description,
		Status:      string(entity.SessionStatusInProgress),
	}

	if err := repo.Session.CreateSession(ctx, newSession); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to persist session")
		return entity.ScanSession{}, session.ErrCreateSession
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": id,
		"name":       name,
	}).Info("Scan session created")

	return repo.Session.GetSessionByID(ctx, id)
}

func (s *sessionService) GetSessions(ctx context.Context) ([]entity.ScanSession, error) {
	repo, err := s.sessionRepository.NewClient(false)
	if err != nil {
		return nil, err
	}

	return repo.Session.GetSessions(ctx)
}

// GetSessionByID reads through the stats cache: the session row is polled on
// an interval by the UI while a batch runs, so the hot path avoids Postgres.
func (s *sessionService) GetSessionByID(ctx context.Context, id string) (entity.ScanSession, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if cached, err := s.redisServer.GetCache(ctx, statsCacheKey(id)); err == nil {
		var cachedSession entity.ScanSession
		if err := json.Unmarshal(cached, &cachedSession); err == nil {
			return cachedSession, nil
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": id,
		}).Warn("Corrupt session stats cache entry, falling back to database")
	} else if !errors.Is(err, redisPkg.ErrCacheMiss) {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Session stats cache read failed")
	}

	repo, err := s.sessionRepository.NewClient(false)
	if err != nil {
		return entity.ScanSession{}, err
	}

	found, err := repo.Session.GetSessionByID(ctx, id)
	if err != nil {
		return entity.ScanSession{}, err
	}

	if payload, err := json.Marshal(found); err == nil {
		if err := s.redisServer.SetCache(ctx, statsCacheKey(id), payload, statsCacheTTL); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": id,
			}).Warn("Failed to cache session stats")
		}
	}

	return found, nil
}

func (s *sessionService) CompleteSession(ctx context.Context, id string) error {
	return s.updateStatus(ctx, id, entity.SessionStatusCompleted)
}

func (s *sessionService) FailSession(ctx context.Context, id string) error {
	return s.updateStatus(ctx, id, entity.SessionStatusFailed)
}

func (s *sessionService) updateStatus(ctx context.Context, id string, status entity.SessionStatus) error {
	requestID := contextPkg.GetRequestID(ctx)

	if !entity.IsValidSessionStatus(string(status)) {
		return session.ErrInvalidSessionStatus
	}

	repo, err := s.sessionRepository.NewClient(false)
	if err != nil {
		return err
	}

	if err := repo.Session.UpdateSessionStatus(ctx, id, status); err != nil {
		return err
	}

	s.invalidateStats(ctx, id)

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": id,
		"status":     status,
	}).Info("Session status updated")

	return nil
}

func (s *sessionService) SyncStats(ctx context.Context, id string, stats entity.SessionStats) error {
	repo, err := s.sessionRepository.NewClient(false)
	if err != nil {
		return err
	}

	if err := repo.Session.UpdateSessionStats(ctx, id, stats); err != nil {
		return err
	}

	s.invalidateStats(ctx, id)
	return nil
}

// DeleteSession removes the row and every blob under the session's S3
// prefix. Frame and prediction rows cascade from the session row.
func (s *sessionService) DeleteSession(ctx context.Context, id string) error {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.sessionRepository.NewClient(false)
	if err != nil {
		return err
	}

	if _, err := repo.Session.GetSessionByID(ctx, id); err != nil {
		return err
	}

	if err := s.s3Client.DeletePrefix(id + "/"); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": id,
			"error":      err.Error(),
		}).Error("Failed to delete session blobs")
		return err
	}

	if err := repo.Session.DeleteSession(ctx, id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return err
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": id,
			"error":      err.Error(),
		}).Error("Failed to delete session row")
		return session.ErrDeleteSession
	}

	s.invalidateStats(ctx, id)

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": id,
	}).Info("Session deleted")

	return nil
}

func (s *sessionService) invalidateStats(ctx context.Context, id string) {
	if err := s.redisServer.InvalidateCache(ctx, statsCacheKey(id)); err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": id,
		}).Warn("Failed to invalidate session stats cache")
	}
}
