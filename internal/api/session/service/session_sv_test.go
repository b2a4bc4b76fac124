package sessionService

import (
	"RailscanGolang/internal/api/session"
	sessionRepository "RailscanGolang/internal/api/session/repository"
	"RailscanGolang/internal/entity"
	redisPkg "RailscanGolang/pkg/redis"
	"RailscanGolang/pkg/utils"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]entity.ScanSession
	reads    int
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]entity.ScanSession)}
}

func (m *memSessionRepo) NewClient(tx bool) (sessionRepository.Client, error) {
	return sessionRepository.Client{
		Session:  &memSessionClient{repo: m},
		Commit:   func() error { return nil },
		Rollback: func() error { return nil },
	}, nil
}

type memSessionClient struct {
	repo *memSessionRepo
}

func (c *memSessionClient) CreateSession(_ context.Context, s entity.ScanSession) error {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	c.repo.sessions[s.ID] = s
	return nil
}

func (c *memSessionClient) GetSessionByID(_ context.Context, id string) (entity.ScanSession, error) {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	c.repo.reads++
	found, ok := c.repo.sessions[id]
	if !ok {
		return entity.ScanSession{}, session.ErrSessionNotFound
	}
	return found, nil
}

func (c *memSessionClient) GetSessions(_ context.Context) ([]entity.ScanSession, error) {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	result := make([]entity.ScanSession, 0, len(c.repo.sessions))
	for _, s := range c.repo.sessions {
		result = append(result, s)
	}
	return result, nil
}

func (c *memSessionClient) UpdateSessionStats(_ context.Context, id string, stats entity.SessionStats) error {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	found, ok := c.repo.sessions[id]
	if !ok {
		return session.ErrSessionNotFound
	}
	found.TotalFrames = stats.TotalFrames
	found.ProcessedFrames = stats.ProcessedFrames
	found.TotalCracks = stats.TotalCracks
	c.repo.sessions[id] = found
	return nil
}

func (c *memSessionClient) UpdateSessionStatus(_ context.Context, id string, status entity.SessionStatus) error {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	found, ok := c.repo.sessions[id]
	if !ok {
		return session.ErrSessionNotFound
	}
	found.Status = string(status)
	c.repo.sessions[id] = found
	return nil
}

func (c *memSessionClient) DeleteSession(_ context.Context, id string) error {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	if _, ok := c.repo.sessions[id]; !ok {
		return session.ErrSessionNotFound
	}
	delete(c.repo.sessions, id)
	return nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) SetCache(_ context.Context, key string, payload []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = payload
	return nil
}

func (c *memCache) GetCache(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, ok := c.entries[key]
	if !ok {
		return nil, redisPkg.ErrCacheMiss
	}
	return payload, nil
}

func (c *memCache) InvalidateCache(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

type stubS3 struct {
	deletedPrefixes []string
}

func (s *stubS3) UploadBytes(key string, data []byte, contentType string) (string, error) {
	return key, nil
}
func (s *stubS3) DownloadFile(key string) ([]byte, error) { return nil, nil }
func (s *stubS3) PresignUrl(fileUrl string) (string, error) {
	return fileUrl, nil
}
func (s *stubS3) DeleteFile(key string) error { return nil }
func (s *stubS3) DeletePrefix(prefix string) error {
	s.deletedPrefixes = append(s.deletedPrefixes, prefix)
	return nil
}

func newTestService(repo *memSessionRepo, cache *memCache, s3Stub *stubS3) ISessionService {
	return New(testLogger(), repo, s3Stub, cache, utils.New())
}

func TestCreateSession_StartsInProgress(t *testing.T) {
	repo := newMemSessionRepo()
	svc := newTestService(repo, newMemCache(), &stubS3{})

	created, err := svc.CreateSession(context.Background(), "east line", "morning run")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "east line", created.Name)
	require.Equal(t, string(entity.SessionStatusInProgress), created.Status)
	require.Zero(t, created.TotalFrames)
}

func TestGetSessionByID_CachesReads(t *testing.T) {
	repo := newMemSessionRepo()
	cache := newMemCache()
	svc := newTestService(repo, cache, &stubS3{})

	created, err := svc.CreateSession(context.Background(), "east line", "")
	require.NoError(t, err)

	readsAfterCreate := repo.reads

	first, err := svc.GetSessionByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, first.ID)

	second, err := svc.GetSessionByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// The second read came from the cache.
	require.Equal(t, readsAfterCreate+1, repo.reads)
}

func TestGetSessionByID_NotFound(t *testing.T) {
	svc := newTestService(newMemSessionRepo(), newMemCache(), &stubS3{})

	_, err := svc.GetSessionByID(context.Background(), "nope")
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestSyncStats_InvalidatesCache(t *testing.T) {
	repo := newMemSessionRepo()
	cache := newMemCache()
	svc := newTestService(repo, cache, &stubS3{})

	created, err := svc.CreateSession(context.Background(), "east line", "")
	require.NoError(t, err)

	_, err = svc.GetSessionByID(context.Background(), created.ID)
	require.NoError(t, err)

	stats := entity.SessionStats{TotalFrames: 10, ProcessedFrames: 4, TotalCracks: 2}
	require.NoError(t, svc.SyncStats(context.Background(), created.ID, stats))

	refreshed, err := svc.GetSessionByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, 10, refreshed.TotalFrames)
	require.Equal(t, 4, refreshed.ProcessedFrames)
	require.Equal(t, 2, refreshed.TotalCracks)
}

func TestCompleteSession_UpdatesStatus(t *testing.T) {
	repo := newMemSessionRepo()
	svc := newTestService(repo, newMemCache(), &stubS3{})

	created, err := svc.CreateSession(context.Background(), "east line", "")
	require.NoError(t, err)

	require.NoError(t, svc.CompleteSession(context.Background(), created.ID))

	refreshed, err := svc.GetSessionByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, string(entity.SessionStatusCompleted), refreshed.Status)
}

func TestDeleteSession_RemovesBlobsFirst(t *testing.T) {
	repo := newMemSessionRepo()
	s3Stub := &stubS3{}
	svc := newTestService(repo, newMemCache(), s3Stub)

	created, err := svc.CreateSession(context.Background(), "east line", "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(context.Background(), created.ID))
	require.Equal(t, []string{created.ID + "/"}, s3Stub.deletedPrefixes)

	_, err = svc.GetSessionByID(context.Background(), created.ID)
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestDeleteSession_UnknownSession(t *testing.T) {
	s3Stub := &stubS3{}
	svc := newTestService(newMemSessionRepo(), newMemCache(), s3Stub)

	err := svc.DeleteSession(context.Background(), "nope")
	require.ErrorIs(t, err, session.ErrSessionNotFound)
	require.Empty(t, s3Stub.deletedPrefixes)
}
