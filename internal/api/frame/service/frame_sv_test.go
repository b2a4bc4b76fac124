package frameService

import (
	"RailscanGolang/internal/api/frame"
	frameRepository "RailscanGolang/internal/api/frame/repository"
	"RailscanGolang/internal/api/session"
	"RailscanGolang/internal/entity"
	"RailscanGolang/pkg/utils"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func solidJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 60, G: 60, B: 60, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func floatPtr(v float64) *float64 { return &v }

// memRepo is an in-memory stand-in for the postgres-backed repository.
type memRepo struct {
	mu        sync.Mutex
	uploads   []entity.UploadedFrame
	processed map[string]entity.ProcessedFrame
	fixes     map[string][]entity.GpsFix
}

func newMemRepo() *memRepo {
	return &memRepo{
		processed: make(map[string]entity.ProcessedFrame),
		fixes:     make(map[string][]entity.GpsFix),
	}
}

func (m *memRepo) NewClient(tx bool) (frameRepository.Client, error) {
	return frameRepository.Client{
		Frame:    &memFrameClient{repo: m},
		Gps:      &memGpsClient{repo: m},
		Commit:   func() error { return nil },
		Rollback: func() error { return nil },
	}, nil
}

type memFrameClient struct {
	repo *memRepo
}

func (c *memFrameClient) RegisterUpload(_ context.Context, upload entity.UploadedFrame) error {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	for i, existing := range c.repo.uploads {
		if existing.SessionID == upload.SessionID && existing.FrameID == upload.FrameID {
			c.repo.uploads[i] = upload
			return nil
		}
	}
	c.repo.uploads = append(c.repo.uploads, upload)
	return nil
}

func (c *memFrameClient) GetUpload(_ context.Context, sessionID, frameID string) (entity.UploadedFrame, error) {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	for _, upload := range c.repo.uploads {
		if upload.SessionID == sessionID && upload.FrameID == frameID {
			return upload, nil
		}
	}
	return entity.UploadedFrame{}, frame.ErrFrameNotFound
}

func (c *memFrameClient) GetUploadsBySession(_ context.Context, sessionID string) ([]entity.UploadedFrame, error) {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	result := make([]entity.UploadedFrame, 0)
	for _, upload := range c.repo.uploads {
		if upload.SessionID == sessionID {
			result = append(result, upload)
		}
	}
	return result, nil
}

func (c *memFrameClient) UpsertProcessedFrame(_ context.Context, pf entity.ProcessedFrame) error {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	c.repo.processed[pf.SessionID+"/"+pf.FrameID] = pf
	return nil
}

func (c *memFrameClient) GetProcessedFramesBySession(_ context.Context, sessionID string) ([]entity.ProcessedFrame, error) {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	result := make([]entity.ProcessedFrame, 0)
	for _, pf := range c.repo.processed {
		if pf.SessionID == sessionID {
			result = append(result, pf)
		}
	}
	return result, nil
}

type memGpsClient struct {
	repo *memRepo
}

func (c *memGpsClient) InsertFixes(_ context.Context, sessionID string, fixes []entity.GpsFix) error {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	c.repo.fixes[sessionID] = append(c.repo.fixes[sessionID], fixes...)
	return nil
}

func (c *memGpsClient) GetFixesBySession(_ context.Context, sessionID string) ([]entity.GpsFix, error) {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	return c.repo.fixes[sessionID], nil
}

func (c *memGpsClient) DeleteFixesBySession(_ context.Context, sessionID string) error {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	delete(c.repo.fixes, sessionID)
	return nil
}

type stubSessionService struct {
	mu        sync.Mutex
	sessions  map[string]entity.ScanSession
	completed []string
	lastStats entity.SessionStats
}

func newStubSessionService(ids ...string) *stubSessionService {
	sessions := make(map[string]entity.ScanSession)
	for _, id := range ids {
		sessions[id] = entity.ScanSession{ID: id, Status: string(entity.SessionStatusInProgress)}
	}
	return &stubSessionService{sessions: sessions}
}

func (s *stubSessionService) CreateSession(_ context.Context, name, description string) (entity.ScanSession, error) {
	return entity.ScanSession{Name: name, Description: description}, nil
}

func (s *stubSessionService) GetSessions(_ context.Context) ([]entity.ScanSession, error) {
	return nil, nil
}

func (s *stubSessionService) GetSessionByID(_ context.Context, id string) (entity.ScanSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found, ok := s.sessions[id]
	if !ok {
		return entity.ScanSession{}, session.ErrSessionNotFound
	}
	return found, nil
}

func (s *stubSessionService) CompleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed = append(s.completed, id)
	return nil
}

func (s *stubSessionService) FailSession(_ context.Context, id string) error { return nil }

func (s *stubSessionService) SyncStats(_ context.Context, id string, stats entity.SessionStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastStats = stats
	return nil
}

func (s *stubSessionService) DeleteSession(_ context.Context, id string) error { return nil }

type stubS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newStubS3() *stubS3 {
	return &stubS3{objects: make(map[string][]byte)}
}

func (s *stubS3) UploadBytes(key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = data
	return "https://bucket.local/" + key, nil
}

func (s *stubS3) DownloadFile(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found: " + key)
	}
	return data, nil
}

func (s *stubS3) PresignUrl(fileUrl string) (string, error) {
	return "https://bucket.local/presigned/" + fileUrl, nil
}

func (s *stubS3) DeleteFile(key string) error { return nil }

func (s *stubS3) DeletePrefix(prefix string) error { return nil }

type stubDetector struct {
	mu          sync.Mutex
	predictions map[string][]entity.Prediction
	failures    map[string]error
	calls       []string
}

func newStubDetector() *stubDetector {
	return &stubDetector{
		predictions: make(map[string][]entity.Prediction),
		failures:    make(map[string]error),
	}
}

func (d *stubDetector) Detect(_ context.Context, _ []byte, filename string) (*entity.DetectionResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, filename)
	if err, failed := d.failures[filename]; failed {
		return nil, err
	}

	predictions := d.predictions[filename]
	if predictions == nil {
		predictions = []entity.Prediction{}
	}
	return &entity.DetectionResult{Predictions: predictions}, nil
}

type fixture struct {
	service  *frameService
	repo     *memRepo
	sessions *stubSessionService
	s3       *stubS3
	detector *stubDetector
}

func newFixture(t *testing.T, sessionIDs ...string) *fixture {
	t.Helper()

	repo := newMemRepo()
	sessions := newStubSessionService(sessionIDs...)
	s3Stub := newStubS3()
	detector := newStubDetector()

	svc := &frameService{
		log:             testLogger(),
		frameRepository: repo,
		sessionService:  sessions,
		s3Client:        s3Stub,
		roboflowClient:  detector,
		utils:           utils.New(),
		batchWorkers:    1,
		aggregators:     make(map[string]*Aggregator),
	}

	return &fixture{
		service:  svc,
		repo:     repo,
		sessions: sessions,
		s3:       s3Stub,
		detector: detector,
	}
}

func (f *fixture) seedUpload(t *testing.T, sessionID, frameID string, imageData []byte) {
	t.Helper()

	key := sessionID + "/" + frameID
	_, err := f.s3.UploadBytes(key, imageData, "image/jpeg")
	require.NoError(t, err)

	client, err := f.repo.NewClient(false)
	require.NoError(t, err)
	require.NoError(t, client.Frame.RegisterUpload(context.Background(), entity.UploadedFrame{
		ID:        frameID,
		SessionID: sessionID,
		FrameID:   frameID,
		ImagePath: key,
	}))
}

func (f *fixture) seedFixes(t *testing.T, sessionID string, fixes ...entity.GpsFix) {
	t.Helper()

	client, err := f.repo.NewClient(false)
	require.NoError(t, err)
	require.NoError(t, client.Gps.InsertFixes(context.Background(), sessionID, fixes))
}

func TestUploadGpsLog_ReplacesPreviousLog(t *testing.T) {
	f := newFixture(t, "sess-1")
	f.seedFixes(t, "sess-1", entity.GpsFix{Second: 99, Latitude: 1, Longitude: 1})

	csv := "timestamp,lat,lng,accuracy\n10,-6.2,106.8,4.5\nbad,row,here,x\n15,-6.3,106.9,5.0\n"
	result, err := f.service.UploadGpsLog(context.Background(), "sess-1", strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, 2, result.Parsed)
	require.Equal(t, 1, result.Skipped)

	client, err := f.repo.NewClient(false)
	require.NoError(t, err)
	fixes, err := client.Gps.GetFixesBySession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, fixes, 2)
	require.Equal(t, 10, fixes[0].Second)
}

func TestUploadGpsLog_EmptyLog(t *testing.T) {
	f := newFixture(t, "sess-1")

	csv := "timestamp,lat,lng,accuracy\nnot,numbers,at,all\n"
	_, err := f.service.UploadGpsLog(context.Background(), "sess-1", strings.NewReader(csv))
	require.ErrorIs(t, err, frame.ErrEmptyGpsLog)
}

func TestUploadGpsLog_UnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.UploadGpsLog(context.Background(), "missing", strings.NewReader("h\n1,2,3,4\n"))
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestProcessFrame_WithDetection(t *testing.T) {
	f := newFixture(t, "sess-1")
	f.seedUpload(t, "sess-1", "12.jpg", solidJPEG(t, 200, 100))
	f.seedFixes(t, "sess-1", entity.GpsFix{Second: 12, Latitude: -6.2, Longitude: 106.8})

	f.detector.predictions["12.jpg"] = []entity.Prediction{
		{X: floatPtr(100), Y: floatPtr(50), Width: floatPtr(40), Height: floatPtr(20), Confidence: 0.91, Class: "crack"},
	}

	result, err := f.service.ProcessFrame(context.Background(), "sess-1", "12.jpg")
	require.NoError(t, err)
	require.True(t, result.HasCrack)
	require.NotNil(t, result.Confidence)
	require.InDelta(t, 0.91, *result.Confidence, 1e-9)
	require.Equal(t, "crack", result.Class)
	require.InDelta(t, -6.2, result.Latitude, 1e-9)
	require.Equal(t, "sess-1/12_processed.jpg", result.ProcessedImagePath)

	annotated, err := f.s3.DownloadFile("sess-1/12_processed.jpg")
	require.NoError(t, err)
	require.NotEmpty(t, annotated)

	require.Equal(t, entity.SessionStats{TotalFrames: 1, ProcessedFrames: 1, TotalCracks: 1}, f.sessions.lastStats)
}

func TestProcessFrame_NoDetection(t *testing.T) {
	f := newFixture(t, "sess-1")
	f.seedUpload(t, "sess-1", "12.jpg", solidJPEG(t, 200, 100))
	f.seedFixes(t, "sess-1", entity.GpsFix{Second: 12, Latitude: -6.2, Longitude: 106.8})

	result, err := f.service.ProcessFrame(context.Background(), "sess-1", "12.jpg")
	require.NoError(t, err)
	require.False(t, result.HasCrack)
	require.Nil(t, result.Confidence)
	require.Empty(t, result.ProcessedImagePath)

	_, err = f.s3.DownloadFile("sess-1/12_processed.jpg")
	require.Error(t, err)
}

func TestProcessFrame_NoGpsMatch(t *testing.T) {
	f := newFixture(t, "sess-1")
	f.seedUpload(t, "sess-1", "30.jpg", solidJPEG(t, 100, 100))
	f.seedFixes(t, "sess-1", entity.GpsFix{Second: 10, Latitude: 1, Longitude: 1})

	_, err := f.service.ProcessFrame(context.Background(), "sess-1", "30.jpg")
	require.ErrorIs(t, err, frame.ErrNoGpsMatch)

	snapshot, err := f.service.Progress(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, 1, snapshot.NoGps)
	require.Equal(t, 0, snapshot.Processed)

	// Detection never ran for the unmatched frame.
	require.Empty(t, f.detector.calls)
}

func TestProcessFrame_MissingGpsLog(t *testing.T) {
	f := newFixture(t, "sess-1")
	f.seedUpload(t, "sess-1", "12.jpg", solidJPEG(t, 100, 100))

	_, err := f.service.ProcessFrame(context.Background(), "sess-1", "12.jpg")
	require.ErrorIs(t, err, frame.ErrGpsLogMissing)
}

func TestProcessFrame_ConflictWhilePending(t *testing.T) {
	f := newFixture(t, "sess-1")
	f.seedUpload(t, "sess-1", "12.jpg", solidJPEG(t, 100, 100))
	f.seedFixes(t, "sess-1", entity.GpsFix{Second: 12, Latitude: 1, Longitude: 1})

	agg := f.service.aggregatorFor("sess-1")
	require.True(t, agg.TryBeginFrame("12.jpg"))
	defer agg.FinishFrame("12.jpg")

	_, err := f.service.ProcessFrame(context.Background(), "sess-1", "12.jpg")
	require.ErrorIs(t, err, frame.ErrFrameAlreadyProcessing)
}

func TestProcessAll_MixedOutcomes(t *testing.T) {
	f := newFixture(t, "sess-1")
	img := solidJPEG(t, 100, 100)
	f.seedUpload(t, "sess-1", "10.jpg", img)
	f.seedUpload(t, "sess-1", "30.jpg", img)
	f.seedUpload(t, "sess-1", "11.jpg", img)
	f.seedFixes(t, "sess-1",
		entity.GpsFix{Second: 10, Latitude: 1, Longitude: 1},
		entity.GpsFix{Second: 11, Latitude: 2, Longitude: 2},
	)

	f.detector.predictions["10.jpg"] = []entity.Prediction{
		{X: floatPtr(50), Y: floatPtr(50), Width: floatPtr(10), Height: floatPtr(10), Confidence: 0.8, Class: "crack"},
	}
	f.detector.failures["11.jpg"] = errors.New("inference unavailable")

	result, err := f.service.ProcessAll(context.Background(), "sess-1")
	require.NoError(t, err)

	// Frames are walked in capture order, not upload order.
	require.Len(t, result.Frames, 3)
	require.Equal(t, "10.jpg", result.Frames[0].FrameID)
	require.Equal(t, frame.BatchOutcomeProcessed, result.Frames[0].Outcome)
	require.Equal(t, "11.jpg", result.Frames[1].FrameID)
	require.Equal(t, frame.BatchOutcomeFailed, result.Frames[1].Outcome)
	require.Contains(t, result.Frames[1].Error, "inference unavailable")
	require.Equal(t, "30.jpg", result.Frames[2].FrameID)
	require.Equal(t, frame.BatchOutcomeNoGps, result.Frames[2].Outcome)

	require.Equal(t, 1, result.Processed)
	require.Equal(t, 1, result.Detections)

	// One frame failed, so the session stays in progress.
	require.Empty(t, f.sessions.completed)
}

func TestProcessAll_CompletesSession(t *testing.T) {
	f := newFixture(t, "sess-1")
	img := solidJPEG(t, 100, 100)
	f.seedUpload(t, "sess-1", "10.jpg", img)
	f.seedUpload(t, "sess-1", "11.jpg", img)
	f.seedFixes(t, "sess-1",
		entity.GpsFix{Second: 10, Latitude: 1, Longitude: 1},
		entity.GpsFix{Second: 11, Latitude: 2, Longitude: 2},
	)

	result, err := f.service.ProcessAll(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)
	require.Equal(t, []string{"sess-1"}, f.sessions.completed)
	require.Equal(t, entity.SessionStats{TotalFrames: 2, ProcessedFrames: 2, TotalCracks: 0}, f.sessions.lastStats)
}

func TestProcessAll_SkipsAlreadyProcessed(t *testing.T) {
	f := newFixture(t, "sess-1")
	img := solidJPEG(t, 100, 100)
	f.seedUpload(t, "sess-1", "10.jpg", img)
	f.seedUpload(t, "sess-1", "11.jpg", img)
	f.seedFixes(t, "sess-1",
		entity.GpsFix{Second: 10, Latitude: 1, Longitude: 1},
		entity.GpsFix{Second: 11, Latitude: 2, Longitude: 2},
	)

	_, err := f.service.ProcessFrame(context.Background(), "sess-1", "10.jpg")
	require.NoError(t, err)
	require.Len(t, f.detector.calls, 1)

	result, err := f.service.ProcessAll(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, frame.BatchOutcomeSkipped, result.Frames[0].Outcome)
	require.Equal(t, frame.BatchOutcomeProcessed, result.Frames[1].Outcome)

	// Only the unprocessed frame hit the detector again.
	require.Len(t, f.detector.calls, 2)
}

func TestProcessAll_DoesNotRetryNoGpsFrames(t *testing.T) {
	f := newFixture(t, "sess-1")
	img := solidJPEG(t, 100, 100)
	f.seedUpload(t, "sess-1", "10.jpg", img)
	f.seedUpload(t, "sess-1", "30.jpg", img)
	f.seedFixes(t, "sess-1", entity.GpsFix{Second: 10, Latitude: 1, Longitude: 1})

	_, err := f.service.ProcessFrame(context.Background(), "sess-1", "30.jpg")
	require.ErrorIs(t, err, frame.ErrNoGpsMatch)

	result, err := f.service.ProcessAll(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, frame.BatchOutcomeProcessed, result.Frames[0].Outcome)
	require.Equal(t, frame.BatchOutcomeNoGps, result.Frames[1].Outcome)

	// The unmatched frame never reached the detector.
	require.Equal(t, []string{"10.jpg"}, f.detector.calls)
}

func TestProcessFrame_RenderFailureKeepsOriginalReference(t *testing.T) {
	f := newFixture(t, "sess-1")
	f.seedUpload(t, "sess-1", "12.jpg", []byte("not a jpeg"))
	f.seedFixes(t, "sess-1", entity.GpsFix{Second: 12, Latitude: 1, Longitude: 1})

	f.detector.predictions["12.jpg"] = []entity.Prediction{
		{X: floatPtr(10), Y: floatPtr(10), Width: floatPtr(4), Height: floatPtr(4), Confidence: 0.7, Class: "crack"},
	}

	result, err := f.service.ProcessFrame(context.Background(), "sess-1", "12.jpg")
	require.NoError(t, err)
	require.True(t, result.HasCrack)
	require.Empty(t, result.ProcessedImagePath)
}

func TestProcessAll_BatchConflict(t *testing.T) {
	f := newFixture(t, "sess-1")
	f.seedUpload(t, "sess-1", "10.jpg", solidJPEG(t, 100, 100))
	f.seedFixes(t, "sess-1", entity.GpsFix{Second: 10, Latitude: 1, Longitude: 1})

	agg := f.service.aggregatorFor("sess-1")
	require.True(t, agg.TryBeginBatch())
	defer agg.EndBatch()

	_, err := f.service.ProcessAll(context.Background(), "sess-1")
	require.ErrorIs(t, err, frame.ErrBatchAlreadyRunning)
}

func TestProcessAll_NoGpsLog(t *testing.T) {
	f := newFixture(t, "sess-1")
	f.seedUpload(t, "sess-1", "10.jpg", solidJPEG(t, 100, 100))

	_, err := f.service.ProcessAll(context.Background(), "sess-1")
	require.ErrorIs(t, err, frame.ErrGpsLogMissing)
}

func TestGetResults_PresignsPaths(t *testing.T) {
	f := newFixture(t, "sess-1")
	f.seedUpload(t, "sess-1", "12.jpg", solidJPEG(t, 200, 100))
	f.seedFixes(t, "sess-1", entity.GpsFix{Second: 12, Latitude: -6.2, Longitude: 106.8})

	f.detector.predictions["12.jpg"] = []entity.Prediction{
		{X: floatPtr(100), Y: floatPtr(50), Width: floatPtr(40), Height: floatPtr(20), Confidence: 0.91, Class: "crack"},
	}

	_, err := f.service.ProcessFrame(context.Background(), "sess-1", "12.jpg")
	require.NoError(t, err)

	results, err := f.service.GetResults(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, 1, results.Total)
	require.Equal(t, "https://bucket.local/presigned/sess-1/12.jpg", results.Results[0].ImagePath)
	require.Equal(t, "https://bucket.local/presigned/sess-1/12_processed.jpg", results.Results[0].ProcessedImagePath)
}

func TestProgress_TotalFromUploads(t *testing.T) {
	f := newFixture(t, "sess-1")
	img := solidJPEG(t, 100, 100)
	f.seedUpload(t, "sess-1", "10.jpg", img)
	f.seedUpload(t, "sess-1", "11.jpg", img)
	f.seedFixes(t, "sess-1", entity.GpsFix{Second: 10, Latitude: 1, Longitude: 1})

	_, err := f.service.ProcessFrame(context.Background(), "sess-1", "10.jpg")
	require.NoError(t, err)

	snapshot, err := f.service.Progress(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, 2, snapshot.Total)
	require.Equal(t, 1, snapshot.Processed)
	require.Equal(t, 0, snapshot.Pending)
}
