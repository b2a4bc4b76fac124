package frameService

import (
	"RailscanGolang/internal/api/frame"
	frameRepository "RailscanGolang/internal/api/frame/repository"
	sessionService "RailscanGolang/internal/api/session/service"
	"RailscanGolang/pkg/roboflow"
	"RailscanGolang/pkg/s3"
	"RailscanGolang/pkg/utils"
	"io"
	"mime/multipart"
	"os"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const defaultBatchWorkers = 1

type IFrameService interface {
	UploadGpsLog(ctx context.Context, sessionID string, logFile io.Reader) (frame.GpsLogUploadResponse, error)
	UploadFrames(ctx context.Context, sessionID string, files []*multipart.FileHeader) (frame.FrameUploadResponse, error)
	ProcessFrame(ctx context.Context, sessionID, frameID string) (frame.ProcessedFrameResponse, error)
	ProcessAll(ctx context.Context, sessionID string) (frame.BatchProcessResponse, error)
	GetResults(ctx context.Context, sessionID string) (frame.ResultsResponse, error)
	Progress(ctx context.Context, sessionID string) (frame.ProgressSnapshot, error)
}

type frameService struct {
	log             *logrus.Logger
	frameRepository frameRepository.Repository
	sessionService  sessionService.ISessionService
	s3Client        s3.ItfS3
	roboflowClient  roboflow.IRoboflow
	utils           utils.IUtils
	batchWorkers    int

	mu          sync.Mutex
	aggregators map[string]*Aggregator
}

func New(
	log *logrus.Logger,
	repo frameRepository.Repository,
	sessionSvc sessionService.ISessionService,
	s3Client s3.ItfS3,
	roboflowClient roboflow.IRoboflow,
	utils utils.IUtils,
) IFrameService {
	return &frameService{
		log:             log,
		frameRepository: repo,
		sessionService:  sessionSvc,
		s3Client:        s3Client,
		roboflowClient:  roboflowClient,
		utils:           utils,
		batchWorkers:    batchWorkersFromEnv(log),
		aggregators:     make(map[string]*Aggregator),
	}
}

func (s *frameService) aggregatorFor(sessionID string) *Aggregator {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, ok := s.aggregators[sessionID]
	if !ok {
		agg = NewAggregator(sessionID)
		s.aggregators[sessionID] = agg
	}
	return agg
}

func batchWorkersFromEnv(log *logrus.Logger) int {
	raw := os.Getenv("BATCH_WORKERS")
	if raw == "" {
		return defaultBatchWorkers
	}

	workers, err := strconv.Atoi(raw)
	if err != nil || workers < 1 {
		log.WithFields(logrus.Fields{
			"BATCH_WORKERS": raw,
		}).Warn("Invalid BATCH_WORKERS value, falling back to default")
		return defaultBatchWorkers
	}
	return workers
}
