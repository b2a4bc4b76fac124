package sessionService

import (
	sessionRepository "RailscanGolang/internal/api/session/repository"
	"RailscanGolang/internal/entity"
	redisPkg "RailscanGolang/pkg/redis"
	"RailscanGolang/pkg/s3"
	"RailscanGolang/pkg/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type ISessionService interface {
	CreateSession(ctx context.Context, name, description string) (entity.ScanSession, error)
	GetSessions(ctx context.Context) ([]entity.ScanSession, error)
	GetSessionByID(ctx context.Context, id string) (entity.ScanSession, error)
	CompleteSession(ctx context.Context, id string) error
	FailSession(ctx context.Context, id string) error
	SyncStats(ctx context.Context, id string, stats entity.SessionStats) error
	DeleteSession(ctx context.Context, id string) error
}

type sessionService struct {
	log               *logrus.Logger
	sessionRepository sessionRepository.Repository
	s3Client          s3.ItfS3
	redisServer       redisPkg.IRedis
	utils             utils.IUtils
}

func New(
	log *logrus.Logger,
	repo sessionRepository.Repository,
	s3Client s3.ItfS3,
	redisServer redisPkg.IRedis,
	utils utils.IUtils,
) ISessionService {
	return &sessionService{
		log:               log,
		sessionRepository: repo,
		s3Client:          s3Client,
		redisServer:       redisServer,
		utils:             utils,
	}
}
