package config

import (
	"RailscanGolang/database/postgres"
	frameHandler "RailscanGolang/internal/api/frame/handler"
	frameRepository "RailscanGolang/internal/api/frame/repository"
	frameService "RailscanGolang/internal/api/frame/service"
	sessionHandler "RailscanGolang/internal/api/session/handler"
	sessionRepository "RailscanGolang/internal/api/session/repository"
	sessionService "RailscanGolang/internal/api/session/service"
	"RailscanGolang/internal/middleware"
	"RailscanGolang/pkg/redis"
	"RailscanGolang/pkg/roboflow"
	"RailscanGolang/pkg/s3"
	"RailscanGolang/pkg/utils"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine         *fiber.App
	db             *sqlx.DB
	log            *logrus.Logger
	middleware     middleware.Middleware
	validator      *validator.Validate
	utils          utils.IUtils
	handlers       []handler
	redisServer    redis.IRedis
	s3Client       s3.ItfS3
	roboflowClient roboflow.IRoboflow
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithRoboflowClient() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before the inference client")
		}
		client, err := roboflow.New(s.log)
		if err != nil {
			s.log.Errorf("Failed to initialize inference client: %v", err)
			return fmt.Errorf("failed to create inference client: %w", err)
		}
		s.roboflowClient = client
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Session Domain
	sessionRepo := sessionRepository.New(s.db, s.log)
	sessionServices := sessionService.New(s.log, sessionRepo, s.s3Client, s.redisServer, s.utils)
	sessionHandlers := sessionHandler.New(s.log, s.validator, s.middleware, sessionServices)

	// Frame Domain
	frameRepo := frameRepository.New(s.db, s.log)
	frameServices := frameService.New(s.log, frameRepo, sessionServices, s.s3Client, s.roboflowClient, s.utils)
	frameHandlers := frameHandler.New(s.log, s.validator, s.middleware, frameServices, s.utils)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, sessionHandlers, frameHandlers)
}

func (s *Server) Run() error {
	router := s.engine.Group("/api/v1")
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
