package server

import (
	"context"
	"log/slog"
	"sync"

	"auticare/app/api"
	"auticare/app/middleware"
	"auticare/config"
	"auticare/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

var fiberConfig = fiber.Config{
	ErrorHandler:          api.ErrorHandler,
	DisableStartupMessage: true,
	BodyLimit:             20 * 1024 * 1024,
}

type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	app  *fiber.App
	deps *Deps
}

func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
	}
}

// NewApp registers the routes over already built dependencies.
func NewApp(deps *Deps, m *metrics.Metrics, uploadDir string, logger *slog.Logger) *fiber.App {
	var (
		app            = fiber.New(fiberConfig)
		checkHandler   = api.NewCheckHandler()
		chatHandler    = api.NewChatHandler(deps.Doctor, deps.Patient)
		recordsHandler = api.NewRecordsHandler(deps.Records)
		fileHandler    = api.NewFileHandler(uploadDir)
		configHandler  = api.NewConfigHandler(map[string]api.Describer{
			"doctor":  deps.DoctorGateway,
			"patient": deps.PatientGateway,
		})
		apiv1 = app.Group("/api")
	)

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Observe(m, logger))

	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	apiv1.Get("/health", checkHandler.HandleHealthy)
	apiv1.Post("/doctor/chat", chatHandler.HandleDoctorChat)
	apiv1.Get("/doctor/memory", chatHandler.HandleDoctorMemory)
	apiv1.Post("/doctor/clear-memory", chatHandler.HandleDoctorClearMemory)
	apiv1.Get("/doctor/patients/search", recordsHandler.HandleSearch)
	apiv1.Post("/patient/chat", chatHandler.HandlePatientChat)
	apiv1.Post("/user/chat", chatHandler.HandlePatientChat)
	apiv1.Get("/providers", configHandler.HandleProviders)
	apiv1.Post("/knowledge/upload", fileHandler.HandleUpload)

	return app
}

// Run bootstraps the bots and blocks serving HTTP until Stop is called.
func (s *Server) Run(ctx context.Context) error {
	deps, err := Bootstrap(ctx, s.cfg, s.metrics, s.logger)
	if err != nil {
		return err
	}
	app := NewApp(deps, s.metrics, s.cfg.Loader.SourceDir, s.logger)
	s.mu.Lock()
	s.deps, s.app = deps, app
	s.mu.Unlock()

	s.logger.Info("server listening", "addr", s.cfg.ServerAddr)
	if err := app.Listen(s.cfg.ServerAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	app, deps := s.app, s.deps
	s.mu.Unlock()
	defer func() {
		if deps != nil {
			deps.Close()
		}
		s.logger.Info("server stopped")
	}()
	if app == nil {
		return nil
	}
	return app.ShutdownWithContext(ctx)
}
