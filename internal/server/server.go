// Package server provides the HTTP API for kakushi.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kakushi/internal/config"
	"github.com/hyperjump/kakushi/internal/jobs"
	"github.com/hyperjump/kakushi/internal/keyword"
	"github.com/hyperjump/kakushi/internal/models"
	"github.com/hyperjump/kakushi/internal/pipeline"
	"github.com/hyperjump/kakushi/internal/storage"
	"github.com/hyperjump/kakushi/pkg/utils"
)

// maxBodyBytes caps request bodies; batches carry whole documents.
const maxBodyBytes = 64 << 20

// WatchService manages inbox directories at runtime.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the kakushi API.
type Server struct {
	processor *pipeline.Processor
	tracker   jobs.Tracker
	storage   storage.Storage
	index     keyword.RecordIndex
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server

	watch       WatchService
	configPath  string
	appConfig   *config.Config
	appConfigMu sync.Mutex
	jobsCtx     context.Context
	cancelJobs  context.CancelFunc
	runningJobs sync.WaitGroup
}

// NewServer creates a server with the given dependencies. watch may be nil when no
// inbox is configured. When configPath and appConfig are set, watch directory changes
// are written back to the config file.
func NewServer(
	processor *pipeline.Processor,
	tracker jobs.Tracker,
	store storage.Storage,
	index keyword.RecordIndex,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
	appConfig *config.Config,
) *Server {
	logger = utils.LoggerOrNop(logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		processor:  processor,
		tracker:    tracker,
		storage:    store,
		index:      index,
		config:     cfg,
		logger:     logger,
		watch:      watch,
		configPath: configPath,
		appConfig:  appConfig,
		jobsCtx:    ctx,
		cancelJobs: cancel,
	}
}

// Routes returns the API router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/jobs", s.handleCreateJob)
	r.Get("/api/v1/jobs/{id}", s.handleGetJob)
	r.Get("/api/v1/jobs/{id}/result", s.handleJobResult)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)
	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server, then cancels running jobs and waits for them
// to record their final state.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	s.cancelJobs()
	done := make(chan struct{})
	go func() {
		s.runningJobs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("jobs still running at shutdown")
	}
	return err
}

// runJob processes docs in the background under the server's job context.
func (s *Server) runJob(job *jobs.Job, docs []models.DocumentInput, opts pipeline.Options) {
	s.runningJobs.Add(1)
	go func() {
		defer s.runningJobs.Done()
		res, err := s.processor.Process(s.jobsCtx, job, docs, opts)
		if err != nil {
			s.logger.Warn("job interrupted", zap.String("job_id", job.ID), zap.Error(err))
			return
		}
		s.logger.Info("job finished",
			zap.String("job_id", job.ID),
			zap.Int("treated", len(res.Documents)),
			zap.Int("non_treated", len(res.NonTreated)),
		)
	}()
}
