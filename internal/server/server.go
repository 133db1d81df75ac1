// Package server wires the store, services, and HTTP surface together and
// runs the background schedulers.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/capitao/athena-tasks/internal/config"
	"github.com/capitao/athena-tasks/internal/handlers"
	"github.com/capitao/athena-tasks/internal/middleware"
	"github.com/capitao/athena-tasks/internal/services"
	"github.com/capitao/athena-tasks/internal/store"
)

type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	Store    *store.Store
	Tasks    *services.TaskService
	Projects *services.ProjectService
	Archive  *services.ArchiveService
	Backup   *services.BackupService
	Stats    *services.StatsService

	engine *gin.Engine
}

// New builds a fully wired server from the configuration.
func New(cfg *config.Config) (*Server, error) {
	st, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	backup := services.NewBackupService(st, cfg.BackupDir)
	s := &Server{
		cfg:      cfg,
		logger:   slog.With("component", "server"),
		Store:    st,
		Tasks:    services.NewTaskService(st),
		Projects: services.NewProjectService(st),
		Archive:  services.NewArchiveService(st),
		Backup:   backup,
		Stats:    services.NewStatsService(st, backup),
	}

	gin.SetMode(cfg.GinMode)
	s.engine = s.buildRouter()
	return s, nil
}

// Router returns the HTTP handler, exposed for tests.
func (s *Server) Router() *gin.Engine {
	return s.engine
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	healthHandler := handlers.NewHealthHandler()
	taskHandler := handlers.NewTaskHandler(s.Tasks)
	projectHandler := handlers.NewProjectHandler(s.Projects)
	statsHandler := handlers.NewStatsHandler(s.Stats)
	adminHandler := handlers.NewAdminHandler(s.Archive, s.Backup)

	r.GET("/api/health", healthHandler.Health)

	api := r.Group("/api")
	api.Use(middleware.RequireAuth(s.cfg.AuthToken))
	{
		tasks := api.Group("/tasks")
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.PATCH("/:id", taskHandler.UpdateTask)
			tasks.POST("/:id/complete", taskHandler.CompleteTask)
			tasks.POST("/:id/reopen", taskHandler.ReopenTask)
			tasks.POST("/:id/verify", taskHandler.VerifyTask)
			tasks.POST("/:id/subtasks", taskHandler.AddSubtask)
			tasks.PATCH("/:id/subtasks/:subtask_id", taskHandler.ToggleSubtask)
			tasks.DELETE("/:id/subtasks/:subtask_id", taskHandler.RemoveSubtask)
		}

		projects := api.Group("/projects")
		{
			projects.GET("", projectHandler.ListProjects)
			projects.POST("", projectHandler.CreateProject)
			projects.GET("/:id", projectHandler.GetProject)
			projects.POST("/:id/status", projectHandler.SetProjectStatus)
		}

		api.GET("/stats", statsHandler.GetStats)

		admin := api.Group("/admin")
		{
			admin.POST("/archive", adminHandler.RunArchive)
			admin.POST("/backup", adminHandler.RunBackup)
		}
	}

	return r
}

// Run serves HTTP until ctx is cancelled, with the backup and archival
// schedulers running alongside. Shutdown waits for the schedulers so the
// final best-effort snapshot can land.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.AuthToken == "" {
		s.logger.Warn("AUTH_TOKEN is empty; API requests with an empty bearer token will be accepted")
	}

	schedCtx, stopSched := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Backup.Start(schedCtx)
	}()
	go func() {
		defer wg.Done()
		s.Archive.Start(schedCtx)
	}()

	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		stopSched()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("forced shutdown after timeout")
	}

	stopSched()
	wg.Wait()
	return err
}
