// Package api serves the cell over HTTP: status, live status events, and
// the job, queue, material, log, and decrement operations.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/cellwatch/internal/cell"
	"github.com/zulandar/cellwatch/internal/decrement"
	"github.com/zulandar/cellwatch/internal/eventlog"
	"github.com/zulandar/cellwatch/internal/jobs"
	"github.com/zulandar/cellwatch/internal/models"
	"github.com/zulandar/cellwatch/internal/status"
)

// Service is the cell as the API sees it.
type Service interface {
	GetCurrentStatus(ctx context.Context) (*status.CurrentStatus, error)
	Subscribe() (<-chan *status.CurrentStatus, func())
	AddJobs(ctx context.Context, nj jobs.NewJobs, expectedPrevious string) (string, error)
	ArchiveJob(ctx context.Context, unique string) error
	AddUnallocatedCastingToQueue(ctx context.Context, part, queue string, position int, serial string) (*eventlog.QueuedMaterial, error)
	AddUnprocessedMaterialToQueue(ctx context.Context, unique string, lastProcess int, queue string, position int, serial string) (*eventlog.QueuedMaterial, error)
	SetMaterialInQueue(ctx context.Context, id int64, queue string, position int) error
	RemoveMaterialFromAllQueues(ctx context.Context, id int64) error
	DecrementJobQuantities(ctx context.Context, mark decrement.Mark, opts decrement.Options) ([]models.Decrement, error)
	GetLog(after int64) ([]models.LogEntry, error)
	GetLogForMaterial(id int64) ([]models.LogEntry, error)
	GetLogEntries(start, end time.Time) ([]models.LogEntry, error)
	GetLogForSerial(serial string) ([]models.LogEntry, error)
	GetLogForWorkorder(workorder string) ([]models.LogEntry, error)

	GetMaterialDetails(id int64) (*eventlog.MaterialDetails, error)
	AssignSerial(ctx context.Context, id int64, serial string) (*models.LogEntry, error)
	AssignWorkorder(ctx context.Context, id int64, workorder string) (*models.LogEntry, error)
	SignalInspection(ctx context.Context, id int64, insp cell.Inspection) (*models.LogEntry, error)
	CompleteInspection(ctx context.Context, id int64, insp cell.Inspection) (*models.LogEntry, error)
	AddMaterialNote(ctx context.Context, id int64, note string) (*models.LogEntry, error)
	OutstandingDemand(unique string, path int) (int, error)
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Service Service
	Port    int
	Out     io.Writer
}

// NewRouter returns the gin engine with every route registered.
func NewRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, svc)
	return router
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Service == nil {
		return fmt.Errorf("api: service is required")
	}
	if opts.Port <= 0 {
		opts.Port = 5000
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts.Service),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d/api/v1\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
