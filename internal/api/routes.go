package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/cellwatch/internal/decrement"
	"github.com/zulandar/cellwatch/internal/jobs"
	"github.com/zulandar/cellwatch/internal/models"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, svc Service) {
	v1 := router.Group("/api/v1")

	v1.GET("/status", handleStatus(svc))
	v1.GET("/events", handleEvents(svc))

	v1.POST("/jobs", handleAddJobs(svc))
	v1.POST("/jobs/:unique/archive", handleArchiveJob(svc))
	v1.GET("/jobs/:unique/demand", handleDemand(svc))

	v1.POST("/queues/:queue/castings", handleAddCasting(svc))
	v1.POST("/queues/:queue/material", handleAddMaterial(svc))
	v1.PUT("/material/:id/queue", handleSetMaterialQueue(svc))
	v1.DELETE("/material/:id/queue", handleRemoveMaterialQueue(svc))

	v1.GET("/material/:id", handleMaterialDetails(svc))
	v1.POST("/material/:id/serial", handleAssignSerial(svc))
	v1.POST("/material/:id/workorder", handleAssignWorkorder(svc))
	v1.POST("/material/:id/inspections", handleInspection(svc.SignalInspection))
	v1.POST("/material/:id/inspections/result", handleInspection(svc.CompleteInspection))
	v1.POST("/material/:id/notes", handleMaterialNote(svc))

	v1.GET("/material/:id/log", handleMaterialLog(svc))
	v1.GET("/log", handleLog(svc))
	v1.GET("/log/serial/:serial", handleLogFor(svc.GetLogForSerial, "serial"))
	v1.GET("/log/workorder/:workorder", handleLogFor(svc.GetLogForWorkorder, "workorder"))

	v1.POST("/decrements", handleDecrement(svc))
}

type addJobsRequest struct {
	ScheduleID                 string       `json:"schedule_id"`
	Jobs                       []models.Job `json:"jobs" binding:"required"`
	ExpectedPreviousScheduleID string       `json:"expected_previous_schedule_id"`
}

type addCastingRequest struct {
	Part     string `json:"part" binding:"required"`
	Position *int   `json:"position"`
	Serial   string `json:"serial"`
}

type addMaterialRequest struct {
	JobUnique   string `json:"job_unique" binding:"required"`
	LastProcess int    `json:"last_process"`
	Position    *int   `json:"position"`
	Serial      string `json:"serial"`
}

type setQueueRequest struct {
	Queue    string `json:"queue" binding:"required"`
	Position *int   `json:"position"`
}

// positionOr returns *p, or -1 (append) when unset.
func positionOr(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

func materialID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid material id "+strconv.Quote(c.Param("id")))
		return 0, false
	}
	return id, true
}

func handleStatus(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.GetCurrentStatus(c.Request.Context())
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handleAddJobs(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addJobsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		id, err := svc.AddJobs(c.Request.Context(), jobs.NewJobs{ScheduleID: req.ScheduleID, Jobs: req.Jobs}, req.ExpectedPreviousScheduleID)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"schedule_id": id})
	}
}

func handleArchiveJob(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.ArchiveJob(c.Request.Context(), c.Param("unique")); err != nil {
			abortWith(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleAddCasting(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addCastingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		qm, err := svc.AddUnallocatedCastingToQueue(c.Request.Context(), req.Part, c.Param("queue"), positionOr(req.Position), req.Serial)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusCreated, qm)
	}
}

func handleAddMaterial(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addMaterialRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		qm, err := svc.AddUnprocessedMaterialToQueue(c.Request.Context(), req.JobUnique, req.LastProcess, c.Param("queue"), positionOr(req.Position), req.Serial)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusCreated, qm)
	}
}

func handleSetMaterialQueue(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := materialID(c)
		if !ok {
			return
		}
		var req setQueueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svc.SetMaterialInQueue(c.Request.Context(), id, req.Queue, positionOr(req.Position)); err != nil {
			abortWith(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleRemoveMaterialQueue(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := materialID(c)
		if !ok {
			return
		}
		if err := svc.RemoveMaterialFromAllQueues(c.Request.Context(), id); err != nil {
			abortWith(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleMaterialLog(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := materialID(c)
		if !ok {
			return
		}
		entries, err := svc.GetLogForMaterial(id)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(entries))
	}
}

func handleLog(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("start") != "" || c.Query("end") != "" {
			handleLogRange(svc, c)
			return
		}
		var after int64
		if s := c.Query("after"); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil || n < 0 {
				badRequest(c, "invalid after "+strconv.Quote(s))
				return
			}
			after = n
		}
		entries, err := svc.GetLog(after)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(entries))
	}
}

func handleDecrement(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var mark decrement.Mark
		afterID, afterTime := c.Query("after_id"), c.Query("after_time")
		if afterID != "" && afterTime != "" {
			badRequest(c, "set after_id or after_time, not both")
			return
		}
		if afterID != "" {
			n, err := strconv.ParseInt(afterID, 10, 64)
			if err != nil {
				badRequest(c, "invalid after_id "+strconv.Quote(afterID))
				return
			}
			mark.AfterID = &n
		}
		if afterTime != "" {
			ts, err := time.Parse(time.RFC3339, afterTime)
			if err != nil {
				badRequest(c, "invalid after_time "+strconv.Quote(afterTime))
				return
			}
			mark.AfterTime = &ts
		}

		var opts decrement.Options
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&opts); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		decs, err := svc.DecrementJobQuantities(c.Request.Context(), mark, opts)
		if err != nil {
			abortWith(c, err)
			return
		}
		if decs == nil {
			decs = []models.Decrement{}
		}
		c.JSON(http.StatusOK, decs)
	}
}

func nonNil(entries []models.LogEntry) []models.LogEntry {
	if entries == nil {
		return []models.LogEntry{}
	}
	return entries
}
