package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/cellwatch/internal/cell"
	"github.com/zulandar/cellwatch/internal/models"
)

type serialRequest struct {
	Serial string `json:"serial" binding:"required"`
}

type workorderRequest struct {
	Workorder string `json:"workorder" binding:"required"`
}

type inspectionRequest struct {
	Type    string `json:"type" binding:"required"`
	Process int    `json:"process"`
	Passed  bool   `json:"passed"`
}

type noteRequest struct {
	Note string `json:"note" binding:"required"`
}

type inspectionFunc func(ctx context.Context, id int64, insp cell.Inspection) (*models.LogEntry, error)

func handleMaterialDetails(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := materialID(c)
		if !ok {
			return
		}
		d, err := svc.GetMaterialDetails(id)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func handleAssignSerial(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := materialID(c)
		if !ok {
			return
		}
		var req serialRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		entryOr(c, func() (*models.LogEntry, error) {
			return svc.AssignSerial(c.Request.Context(), id, req.Serial)
		})
	}
}

func handleAssignWorkorder(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := materialID(c)
		if !ok {
			return
		}
		var req workorderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		entryOr(c, func() (*models.LogEntry, error) {
			return svc.AssignWorkorder(c.Request.Context(), id, req.Workorder)
		})
	}
}

func handleInspection(record inspectionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := materialID(c)
		if !ok {
			return
		}
		var req inspectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		insp := cell.Inspection{Type: req.Type, Process: req.Process, Passed: req.Passed}
		entryOr(c, func() (*models.LogEntry, error) {
			return record(c.Request.Context(), id, insp)
		})
	}
}

func handleMaterialNote(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := materialID(c)
		if !ok {
			return
		}
		var req noteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		entryOr(c, func() (*models.LogEntry, error) {
			return svc.AddMaterialNote(c.Request.Context(), id, req.Note)
		})
	}
}

// entryOr writes the log entry fn records, or its error.
func entryOr(c *gin.Context, fn func() (*models.LogEntry, error)) {
	e, err := fn()
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func handleLogFor(get func(string) ([]models.LogEntry, error), param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := get(c.Param(param))
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(entries))
	}
}

func handleLogRange(svc Service, c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		badRequest(c, "invalid start "+strconv.Quote(c.Query("start")))
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		badRequest(c, "invalid end "+strconv.Quote(c.Query("end")))
		return
	}
	entries, err := svc.GetLogEntries(start, end)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(entries))
}

func handleDemand(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := 1
		if s := c.Query("path"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				badRequest(c, "invalid path "+strconv.Quote(s))
				return
			}
			path = n
		}
		n, err := svc.OutstandingDemand(c.Param("unique"), path)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"job_unique": c.Param("unique"), "path": path, "outstanding": n})
	}
}
