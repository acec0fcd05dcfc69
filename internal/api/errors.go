package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/cellwatch/internal/cell"
	"github.com/zulandar/cellwatch/internal/controller"
	"github.com/zulandar/cellwatch/internal/eventlog"
	"github.com/zulandar/cellwatch/internal/jobs"
)

// statusFor maps an operation error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, controller.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, jobs.ErrJobNotFound), errors.Is(err, eventlog.ErrMaterialNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrStaleSchedule), errors.Is(err, jobs.ErrDuplicateJob), errors.Is(err, jobs.ErrArchived):
		return http.StatusConflict
	case errors.Is(err, cell.ErrUnknownQueue), errors.Is(err, cell.ErrInvalidArgument), errors.Is(err, jobs.ErrInvalidJob):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Printf("api: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
