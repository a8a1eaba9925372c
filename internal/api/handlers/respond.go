// Package handlers implements the JSON HTTP handlers for the sales pipeline
// API. Handlers stay thin: they bind and parse the request, delegate to the
// service layer, and translate domain errors into HTTP responses. All role and
// tenancy rules live in the services.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"github.com/salespipe/salespipe/internal/service"
)

// pq error class 22P02: a value that cannot be parsed into the column's type.
// With uuid primary keys this means a malformed id somewhere in the request.
const invalidTextRepresentation = "22P02"

// respondError translates a service error into an HTTP response. Domain errors
// carry their own status code; a malformed id bound to a uuid column is the
// client's fault, not a server error; anything else is a 500 with a generic
// body so internals never leak to clients.
func respondError(c *gin.Context, err error) {
	if domainErr, ok := service.AsError(err); ok {
		c.JSON(domainErr.Status(), gin.H{"detail": domainErr.Message})
		return
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "malformed id in request"})
		return
	}
	slog.Error("unhandled error", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pagination converts page/page_size query parameters into limit and offset.
// Page numbering starts at 1. Out-of-range values are clamped rather than
// rejected so sloppy clients still get a sane first page.
func pagination(c *gin.Context) (limit, offset int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return size, (page - 1) * size
}
