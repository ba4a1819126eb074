// Package responses provides the response envelope of the HTTP API. Success
// bodies use StandardResponse; failures are RFC 7807 problem documents.
package responses

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Aidin1998/commodex/pkg/errors"
)

// TraceIDKey is the gin context key the request-id middleware stores under.
const TraceIDKey = "trace_id"

// StandardResponse represents a standard API response format
type StandardResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// CursorResponse is a StandardResponse for id-cursor pagination
type CursorResponse struct {
	StandardResponse
	Next  uint64 `json:"next,omitempty"`
	Limit int    `json:"limit"`
}

func respond(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, StandardResponse{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
		TraceID:   getTraceID(c),
	})
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}, message ...string) {
	msg := "Operation successful"
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	respond(c, http.StatusOK, data, msg)
}

// Created sends a 201 Created response
func Created(c *gin.Context, data interface{}, message ...string) {
	msg := "Resource created successfully"
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	respond(c, http.StatusCreated, data, msg)
}

// Page sends one page of results. next is the cursor for the following
// page, 0 when there is none.
func Page(c *gin.Context, data interface{}, next uint64, limit int) {
	c.JSON(http.StatusOK, CursorResponse{
		StandardResponse: StandardResponse{
			Success:   true,
			Data:      data,
			Message:   "Data retrieved successfully",
			Timestamp: time.Now().UTC(),
			TraceID:   getTraceID(c),
		},
		Next:  next,
		Limit: limit,
	})
}

// Error sends an error response using RFC 7807 format
func Error(c *gin.Context, problem *errors.ProblemDetails) {
	if problem.TraceID == "" {
		if traceID := getTraceID(c); traceID != "" {
			problem.WithTraceID(traceID)
		}
	}
	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(problem.Status, problem)
}

// FromError renders err as a problem document for the current request.
func FromError(c *gin.Context, err error) {
	Error(c, errors.ToProblemDetails(err, c.Request.URL.Path))
}

// BadRequest sends a 400 Bad Request response
func BadRequest(c *gin.Context, detail string) {
	Error(c, errors.NewBadRequest(detail, c.Request.URL.Path))
}

// MissingCaller sends a 401 Unauthorized response
func MissingCaller(c *gin.Context) {
	Error(c, errors.NewMissingCaller(c.Request.URL.Path))
}

// getTraceID extracts trace ID from context
func getTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return c.GetHeader("X-Trace-ID")
}
