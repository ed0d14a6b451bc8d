package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	er "github.com/mailroomhq/mailroom/internal/errors"
	"github.com/mailroomhq/mailroom/internal/tracing"
)

// HttpStatus maps the internal error taxonomy onto response codes. Anything
// unrecognized is a 500.
func HttpStatus(err error) int {
	switch {
	case errors.Is(err, er.ErrNoActiveAccount), errors.Is(err, er.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, er.ErrUnauthenticated), errors.Is(err, er.ErrReauthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, er.ErrRefreshFailed):
		return http.StatusBadGateway
	case errors.Is(err, er.ErrConnectionFailed), errors.Is(err, er.ErrNotConnected):
		return http.StatusBadGateway
	case errors.Is(err, er.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, er.ErrNoClientStored):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes the error as a JSON body with the mapped status and records
// it on the active span.
func Respond(c *gin.Context, err error) {
	if span := opentracing.SpanFromContext(c.Request.Context()); span != nil {
		tracing.TraceErr(span, err)
	}
	c.JSON(HttpStatus(err), gin.H{"error": err.Error()})
}
