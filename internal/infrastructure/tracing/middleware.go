package tracing

import (
	"github.com/gin-gonic/gin"
)

// RequestIDHeader carries the request id on requests and responses.
// Inbound values are honored so a shell client can correlate retries.
const RequestIDHeader = "X-Request-ID"

// HTTPMiddleware creates Gin middleware that tags every request with a
// request id and emits a span for it.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if inbound := c.GetHeader(RequestIDHeader); inbound != "" {
			ctx = WithRequestID(ctx, RequestID(inbound))
		}

		span, ctx := tracer.StartSpan(ctx, c.FullPath())
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.path", c.Request.URL.Path)

		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, string(span.RequestID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		span.Finish()
		tracer.Submit(span)
	}
}
