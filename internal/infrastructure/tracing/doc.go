/*
Package tracing tags every HTTP request with a request id and logs one
span per request through zap.

Request ids are generated locally (ULID) unless the client supplies
X-Request-ID. Intent trace ids are a separate concept owned by the
gateway; a request id correlates transport, a trace id correlates an
audit entry.

# Usage

	tracer := tracing.New("platform", logger)
	router.Use(tracing.HTTPMiddleware(tracer))

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

Spans are buffered (1000) and processed off the request path.
*/
package tracing
