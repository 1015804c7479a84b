package tracing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gemimi2525-star/super-platform-sub003/internal/shared/id"
)

// RequestID identifies one inbound HTTP request.
type RequestID string

// Span records one traced operation. Spans here are deliberately
// small: a name, timing, tags, and an optional error, flushed to the
// structured log rather than an external collector.
type Span struct {
	RequestID  RequestID
	Name       string
	Service    string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Tags       map[string]string
	Err        error
	StatusCode int
}

// Tracer turns finished spans into log lines.
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span
}

// New creates a new tracer instance.
func New(service string, logger *zap.Logger) *Tracer {
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, 1000),
	}

	// Start span collector
	go t.collectSpans()

	return t
}

// StartSpan creates a new span bound to the request id in ctx,
// generating one when the context carries none.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	reqID, _ := ctx.Value(requestIDKey).(RequestID)
	if reqID == "" {
		reqID = RequestID(id.NewRequestID())
	}

	span := &Span{
		RequestID: reqID,
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}

	return span, context.WithValue(ctx, requestIDKey, reqID)
}

// Finish marks the span as complete.
func (s *Span) Finish() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// SetTag adds a tag to the span.
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records an error in the span.
func (s *Span) SetError(err error) {
	s.Err = err
}

// SetStatus sets the HTTP status code.
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

// Submit sends a span to the collector.
func (t *Tracer) Submit(span *Span) {
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("request_id", string(span.RequestID)),
			zap.String("operation", span.Name),
		)
	}
}

// collectSpans processes completed spans.
func (t *Tracer) collectSpans() {
	for span := range t.spans {
		t.processSpan(span)
	}
}

func (t *Tracer) processSpan(span *Span) {
	fields := []zap.Field{
		zap.String("request_id", string(span.RequestID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.String("service", span.Service),
		zap.Int("status", span.StatusCode),
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}

	if span.Err != nil {
		fields = append(fields, zap.Error(span.Err))
		t.logger.Error("span completed with error", fields...)
		return
	}
	t.logger.Debug("span completed", fields...)
}

// Context key for request-id propagation.
type contextKey string

const requestIDKey contextKey = "request_id"

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) RequestID {
	if reqID, ok := ctx.Value(requestIDKey).(RequestID); ok {
		return reqID
	}
	return ""
}

// WithRequestID stores a request ID in the context.
func WithRequestID(ctx context.Context, reqID RequestID) context.Context {
	return context.WithValue(ctx, requestIDKey, reqID)
}

// FormatRequest returns a formatted id string for logs.
func FormatRequest(reqID RequestID) string {
	return fmt.Sprintf("[request:%s]", reqID)
}
