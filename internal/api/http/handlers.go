// Package http exposes the kernel over a JSON API. Every storage
// operation is an intent posted to the gateway; the handlers never
// reach past it into the kernel except for read-only introspection.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gemimi2525-star/super-platform-sub003/internal/audit"
	"github.com/gemimi2525-star/super-platform-sub003/internal/gateway"
	"github.com/gemimi2525-star/super-platform-sub003/internal/infrastructure/logging"
	"github.com/gemimi2525-star/super-platform-sub003/internal/kernel"
	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
)

// Version is reported by the service banner.
const Version = "0.3.0"

// UsageReporter is implemented by mounts that can account their disk
// footprint. The persistent-user mount provides one; a nil reporter
// just drops the storage section from health output.
type UsageReporter interface {
	Usage(ctx context.Context) (files int, bytes int64, err error)
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	gateway *gateway.Gateway
	kernel  *kernel.Kernel
	ledger  *audit.Ledger
	govRoot string
	usage   UsageReporter
	log     *logging.Logger
	started time.Time
}

// NewHandlers creates a new handler set.
func NewHandlers(gw *gateway.Gateway, k *kernel.Kernel, ledger *audit.Ledger, govRoot string, usage UsageReporter, log *logging.Logger) *Handlers {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handlers{
		gateway: gw,
		kernel:  k,
		ledger:  ledger,
		govRoot: govRoot,
		usage:   usage,
		log:     log,
		started: time.Now(),
	}
}

// Register mounts every JSON route on r. The metrics and stream
// endpoints are mounted by the server, which owns their dependencies.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.POST("/intents", h.SubmitIntent)

	r.POST("/kernel/lock", h.LockKernel)
	r.POST("/kernel/unlock", h.UnlockKernel)
	r.POST("/kernel/logout", h.Logout)
	r.GET("/kernel/handles", h.ListHandles)

	r.GET("/audit/entries", h.AuditEntries)
	r.GET("/audit/verify", h.AuditVerify)
	r.GET("/audit/export", h.AuditExport)

	r.GET("/governance", h.Governance)
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Kernel VFS Service (Go)",
		"version": Version,
	})
}

// Health handles detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	health := gin.H{
		"status":        "healthy",
		"uptimeSeconds": int64(time.Since(h.started).Seconds()),
		"kernel":        h.kernel.Snapshot(),
		"audit": gin.H{
			"totalEntries": h.ledger.Len(),
		},
	}
	if h.usage != nil {
		if files, bytes, err := h.usage.Usage(c.Request.Context()); err == nil {
			health["storage"] = gin.H{"userFiles": files, "userBytes": bytes}
		}
	}
	c.JSON(http.StatusOK, health)
}

// statusFor maps a failure code to its HTTP status. Unlisted codes are
// backend failures and map to 500.
func statusFor(code vfs.Code) int {
	switch code {
	case vfs.CodeInvalidPath, vfs.CodeUnknownScheme:
		return http.StatusBadRequest
	case vfs.CodeAuthRequired:
		return http.StatusUnauthorized
	case vfs.CodeAccessDenied:
		return http.StatusForbidden
	case vfs.CodeNotFound:
		return http.StatusNotFound
	case vfs.CodeAlreadyExists:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
