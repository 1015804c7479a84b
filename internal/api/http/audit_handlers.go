package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gemimi2525-star/super-platform-sub003/internal/audit"
)

// AuditEntries queries the ledger by trace id, op id, or path glob.
// Filters combine with AND; limit keeps the most recent matches.
func (h *Handlers) AuditEntries(c *gin.Context) {
	q := audit.Query{
		TraceID:  c.Query("trace_id"),
		OpID:     c.Query("op_id"),
		PathGlob: c.Query("path_glob"),
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		q.Limit = limit
	}

	entries := h.ledger.Find(q)
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// AuditVerify recomputes the full hash chain and reports the verdict.
func (h *Handlers) AuditVerify(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Verify())
}

// AuditExport streams the full chain as a gzip JSON array.
func (h *Handlers) AuditExport(c *gin.Context) {
	filename := fmt.Sprintf("ledger-%s.json.gz", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Type", "application/gzip")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	if err := h.ledger.ExportGzip(c.Writer); err != nil {
		// Headers are already on the wire; log and abort the stream.
		h.log.Error("ledger export failed", zap.Error(err))
		c.Abort()
	}
}
