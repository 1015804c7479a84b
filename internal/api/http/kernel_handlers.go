package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
)

// LockKernel transitions the kernel to LOCKED and closes every handle.
func (h *Handlers) LockKernel(c *gin.Context) {
	c.JSON(http.StatusOK, h.gateway.Lock())
}

// UnlockKernel returns the kernel to ACTIVE.
func (h *Handlers) UnlockKernel(c *gin.Context) {
	c.JSON(http.StatusOK, h.gateway.Unlock())
}

// Logout applies a logout policy. An absent body or mode selects
// SOFT_LOCK.
func (h *Handlers) Logout(c *gin.Context) {
	var req struct {
		Mode string `json:"mode"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "invalid logout payload: " + err.Error(),
			})
			return
		}
	}

	report, err := h.gateway.Logout(c.Request.Context(), req.Mode)
	if err != nil {
		c.JSON(statusFor(vfs.CodeOf(err)), gin.H{
			"success":      false,
			"error":        err.Error(),
			"state":        report.State,
			"wipedSchemes": report.WipedSchemes,
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListHandles reports the open handle table.
func (h *Handlers) ListHandles(c *gin.Context) {
	handles := h.kernel.Handles()
	c.JSON(http.StatusOK, gin.H{
		"handles": handles,
		"count":   len(handles),
	})
}
