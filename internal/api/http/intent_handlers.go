package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gemimi2525-star/super-platform-sub003/internal/gateway"
)

// SubmitIntent runs one intent through the gateway. The response body
// is the gateway envelope verbatim; the HTTP status mirrors the
// decision so plain clients can branch without parsing it.
func (h *Handlers) SubmitIntent(c *gin.Context) {
	var req gateway.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid intent payload: " + err.Error(),
		})
		return
	}

	resp := h.gateway.Submit(c.Request.Context(), req)
	c.JSON(intentStatus(resp), resp)
}

func intentStatus(resp gateway.Response) int {
	if resp.Success {
		return http.StatusOK
	}
	if resp.ErrorCode != "" {
		return statusFor(resp.ErrorCode)
	}
	return statusFor(resp.Decision.Code)
}
