package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gemimi2525-star/super-platform-sub003/internal/governance"
)

// Governance runs the same combined check the boot gate runs: freeze
// marker first, then the hash chain. Always 200; the verdict body says
// whether the kernel definition is trustworthy.
func (h *Handlers) Governance(c *gin.Context) {
	c.JSON(http.StatusOK, governance.Check(h.govRoot, h.ledger, nil))
}
