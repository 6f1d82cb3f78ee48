package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/marcote/comphawk/internal/repository"
)

// EvidenceHandler serves the attached-comp evidence records on a card.
type EvidenceHandler struct {
	evidence *repository.EvidenceRepository
}

// NewEvidenceHandler creates a new evidence handler.
// Parameters:
//   - evidence: evidence repository instance.
// Returns:
//   - *EvidenceHandler: initialized handler.
func NewEvidenceHandler(evidence *repository.EvidenceRepository) *EvidenceHandler {
	return &EvidenceHandler{evidence: evidence}
}

// ListByCard handles GET /api/v1/cards/:id/evidence.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *EvidenceHandler) ListByCard(c *gin.Context) {
	cardID := c.Param("id")
	if cardID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Card ID is required",
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	comps, err := h.evidence.ListByCard(c.Request.Context(), cardID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list evidence: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"evidence": comps,
		"count":    len(comps),
	})
}
