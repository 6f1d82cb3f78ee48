package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marcote/comphawk/internal/domain"
	"github.com/marcote/comphawk/internal/repository"
	"gorm.io/gorm"
)

const defaultMaxComps = 5

// knownSources guards enqueue requests against typos; the worker would only
// degrade an unknown source anyway, but rejecting it here is a better operator
// experience.
var knownSources = map[domain.SourceID]bool{
	domain.SourceSoldListings:    true,
	domain.SourceLiveListings:    true,
	domain.SourcePriceAggregator: true,
}

// JobHandler handles comp-job endpoints.
type JobHandler struct {
	jobs *repository.JobRepository
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - jobs: job repository instance.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(jobs *repository.JobRepository) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// CreateJobRequest is the enqueue payload.
type CreateJobRequest struct {
	CardAssetID string            `json:"cardAssetId"`
	SearchQuery string            `json:"searchQuery" binding:"required"`
	Sources     []domain.SourceID `json:"sources" binding:"required,min=1"`
	MaxComps    int               `json:"maxComps"`
	Payload     domain.JobPayload `json:"payload"`
}

// CreateJob handles POST /api/v1/comp-jobs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	seen := make(map[domain.SourceID]bool, len(req.Sources))
	sources := make(domain.SourceList, 0, len(req.Sources))
	for _, src := range req.Sources {
		if !knownSources[src] {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Unknown source: " + string(src),
			})
			return
		}
		if seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}

	if req.MaxComps <= 0 {
		req.MaxComps = defaultMaxComps
	}

	job := &domain.CompJob{
		ID:          uuid.New().String(),
		Status:      domain.JobStatusQueued,
		CardAssetID: req.CardAssetID,
		SearchQuery: req.SearchQuery,
		Sources:     sources,
		MaxComps:    req.MaxComps,
		Payload:     req.Payload,
	}

	if err := h.jobs.Enqueue(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue job: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":     job.ID,
		"status": job.Status,
	})
}

// JobResponse is a job record plus its parsed result when complete.
type JobResponse struct {
	*domain.CompJob
	Result json.RawMessage `json:"result,omitempty"`
}

// GetJob handles GET /api/v1/comp-jobs/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) GetJob(c *gin.Context) {
	id := c.Param("id")

	job, err := h.jobs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load job: " + err.Error(),
		})
		return
	}

	resp := JobResponse{CompJob: job}
	if job.ResultJSON != "" {
		resp.Result = json.RawMessage(job.ResultJSON)
	}
	c.JSON(http.StatusOK, resp)
}

// ListJobs handles GET /api/v1/comp-jobs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	jobs, err := h.jobs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
