package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marcote/comphawk/internal/domain"
	"gorm.io/gorm"
)

// ErrTerminalJob is returned when a status change targets a job that already
// reached COMPLETE or FAILED.
var ErrTerminalJob = errors.New("job already in terminal state")

// JobRepository handles comp job persistence and claim semantics.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue inserts a new job in QUEUED state.
func (r *JobRepository) Enqueue(ctx context.Context, job *domain.CompJob) error {
	job.Status = domain.JobStatusQueued
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.CompJob, error) {
	var job domain.CompJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimNext atomically claims the oldest QUEUED job for the given worker.
// The conditional UPDATE with a status guard guarantees at-most-one-worker-per-job
// on both sqlite (single writer) and postgres (row lock).
// Returns nil when no job is queued.
func (r *JobRepository) ClaimNext(ctx context.Context, workerID string) (*domain.CompJob, error) {
	var candidate domain.CompJob
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.JobStatusQueued).
		Order("created_at ASC").
		First(&candidate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find queued job: %w", err)
	}

	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&domain.CompJob{}).
		Where("id = ? AND status = ?", candidate.ID, domain.JobStatusQueued).
		Updates(map[string]interface{}{
			"status":     domain.JobStatusRunning,
			"worker_id":  workerID,
			"claimed_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to claim job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Another worker won the race; treat as nothing queued this tick.
		return nil, nil
	}

	candidate.Status = domain.JobStatusRunning
	candidate.WorkerID = workerID
	candidate.ClaimedAt = &now
	return &candidate, nil
}

// MarkComplete transitions a job to COMPLETE with its serialized result.
func (r *JobRepository) MarkComplete(ctx context.Context, jobID string, resultJSON string) error {
	return r.markTerminal(ctx, jobID, domain.JobStatusComplete, "", resultJSON)
}

// MarkFailed transitions a job to FAILED with a captured error message.
func (r *JobRepository) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	return r.markTerminal(ctx, jobID, domain.JobStatusFailed, errMsg, "")
}

func (r *JobRepository) markTerminal(ctx context.Context, jobID string, status domain.JobStatus, errMsg, resultJSON string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&domain.CompJob{}).
		Where("id = ? AND status NOT IN ?", jobID, []domain.JobStatus{domain.JobStatusComplete, domain.JobStatusFailed}).
		Updates(map[string]interface{}{
			"status":       status,
			"error":        errMsg,
			"result_json":  resultJSON,
			"completed_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark job %s: %w", status, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTerminalJob
	}
	return nil
}

// CountByStatus counts jobs in the given status.
func (r *JobRepository) CountByStatus(ctx context.Context, status domain.JobStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.CompJob{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListRecent retrieves the most recently created jobs.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]domain.CompJob, error) {
	var jobs []domain.CompJob
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
