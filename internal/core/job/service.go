package job

import (
	"context"
	"fmt"

	rds "storyboard/internal/platform/redis"
)

type JobService struct{ redis *rds.Service }

func NewJobService(redis *rds.Service) *JobService { return &JobService{redis: redis} }

func (s *JobService) GetJobStatus(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := s.redis.CacheGet(ctx, key(jobID), &job); err != nil {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	return &job, nil
}

func (s *JobService) store(ctx context.Context, jobID string, jobType Type, status Status, outcome *RunOutcome) error {
	var job Job
	_ = s.redis.CacheGet(ctx, key(jobID), &job)
	job.JobID = jobID
	job.Type = jobType
	job.Status = status
	if outcome != nil {
		job.Results = JobResult{AnalyzeResult: outcome}
	}
	if err := s.redis.CacheSet(ctx, key(jobID), job, ttl(status)); err != nil {
		return err
	}
	// Publish an update event for listeners polling the job channel
	_ = s.redis.Client().Publish(ctx, key(jobID), "updated").Err()
	return nil
}

func (s *JobService) Complete(ctx context.Context, jobID string, status Status, outcome *RunOutcome) error {
	return s.store(ctx, jobID, TypeAnalyze, status, outcome)
}

func (s *JobService) SetProcessing(ctx context.Context, jobID string) error {
	return s.store(ctx, jobID, TypeAnalyze, StatusProcessing, nil)
}

func (s *JobService) InitPending(ctx context.Context, jobID string) error {
	return s.store(ctx, jobID, TypeAnalyze, StatusPending, nil)
}

// PublishProgress sends a human-readable progress line to the job's channel.
// Fire-and-forget: consumers may or may not be listening.
func (s *JobService) PublishProgress(ctx context.Context, jobID, line string) {
	_ = s.redis.Client().Publish(ctx, key(jobID), "progress:"+line).Err()
}

func key(id string) string { return "job:" + id }

func ttl(s Status) int {
	if s == StatusCompleted || s == StatusFailed {
		return 3600
	}
	return 600
}
