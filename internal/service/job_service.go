package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/workbridge/api/internal/model"
	"github.com/workbridge/api/internal/store"
)

// JobService owns the job side of the lifecycle: posting, editing, search,
// deletion while open, and the completion transition.
type JobService struct {
	jobs     *store.JobStore
	bids     *store.BidStore
	messages *store.MessageStore
	asynq    *asynq.Client
}

func NewJobService(jobs *store.JobStore, bids *store.BidStore, messages *store.MessageStore, asynqClient *asynq.Client) *JobService {
	return &JobService{
		jobs:     jobs,
		bids:     bids,
		messages: messages,
		asynq:    asynqClient,
	}
}

// SystemCompletionNotice is the content of the system message appended when
// a freelancer marks a job complete.
const SystemCompletionNotice = "Freelancer has marked the job as completed."

// Create posts a new job for the calling client
func (s *JobService) Create(ctx context.Context, clientID string, req *model.CreateJobRequest) (*model.Job, error) {
	if req.Budget.Min <= 0 || req.Budget.Min >= req.Budget.Max {
		return nil, fmt.Errorf("%w: budget range requires 0 < min < max", ErrInvalidArgument)
	}
	if req.Deadline.Before(time.Now()) {
		return nil, fmt.Errorf("%w: deadline must be in the future", ErrInvalidArgument)
	}

	currency := req.Budget.Currency
	if currency == "" {
		currency = "USD"
	}
	experience := req.Experience
	if experience == "" {
		experience = model.ExperienceIntermediate
	}

	now := time.Now()
	job := &model.Job{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		Title:       req.Title,
		Description: req.Description,
		Skills:      req.Skills,
		Budget: model.Budget{
			Min:      req.Budget.Min,
			Max:      req.Budget.Max,
			Currency: currency,
		},
		Deadline:   req.Deadline,
		Status:     model.JobStatusOpen,
		Experience: experience,
		IsUrgent:   req.IsUrgent,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if job.Skills == nil {
		job.Skills = []string{}
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, store.ErrForeignKey) {
			return nil, fmt.Errorf("%w: client", ErrNotFound)
		}
		return nil, err
	}
	return job, nil
}

// Get returns a job with its client's details
func (s *JobService) Get(ctx context.Context, jobID string) (*model.JobWithClient, error) {
	job, err := s.jobs.GetWithClient(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: job", ErrNotFound)
		}
		return nil, err
	}
	return job, nil
}

// ListMine returns the calling client's own postings
func (s *JobService) ListMine(ctx context.Context, clientID string) ([]model.Job, error) {
	return s.jobs.ListByClient(ctx, clientID)
}

// Search returns open jobs matching the filter, excluding the caller's own
// postings
func (s *JobService) Search(ctx context.Context, callerID string, filter model.JobSearchFilter) ([]model.JobWithClient, error) {
	filter.ExcludeClient = callerID
	return s.jobs.Search(ctx, filter)
}

// Dashboard aggregates the freelancer landing view
func (s *JobService) Dashboard(ctx context.Context, freelancerID string) (*model.FreelancerDashboard, error) {
	available, err := s.jobs.Search(ctx, model.JobSearchFilter{ExcludeClient: freelancerID})
	if err != nil {
		return nil, err
	}
	activeBids, err := s.bids.ListByFreelancer(ctx, freelancerID,
		model.BidStatusPending, model.BidStatusAccepted)
	if err != nil {
		return nil, err
	}
	accepted, err := s.jobs.ListByFreelancer(ctx, freelancerID,
		model.JobStatusInProgress, model.JobStatusCompleted)
	if err != nil {
		return nil, err
	}
	completed, err := s.jobs.ListByFreelancer(ctx, freelancerID, model.JobStatusCompleted)
	if err != nil {
		return nil, err
	}

	return &model.FreelancerDashboard{
		AvailableJobs: available,
		ActiveBids:    activeBids,
		AcceptedJobs:  accepted,
		CompletedJobs: completed,
	}, nil
}

// Update edits a job while it is still open. Status may only move to
// cancelled or closed here; in-progress and completed are reachable solely
// through the acceptance and completion transitions.
func (s *JobService) Update(ctx context.Context, jobID, callerID string, req *model.UpdateJobRequest) (*model.Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: job", ErrNotFound)
		}
		return nil, err
	}
	if job.ClientID != callerID {
		return nil, fmt.Errorf("%w: not the job owner", ErrForbidden)
	}
	if job.Status != model.JobStatusOpen {
		return nil, fmt.Errorf("%w: job is not open", ErrInvalidState)
	}

	if req.Title != nil {
		job.Title = *req.Title
	}
	if req.Description != nil {
		job.Description = *req.Description
	}
	if req.Skills != nil {
		job.Skills = req.Skills
	}
	if req.Budget != nil {
		if req.Budget.Min <= 0 || req.Budget.Min >= req.Budget.Max {
			return nil, fmt.Errorf("%w: budget range requires 0 < min < max", ErrInvalidArgument)
		}
		currency := req.Budget.Currency
		if currency == "" {
			currency = job.Budget.Currency
		}
		job.Budget = model.Budget{Min: req.Budget.Min, Max: req.Budget.Max, Currency: currency}
	}
	if req.Deadline != nil {
		job.Deadline = *req.Deadline
	}
	if req.Experience != nil {
		job.Experience = *req.Experience
	}
	if req.IsUrgent != nil {
		job.IsUrgent = *req.IsUrgent
	}
	if req.Status != nil {
		switch *req.Status {
		case model.JobStatusOpen, model.JobStatusCancelled, model.JobStatusClosed:
			job.Status = *req.Status
		default:
			return nil, fmt.Errorf("%w: status %q cannot be set directly", ErrInvalidArgument, *req.Status)
		}
	}
	job.UpdatedAt = time.Now()

	if err := s.jobs.UpdateOpen(ctx, job); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: job", ErrNotFound)
		}
		if errors.Is(err, store.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: job is no longer open", ErrInvalidState)
		}
		return nil, err
	}
	return job, nil
}

// Delete removes an open job owned by the caller. Bids and messages go with
// it; pending bidders are told through the job topic before the rows vanish.
func (s *JobService) Delete(ctx context.Context, jobID, callerID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: job", ErrNotFound)
		}
		return err
	}
	if job.ClientID != callerID {
		return fmt.Errorf("%w: not the job owner", ErrForbidden)
	}
	if job.Status != model.JobStatusOpen {
		return fmt.Errorf("%w: only open jobs can be deleted", ErrInvalidState)
	}

	pending, err := s.bids.ListPendingByJob(ctx, jobID)
	if err != nil {
		return err
	}

	if err := s.jobs.DeleteOpen(ctx, jobID, callerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: job", ErrNotFound)
		}
		if errors.Is(err, store.ErrStatusConflict) {
			return fmt.Errorf("%w: job is no longer open", ErrInvalidState)
		}
		return err
	}

	if len(pending) > 0 {
		s.notify(jobID, EventJobRemoved, map[string]interface{}{
			"jobId": jobID,
			"title": job.Title,
		})
	}
	return nil
}

// MarkReady completes an in-progress job. Only the accepted freelancer may
// call it; the status change and the system notice to the client are written
// in one transaction.
func (s *JobService) MarkReady(ctx context.Context, jobID, callerID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: job", ErrNotFound)
		}
		return err
	}
	if job.AcceptedFreelancer == nil || *job.AcceptedFreelancer != callerID {
		return fmt.Errorf("%w: not the accepted freelancer", ErrForbidden)
	}
	if job.Status != model.JobStatusInProgress {
		return fmt.Errorf("%w: job is not in progress", ErrInvalidState)
	}

	now := time.Now()
	notice := &model.Message{
		ID:          uuid.NewString(),
		JobID:       job.ID,
		SenderID:    callerID,
		RecipientID: job.ClientID,
		Content:     SystemCompletionNotice,
		Type:        model.MessageTypeSystem,
		CreatedAt:   now,
	}

	if err := s.jobs.Complete(ctx, jobID, notice, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: job", ErrNotFound)
		}
		if errors.Is(err, store.ErrStatusConflict) {
			return fmt.Errorf("%w: job is not in progress", ErrInvalidState)
		}
		return err
	}

	s.notify(jobID, EventJobCompleted, map[string]interface{}{
		"jobId":       jobID,
		"completedAt": now,
	})
	return nil
}

// Reconcile repairs drifted bid counters. Invoked by the scheduled task.
func (s *JobService) Reconcile(ctx context.Context) (int64, error) {
	return s.jobs.ReconcileTotalBids(ctx)
}

// notify emits a best-effort event to the job topic. Delivery never affects
// the operation that triggered it.
func (s *JobService) notify(jobID, event string, data interface{}) {
	if s.asynq == nil {
		return
	}
	task, err := NewNotifyTask(jobID, event, data)
	if err != nil {
		log.Printf("Failed to build %s task: %v", event, err)
		return
	}
	if _, err := s.asynq.Enqueue(task, asynq.Queue("notify"), asynq.MaxRetry(3)); err != nil {
		log.Printf("Failed to enqueue %s event for job %s: %v", event, jobID, err)
	}
}
