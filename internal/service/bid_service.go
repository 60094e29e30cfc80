package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/workbridge/api/internal/model"
	"github.com/workbridge/api/internal/store"
)

// MinProposalLength is the shortest proposal a bid may carry
const MinProposalLength = 10

// BidService owns the bid lifecycle: submission, withdrawal, rejection and
// the acceptance transition that binds a job to its winning freelancer.
// Every precondition is checked before any write; the cross-entity writes
// themselves are status-guarded transactions in the store layer, so a
// concurrent caller that loses the race gets a conflict instead of a
// half-applied transition.
type BidService struct {
	bids  *store.BidStore
	jobs  *store.JobStore
	asynq *asynq.Client
}

func NewBidService(bids *store.BidStore, jobs *store.JobStore, asynqClient *asynq.Client) *BidService {
	return &BidService{
		bids:  bids,
		jobs:  jobs,
		asynq: asynqClient,
	}
}

// Submit creates a pending bid on an open job. The (job, freelancer)
// uniqueness is enforced by the store at write time, so two concurrent
// submissions from the same freelancer resolve to one success and one
// conflict.
func (s *BidService) Submit(ctx context.Context, jobID, freelancerID string, req *model.SubmitBidRequest) (*model.Bid, error) {
	if len(strings.TrimSpace(req.Proposal)) < MinProposalLength {
		return nil, fmt.Errorf("%w: proposal must be at least %d characters", ErrInvalidArgument, MinProposalLength)
	}
	if req.BidAmount <= 0 {
		return nil, fmt.Errorf("%w: bid amount must be positive", ErrInvalidArgument)
	}
	if req.Delivery.Before(time.Now()) {
		return nil, fmt.Errorf("%w: estimated delivery must be in the future", ErrInvalidArgument)
	}

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: job", ErrNotFound)
		}
		return nil, err
	}
	if job.ClientID == freelancerID {
		return nil, fmt.Errorf("%w: cannot bid on your own job", ErrForbidden)
	}
	if job.Status != model.JobStatusOpen {
		return nil, fmt.Errorf("%w: job is not accepting bids", ErrForbidden)
	}

	now := time.Now()
	bid := &model.Bid{
		ID:           uuid.NewString(),
		JobID:        jobID,
		FreelancerID: freelancerID,
		Proposal:     req.Proposal,
		BidAmount:    req.BidAmount,
		Delivery:     req.Delivery,
		Status:       model.BidStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.bids.Create(ctx, bid); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: you have already bid on this job", ErrConflict)
		}
		if errors.Is(err, store.ErrForeignKey) {
			return nil, fmt.Errorf("%w: job", ErrNotFound)
		}
		if errors.Is(err, store.ErrStatusConflict) {
			// The job left the open state between the precondition read and
			// the write
			return nil, fmt.Errorf("%w: job is not accepting bids", ErrForbidden)
		}
		return nil, err
	}
	return bid, nil
}

// Get returns a bid visible to either party on its job
func (s *BidService) Get(ctx context.Context, bidID, callerID string) (*model.Bid, error) {
	bid, err := s.bids.Get(ctx, bidID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: bid", ErrNotFound)
		}
		return nil, err
	}
	if bid.FreelancerID == callerID {
		return bid, nil
	}
	job, err := s.jobs.Get(ctx, bid.JobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != callerID {
		return nil, fmt.Errorf("%w: not a party to this bid", ErrForbidden)
	}
	return bid, nil
}

// ListForJob returns a job's bids for its owning client, cheapest first
func (s *BidService) ListForJob(ctx context.Context, jobID, callerID string) ([]model.BidWithFreelancer, error) {
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
	return s.bids.ListByJob(ctx, jobID)
}

// ListMine returns the calling freelancer's bids with job summaries
func (s *BidService) ListMine(ctx context.Context, freelancerID string) ([]model.BidWithJob, error) {
	return s.bids.ListByFreelancer(ctx, freelancerID)
}

// Withdraw retracts the caller's own pending bid and releases its slot in
// the job's counter
func (s *BidService) Withdraw(ctx context.Context, bidID, callerID string) error {
	bid, err := s.bids.Get(ctx, bidID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: bid", ErrNotFound)
		}
		return err
	}
	if bid.FreelancerID != callerID {
		return fmt.Errorf("%w: not the bid owner", ErrForbidden)
	}
	if bid.Status != model.BidStatusPending {
		return fmt.Errorf("%w: only pending bids can be withdrawn", ErrInvalidState)
	}

	if err := s.bids.Withdraw(ctx, bidID, bid.JobID, time.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: bid", ErrNotFound)
		}
		if errors.Is(err, store.ErrStatusConflict) {
			return fmt.Errorf("%w: bid is no longer pending", ErrInvalidState)
		}
		return err
	}
	return nil
}

// Reject declines a pending bid on the caller's job. The bid stays counted
// in totalBids; only withdrawal releases the slot.
func (s *BidService) Reject(ctx context.Context, bidID, callerID string) error {
	bid, job, err := s.bidWithJob(ctx, bidID)
	if err != nil {
		return err
	}
	if job.ClientID != callerID {
		return fmt.Errorf("%w: not the job owner", ErrForbidden)
	}
	if bid.Status != model.BidStatusPending {
		return fmt.Errorf("%w: only pending bids can be rejected", ErrInvalidState)
	}

	if err := s.bids.Reject(ctx, bidID, time.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: bid", ErrNotFound)
		}
		if errors.Is(err, store.ErrStatusConflict) {
			return fmt.Errorf("%w: bid is no longer pending", ErrInvalidState)
		}
		return err
	}
	return nil
}

// Accept binds the job to this bid's freelancer in one transaction: the bid
// becomes the single accepted one, the job moves to in-progress, and every
// sibling pending bid is rejected. A second acceptance attempt fails with a
// conflict, whether it arrives after this one commits or races it.
func (s *BidService) Accept(ctx context.Context, bidID, callerID string) (*model.Bid, error) {
	bid, job, err := s.bidWithJob(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != callerID {
		return nil, fmt.Errorf("%w: not the job owner", ErrForbidden)
	}
	if job.Status == model.JobStatusInProgress {
		return nil, fmt.Errorf("%w: a bid has already been accepted for this job", ErrConflict)
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("%w: job is no longer open", ErrInvalidState)
	}
	if bid.Status != model.BidStatusPending {
		return nil, fmt.Errorf("%w: bid is not pending", ErrInvalidState)
	}

	now := time.Now()
	if err := s.bids.Accept(ctx, bid, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: bid", ErrNotFound)
		}
		if errors.Is(err, store.ErrStatusConflict) {
			// Lost the race to a concurrent acceptance
			return nil, fmt.Errorf("%w: a bid has already been accepted for this job", ErrConflict)
		}
		return nil, err
	}

	bid.Status = model.BidStatusAccepted
	bid.AcceptedAt = &now
	bid.UpdatedAt = now

	s.notify(bid.JobID, EventBidAccepted, map[string]interface{}{
		"jobId":        bid.JobID,
		"bidId":        bid.ID,
		"freelancer":   bid.FreelancerID,
		"acceptedAt":   now,
		"deliveryDays": bid.DaysUntilDelivery(now),
	})
	return bid, nil
}

func (s *BidService) bidWithJob(ctx context.Context, bidID string) (*model.Bid, *model.Job, error) {
	bid, err := s.bids.Get(ctx, bidID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: bid", ErrNotFound)
		}
		return nil, nil, err
	}
	job, err := s.jobs.Get(ctx, bid.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: job", ErrNotFound)
		}
		return nil, nil, err
	}
	return bid, job, nil
}

func (s *BidService) notify(jobID, event string, data interface{}) {
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
