package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/workbridge/api/internal/model"
)

func TestBidService_SubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "client1", model.RoleClient)
	env.addUser(t, "fl1", model.RoleFreelancer)

	job := env.postJob(t, "client1")
	valid := model.SubmitBidRequest{
		Proposal:  "I can deliver this within a week.",
		BidAmount: 200,
		Delivery:  time.Now().Add(7 * 24 * time.Hour),
	}

	// Proposal too short
	req := valid
	req.Proposal = "too short"
	_, err := env.bids.Submit(ctx, job.ID, "fl1", &req)
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Non-positive amount
	req = valid
	req.BidAmount = 0
	_, err = env.bids.Submit(ctx, job.ID, "fl1", &req)
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Past delivery date
	req = valid
	req.Delivery = time.Now().Add(-time.Hour)
	_, err = env.bids.Submit(ctx, job.ID, "fl1", &req)
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Clients cannot bid on their own jobs
	_, err = env.bids.Submit(ctx, job.ID, "client1", &valid)
	require.ErrorIs(t, err, ErrForbidden)

	// Missing job
	_, err = env.bids.Submit(ctx, "missing", "fl1", &valid)
	require.ErrorIs(t, err, ErrNotFound)

	bid, err := env.bids.Submit(ctx, job.ID, "fl1", &valid)
	require.NoError(t, err)
	require.Equal(t, model.BidStatusPending, bid.Status)

	// One bid per freelancer per job
	_, err = env.bids.Submit(ctx, job.ID, "fl1", &valid)
	require.ErrorIs(t, err, ErrConflict)
}

func TestBidService_SubmitClosedJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "client1", model.RoleClient)
	env.addUser(t, "fl1", model.RoleFreelancer)

	job := env.postJob(t, "client1")
	closed := model.JobStatusClosed
	_, err := env.jobs.Update(ctx, job.ID, "client1", &model.UpdateJobRequest{Status: &closed})
	require.NoError(t, err)

	_, err = env.bids.Submit(ctx, job.ID, "fl1", &model.SubmitBidRequest{
		Proposal:  "I can deliver this within a week.",
		BidAmount: 200,
		Delivery:  time.Now().Add(7 * 24 * time.Hour),
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestBidService_ConcurrentDuplicateSubmit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "client1", model.RoleClient)
	env.addUser(t, "fl1", model.RoleFreelancer)
	job := env.postJob(t, "client1")

	req := model.SubmitBidRequest{
		Proposal:  "I can deliver this within a week.",
		BidAmount: 200,
		Delivery:  time.Now().Add(7 * 24 * time.Hour),
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.bids.Submit(ctx, job.ID, "fl1", &req)
		}(i)
	}
	wg.Wait()

	// Exactly one succeeds, the other conflicts
	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, ErrConflict)
			conflict++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, conflict)

	loaded, err := env.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.TotalBids)
}

func TestBidService_AcceptFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "client1", model.RoleClient)
	env.addUser(t, "client2", model.RoleClient)
	env.addUser(t, "fl1", model.RoleFreelancer)
	env.addUser(t, "fl2", model.RoleFreelancer)

	job := env.postJob(t, "client1")
	b1 := env.submitBid(t, job.ID, "fl1", 200)
	b2 := env.submitBid(t, job.ID, "fl2", 300)

	// Only the job owner may accept
	_, err := env.bids.Accept(ctx, b1.ID, "client2")
	require.ErrorIs(t, err, ErrForbidden)

	accepted, err := env.bids.Accept(ctx, b1.ID, "client1")
	require.NoError(t, err)
	require.Equal(t, model.BidStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)

	loaded, err := env.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusInProgress, loaded.Status)
	require.Equal(t, "fl1", *loaded.AcceptedFreelancer)
	require.Equal(t, b1.ID, *loaded.AcceptedBid)

	// The sibling pending bid was rejected
	sibling, err := env.bids.Get(ctx, b2.ID, "fl2")
	require.NoError(t, err)
	require.Equal(t, model.BidStatusRejected, sibling.Status)

	// Accepting again conflicts: the job already has a winner
	_, err = env.bids.Accept(ctx, b2.ID, "client1")
	require.ErrorIs(t, err, ErrConflict)
}

func TestBidService_AcceptAfterCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "client1", model.RoleClient)
	env.addUser(t, "fl1", model.RoleFreelancer)
	env.addUser(t, "fl2", model.RoleFreelancer)

	job := env.postJob(t, "client1")
	b1 := env.submitBid(t, job.ID, "fl1", 200)
	b2 := env.submitBid(t, job.ID, "fl2", 300)

	_, err := env.bids.Accept(ctx, b1.ID, "client1")
	require.NoError(t, err)
	require.NoError(t, env.jobs.MarkReady(ctx, job.ID, "fl1"))

	// The job left in-progress; accepting the rejected bid is an invalid state
	_, err = env.bids.Accept(ctx, b2.ID, "client1")
	require.ErrorIs(t, err, ErrInvalidState)

	// And so is withdrawing it
	require.ErrorIs(t, env.bids.Withdraw(ctx, b2.ID, "fl2"), ErrInvalidState)
}

func TestBidService_ConcurrentAccept(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "client1", model.RoleClient)
	env.addUser(t, "fl1", model.RoleFreelancer)
	env.addUser(t, "fl2", model.RoleFreelancer)

	job := env.postJob(t, "client1")
	b1 := env.submitBid(t, job.ID, "fl1", 200)
	b2 := env.submitBid(t, job.ID, "fl2", 300)

	// Both acceptances pass the precondition reads, then race the guarded
	// transaction; exactly one may win
	var wg sync.WaitGroup
	errs := make([]error, 2)
	ids := []string{b1.ID, b2.ID}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.bids.Accept(ctx, ids[i], "client1")
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, ErrConflict)
			conflict++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, conflict)

	loaded, err := env.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusInProgress, loaded.Status)
	require.NotNil(t, loaded.AcceptedBid)
}

func TestBidService_WithdrawRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "client1", model.RoleClient)
	env.addUser(t, "fl1", model.RoleFreelancer)
	env.addUser(t, "fl2", model.RoleFreelancer)

	job := env.postJob(t, "client1")
	bid := env.submitBid(t, job.ID, "fl1", 200)

	// Only the bid owner may withdraw
	require.ErrorIs(t, env.bids.Withdraw(ctx, bid.ID, "fl2"), ErrForbidden)
	require.ErrorIs(t, env.bids.Withdraw(ctx, "missing", "fl1"), ErrNotFound)

	require.NoError(t, env.bids.Withdraw(ctx, bid.ID, "fl1"))
	require.ErrorIs(t, env.bids.Withdraw(ctx, bid.ID, "fl1"), ErrInvalidState)

	loaded, err := env.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Zero(t, loaded.TotalBids)
}

func TestBidService_RejectRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "client1", model.RoleClient)
	env.addUser(t, "fl1", model.RoleFreelancer)
	env.addUser(t, "fl2", model.RoleFreelancer)

	job := env.postJob(t, "client1")
	bid := env.submitBid(t, job.ID, "fl1", 200)

	// Only the job owner may reject
	require.ErrorIs(t, env.bids.Reject(ctx, bid.ID, "fl2"), ErrForbidden)

	require.NoError(t, env.bids.Reject(ctx, bid.ID, "client1"))
	require.ErrorIs(t, env.bids.Reject(ctx, bid.ID, "client1"), ErrInvalidState)

	// Rejected bids stay counted
	loaded, err := env.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.TotalBids)
}

func TestBidService_Visibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "client1", model.RoleClient)
	env.addUser(t, "fl1", model.RoleFreelancer)
	env.addUser(t, "fl2", model.RoleFreelancer)

	job := env.postJob(t, "client1")
	bid := env.submitBid(t, job.ID, "fl1", 200)

	// Owner and bidder see the bid, a third party does not
	_, err := env.bids.Get(ctx, bid.ID, "client1")
	require.NoError(t, err)
	_, err = env.bids.Get(ctx, bid.ID, "fl1")
	require.NoError(t, err)
	_, err = env.bids.Get(ctx, bid.ID, "fl2")
	require.ErrorIs(t, err, ErrForbidden)

	// Only the owner lists a job's bids
	_, err = env.bids.ListForJob(ctx, job.ID, "fl1")
	require.ErrorIs(t, err, ErrForbidden)
	listed, err := env.bids.ListForJob(ctx, job.ID, "client1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

// Full lifecycle: post, two bids, accept, complete, then everything is frozen
func TestBidService_FullScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "client1", model.RoleClient)
	env.addUser(t, "fl1", model.RoleFreelancer)
	env.addUser(t, "fl2", model.RoleFreelancer)

	job := env.postJob(t, "client1")

	b1 := env.submitBid(t, job.ID, "fl1", 200)
	loaded, err := env.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.TotalBids)

	b2 := env.submitBid(t, job.ID, "fl2", 300)
	loaded, err = env.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.TotalBids)

	_, err = env.bids.Accept(ctx, b1.ID, "client1")
	require.NoError(t, err)

	require.NoError(t, env.jobs.MarkReady(ctx, job.ID, "fl1"))

	loaded, err = env.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusCompleted, loaded.Status)
	require.Equal(t, "fl1", *loaded.AcceptedFreelancer)

	conv, err := env.messages.Conversation(ctx, job.ID, "client1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	require.Equal(t, "client1", conv.Messages[0].RecipientID)

	_, err = env.bids.Accept(ctx, b2.ID, "client1")
	require.ErrorIs(t, err, ErrInvalidState)
}
