package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/workbridge/api/internal/model"
	"github.com/workbridge/api/internal/store"
)

// testEnv wires the services against an in-memory database. The asynq client
// is nil so notifications are skipped.
type testEnv struct {
	db       *store.DB
	users    *store.UserStore
	jobs     *JobService
	bids     *BidService
	messages *MessageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := store.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	userStore := store.NewUserStore(db)
	jobStore := store.NewJobStore(db)
	bidStore := store.NewBidStore(db)
	messageStore := store.NewMessageStore(db)

	return &testEnv{
		db:       db,
		users:    userStore,
		jobs:     NewJobService(jobStore, bidStore, messageStore, nil),
		bids:     NewBidService(bidStore, jobStore, nil),
		messages: NewMessageService(messageStore, jobStore, userStore, nil),
	}
}

func (e *testEnv) addUser(t *testing.T, id string, role model.Role) {
	t.Helper()
	err := e.users.Create(context.Background(), &model.User{
		ID:        id,
		Name:      "User " + id,
		Email:     id + "@example.com",
		Role:      role,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func (e *testEnv) postJob(t *testing.T, clientID string) *model.Job {
	t.Helper()
	job, err := e.jobs.Create(context.Background(), clientID, &model.CreateJobRequest{
		Title:       "Build a landing page",
		Description: "Responsive landing page with contact form",
		Skills:      []string{"html", "css"},
		Budget:      model.Budget{Min: 100, Max: 500},
		Deadline:    time.Now().Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	return job
}

func (e *testEnv) submitBid(t *testing.T, jobID, freelancerID string, amount float64) *model.Bid {
	t.Helper()
	bid, err := e.bids.Submit(context.Background(), jobID, freelancerID, &model.SubmitBidRequest{
		Proposal:  "I can deliver this within a week.",
		BidAmount: amount,
		Delivery:  time.Now().Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)
	return bid
}
