package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workbridge/api/internal/model"
)

func TestMessageService_SendGating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "client1", model.RoleClient)
	env.addUser(t, "fl1", model.RoleFreelancer)
	env.addUser(t, "fl2", model.RoleFreelancer)

	job := env.postJob(t, "client1")
	req := model.SendMessageRequest{JobID: job.ID, Content: "Hello"}

	// Outsiders cannot write, before or after acceptance
	_, err := env.messages.Send(ctx, "fl1", &req)
	require.ErrorIs(t, err, ErrForbidden)

	// The client has nobody to talk to before a bid is accepted
	_, err = env.messages.Send(ctx, "client1", &req)
	require.ErrorIs(t, err, ErrInvalidState)

	bid := env.submitBid(t, job.ID, "fl1", 200)
	_, err = env.bids.Accept(ctx, bid.ID, "client1")
	require.NoError(t, err)

	// Both parties may write now; the recipient is deduced
	sent, err := env.messages.Send(ctx, "client1", &req)
	require.NoError(t, err)
	require.Equal(t, "fl1", sent.RecipientID)
	require.Equal(t, model.MessageTypeText, sent.Type)

	reply, err := env.messages.Send(ctx, "fl1", &model.SendMessageRequest{JobID: job.ID, Content: "Hi"})
	require.NoError(t, err)
	require.Equal(t, "client1", reply.RecipientID)

	// A losing bidder is still an outsider
	_, err = env.messages.Send(ctx, "fl2", &req)
	require.ErrorIs(t, err, ErrForbidden)

	// Blank content
	_, err = env.messages.Send(ctx, "client1", &model.SendMessageRequest{JobID: job.ID, Content: "   "})
	require.ErrorIs(t, err, ErrInvalidArgument)

	// The system type is reserved for engine-authored notices
	_, err = env.messages.Send(ctx, "client1", &model.SendMessageRequest{
		JobID:   job.ID,
		Content: "Done",
		Type:    model.MessageTypeSystem,
	})
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Missing job
	_, err = env.messages.Send(ctx, "client1", &model.SendMessageRequest{JobID: "missing", Content: "Hello"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMessageService_ConversationMarksRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "client1", model.RoleClient)
	env.addUser(t, "fl1", model.RoleFreelancer)
	env.addUser(t, "fl2", model.RoleFreelancer)

	job := env.postJob(t, "client1")
	bid := env.submitBid(t, job.ID, "fl1", 200)
	_, err := env.bids.Accept(ctx, bid.ID, "client1")
	require.NoError(t, err)

	_, err = env.messages.Send(ctx, "client1", &model.SendMessageRequest{JobID: job.ID, Content: "One"})
	require.NoError(t, err)
	_, err = env.messages.Send(ctx, "client1", &model.SendMessageRequest{JobID: job.ID, Content: "Two"})
	require.NoError(t, err)

	unread, err := env.messages.UnreadCount(ctx, "fl1")
	require.NoError(t, err)
	require.Equal(t, 2, unread)

	// Outsiders cannot read the conversation
	_, err = env.messages.Conversation(ctx, job.ID, "fl2")
	require.ErrorIs(t, err, ErrForbidden)

	conv, err := env.messages.Conversation(ctx, job.ID, "fl1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	require.Equal(t, job.ID, conv.Job.ID)

	// Reading clears the caller's unread counter
	unread, err = env.messages.UnreadCount(ctx, "fl1")
	require.NoError(t, err)
	require.Zero(t, unread)
}

func TestMessageService_Inbox(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "client1", model.RoleClient)
	env.addUser(t, "fl1", model.RoleFreelancer)

	job := env.postJob(t, "client1")
	bid := env.submitBid(t, job.ID, "fl1", 200)
	_, err := env.bids.Accept(ctx, bid.ID, "client1")
	require.NoError(t, err)

	_, err = env.messages.Send(ctx, "fl1", &model.SendMessageRequest{JobID: job.ID, Content: "Progress update"})
	require.NoError(t, err)

	inbox, err := env.messages.Inbox(ctx, "client1")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Equal(t, job.ID, inbox[0].JobID)
	require.Equal(t, "Progress update", inbox[0].LastMessage.Content)
	require.Equal(t, 1, inbox[0].UnreadCount)
}
