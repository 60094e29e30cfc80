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

// MessageService gates the per-job conversation: only the job's client and
// its accepted freelancer may write, and the recipient is always deduced as
// the other party. Realtime delivery rides a notify task and never affects
// the stored message.
type MessageService struct {
	messages *store.MessageStore
	jobs     *store.JobStore
	users    *store.UserStore
	asynq    *asynq.Client
}

func NewMessageService(messages *store.MessageStore, jobs *store.JobStore, users *store.UserStore, asynqClient *asynq.Client) *MessageService {
	return &MessageService{
		messages: messages,
		jobs:     jobs,
		users:    users,
		asynq:    asynqClient,
	}
}

// Send appends a message to a job conversation
func (s *MessageService) Send(ctx context.Context, senderID string, req *model.SendMessageRequest) (*model.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is empty", ErrInvalidArgument)
	}
	msgType := req.Type
	if msgType == "" {
		msgType = model.MessageTypeText
	}
	if msgType == model.MessageTypeSystem {
		// System messages are authored by the engine, never by a caller
		return nil, fmt.Errorf("%w: message type %q is reserved", ErrInvalidArgument, msgType)
	}

	job, err := s.jobs.Get(ctx, req.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: job", ErrNotFound)
		}
		return nil, err
	}

	isClient := job.ClientID == senderID
	isFreelancer := job.AcceptedFreelancer != nil && *job.AcceptedFreelancer == senderID
	if !isClient && !isFreelancer {
		return nil, fmt.Errorf("%w: not a party to this job", ErrForbidden)
	}

	var recipientID string
	if isClient {
		if job.AcceptedFreelancer == nil {
			return nil, fmt.Errorf("%w: job has no accepted freelancer yet", ErrInvalidState)
		}
		recipientID = *job.AcceptedFreelancer
	} else {
		recipientID = job.ClientID
	}

	msg := &model.Message{
		ID:          uuid.NewString(),
		JobID:       job.ID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		Type:        msgType,
		CreatedAt:   time.Now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	event := model.ChatEvent{
		JobID:     job.ID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: msg.CreatedAt,
	}
	if sender, err := s.users.Get(ctx, senderID); err == nil {
		event.SenderName = sender.Name
	}
	s.notify(job.ID, EventMessageReceived, event)

	return msg, nil
}

// Conversation returns a job's message history for one of its parties and
// marks the caller's incoming messages read.
func (s *MessageService) Conversation(ctx context.Context, jobID, callerID string) (*model.Conversation, error) {
	job, err := s.jobs.GetWithClient(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: job", ErrNotFound)
		}
		return nil, err
	}

	isClient := job.ClientID == callerID
	isFreelancer := job.AcceptedFreelancer != nil && *job.AcceptedFreelancer == callerID
	if !isClient && !isFreelancer {
		return nil, fmt.Errorf("%w: not a party to this job", ErrForbidden)
	}

	messages, err := s.messages.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := s.messages.MarkRead(ctx, jobID, callerID, time.Now()); err != nil {
		// Read receipts are best-effort; the conversation itself loaded
		log.Printf("Failed to mark messages read for job %s: %v", jobID, err)
	}

	return &model.Conversation{Job: *job, Messages: messages}, nil
}

// Inbox returns the caller's conversations grouped by job with unread counts
func (s *MessageService) Inbox(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	return s.messages.Inbox(ctx, userID)
}

// UnreadCount returns the caller's total unread messages
func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.messages.UnreadCount(ctx, userID)
}

func (s *MessageService) notify(jobID, event string, data interface{}) {
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
