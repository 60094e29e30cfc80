package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/workbridge/api/internal/model"
)

// MessageStore persists per-job conversations. Messages are append-only;
// the only mutation is the read receipt.
type MessageStore struct {
	db *DB
}

func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{db: db}
}

// insertMessageTx appends a message inside an existing transaction. Shared
// with the job completion transition, which writes its system notice
// atomically with the status change.
func insertMessageTx(ctx context.Context, tx *sql.Tx, msg *model.Message) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO messages (
			id, job_id, sender_id, recipient_id, content, message_type,
			is_read, created_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`, msg.ID, msg.JobID, msg.SenderID, msg.RecipientID, msg.Content,
		msg.Type, msg.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrForeignKey
		}
		return err
	}
	return nil
}

// Create appends a message
func (s *MessageStore) Create(ctx context.Context, msg *model.Message) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := insertMessageTx(ctx, tx, msg); err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		return nil
	})
}

// ListByJob returns a job's conversation, oldest first
func (s *MessageStore) ListByJob(ctx context.Context, jobID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, sender_id, recipient_id, content, message_type,
			is_read, read_at, created_at
		FROM messages
		WHERE job_id = ?
		ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return messages, nil
}

// MarkRead stamps every unread message addressed to the recipient on a job
func (s *MessageStore) MarkRead(ctx context.Context, jobID, recipientID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1, read_at = ?
		WHERE job_id = ? AND recipient_id = ? AND is_read = 0
	`, now, jobID, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// Inbox returns one row per job the user converses on: the latest message
// and the count of unread incoming messages, most recent conversation first.
func (s *MessageStore) Inbox(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.job_id, j.title,
			m.id, m.job_id, m.sender_id, m.recipient_id, m.content,
			m.message_type, m.is_read, m.read_at, m.created_at,
			(SELECT COUNT(*) FROM messages um
			 WHERE um.job_id = m.job_id AND um.recipient_id = ? AND um.is_read = 0)
		FROM messages m
		JOIN jobs j ON j.id = m.job_id
		WHERE (m.sender_id = ? OR m.recipient_id = ?)
		AND m.rowid = (
			SELECT m2.rowid FROM messages m2
			WHERE m2.job_id = m.job_id AND (m2.sender_id = ? OR m2.recipient_id = ?)
			ORDER BY m2.created_at DESC, m2.rowid DESC
			LIMIT 1
		)
		ORDER BY m.created_at DESC
	`, userID, userID, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load inbox: %w", err)
	}
	defer rows.Close()

	var summaries []model.ConversationSummary
	for rows.Next() {
		var cs model.ConversationSummary
		var readAt sql.NullTime
		err := rows.Scan(
			&cs.JobID, &cs.JobTitle,
			&cs.LastMessage.ID, &cs.LastMessage.JobID, &cs.LastMessage.SenderID,
			&cs.LastMessage.RecipientID, &cs.LastMessage.Content,
			&cs.LastMessage.Type, &cs.LastMessage.IsRead, &readAt,
			&cs.LastMessage.CreatedAt, &cs.UnreadCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inbox row: %w", err)
		}
		if readAt.Valid {
			cs.LastMessage.ReadAt = &readAt.Time
		}
		summaries = append(summaries, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inbox rows: %w", err)
	}
	return summaries, nil
}

// UnreadCount returns the user's total unread message count
func (s *MessageStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE recipient_id = ? AND is_read = 0`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

func scanMessage(sc rowScanner) (*model.Message, error) {
	var msg model.Message
	var readAt sql.NullTime
	err := sc.Scan(
		&msg.ID, &msg.JobID, &msg.SenderID, &msg.RecipientID, &msg.Content,
		&msg.Type, &msg.IsRead, &readAt, &msg.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	if readAt.Valid {
		msg.ReadAt = &readAt.Time
	}
	return &msg, nil
}
