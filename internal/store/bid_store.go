package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/workbridge/api/internal/model"
)

// BidStore persists bids. The write paths that touch both the bids and jobs
// tables (creation, withdrawal, acceptance) run as single transactions so the
// total_bids counter and the one-winner invariant hold under concurrency.
type BidStore struct {
	db *DB
}

func NewBidStore(db *DB) *BidStore {
	return &BidStore{db: db}
}

const bidColumns = `id, job_id, freelancer_id, proposal, bid_amount, estimated_delivery,
	status, accepted_at, rejected_at, client_notes, created_at, updated_at`

// Create inserts a pending bid and increments the job's counter in the same
// transaction. The counter update is guarded on the job still being open, so
// a submission whose precondition read raced the acceptance transition aborts
// with ErrStatusConflict instead of landing a pending bid on an in-progress
// job. Returns ErrDuplicate when the freelancer already bid on the job.
func (s *BidStore) Create(ctx context.Context, bid *model.Bid) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bids (
				id, job_id, freelancer_id, proposal, bid_amount,
				estimated_delivery, status, client_notes, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, bid.ID, bid.JobID, bid.FreelancerID, bid.Proposal, bid.BidAmount,
			bid.Delivery, bid.Status, bid.ClientNotes, bid.CreatedAt, bid.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			if isForeignKeyViolation(err) {
				return ErrForeignKey
			}
			return fmt.Errorf("failed to create bid: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE jobs SET total_bids = total_bids + 1, updated_at = ? WHERE id = ? AND status = 'open'`,
			bid.CreatedAt, bid.JobID)
		if err != nil {
			return fmt.Errorf("failed to increment bid counter: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			// The insert's foreign key already proved the job exists, so a
			// missed guard means it left the open state
			return ErrStatusConflict
		}
		return nil
	})
}

// Get retrieves a bid by ID
func (s *BidStore) Get(ctx context.Context, id string) (*model.Bid, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = ?`, id)
	return scanBid(row)
}

// GetByJobAndFreelancer returns the freelancer's bid on a job, if any
func (s *BidStore) GetByJobAndFreelancer(ctx context.Context, jobID, freelancerID string) (*model.Bid, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE job_id = ? AND freelancer_id = ?`,
		jobID, freelancerID)
	return scanBid(row)
}

// ListByJob returns all bids on a job with freelancer details, cheapest
// first, then earliest
func (s *BidStore) ListByJob(ctx context.Context, jobID string) ([]model.BidWithFreelancer, error) {
	query := `
		SELECT b.id, b.job_id, b.freelancer_id, b.proposal, b.bid_amount,
			b.estimated_delivery, b.status, b.accepted_at, b.rejected_at,
			b.client_notes, b.created_at, b.updated_at,
			u.id, u.name, u.email, u.role, u.created_at
		FROM bids b
		JOIN users u ON u.id = b.freelancer_id
		WHERE b.job_id = ?
		ORDER BY b.bid_amount ASC, b.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	var bids []model.BidWithFreelancer
	for rows.Next() {
		var bf model.BidWithFreelancer
		err := scanBidInto(rows, &bf.Bid,
			&bf.Freelancer.ID, &bf.Freelancer.Name, &bf.Freelancer.Email,
			&bf.Freelancer.Role, &bf.Freelancer.CreatedAt)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bid rows: %w", err)
	}
	return bids, nil
}

// ListByFreelancer returns a freelancer's bids with job summaries, newest
// first. Statuses narrow the result when given.
func (s *BidStore) ListByFreelancer(ctx context.Context, freelancerID string, statuses ...model.BidStatus) ([]model.BidWithJob, error) {
	query := `
		SELECT j.id, j.client_id, j.title, j.description, j.skills,
			j.budget_min, j.budget_max, j.currency, j.deadline, j.status,
			j.experience_level, j.is_urgent, j.total_bids, j.accepted_bid,
			j.accepted_freelancer, j.project_start_date, j.project_end_date,
			j.completed_at, j.created_at, j.updated_at,
			u.id, u.name, u.email, u.role, u.created_at,
			b.id, b.job_id, b.freelancer_id, b.proposal, b.bid_amount,
			b.estimated_delivery, b.status, b.accepted_at, b.rejected_at,
			b.client_notes, b.created_at, b.updated_at
		FROM bids b
		JOIN jobs j ON j.id = b.job_id
		JOIN users u ON u.id = j.client_id
		WHERE b.freelancer_id = ?
	`
	args := []interface{}{freelancerID}
	if len(statuses) > 0 {
		query += " AND b.status IN ("
		for i, st := range statuses {
			if i > 0 {
				query += ","
			}
			query += "?"
			args = append(args, st)
		}
		query += ")"
	}
	query += " ORDER BY b.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list freelancer bids: %w", err)
	}
	defer rows.Close()

	var bids []model.BidWithJob
	for rows.Next() {
		var bj model.BidWithJob
		var acceptedAt, rejectedAt sql.NullTime
		err := scanJobClientInto(rows, &bj.Job,
			&bj.Bid.ID, &bj.Bid.JobID, &bj.Bid.FreelancerID, &bj.Bid.Proposal,
			&bj.Bid.BidAmount, &bj.Bid.Delivery, &bj.Bid.Status,
			&acceptedAt, &rejectedAt, &bj.Bid.ClientNotes,
			&bj.Bid.CreatedAt, &bj.Bid.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if acceptedAt.Valid {
			bj.Bid.AcceptedAt = &acceptedAt.Time
		}
		if rejectedAt.Valid {
			bj.Bid.RejectedAt = &rejectedAt.Time
		}
		bids = append(bids, bj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bid rows: %w", err)
	}
	return bids, nil
}

// ListPendingByJob returns the pending bids on a job (used to notify losing
// bidders before a job is removed)
func (s *BidStore) ListPendingByJob(ctx context.Context, jobID string) ([]model.Bid, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE job_id = ? AND status = 'pending' ORDER BY created_at ASC`,
		jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending bids: %w", err)
	}
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		var bid model.Bid
		if err := scanBidInto(rows, &bid); err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bid rows: %w", err)
	}
	return bids, nil
}

// CountByJob counts a job's bids excluding withdrawn ones
func (s *BidStore) CountByJob(ctx context.Context, jobID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bids WHERE job_id = ? AND status != 'withdrawn'`, jobID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bids: %w", err)
	}
	return count, nil
}

// Withdraw moves a pending bid to withdrawn and decrements the job's counter
// in the same transaction
func (s *BidStore) Withdraw(ctx context.Context, bidID, jobID string, now time.Time) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE bids SET status = 'withdrawn', updated_at = ?
			WHERE id = ? AND status = 'pending'
		`, now, bidID)
		if err != nil {
			return fmt.Errorf("failed to withdraw bid: %w", err)
		}
		if err := s.requireGuardedTx(ctx, tx, result, bidID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET total_bids = total_bids - 1, updated_at = ? WHERE id = ?`,
			now, jobID)
		if err != nil {
			return fmt.Errorf("failed to decrement bid counter: %w", err)
		}
		return nil
	})
}

// Reject moves a pending bid to rejected. The counter is untouched: rejected
// bids still count toward total_bids.
func (s *BidStore) Reject(ctx context.Context, bidID string, now time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE bids SET status = 'rejected', rejected_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, now, now, bidID)
	if err != nil {
		return fmt.Errorf("failed to reject bid: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return s.missingOrConflict(ctx, bidID)
	}
	return nil
}

// Accept performs the acceptance transition as one transaction:
//
//  1. the winning bid moves pending -> accepted;
//  2. the job moves open -> in-progress and binds the winner;
//  3. every sibling pending bid moves to rejected.
//
// The bid update runs first so a conflicting writer fails on the narrowest
// guard; either guard matching zero rows aborts the whole transaction, which
// is what makes a second concurrent acceptance lose cleanly.
func (s *BidStore) Accept(ctx context.Context, bid *model.Bid, now time.Time) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE bids SET status = 'accepted', accepted_at = ?, updated_at = ?
			WHERE id = ? AND status = 'pending'
		`, now, now, bid.ID)
		if err != nil {
			return fmt.Errorf("failed to accept bid: %w", err)
		}
		if err := s.requireGuardedTx(ctx, tx, result, bid.ID); err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'in-progress', accepted_bid = ?, accepted_freelancer = ?,
				project_start_date = ?, updated_at = ?
			WHERE id = ? AND status = 'open'
		`, bid.ID, bid.FreelancerID, now, now, bid.JobID)
		if err != nil {
			return fmt.Errorf("failed to transition job: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return ErrStatusConflict
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE bids SET status = 'rejected', rejected_at = ?, updated_at = ?
			WHERE job_id = ? AND id != ? AND status = 'pending'
		`, now, now, bid.JobID, bid.ID)
		if err != nil {
			return fmt.Errorf("failed to reject sibling bids: %w", err)
		}
		return nil
	})
}

func (s *BidStore) requireGuardedTx(ctx context.Context, tx *sql.Tx, result sql.Result, bidID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM bids WHERE id = ?)`, bidID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check bid existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func (s *BidStore) missingOrConflict(ctx context.Context, bidID string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM bids WHERE id = ?)`, bidID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check bid existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func scanBidInto(sc rowScanner, bid *model.Bid, extra ...interface{}) error {
	var acceptedAt, rejectedAt sql.NullTime

	dest := []interface{}{
		&bid.ID, &bid.JobID, &bid.FreelancerID, &bid.Proposal, &bid.BidAmount,
		&bid.Delivery, &bid.Status, &acceptedAt, &rejectedAt,
		&bid.ClientNotes, &bid.CreatedAt, &bid.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := sc.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("failed to scan bid: %w", err)
	}

	if acceptedAt.Valid {
		bid.AcceptedAt = &acceptedAt.Time
	}
	if rejectedAt.Valid {
		bid.RejectedAt = &rejectedAt.Time
	}
	return nil
}

func scanBid(sc rowScanner) (*model.Bid, error) {
	var bid model.Bid
	if err := scanBidInto(sc, &bid); err != nil {
		return nil, err
	}
	return &bid, nil
}
