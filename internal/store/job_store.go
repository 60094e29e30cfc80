package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/workbridge/api/internal/model"
)

// JobStore persists job postings and their lifecycle status. Every
// status-changing write is conditional on the current status so concurrent
// transitions cannot clobber each other.
type JobStore struct {
	db *DB
}

func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

const jobColumns = `id, client_id, title, description, skills, budget_min, budget_max, currency,
	deadline, status, experience_level, is_urgent, total_bids, accepted_bid,
	accepted_freelancer, project_start_date, project_end_date, completed_at,
	created_at, updated_at`

// Create inserts a new job posting
func (s *JobStore) Create(ctx context.Context, job *model.Job) error {
	skills, err := json.Marshal(job.Skills)
	if err != nil {
		return fmt.Errorf("failed to marshal skills: %w", err)
	}

	query := `
		INSERT INTO jobs (
			id, client_id, title, description, skills, budget_min, budget_max,
			currency, deadline, status, experience_level, is_urgent,
			total_bids, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		job.ID, job.ClientID, job.Title, job.Description, string(skills),
		job.Budget.Min, job.Budget.Max, job.Budget.Currency, job.Deadline,
		job.Status, job.Experience, job.IsUrgent, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrForeignKey
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// Get retrieves a job by ID
func (s *JobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// GetWithClient retrieves a job together with its client's public details
func (s *JobStore) GetWithClient(ctx context.Context, id string) (*model.JobWithClient, error) {
	query := `
		SELECT j.id, j.client_id, j.title, j.description, j.skills,
			j.budget_min, j.budget_max, j.currency, j.deadline, j.status,
			j.experience_level, j.is_urgent, j.total_bids, j.accepted_bid,
			j.accepted_freelancer, j.project_start_date, j.project_end_date,
			j.completed_at, j.created_at, j.updated_at,
			u.id, u.name, u.email, u.role, u.created_at
		FROM jobs j
		JOIN users u ON u.id = j.client_id
		WHERE j.id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	return scanJobWithClient(row)
}

// ListByClient returns a client's own postings, newest first
func (s *JobStore) ListByClient(ctx context.Context, clientID string) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE client_id = ? ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListByFreelancer returns jobs bound to a freelancer through acceptance,
// filtered to the given statuses
func (s *JobStore) ListByFreelancer(ctx context.Context, freelancerID string, statuses ...model.JobStatus) ([]model.JobWithClient, error) {
	query := `
		SELECT j.id, j.client_id, j.title, j.description, j.skills,
			j.budget_min, j.budget_max, j.currency, j.deadline, j.status,
			j.experience_level, j.is_urgent, j.total_bids, j.accepted_bid,
			j.accepted_freelancer, j.project_start_date, j.project_end_date,
			j.completed_at, j.created_at, j.updated_at,
			u.id, u.name, u.email, u.role, u.created_at
		FROM jobs j
		JOIN users u ON u.id = j.client_id
		WHERE j.accepted_freelancer = ?
	`
	args := []interface{}{freelancerID}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += fmt.Sprintf(" AND j.status IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY j.updated_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list freelancer jobs: %w", err)
	}
	defer rows.Close()
	return collectJobsWithClient(rows)
}

// Search returns open jobs matching the filter, newest first
func (s *JobStore) Search(ctx context.Context, filter model.JobSearchFilter) ([]model.JobWithClient, error) {
	query := `
		SELECT j.id, j.client_id, j.title, j.description, j.skills,
			j.budget_min, j.budget_max, j.currency, j.deadline, j.status,
			j.experience_level, j.is_urgent, j.total_bids, j.accepted_bid,
			j.accepted_freelancer, j.project_start_date, j.project_end_date,
			j.completed_at, j.created_at, j.updated_at,
			u.id, u.name, u.email, u.role, u.created_at
		FROM jobs j
		JOIN users u ON u.id = j.client_id
		WHERE j.status = 'open'
	`
	args := []interface{}{}

	if filter.ExcludeClient != "" {
		query += " AND j.client_id != ?"
		args = append(args, filter.ExcludeClient)
	}
	if filter.Keyword != "" {
		query += " AND (j.title LIKE ? OR j.description LIKE ?)"
		kw := "%" + filter.Keyword + "%"
		args = append(args, kw, kw)
	}
	if filter.MinBudget > 0 {
		query += " AND j.budget_min >= ?"
		args = append(args, filter.MinBudget)
	}
	if filter.MaxBudget > 0 {
		query += " AND j.budget_max <= ?"
		args = append(args, filter.MaxBudget)
	}
	if filter.Experience != "" {
		query += " AND j.experience_level = ?"
		args = append(args, filter.Experience)
	}
	if filter.UrgentOnly {
		query += " AND j.is_urgent = 1"
	}
	for _, skill := range filter.Skills {
		// Skills are stored as a JSON array of strings
		query += " AND j.skills LIKE ?"
		args = append(args, `%"`+skill+`"%`)
	}
	query += " ORDER BY j.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search jobs: %w", err)
	}
	defer rows.Close()
	return collectJobsWithClient(rows)
}

// UpdateOpen writes the mutable fields of a job, guarded on status = open.
// Returns ErrStatusConflict when the job left the open state first.
func (s *JobStore) UpdateOpen(ctx context.Context, job *model.Job) error {
	skills, err := json.Marshal(job.Skills)
	if err != nil {
		return fmt.Errorf("failed to marshal skills: %w", err)
	}

	query := `
		UPDATE jobs
		SET title = ?, description = ?, skills = ?, budget_min = ?,
			budget_max = ?, currency = ?, deadline = ?, status = ?,
			experience_level = ?, is_urgent = ?, updated_at = ?
		WHERE id = ? AND status = 'open'
	`
	result, err := s.db.ExecContext(ctx, query,
		job.Title, job.Description, string(skills), job.Budget.Min,
		job.Budget.Max, job.Budget.Currency, job.Deadline, job.Status,
		job.Experience, job.IsUrgent, job.UpdatedAt, job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return s.checkGuarded(ctx, result, job.ID)
}

// Complete transitions a job from in-progress to completed and appends the
// system notice in the same transaction.
func (s *JobStore) Complete(ctx context.Context, jobID string, notice *model.Message, now time.Time) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'completed', project_end_date = ?, completed_at = ?, updated_at = ?
			WHERE id = ? AND status = 'in-progress'
		`, now, now, now, jobID)
		if err != nil {
			return fmt.Errorf("failed to complete job: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return ErrStatusConflict
		}
		if err := insertMessageTx(ctx, tx, notice); err != nil {
			return fmt.Errorf("failed to append completion notice: %w", err)
		}
		return nil
	})
}

// DeleteOpen removes a job while it is still open. Bids and messages go with
// it (foreign key cascade). Returns ErrStatusConflict when the job exists but
// is no longer open or is owned by someone else.
func (s *JobStore) DeleteOpen(ctx context.Context, jobID, clientID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE id = ? AND client_id = ? AND status = 'open'`,
		jobID, clientID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return s.checkGuarded(ctx, result, jobID)
}

// ReconcileTotalBids rewrites drifted total_bids counters from the bid rows
// and reports how many jobs were repaired.
func (s *JobStore) ReconcileTotalBids(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET total_bids = (
			SELECT COUNT(*) FROM bids
			WHERE bids.job_id = jobs.id AND bids.status != 'withdrawn'
		)
		WHERE total_bids != (
			SELECT COUNT(*) FROM bids
			WHERE bids.job_id = jobs.id AND bids.status != 'withdrawn'
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile bid counters: %w", err)
	}
	return result.RowsAffected()
}

// checkGuarded distinguishes "row missing" from "guard did not match" after
// a conditional write.
func (s *JobStore) checkGuarded(ctx context.Context, result sql.Result, jobID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = ?)`, jobID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check job existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJobInto(sc rowScanner, job *model.Job, extra ...interface{}) error {
	var (
		skills             string
		acceptedBid        sql.NullString
		acceptedFreelancer sql.NullString
		startDate          sql.NullTime
		endDate            sql.NullTime
		completedAt        sql.NullTime
	)

	dest := []interface{}{
		&job.ID, &job.ClientID, &job.Title, &job.Description, &skills,
		&job.Budget.Min, &job.Budget.Max, &job.Budget.Currency, &job.Deadline,
		&job.Status, &job.Experience, &job.IsUrgent, &job.TotalBids,
		&acceptedBid, &acceptedFreelancer, &startDate, &endDate, &completedAt,
		&job.CreatedAt, &job.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := sc.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("failed to scan job: %w", err)
	}

	if err := json.Unmarshal([]byte(skills), &job.Skills); err != nil {
		return fmt.Errorf("failed to unmarshal skills: %w", err)
	}
	if acceptedBid.Valid {
		job.AcceptedBid = &acceptedBid.String
	}
	if acceptedFreelancer.Valid {
		job.AcceptedFreelancer = &acceptedFreelancer.String
	}
	if startDate.Valid {
		job.ProjectStartDate = &startDate.Time
	}
	if endDate.Valid {
		job.ProjectEndDate = &endDate.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return nil
}

func scanJob(sc rowScanner) (*model.Job, error) {
	var job model.Job
	if err := scanJobInto(sc, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// scanJobClientInto scans job + client columns, then any extra destinations
func scanJobClientInto(sc rowScanner, jc *model.JobWithClient, extra ...interface{}) error {
	dest := []interface{}{
		&jc.Client.ID, &jc.Client.Name, &jc.Client.Email, &jc.Client.Role, &jc.Client.CreatedAt,
	}
	dest = append(dest, extra...)
	return scanJobInto(sc, &jc.Job, dest...)
}

func scanJobWithClient(sc rowScanner) (*model.JobWithClient, error) {
	var jc model.JobWithClient
	err := scanJobInto(sc, &jc.Job,
		&jc.Client.ID, &jc.Client.Name, &jc.Client.Email, &jc.Client.Role, &jc.Client.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &jc, nil
}

func collectJobs(rows *sql.Rows) ([]model.Job, error) {
	var jobs []model.Job
	for rows.Next() {
		var job model.Job
		if err := scanJobInto(rows, &job); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

func collectJobsWithClient(rows *sql.Rows) ([]model.JobWithClient, error) {
	var jobs []model.JobWithClient
	for rows.Next() {
		var jc model.JobWithClient
		err := scanJobInto(rows, &jc.Job,
			&jc.Client.ID, &jc.Client.Name, &jc.Client.Email, &jc.Client.Role, &jc.Client.CreatedAt)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, jc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}
