package model

import "time"

// Budget is a job's price range. min < max is enforced at creation.
type Budget struct {
	Min      float64 `json:"min" validate:"required,gt=0"`
	Max      float64 `json:"max" validate:"required,gtfield=Min"`
	Currency string  `json:"currency" validate:"omitempty,len=3"`
}

// Job represents a work posting owned by a client
type Job struct {
	ID          string          `json:"id"`
	ClientID    string          `json:"client"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Skills      []string        `json:"skills"`
	Budget      Budget          `json:"budget"`
	Deadline    time.Time       `json:"deadline"`
	Status      JobStatus       `json:"status"`
	Experience  ExperienceLevel `json:"experienceLevel"`
	IsUrgent    bool            `json:"isUrgent"`

	// TotalBids counts non-withdrawn bids referencing this job. Maintained
	// in the same transaction as bid creation/withdrawal.
	TotalBids int `json:"totalBids"`

	// AcceptedBid and AcceptedFreelancer are set together, exactly once,
	// by the acceptance transition.
	AcceptedBid        *string `json:"acceptedBid,omitempty"`
	AcceptedFreelancer *string `json:"acceptedFreelancer,omitempty"`

	ProjectStartDate *time.Time `json:"projectStartDate,omitempty"`
	ProjectEndDate   *time.Time `json:"projectEndDate,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// JobWithClient decorates a job with its client's public details
type JobWithClient struct {
	Job
	Client User `json:"clientInfo"`
}

// CreateJobRequest is the payload for posting a new job
type CreateJobRequest struct {
	Title       string          `json:"title" validate:"required,min=3,max=200"`
	Description string          `json:"description" validate:"omitempty,max=5000"`
	Skills      []string        `json:"skills" validate:"omitempty,max=20,dive,min=1"`
	Budget      Budget          `json:"budget" validate:"required"`
	Deadline    time.Time       `json:"deadline" validate:"required"`
	Experience  ExperienceLevel `json:"experienceLevel" validate:"omitempty,oneof=entry intermediate expert"`
	IsUrgent    bool            `json:"isUrgent"`
}

// UpdateJobRequest is the payload for editing an open job. Nil fields are
// left untouched.
type UpdateJobRequest struct {
	Title       *string          `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Skills      []string         `json:"skills" validate:"omitempty,max=20,dive,min=1"`
	Budget      *Budget          `json:"budget"`
	Deadline    *time.Time       `json:"deadline"`
	Experience  *ExperienceLevel `json:"experienceLevel" validate:"omitempty,oneof=entry intermediate expert"`
	IsUrgent    *bool            `json:"isUrgent"`
	Status      *JobStatus       `json:"status" validate:"omitempty,oneof=open cancelled closed"`
}

// JobSearchFilter narrows the open-jobs listing for freelancers
type JobSearchFilter struct {
	Keyword    string
	Skills     []string
	MinBudget  float64
	MaxBudget  float64
	Experience ExperienceLevel
	UrgentOnly bool

	// ExcludeClient hides a client's own postings from their browse view
	ExcludeClient string
}

// FreelancerDashboard aggregates the freelancer landing view
type FreelancerDashboard struct {
	AvailableJobs []JobWithClient `json:"availableJobs"`
	ActiveBids    []BidWithJob    `json:"activeBids"`
	AcceptedJobs  []JobWithClient `json:"acceptedJobs"`
	CompletedJobs []JobWithClient `json:"completedJobs"`
}
