package model

import "time"

// Bid is a freelancer's proposal against a job. At most one bid may exist
// per (job, freelancer) pair, enforced by a unique index at write time.
type Bid struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job"`
	FreelancerID string    `json:"freelancer"`
	Proposal     string    `json:"proposal"`
	BidAmount    float64   `json:"bidAmount"`
	Delivery     time.Time `json:"estimatedDelivery"`
	Status       BidStatus `json:"status"`

	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
	ClientNotes string     `json:"clientNotes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DaysUntilDelivery mirrors the informational countdown shown next to a bid.
func (b *Bid) DaysUntilDelivery(now time.Time) int {
	days := int(b.Delivery.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// BidWithFreelancer decorates a bid with its freelancer's public details
type BidWithFreelancer struct {
	Bid
	Freelancer User `json:"freelancerInfo"`
}

// BidWithJob decorates a bid with a summary of the job it targets
type BidWithJob struct {
	Bid
	Job JobWithClient `json:"jobInfo"`
}

// SubmitBidRequest is the payload for bidding on a job
type SubmitBidRequest struct {
	Proposal  string    `json:"proposal" validate:"required,min=10"`
	BidAmount float64   `json:"bidAmount" validate:"required,gt=0"`
	Delivery  time.Time `json:"estimatedDelivery" validate:"required"`
}
