package model

// JobStatus represents the lifecycle state of a job posting
type JobStatus string

const (
	JobStatusOpen       JobStatus = "open"
	JobStatusInProgress JobStatus = "in-progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusClosed     JobStatus = "closed"
)

// Terminal reports whether no further transition may leave the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled || s == JobStatusClosed
}

// BidStatus represents the lifecycle state of a bid
type BidStatus string

const (
	BidStatusPending   BidStatus = "pending"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusRejected  BidStatus = "rejected"
	BidStatusWithdrawn BidStatus = "withdrawn"
)

// Role identifies what a user may do on the platform
type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
	RoleAdmin      Role = "admin"
)

// ExperienceLevel values for jobs and freelancer profiles
type ExperienceLevel string

const (
	ExperienceEntry        ExperienceLevel = "entry"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceExpert       ExperienceLevel = "expert"
)

// MessageType distinguishes user text, file attachments and engine notices
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)
