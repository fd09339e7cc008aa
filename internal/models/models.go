package models

import (
	"time"
)

// User is the owner of websites. Accounts are issued by the identity
// provider; this row only anchors ownership and cascades.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Website is the aggregate root that deployments and domains hang off.
type Website struct {
	ID                         string     `json:"id" db:"id"`
	UserID                     string     `json:"user_id" db:"user_id"`
	Name                       string     `json:"name" db:"name"`
	LastPublishedAt            *time.Time `json:"last_published_at,omitempty" db:"last_published_at"`
	LastDeployedAt             *time.Time `json:"last_deployed_at,omitempty" db:"last_deployed_at"`
	LastSuccessfulDeploymentID *string    `json:"last_successful_deployment_id,omitempty" db:"last_successful_deployment_id"`
	CreatedAt                  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt                  time.Time  `json:"updated_at" db:"updated_at"`
}

// WebsiteUpdate is a partial Website update. Nil fields are left alone;
// ClearLastSuccessfulDeployment nulls the pointer.
type WebsiteUpdate struct {
	Name                          *string    `json:"name,omitempty"`
	LastPublishedAt               *time.Time `json:"last_published_at,omitempty"`
	LastDeployedAt                *time.Time `json:"last_deployed_at,omitempty"`
	LastSuccessfulDeploymentID    *string    `json:"last_successful_deployment_id,omitempty"`
	ClearLastSuccessfulDeployment bool       `json:"-"`
}

type DeploymentStatus string

const (
	DeploymentQueued     DeploymentStatus = "queued"
	DeploymentInProgress DeploymentStatus = "in_progress"
	DeploymentSuccess    DeploymentStatus = "success"
	DeploymentFailed     DeploymentStatus = "failed"
	DeploymentCanceled   DeploymentStatus = "canceled"
)

// Deployment is one publish attempt of a Website.
type Deployment struct {
	ID            string           `json:"id" db:"id"`
	WebsiteID     string           `json:"website_id" db:"website_id"`
	UserID        string           `json:"user_id" db:"user_id"`
	Status        DeploymentStatus `json:"status" db:"status"`
	Version       int              `json:"version" db:"version"`
	CommitMessage *string          `json:"commit_message,omitempty" db:"commit_message"`
	BuildTime     *int64           `json:"build_time,omitempty" db:"build_time"` // milliseconds
	CompletedAt   *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
	DeploymentURL *string          `json:"deployment_url,omitempty" db:"deployment_url"`
	BuildLogs     *string          `json:"build_logs,omitempty" db:"build_logs"`
	ErrorMessage  *string          `json:"error_message,omitempty" db:"error_message"`
	RetryOf       *string          `json:"retry_of,omitempty" db:"retry_of"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

type DomainStatus string

const (
	DomainPending DomainStatus = "pending"
	DomainActive  DomainStatus = "active"
	DomainError   DomainStatus = "error"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// DNSRecord is one record the owner must create at their DNS provider.
type DNSRecord struct {
	Type  string `json:"type"`
	Host  string `json:"host"`
	Value string `json:"value"`
}

// Domain is a custom hostname attached to a Website.
type Domain struct {
	ID                 string             `json:"id" db:"id"`
	WebsiteID          string             `json:"website_id" db:"website_id"`
	UserID             string             `json:"user_id" db:"user_id"`
	Name               string             `json:"name" db:"name"`
	Status             DomainStatus       `json:"status" db:"status"`
	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status"`
	VerificationErrors *string            `json:"verification_errors,omitempty" db:"verification_errors"`
	VerificationToken  string             `json:"verification_token" db:"verification_token"`
	IsPrimary          bool               `json:"is_primary" db:"is_primary"`
	DNSRecords         []DNSRecord        `json:"dns_records" db:"dns_records"`
	LastVerifiedAt     *time.Time         `json:"last_verified_at,omitempty" db:"last_verified_at"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// CreateWebsiteRequest represents request to create a new website
type CreateWebsiteRequest struct {
	Name string `json:"name"`
}

// PublishRequest represents request to publish a website
type PublishRequest struct {
	CommitMessage string `json:"commit_message"`
}

// AddDomainRequest represents request to attach a domain
type AddDomainRequest struct {
	Name string `json:"name"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// DeploymentPage is one page of a website's deployment history.
type DeploymentPage struct {
	Items      []*Deployment `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

// BuildJob is the queue payload handed to the build worker.
type BuildJob struct {
	DeploymentID string `json:"deployment_id"`
	WebsiteID    string `json:"website_id"`
	UserID       string `json:"user_id"`
	Version      int    `json:"version"`
}

// BuildProgress represents real-time build progress
type BuildProgress struct {
	DeploymentID string           `json:"deployment_id"`
	Status       DeploymentStatus `json:"status"`
	Message      string           `json:"message"`
	Timestamp    time.Time        `json:"timestamp"`
}

// BuildResult is what a successful build reports back.
type BuildResult struct {
	DeploymentURL string
	BuildTime     time.Duration
	BuildLogs     string
}
