package models

import (
	"time"

	"github.com/google/uuid"
)

type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusInReview  ReportStatus = "in_review"
	ReportStatusResolved  ReportStatus = "resolved"
	ReportStatusDismissed ReportStatus = "dismissed"
)

// ReportStatuses is the allowed set for compliance report updates.
var ReportStatuses = []ReportStatus{ReportStatusPending, ReportStatusInReview, ReportStatusResolved, ReportStatusDismissed}

// ComplianceReport is a complaint filed for regulator review.
type ComplianceReport struct {
	BaseModel
	ReporterID      uuid.UUID    `gorm:"type:uuid;index;not null" json:"reporter_id"`
	SubjectUserID   *uuid.UUID   `gorm:"type:uuid;index" json:"subject_user_id"`
	SubjectJobID    *uuid.UUID   `gorm:"type:uuid;index" json:"subject_job_id"`
	Category        string       `json:"category"`
	Description     string       `json:"description"`
	Status          ReportStatus `gorm:"type:varchar(20);index;default:pending" json:"status"`
	ResolutionNotes string       `json:"resolution_notes"`
	ReviewedByID    *uuid.UUID   `gorm:"type:uuid" json:"reviewed_by_id"`
	ResolvedAt      *time.Time   `json:"resolved_at"`
}

type SubmissionStatus string

const (
	SubmissionStatusSubmitted   SubmissionStatus = "submitted"
	SubmissionStatusUnderReview SubmissionStatus = "under_review"
	SubmissionStatusAccepted    SubmissionStatus = "accepted"
	SubmissionStatusRejected    SubmissionStatus = "rejected"
)

var SubmissionStatuses = []SubmissionStatus{SubmissionStatusSubmitted, SubmissionStatusUnderReview, SubmissionStatusAccepted, SubmissionStatusRejected}

// AgencyWorkerSubmission is a worker put forward by a recruitment agency.
type AgencyWorkerSubmission struct {
	BaseModel
	AgencyID          uuid.UUID        `gorm:"type:uuid;index;not null" json:"agency_id"`
	WorkerID          uuid.UUID        `gorm:"type:uuid;index;not null" json:"worker_id"`
	JobRole           string           `json:"job_role"`
	ExperienceSummary string           `json:"experience_summary"`
	Notes             string           `json:"notes"`
	Status            SubmissionStatus `gorm:"type:varchar(20);default:submitted" json:"status"`
}

type SupportRequestStatus string

const (
	SupportRequestOpen       SupportRequestStatus = "open"
	SupportRequestInProgress SupportRequestStatus = "in_progress"
	SupportRequestCompleted  SupportRequestStatus = "completed"
	SupportRequestCancelled  SupportRequestStatus = "cancelled"
)

var SupportRequestStatuses = []SupportRequestStatus{SupportRequestOpen, SupportRequestInProgress, SupportRequestCompleted, SupportRequestCancelled}

// SupportServiceRequest asks a support provider for a service.
type SupportServiceRequest struct {
	BaseModel
	RequesterID uuid.UUID            `gorm:"type:uuid;index;not null" json:"requester_id"`
	ProviderID  uuid.UUID            `gorm:"type:uuid;index;not null" json:"provider_id"`
	Category    string               `json:"category"`
	Description string               `json:"description"`
	Status      SupportRequestStatus `gorm:"type:varchar(20);index;default:open" json:"status"`
}

// Participant reports whether userID is requester or provider.
func (r *SupportServiceRequest) Participant(userID uuid.UUID) bool {
	return r.RequesterID == userID || r.ProviderID == userID
}

type SupportServiceMessage struct {
	BaseModel
	RequestID uuid.UUID `gorm:"type:uuid;index;not null" json:"request_id"`
	SenderID  uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`
	Message   string    `gorm:"not null" json:"message"`
}
