package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type JobStatus string

const (
	JobStatusActive JobStatus = "active"
	JobStatusFilled JobStatus = "filled"
	JobStatusClosed JobStatus = "closed"
)

type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

type ApplicationStatus string

const (
	ApplicationStatusApplied   ApplicationStatus = "applied"
	ApplicationStatusInterview ApplicationStatus = "interview"
	ApplicationStatusHired     ApplicationStatus = "hired"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
)

type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
)

// Job is a posting by an employer, optionally created through an agency.
type Job struct {
	BaseModel
	EmployerID              uuid.UUID      `gorm:"type:uuid;index;not null" json:"employer_id"`
	Employer                *User          `json:"employer,omitempty"`
	AgencyID                *uuid.UUID     `gorm:"type:uuid;index" json:"agency_id"`
	Title                   string         `gorm:"not null" json:"title"`
	Description             string         `json:"description"`
	Location                string         `json:"location"`
	Salary                  string         `json:"salary"`
	JobType                 string         `gorm:"type:varchar(20)" json:"job_type"`
	PreferredGender         string         `json:"preferred_gender"`
	PreferredAgeRange       string         `json:"preferred_age_range"`
	PreferredNationality    string         `json:"preferred_nationality"`
	LanguageRequirements    pq.StringArray `gorm:"type:text[]" json:"language_requirements"`
	SkillsRequired          pq.StringArray `gorm:"type:text[]" json:"skills_required"`
	ExperienceRequired      string         `json:"experience_required"`
	WorkplaceType           string         `json:"workplace_type"`
	AccommodationProvided   string         `json:"accommodation_provided"`
	FoodProvided            string         `json:"food_provided"`
	WorkSchedule            string         `json:"work_schedule"`
	FullTimeSalary          *string        `gorm:"type:numeric(10,2)" json:"full_time_salary"`
	PartTimeSalary          *string        `gorm:"type:numeric(10,2)" json:"part_time_salary"`
	HourlyWage              *string        `gorm:"type:numeric(10,2)" json:"hourly_wage"`
	AdditionalBenefits      pq.StringArray `gorm:"type:text[]" json:"additional_benefits"`
	ContractType            string         `json:"contract_type"`
	WorkPermitSponsorship   string         `json:"work_permit_sponsorship"`
	BackgroundCheckRequired bool           `json:"background_verification_required"`
	PoliceClearanceRequired bool           `json:"police_clearance_required"`
	ApplicationInstructions string         `json:"application_instructions"`
	ContactPersonName       string         `json:"contact_person_name"`
	ContactPhone            string         `json:"contact_phone"`
	ContactEmail            string         `json:"contact_email"`
	Status                  JobStatus      `gorm:"type:varchar(20);index;default:active" json:"status"`
	ReviewStatus            ReviewStatus   `gorm:"type:varchar(20);index;default:pending" json:"review_status"`
	ReviewNotes             string         `json:"review_notes"`
	ReviewedAt              *time.Time     `json:"reviewed_at"`
	PostedAt                time.Time      `gorm:"index" json:"posted_at"`
	Applications            int            `gorm:"default:0" json:"applications"`
}

// VisibleToWorkers reports whether workers may see and apply to the job.
func (j *Job) VisibleToWorkers() bool {
	return j.Status == JobStatusActive && j.ReviewStatus == ReviewStatusApproved
}

// Application is a worker's application to a job. Unique per (job, worker).
type Application struct {
	BaseModel
	JobID     uuid.UUID         `gorm:"type:uuid;uniqueIndex:idx_application_job_worker;not null" json:"job_id"`
	Job       *Job              `json:"job,omitempty"`
	WorkerID  uuid.UUID         `gorm:"type:uuid;uniqueIndex:idx_application_job_worker;index;not null" json:"worker_id"`
	Worker    *User             `json:"worker,omitempty"`
	CoverNote string            `json:"cover_note"`
	Status    ApplicationStatus `gorm:"type:varchar(20);index;default:applied" json:"status"`
	AppliedAt time.Time         `json:"applied_at"`
}

type SavedJob struct {
	BaseModel
	WorkerID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_saved_worker_job;not null" json:"worker_id"`
	JobID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_saved_worker_job;not null" json:"job_id"`
	Job      *Job      `json:"job,omitempty"`
}

// JobOffer confirms an application with a signed contract.
type JobOffer struct {
	BaseModel
	ApplicationID         uuid.UUID   `gorm:"type:uuid;index;not null" json:"application_id"`
	JobID                 uuid.UUID   `gorm:"type:uuid;index;not null" json:"job_id"`
	EmployerID            uuid.UUID   `gorm:"type:uuid;index;not null" json:"employer_id"`
	WorkerID              uuid.UUID   `gorm:"type:uuid;index;not null" json:"worker_id"`
	Message               string      `json:"message"`
	ContractText          string      `json:"contract_text"`
	Status                OfferStatus `gorm:"type:varchar(20);index;default:pending" json:"status"`
	EmployerSignatureName string      `json:"employer_signature_name"`
	WorkerSignatureName   string      `json:"worker_signature_name"`
	EmployerSignedAt      *time.Time  `json:"employer_signed_at"`
	WorkerSignedAt        *time.Time  `json:"worker_signed_at"`
	RespondedAt           *time.Time  `json:"responded_at"`
}

type ShortlistedWorker struct {
	BaseModel
	EmployerID uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_shortlist;not null" json:"employer_id"`
	WorkerID   uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_shortlist;not null" json:"worker_id"`
	JobID      *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_shortlist" json:"job_id"`
	Notes      string     `json:"notes"`
	Worker     *User      `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`
}

type WorkerReview struct {
	BaseModel
	ReviewerID uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_review;not null" json:"reviewer_id"`
	WorkerID   uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_review;index;not null" json:"worker_id"`
	JobID      *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_review" json:"job_id"`
	Rating     int        `gorm:"not null" json:"rating"`
	Comment    string     `json:"comment"`
}
