// Package workflow enforces the status transitions of jobs, applications,
// offers and calls together with their cross-entity effects.
package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/domestyx/internal/access"
	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/metrics"
	"github.com/example/domestyx/internal/models"
)

// Store opens transactions. Rows read through a Tx are locked until commit.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional view of the marketplace tables. Get methods return
// an apperr NotFound error for missing rows; Create methods return an apperr
// Conflict error on uniqueness violations.
type Tx interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	SaveJob(ctx context.Context, job *models.Job) error
	IncrementJobApplications(ctx context.Context, jobID uuid.UUID) error

	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	SaveApplication(ctx context.Context, app *models.Application) error

	CreateOffer(ctx context.Context, offer *models.JobOffer) error
	GetOffer(ctx context.Context, id uuid.UUID) (*models.JobOffer, error)
	SaveOffer(ctx context.Context, offer *models.JobOffer) error
	CountPendingOffers(ctx context.Context, applicationID uuid.UUID) (int64, error)

	GetThread(ctx context.Context, id uuid.UUID) (*models.ChatThread, error)
	CountOpenCalls(ctx context.Context, threadID uuid.UUID) (int64, error)
	CreateCall(ctx context.Context, call *models.CallSession) error
	GetCall(ctx context.Context, id uuid.UUID) (*models.CallSession, error)
	SaveCall(ctx context.Context, call *models.CallSession) error
}

type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service applies actor-gated status changes.
type Service struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{store: store, log: log.Named("workflow"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type transition struct {
	entity string
	status string
}

func (s *Service) record(applied []transition) {
	for _, t := range applied {
		metrics.StatusTransition(t.entity, t.status)
	}
}

// CanManageJob allows the owning employer and the agency that posted the job.
func CanManageJob(actor access.Actor, job *models.Job) error {
	if err := access.Allow(actor, models.RoleEmployer, models.RoleAgency); err != nil {
		return err
	}
	if job.EmployerID == actor.ID {
		return nil
	}
	if actor.Role == models.RoleAgency && job.AgencyID != nil && *job.AgencyID == actor.ID {
		return nil
	}
	return apperr.Forbidden("you do not manage this job")
}

// CreateJob stores a new posting awaiting review. Agencies post on behalf of
// the employer named by employerID.
func (s *Service) CreateJob(ctx context.Context, actor access.Actor, job *models.Job, employerID *uuid.UUID) (*models.Job, error) {
	if err := access.Allow(actor, models.RoleEmployer, models.RoleAgency); err != nil {
		return nil, err
	}
	if strings.TrimSpace(job.Title) == "" {
		return nil, apperr.Validation("title_required", "title is required")
	}

	err := s.store.Transaction(ctx, func(tx Tx) error {
		if actor.Role == models.RoleAgency {
			if employerID == nil {
				return apperr.Validation("employer_required", "employer_id is required when an agency posts a job")
			}
			employer, err := tx.GetUser(ctx, *employerID)
			if err != nil {
				return err
			}
			if employer.Role != models.RoleEmployer {
				return apperr.Validation("invalid_employer", "employer_id must reference an employer account")
			}
			agencyID := actor.ID
			job.EmployerID = employer.ID
			job.AgencyID = &agencyID
		} else {
			job.EmployerID = actor.ID
			job.AgencyID = nil
		}

		job.Status = models.JobStatusActive
		job.ReviewStatus = models.ReviewStatusPending
		job.ReviewedAt = nil
		job.Applications = 0
		job.PostedAt = s.now()
		return tx.CreateJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Apply records a worker's application to a visible job and bumps its counter.
func (s *Service) Apply(ctx context.Context, actor access.Actor, jobID uuid.UUID, coverNote string) (*models.Application, error) {
	if err := access.Allow(actor, models.RoleWorker); err != nil {
		return nil, err
	}

	app := &models.Application{
		JobID:     jobID,
		WorkerID:  actor.ID,
		CoverNote: strings.TrimSpace(coverNote),
		Status:    models.ApplicationStatusApplied,
		AppliedAt: s.now(),
	}
	err := s.store.Transaction(ctx, func(tx Tx) error {
		job, err := tx.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job.ReviewStatus != models.ReviewStatusApproved {
			return apperr.NotFound("job not found")
		}
		if job.Status != models.JobStatusActive {
			return apperr.Validation("job_not_open", "this job is no longer accepting applications")
		}
		if err := tx.CreateApplication(ctx, app); err != nil {
			if apperr.HasKind(err, apperr.KindConflict) {
				return apperr.Conflict("already_applied", "you have already applied for this job")
			}
			return err
		}
		return tx.IncrementJobApplications(ctx, jobID)
	})
	if err != nil {
		return nil, err
	}
	s.record([]transition{{"application", string(app.Status)}})
	return app, nil
}

// SetJobStatus changes the operational status of a job.
func (s *Service) SetJobStatus(ctx context.Context, actor access.Actor, jobID uuid.UUID, value string) (*models.Job, error) {
	next, err := ParseJobStatus(value)
	if err != nil {
		return nil, err
	}

	var job *models.Job
	err = s.store.Transaction(ctx, func(tx Tx) error {
		job, err = tx.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if err := CanManageJob(actor, job); err != nil {
			return err
		}
		if err := checkTransition("job", JobStatusTransitions, job.Status, next); err != nil {
			return err
		}
		job.Status = next
		return tx.SaveJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	s.record([]transition{{"job", string(next)}})
	return job, nil
}

// UpdateJob applies edit to a job the actor manages. Edited content goes back
// to the review queue.
func (s *Service) UpdateJob(ctx context.Context, actor access.Actor, jobID uuid.UUID, edit func(job *models.Job) error) (*models.Job, error) {
	var (
		job     *models.Job
		applied []transition
	)
	err := s.store.Transaction(ctx, func(tx Tx) error {
		var err error
		job, err = tx.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if err := CanManageJob(actor, job); err != nil {
			return err
		}
		if err := edit(job); err != nil {
			return err
		}
		if strings.TrimSpace(job.Title) == "" {
			return apperr.Validation("title_required", "title is required")
		}
		if job.ReviewStatus != models.ReviewStatusPending {
			job.ReviewStatus = models.ReviewStatusPending
			job.ReviewedAt = nil
			applied = append(applied, transition{"job_review", string(models.ReviewStatusPending)})
		}
		return tx.SaveJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	s.record(applied)
	return job, nil
}

// ReviewJob records a regulator's moderation decision.
func (s *Service) ReviewJob(ctx context.Context, actor access.Actor, jobID uuid.UUID, value, notes string) (*models.Job, error) {
	if err := access.Allow(actor, models.RoleGovernment); err != nil {
		return nil, err
	}
	next, err := ParseReviewStatus(value)
	if err != nil {
		return nil, err
	}

	var job *models.Job
	err = s.store.Transaction(ctx, func(tx Tx) error {
		job, err = tx.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if err := checkTransition("job review", ReviewStatusTransitions, job.ReviewStatus, next); err != nil {
			return err
		}
		job.ReviewStatus = next
		job.ReviewNotes = strings.TrimSpace(notes)
		if next == models.ReviewStatusPending {
			job.ReviewedAt = nil
		} else {
			reviewed := s.now()
			job.ReviewedAt = &reviewed
		}
		return tx.SaveJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	s.record([]transition{{"job_review", string(next)}})
	return job, nil
}

// SetApplicationStatus moves an application forward. Hiring fills the job in
// the same transaction.
func (s *Service) SetApplicationStatus(ctx context.Context, actor access.Actor, applicationID uuid.UUID, value string) (*models.Application, error) {
	next, err := ParseApplicationStatus(value)
	if err != nil {
		return nil, err
	}

	var (
		app     *models.Application
		applied []transition
	)
	err = s.store.Transaction(ctx, func(tx Tx) error {
		app, err = tx.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		job, err := tx.GetJob(ctx, app.JobID)
		if err != nil {
			return err
		}
		if err := CanManageJob(actor, job); err != nil {
			return err
		}
		if err := checkTransition("application", ApplicationStatusTransitions, app.Status, next); err != nil {
			return err
		}
		app.Status = next
		if err := tx.SaveApplication(ctx, app); err != nil {
			return err
		}
		applied = append(applied, transition{"application", string(next)})

		if next == models.ApplicationStatusHired {
			filled, err := fillJob(ctx, tx, job)
			if err != nil {
				return err
			}
			applied = append(applied, filled...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(applied)
	return app, nil
}

func fillJob(ctx context.Context, tx Tx, job *models.Job) ([]transition, error) {
	if job.Status == models.JobStatusFilled {
		return nil, nil
	}
	if err := checkTransition("job", JobStatusTransitions, job.Status, models.JobStatusFilled); err != nil {
		return nil, err
	}
	job.Status = models.JobStatusFilled
	if err := tx.SaveJob(ctx, job); err != nil {
		return nil, err
	}
	return []transition{{"job", string(models.JobStatusFilled)}}, nil
}

// OfferInput carries the employer side of a new offer.
type OfferInput struct {
	ApplicationID     uuid.UUID
	Message           string
	ContractText      string
	EmployerSignature string
}

// CreateOffer issues a pending offer for an open application. Only one offer
// per application may be pending.
func (s *Service) CreateOffer(ctx context.Context, actor access.Actor, in OfferInput) (*models.JobOffer, error) {
	if err := access.Allow(actor, models.RoleEmployer); err != nil {
		return nil, err
	}

	var offer *models.JobOffer
	err := s.store.Transaction(ctx, func(tx Tx) error {
		app, err := tx.GetApplication(ctx, in.ApplicationID)
		if err != nil {
			return err
		}
		job, err := tx.GetJob(ctx, app.JobID)
		if err != nil {
			return err
		}
		if err := access.AllowOwner(actor, job.EmployerID, models.RoleEmployer); err != nil {
			return err
		}
		if app.Status == models.ApplicationStatusHired || app.Status == models.ApplicationStatusRejected {
			return apperr.Validation("application_closed", "offers can only be made on open applications")
		}
		pending, err := tx.CountPendingOffers(ctx, app.ID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return apperr.Conflict("offer_pending", "this application already has a pending offer")
		}

		offer = &models.JobOffer{
			ApplicationID: app.ID,
			JobID:         job.ID,
			EmployerID:    job.EmployerID,
			WorkerID:      app.WorkerID,
			Message:       strings.TrimSpace(in.Message),
			ContractText:  strings.TrimSpace(in.ContractText),
			Status:        models.OfferStatusPending,
		}
		if signature := strings.TrimSpace(in.EmployerSignature); signature != "" {
			signed := s.now()
			offer.EmployerSignatureName = signature
			offer.EmployerSignedAt = &signed
		}
		return tx.CreateOffer(ctx, offer)
	})
	if err != nil {
		return nil, err
	}
	s.record([]transition{{"offer", string(models.OfferStatusPending)}})
	return offer, nil
}

// RespondToOffer applies the addressed worker's decision. Acceptance hires the
// application and fills the job; the three writes commit together or not at all.
func (s *Service) RespondToOffer(ctx context.Context, actor access.Actor, offerID uuid.UUID, decision, signature string) (*models.JobOffer, error) {
	next, err := ParseOfferDecision(decision)
	if err != nil {
		return nil, err
	}

	var (
		offer   *models.JobOffer
		applied []transition
	)
	err = s.store.Transaction(ctx, func(tx Tx) error {
		offer, err = tx.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		if err := access.AllowOwner(actor, offer.WorkerID, models.RoleWorker); err != nil {
			return err
		}
		if err := checkTransition("offer", OfferStatusTransitions, offer.Status, next); err != nil {
			return err
		}

		now := s.now()
		offer.Status = next
		offer.RespondedAt = &now
		if name := strings.TrimSpace(signature); name != "" && next == models.OfferStatusAccepted {
			offer.WorkerSignatureName = name
			offer.WorkerSignedAt = &now
		}
		if err := tx.SaveOffer(ctx, offer); err != nil {
			return err
		}
		applied = append(applied, transition{"offer", string(next)})

		if next != models.OfferStatusAccepted {
			return nil
		}

		app, err := tx.GetApplication(ctx, offer.ApplicationID)
		if err != nil {
			return err
		}
		if err := checkTransition("application", ApplicationStatusTransitions, app.Status, models.ApplicationStatusHired); err != nil {
			return err
		}
		app.Status = models.ApplicationStatusHired
		if err := tx.SaveApplication(ctx, app); err != nil {
			return err
		}
		applied = append(applied, transition{"application", string(models.ApplicationStatusHired)})

		job, err := tx.GetJob(ctx, offer.JobID)
		if err != nil {
			return err
		}
		filled, err := fillJob(ctx, tx, job)
		if err != nil {
			return err
		}
		applied = append(applied, filled...)
		return nil
	})
	if err != nil {
		s.log.Debug("offer response rolled back", zap.Stringer("offer_id", offerID), zap.Error(err))
		return nil, err
	}
	s.record(applied)
	return offer, nil
}

// RequestCall opens a call session in a thread. The thread row stays locked
// while checking for an open session.
func (s *Service) RequestCall(ctx context.Context, actor access.Actor, threadID uuid.UUID, notes string) (*models.CallSession, error) {
	if err := access.Allow(actor); err != nil {
		return nil, err
	}

	var call *models.CallSession
	err := s.store.Transaction(ctx, func(tx Tx) error {
		thread, err := tx.GetThread(ctx, threadID)
		if err != nil {
			return err
		}
		if !thread.Participant(actor.ID) {
			return apperr.Forbidden("you are not a participant of this conversation")
		}
		open, err := tx.CountOpenCalls(ctx, thread.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			return apperr.Conflict("call_in_progress", "a call is already requested or in progress for this conversation")
		}
		call = &models.CallSession{
			ThreadID:    thread.ID,
			RequesterID: actor.ID,
			ReceiverID:  thread.Counterpart(actor.ID),
			Status:      models.CallStatusRequested,
			StartedAt:   s.now(),
			Notes:       strings.TrimSpace(notes),
		}
		return tx.CreateCall(ctx, call)
	})
	if err != nil {
		return nil, err
	}
	s.record([]transition{{"call", string(models.CallStatusRequested)}})
	return call, nil
}

// UpdateCall accepts, rejects or ends a call. Only the receiver answers a
// request; either participant may end it.
func (s *Service) UpdateCall(ctx context.Context, actor access.Actor, callID uuid.UUID, action string) (*models.CallSession, error) {
	next, err := ParseCallAction(action)
	if err != nil {
		return nil, err
	}

	var call *models.CallSession
	err = s.store.Transaction(ctx, func(tx Tx) error {
		call, err = tx.GetCall(ctx, callID)
		if err != nil {
			return err
		}
		if actor.ID != call.RequesterID && actor.ID != call.ReceiverID {
			return apperr.Forbidden("you are not a participant of this call")
		}
		if next != models.CallStatusEnded && actor.ID != call.ReceiverID {
			return apperr.Forbidden("only the receiver can answer a call request")
		}
		if err := checkTransition("call", CallStatusTransitions, call.Status, next); err != nil {
			return err
		}
		call.Status = next
		if next.Terminal() {
			ended := s.now()
			call.EndedAt = &ended
		}
		return tx.SaveCall(ctx, call)
	})
	if err != nil {
		return nil, err
	}
	s.record([]transition{{"call", string(next)}})
	return call, nil
}
