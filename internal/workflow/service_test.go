package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/example/domestyx/internal/access"
	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/storage"
	"github.com/example/domestyx/internal/workflow"
)

// failingStore wraps a store and fails SaveJob inside every transaction.
type failingStore struct {
	workflow.Store
}

func (f failingStore) Transaction(ctx context.Context, fn func(tx workflow.Tx) error) error {
	return f.Store.Transaction(ctx, func(tx workflow.Tx) error {
		return fn(failingTx{Tx: tx})
	})
}

type failingTx struct {
	workflow.Tx
}

func (failingTx) SaveJob(context.Context, *models.Job) error {
	return errors.New("disk full")
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *storage.MemoryStore
	svc       *workflow.Service
	employer  access.Actor
	worker    access.Actor
	regulator access.Actor
	agency    access.Actor
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = storage.NewMemoryStore()
	s.svc = workflow.NewService(s.store, nil)

	s.employer = s.actor(models.RoleEmployer)
	s.worker = s.actor(models.RoleWorker)
	s.regulator = s.actor(models.RoleGovernment)
	s.agency = s.actor(models.RoleAgency)
}

func (s *ServiceSuite) actor(role models.Role) access.Actor {
	u := s.store.AddUser(models.User{Email: uuid.NewString() + "@example.com", Role: role, IsActive: true})
	return access.Actor{ID: u.ID, Role: role}
}

func (s *ServiceSuite) inTx(tx func(workflow.Tx) error) {
	s.Require().NoError(s.store.Transaction(s.ctx, tx))
}

func (s *ServiceSuite) getJob(id uuid.UUID) *models.Job {
	var job *models.Job
	s.inTx(func(tx workflow.Tx) (err error) {
		job, err = tx.GetJob(s.ctx, id)
		return err
	})
	return job
}

func (s *ServiceSuite) getApplication(id uuid.UUID) *models.Application {
	var app *models.Application
	s.inTx(func(tx workflow.Tx) (err error) {
		app, err = tx.GetApplication(s.ctx, id)
		return err
	})
	return app
}

func (s *ServiceSuite) getOffer(id uuid.UUID) *models.JobOffer {
	var offer *models.JobOffer
	s.inTx(func(tx workflow.Tx) (err error) {
		offer, err = tx.GetOffer(s.ctx, id)
		return err
	})
	return offer
}

func (s *ServiceSuite) approvedJob() *models.Job {
	job, err := s.svc.CreateJob(s.ctx, s.employer, &models.Job{Title: "Live-in nanny"}, nil)
	s.Require().NoError(err)
	_, err = s.svc.ReviewJob(s.ctx, s.regulator, job.ID, "approved", "")
	s.Require().NoError(err)
	return s.getJob(job.ID)
}

func (s *ServiceSuite) pendingOffer() (*models.Job, *models.Application, *models.JobOffer) {
	job := s.approvedJob()
	app, err := s.svc.Apply(s.ctx, s.worker, job.ID, "")
	s.Require().NoError(err)
	offer, err := s.svc.CreateOffer(s.ctx, s.employer, workflow.OfferInput{ApplicationID: app.ID, ContractText: "12 months", EmployerSignature: "Sara Haddad"})
	s.Require().NoError(err)
	return job, app, offer
}

func (s *ServiceSuite) TestCreateJobStartsPendingReview() {
	job, err := s.svc.CreateJob(s.ctx, s.employer, &models.Job{Title: "Cook", Status: models.JobStatusFilled, Applications: 9}, nil)
	s.Require().NoError(err)
	s.Equal(models.JobStatusActive, job.Status)
	s.Equal(models.ReviewStatusPending, job.ReviewStatus)
	s.Equal(s.employer.ID, job.EmployerID)
	s.Zero(job.Applications)

	_, err = s.svc.CreateJob(s.ctx, s.worker, &models.Job{Title: "Cook"}, nil)
	s.True(apperr.HasKind(err, apperr.KindPermission))
}

func (s *ServiceSuite) TestAgencyPostsOnBehalfOfEmployer() {
	_, err := s.svc.CreateJob(s.ctx, s.agency, &models.Job{Title: "Driver"}, nil)
	s.True(apperr.HasKind(err, apperr.KindValidation))

	_, err = s.svc.CreateJob(s.ctx, s.agency, &models.Job{Title: "Driver"}, &s.worker.ID)
	s.True(apperr.HasKind(err, apperr.KindValidation))

	job, err := s.svc.CreateJob(s.ctx, s.agency, &models.Job{Title: "Driver"}, &s.employer.ID)
	s.Require().NoError(err)
	s.Equal(s.employer.ID, job.EmployerID)
	s.Equal(s.agency.ID, *job.AgencyID)

	_, err = s.svc.SetJobStatus(s.ctx, s.agency, job.ID, "closed")
	s.NoError(err)
}

func (s *ServiceSuite) TestApplyRequiresApprovedJob() {
	job, err := s.svc.CreateJob(s.ctx, s.employer, &models.Job{Title: "Cleaner"}, nil)
	s.Require().NoError(err)

	_, err = s.svc.Apply(s.ctx, s.worker, job.ID, "")
	s.True(apperr.HasKind(err, apperr.KindNotFound))

	_, err = s.svc.ReviewJob(s.ctx, s.regulator, job.ID, "Approved", "ok")
	s.Require().NoError(err)
	_, err = s.svc.SetJobStatus(s.ctx, s.employer, job.ID, "closed")
	s.Require().NoError(err)

	_, err = s.svc.Apply(s.ctx, s.worker, job.ID, "")
	s.True(apperr.HasKind(err, apperr.KindValidation))
}

func (s *ServiceSuite) TestApplyIsUniquePerWorker() {
	job := s.approvedJob()

	first, err := s.svc.Apply(s.ctx, s.worker, job.ID, "I have 5 years experience")
	s.Require().NoError(err)
	s.Equal(models.ApplicationStatusApplied, first.Status)

	_, err = s.svc.Apply(s.ctx, s.worker, job.ID, "again")
	appErr, ok := apperr.As(err)
	s.Require().True(ok)
	s.Equal("already_applied", appErr.Code)

	s.Equal("I have 5 years experience", s.getApplication(first.ID).CoverNote)
	s.Equal(1, s.getJob(job.ID).Applications)

	_, err = s.svc.Apply(s.ctx, s.employer, job.ID, "")
	s.True(apperr.HasKind(err, apperr.KindPermission))
}

func (s *ServiceSuite) TestConcurrentApplicationsAreCounted() {
	job := s.approvedJob()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		worker := s.actor(models.RoleWorker)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Apply(s.ctx, worker, job.ID, "")
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(10, s.getJob(job.ID).Applications)
}

func (s *ServiceSuite) TestJobStatusOwnerOnly() {
	job := s.approvedJob()

	other := s.actor(models.RoleEmployer)
	_, err := s.svc.SetJobStatus(s.ctx, other, job.ID, "closed")
	s.True(apperr.HasKind(err, apperr.KindPermission))

	steps := []struct {
		input string
		want  models.JobStatus
	}{
		{"FILLED", models.JobStatusFilled},
		{"active", models.JobStatusActive},
		{"closed", models.JobStatusClosed},
		{"filled", models.JobStatusFilled},
	}
	for _, step := range steps {
		updated, err := s.svc.SetJobStatus(s.ctx, s.employer, job.ID, step.input)
		s.Require().NoError(err)
		s.Equal(step.want, updated.Status)
	}

	_, err = s.svc.SetJobStatus(s.ctx, s.employer, job.ID, "archived")
	appErr, ok := apperr.As(err)
	s.Require().True(ok)
	s.Equal([]string{"active", "filled", "closed"}, appErr.Allowed)
}

func (s *ServiceSuite) TestReviewTransitions() {
	job, err := s.svc.CreateJob(s.ctx, s.employer, &models.Job{Title: "Gardener"}, nil)
	s.Require().NoError(err)

	_, err = s.svc.ReviewJob(s.ctx, s.employer, job.ID, "approved", "")
	s.True(apperr.HasKind(err, apperr.KindPermission))

	reviewed, err := s.svc.ReviewJob(s.ctx, s.regulator, job.ID, "rejected", "missing salary")
	s.Require().NoError(err)
	s.Equal("missing salary", reviewed.ReviewNotes)
	s.NotNil(reviewed.ReviewedAt)

	_, err = s.svc.ReviewJob(s.ctx, s.regulator, job.ID, "approved", "")
	s.True(apperr.HasKind(err, apperr.KindValidation), "rejected must go back to pending first")

	reviewed, err = s.svc.ReviewJob(s.ctx, s.regulator, job.ID, "pending", "")
	s.Require().NoError(err)
	s.Nil(reviewed.ReviewedAt)

	_, err = s.svc.ReviewJob(s.ctx, s.regulator, job.ID, "approved", "")
	s.NoError(err)
}

func (s *ServiceSuite) TestApplicationTransitions() {
	job := s.approvedJob()
	app, err := s.svc.Apply(s.ctx, s.worker, job.ID, "")
	s.Require().NoError(err)

	_, err = s.svc.SetApplicationStatus(s.ctx, s.worker, app.ID, "interview")
	s.True(apperr.HasKind(err, apperr.KindPermission))

	_, err = s.svc.SetApplicationStatus(s.ctx, s.employer, app.ID, "Interview")
	s.Require().NoError(err)

	_, err = s.svc.SetApplicationStatus(s.ctx, s.employer, app.ID, "applied")
	s.True(apperr.HasKind(err, apperr.KindValidation))

	hired, err := s.svc.SetApplicationStatus(s.ctx, s.employer, app.ID, "hired")
	s.Require().NoError(err)
	s.Equal(models.ApplicationStatusHired, hired.Status)
	s.Equal(models.JobStatusFilled, s.getJob(job.ID).Status)

	_, err = s.svc.SetApplicationStatus(s.ctx, s.employer, app.ID, "rejected")
	s.True(apperr.HasKind(err, apperr.KindValidation), "hired is terminal")
}

func (s *ServiceSuite) TestOnePendingOfferPerApplication() {
	_, app, offer := s.pendingOffer()
	s.Equal("Sara Haddad", offer.EmployerSignatureName)
	s.NotNil(offer.EmployerSignedAt)

	_, err := s.svc.CreateOffer(s.ctx, s.employer, workflow.OfferInput{ApplicationID: app.ID})
	appErr, ok := apperr.As(err)
	s.Require().True(ok)
	s.Equal("offer_pending", appErr.Code)

	other := s.actor(models.RoleEmployer)
	_, err = s.svc.CreateOffer(s.ctx, other, workflow.OfferInput{ApplicationID: app.ID})
	s.True(apperr.HasKind(err, apperr.KindPermission))
}

func (s *ServiceSuite) TestAcceptOfferIsCompound() {
	job, app, offer := s.pendingOffer()

	_, err := s.svc.RespondToOffer(s.ctx, s.actor(models.RoleWorker), offer.ID, "accept", "")
	s.True(apperr.HasKind(err, apperr.KindPermission), "only the addressed worker responds")

	accepted, err := s.svc.RespondToOffer(s.ctx, s.worker, offer.ID, "ACCEPT", "Amina Yusuf")
	s.Require().NoError(err)
	s.Equal(models.OfferStatusAccepted, accepted.Status)
	s.Equal("Amina Yusuf", accepted.WorkerSignatureName)
	s.NotNil(accepted.RespondedAt)

	s.Equal(models.OfferStatusAccepted, s.getOffer(offer.ID).Status)
	s.Equal(models.ApplicationStatusHired, s.getApplication(app.ID).Status)
	s.Equal(models.JobStatusFilled, s.getJob(job.ID).Status)

	_, err = s.svc.RespondToOffer(s.ctx, s.worker, offer.ID, "reject", "")
	s.True(apperr.HasKind(err, apperr.KindValidation))
}

func (s *ServiceSuite) TestAcceptOfferRollsBackOnFailure() {
	job, app, offer := s.pendingOffer()

	failing := workflow.NewService(failingStore{Store: s.store}, nil)
	_, err := failing.RespondToOffer(s.ctx, s.worker, offer.ID, "accept", "Amina Yusuf")
	s.Require().Error(err)

	s.Equal(models.OfferStatusPending, s.getOffer(offer.ID).Status)
	s.Empty(s.getOffer(offer.ID).WorkerSignatureName)
	s.Equal(models.ApplicationStatusApplied, s.getApplication(app.ID).Status)
	s.Equal(models.JobStatusActive, s.getJob(job.ID).Status)
}

func (s *ServiceSuite) TestRejectOfferLeavesApplicationOpen() {
	job, app, offer := s.pendingOffer()

	rejected, err := s.svc.RespondToOffer(s.ctx, s.worker, offer.ID, "reject", "")
	s.Require().NoError(err)
	s.Equal(models.OfferStatusRejected, rejected.Status)
	s.Empty(rejected.WorkerSignatureName)
	s.Equal(models.ApplicationStatusApplied, s.getApplication(app.ID).Status)
	s.Equal(models.JobStatusActive, s.getJob(job.ID).Status)

	_, err = s.svc.CreateOffer(s.ctx, s.employer, workflow.OfferInput{ApplicationID: app.ID})
	s.NoError(err, "a new offer may follow a rejected one")

	_, err = s.svc.RespondToOffer(s.ctx, s.worker, offer.ID, "maybe", "")
	s.True(apperr.HasKind(err, apperr.KindValidation))
}

func (s *ServiceSuite) TestCallLifecycle() {
	thread := s.store.AddThread(models.ChatThread{EmployerID: s.employer.ID, WorkerID: s.worker.ID})

	call, err := s.svc.RequestCall(s.ctx, s.employer, thread.ID, "intro")
	s.Require().NoError(err)
	s.Equal(models.CallStatusRequested, call.Status)
	s.Equal(s.worker.ID, call.ReceiverID)

	_, err = s.svc.RequestCall(s.ctx, s.worker, thread.ID, "")
	appErr, ok := apperr.As(err)
	s.Require().True(ok)
	s.Equal("call_in_progress", appErr.Code)

	_, err = s.svc.UpdateCall(s.ctx, s.employer, call.ID, "accept")
	s.True(apperr.HasKind(err, apperr.KindPermission), "requester cannot answer")

	_, err = s.svc.UpdateCall(s.ctx, s.actor(models.RoleWorker), call.ID, "end")
	s.True(apperr.HasKind(err, apperr.KindPermission))

	accepted, err := s.svc.UpdateCall(s.ctx, s.worker, call.ID, "accept")
	s.Require().NoError(err)
	s.Nil(accepted.EndedAt)

	ended, err := s.svc.UpdateCall(s.ctx, s.employer, call.ID, "end")
	s.Require().NoError(err)
	s.NotNil(ended.EndedAt)

	_, err = s.svc.UpdateCall(s.ctx, s.worker, call.ID, "accept")
	s.True(apperr.HasKind(err, apperr.KindValidation), "ended is terminal")

	next, err := s.svc.RequestCall(s.ctx, s.worker, thread.ID, "")
	s.Require().NoError(err)
	rejected, err := s.svc.UpdateCall(s.ctx, s.employer, next.ID, "reject")
	s.Require().NoError(err)
	s.NotNil(rejected.EndedAt)

	_, err = s.svc.RequestCall(s.ctx, s.actor(models.RoleWorker), thread.ID, "")
	s.True(apperr.HasKind(err, apperr.KindPermission))
}

func TestReviewedAtUsesClock(t *testing.T) {
	store := storage.NewMemoryStore()
	fixed := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	svc := workflow.NewService(store, nil, workflow.WithClock(func() time.Time { return fixed }))

	employer := store.AddUser(models.User{Email: "e@example.com", Role: models.RoleEmployer})
	regulator := store.AddUser(models.User{Email: "g@example.com", Role: models.RoleGovernment})

	job, err := svc.CreateJob(context.Background(), access.Actor{ID: employer.ID, Role: employer.Role}, &models.Job{Title: "Tutor"}, nil)
	require.NoError(t, err)
	require.Equal(t, fixed, job.PostedAt)

	reviewed, err := svc.ReviewJob(context.Background(), access.Actor{ID: regulator.ID, Role: regulator.Role}, job.ID, "approved", "")
	require.NoError(t, err)
	require.Equal(t, fixed, *reviewed.ReviewedAt)
}

func (s *ServiceSuite) TestUpdateJobReturnsToReview() {
	job := s.approvedJob()

	_, err := s.svc.UpdateJob(s.ctx, s.worker, job.ID, func(j *models.Job) error { return nil })
	s.True(apperr.HasKind(err, apperr.KindPermission))

	_, err = s.svc.UpdateJob(s.ctx, s.employer, job.ID, func(j *models.Job) error {
		j.Title = " "
		return nil
	})
	s.True(apperr.HasKind(err, apperr.KindValidation))
	s.Equal("Live-in nanny", s.getJob(job.ID).Title)

	updated, err := s.svc.UpdateJob(s.ctx, s.employer, job.ID, func(j *models.Job) error {
		j.Location = "Dubai Marina"
		return nil
	})
	s.Require().NoError(err)
	s.Equal(models.ReviewStatusPending, updated.ReviewStatus)
	s.Nil(updated.ReviewedAt)
	s.Equal("Dubai Marina", s.getJob(job.ID).Location)
}
