package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/domestyx/internal/accounts"
	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/otp"
	"github.com/example/domestyx/internal/workflow"
)

// DatabaseStore implements the engine stores on PostgreSQL through gorm.
type DatabaseStore struct {
	db *gorm.DB
}

func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// WithOTPLock takes a transaction-scoped advisory lock on the key so that
// concurrent sends and verifies for it run one after another.
func (s *DatabaseStore) WithOTPLock(ctx context.Context, key otp.Key, fn func(tx otp.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key.String()).Error; err != nil {
			return err
		}
		return fn(&dbTx{db: tx})
	})
}

// Transaction runs fn in a transaction. Rows read through the Tx are locked
// FOR UPDATE.
func (s *DatabaseStore) Transaction(ctx context.Context, fn func(tx workflow.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&dbTx{db: tx})
	})
}

// FindUser loads a user by id outside any transaction.
func (s *DatabaseStore) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

// FindUserByContact looks a user up by normalized email or phone.
func (s *DatabaseStore) FindUserByContact(ctx context.Context, channel models.OTPChannel, target string) (*models.User, error) {
	column := "email"
	if channel == models.OTPChannelPhone {
		column = "phone"
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where(column+" = ?", target).First(&user).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

// MarkContactVerified flags the user's email or phone as verified.
func (s *DatabaseStore) MarkContactVerified(ctx context.Context, userID uuid.UUID, channel models.OTPChannel) error {
	column := "email_verified"
	if channel == models.OTPChannelPhone {
		column = "phone_verified"
	}
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update(column, true).Error
}

func (s *DatabaseStore) UpdatePassword(ctx context.Context, userID uuid.UUID, hash string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("password_hash", hash).Error
}

// DeactivateUser marks the account inactive.
func (s *DatabaseStore) DeactivateUser(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]any{"is_active": false, "deactivated_at": at}).Error
}

func (s *DatabaseStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (s *DatabaseStore) CreateAccount(ctx context.Context, user *models.User, profile any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if err = translate(err, "user"); apperr.HasKind(err, apperr.KindConflict) {
				return errEmailTaken
			}
			return err
		}
		if profile == nil {
			return nil
		}
		return tx.Create(profile).Error
	})
}

// DeactivatedBefore lists users deactivated before cutoff.
func (s *DatabaseStore) DeactivatedBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("is_active = ? AND deactivated_at IS NOT NULL AND deactivated_at < ?", false, cutoff).
		Pluck("id", &ids).Error
	return ids, err
}

// DeleteUsers removes users and every row that belongs to them. OTP records
// are kept and only lose their owner.
func (s *DatabaseStore) DeleteUsers(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var jobIDs, threadIDs, requestIDs []uuid.UUID
		if err := tx.Model(&models.Job{}).Where("employer_id IN ?", ids).Pluck("id", &jobIDs).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ChatThread{}).Where("employer_id IN ? OR worker_id IN ?", ids, ids).Pluck("id", &threadIDs).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.SupportServiceRequest{}).Where("requester_id IN ? OR provider_id IN ?", ids, ids).Pluck("id", &requestIDs).Error; err != nil {
			return err
		}

		steps := []struct {
			model any
			where string
			args  []any
		}{
			{&models.ChatMessage{}, "thread_id IN ?", []any{threadIDs}},
			{&models.CallSession{}, "thread_id IN ?", []any{threadIDs}},
			{&models.ChatThread{}, "id IN ?", []any{threadIDs}},
			{&models.SupportServiceMessage{}, "request_id IN ?", []any{requestIDs}},
			{&models.SupportServiceRequest{}, "id IN ?", []any{requestIDs}},
			{&models.JobOffer{}, "job_id IN ? OR worker_id IN ?", []any{jobIDs, ids}},
			{&models.Application{}, "job_id IN ? OR worker_id IN ?", []any{jobIDs, ids}},
			{&models.SavedJob{}, "job_id IN ? OR worker_id IN ?", []any{jobIDs, ids}},
			{&models.ShortlistedWorker{}, "employer_id IN ? OR worker_id IN ?", []any{ids, ids}},
			{&models.WorkerReview{}, "reviewer_id IN ? OR worker_id IN ?", []any{ids, ids}},
			{&models.AgencyWorkerSubmission{}, "agency_id IN ? OR worker_id IN ?", []any{ids, ids}},
			{&models.ComplianceReport{}, "reporter_id IN ?", []any{ids}},
			{&models.Job{}, "id IN ?", []any{jobIDs}},
			{&models.WorkerProfile{}, "user_id IN ?", []any{ids}},
			{&models.EmployerProfile{}, "user_id IN ?", []any{ids}},
			{&models.AgencyProfile{}, "user_id IN ?", []any{ids}},
			{&models.GovernmentProfile{}, "user_id IN ?", []any{ids}},
			{&models.SupportProviderProfile{}, "user_id IN ?", []any{ids}},
		}
		for _, step := range steps {
			if err := tx.Where(step.where, step.args...).Delete(step.model).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.OTPRecord{}).Where("user_id IN ?", ids).Update("user_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Job{}).Where("agency_id IN ?", ids).Update("agency_id", nil).Error; err != nil {
			return err
		}

		res := tx.Where("id IN ?", ids).Delete(&models.User{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

// dbTx is the transactional view handed to engine callbacks.
type dbTx struct {
	db *gorm.DB
}

func (t *dbTx) q(ctx context.Context) *gorm.DB {
	return t.db.WithContext(ctx)
}

func (t *dbTx) locked(ctx context.Context) *gorm.DB {
	return t.q(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *dbTx) keyed(ctx context.Context, key otp.Key) *gorm.DB {
	return t.q(ctx).Model(&models.OTPRecord{}).
		Where("channel = ? AND target = ? AND purpose = ?", key.Channel, key.Target, key.Purpose)
}

func (t *dbTx) LatestOTP(ctx context.Context, key otp.Key) (*models.OTPRecord, error) {
	var records []models.OTPRecord
	if err := t.keyed(ctx, key).Order("created_at DESC").Limit(1).Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (t *dbTx) LatestVerifiedOTP(ctx context.Context, key otp.Key, since time.Time) (*models.OTPRecord, error) {
	var records []models.OTPRecord
	err := t.keyed(ctx, key).
		Where("verified_at IS NOT NULL AND consumed_at IS NULL AND created_at >= ?", since).
		Order("created_at DESC").Limit(1).Find(&records).Error
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (t *dbTx) CountOTPsSince(ctx context.Context, key otp.Key, since time.Time) (int64, error) {
	var count int64
	err := t.keyed(ctx, key).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}

func (t *dbTx) SupersedeOTPs(ctx context.Context, key otp.Key) error {
	return t.keyed(ctx, key).Where("is_used = ?", false).Update("is_used", true).Error
}

func (t *dbTx) CreateOTP(ctx context.Context, rec *models.OTPRecord) error {
	return t.q(ctx).Create(rec).Error
}

func (t *dbTx) SaveOTP(ctx context.Context, rec *models.OTPRecord) error {
	return t.q(ctx).Save(rec).Error
}

func (t *dbTx) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := t.q(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

func (t *dbTx) CreateJob(ctx context.Context, job *models.Job) error {
	return translate(t.q(ctx).Create(job).Error, "job")
}

func (t *dbTx) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := t.locked(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, translate(err, "job")
	}
	return &job, nil
}

// SaveJob never writes the applications counter; only
// IncrementJobApplications changes it.
func (t *dbTx) SaveJob(ctx context.Context, job *models.Job) error {
	return t.q(ctx).Omit("applications", "Employer").Save(job).Error
}

func (t *dbTx) IncrementJobApplications(ctx context.Context, jobID uuid.UUID) error {
	res := t.q(ctx).Model(&models.Job{}).Where("id = ?", jobID).
		UpdateColumn("applications", gorm.Expr("applications + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("job not found")
	}
	return nil
}

func (t *dbTx) CreateApplication(ctx context.Context, app *models.Application) error {
	return translate(t.q(ctx).Create(app).Error, "application")
}

func (t *dbTx) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := t.locked(ctx).First(&app, "id = ?", id).Error; err != nil {
		return nil, translate(err, "application")
	}
	return &app, nil
}

func (t *dbTx) SaveApplication(ctx context.Context, app *models.Application) error {
	return t.q(ctx).Omit("Job", "Worker").Save(app).Error
}

func (t *dbTx) CreateOffer(ctx context.Context, offer *models.JobOffer) error {
	return translate(t.q(ctx).Create(offer).Error, "offer")
}

func (t *dbTx) GetOffer(ctx context.Context, id uuid.UUID) (*models.JobOffer, error) {
	var offer models.JobOffer
	if err := t.locked(ctx).First(&offer, "id = ?", id).Error; err != nil {
		return nil, translate(err, "offer")
	}
	return &offer, nil
}

func (t *dbTx) SaveOffer(ctx context.Context, offer *models.JobOffer) error {
	return t.q(ctx).Save(offer).Error
}

func (t *dbTx) CountPendingOffers(ctx context.Context, applicationID uuid.UUID) (int64, error) {
	var count int64
	err := t.q(ctx).Model(&models.JobOffer{}).
		Where("application_id = ? AND status = ?", applicationID, models.OfferStatusPending).
		Count(&count).Error
	return count, err
}

func (t *dbTx) GetThread(ctx context.Context, id uuid.UUID) (*models.ChatThread, error) {
	var thread models.ChatThread
	if err := t.locked(ctx).First(&thread, "id = ?", id).Error; err != nil {
		return nil, translate(err, "conversation")
	}
	return &thread, nil
}

func (t *dbTx) CountOpenCalls(ctx context.Context, threadID uuid.UUID) (int64, error) {
	var count int64
	err := t.q(ctx).Model(&models.CallSession{}).
		Where("thread_id = ? AND status IN ?", threadID, []models.CallStatus{models.CallStatusRequested, models.CallStatusAccepted}).
		Count(&count).Error
	return count, err
}

func (t *dbTx) CreateCall(ctx context.Context, call *models.CallSession) error {
	return t.q(ctx).Create(call).Error
}

func (t *dbTx) GetCall(ctx context.Context, id uuid.UUID) (*models.CallSession, error) {
	var call models.CallSession
	if err := t.locked(ctx).First(&call, "id = ?", id).Error; err != nil {
		return nil, translate(err, "call")
	}
	return &call, nil
}

func (t *dbTx) SaveCall(ctx context.Context, call *models.CallSession) error {
	return t.q(ctx).Save(call).Error
}

var (
	_ otp.Store      = (*DatabaseStore)(nil)
	_ workflow.Store = (*DatabaseStore)(nil)
	_ accounts.Store = (*DatabaseStore)(nil)
	_ otp.Tx         = (*dbTx)(nil)
	_ workflow.Tx    = (*dbTx)(nil)
)
