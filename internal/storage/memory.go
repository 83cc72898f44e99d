package storage

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/domestyx/internal/accounts"
	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/otp"
	"github.com/example/domestyx/internal/workflow"
)

// MemoryStore keeps every table in memory. Transactions run one at a time on
// a copy of the state that replaces the original only when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	users    map[uuid.UUID]models.User
	profiles map[uuid.UUID]any
	otps     map[uuid.UUID]models.OTPRecord
	jobs     map[uuid.UUID]models.Job
	apps     map[uuid.UUID]models.Application
	offers   map[uuid.UUID]models.JobOffer
	threads  map[uuid.UUID]models.ChatThread
	calls    map[uuid.UUID]models.CallSession
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		users:    map[uuid.UUID]models.User{},
		profiles: map[uuid.UUID]any{},
		otps:     map[uuid.UUID]models.OTPRecord{},
		jobs:     map[uuid.UUID]models.Job{},
		apps:     map[uuid.UUID]models.Application{},
		offers:   map[uuid.UUID]models.JobOffer{},
		threads:  map[uuid.UUID]models.ChatThread{},
		calls:    map[uuid.UUID]models.CallSession{},
	}}
}

func (s *memState) clone() *memState {
	return &memState{
		users:    maps.Clone(s.users),
		profiles: maps.Clone(s.profiles),
		otps:     maps.Clone(s.otps),
		jobs:     maps.Clone(s.jobs),
		apps:     maps.Clone(s.apps),
		offers:   maps.Clone(s.offers),
		threads:  maps.Clone(s.threads),
		calls:    maps.Clone(s.calls),
	}
}

func (m *MemoryStore) run(fn func(tx *memTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state.clone()
	if err := fn(&memTx{st: next}); err != nil {
		return err
	}
	m.state = next
	return nil
}

// WithOTPLock implements otp.Store.
func (m *MemoryStore) WithOTPLock(ctx context.Context, key otp.Key, fn func(tx otp.Tx) error) error {
	return m.run(func(tx *memTx) error { return fn(tx) })
}

// Transaction implements workflow.Store.
func (m *MemoryStore) Transaction(ctx context.Context, fn func(tx workflow.Tx) error) error {
	return m.run(func(tx *memTx) error { return fn(tx) })
}

// EmailTaken implements accounts.Store.
func (m *MemoryStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := m.run(func(tx *memTx) error {
		_, taken = tx.userByEmail(email)
		return nil
	})
	return taken, err
}

// CreateAccount implements accounts.Store.
func (m *MemoryStore) CreateAccount(ctx context.Context, user *models.User, profile any) error {
	return m.run(func(tx *memTx) error {
		if _, ok := tx.userByEmail(user.Email); ok {
			return errEmailTaken
		}
		if user.ID == uuid.Nil {
			user.ID = uuid.New()
		}
		stamp(&user.BaseModel)
		tx.st.users[user.ID] = *user
		if profile != nil {
			tx.st.profiles[user.ID] = profile
		}
		return nil
	})
}

// AddUser stores a user as-is, for seeding.
func (m *MemoryStore) AddUser(user models.User) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	stamp(&user.BaseModel)
	m.state.users[user.ID] = user
	return user
}

// AddThread stores a chat thread, for seeding.
func (m *MemoryStore) AddThread(thread models.ChatThread) models.ChatThread {
	m.mu.Lock()
	defer m.mu.Unlock()
	if thread.ID == uuid.Nil {
		thread.ID = uuid.New()
	}
	stamp(&thread.BaseModel)
	m.state.threads[thread.ID] = thread
	return thread
}

// Profile returns the profile stored for userID.
func (m *MemoryStore) Profile(userID uuid.UUID) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.profiles[userID]
}

// OTPs returns every OTP record for key, oldest first.
func (m *MemoryStore) OTPs(key otp.Key) []models.OTPRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{st: m.state}).otpsFor(key)
}

func stamp(b *models.BaseModel) {
	now := time.Now()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
}

// memTx is the transactional view over one copy of the state.
type memTx struct {
	st *memState
}

func (t *memTx) userByEmail(email string) (models.User, bool) {
	for _, u := range t.st.users {
		if u.Email == email {
			return u, true
		}
	}
	return models.User{}, false
}

func (t *memTx) otpsFor(key otp.Key) []models.OTPRecord {
	var out []models.OTPRecord
	for _, r := range t.st.otps {
		if r.Channel == key.Channel && r.Target == key.Target && r.Purpose == key.Purpose {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (t *memTx) LatestOTP(ctx context.Context, key otp.Key) (*models.OTPRecord, error) {
	records := t.otpsFor(key)
	if len(records) == 0 {
		return nil, nil
	}
	rec := records[len(records)-1]
	return &rec, nil
}

func (t *memTx) LatestVerifiedOTP(ctx context.Context, key otp.Key, since time.Time) (*models.OTPRecord, error) {
	records := t.otpsFor(key)
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.VerifiedAt != nil && rec.ConsumedAt == nil && !rec.CreatedAt.Before(since) {
			return &rec, nil
		}
	}
	return nil, nil
}

func (t *memTx) CountOTPsSince(ctx context.Context, key otp.Key, since time.Time) (int64, error) {
	var n int64
	for _, r := range t.otpsFor(key) {
		if !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) SupersedeOTPs(ctx context.Context, key otp.Key) error {
	for _, r := range t.otpsFor(key) {
		if !r.IsUsed {
			r.IsUsed = true
			t.st.otps[r.ID] = r
		}
	}
	return nil
}

func (t *memTx) CreateOTP(ctx context.Context, rec *models.OTPRecord) error {
	stamp(&rec.BaseModel)
	t.st.otps[rec.ID] = *rec
	return nil
}

func (t *memTx) SaveOTP(ctx context.Context, rec *models.OTPRecord) error {
	t.st.otps[rec.ID] = *rec
	return nil
}

func (t *memTx) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return &u, nil
}

func (t *memTx) CreateJob(ctx context.Context, job *models.Job) error {
	stamp(&job.BaseModel)
	t.st.jobs[job.ID] = *job
	return nil
}

func (t *memTx) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, ok := t.st.jobs[id]
	if !ok {
		return nil, apperr.NotFound("job not found")
	}
	return &j, nil
}

func (t *memTx) SaveJob(ctx context.Context, job *models.Job) error {
	current, ok := t.st.jobs[job.ID]
	if !ok {
		return apperr.NotFound("job not found")
	}
	saved := *job
	saved.Applications = current.Applications
	t.st.jobs[job.ID] = saved
	return nil
}

func (t *memTx) IncrementJobApplications(ctx context.Context, jobID uuid.UUID) error {
	j, ok := t.st.jobs[jobID]
	if !ok {
		return apperr.NotFound("job not found")
	}
	j.Applications++
	t.st.jobs[jobID] = j
	return nil
}

func (t *memTx) CreateApplication(ctx context.Context, app *models.Application) error {
	for _, a := range t.st.apps {
		if a.JobID == app.JobID && a.WorkerID == app.WorkerID {
			return errDuplicate
		}
	}
	stamp(&app.BaseModel)
	t.st.apps[app.ID] = *app
	return nil
}

func (t *memTx) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	a, ok := t.st.apps[id]
	if !ok {
		return nil, apperr.NotFound("application not found")
	}
	return &a, nil
}

func (t *memTx) SaveApplication(ctx context.Context, app *models.Application) error {
	t.st.apps[app.ID] = *app
	return nil
}

func (t *memTx) CreateOffer(ctx context.Context, offer *models.JobOffer) error {
	stamp(&offer.BaseModel)
	t.st.offers[offer.ID] = *offer
	return nil
}

func (t *memTx) GetOffer(ctx context.Context, id uuid.UUID) (*models.JobOffer, error) {
	o, ok := t.st.offers[id]
	if !ok {
		return nil, apperr.NotFound("offer not found")
	}
	return &o, nil
}

func (t *memTx) SaveOffer(ctx context.Context, offer *models.JobOffer) error {
	t.st.offers[offer.ID] = *offer
	return nil
}

func (t *memTx) CountPendingOffers(ctx context.Context, applicationID uuid.UUID) (int64, error) {
	var n int64
	for _, o := range t.st.offers {
		if o.ApplicationID == applicationID && o.Status == models.OfferStatusPending {
			n++
		}
	}
	return n, nil
}

func (t *memTx) GetThread(ctx context.Context, id uuid.UUID) (*models.ChatThread, error) {
	th, ok := t.st.threads[id]
	if !ok {
		return nil, apperr.NotFound("conversation not found")
	}
	return &th, nil
}

func (t *memTx) CountOpenCalls(ctx context.Context, threadID uuid.UUID) (int64, error) {
	var n int64
	for _, c := range t.st.calls {
		if c.ThreadID == threadID && !c.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (t *memTx) CreateCall(ctx context.Context, call *models.CallSession) error {
	stamp(&call.BaseModel)
	t.st.calls[call.ID] = *call
	return nil
}

func (t *memTx) GetCall(ctx context.Context, id uuid.UUID) (*models.CallSession, error) {
	c, ok := t.st.calls[id]
	if !ok {
		return nil, apperr.NotFound("call not found")
	}
	return &c, nil
}

func (t *memTx) SaveCall(ctx context.Context, call *models.CallSession) error {
	t.st.calls[call.ID] = *call
	return nil
}

var (
	_ otp.Store      = (*MemoryStore)(nil)
	_ workflow.Store = (*MemoryStore)(nil)
	_ accounts.Store = (*MemoryStore)(nil)
	_ otp.Tx         = (*memTx)(nil)
	_ workflow.Tx    = (*memTx)(nil)
)

// FindUser implements middleware.UserFinder.
func (m *MemoryStore) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user *models.User
	err := m.run(func(tx *memTx) error {
		var err error
		user, err = tx.GetUser(ctx, id)
		return err
	})
	return user, err
}

// FindUserByContact looks a user up by normalized email or phone.
func (m *MemoryStore) FindUserByContact(ctx context.Context, channel models.OTPChannel, target string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.state.users {
		if (channel == models.OTPChannelEmail && u.Email == target) || (channel == models.OTPChannelPhone && u.Phone == target) {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

// MarkContactVerified flags the user's email or phone as verified.
func (m *MemoryStore) MarkContactVerified(ctx context.Context, userID uuid.UUID, channel models.OTPChannel) error {
	return m.run(func(tx *memTx) error {
		u, ok := tx.st.users[userID]
		if !ok {
			return apperr.NotFound("user not found")
		}
		if channel == models.OTPChannelEmail {
			u.EmailVerified = true
		} else {
			u.PhoneVerified = true
		}
		tx.st.users[userID] = u
		return nil
	})
}

// UpdatePassword replaces the stored password hash.
func (m *MemoryStore) UpdatePassword(ctx context.Context, userID uuid.UUID, hash string) error {
	return m.run(func(tx *memTx) error {
		u, ok := tx.st.users[userID]
		if !ok {
			return apperr.NotFound("user not found")
		}
		u.PasswordHash = hash
		tx.st.users[userID] = u
		return nil
	})
}

// DeactivateUser marks the account inactive.
func (m *MemoryStore) DeactivateUser(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return m.run(func(tx *memTx) error {
		u, ok := tx.st.users[userID]
		if !ok {
			return apperr.NotFound("user not found")
		}
		u.IsActive = false
		u.DeactivatedAt = &at
		tx.st.users[userID] = u
		return nil
	})
}

// DeleteUsers removes users with their profiles. OTP records lose their owner.
func (m *MemoryStore) DeleteUsers(ctx context.Context, ids []uuid.UUID) (int64, error) {
	var deleted int64
	err := m.run(func(tx *memTx) error {
		for _, id := range ids {
			if _, ok := tx.st.users[id]; !ok {
				continue
			}
			delete(tx.st.users, id)
			delete(tx.st.profiles, id)
			deleted++
		}
		for recID, rec := range tx.st.otps {
			if rec.UserID != nil && slices.Contains(ids, *rec.UserID) {
				rec.UserID = nil
				tx.st.otps[recID] = rec
			}
		}
		return nil
	})
	return deleted, err
}
