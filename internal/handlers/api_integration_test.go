//go:build integration

package handlers_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/example/domestyx/internal/accounts"
	"github.com/example/domestyx/internal/cache"
	"github.com/example/domestyx/internal/config"
	"github.com/example/domestyx/internal/database"
	"github.com/example/domestyx/internal/handlers"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/otp"
	"github.com/example/domestyx/internal/routes"
	"github.com/example/domestyx/internal/storage"
	"github.com/example/domestyx/internal/utils"
	"github.com/example/domestyx/internal/workflow"
)

// APISuite serves the full route table over a real Postgres.
type APISuite struct {
	suite.Suite
	ctx       context.Context
	container *tcpostgres.PostgresContainer
	db        *gorm.DB
	app       *fiber.App
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := tcpostgres.Run(s.ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("domestyx"),
		tcpostgres.WithUsername("domestyx"),
		tcpostgres.WithPassword("domestyx"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	log := zap.NewNop()
	s.db, err = database.Connect(dsn, false, log)
	s.Require().NoError(err)
	store := storage.NewDatabaseStore(s.db)

	engine := otp.NewEngine(otp.Config{
		ExpirySeconds:             600,
		ResendCooldownSeconds:     60,
		MaxPerHour:                5,
		MaxAttempts:               5,
		VerificationWindowSeconds: 1800,
		DeliveryTimeout:           time.Second,
		HashCost:                  bcrypt.MinCost,
	}, store, &recordingSender{}, log, otp.WithCodeGenerator(func() (string, error) { return testCode, nil }))

	s.app = fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(log)})
	routes.Register(s.app, routes.Dependencies{
		Config: &config.Config{
			JWTSecret:    testSecret,
			TokenExpires: time.Hour,
			RefreshTTL:   24 * time.Hour,
		},
		DB:       s.db,
		Accounts: store,
		OTP:      engine,
		Workflow: workflow.NewService(store, log),
		Revoked:  cache.NewMemoryRevocationList(),
		Log:      log,
	})
}

func (s *APISuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *APISuite) do(method, path, token string, body any) (int, map[string]any) {
	return doJSON(s.T(), s.app, method, path, token, body)
}

// user stores an account with its role profile and returns an access token for it.
func (s *APISuite) user(role models.Role, attrs accounts.Attrs) (string, string) {
	attrs.Email = uuid.NewString() + "@example.com"
	attrs.Password = "correct-horse"
	u, _, err := accounts.CreateUser(s.ctx, storage.NewDatabaseStore(s.db), role, attrs)
	s.Require().NoError(err)

	token, err := utils.GenerateToken(testSecret, u.ID, string(role), utils.TokenTypeAccess, time.Hour)
	s.Require().NoError(err)
	return u.ID.String(), token
}

func (s *APISuite) postJob(token string, job fiber.Map) string {
	status, body := s.do(fiber.MethodPost, "/api/jobs/my-jobs", token, job)
	s.Require().Equal(fiber.StatusCreated, status, "%v", body)
	return data(body)["id"].(string)
}

func (s *APISuite) review(regulator, jobID, decision string) {
	status, body := s.do(fiber.MethodPatch, "/api/government/jobs/"+jobID+"/review", regulator, fiber.Map{"status": decision})
	s.Require().Equal(fiber.StatusOK, status, "%v", body)
}

type apiCase struct {
	name   string
	method string
	path   string
	token  string
	body   any
	status int
	code   string
}

// runCases executes cases in order and returns each response body by case name.
func (s *APISuite) runCases(cases []apiCase) map[string]map[string]any {
	bodies := make(map[string]map[string]any, len(cases))
	for _, tc := range cases {
		s.Run(tc.name, func() {
			status, body := s.do(tc.method, tc.path, tc.token, tc.body)
			s.Equal(tc.status, status, "%v", body)
			if tc.code != "" {
				s.Equal(tc.code, body["code"])
			}
			bodies[tc.name] = body
		})
	}
	return bodies
}

func newTag() string {
	return "x" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

func list(body map[string]any) []map[string]any {
	raw, _ := body["data"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		out = append(out, item.(map[string]any))
	}
	return out
}

func totalItems(body map[string]any) float64 {
	pagination, _ := body["pagination"].(map[string]any)
	total, _ := pagination["total_items"].(float64)
	return total
}

func (s *APISuite) TestWorkerListingsOnlyShowApprovedActiveJobs() {
	tag := newTag()
	_, employer := s.user(models.RoleEmployer, accounts.Attrs{})
	_, regulator := s.user(models.RoleGovernment, accounts.Attrs{})
	workerID, worker := s.user(models.RoleWorker, accounts.Attrs{})

	status, body := s.do(fiber.MethodPut, "/api/profile/worker", worker, fiber.Map{
		"city":     "Dubai",
		"services": []string{tag},
	})
	s.Require().Equal(fiber.StatusOK, status, "%v", body)

	job := fiber.Map{
		"title":           "Live-in " + tag + " helper",
		"location":        "Dubai Marina",
		"skills_required": []string{tag},
	}
	pending := s.postJob(employer, job)
	visible := s.postJob(employer, job)
	closed := s.postJob(employer, job)
	s.review(regulator, visible, "approved")
	s.review(regulator, closed, "approved")
	status, body = s.do(fiber.MethodPatch, "/api/jobs/"+closed+"/status", employer, fiber.Map{"status": "closed"})
	s.Require().Equal(fiber.StatusOK, status, "%v", body)

	available := func() map[string]any {
		status, body := s.do(fiber.MethodGet, "/api/jobs/available?q="+tag, worker, nil)
		s.Require().Equal(fiber.StatusOK, status, "%v", body)
		s.Require().Equal(float64(1), totalItems(body))
		items := list(body)
		s.Require().Len(items, 1)
		s.Equal(visible, items[0]["job"].(map[string]any)["id"])
		return items[0]
	}

	item := available()
	s.Equal(false, item["has_applied"])
	s.Equal(false, item["is_saved"])

	status, body = s.do(fiber.MethodPost, "/api/jobs/"+visible+"/apply", worker, fiber.Map{"cover_note": "Five years with toddlers"})
	s.Require().Equal(fiber.StatusCreated, status, "%v", body)
	status, body = s.do(fiber.MethodPost, "/api/jobs/"+visible+"/save", worker, nil)
	s.Require().Equal(fiber.StatusCreated, status, "%v", body)

	item = available()
	s.Equal(true, item["has_applied"])
	s.Equal(true, item["is_saved"])

	status, body = s.do(fiber.MethodGet, "/api/jobs/recommended", worker, nil)
	s.Require().Equal(fiber.StatusOK, status, "%v", body)
	recommended := list(body)
	s.Require().Len(recommended, 1)
	s.Equal(visible, recommended[0]["job"].(map[string]any)["id"])
	// Title mention, required skill and location.
	s.Equal(float64(5), recommended[0]["match_score"])

	s.runCases([]apiCase{
		{"pending job hidden", fiber.MethodGet, "/api/jobs/" + pending, worker, nil, fiber.StatusNotFound, "not_found"},
		{"pending job visible to owner", fiber.MethodGet, "/api/jobs/" + pending, employer, nil, fiber.StatusOK, ""},
		{"pending job visible to regulator", fiber.MethodGet, "/api/jobs/" + pending, regulator, nil, fiber.StatusOK, ""},
		{"closed job hidden", fiber.MethodGet, "/api/jobs/" + closed, worker, nil, fiber.StatusNotFound, "not_found"},
		{"apply to pending job", fiber.MethodPost, "/api/jobs/" + pending + "/apply", worker, nil, fiber.StatusNotFound, "not_found"},
		{"apply to closed job", fiber.MethodPost, "/api/jobs/" + closed + "/apply", worker, nil, fiber.StatusBadRequest, "job_not_open"},
		{"apply twice", fiber.MethodPost, "/api/jobs/" + visible + "/apply", worker, nil, fiber.StatusConflict, "already_applied"},
		{"employer cannot browse", fiber.MethodGet, "/api/jobs/available", employer, nil, fiber.StatusForbidden, ""},
	})

	status, body = s.do(fiber.MethodGet, "/api/jobs/"+visible+"/recommended-workers", employer, nil)
	s.Require().Equal(fiber.StatusOK, status, "%v", body)
	var matched []string
	for _, r := range list(body) {
		matched = append(matched, r["worker"].(map[string]any)["user_id"].(string))
	}
	s.Contains(matched, workerID)
}

func (s *APISuite) TestRecommendedJobsEmptyWithoutMatches() {
	_, worker := s.user(models.RoleWorker, accounts.Attrs{})

	status, body := s.do(fiber.MethodGet, "/api/jobs/recommended", worker, nil)
	s.Require().Equal(fiber.StatusOK, status, "%v", body)
	s.Empty(list(body))
}

func (s *APISuite) TestSavedJobs() {
	_, employer := s.user(models.RoleEmployer, accounts.Attrs{})
	_, regulator := s.user(models.RoleGovernment, accounts.Attrs{})
	_, worker := s.user(models.RoleWorker, accounts.Attrs{})

	pending := s.postJob(employer, fiber.Map{"title": "Cook"})
	visible := s.postJob(employer, fiber.Map{"title": "Driver"})
	s.review(regulator, visible, "approved")

	bodies := s.runCases([]apiCase{
		{"save", fiber.MethodPost, "/api/jobs/" + visible + "/save", worker, nil, fiber.StatusCreated, ""},
		{"save again is a no-op", fiber.MethodPost, "/api/jobs/" + visible + "/save", worker, nil, fiber.StatusCreated, ""},
		{"save hidden job", fiber.MethodPost, "/api/jobs/" + pending + "/save", worker, nil, fiber.StatusNotFound, "not_found"},
		{"list", fiber.MethodGet, "/api/jobs/saved", worker, nil, fiber.StatusOK, ""},
		{"unsave", fiber.MethodDelete, "/api/jobs/" + visible + "/save", worker, nil, fiber.StatusOK, ""},
		{"unsave again", fiber.MethodDelete, "/api/jobs/" + visible + "/save", worker, nil, fiber.StatusNotFound, "not_found"},
		{"list after unsave", fiber.MethodGet, "/api/jobs/saved", worker, nil, fiber.StatusOK, ""},
		{"employer cannot save", fiber.MethodPost, "/api/jobs/" + visible + "/save", employer, nil, fiber.StatusForbidden, ""},
	})

	s.Equal(data(bodies["save"])["id"], data(bodies["save again is a no-op"])["id"])
	saved := list(bodies["list"])
	s.Require().Len(saved, 1)
	s.Equal(visible, saved[0]["job"].(map[string]any)["id"])
	s.Equal(float64(0), totalItems(bodies["list after unsave"]))
}

func (s *APISuite) TestShortlist() {
	_, employer := s.user(models.RoleEmployer, accounts.Attrs{})
	_, otherEmployer := s.user(models.RoleEmployer, accounts.Attrs{})
	workerID, worker := s.user(models.RoleWorker, accounts.Attrs{})
	jobID := s.postJob(employer, fiber.Map{"title": "Nanny"})

	bodies := s.runCases([]apiCase{
		{"add without job", fiber.MethodPost, "/api/shortlist", employer, fiber.Map{"worker_id": workerID, "notes": "strong references"}, fiber.StatusCreated, ""},
		{"duplicate without job", fiber.MethodPost, "/api/shortlist", employer, fiber.Map{"worker_id": workerID}, fiber.StatusConflict, "already_shortlisted"},
		{"add for job", fiber.MethodPost, "/api/shortlist", employer, fiber.Map{"worker_id": workerID, "job_id": jobID}, fiber.StatusCreated, ""},
		{"duplicate for job", fiber.MethodPost, "/api/shortlist", employer, fiber.Map{"worker_id": workerID, "job_id": jobID}, fiber.StatusConflict, "already_shortlisted"},
		{"someone else's job", fiber.MethodPost, "/api/shortlist", otherEmployer, fiber.Map{"worker_id": workerID, "job_id": jobID}, fiber.StatusForbidden, "permission_denied"},
		{"unknown worker", fiber.MethodPost, "/api/shortlist", employer, fiber.Map{"worker_id": uuid.NewString()}, fiber.StatusNotFound, "not_found"},
		{"invalid worker id", fiber.MethodPost, "/api/shortlist", employer, fiber.Map{"worker_id": "nope"}, fiber.StatusBadRequest, ""},
		{"workers cannot shortlist", fiber.MethodGet, "/api/shortlist", worker, nil, fiber.StatusForbidden, ""},
		{"list", fiber.MethodGet, "/api/shortlist", employer, nil, fiber.StatusOK, ""},
		{"list for job", fiber.MethodGet, "/api/shortlist?job_id=" + jobID, employer, nil, fiber.StatusOK, ""},
		{"list for other employer", fiber.MethodGet, "/api/shortlist", otherEmployer, nil, fiber.StatusOK, ""},
	})

	s.Len(list(bodies["list"]), 2)
	s.Len(list(bodies["list for job"]), 1)
	s.Empty(list(bodies["list for other employer"]))

	entryID := data(bodies["add without job"])["id"].(string)
	s.runCases([]apiCase{
		{"remove by another employer", fiber.MethodDelete, "/api/shortlist/" + entryID, otherEmployer, nil, fiber.StatusNotFound, "not_found"},
		{"remove", fiber.MethodDelete, "/api/shortlist/" + entryID, employer, nil, fiber.StatusOK, ""},
		{"remove again", fiber.MethodDelete, "/api/shortlist/" + entryID, employer, nil, fiber.StatusNotFound, "not_found"},
		{"re-add after remove", fiber.MethodPost, "/api/shortlist", employer, fiber.Map{"worker_id": workerID}, fiber.StatusCreated, ""},
	})
}

func (s *APISuite) TestReviews() {
	_, employer := s.user(models.RoleEmployer, accounts.Attrs{})
	_, agency := s.user(models.RoleAgency, accounts.Attrs{})
	workerID, worker := s.user(models.RoleWorker, accounts.Attrs{})
	jobID := s.postJob(employer, fiber.Map{"title": "Housekeeper"})

	bodies := s.runCases([]apiCase{
		{"rating below range", fiber.MethodPost, "/api/reviews", employer, fiber.Map{"worker_id": workerID, "rating": 0}, fiber.StatusBadRequest, ""},
		{"rating above range", fiber.MethodPost, "/api/reviews", employer, fiber.Map{"worker_id": workerID, "rating": 6}, fiber.StatusBadRequest, ""},
		{"review without job", fiber.MethodPost, "/api/reviews", employer, fiber.Map{"worker_id": workerID, "rating": 5, "comment": "Great"}, fiber.StatusCreated, ""},
		{"second review without job", fiber.MethodPost, "/api/reviews", employer, fiber.Map{"worker_id": workerID, "rating": 1}, fiber.StatusConflict, "already_reviewed"},
		{"review for job", fiber.MethodPost, "/api/reviews", employer, fiber.Map{"worker_id": workerID, "job_id": jobID, "rating": 4}, fiber.StatusCreated, ""},
		{"second review for job", fiber.MethodPost, "/api/reviews", employer, fiber.Map{"worker_id": workerID, "job_id": jobID, "rating": 3}, fiber.StatusConflict, "already_reviewed"},
		{"agency on unmanaged job", fiber.MethodPost, "/api/reviews", agency, fiber.Map{"worker_id": workerID, "job_id": jobID, "rating": 2}, fiber.StatusForbidden, "permission_denied"},
		{"workers cannot review", fiber.MethodPost, "/api/reviews", worker, fiber.Map{"worker_id": workerID, "rating": 5}, fiber.StatusForbidden, ""},
		{"unknown worker", fiber.MethodPost, "/api/reviews", employer, fiber.Map{"worker_id": uuid.NewString(), "rating": 5}, fiber.StatusNotFound, "not_found"},
		{"public listing", fiber.MethodGet, "/api/workers/" + workerID + "/reviews", "", nil, fiber.StatusOK, ""},
	})

	summary := data(bodies["public listing"])
	s.Equal(float64(2), summary["count"])
	s.Equal("4.50", summary["average_rating"])
}

func (s *APISuite) TestChat() {
	employerID, employer := s.user(models.RoleEmployer, accounts.Attrs{})
	workerID, worker := s.user(models.RoleWorker, accounts.Attrs{})
	_, outsider := s.user(models.RoleWorker, accounts.Attrs{})
	_, agency := s.user(models.RoleAgency, accounts.Attrs{})
	jobID := s.postJob(employer, fiber.Map{"title": "Elderly carer"})

	bodies := s.runCases([]apiCase{
		{"employer opens", fiber.MethodPost, "/api/chat/threads", employer, fiber.Map{"worker_id": workerID}, fiber.StatusOK, ""},
		{"employer opens again", fiber.MethodPost, "/api/chat/threads", employer, fiber.Map{"worker_id": workerID}, fiber.StatusOK, ""},
		{"worker opens same pair", fiber.MethodPost, "/api/chat/threads", worker, fiber.Map{"employer_id": employerID}, fiber.StatusOK, ""},
		{"open for job", fiber.MethodPost, "/api/chat/threads", employer, fiber.Map{"worker_id": workerID, "job_id": jobID}, fiber.StatusOK, ""},
		{"open for job again", fiber.MethodPost, "/api/chat/threads", worker, fiber.Map{"employer_id": employerID, "job_id": jobID}, fiber.StatusOK, ""},
		{"missing counterpart", fiber.MethodPost, "/api/chat/threads", employer, fiber.Map{}, fiber.StatusBadRequest, "worker_id_required"},
		{"counterpart with wrong role", fiber.MethodPost, "/api/chat/threads", worker, fiber.Map{"employer_id": workerID}, fiber.StatusNotFound, "not_found"},
		{"agency cannot open", fiber.MethodPost, "/api/chat/threads", agency, fiber.Map{"worker_id": workerID}, fiber.StatusForbidden, "permission_denied"},
	})

	threadID := data(bodies["employer opens"])["id"].(string)
	s.Equal(threadID, data(bodies["employer opens again"])["id"])
	s.Equal(threadID, data(bodies["worker opens same pair"])["id"])
	jobThreadID := data(bodies["open for job"])["id"].(string)
	s.NotEqual(threadID, jobThreadID)
	s.Equal(jobThreadID, data(bodies["open for job again"])["id"])

	messages := "/api/chat/threads/" + threadID + "/messages"
	read := "/api/chat/threads/" + threadID + "/read"
	bodies = s.runCases([]apiCase{
		{"employer writes", fiber.MethodPost, messages, employer, fiber.Map{"message": "Are you free Monday?"}, fiber.StatusCreated, ""},
		{"employer writes again", fiber.MethodPost, messages, employer, fiber.Map{"message": "Morning works best."}, fiber.StatusCreated, ""},
		{"blank message", fiber.MethodPost, messages, worker, fiber.Map{"message": "   "}, fiber.StatusBadRequest, "invalid_message"},
		{"outsider reads", fiber.MethodGet, messages, outsider, nil, fiber.StatusForbidden, "permission_denied"},
		{"outsider writes", fiber.MethodPost, messages, outsider, fiber.Map{"message": "hi"}, fiber.StatusForbidden, "permission_denied"},
		{"outsider marks read", fiber.MethodPost, read, outsider, nil, fiber.StatusForbidden, "permission_denied"},
		{"sender marks read", fiber.MethodPost, read, employer, nil, fiber.StatusOK, ""},
		{"worker marks read", fiber.MethodPost, read, worker, nil, fiber.StatusOK, ""},
		{"worker marks read again", fiber.MethodPost, read, worker, nil, fiber.StatusOK, ""},
		{"worker lists", fiber.MethodGet, messages, worker, nil, fiber.StatusOK, ""},
		{"unknown thread", fiber.MethodGet, "/api/chat/threads/" + uuid.NewString() + "/messages", worker, nil, fiber.StatusNotFound, "not_found"},
		{"request call", fiber.MethodPost, "/api/chat/threads/" + threadID + "/calls", worker, nil, fiber.StatusCreated, ""},
		{"list calls", fiber.MethodGet, "/api/chat/threads/" + threadID + "/calls", employer, nil, fiber.StatusOK, ""},
		{"worker threads", fiber.MethodGet, "/api/chat/threads", worker, nil, fiber.StatusOK, ""},
		{"outsider threads", fiber.MethodGet, "/api/chat/threads", outsider, nil, fiber.StatusOK, ""},
	})

	// Only the counterpart's messages count.
	s.Equal(float64(0), data(bodies["sender marks read"])["marked_read"])
	s.Equal(float64(2), data(bodies["worker marks read"])["marked_read"])
	s.Equal(float64(0), data(bodies["worker marks read again"])["marked_read"])

	listed := list(bodies["worker lists"])
	s.Require().Len(listed, 2)
	s.Equal("Are you free Monday?", listed[0]["message"])
	s.Equal(true, listed[0]["is_read"])

	s.Len(list(bodies["list calls"]), 1)
	s.Len(list(bodies["worker threads"]), 2)
	s.Empty(list(bodies["outsider threads"]))
}

func (s *APISuite) TestAgency() {
	company := newTag()
	employerID, employer := s.user(models.RoleEmployer, accounts.Attrs{CompanyName: "Acme " + company})
	agencyID, agency := s.user(models.RoleAgency, accounts.Attrs{AgencyName: "Gulf Staffing"})
	_, otherAgency := s.user(models.RoleAgency, accounts.Attrs{})
	workerID, _ := s.user(models.RoleWorker, accounts.Attrs{})

	bodies := s.runCases([]apiCase{
		{"search employers", fiber.MethodGet, "/api/agency/employers?search=" + company, agency, nil, fiber.StatusOK, ""},
		{"employers cannot search", fiber.MethodGet, "/api/agency/employers", employer, nil, fiber.StatusForbidden, ""},
		{"post job for employer", fiber.MethodPost, "/api/agency/jobs", agency, fiber.Map{"title": "Gardener", "employer_id": employerID}, fiber.StatusCreated, ""},
		{"post job without employer", fiber.MethodPost, "/api/agency/jobs", agency, fiber.Map{"title": "Gardener"}, fiber.StatusBadRequest, "employer_required"},
		{"post job for a worker", fiber.MethodPost, "/api/agency/jobs", agency, fiber.Map{"title": "Gardener", "employer_id": workerID}, fiber.StatusBadRequest, "invalid_employer"},
		{"list agency jobs", fiber.MethodGet, "/api/agency/jobs", agency, nil, fiber.StatusOK, ""},
		{"submit worker", fiber.MethodPost, "/api/agency/submissions", agency, fiber.Map{"worker_id": workerID, "job_role": " Nanny ", "experience_summary": "6 years"}, fiber.StatusCreated, ""},
		{"submit non-worker", fiber.MethodPost, "/api/agency/submissions", agency, fiber.Map{"worker_id": employerID, "job_role": "Nanny"}, fiber.StatusNotFound, "not_found"},
		{"submit without role", fiber.MethodPost, "/api/agency/submissions", agency, fiber.Map{"worker_id": workerID}, fiber.StatusBadRequest, ""},
		{"list submitted", fiber.MethodGet, "/api/agency/submissions?status=submitted", agency, nil, fiber.StatusOK, ""},
		{"list by unknown status", fiber.MethodGet, "/api/agency/submissions?status=archived", agency, nil, fiber.StatusBadRequest, "invalid_status"},
		{"other agency sees none", fiber.MethodGet, "/api/agency/submissions", otherAgency, nil, fiber.StatusOK, ""},
	})

	employers := list(bodies["search employers"])
	s.Require().Len(employers, 1)
	s.Equal(employerID, employers[0]["id"])
	s.Equal("Acme "+company, employers[0]["company_name"])

	posted := data(bodies["post job for employer"])
	s.Equal(employerID, posted["employer_id"])
	s.Equal(agencyID, posted["agency_id"])
	s.Equal("pending", posted["review_status"])
	s.Equal(float64(1), totalItems(bodies["list agency jobs"]))

	submission := data(bodies["submit worker"])
	s.Equal("Nanny", submission["job_role"])
	s.Equal("submitted", submission["status"])
	s.Equal(float64(1), totalItems(bodies["list submitted"]))
	s.Equal(float64(0), totalItems(bodies["other agency sees none"]))

	statusPath := "/api/agency/submissions/" + submission["id"].(string) + "/status"
	bodies = s.runCases([]apiCase{
		{"move to review", fiber.MethodPatch, statusPath, agency, fiber.Map{"status": "under_review", "notes": "called references"}, fiber.StatusOK, ""},
		{"unknown status", fiber.MethodPatch, statusPath, agency, fiber.Map{"status": "archived"}, fiber.StatusBadRequest, "invalid_status"},
		{"other agency", fiber.MethodPatch, statusPath, otherAgency, fiber.Map{"status": "accepted"}, fiber.StatusNotFound, "not_found"},
	})
	s.Equal("under_review", data(bodies["move to review"])["status"])
	s.Equal("called references", data(bodies["move to review"])["notes"])
}

func (s *APISuite) analytics(token string) map[string]any {
	status, body := s.do(fiber.MethodGet, "/api/government/analytics", token, nil)
	s.Require().Equal(fiber.StatusOK, status, "%v", body)
	return data(body)
}

func count(analytics map[string]any, group, key string) float64 {
	counts, _ := analytics[group].(map[string]any)
	n, _ := counts[key].(float64)
	return n
}

func (s *APISuite) TestGovernment() {
	_, regulator := s.user(models.RoleGovernment, accounts.Attrs{AuthorityName: "Labour Ministry"})
	_, employer := s.user(models.RoleEmployer, accounts.Attrs{})
	before := s.analytics(regulator)

	_, worker := s.user(models.RoleWorker, accounts.Attrs{})
	queued := s.postJob(employer, fiber.Map{"title": "Chauffeur"})
	rejected := s.postJob(employer, fiber.Map{"title": "Tutor"})
	s.review(regulator, rejected, "rejected")

	status, body := s.do(fiber.MethodPost, "/api/reports", worker, fiber.Map{
		"subject_job_id": queued,
		"category":       "Wage_Theft",
		"description":    "Salary withheld for two months",
	})
	s.Require().Equal(fiber.StatusCreated, status, "%v", body)
	reportID := data(body)["id"].(string)

	after := s.analytics(regulator)
	s.Equal(before["total_users"].(float64)+1, after["total_users"])
	s.Equal(count(before, "users_by_role", "worker")+1, count(after, "users_by_role", "worker"))
	s.Equal(count(before, "jobs_by_status", "active")+2, count(after, "jobs_by_status", "active"))
	s.Equal(count(before, "jobs_by_review_status", "pending")+1, count(after, "jobs_by_review_status", "pending"))
	s.Equal(count(before, "jobs_by_review_status", "rejected")+1, count(after, "jobs_by_review_status", "rejected"))
	s.Equal(count(before, "reports_by_status", "pending")+1, count(after, "reports_by_status", "pending"))
	s.Contains(after, "applications_by_status")

	reportPath := "/api/government/reports/" + reportID
	bodies := s.runCases([]apiCase{
		{"worker cannot see analytics", fiber.MethodGet, "/api/government/analytics", worker, nil, fiber.StatusForbidden, ""},
		{"review queue", fiber.MethodGet, "/api/government/jobs/review-queue", regulator, nil, fiber.StatusOK, ""},
		{"rejected queue", fiber.MethodGet, "/api/government/jobs/review-queue?review_status=rejected", regulator, nil, fiber.StatusOK, ""},
		{"unknown queue", fiber.MethodGet, "/api/government/jobs/review-queue?review_status=maybe", regulator, nil, fiber.StatusBadRequest, ""},
		{"unknown review decision", fiber.MethodPatch, "/api/government/jobs/" + queued + "/review", regulator, fiber.Map{"status": "maybe"}, fiber.StatusBadRequest, ""},
		{"pending reports", fiber.MethodGet, "/api/government/reports?status=pending&category=wage_theft", regulator, nil, fiber.StatusOK, ""},
		{"reports by unknown status", fiber.MethodGet, "/api/government/reports?status=lost", regulator, nil, fiber.StatusBadRequest, "invalid_status"},
		{"worker cannot list reports", fiber.MethodGet, "/api/government/reports", worker, nil, fiber.StatusForbidden, ""},
		{"resolve", fiber.MethodPatch, reportPath, regulator, fiber.Map{"status": "resolved", "resolution_notes": "Employer paid in full"}, fiber.StatusOK, ""},
		{"reopen", fiber.MethodPatch, reportPath, regulator, fiber.Map{"status": "in_review"}, fiber.StatusOK, ""},
		{"unknown report status", fiber.MethodPatch, reportPath, regulator, fiber.Map{"status": "lost"}, fiber.StatusBadRequest, "invalid_status"},
		{"unknown report", fiber.MethodPatch, "/api/government/reports/" + uuid.NewString(), regulator, fiber.Map{"status": "resolved"}, fiber.StatusNotFound, "not_found"},
	})

	var queuedIDs []any
	for _, j := range list(bodies["review queue"]) {
		queuedIDs = append(queuedIDs, j["id"])
	}
	s.Contains(queuedIDs, queued)
	s.NotContains(queuedIDs, rejected)

	var rejectedIDs []any
	for _, j := range list(bodies["rejected queue"]) {
		rejectedIDs = append(rejectedIDs, j["id"])
	}
	s.Contains(rejectedIDs, rejected)

	var reportIDs []any
	for _, r := range list(bodies["pending reports"]) {
		reportIDs = append(reportIDs, r["id"])
	}
	s.Contains(reportIDs, reportID)

	resolved := data(bodies["resolve"])
	s.Equal("resolved", resolved["status"])
	s.NotNil(resolved["resolved_at"])
	s.NotNil(resolved["reviewed_by_id"])
	s.Equal("Employer paid in full", resolved["resolution_notes"])

	reopened := data(bodies["reopen"])
	s.Nil(reopened["resolved_at"])
	s.Equal("Employer paid in full", reopened["resolution_notes"])
}

func (s *APISuite) TestComplianceReports() {
	employerID, employer := s.user(models.RoleEmployer, accounts.Attrs{})
	_, worker := s.user(models.RoleWorker, accounts.Attrs{})
	_, other := s.user(models.RoleWorker, accounts.Attrs{})

	bodies := s.runCases([]apiCase{
		{"report a user", fiber.MethodPost, "/api/reports", worker, fiber.Map{"subject_user_id": employerID, "category": " Harassment ", "description": "Threatening messages"}, fiber.StatusCreated, ""},
		{"no subject", fiber.MethodPost, "/api/reports", worker, fiber.Map{"category": "fraud", "description": "x"}, fiber.StatusBadRequest, "subject_required"},
		{"unknown user", fiber.MethodPost, "/api/reports", worker, fiber.Map{"subject_user_id": uuid.NewString(), "category": "fraud", "description": "x"}, fiber.StatusNotFound, "not_found"},
		{"unknown job", fiber.MethodPost, "/api/reports", worker, fiber.Map{"subject_job_id": uuid.NewString(), "category": "fraud", "description": "x"}, fiber.StatusNotFound, "not_found"},
		{"malformed subject", fiber.MethodPost, "/api/reports", worker, fiber.Map{"subject_user_id": "nope", "category": "fraud", "description": "x"}, fiber.StatusBadRequest, ""},
		{"missing description", fiber.MethodPost, "/api/reports", employer, fiber.Map{"subject_user_id": employerID, "category": "fraud"}, fiber.StatusBadRequest, ""},
		{"mine", fiber.MethodGet, "/api/reports/mine", worker, nil, fiber.StatusOK, ""},
		{"someone else's", fiber.MethodGet, "/api/reports/mine", other, nil, fiber.StatusOK, ""},
	})

	report := data(bodies["report a user"])
	s.Equal("harassment", report["category"])
	s.Equal("pending", report["status"])
	s.Nil(report["subject_job_id"])

	mine := list(bodies["mine"])
	s.Require().Len(mine, 1)
	s.Equal(report["id"], mine[0]["id"])
	s.Empty(list(bodies["someone else's"]))
}

func (s *APISuite) TestSupportRequests() {
	category := newTag()
	providerID, provider := s.user(models.RoleSupportProvider, accounts.Attrs{BusinessName: "Visa Desk"})
	_, otherProvider := s.user(models.RoleSupportProvider, accounts.Attrs{})
	workerID, worker := s.user(models.RoleWorker, accounts.Attrs{})
	_, outsider := s.user(models.RoleWorker, accounts.Attrs{})

	status, body := s.do(fiber.MethodPut, "/api/support/profile", provider, fiber.Map{
		"service_categories": []string{category},
		"city":               "Abu Dhabi",
	})
	s.Require().Equal(fiber.StatusOK, status, "%v", body)

	bodies := s.runCases([]apiCase{
		{"directory by category", fiber.MethodGet, "/api/support-providers?category=" + category, "", nil, fiber.StatusOK, ""},
		{"create", fiber.MethodPost, "/api/support/requests", worker, fiber.Map{"provider_id": providerID, "category": category, "description": "Visa renewal"}, fiber.StatusCreated, ""},
		{"own service", fiber.MethodPost, "/api/support/requests", provider, fiber.Map{"provider_id": providerID, "category": category}, fiber.StatusBadRequest, "invalid_provider_id"},
		{"not a provider", fiber.MethodPost, "/api/support/requests", worker, fiber.Map{"provider_id": workerID, "category": category}, fiber.StatusNotFound, "not_found"},
		{"requester lists open", fiber.MethodGet, "/api/support/requests?status=open", worker, nil, fiber.StatusOK, ""},
		{"provider lists", fiber.MethodGet, "/api/support/requests", provider, nil, fiber.StatusOK, ""},
		{"list by unknown status", fiber.MethodGet, "/api/support/requests?status=lost", worker, nil, fiber.StatusBadRequest, "invalid_status"},
	})

	directory := list(bodies["directory by category"])
	s.Require().Len(directory, 1)
	s.Equal(providerID, directory[0]["user_id"])

	request := data(bodies["create"])
	s.Equal("open", request["status"])
	s.Equal(float64(1), totalItems(bodies["requester lists open"]))
	s.Equal(float64(1), totalItems(bodies["provider lists"]))

	requestPath := "/api/support/requests/" + request["id"].(string)
	bodies = s.runCases([]apiCase{
		{"requester cannot set status", fiber.MethodPatch, requestPath + "/status", worker, fiber.Map{"status": "completed"}, fiber.StatusForbidden, ""},
		{"other provider cannot set status", fiber.MethodPatch, requestPath + "/status", otherProvider, fiber.Map{"status": "completed"}, fiber.StatusForbidden, "permission_denied"},
		{"unknown status", fiber.MethodPatch, requestPath + "/status", provider, fiber.Map{"status": "lost"}, fiber.StatusBadRequest, "invalid_status"},
		{"provider starts work", fiber.MethodPatch, requestPath + "/status", provider, fiber.Map{"status": "in_progress"}, fiber.StatusOK, ""},
		{"requester writes", fiber.MethodPost, requestPath + "/messages", worker, fiber.Map{"message": "Passport copy attached"}, fiber.StatusCreated, ""},
		{"provider replies", fiber.MethodPost, requestPath + "/messages", provider, fiber.Map{"message": "Received"}, fiber.StatusCreated, ""},
		{"outsider writes", fiber.MethodPost, requestPath + "/messages", outsider, fiber.Map{"message": "hello"}, fiber.StatusForbidden, "permission_denied"},
		{"outsider reads", fiber.MethodGet, requestPath + "/messages", outsider, nil, fiber.StatusForbidden, "permission_denied"},
		{"requester reads", fiber.MethodGet, requestPath + "/messages", worker, nil, fiber.StatusOK, ""},
		{"open after start", fiber.MethodGet, "/api/support/requests?status=open", worker, nil, fiber.StatusOK, ""},
	})

	s.Equal("in_progress", data(bodies["provider starts work"])["status"])
	thread := list(bodies["requester reads"])
	s.Require().Len(thread, 2)
	s.Equal("Passport copy attached", thread[0]["message"])
	s.Equal(float64(0), totalItems(bodies["open after start"]))
}

func (s *APISuite) TestPublicWorkerDirectory() {
	service := newTag()
	workerID, worker := s.user(models.RoleWorker, accounts.Attrs{})
	_, _ = s.user(models.RoleWorker, accounts.Attrs{})

	status, body := s.do(fiber.MethodPut, "/api/profile/worker", worker, fiber.Map{
		"city":      "Sharjah",
		"services":  []string{service},
		"languages": []string{"arabic", "english"},
	})
	s.Require().Equal(fiber.StatusOK, status, "%v", body)

	bodies := s.runCases([]apiCase{
		{"by service", fiber.MethodGet, "/api/workers?service=" + service, "", nil, fiber.StatusOK, ""},
		{"by service and language", fiber.MethodGet, "/api/workers?service=" + service + "&language=arabic", "", nil, fiber.StatusOK, ""},
		{"by service and other language", fiber.MethodGet, "/api/workers?service=" + service + "&language=tagalog", "", nil, fiber.StatusOK, ""},
		{"health", fiber.MethodGet, "/health", "", nil, fiber.StatusOK, ""},
	})

	found := list(bodies["by service"])
	s.Require().Len(found, 1)
	s.Equal(workerID, found[0]["user_id"])
	s.Equal(float64(1), totalItems(bodies["by service and language"]))
	s.Equal(float64(0), totalItems(bodies["by service and other language"]))
	s.Equal("ok", bodies["health"]["checks"].(map[string]any)["database"])
}
