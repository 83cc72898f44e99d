package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/domestyx/internal/access"
	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/utils"
	"github.com/example/domestyx/internal/workflow"
)

// JobHandler manages job postings and applications.
type JobHandler struct {
	db  *gorm.DB
	svc *workflow.Service
	log *zap.Logger
}

// NewJobHandler constructs JobHandler.
func NewJobHandler(db *gorm.DB, svc *workflow.Service, log *zap.Logger) *JobHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &JobHandler{db: db, svc: svc, log: log.Named("jobs")}
}

type jobRequest struct {
	EmployerID              *string  `json:"employer_id"`
	Title                   *string  `json:"title" validate:"omitempty,max=255"`
	Description             *string  `json:"description"`
	Location                *string  `json:"location"`
	Salary                  *string  `json:"salary"`
	JobType                 *string  `json:"job_type" validate:"omitempty,oneof=full_time part_time live_in live_out temporary"`
	PreferredGender         *string  `json:"preferred_gender"`
	PreferredAgeRange       *string  `json:"preferred_age_range"`
	PreferredNationality    *string  `json:"preferred_nationality"`
	LanguageRequirements    []string `json:"language_requirements"`
	SkillsRequired          []string `json:"skills_required"`
	ExperienceRequired      *string  `json:"experience_required"`
	WorkplaceType           *string  `json:"workplace_type"`
	AccommodationProvided   *string  `json:"accommodation_provided"`
	FoodProvided            *string  `json:"food_provided"`
	WorkSchedule            *string  `json:"work_schedule"`
	FullTimeSalary          *string  `json:"full_time_salary"`
	PartTimeSalary          *string  `json:"part_time_salary"`
	HourlyWage              *string  `json:"hourly_wage"`
	AdditionalBenefits      []string `json:"additional_benefits"`
	ContractType            *string  `json:"contract_type"`
	WorkPermitSponsorship   *string  `json:"work_permit_sponsorship"`
	BackgroundCheckRequired *bool    `json:"background_verification_required"`
	PoliceClearanceRequired *bool    `json:"police_clearance_required"`
	ApplicationInstructions *string  `json:"application_instructions"`
	ContactPersonName       *string  `json:"contact_person_name"`
	ContactPhone            *string  `json:"contact_phone"`
	ContactEmail            *string  `json:"contact_email" validate:"omitempty,email"`
}

// apply copies the fields present in the request onto job.
func (r *jobRequest) apply(job *models.Job) error {
	strs := []struct {
		dst *string
		src *string
	}{
		{&job.Title, r.Title},
		{&job.Description, r.Description},
		{&job.Location, r.Location},
		{&job.Salary, r.Salary},
		{&job.JobType, r.JobType},
		{&job.PreferredGender, r.PreferredGender},
		{&job.PreferredAgeRange, r.PreferredAgeRange},
		{&job.PreferredNationality, r.PreferredNationality},
		{&job.ExperienceRequired, r.ExperienceRequired},
		{&job.WorkplaceType, r.WorkplaceType},
		{&job.AccommodationProvided, r.AccommodationProvided},
		{&job.FoodProvided, r.FoodProvided},
		{&job.WorkSchedule, r.WorkSchedule},
		{&job.ContractType, r.ContractType},
		{&job.WorkPermitSponsorship, r.WorkPermitSponsorship},
		{&job.ApplicationInstructions, r.ApplicationInstructions},
		{&job.ContactPersonName, r.ContactPersonName},
		{&job.ContactPhone, r.ContactPhone},
		{&job.ContactEmail, r.ContactEmail},
	}
	for _, f := range strs {
		if f.src != nil {
			*f.dst = strings.TrimSpace(*f.src)
		}
	}

	if r.LanguageRequirements != nil {
		job.LanguageRequirements = cleanList(r.LanguageRequirements)
	}
	if r.SkillsRequired != nil {
		job.SkillsRequired = cleanList(r.SkillsRequired)
	}
	if r.AdditionalBenefits != nil {
		job.AdditionalBenefits = cleanList(r.AdditionalBenefits)
	}
	if r.BackgroundCheckRequired != nil {
		job.BackgroundCheckRequired = *r.BackgroundCheckRequired
	}
	if r.PoliceClearanceRequired != nil {
		job.PoliceClearanceRequired = *r.PoliceClearanceRequired
	}

	money := []struct {
		field string
		dst   **string
		src   *string
	}{
		{"full_time_salary", &job.FullTimeSalary, r.FullTimeSalary},
		{"part_time_salary", &job.PartTimeSalary, r.PartTimeSalary},
		{"hourly_wage", &job.HourlyWage, r.HourlyWage},
	}
	for _, m := range money {
		if m.src == nil {
			continue
		}
		amount, err := utils.NormalizeDecimal(m.field, *m.src)
		if err != nil {
			return err
		}
		*m.dst = amount
	}
	return nil
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// CreateJob posts a job for review.
func (h *JobHandler) CreateJob(c *fiber.Ctx) error {
	var req jobRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	employerID, err := optionalID("employer_id", req.EmployerID)
	if err != nil {
		return err
	}

	job := &models.Job{}
	if err := req.apply(job); err != nil {
		return err
	}
	job, err = h.svc.CreateJob(c.UserContext(), middleware.CurrentActor(c), job, employerID)
	if err != nil {
		return err
	}
	h.log.Info("job created", zap.String("job_id", job.ID.String()), zap.String("employer_id", job.EmployerID.String()))
	return respondCreated(c, job)
}

// ListMyJobs returns jobs the caller owns or posted as an agency.
func (h *JobHandler) ListMyJobs(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)
	pg := utils.ParsePagination(c)

	query := h.db.WithContext(c.UserContext()).Model(&models.Job{}).
		Where("employer_id = ? OR agency_id = ?", actor.ID, actor.ID)
	if status := c.Query("status"); status != "" {
		parsed, err := workflow.ParseJobStatus(status)
		if err != nil {
			return err
		}
		query = query.Where("status = ?", parsed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}
	var jobs []models.Job
	if err := query.Order("posted_at desc").Limit(pg.Limit).Offset(pg.Offset).Find(&jobs).Error; err != nil {
		return err
	}
	return respondPage(c, jobs, pg, total)
}

// GetJob returns one job. Workers and other outsiders only see visible jobs.
func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	jobID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	job, err := h.loadJob(c, jobID)
	if err != nil {
		return err
	}

	actor := middleware.CurrentActor(c)
	if !job.VisibleToWorkers() && actor.Role != models.RoleGovernment && workflow.CanManageJob(actor, job) != nil {
		return apperr.NotFound("job not found")
	}
	return respondOK(c, job)
}

// UpdateJob edits a job's content.
func (h *JobHandler) UpdateJob(c *fiber.Ctx) error {
	jobID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req jobRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	job, err := h.svc.UpdateJob(c.UserContext(), middleware.CurrentActor(c), jobID, req.apply)
	if err != nil {
		return err
	}
	return respondOK(c, job)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes"`
}

// SetJobStatus moves a job between active, filled and closed.
func (h *JobHandler) SetJobStatus(c *fiber.Ctx) error {
	jobID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	job, err := h.svc.SetJobStatus(c.UserContext(), middleware.CurrentActor(c), jobID, req.Status)
	if err != nil {
		return err
	}
	return respondOK(c, job)
}

// AvailableJobs lists active, approved jobs for workers with has_applied and
// is_saved flags.
func (h *JobHandler) AvailableJobs(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)
	pg := utils.ParsePagination(c)

	query := h.db.WithContext(c.UserContext()).Model(&models.Job{}).
		Where("status = ? AND review_status = ?", models.JobStatusActive, models.ReviewStatusApproved)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if location := strings.TrimSpace(c.Query("location")); location != "" {
		query = query.Where("LOWER(location) LIKE ?", "%"+strings.ToLower(location)+"%")
	}
	if jobType := strings.TrimSpace(c.Query("job_type")); jobType != "" {
		query = query.Where("job_type = ?", jobType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}
	var jobs []models.Job
	if err := query.Order("posted_at desc").Limit(pg.Limit).Offset(pg.Offset).Find(&jobs).Error; err != nil {
		return err
	}

	ids := make([]uuid.UUID, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	applied, err := h.jobIDSet(c, &models.Application{}, actor.ID, ids)
	if err != nil {
		return err
	}
	saved, err := h.jobIDSet(c, &models.SavedJob{}, actor.ID, ids)
	if err != nil {
		return err
	}

	items := make([]fiber.Map, len(jobs))
	for i, j := range jobs {
		_, hasApplied := applied[j.ID]
		_, isSaved := saved[j.ID]
		items[i] = fiber.Map{"job": j, "has_applied": hasApplied, "is_saved": isSaved}
	}
	return respondPage(c, items, pg, total)
}

func (h *JobHandler) jobIDSet(c *fiber.Ctx, model any, workerID uuid.UUID, jobIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	set := map[uuid.UUID]struct{}{}
	if len(jobIDs) == 0 {
		return set, nil
	}
	var found []uuid.UUID
	if err := h.db.WithContext(c.UserContext()).Model(model).
		Where("worker_id = ? AND job_id IN ?", workerID, jobIDs).
		Pluck("job_id", &found).Error; err != nil {
		return nil, err
	}
	for _, id := range found {
		set[id] = struct{}{}
	}
	return set, nil
}

type applyRequest struct {
	CoverNote string `json:"cover_note" validate:"max=5000"`
}

// Apply submits the worker's application to a job.
func (h *JobHandler) Apply(c *fiber.Ctx) error {
	jobID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req applyRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}

	app, err := h.svc.Apply(c.UserContext(), middleware.CurrentActor(c), jobID, req.CoverNote)
	if err != nil {
		return err
	}
	return respondCreated(c, app)
}

// JobApplications lists applications for a job the caller manages.
func (h *JobHandler) JobApplications(c *fiber.Ctx) error {
	jobID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	job, err := h.loadJob(c, jobID)
	if err != nil {
		return err
	}
	if err := workflow.CanManageJob(middleware.CurrentActor(c), job); err != nil {
		return err
	}

	query := h.db.WithContext(c.UserContext()).Where("job_id = ?", jobID)
	if status := c.Query("status"); status != "" {
		parsed, err := workflow.ParseApplicationStatus(status)
		if err != nil {
			return err
		}
		query = query.Where("status = ?", parsed)
	}
	var apps []models.Application
	if err := query.Preload("Worker").Order("applied_at desc").Find(&apps).Error; err != nil {
		return err
	}
	return respondOK(c, apps)
}

// MyApplications lists the worker's applications with their jobs.
func (h *JobHandler) MyApplications(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Application{}).
		Where("worker_id = ?", middleware.CurrentActor(c).ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}
	var apps []models.Application
	if err := query.Preload("Job").Order("applied_at desc").
		Limit(pg.Limit).Offset(pg.Offset).Find(&apps).Error; err != nil {
		return err
	}
	return respondPage(c, apps, pg, total)
}

// SetApplicationStatus moves an application through the hiring pipeline.
func (h *JobHandler) SetApplicationStatus(c *fiber.Ctx) error {
	appID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	app, err := h.svc.SetApplicationStatus(c.UserContext(), middleware.CurrentActor(c), appID, req.Status)
	if err != nil {
		return err
	}
	return respondOK(c, app)
}

func (h *JobHandler) loadJob(c *fiber.Ctx, id uuid.UUID) (*models.Job, error) {
	return findJob(c, h.db, id)
}

func findJob(c *fiber.Ctx, db *gorm.DB, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := db.WithContext(c.UserContext()).First(&job, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("job not found")
		}
		return nil, err
	}
	return &job, nil
}

// isJobManager is used by handlers that only need a yes/no answer.
func isJobManager(actor access.Actor, job *models.Job) bool {
	return workflow.CanManageJob(actor, job) == nil
}
