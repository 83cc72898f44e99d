package routes

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/domestyx/internal/cache"
	"github.com/example/domestyx/internal/config"
	"github.com/example/domestyx/internal/handlers"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/otp"
	"github.com/example/domestyx/internal/workflow"
)

// Dependencies are the shared services handlers are built from.
type Dependencies struct {
	Config   *config.Config
	DB       *gorm.DB
	Accounts handlers.AccountStore
	OTP      *otp.Engine
	Workflow *workflow.Service
	Revoked  cache.RevocationList
	Health   handlers.HealthChecker
	Log      *zap.Logger
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Dependencies) {
	authHandler := handlers.NewAuthHandler(d.Config, d.Accounts, d.OTP, d.Revoked, d.Log)
	profileHandler := handlers.NewProfileHandler(d.DB)
	jobHandler := handlers.NewJobHandler(d.DB, d.Workflow, d.Log)
	offerHandler := handlers.NewOfferHandler(d.DB, d.Workflow)
	shortlistHandler := handlers.NewShortlistHandler(d.DB)
	reviewHandler := handlers.NewReviewHandler(d.DB)
	chatHandler := handlers.NewChatHandler(d.DB, d.Workflow)
	agencyHandler := handlers.NewAgencyHandler(d.DB)
	governmentHandler := handlers.NewGovernmentHandler(d.DB, d.Workflow)
	complianceHandler := handlers.NewComplianceHandler(d.DB)
	supportHandler := handlers.NewSupportHandler(d.DB)
	healthHandler := handlers.NewHealthHandler(d.DB, d.Health)

	authRequired := middleware.AuthMiddleware(d.Config.JWTSecret, d.Accounts, d.Revoked, d.Log)
	authOptional := middleware.OptionalAuthMiddleware(d.Config.JWTSecret, d.Accounts, d.Revoked, d.Log)

	workerOnly := middleware.RequireRoles(models.RoleWorker)
	employerOnly := middleware.RequireRoles(models.RoleEmployer)
	jobManagers := middleware.RequireRoles(models.RoleEmployer, models.RoleAgency)

	app.Get("/health", healthHandler.Check)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/verify-token", authHandler.VerifyToken)
	auth.Post("/otp/send", authHandler.SendOTP)
	auth.Post("/otp/verify", authOptional, authHandler.VerifyOTP)
	auth.Post("/otp/login", authHandler.LoginWithOTP)
	auth.Post("/password/reset", authHandler.ResetPassword)
	auth.Post("/password/change", authRequired, authHandler.ChangePassword)
	auth.Post("/logout", authRequired, authHandler.Logout)
	auth.Post("/deactivate", authRequired, authHandler.Deactivate)
	auth.Delete("/account", authRequired, authHandler.DeleteAccount)

	// Profile routes
	profile := api.Group("/profile", authRequired)
	profile.Get("/", profileHandler.GetProfile)
	profile.Put("/", profileHandler.UpdateProfile)
	profile.Get("/consent", profileHandler.GetConsent)
	profile.Put("/consent", profileHandler.UpdateConsent)
	profile.Get("/role", profileHandler.GetRoleProfile)
	profile.Put("/worker", workerOnly, profileHandler.UpdateWorkerProfile)
	profile.Put("/employer", employerOnly, profileHandler.UpdateEmployerProfile)
	profile.Put("/agency", middleware.RequireRoles(models.RoleAgency), profileHandler.UpdateAgencyProfile)
	profile.Put("/government", middleware.RequireRoles(models.RoleGovernment), profileHandler.UpdateGovernmentProfile)
	profile.Put("/support", middleware.RequireRoles(models.RoleSupportProvider), profileHandler.UpdateSupportProfile)

	// Public listings
	api.Get("/workers", profileHandler.PublicWorkers)
	api.Get("/workers/:id/reviews", reviewHandler.ListForWorker)
	api.Get("/support-providers", profileHandler.SupportProviders)

	// Jobs. Fixed paths go before /:id.
	jobs := api.Group("/jobs", authRequired)
	jobs.Get("/recommended", workerOnly, jobHandler.RecommendedJobs)
	jobs.Get("/available", workerOnly, jobHandler.AvailableJobs)
	jobs.Get("/saved", workerOnly, jobHandler.SavedJobs)
	jobs.Get("/my-jobs", jobManagers, jobHandler.ListMyJobs)
	jobs.Post("/my-jobs", jobManagers, jobHandler.CreateJob)
	jobs.Get("/:id", jobHandler.GetJob)
	jobs.Put("/:id", jobManagers, jobHandler.UpdateJob)
	jobs.Patch("/:id/status", jobManagers, jobHandler.SetJobStatus)
	jobs.Post("/:id/apply", workerOnly, jobHandler.Apply)
	jobs.Post("/:id/save", workerOnly, jobHandler.SaveJob)
	jobs.Delete("/:id/save", workerOnly, jobHandler.UnsaveJob)
	jobs.Get("/:id/applications", jobManagers, jobHandler.JobApplications)
	jobs.Get("/:id/recommended-workers", jobManagers, jobHandler.RecommendedWorkers)

	applications := api.Group("/applications", authRequired)
	applications.Get("/mine", workerOnly, jobHandler.MyApplications)
	applications.Patch("/:id/status", jobManagers, jobHandler.SetApplicationStatus)

	offers := api.Group("/offers", authRequired)
	offers.Post("/", employerOnly, offerHandler.Create)
	offers.Get("/", middleware.RequireRoles(models.RoleEmployer, models.RoleWorker), offerHandler.ListMine)
	offers.Post("/:id/respond", workerOnly, offerHandler.Respond)

	shortlist := api.Group("/shortlist", authRequired, jobManagers)
	shortlist.Post("/", shortlistHandler.Add)
	shortlist.Get("/", shortlistHandler.List)
	shortlist.Delete("/:id", shortlistHandler.Remove)

	api.Post("/reviews", authRequired, jobManagers, reviewHandler.Create)

	// Chat and calls
	chat := api.Group("/chat", authRequired)
	chat.Post("/threads", chatHandler.OpenThread)
	chat.Get("/threads", chatHandler.ListThreads)
	chat.Get("/threads/:id/messages", chatHandler.ListMessages)
	chat.Post("/threads/:id/messages", chatHandler.PostMessage)
	chat.Post("/threads/:id/read", chatHandler.MarkRead)
	chat.Get("/threads/:id/calls", chatHandler.ListCalls)
	chat.Post("/threads/:id/calls", chatHandler.RequestCall)
	api.Patch("/calls/:id", authRequired, chatHandler.UpdateCall)

	// Agency
	agency := api.Group("/agency", authRequired, middleware.RequireRoles(models.RoleAgency))
	agency.Get("/profile", profileHandler.GetRoleProfile)
	agency.Put("/profile", profileHandler.UpdateAgencyProfile)
	agency.Get("/employers", agencyHandler.ListEmployers)
	agency.Post("/jobs", jobHandler.CreateJob)
	agency.Get("/jobs", jobHandler.ListMyJobs)
	agency.Get("/submissions", agencyHandler.ListSubmissions)
	agency.Post("/submissions", agencyHandler.CreateSubmission)
	agency.Patch("/submissions/:id/status", agencyHandler.UpdateSubmissionStatus)

	// Government
	government := api.Group("/government", authRequired, middleware.RequireRoles(models.RoleGovernment))
	government.Get("/profile", profileHandler.GetRoleProfile)
	government.Put("/profile", profileHandler.UpdateGovernmentProfile)
	government.Get("/analytics", governmentHandler.Analytics)
	government.Get("/jobs/review-queue", governmentHandler.ReviewQueue)
	government.Patch("/jobs/:id/review", governmentHandler.ReviewJob)
	government.Get("/reports", governmentHandler.ListReports)
	government.Patch("/reports/:id", governmentHandler.UpdateReport)

	reports := api.Group("/reports", authRequired)
	reports.Post("/", complianceHandler.File)
	reports.Get("/mine", complianceHandler.Mine)

	// Support services
	support := api.Group("/support", authRequired)
	support.Get("/profile", middleware.RequireRoles(models.RoleSupportProvider), profileHandler.GetRoleProfile)
	support.Put("/profile", middleware.RequireRoles(models.RoleSupportProvider), profileHandler.UpdateSupportProfile)
	support.Post("/requests", supportHandler.CreateRequest)
	support.Get("/requests", supportHandler.ListRequests)
	support.Patch("/requests/:id/status", middleware.RequireRoles(models.RoleSupportProvider), supportHandler.UpdateRequestStatus)
	support.Get("/requests/:id/messages", supportHandler.ListMessages)
	support.Post("/requests/:id/messages", supportHandler.PostMessage)
}
