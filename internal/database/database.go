package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/domestyx/internal/models"
)

// Connect ensures the database exists, opens a gorm connection and runs migrations.
func Connect(dsn string, debug bool, log *zap.Logger) (*gorm.DB, error) {
	if err := ensureDatabase(dsn); err != nil {
		return nil, fmt.Errorf("ensure database: %w", err)
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := conn.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Warn("failed to ensure uuid-ossp extension", zap.Error(err))
	}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("database ready")
	return conn, nil
}

// Migrate creates or updates every table.
func Migrate(conn *gorm.DB) error {
	migrations := []interface{}{
		&models.User{},
		&models.WorkerProfile{},
		&models.EmployerProfile{},
		&models.AgencyProfile{},
		&models.GovernmentProfile{},
		&models.SupportProviderProfile{},
		&models.OTPRecord{},
		&models.Job{},
		&models.Application{},
		&models.SavedJob{},
		&models.JobOffer{},
		&models.ShortlistedWorker{},
		&models.WorkerReview{},
		&models.ChatThread{},
		&models.ChatMessage{},
		&models.CallSession{},
		&models.ComplianceReport{},
		&models.AgencyWorkerSubmission{},
		&models.SupportServiceRequest{},
		&models.SupportServiceMessage{},
	}

	for _, migration := range migrations {
		if err := conn.AutoMigrate(migration); err != nil {
			return err
		}
	}

	for _, stmt := range joblessUniqueIndexes {
		if err := conn.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}

// NULL job ids never collide in the composite unique indexes, so rows without
// a job get their own partial indexes.
var joblessUniqueIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_shortlist_jobless ON shortlisted_workers (employer_id, worker_id) WHERE job_id IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_review_jobless ON worker_reviews (reviewer_id, worker_id) WHERE job_id IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_thread_jobless ON chat_threads (employer_id, worker_id) WHERE job_id IS NULL`,
}

func ensureDatabase(dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return err
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return nil
	}

	parsed.Path = "/postgres"
	masterDSN := parsed.String()

	sqlDB, err := sql.Open("postgres", masterDSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}

	if exists {
		return nil
	}

	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}
