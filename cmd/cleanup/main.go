// Command cleanup permanently deletes accounts that have been deactivated for
// longer than the retention period.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/example/domestyx/internal/config"
	"github.com/example/domestyx/internal/database"
	applog "github.com/example/domestyx/internal/logger"
	"github.com/example/domestyx/internal/storage"
)

func main() {
	days := flag.Int("days", 365, "delete accounts deactivated more than this many days ago")
	dryRun := flag.Bool("dry-run", false, "only report how many accounts would be deleted")
	flag.Parse()

	cfg := config.Load()
	log := applog.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	if *days < 0 {
		log.Error("--days must not be negative", zap.Int("days", *days))
		os.Exit(2)
	}

	db, err := database.Connect(cfg.DatabaseURL, false, log)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	store := storage.NewDatabaseStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -*days)
	ids, err := store.DeactivatedBefore(ctx, cutoff)
	if err != nil {
		log.Fatal("listing deactivated accounts failed", zap.Error(err))
	}

	if *dryRun {
		log.Info("dry run", zap.Int("accounts", len(ids)), zap.Time("cutoff", cutoff))
		return
	}

	deleted, err := store.DeleteUsers(ctx, ids)
	if err != nil {
		log.Fatal("deleting accounts failed", zap.Error(err))
	}
	log.Info("deleted deactivated accounts", zap.Int64("accounts", deleted), zap.Time("cutoff", cutoff))
}
