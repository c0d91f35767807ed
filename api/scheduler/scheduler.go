// Package scheduler runs the periodic background jobs. Every job takes a
// distributed lock first so only one instance works at a time.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/fieldverify/field-verify-api/databases"
	"github.com/fieldverify/field-verify-api/mailer"
	"github.com/fieldverify/field-verify-api/models"
)

// Scheduler handles periodic background jobs for the verification workflow
type Scheduler struct {
	cron       *cron.Cron
	DB         databases.CaseDatabase
	LockDB     databases.SchedulerLockDatabase
	Relay      *mailer.Relay
	Recipient  string
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	db databases.CaseDatabase,
	lockDB databases.SchedulerLockDatabase,
	relay *mailer.Relay,
	recipient string,
) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		DB:         db,
		LockDB:     lockDB,
		Relay:      relay,
		Recipient:  recipient,
		instanceID: instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Retry approvals whose report email never got through, every 5 minutes
	_, err := s.cron.AddFunc("*/5 * * * *", s.retryPendingFinalizations)
	if err != nil {
		zap.S().Errorw("failed to register finalize retry job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Verification scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Verification scheduler stopped")
}

// retryPendingFinalizations finds approvals stuck between the email send and
// the status flip and drives them to completion. An approval is only marked
// completed after the relay accepts the report email.
func (s *Scheduler) retryPendingFinalizations() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Try to acquire distributed lock (10 minute TTL)
	acquired, err := s.LockDB.TryAcquireLock(ctx, "finalize_retry_job", s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for finalize retry job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Finalize retry job already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "finalize_retry_job", s.instanceID)

	// Give a live approval request a head start before retrying.
	cutoff := time.Now().Add(-2 * time.Minute)
	stuck, err := s.DB.Find(ctx, bson.M{
		"status":          models.StatusAudit,
		"pendingFinalize": true,
	})
	if err != nil {
		zap.S().Errorw("failed to find cases pending finalize", "error", err)
		return
	}

	retried, completed := 0, 0
	for _, caseRecord := range stuck {
		if caseRecord.CompletedAt.Time().After(cutoff) {
			continue
		}
		retried++
		if s.finalize(ctx, caseRecord) {
			completed++
		}
	}

	if retried > 0 {
		zap.S().Infow("Finalize retry pass complete",
			"instance", s.instanceID,
			"retried", retried,
			"completed", completed,
		)
	}
}

// finalize re-sends the report email and flips the case to completed. The
// update is revision-guarded so a concurrent admin action wins.
func (s *Scheduler) finalize(ctx context.Context, caseRecord models.Case) bool {
	if err := s.Relay.Send(mailer.BuildFinalizeMessage(caseRecord, s.Recipient)); err != nil {
		zap.S().Warnw("finalize retry email failed",
			"caseID", caseRecord.ID.Hex(),
			"error", err,
		)
		return false
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	matched, err := s.DB.UpdateOne(ctx,
		bson.M{"_id": caseRecord.ID, "rev": caseRecord.Rev},
		bson.M{
			"$set": bson.M{
				"status":          models.StatusCompleted,
				"finalizedAt":     now,
				"pendingFinalize": false,
			},
			"$unset": bson.M{"filledForm": ""},
			"$inc":   bson.M{"rev": 1},
		},
	)
	if err != nil {
		zap.S().Errorw("failed to persist retried finalization",
			"caseID", caseRecord.ID.Hex(),
			"error", err,
		)
		return false
	}
	if matched == 0 {
		// Someone touched the case since we loaded it; next pass reloads.
		zap.S().Debugw("finalize retry lost the revision race", "caseID", caseRecord.ID.Hex())
		return false
	}
	return true
}
