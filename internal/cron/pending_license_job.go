package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/scrapesafe/scrapesafe-backend/pkg/db/models"
	"github.com/scrapesafe/scrapesafe-backend/pkg/logger"
)

const (
	// A purchase finishes in seconds; a license still pending after this long
	// means the process died between the durability point and activation.
	pendingAge   = 15 * time.Minute
	pendingLimit = 100
)

type staleLicenseLister interface {
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.License, error)
}

type expiredNonceCleaner interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PendingLicenseAuditJobParams configures the audit job.
type PendingLicenseAuditJobParams struct {
	Logger   *logger.Logger
	Licenses staleLicenseLister
	Nonces   expiredNonceCleaner
}

type pendingLicenseAuditJob struct {
	logg     *logger.Logger
	licenses staleLicenseLister
	nonces   expiredNonceCleaner
	now      func() time.Time
}

// NewPendingLicenseAuditJob constructs the job that surfaces licenses stuck
// in pending and clears expired nonces. Stuck pending rows are deliberately
// never rolled back by the purchase path, so this job is the operator's view
// into them.
func NewPendingLicenseAuditJob(params PendingLicenseAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Licenses == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if params.Nonces == nil {
		return nil, fmt.Errorf("nonce repository required")
	}
	return &pendingLicenseAuditJob{
		logg:     params.Logger,
		licenses: params.Licenses,
		nonces:   params.Nonces,
		now:      time.Now,
	}, nil
}

func (j *pendingLicenseAuditJob) Name() string {
	return "pending-license-audit"
}

func (j *pendingLicenseAuditJob) Run(ctx context.Context) error {
	return multierr.Combine(
		j.auditPending(ctx),
		j.cleanNonces(ctx),
	)
}

func (j *pendingLicenseAuditJob) auditPending(ctx context.Context) error {
	cutoff := j.now().Add(-pendingAge)
	stale, err := j.licenses.FindStalePending(ctx, cutoff, pendingLimit)
	if err != nil {
		return fmt.Errorf("listing stale pending licenses: %w", err)
	}

	for _, license := range stale {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"license_id": license.ID.String(),
			"buyer":      license.BuyerAddress,
			"age":        j.now().Sub(license.CreatedAt).String(),
		})
		j.logg.Warn(logCtx, "license stuck in pending")
	}
	if len(stale) > 0 {
		logCtx := j.logg.WithField(ctx, "count", len(stale))
		j.logg.Warn(logCtx, "stale pending licenses found")
	}
	return nil
}

func (j *pendingLicenseAuditJob) cleanNonces(ctx context.Context) error {
	removed, err := j.nonces.DeleteExpired(ctx, j.now())
	if err != nil {
		return fmt.Errorf("deleting expired nonces: %w", err)
	}
	if removed > 0 {
		logCtx := j.logg.WithField(ctx, "removed", removed)
		j.logg.Info(logCtx, "expired nonces deleted")
	}
	return nil
}
