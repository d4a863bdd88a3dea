package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scrapesafe/scrapesafe-backend/pkg/db/models"
	"github.com/scrapesafe/scrapesafe-backend/pkg/logger"
)

type stubSweeper struct {
	removed int
	size    int
	sweeps  int
}

func (s *stubSweeper) Sweep() int {
	s.sweeps++
	return s.removed
}

func (s *stubSweeper) Len() int { return s.size }

func TestCacheSweepJobSweeps(t *testing.T) {
	sweeper := &stubSweeper{removed: 3, size: 7}
	job, err := NewCacheSweepJob(CacheSweepJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Cache:  sweeper,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.sweeps != 1 {
		t.Fatalf("expected exactly one sweep, got %d", sweeper.sweeps)
	}
}

type stubStaleLister struct {
	stale  []models.License
	cutoff time.Time
	err    error
}

func (s *stubStaleLister) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.License, error) {
	s.cutoff = cutoff
	return s.stale, s.err
}

type stubNonceCleaner struct {
	removed int64
	err     error
}

func (s *stubNonceCleaner) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.removed, s.err
}

func newAuditJob(t *testing.T, lister *stubStaleLister, cleaner *stubNonceCleaner) *pendingLicenseAuditJob {
	t.Helper()
	job, err := NewPendingLicenseAuditJob(PendingLicenseAuditJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Licenses: lister,
		Nonces:   cleaner,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	return job.(*pendingLicenseAuditJob)
}

func TestPendingLicenseAuditUsesAgeCutoff(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	lister := &stubStaleLister{stale: []models.License{{
		ID:           uuid.New(),
		BuyerAddress: "0xbuyer",
		CreatedAt:    now.Add(-time.Hour),
	}}}
	job := newAuditJob(t, lister, &stubNonceCleaner{removed: 2})
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := now.Add(-pendingAge); !lister.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, lister.cutoff)
	}
}

func TestPendingLicenseAuditCombinesPhaseFailures(t *testing.T) {
	listErr := errors.New("db down")
	cleanErr := errors.New("still down")
	job := newAuditJob(t, &stubStaleLister{err: listErr}, &stubNonceCleaner{err: cleanErr})

	err := job.Run(context.Background())
	if err == nil {
		t.Fatalf("expected combined error")
	}
	if !errors.Is(err, listErr) || !errors.Is(err, cleanErr) {
		t.Fatalf("expected both phase errors, got %v", err)
	}
}
