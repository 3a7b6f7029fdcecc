package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/warebase/warehouse-backend/pkg/logger"
)

type fakeRunner struct{}

func (fakeRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeRetentionRepo struct {
	gotCutoff      time.Time
	gotMinAttempts int
	deleted        int64
	err            error
}

func (f *fakeRetentionRepo) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	f.gotCutoff = cutoff
	f.gotMinAttempts = minAttemptCount
	return f.deleted, f.err
}

func TestOutboxRetentionJobUsesConfiguredWindow(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	repo := &fakeRetentionRepo{deleted: 4}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logg,
		DB:          fakeRunner{},
		Repository:  repo,
		Retention:   7,
		MinAttempts: 3,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	frozen := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	job.(*outboxRetentionJob).now = func() time.Time { return frozen }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run job: %v", err)
	}
	wantCutoff := frozen.Add(-7 * 24 * time.Hour)
	if !repo.gotCutoff.Equal(wantCutoff) {
		t.Fatalf("expected cutoff %v, got %v", wantCutoff, repo.gotCutoff)
	}
	if repo.gotMinAttempts != 3 {
		t.Fatalf("expected min attempts 3, got %d", repo.gotMinAttempts)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logg,
		DB:         fakeRunner{},
		Repository: &fakeRetentionRepo{err: errors.New("boom")},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
