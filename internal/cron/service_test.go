package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/sibusisodube/canopay-backend/pkg/logger"
)

type memoryLock struct {
	held     bool
	acquires int
	releases int
}

func (l *memoryLock) Acquire(context.Context) (bool, error) {
	l.acquires++
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *memoryLock) Release(context.Context) error {
	l.releases++
	l.held = false
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func newCronService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRunCycleContinuesPastJobFailure(t *testing.T) {
	failing := &countingJob{name: "reconciliation", err: errors.New("mismatch")}
	trailing := &countingJob{name: "retention"}
	lock := &memoryLock{}
	svc := newCronService(t, lock, failing, trailing)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if failing.runs != 1 || trailing.runs != 1 {
		t.Fatalf("every job must run once, got %d and %d", failing.runs, trailing.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("lock must be released after the cycle, got %d releases", lock.releases)
	}
}

func TestRunCycleSkipsWhenLockIsHeld(t *testing.T) {
	job := &countingJob{name: "retention"}
	lock := &memoryLock{held: true}
	svc := newCronService(t, lock, job)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("jobs must not run without the lock, ran %d times", job.runs)
	}
	if lock.releases != 0 {
		t.Fatal("a cycle that never held the lock must not release it")
	}
}
