package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestRegisterTaskRejectsDuplicateID(t *testing.T) {
	s, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	cfg := TaskConfig{
		ID:   "job",
		Name: "Job",
		Cron: "*/5 * * * *",
		Func: func(ctx context.Context) error { return nil },
	}
	if err := s.RegisterTask(cfg); err != nil {
		t.Fatalf("RegisterTask returned error: %v", err)
	}
	if err := s.RegisterTask(cfg); err == nil {
		t.Fatal("duplicate task ID registered without error")
	}
}

func TestRunNowUnknownTask(t *testing.T) {
	s, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := s.RunNow("missing"); err == nil {
		t.Fatal("RunNow invented a task")
	}
}

func TestRunNowRejectsRunningTask(t *testing.T) {
	s, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	var startedOnce sync.Once

	err = s.RegisterTask(TaskConfig{
		ID:   "job",
		Name: "Job",
		Cron: "*/5 * * * *",
		Func: func(ctx context.Context) error {
			startedOnce.Do(func() { close(started) })
			<-release
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask returned error: %v", err)
	}

	go func() {
		s.executeTask("job")
		close(done)
	}()
	<-started

	if err := s.RunNow("job"); err == nil {
		t.Error("RunNow accepted a task that is already running")
	}

	close(release)
	<-done

	if err := s.RunNow("job"); err != nil {
		t.Errorf("RunNow rejected an idle task: %v", err)
	}
}
