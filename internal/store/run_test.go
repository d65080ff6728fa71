package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRunRepository_StartFinish(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()

	run, err := repo.Start("yuv", "soft", 640, 480)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := uuid.Parse(run.ID); err != nil {
		t.Errorf("run ID %q is not a UUID: %v", run.ID, err)
	}

	got, err := repo.GetByID(run.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.StoppedAt != nil {
		t.Error("StoppedAt set before Finish")
	}
	if got.Input != "yuv" || got.Backend != "soft" || got.Width != 640 || got.Height != 480 {
		t.Errorf("GetByID() = %+v", got)
	}

	counts := RunCounts{Converted: 100, Skipped: 2, Failed: 1, Detected: 95, Pinches: 4}
	if err := repo.Finish(run.ID, counts); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err = repo.GetByID(run.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.StoppedAt == nil {
		t.Fatal("StoppedAt not set after Finish")
	}
	if got.StoppedAt.Before(got.StartedAt) {
		t.Errorf("StoppedAt %v before StartedAt %v", got.StoppedAt, got.StartedAt)
	}
	if got.Counts != counts {
		t.Errorf("Counts = %+v, want %+v", got.Counts, counts)
	}
}

func TestRunRepository_Input(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Runs().Start("hdmi", "soft", 640, 480); err == nil {
		t.Error("Start() accepted an unknown input")
	}
}

func TestRunRepository_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Runs().GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
	if err := s.Runs().Finish("missing", RunCounts{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Finish() error = %v, want ErrNotFound", err)
	}
}

func TestRunRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()

	var ids []string
	for _, input := range []string{"yuv", "texture", "yuv"} {
		run, err := repo.Start(input, "gl", 640, 480)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, run.ID)
		time.Sleep(2 * time.Millisecond)
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List(0) returned %d runs, want 3", len(all))
	}
	if all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Error("List() not ordered newest first")
	}

	recent, err := repo.List(2)
	if err != nil || len(recent) != 2 {
		t.Errorf("List(2) = %d runs, %v", len(recent), err)
	}
}
