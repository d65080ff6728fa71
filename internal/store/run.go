package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Run is one capture session from start to stop.
type Run struct {
	ID        string     `json:"id"`
	Input     string     `json:"input"`
	Backend   string     `json:"backend"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Counts    RunCounts  `json:"counts"`
}

// RunCounts are the frame counters recorded when a run stops.
type RunCounts struct {
	Converted uint64 `json:"converted"`
	Skipped   uint64 `json:"skipped"`
	Failed    uint64 `json:"failed"`
	Detected  uint64 `json:"detected"`
	Pinches   uint64 `json:"pinches"`
}

// RunRepository records capture sessions.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Start inserts a new run with a fresh ID and returns it.
func (r *RunRepository) Start(input, backend string, width, height int) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Input:     input,
		Backend:   backend,
		Width:     width,
		Height:    height,
		StartedAt: time.Now().UTC(),
	}
	_, err := r.db.Exec(
		`INSERT INTO runs (id, input, backend, width, height, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Input, run.Backend, run.Width, run.Height, run.StartedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Finish records the stop time and counters of run id.
func (r *RunRepository) Finish(id string, counts RunCounts) error {
	result, err := r.db.Exec(
		`UPDATE runs SET stopped_at = ?, converted = ?, skipped = ?, failed = ?, detected = ?, pinches = ?
		 WHERE id = ?`,
		time.Now().UTC(), counts.Converted, counts.Skipped, counts.Failed, counts.Detected, counts.Pinches, id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

const runColumns = `id, input, backend, width, height, started_at, stopped_at, converted, skipped, failed, detected, pinches`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	run := &Run{}
	var stopped sql.NullTime
	err := sc.Scan(&run.ID, &run.Input, &run.Backend, &run.Width, &run.Height, &run.StartedAt, &stopped,
		&run.Counts.Converted, &run.Counts.Skipped, &run.Counts.Failed, &run.Counts.Detected, &run.Counts.Pinches)
	if err != nil {
		return nil, err
	}
	if stopped.Valid {
		t := stopped.Time
		run.StoppedAt = &t
	}
	return run, nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs, newest first. limit <= 0 returns all.
func (r *RunRepository) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
