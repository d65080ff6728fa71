package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ayusman/mudra/internal/detector"
)

// Template is a stored reference pose for the landmark classifier.
type Template struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Tolerance float64            `json:"tolerance"`
	Landmarks []detector.Point3D `json:"landmarks"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// TemplateRepository provides CRUD operations for templates.
type TemplateRepository struct {
	db *sql.DB
}

// Templates returns the template repository for this store.
func (s *Store) Templates() *TemplateRepository {
	return &TemplateRepository{db: s.db}
}

// Create inserts a new template and its landmarks.
func (r *TemplateRepository) Create(t *Template) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO templates (id, name, tolerance, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Tolerance, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if err := insertLandmarks(tx, t.ID, t.Landmarks); err != nil {
		return err
	}
	return tx.Commit()
}

func insertLandmarks(tx *sql.Tx, id string, points []detector.Point3D) error {
	if _, err := tx.Exec(`DELETE FROM template_landmarks WHERE template_id = ?`, id); err != nil {
		return err
	}
	for i, p := range points {
		_, err := tx.Exec(
			`INSERT INTO template_landmarks (template_id, landmark_index, x, y, z) VALUES (?, ?, ?, ?, ?)`,
			id, i, p.X, p.Y, p.Z,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *TemplateRepository) landmarks(id string) ([]detector.Point3D, error) {
	rows, err := r.db.Query(
		`SELECT x, y, z FROM template_landmarks WHERE template_id = ? ORDER BY landmark_index`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []detector.Point3D
	for rows.Next() {
		var p detector.Point3D
		if err := rows.Scan(&p.X, &p.Y, &p.Z); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (r *TemplateRepository) get(query string, arg any) (*Template, error) {
	t := &Template{}
	err := r.db.QueryRow(query, arg).Scan(&t.ID, &t.Name, &t.Tolerance, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if t.Landmarks, err = r.landmarks(t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

// GetByID retrieves a template by its ID.
func (r *TemplateRepository) GetByID(id string) (*Template, error) {
	return r.get(`SELECT id, name, tolerance, created_at, updated_at FROM templates WHERE id = ?`, id)
}

// GetByName retrieves a template by its name.
func (r *TemplateRepository) GetByName(name string) (*Template, error) {
	return r.get(`SELECT id, name, tolerance, created_at, updated_at FROM templates WHERE name = ?`, name)
}

// List retrieves all templates with their landmarks, oldest first.
func (r *TemplateRepository) List() ([]*Template, error) {
	rows, err := r.db.Query(
		`SELECT id, name, tolerance, created_at, updated_at FROM templates ORDER BY created_at, name`,
	)
	if err != nil {
		return nil, err
	}

	var templates []*Template
	for rows.Next() {
		t := &Template{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Tolerance, &t.CreatedAt, &t.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		templates = append(templates, t)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// The store runs on a single connection, so landmarks are read after the
	// outer cursor is closed.
	for _, t := range templates {
		if t.Landmarks, err = r.landmarks(t.ID); err != nil {
			return nil, err
		}
	}
	return templates, nil
}

// Update replaces a template's name, tolerance and landmarks.
func (r *TemplateRepository) Update(t *Template) error {
	t.UpdatedAt = time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE templates SET name = ?, tolerance = ?, updated_at = ? WHERE id = ?`,
		t.Name, t.Tolerance, t.UpdatedAt, t.ID,
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

	if err := insertLandmarks(tx, t.ID, t.Landmarks); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a template from the database by its ID.
func (r *TemplateRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM templates WHERE id = ?`, id)
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
