package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Label is a dictionary record: a label name and the ordered set of
// values observed for it. Values never contain duplicates; insertion
// order is preserved.
type Label struct {
	ID        int64     `json:"label_id"`
	Name      string    `json:"label_name"`
	Values    []string  `json:"label_values"`
	CreatedAt time.Time `json:"create_ts"`
	UpdatedAt time.Time `json:"last_update_ts"`
}

// MergeResult describes the outcome of a MergeLabelValue call.
type MergeResult struct {
	// Created is true if a new label record was inserted.
	Created bool
	// Appended is true if the value was appended to an existing record.
	// Both false means the value was already present (no-op).
	Appended bool
}

// MergeLabelValue folds a single observed value into the label's value
// set as one atomic read-check-write transaction:
//
//   - label absent: create it with values = [value].
//   - label present, value present: no-op (no write, no timestamp change).
//   - label present, value absent: append and refresh last_update_ts.
//
// The operation is idempotent. If the insert loses a creation race
// against a concurrent writer, the unique index rejects it and the merge
// is retried as an append; the conflict never surfaces to the caller.
func (d *DB) MergeLabelValue(name, value string) (MergeResult, error) {
	res, err := d.mergeOnce(name, value)
	if err != nil && isUniqueViolation(err) {
		return d.mergeOnce(name, value)
	}
	return res, err
}

func (d *DB) mergeOnce(name, value string) (MergeResult, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return MergeResult{}, fmt.Errorf("beginning merge transaction: %w", err)
	}
	defer tx.Rollback()

	var valuesJSON string
	err = tx.QueryRow(`SELECT label_values FROM filter_labels WHERE label_name = ?`, name).Scan(&valuesJSON)
	if err == sql.ErrNoRows {
		now := nowTS()
		data, _ := json.Marshal([]string{value})
		if _, err := tx.Exec(`
			INSERT INTO filter_labels (label_name, label_values, create_ts, last_update_ts)
			VALUES (?, ?, ?, ?)`,
			name, string(data), now, now,
		); err != nil {
			return MergeResult{}, fmt.Errorf("inserting label %q: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return MergeResult{}, fmt.Errorf("committing label %q: %w", name, err)
		}
		return MergeResult{Created: true}, nil
	}
	if err != nil {
		return MergeResult{}, fmt.Errorf("looking up label %q: %w", name, err)
	}

	var values []string
	if err := json.Unmarshal([]byte(valuesJSON), &values); err != nil {
		return MergeResult{}, fmt.Errorf("corrupt values for label %q: %w", name, err)
	}

	if slices.Contains(values, value) {
		// Value already known: no write, last_update_ts stays untouched.
		return MergeResult{}, nil
	}

	values = append(values, value)
	data, _ := json.Marshal(values)
	if _, err := tx.Exec(`
		UPDATE filter_labels SET label_values = ?, last_update_ts = ? WHERE label_name = ?`,
		string(data), nowTS(), name,
	); err != nil {
		return MergeResult{}, fmt.Errorf("appending value to label %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return MergeResult{}, fmt.Errorf("committing label %q: %w", name, err)
	}
	return MergeResult{Appended: true}, nil
}

// CreateLabel inserts a new label record. Duplicate input values are
// dropped, first occurrence wins. Returns ErrNameExists when the name
// is already taken.
func (d *DB) CreateLabel(name string, values []string) (*Label, error) {
	now := nowTS()
	data, _ := json.Marshal(dedupe(values))

	result, err := d.db.Exec(`
		INSERT INTO filter_labels (label_name, label_values, create_ts, last_update_ts)
		VALUES (?, ?, ?, ?)`,
		name, string(data), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("label name %q: %w", name, ErrNameExists)
		}
		return nil, fmt.Errorf("creating label %q: %w", name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating label %q: %w", name, err)
	}
	return d.GetLabel(id)
}

// GetLabel returns the label with the given id, or ErrNotFound.
func (d *DB) GetLabel(id int64) (*Label, error) {
	row := d.db.QueryRow(`
		SELECT label_id, label_name, label_values, create_ts, last_update_ts
		FROM filter_labels WHERE label_id = ?`, id)

	label, err := scanLabel(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting label %d: %w", id, err)
	}
	return label, nil
}

// GetLabelByName returns the label with the given name, or ErrNotFound.
func (d *DB) GetLabelByName(name string) (*Label, error) {
	row := d.db.QueryRow(`
		SELECT label_id, label_name, label_values, create_ts, last_update_ts
		FROM filter_labels WHERE label_name = ?`, name)

	label, err := scanLabel(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting label %q: %w", name, err)
	}
	return label, nil
}

// ListLabels returns all label records ordered by id.
func (d *DB) ListLabels() ([]*Label, error) {
	rows, err := d.db.Query(`
		SELECT label_id, label_name, label_values, create_ts, last_update_ts
		FROM filter_labels ORDER BY label_id`)
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	defer rows.Close()

	var labels []*Label
	for rows.Next() {
		label, err := scanLabel(rows)
		if err != nil {
			return nil, fmt.Errorf("listing labels: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// UpdateLabelValues replaces the label's value set. This is the only
// path that can shrink or reorder values; the consumer only appends.
// Returns ErrNotFound when no label has the given id.
func (d *DB) UpdateLabelValues(id int64, values []string) (*Label, error) {
	data, _ := json.Marshal(dedupe(values))

	result, err := d.db.Exec(`
		UPDATE filter_labels SET label_values = ?, last_update_ts = ? WHERE label_id = ?`,
		string(data), nowTS(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating label %d: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return d.GetLabel(id)
}

// DeleteLabel removes the label with the given id, or returns
// ErrNotFound.
func (d *DB) DeleteLabel(id int64) error {
	result, err := d.db.Exec(`DELETE FROM filter_labels WHERE label_id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting label %d: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLabel(row rowScanner) (*Label, error) {
	var label Label
	var valuesJSON, createTS, updateTS string

	if err := row.Scan(&label.ID, &label.Name, &valuesJSON, &createTS, &updateTS); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(valuesJSON), &label.Values); err != nil {
		return nil, fmt.Errorf("corrupt values for label %q: %w", label.Name, err)
	}
	var err error
	if label.CreatedAt, err = time.Parse(time.RFC3339Nano, createTS); err != nil {
		return nil, fmt.Errorf("corrupt create_ts for label %q: %w", label.Name, err)
	}
	if label.UpdatedAt, err = time.Parse(time.RFC3339Nano, updateTS); err != nil {
		return nil, fmt.Errorf("corrupt last_update_ts for label %q: %w", label.Name, err)
	}
	return &label, nil
}

// dedupe drops duplicate entries, preserving first occurrence order.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func nowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
