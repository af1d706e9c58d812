package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Filter statuses.
const (
	StatusPrivate = "private"
	StatusPublic  = "public"
)

// Filter is a named, saved filter configuration. Expression and Columns
// are stored opaquely; the service never interprets them.
type Filter struct {
	ID         int64           `json:"filter_id"`
	Name       string          `json:"filter_name"`
	Expression json.RawMessage `json:"filter_config"`
	Columns    json.RawMessage `json:"columns"`
	Grouping   []string        `json:"grouping"`
	Status     string          `json:"filter_status"`
	CreatedBy  string          `json:"created_by"`
	CreatedAt  time.Time       `json:"create_ts"`
	UpdatedAt  time.Time       `json:"last_update_ts"`
}

// CreateFilter inserts a new filter configuration. Returns ErrNameExists
// when the name is already taken.
func (d *DB) CreateFilter(f *Filter) (*Filter, error) {
	now := nowTS()
	grouping, _ := json.Marshal(f.Grouping)

	result, err := d.db.Exec(`
		INSERT INTO filter_config
			(filter_name, filter_config, columns, grouping, filter_status, created_by, create_ts, last_update_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Name, orEmptyArray(f.Expression), orEmptyArray(f.Columns), string(grouping),
		f.Status, f.CreatedBy, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("filter name %q: %w", f.Name, ErrNameExists)
		}
		return nil, fmt.Errorf("creating filter %q: %w", f.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating filter %q: %w", f.Name, err)
	}
	return d.GetFilter(id)
}

// GetFilter returns the filter with the given id, or ErrNotFound.
func (d *DB) GetFilter(id int64) (*Filter, error) {
	row := d.db.QueryRow(`
		SELECT filter_id, filter_name, filter_config, columns, grouping, filter_status, created_by, create_ts, last_update_ts
		FROM filter_config WHERE filter_id = ?`, id)

	f, err := scanFilter(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting filter %d: %w", id, err)
	}
	return f, nil
}

// ListFilters returns all filters visible to the given username: public
// filters plus the user's own private ones.
func (d *DB) ListFilters(username string) ([]*Filter, error) {
	rows, err := d.db.Query(`
		SELECT filter_id, filter_name, filter_config, columns, grouping, filter_status, created_by, create_ts, last_update_ts
		FROM filter_config
		WHERE filter_status != ? OR created_by = ?
		ORDER BY filter_id`,
		StatusPrivate, username)
	if err != nil {
		return nil, fmt.Errorf("listing filters: %w", err)
	}
	defer rows.Close()

	var filters []*Filter
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, fmt.Errorf("listing filters: %w", err)
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

// UpdateFilter replaces the mutable fields of an existing filter.
// Returns ErrNotFound when no filter has the given id.
func (d *DB) UpdateFilter(id int64, f *Filter) (*Filter, error) {
	grouping, _ := json.Marshal(f.Grouping)

	result, err := d.db.Exec(`
		UPDATE filter_config
		SET filter_name = ?, filter_config = ?, columns = ?, grouping = ?, filter_status = ?, last_update_ts = ?
		WHERE filter_id = ?`,
		f.Name, orEmptyArray(f.Expression), orEmptyArray(f.Columns), string(grouping),
		f.Status, nowTS(), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("filter name %q: %w", f.Name, ErrNameExists)
		}
		return nil, fmt.Errorf("updating filter %d: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return d.GetFilter(id)
}

// DeleteFilter removes the filter with the given id, or returns
// ErrNotFound.
func (d *DB) DeleteFilter(id int64) error {
	result, err := d.db.Exec(`DELETE FROM filter_config WHERE filter_id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting filter %d: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func orEmptyArray(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "[]"
	}
	return string(raw)
}

func scanFilter(row rowScanner) (*Filter, error) {
	var f Filter
	var expression, columns, grouping, createTS, updateTS string

	err := row.Scan(&f.ID, &f.Name, &expression, &columns, &grouping,
		&f.Status, &f.CreatedBy, &createTS, &updateTS)
	if err != nil {
		return nil, err
	}

	f.Expression = json.RawMessage(expression)
	f.Columns = json.RawMessage(columns)
	if err := json.Unmarshal([]byte(grouping), &f.Grouping); err != nil {
		return nil, fmt.Errorf("corrupt grouping for filter %q: %w", f.Name, err)
	}
	if f.CreatedAt, err = time.Parse(time.RFC3339Nano, createTS); err != nil {
		return nil, fmt.Errorf("corrupt create_ts for filter %q: %w", f.Name, err)
	}
	if f.UpdatedAt, err = time.Parse(time.RFC3339Nano, updateTS); err != nil {
		return nil, fmt.Errorf("corrupt last_update_ts for filter %q: %w", f.Name, err)
	}
	return &f, nil
}
