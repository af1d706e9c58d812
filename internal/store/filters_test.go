package store

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func makeFilter(name, status, createdBy string) *Filter {
	return &Filter{
		Name:       name,
		Expression: json.RawMessage(`[{"tag":"dc_name","condition":"equal","value":"FA0"}]`),
		Columns:    json.RawMessage(`[{"name":"notificationName","id_":"name","width":242}]`),
		Grouping:   []string{"alert_name"},
		Status:     status,
		CreatedBy:  createdBy,
	}
}

func TestCreateAndGetFilter(t *testing.T) {
	db := testDB(t)

	created, err := db.CreateFilter(makeFilter("My Filter", StatusPublic, "alice"))
	if err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}
	if created.ID == 0 {
		t.Error("expected non-zero id")
	}

	got, err := db.GetFilter(created.ID)
	if err != nil {
		t.Fatalf("GetFilter: %v", err)
	}
	if got.Name != "My Filter" {
		t.Errorf("Name = %q", got.Name)
	}
	if got.Status != StatusPublic {
		t.Errorf("Status = %q", got.Status)
	}
	if got.CreatedBy != "alice" {
		t.Errorf("CreatedBy = %q", got.CreatedBy)
	}
	if len(got.Grouping) != 1 || got.Grouping[0] != "alert_name" {
		t.Errorf("Grouping = %v", got.Grouping)
	}

	var clauses []map[string]string
	if err := json.Unmarshal(got.Expression, &clauses); err != nil {
		t.Fatalf("Expression is not valid JSON: %v", err)
	}
	if len(clauses) != 1 || clauses[0]["tag"] != "dc_name" {
		t.Errorf("Expression = %s", got.Expression)
	}
}

func TestCreateFilterDuplicateName(t *testing.T) {
	db := testDB(t)

	if _, err := db.CreateFilter(makeFilter("dup", StatusPublic, "alice")); err != nil {
		t.Fatal(err)
	}
	_, err := db.CreateFilter(makeFilter("dup", StatusPublic, "bob"))
	if !errors.Is(err, ErrNameExists) {
		t.Fatalf("error = %v, want ErrNameExists", err)
	}
}

func TestCreateFilterEmptyBodies(t *testing.T) {
	db := testDB(t)

	created, err := db.CreateFilter(&Filter{Name: "bare", Status: StatusPublic, CreatedBy: "alice"})
	if err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}
	if string(created.Expression) != "[]" {
		t.Errorf("Expression = %s, want []", created.Expression)
	}
	if string(created.Columns) != "[]" {
		t.Errorf("Columns = %s, want []", created.Columns)
	}
}

func TestListFiltersVisibility(t *testing.T) {
	db := testDB(t)

	filters := []*Filter{
		makeFilter("alice public", StatusPublic, "alice"),
		makeFilter("alice private", StatusPrivate, "alice"),
		makeFilter("bob private", StatusPrivate, "bob"),
	}
	for _, f := range filters {
		if _, err := db.CreateFilter(f); err != nil {
			t.Fatal(err)
		}
	}

	visible, err := db.ListFilters("alice")
	if err != nil {
		t.Fatalf("ListFilters: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("alice sees %d filters, want 2", len(visible))
	}
	for _, f := range visible {
		if f.Status == StatusPrivate && f.CreatedBy != "alice" {
			t.Errorf("alice can see %q owned by %q", f.Name, f.CreatedBy)
		}
	}
}

func TestUpdateFilter(t *testing.T) {
	db := testDB(t)

	created, err := db.CreateFilter(makeFilter("My Filter", StatusPrivate, "alice"))
	if err != nil {
		t.Fatal(err)
	}

	updated, err := db.UpdateFilter(created.ID, &Filter{
		Name:       "Renamed",
		Expression: json.RawMessage(`[]`),
		Columns:    json.RawMessage(`[]`),
		Grouping:   []string{"source"},
		Status:     StatusPublic,
	})
	if err != nil {
		t.Fatalf("UpdateFilter: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Errorf("Name = %q", updated.Name)
	}
	if updated.Status != StatusPublic {
		t.Errorf("Status = %q", updated.Status)
	}
	if updated.CreatedBy != "alice" {
		t.Errorf("CreatedBy = %q, should be immutable", updated.CreatedBy)
	}

	if _, err := db.UpdateFilter(9999, makeFilter("x", StatusPublic, "a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestDeleteFilter(t *testing.T) {
	db := testDB(t)

	created, err := db.CreateFilter(makeFilter("My Filter", StatusPublic, "alice"))
	if err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteFilter(created.ID); err != nil {
		t.Fatalf("DeleteFilter: %v", err)
	}
	if err := db.DeleteFilter(created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestGetFilterCorruptTimestamp(t *testing.T) {
	db := testDB(t)

	_, err := db.db.Exec(
		`INSERT INTO filter_config
		 (filter_name, filter_config, columns, grouping, filter_status, created_by, create_ts, last_update_ts)
		 VALUES ('mangled', '[]', '[]', '[]', 'public', 'alice', ?, 'not-a-time')`, nowTS())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.GetFilter(1); err == nil {
		t.Fatal("expected error for unparseable last_update_ts, got nil")
	} else if !strings.Contains(err.Error(), "last_update_ts") {
		t.Errorf("error = %v, want mention of last_update_ts", err)
	}
}
