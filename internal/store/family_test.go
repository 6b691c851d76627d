package store

import (
	"strings"
	"testing"

	"famly/internal/database"
)

func setupFamilyTestDB(t *testing.T) *FamilyStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewFamilyStore(db)
}

func TestFamilyCreate(t *testing.T) {
	fs := setupFamilyTestDB(t)

	f, err := fs.Create("The Parkers")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	if f.ID == "" {
		t.Error("expected non-empty ID")
	}
	if f.Name != "The Parkers" {
		t.Errorf("name = %q, want %q", f.Name, "The Parkers")
	}
	if len(f.JoinCode) != joinCodeLength {
		t.Errorf("join code length = %d, want %d", len(f.JoinCode), joinCodeLength)
	}
	for _, c := range f.JoinCode {
		if !strings.ContainsRune(joinCodeAlphabet, c) {
			t.Errorf("join code %q contains %q outside the alphabet", f.JoinCode, c)
		}
	}
}

func TestFamilyGetByJoinCode(t *testing.T) {
	fs := setupFamilyTestDB(t)

	f, err := fs.Create("The Parkers")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}

	got, err := fs.GetByJoinCode(f.JoinCode)
	if err != nil {
		t.Fatalf("get by join code: %v", err)
	}
	if got == nil || got.ID != f.ID {
		t.Fatalf("got %+v, want family %s", got, f.ID)
	}

	missing, err := fs.GetByJoinCode("NOPE99")
	if err != nil {
		t.Fatalf("get by unknown join code: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown join code, got %+v", missing)
	}
}

func TestFamilyRename(t *testing.T) {
	fs := setupFamilyTestDB(t)

	f, _ := fs.Create("The Parkers")
	got, err := fs.Rename(f.ID, "Parker HQ")
	if err != nil {
		t.Fatalf("rename family: %v", err)
	}
	if got.Name != "Parker HQ" {
		t.Errorf("name = %q, want %q", got.Name, "Parker HQ")
	}
	if got.JoinCode != f.JoinCode {
		t.Errorf("rename changed join code from %q to %q", f.JoinCode, got.JoinCode)
	}
}
