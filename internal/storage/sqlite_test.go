package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", "idx_notebooks_created").Scan(&count)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	if count != 1 {
		t.Error("index idx_notebooks_created not found in sqlite_master")
	}
}

func TestCreateAndGetNotebook(t *testing.T) {
	s := openTestStore(t)

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	want := Notebook{
		ID:         "nb-001",
		Name:       "Quarterly report",
		FileName:   "q1.pdf",
		CreatedAt:  created,
		ChunkCount: 14,
	}
	if err := s.CreateNotebook(want); err != nil {
		t.Fatalf("CreateNotebook: %v", err)
	}

	got, err := s.GetNotebook("nb-001")
	if err != nil {
		t.Fatalf("GetNotebook: %v", err)
	}
	if got.Name != want.Name {
		t.Errorf("Name = %q, want %q", got.Name, want.Name)
	}
	if got.FileName != want.FileName {
		t.Errorf("FileName = %q, want %q", got.FileName, want.FileName)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.SourcesCount != 1 {
		t.Errorf("SourcesCount = %d, want 1", got.SourcesCount)
	}
	if got.ChunkCount != 14 {
		t.Errorf("ChunkCount = %d, want 14", got.ChunkCount)
	}
}

func TestCreateNotebookDuplicateID(t *testing.T) {
	s := openTestStore(t)

	n := Notebook{ID: "dup", Name: "a"}
	if err := s.CreateNotebook(n); err != nil {
		t.Fatalf("CreateNotebook: %v", err)
	}
	if err := s.CreateNotebook(n); err == nil {
		t.Error("expected error inserting duplicate id")
	}
}

func TestGetNotebookNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetNotebook("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetNotebook(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListNotebooksNewestFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		n := Notebook{ID: id, Name: id, CreatedAt: base.Add(time.Duration(i) * time.Millisecond)}
		if err := s.CreateNotebook(n); err != nil {
			t.Fatalf("CreateNotebook(%s): %v", id, err)
		}
	}

	got, err := s.ListNotebooks()
	if err != nil {
		t.Fatalf("ListNotebooks: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"new", "mid", "old"} {
		if got[i].ID != want {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestListNotebooksEmpty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.ListNotebooks()
	if err != nil {
		t.Fatalf("ListNotebooks: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ListNotebooks() = %v, want empty non-nil slice", got)
	}
}

func TestDeleteNotebook(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateNotebook(Notebook{ID: "gone", Name: "x"}); err != nil {
		t.Fatalf("CreateNotebook: %v", err)
	}
	if err := s.DeleteNotebook("gone"); err != nil {
		t.Fatalf("DeleteNotebook: %v", err)
	}
	if _, err := s.GetNotebook("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetNotebook after delete = %v, want ErrNotFound", err)
	}
	if err := s.DeleteNotebook("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteNotebook = %v, want ErrNotFound", err)
	}
}

func TestNotebookIDs(t *testing.T) {
	s := openTestStore(t)

	for _, id := range []string{"a", "b"} {
		if err := s.CreateNotebook(Notebook{ID: id, Name: id}); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := s.NotebookIDs()
	if err != nil {
		t.Fatalf("NotebookIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("len = %d, want 2", len(ids))
	}
	if _, ok := ids["a"]; !ok {
		t.Error("id a missing")
	}
}
