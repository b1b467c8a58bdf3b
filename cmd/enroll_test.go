package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCollectEnrollments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "12", "b.jpg"), []byte("x"))
	writeFile(t, filepath.Join(dir, "12", "a.jpg"), []byte("x"))
	writeFile(t, filepath.Join(dir, "3", "face.png"), []byte("x"))
	writeFile(t, filepath.Join(dir, "notes", "face.png"), []byte("x"))
	writeFile(t, filepath.Join(dir, "0", "face.png"), []byte("x"))
	writeFile(t, filepath.Join(dir, "README.txt"), []byte("x"))
	if err := os.MkdirAll(filepath.Join(dir, "7"), 0o755); err != nil {
		t.Fatal(err)
	}

	batches, err := collectEnrollments(dir)
	if err != nil {
		t.Fatalf("collectEnrollments failed: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %+v", batches)
	}
	if batches[0].EmployeeID != 3 || batches[1].EmployeeID != 12 {
		t.Errorf("expected batches ordered by employee ID, got %d and %d", batches[0].EmployeeID, batches[1].EmployeeID)
	}
	if len(batches[1].Files) != 2 || filepath.Base(batches[1].Files[0]) != "a.jpg" {
		t.Errorf("expected sorted files for employee 12, got %v", batches[1].Files)
	}
}

func TestCollectEnrollments_MissingDirectory(t *testing.T) {
	if _, err := collectEnrollments(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLoadEnrollImages_SkipsNonImages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	writeFile(t, path, []byte("not an image"))

	if _, err := loadEnrollImages([]string{path}); err == nil {
		t.Error("expected error when no images are found")
	}
}
