package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("copy: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content = %q", got)
	}
}

func TestWriteFileAtomicCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "artifact.json")
	if err := WriteFileAtomic(path, []byte(`{"ok":true}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !NonEmptyFile(path) {
		t.Fatal("expected non-empty file")
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp file left behind: %d entries", len(entries))
	}
}

func TestBackupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.json")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteBackup(path); err != nil {
		t.Fatalf("backup: %v", err)
	}
	if err := os.WriteFile(path, []byte("corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}
	restored, err := RestoreBackup(path)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !restored {
		t.Fatal("expected restore")
	}
	got, _ := os.ReadFile(path)
	if string(got) != "v1" {
		t.Fatalf("restored content = %q", got)
	}
}

func TestRestoreBackupWithoutBackup(t *testing.T) {
	restored, err := RestoreBackup(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatal(err)
	}
	if restored {
		t.Fatal("nothing should be restored")
	}
}

func TestWriteBackupMissingSourceIsNoop(t *testing.T) {
	if err := WriteBackup(filepath.Join(t.TempDir(), "missing.json")); err != nil {
		t.Fatalf("expected noop, got %v", err)
	}
}

func TestNonEmptyDir(t *testing.T) {
	dir := t.TempDir()
	if NonEmptyDir(dir) {
		t.Fatal("fresh dir should be empty")
	}
	if err := os.WriteFile(filepath.Join(dir, "x"), []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !NonEmptyDir(dir) {
		t.Fatal("dir should be non-empty")
	}
}
