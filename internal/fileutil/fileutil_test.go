package fileutil_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediafold/internal/fileutil"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerifiedRefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fileutil.CopyFileVerified(src, dst); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "old" {
		t.Fatalf("destination overwritten: %q", got)
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := fileutil.CopyFileVerified(filepath.Join(dir, "nonexistent"), filepath.Join(dir, "dst.bin")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestMoveNoReplace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	dst := filepath.Join(dir, "b.jpg")
	if err := os.WriteFile(src, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fileutil.MoveNoReplace(src, dst); err != nil {
		t.Fatalf("MoveNoReplace: %v", err)
	}
	if ok, _ := fileutil.Exists(src); ok {
		t.Fatal("expected source removed")
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "a" {
		t.Fatalf("unexpected destination content %q: %v", got, err)
	}
}

func TestMoveNoReplaceKeepsExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	dst := filepath.Join(dir, "b.jpg")
	if err := os.WriteFile(src, []byte("mover"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("resident"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := fileutil.MoveNoReplace(src, dst)
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "resident" {
		t.Fatalf("destination overwritten: %q", got)
	}
	if ok, _ := fileutil.Exists(src); !ok {
		t.Fatal("expected source left in place")
	}
}

func TestIsDirEmptyRecursive(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755); err != nil {
		t.Fatal(err)
	}
	empty, err := fileutil.IsDirEmptyRecursive(dir)
	if err != nil || !empty {
		t.Fatalf("expected nested empty dirs to count as empty: %v %v", empty, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a", "b", "f"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty, err = fileutil.IsDirEmptyRecursive(dir)
	if err != nil || empty {
		t.Fatalf("expected non-empty: %v %v", empty, err)
	}
}

func TestWithinRoot(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "post", "travel")
	if err := os.MkdirAll(inside, 0o755); err != nil {
		t.Fatal(err)
	}
	outside := t.TempDir()
	link := filepath.Join(root, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		target string
		want   bool
	}{
		{inside, true},
		{filepath.Join(root, "missing", "deeper"), true},
		{root, false},
		{filepath.Join(root, ".."), false},
		{filepath.Join(inside, "..", "..", ".."), false},
		{link, false},
		{filepath.Join(link, "x"), false},
		{outside, false},
	}
	for _, tc := range tests {
		got, err := fileutil.WithinRoot(root, tc.target)
		if err != nil {
			t.Fatalf("WithinRoot(%q): %v", tc.target, err)
		}
		if got != tc.want {
			t.Fatalf("WithinRoot(%q) = %v, want %v", tc.target, got, tc.want)
		}
	}
}

func TestWriteNewEnforcesLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	if _, err := fileutil.WriteNew(path, strings.NewReader("0123456789"), 4); !errors.Is(err, fileutil.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if ok, _ := fileutil.Exists(path); ok {
		t.Fatal("expected partial file removed")
	}
	n, err := fileutil.WriteNew(path, strings.NewReader("0123"), 4)
	if err != nil || n != 4 {
		t.Fatalf("WriteNew: n=%d err=%v", n, err)
	}
	if _, err := fileutil.WriteNew(path, strings.NewReader("x"), 4); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected ErrExist on second write, got %v", err)
	}
}
