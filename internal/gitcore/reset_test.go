package gitcore

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReset_SoftMovesBranchOnly(t *testing.T) {
	dir := t.TempDir()
	repo, err := Init(dir, InitOptions{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	sig := Signature{Name: "Test", Email: "test@example.com", When: time.Unix(0, 0)}
	blob1, _ := repo.WriteRaw(BlobObject, []byte("one\n"))
	first, err := repo.CommitIndex(&Index{ByPath: map[string]*IndexEntry{
		"a.txt": {Mode: 0o100644, Hash: blob1, Path: "a.txt"},
	}}, "first", sig)
	if err != nil {
		t.Fatalf("first CommitIndex: %v", err)
	}
	firstCommit, _ := repo.GetCommit(first)
	if err := repo.Materialize(firstCommit.Tree); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	blob2, _ := repo.WriteRaw(BlobObject, []byte("two\n"))
	if _, err := repo.CommitIndex(&Index{ByPath: map[string]*IndexEntry{
		"a.txt": {Mode: 0o100644, Hash: blob2, Path: "a.txt"},
	}}, "second", sig); err != nil {
		t.Fatalf("second CommitIndex: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("two\n"), 0o644); err != nil {
		t.Fatalf("writing working file: %v", err)
	}

	idxBefore, err := ReadIndex(repo.GitDir())
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}

	if err := repo.Reset(first, ResetSoft); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if repo.Head() != first {
		t.Errorf("Head() = %s, want %s", repo.Head(), first)
	}

	idxAfter, err := ReadIndex(repo.GitDir())
	if err != nil {
		t.Fatalf("ReadIndex after reset: %v", err)
	}
	if idxAfter.ByPath["a.txt"].Hash != idxBefore.ByPath["a.txt"].Hash {
		t.Error("ResetSoft should leave the index untouched")
	}

	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("reading working file: %v", err)
	}
	if string(content) != "two\n" {
		t.Errorf("ResetSoft should leave the working tree untouched, got %q", content)
	}
}

func TestReset_MixedReloadsIndexOnly(t *testing.T) {
	dir := t.TempDir()
	repo, err := Init(dir, InitOptions{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	sig := Signature{Name: "Test", Email: "test@example.com", When: time.Unix(0, 0)}
	blob1, _ := repo.WriteRaw(BlobObject, []byte("one\n"))
	first, err := repo.CommitIndex(&Index{ByPath: map[string]*IndexEntry{
		"a.txt": {Mode: 0o100644, Hash: blob1, Path: "a.txt"},
	}}, "first", sig)
	if err != nil {
		t.Fatalf("first CommitIndex: %v", err)
	}
	firstCommit, _ := repo.GetCommit(first)
	if err := repo.Materialize(firstCommit.Tree); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	blob2, _ := repo.WriteRaw(BlobObject, []byte("two\n"))
	if _, err := repo.CommitIndex(&Index{ByPath: map[string]*IndexEntry{
		"a.txt": {Mode: 0o100644, Hash: blob2, Path: "a.txt"},
	}}, "second", sig); err != nil {
		t.Fatalf("second CommitIndex: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("two\n"), 0o644); err != nil {
		t.Fatalf("writing working file: %v", err)
	}

	if err := repo.Reset(first, ResetMixed); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	idx, err := ReadIndex(repo.GitDir())
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if idx.ByPath["a.txt"].Hash != blob1 {
		t.Errorf("ResetMixed should reload the index from target tree, got hash %s want %s", idx.ByPath["a.txt"].Hash, blob1)
	}

	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("reading working file: %v", err)
	}
	if string(content) != "two\n" {
		t.Errorf("ResetMixed should leave the working tree untouched, got %q", content)
	}
}

func TestReset_HardRestoresWorkingTree(t *testing.T) {
	dir := t.TempDir()
	repo, err := Init(dir, InitOptions{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	sig := Signature{Name: "Test", Email: "test@example.com", When: time.Unix(0, 0)}
	blob1, _ := repo.WriteRaw(BlobObject, []byte("one\n"))
	first, err := repo.CommitIndex(&Index{ByPath: map[string]*IndexEntry{
		"a.txt": {Mode: 0o100644, Hash: blob1, Path: "a.txt"},
	}}, "first", sig)
	if err != nil {
		t.Fatalf("first CommitIndex: %v", err)
	}
	firstCommit, _ := repo.GetCommit(first)
	if err := repo.Materialize(firstCommit.Tree); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	blob2, _ := repo.WriteRaw(BlobObject, []byte("two\n"))
	if _, err := repo.CommitIndex(&Index{ByPath: map[string]*IndexEntry{
		"a.txt": {Mode: 0o100644, Hash: blob2, Path: "a.txt"},
	}}, "second", sig); err != nil {
		t.Fatalf("second CommitIndex: %v", err)
	}

	if err := repo.Reset(first, ResetHard); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("reading working file: %v", err)
	}
	if string(content) != "one\n" {
		t.Errorf("ResetHard should restore the working tree to target commit, got %q", content)
	}
}

func TestReset_UnknownTarget(t *testing.T) {
	repo, err := Init(t.TempDir(), InitOptions{Bare: true})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := repo.Reset(Hash("deadbeef"), ResetSoft); err == nil {
		t.Error("expected an error resetting to an unknown commit")
	}
}
