package gitcore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInit_Bare(t *testing.T) {
	dir := t.TempDir()
	repo, err := Init(dir, InitOptions{Bare: true})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !repo.IsBare() {
		t.Error("expected a bare repository")
	}
	for _, sub := range []string{"objects", "refs/heads", "refs/tags", "HEAD", "config", "description"} {
		if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
			t.Errorf("expected %s to exist: %v", sub, err)
		}
	}
	if repo.HeadRef() != "refs/heads/main" {
		t.Errorf("HeadRef() = %q, want refs/heads/main", repo.HeadRef())
	}
}

func TestInit_NonBareUsesDotGit(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir, InitOptions{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".git", "objects")); err != nil {
		t.Errorf("expected .git/objects to exist: %v", err)
	}
}

func TestInit_CustomInitialBranch(t *testing.T) {
	dir := t.TempDir()
	repo, err := Init(dir, InitOptions{Bare: true, InitialBranch: "trunk"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if repo.HeadRef() != "refs/heads/trunk" {
		t.Errorf("HeadRef() = %q, want refs/heads/trunk", repo.HeadRef())
	}
}

func TestInit_AlreadyExists(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir, InitOptions{Bare: true}); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if _, err := Init(dir, InitOptions{Bare: true}); err == nil {
		t.Error("expected an error when the git directory already exists")
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir, InitOptions{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	gitDir, workDir, err := Find(nested)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if workDir != dir {
		t.Errorf("workDir = %q, want %q", workDir, dir)
	}
	if gitDir != filepath.Join(dir, ".git") {
		t.Errorf("gitDir = %q, want %q", gitDir, filepath.Join(dir, ".git"))
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir, InitOptions{Bare: true}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := Open(dir); err != nil {
		t.Errorf("Open: %v", err)
	}
}
