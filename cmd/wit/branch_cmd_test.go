package main

import (
	"testing"

	"github.com/witvcs/wit/internal/gitcore"
	"github.com/witvcs/wit/internal/termcolor"
)

func commitOnRepo(t *testing.T, repo *gitcore.Repository, path, content, message string) gitcore.Hash {
	t.Helper()
	stageFile(t, repo, path, content)
	if code := runCommit(repo, []string{"-m", message}); code != 0 {
		t.Fatalf("runCommit() = %d, want 0", code)
	}
	return repo.Head()
}

func TestRunBranch_CreatesBranchAtHead(t *testing.T) {
	repo := newBareRepo(t)
	head := commitOnRepo(t, repo, "a.txt", "hello\n", "first commit")

	cw := termcolor.NewWriter(nil, termcolor.ColorNever)
	if code := runBranch(repo, []string{"feature"}, cw); code != 0 {
		t.Fatalf("runBranch(create) = %d, want 0", code)
	}

	branches := repo.Branches()
	hash, ok := branches["feature"]
	if !ok {
		t.Fatal("expected branch \"feature\" to exist")
	}
	if hash != head {
		t.Errorf("feature branch = %s, want %s", hash, head)
	}
}

func TestRunBranch_CreateWithNoCommitsFails(t *testing.T) {
	repo := newBareRepo(t)
	cw := termcolor.NewWriter(nil, termcolor.ColorNever)
	if code := runBranch(repo, []string{"feature"}, cw); code == 0 {
		t.Error("runBranch(create) on an empty repo should fail")
	}
}

func TestRunBranch_DeletesBranch(t *testing.T) {
	repo := newBareRepo(t)
	commitOnRepo(t, repo, "a.txt", "hello\n", "first commit")

	cw := termcolor.NewWriter(nil, termcolor.ColorNever)
	if code := runBranch(repo, []string{"feature"}, cw); code != 0 {
		t.Fatalf("runBranch(create) = %d, want 0", code)
	}
	if code := runBranch(repo, []string{"-d", "feature"}, cw); code != 0 {
		t.Fatalf("runBranch(delete) = %d, want 0", code)
	}

	if _, ok := repo.Branches()["feature"]; ok {
		t.Error("expected branch \"feature\" to be removed")
	}
}

func TestRunBranch_DeleteWithoutNameFails(t *testing.T) {
	repo := newBareRepo(t)
	cw := termcolor.NewWriter(nil, termcolor.ColorNever)
	if code := runBranch(repo, []string{"-d"}, cw); code == 0 {
		t.Error("runBranch(-d) with no name should fail")
	}
}
