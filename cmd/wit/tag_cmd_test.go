package main

import (
	"testing"

	"github.com/witvcs/wit/internal/gitcore"
	"github.com/witvcs/wit/internal/termcolor"
)

func TestRunTag_CreatesLightweightTag(t *testing.T) {
	repo := newBareRepo(t)
	head := commitOnRepo(t, repo, "a.txt", "hello\n", "first commit")

	if code := runTag(repo, []string{"v1.0.0"}, termcolor.NewWriter(nil, termcolor.ColorNever)); code != 0 {
		t.Fatalf("runTag(create) = %d, want 0", code)
	}

	hash, ok := repo.Tags()["v1.0.0"]
	if !ok {
		t.Fatal("expected tag v1.0.0 to exist")
	}
	if hash != string(head) {
		t.Errorf("lightweight tag v1.0.0 = %s, want %s (HEAD)", hash, head)
	}
}

func TestRunTag_CreatesAnnotatedTag(t *testing.T) {
	repo := newBareRepo(t)
	head := commitOnRepo(t, repo, "a.txt", "hello\n", "first commit")

	if code := runTag(repo, []string{"-m", "release notes", "v1.0.0"}, termcolor.NewWriter(nil, termcolor.ColorNever)); code != 0 {
		t.Fatalf("runTag(create annotated) = %d, want 0", code)
	}

	// Tags() always peels to the target commit, so the annotated tag's own
	// object is found by scanning every known object for a Tag whose Name
	// matches, confirming a distinct tag object (not just a ref to HEAD)
	// was actually written.
	hashes, err := repo.IterObjects()
	if err != nil {
		t.Fatalf("IterObjects: %v", err)
	}
	var found *gitcore.Tag
	for _, h := range hashes {
		if tag, err := repo.GetTag(h); err == nil && tag.Name == "v1.0.0" {
			found = tag
			break
		}
	}
	if found == nil {
		t.Fatal("expected an annotated tag object named v1.0.0")
	}
	if found.Object != head {
		t.Errorf("annotated tag target = %s, want %s", found.Object, head)
	}
	if found.Message != "release notes" {
		t.Errorf("annotated tag message = %q, want %q", found.Message, "release notes")
	}
}

func TestRunTag_DeletesTag(t *testing.T) {
	repo := newBareRepo(t)
	commitOnRepo(t, repo, "a.txt", "hello\n", "first commit")
	cw := termcolor.NewWriter(nil, termcolor.ColorNever)

	if code := runTag(repo, []string{"v1.0.0"}, cw); code != 0 {
		t.Fatalf("runTag(create) = %d, want 0", code)
	}
	if code := runTag(repo, []string{"-d", "v1.0.0"}, cw); code != 0 {
		t.Fatalf("runTag(delete) = %d, want 0", code)
	}

	names := repo.TagNames()
	for _, n := range names {
		if n == "v1.0.0" {
			t.Error("expected v1.0.0 to be removed from TagNames")
		}
	}
}

func TestRunTag_DeleteWithoutNameFails(t *testing.T) {
	repo := newBareRepo(t)
	if code := runTag(repo, []string{"-d"}, termcolor.NewWriter(nil, termcolor.ColorNever)); code == 0 {
		t.Error("runTag(-d) with no name should fail")
	}
}
