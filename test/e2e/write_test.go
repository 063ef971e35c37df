//go:build e2e

package e2e

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// setupWitRepo creates a repository entirely through the wit binary (no
// real git involved) and returns its working directory.
func setupWitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if out, code := runCLIAllowFailure(t, dir, "init", dir); code != 0 {
		t.Fatalf("wit init = %d, output:\n%s", code, out)
	}
	return dir
}

// witEnv returns the environment additions needed to point the wit binary
// at dir's repository, mirroring how GIT_DIR is used elsewhere in this
// package.
func witAdd(t *testing.T, dir string, paths ...string) string {
	t.Helper()
	out, code := runCLIAllowFailure(t, dir, append([]string{"add"}, paths...)...)
	if code != 0 {
		t.Fatalf("wit add %v = %d, output:\n%s", paths, code, out)
	}
	return out
}

func witCommit(t *testing.T, dir, message string) string {
	t.Helper()
	out, code := runCLIAllowFailure(t, dir, "commit", "-m", message)
	if code != 0 {
		t.Fatalf("wit commit -m %q = %d, output:\n%s", message, code, out)
	}
	return out
}

func TestWitInit_CreatesGitCompatibleRepo(t *testing.T) {
	dir := setupWitRepo(t)

	if _, err := os.Stat(filepath.Join(dir, ".git", "HEAD")); err != nil {
		t.Fatalf("expected .git/HEAD to exist: %v", err)
	}

	// A stock git binary must be able to recognize the layout wit produced.
	out := git(t, dir, "rev-parse", "--is-inside-work-tree")
	if strings.TrimSpace(out) != "true" {
		t.Errorf("git rev-parse --is-inside-work-tree = %q, want true", out)
	}

	head, err := os.ReadFile(filepath.Join(dir, ".git", "HEAD"))
	if err != nil {
		t.Fatalf("reading HEAD: %v", err)
	}
	if strings.TrimSpace(string(head)) != "ref: refs/heads/main" {
		t.Errorf("HEAD = %q, want \"ref: refs/heads/main\"", strings.TrimSpace(string(head)))
	}
}

func TestWitAddCommit_VisibleToRealGit(t *testing.T) {
	dir := setupWitRepo(t)

	if err := writeFile(dir, "README.md", "# hello\n"); err != nil {
		t.Fatal(err)
	}
	witAdd(t, dir, ".")
	witCommit(t, dir, "initial commit")

	// Cross-check with the real git binary reading the same .git directory
	// wit just wrote to, confirming the objects/refs/index wit produced are
	// genuinely git-compatible and not just readable by wit itself.
	gitLog := git(t, dir, "log", "--oneline")
	if !strings.Contains(gitLog, "initial commit") {
		t.Errorf("git log after wit commit = %q, want it to contain %q", gitLog, "initial commit")
	}

	gitShow := git(t, dir, "show", "HEAD:README.md")
	if gitShow != "# hello\n" {
		t.Errorf("git show HEAD:README.md = %q, want %q", gitShow, "# hello\n")
	}

	gitStatus := git(t, dir, "status", "--porcelain")
	if strings.TrimSpace(gitStatus) != "" {
		t.Errorf("git status after wit add+commit should be clean, got:\n%s", gitStatus)
	}
}

func TestWitAdd_RespectsGitignore(t *testing.T) {
	dir := setupWitRepo(t)

	if err := writeFile(dir, ".gitignore", "*.log\n"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(dir, "keep.txt", "keep me\n"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(dir, "debug.log", "noisy\n"); err != nil {
		t.Fatal(err)
	}
	witAdd(t, dir, ".")
	witCommit(t, dir, "respects gitignore")

	tracked := git(t, dir, "ls-tree", "-r", "--name-only", "HEAD")
	if !strings.Contains(tracked, "keep.txt") {
		t.Errorf("expected keep.txt to be tracked, got:\n%s", tracked)
	}
	if strings.Contains(tracked, "debug.log") {
		t.Errorf("expected debug.log to be ignored, got:\n%s", tracked)
	}
}

func TestWitBranch_CreateAndDelete(t *testing.T) {
	dir := setupWitRepo(t)
	if err := writeFile(dir, "a.txt", "a\n"); err != nil {
		t.Fatal(err)
	}
	witAdd(t, dir, ".")
	witCommit(t, dir, "first commit")

	out, code := runCLIAllowFailure(t, dir, "branch", "feature")
	if code != 0 {
		t.Fatalf("wit branch feature = %d, output:\n%s", code, out)
	}

	gitBranches := git(t, dir, "branch", "--no-color")
	if !strings.Contains(gitBranches, "feature") {
		t.Errorf("expected git to see branch \"feature\", got:\n%s", gitBranches)
	}

	if out, code := runCLIAllowFailure(t, dir, "branch", "-d", "feature"); code != 0 {
		t.Fatalf("wit branch -d feature = %d, output:\n%s", code, out)
	}
	gitBranches = git(t, dir, "branch", "--no-color")
	if strings.Contains(gitBranches, "feature") {
		t.Errorf("expected branch \"feature\" to be gone, got:\n%s", gitBranches)
	}
}

func TestWitTag_CreateAndDelete(t *testing.T) {
	dir := setupWitRepo(t)
	if err := writeFile(dir, "a.txt", "a\n"); err != nil {
		t.Fatal(err)
	}
	witAdd(t, dir, ".")
	witCommit(t, dir, "first commit")

	if out, code := runCLIAllowFailure(t, dir, "tag", "-m", "release", "v1.0.0"); code != 0 {
		t.Fatalf("wit tag -m = %d, output:\n%s", code, out)
	}

	gitTags := git(t, dir, "tag")
	if !strings.Contains(gitTags, "v1.0.0") {
		t.Errorf("expected git tag to show v1.0.0, got:\n%s", gitTags)
	}
	annotated := git(t, dir, "cat-file", "-t", "v1.0.0")
	if strings.TrimSpace(annotated) != "tag" {
		t.Errorf("git cat-file -t v1.0.0 = %q, want \"tag\" (annotated)", strings.TrimSpace(annotated))
	}

	if out, code := runCLIAllowFailure(t, dir, "tag", "-d", "v1.0.0"); code != 0 {
		t.Fatalf("wit tag -d v1.0.0 = %d, output:\n%s", code, out)
	}
	gitTags = git(t, dir, "tag")
	if strings.Contains(gitTags, "v1.0.0") {
		t.Errorf("expected tag v1.0.0 to be deleted, got:\n%s", gitTags)
	}
}

func TestWitCheckout_SwitchesBranchAndWorkingTree(t *testing.T) {
	dir := setupWitRepo(t)
	if err := writeFile(dir, "a.txt", "on-main\n"); err != nil {
		t.Fatal(err)
	}
	witAdd(t, dir, ".")
	witCommit(t, dir, "on main")

	if out, code := runCLIAllowFailure(t, dir, "branch", "feature"); code != 0 {
		t.Fatalf("wit branch feature = %d, output:\n%s", code, out)
	}
	if out, code := runCLIAllowFailure(t, dir, "checkout", "feature"); code != 0 {
		t.Fatalf("wit checkout feature = %d, output:\n%s", code, out)
	}

	if err := writeFile(dir, "a.txt", "on-feature\n"); err != nil {
		t.Fatal(err)
	}
	witAdd(t, dir, ".")
	witCommit(t, dir, "on feature")

	if out, code := runCLIAllowFailure(t, dir, "checkout", "main"); code != 0 {
		t.Fatalf("wit checkout main = %d, output:\n%s", code, out)
	}
	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "on-main\n" {
		t.Errorf("a.txt after checkout main = %q, want %q", content, "on-main\n")
	}

	gitBranch := strings.TrimSpace(git(t, dir, "rev-parse", "--abbrev-ref", "HEAD"))
	if gitBranch != "main" {
		t.Errorf("git sees HEAD on %q, want \"main\"", gitBranch)
	}
}

func TestWitReset_Hard(t *testing.T) {
	dir := setupWitRepo(t)
	if err := writeFile(dir, "a.txt", "v1\n"); err != nil {
		t.Fatal(err)
	}
	witAdd(t, dir, ".")
	witCommit(t, dir, "v1")

	firstHead := strings.TrimSpace(git(t, dir, "rev-parse", "HEAD"))

	if err := writeFile(dir, "a.txt", "v2\n"); err != nil {
		t.Fatal(err)
	}
	witAdd(t, dir, ".")
	witCommit(t, dir, "v2")

	if out, code := runCLIAllowFailure(t, dir, "reset", "--hard", firstHead); code != 0 {
		t.Fatalf("wit reset --hard = %d, output:\n%s", code, out)
	}

	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "v1\n" {
		t.Errorf("a.txt after reset --hard = %q, want %q", content, "v1\n")
	}
	gitHead := strings.TrimSpace(git(t, dir, "rev-parse", "HEAD"))
	if gitHead != firstHead {
		t.Errorf("git HEAD after wit reset --hard = %s, want %s", gitHead, firstHead)
	}
}

func TestWitMerge_FastForward(t *testing.T) {
	dir := setupWitRepo(t)
	if err := writeFile(dir, "a.txt", "base\n"); err != nil {
		t.Fatal(err)
	}
	witAdd(t, dir, ".")
	witCommit(t, dir, "base")

	if out, code := runCLIAllowFailure(t, dir, "branch", "feature"); code != 0 {
		t.Fatalf("wit branch feature = %d, output:\n%s", code, out)
	}
	if out, code := runCLIAllowFailure(t, dir, "checkout", "feature"); code != 0 {
		t.Fatalf("wit checkout feature = %d, output:\n%s", code, out)
	}
	if err := writeFile(dir, "b.txt", "feature work\n"); err != nil {
		t.Fatal(err)
	}
	witAdd(t, dir, ".")
	witCommit(t, dir, "feature work")

	if out, code := runCLIAllowFailure(t, dir, "checkout", "main"); code != 0 {
		t.Fatalf("wit checkout main = %d, output:\n%s", code, out)
	}
	out, code := runCLIAllowFailure(t, dir, "merge", "feature")
	if code != 0 {
		t.Fatalf("wit merge feature = %d, output:\n%s", code, out)
	}
	if !strings.Contains(out, "Fast-forward") {
		t.Errorf("expected fast-forward merge output, got:\n%s", out)
	}

	gitLog := git(t, dir, "log", "--oneline")
	if !strings.Contains(gitLog, "feature work") {
		t.Errorf("git log after wit merge should contain the feature commit, got:\n%s", gitLog)
	}
}

func TestWitMerge_ReportsConflicts(t *testing.T) {
	dir := setupWitRepo(t)
	if err := writeFile(dir, "a.txt", "base\n"); err != nil {
		t.Fatal(err)
	}
	witAdd(t, dir, ".")
	witCommit(t, dir, "base")

	if out, code := runCLIAllowFailure(t, dir, "branch", "feature"); code != 0 {
		t.Fatalf("wit branch feature = %d, output:\n%s", code, out)
	}
	if out, code := runCLIAllowFailure(t, dir, "checkout", "feature"); code != 0 {
		t.Fatalf("wit checkout feature = %d, output:\n%s", code, out)
	}
	if err := writeFile(dir, "a.txt", "feature change\n"); err != nil {
		t.Fatal(err)
	}
	witAdd(t, dir, ".")
	witCommit(t, dir, "feature change")

	if out, code := runCLIAllowFailure(t, dir, "checkout", "main"); code != 0 {
		t.Fatalf("wit checkout main = %d, output:\n%s", code, out)
	}
	if err := writeFile(dir, "a.txt", "main change\n"); err != nil {
		t.Fatal(err)
	}
	witAdd(t, dir, ".")
	witCommit(t, dir, "main change")

	out, code := runCLIAllowFailure(t, dir, "merge", "feature")
	if code == 0 {
		t.Fatalf("wit merge feature with conflicting changes should fail, output:\n%s", out)
	}
	if !strings.Contains(out, "CONFLICT") {
		t.Errorf("expected CONFLICT marker in merge output, got:\n%s", out)
	}
}
