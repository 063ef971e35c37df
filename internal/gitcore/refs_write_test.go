package gitcore

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newRefsTestRepo(t *testing.T) (*Repository, Hash) {
	t.Helper()
	repo, err := Init(t.TempDir(), InitOptions{Bare: true})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	blobHash, err := repo.WriteRaw(BlobObject, []byte("hello\n"))
	if err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	sig := Signature{Name: "Test", Email: "test@example.com", When: time.Unix(0, 0)}
	commitHash, err := repo.CommitIndex(&Index{ByPath: map[string]*IndexEntry{
		"a.txt": {Mode: 0o100644, Hash: blobHash, Path: "a.txt"},
	}}, "first", sig)
	if err != nil {
		t.Fatalf("CommitIndex: %v", err)
	}
	return repo, commitHash
}

func TestValidateRefName(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"feature/x", true},
		{"release-1.0", true},
		{"", false},
		{"has space", false},
		{"a..b", false},
		{"/leading", false},
		{"trailing/", false},
		{"double//slash", false},
		{"name.lock", false},
		{"name.", false},
		{"name@{oops}", false},
		{"name~1", false},
		{"name^1", false},
		{"name:colon", false},
		{"name?query", false},
		{"name*star", false},
	}
	for _, tt := range cases {
		err := ValidateRefName(tt.name)
		if tt.valid && err != nil {
			t.Errorf("ValidateRefName(%q) = %v, want nil", tt.name, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("ValidateRefName(%q) = nil, want an error", tt.name)
		}
	}
}

func TestCreateBranch_Basic(t *testing.T) {
	repo, commitHash := newRefsTestRepo(t)

	if err := repo.CreateBranch("feature", commitHash); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	branches := repo.Branches()
	if branches["feature"] != commitHash {
		t.Errorf("Branches()[feature] = %s, want %s", branches["feature"], commitHash)
	}

	refFile := filepath.Join(repo.GitDir(), "refs", "heads", "feature")
	if _, err := os.Stat(refFile); err != nil {
		t.Errorf("expected loose ref file to exist: %v", err)
	}
}

func TestCreateBranch_InvalidName(t *testing.T) {
	repo, commitHash := newRefsTestRepo(t)

	if err := repo.CreateBranch("bad name", commitHash); err == nil {
		t.Fatal("expected an error for an invalid branch name")
	} else if kind, ok := KindOf(err); !ok || kind != KindInvalid {
		t.Errorf("KindOf(err) = %v, %v, want KindInvalid", kind, ok)
	}
}

func TestCreateBranch_AlreadyExists(t *testing.T) {
	repo, commitHash := newRefsTestRepo(t)

	if err := repo.CreateBranch("feature", commitHash); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	err := repo.CreateBranch("feature", commitHash)
	if err == nil {
		t.Fatal("expected an error creating a branch that already exists")
	}
	if kind, ok := KindOf(err); !ok || kind != KindAlreadyExists {
		t.Errorf("KindOf(err) = %v, %v, want KindAlreadyExists", kind, ok)
	}
}

func TestDeleteBranch_RemovesLooseRef(t *testing.T) {
	repo, commitHash := newRefsTestRepo(t)

	if err := repo.CreateBranch("feature", commitHash); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := repo.DeleteBranch("feature"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if _, exists := repo.Branches()["feature"]; exists {
		t.Error("expected feature branch to be gone after DeleteBranch")
	}
	refFile := filepath.Join(repo.GitDir(), "refs", "heads", "feature")
	if _, err := os.Stat(refFile); !os.IsNotExist(err) {
		t.Errorf("expected loose ref file to be removed, stat err = %v", err)
	}
}

func TestDeleteBranch_NotFound(t *testing.T) {
	repo, _ := newRefsTestRepo(t)

	err := repo.DeleteBranch("nope")
	if err == nil {
		t.Fatal("expected an error deleting a nonexistent branch")
	}
	if kind, ok := KindOf(err); !ok || kind != KindNotFound {
		t.Errorf("KindOf(err) = %v, %v, want KindNotFound", kind, ok)
	}
}

func TestDeleteBranch_RefusesCurrentBranch(t *testing.T) {
	repo, _ := newRefsTestRepo(t)

	err := repo.DeleteBranch("main")
	if err == nil {
		t.Fatal("expected an error deleting the currently checked-out branch")
	}
	if kind, ok := KindOf(err); !ok || kind != KindInvalid {
		t.Errorf("KindOf(err) = %v, %v, want KindInvalid", kind, ok)
	}
}

func TestCreateTag_Lightweight(t *testing.T) {
	repo, commitHash := newRefsTestRepo(t)

	tagHash, err := repo.CreateTag("v1", commitHash, Signature{}, "")
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if tagHash != commitHash {
		t.Errorf("lightweight tag hash = %s, want the target commit %s", tagHash, commitHash)
	}
	if repo.Tags()["v1"] != string(commitHash) {
		t.Errorf("Tags()[v1] = %s, want %s", repo.Tags()["v1"], commitHash)
	}
}

func TestCreateTag_Annotated(t *testing.T) {
	repo, commitHash := newRefsTestRepo(t)
	tagger := Signature{Name: "Tagger", Email: "tagger@example.com", When: time.Unix(0, 0)}

	tagHash, err := repo.CreateTag("v1", commitHash, tagger, "release notes")
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if tagHash == commitHash {
		t.Error("annotated tag should produce a distinct tag object hash")
	}

	tag, err := repo.GetTag(tagHash)
	if err != nil {
		t.Fatalf("GetTag: %v", err)
	}
	if tag.Object != commitHash {
		t.Errorf("tag.Object = %s, want %s", tag.Object, commitHash)
	}
	if tag.Message != "release notes" {
		t.Errorf("tag.Message = %q, want %q", tag.Message, "release notes")
	}
}

func TestCreateTag_AlreadyExists(t *testing.T) {
	repo, commitHash := newRefsTestRepo(t)

	if _, err := repo.CreateTag("v1", commitHash, Signature{}, ""); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	_, err := repo.CreateTag("v1", commitHash, Signature{}, "")
	if err == nil {
		t.Fatal("expected an error creating a tag that already exists")
	}
	if kind, ok := KindOf(err); !ok || kind != KindAlreadyExists {
		t.Errorf("KindOf(err) = %v, %v, want KindAlreadyExists", kind, ok)
	}
}

func TestDeleteTag(t *testing.T) {
	repo, commitHash := newRefsTestRepo(t)

	if _, err := repo.CreateTag("v1", commitHash, Signature{}, ""); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if err := repo.DeleteTag("v1"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	if _, exists := repo.Tags()["v1"]; exists {
		t.Error("expected v1 tag to be gone after DeleteTag")
	}
}

func TestDeleteTag_NotFound(t *testing.T) {
	repo, _ := newRefsTestRepo(t)

	err := repo.DeleteTag("nope")
	if err == nil {
		t.Fatal("expected an error deleting a nonexistent tag")
	}
	if kind, ok := KindOf(err); !ok || kind != KindNotFound {
		t.Errorf("KindOf(err) = %v, %v, want KindNotFound", kind, ok)
	}
}

// TestPackRefs_ThenDeleteBranch exercises the S4 scenario: pack two
// branches, confirm their loose ref files are gone and they still resolve,
// then delete one and confirm it disappears from packed-refs while the
// other remains resolvable, and that the packed-refs file itself disappears
// once its last entry is removed. HEAD is detached and "main" deleted first
// so packing (which packs every ref, current branch included) leaves only
// x and y behind — otherwise main would keep the file non-empty forever.
func TestPackRefs_ThenDeleteBranch(t *testing.T) {
	repo, commitHash := newRefsTestRepo(t)

	if err := repo.CreateBranch("x", commitHash); err != nil {
		t.Fatalf("CreateBranch(x): %v", err)
	}
	if err := repo.CreateBranch("y", commitHash); err != nil {
		t.Fatalf("CreateBranch(y): %v", err)
	}
	if err := repo.SetHeadDetached(commitHash); err != nil {
		t.Fatalf("SetHeadDetached: %v", err)
	}
	if err := repo.DeleteBranch("main"); err != nil {
		t.Fatalf("DeleteBranch(main): %v", err)
	}

	if err := repo.PackRefs(); err != nil {
		t.Fatalf("PackRefs: %v", err)
	}

	for _, name := range []string{"x", "y"} {
		refFile := filepath.Join(repo.GitDir(), "refs", "heads", name)
		if _, err := os.Stat(refFile); !os.IsNotExist(err) {
			t.Errorf("expected loose ref file for %q to be gone after PackRefs, stat err = %v", name, err)
		}
	}
	packedPath := filepath.Join(repo.GitDir(), "packed-refs")
	if _, err := os.Stat(packedPath); err != nil {
		t.Fatalf("expected packed-refs file to exist: %v", err)
	}

	if repo.Branches()["x"] != commitHash {
		t.Errorf("Branches()[x] = %s after packing, want %s", repo.Branches()["x"], commitHash)
	}

	if err := repo.DeleteBranch("x"); err != nil {
		t.Fatalf("DeleteBranch(x): %v", err)
	}
	if _, exists := repo.Branches()["x"]; exists {
		t.Error("expected x to be gone after DeleteBranch")
	}

	packedContent, err := os.ReadFile(packedPath)
	if err != nil {
		t.Fatalf("reading packed-refs after deleting x: %v", err)
	}
	if contains := string(packedContent); contains == "" {
		t.Fatal("packed-refs unexpectedly empty after deleting only one of two packed branches")
	} else if indexOfSubstring(contains, "refs/heads/x") != -1 {
		t.Errorf("packed-refs still references refs/heads/x after deletion:\n%s", contains)
	}

	// y must still resolve correctly from the rewritten packed-refs.
	if repo.Branches()["y"] != commitHash {
		t.Errorf("Branches()[y] = %s, want %s", repo.Branches()["y"], commitHash)
	}

	if err := repo.DeleteBranch("y"); err != nil {
		t.Fatalf("DeleteBranch(y): %v", err)
	}
	if _, err := os.Stat(packedPath); !os.IsNotExist(err) {
		t.Errorf("expected packed-refs file to disappear once its last entry is removed, stat err = %v", err)
	}
}

func indexOfSubstring(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestSetHeadDetachedAndSymbolic(t *testing.T) {
	repo, commitHash := newRefsTestRepo(t)

	if err := repo.CreateBranch("feature", commitHash); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	if err := repo.SetHeadDetached(commitHash); err != nil {
		t.Fatalf("SetHeadDetached: %v", err)
	}
	if !repo.HeadDetached() {
		t.Error("expected HeadDetached() to be true after SetHeadDetached")
	}
	if repo.Head() != commitHash {
		t.Errorf("Head() = %s, want %s", repo.Head(), commitHash)
	}

	if err := repo.SetHeadSymbolic("feature"); err != nil {
		t.Fatalf("SetHeadSymbolic: %v", err)
	}
	if repo.HeadDetached() {
		t.Error("expected HeadDetached() to be false after SetHeadSymbolic")
	}
	if repo.HeadRef() != "refs/heads/feature" {
		t.Errorf("HeadRef() = %q, want %q", repo.HeadRef(), "refs/heads/feature")
	}
}

func TestUpdateBranch_AdvancesHeadWhenCurrent(t *testing.T) {
	repo, commitHash := newRefsTestRepo(t)

	blob2, err := repo.WriteRaw(BlobObject, []byte("second\n"))
	if err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	sig := Signature{Name: "Test", Email: "test@example.com", When: time.Unix(0, 0)}
	second, err := repo.CommitIndex(&Index{ByPath: map[string]*IndexEntry{
		"a.txt": {Mode: 0o100644, Hash: blob2, Path: "a.txt"},
	}}, "second", sig)
	if err != nil {
		t.Fatalf("CommitIndex: %v", err)
	}
	_ = commitHash

	if err := repo.UpdateBranch("main", second); err != nil {
		t.Fatalf("UpdateBranch: %v", err)
	}
	if repo.Head() != second {
		t.Errorf("Head() = %s, want %s", repo.Head(), second)
	}
	if repo.Branches()["main"] != second {
		t.Errorf("Branches()[main] = %s, want %s", repo.Branches()["main"], second)
	}
}

func TestRefNotFoundSuggestion(t *testing.T) {
	repo, commitHash := newRefsTestRepo(t)

	if err := repo.CreateBranch("feature", commitHash); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	err := repo.DeleteBranch("featurr")
	if err == nil {
		t.Fatal("expected an error deleting a nonexistent branch")
	}
	if !containsSubstring(err.Error(), "feature") {
		t.Errorf("error %q should suggest the close match %q", err.Error(), "feature")
	}
}

func containsSubstring(s, substr string) bool {
	return indexOfSubstring(s, substr) != -1
}
