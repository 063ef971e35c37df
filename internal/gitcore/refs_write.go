package gitcore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/witvcs/wit/internal/cli"
)

// invalidRefNameChars, together with the checks in ValidateRefName, mirrors
// Git's check-ref-format rules closely enough for a
// self-hosted engine: no control characters, no "..", no leading/trailing
// "/", no consecutive slashes, no trailing ".lock", no "~^:?*[\" or space.
var invalidRefNameChars = regexp.MustCompile(`[\x00-\x1F\x7F ~^:?*\[\\]`)

// ValidateRefName reports whether name is a legal ref component (the part
// after "refs/heads/" or "refs/tags/"), returning a descriptive error
// naming the violated rule if not.
func ValidateRefName(name string) error {
	if name == "" {
		return NewError(KindInvalid, "ref name must not be empty", nil)
	}
	if invalidRefNameChars.MatchString(name) {
		return NewError(KindInvalid, fmt.Sprintf("ref name %q contains an invalid character", name), nil)
	}
	if strings.Contains(name, "..") {
		return NewError(KindInvalid, fmt.Sprintf("ref name %q must not contain '..'", name), nil)
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return NewError(KindInvalid, fmt.Sprintf("ref name %q must not start or end with '/'", name), nil)
	}
	if strings.Contains(name, "//") {
		return NewError(KindInvalid, fmt.Sprintf("ref name %q must not contain consecutive slashes", name), nil)
	}
	if strings.HasSuffix(name, ".lock") {
		return NewError(KindInvalid, fmt.Sprintf("ref name %q must not end with '.lock'", name), nil)
	}
	if strings.HasSuffix(name, "/") || strings.HasSuffix(name, ".") {
		return NewError(KindInvalid, fmt.Sprintf("ref name %q must not end with '/' or '.'", name), nil)
	}
	if strings.Contains(name, "@{") {
		return NewError(KindInvalid, fmt.Sprintf("ref name %q must not contain '@{'", name), nil)
	}
	return nil
}

// refLock acquires an advisory lock on gitDir/refName by creating
// refName+".lock" exclusively, mirroring Git's own ref-locking convention.
// The caller must call release() exactly once.
type refLock struct {
	path string
}

func acquireRefLock(gitDir, refPath string) (*refLock, error) {
	full := filepath.Join(gitDir, refPath)
	lockPath := full + ".lock"
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, NewError(KindIO, "creating ref directory", err)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //nolint:gosec // G304: lock path derived from validated ref name
	if err != nil {
		if os.IsExist(err) {
			return nil, NewError(KindConcurrency, fmt.Sprintf("ref %q is locked by a concurrent operation", refPath), err)
		}
		return nil, NewError(KindIO, "creating ref lock", err)
	}
	_ = f.Close()
	return &refLock{path: lockPath}, nil
}

func (l *refLock) release() {
	_ = os.Remove(l.path)
}

// writeRefAtomic writes hash into refPath under gitDir using the standard
// temp-file-then-rename sequence, holding refPath's advisory lock for the
// duration.
func (r *Repository) writeRefAtomic(refPath string, hash Hash) error {
	lock, err := acquireRefLock(r.gitDir, refPath)
	if err != nil {
		return err
	}
	defer lock.release()

	full := filepath.Join(r.gitDir, refPath)
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-ref-*")
	if err != nil {
		return NewError(KindIO, "creating temp ref file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(string(hash) + "\n"); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return NewError(KindIO, "writing ref", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return NewError(KindIO, "closing temp ref file", err)
	}
	if err := os.Rename(tmpPath, full); err != nil {
		_ = os.Remove(tmpPath)
		return NewError(KindIO, "finalizing ref write", err)
	}
	return nil
}

// refNotFoundSuggestion looks across both branch and tag names for a
// plausible typo correction, used to build "did you mean" error messages.
func (r *Repository) refNotFoundSuggestion(name string) string {
	candidates := make([]string, 0, len(r.refs))
	for ref := range r.refs {
		if n, ok := strings.CutPrefix(ref, "refs/heads/"); ok {
			candidates = append(candidates, n)
		} else if n, ok := strings.CutPrefix(ref, "refs/tags/"); ok {
			candidates = append(candidates, n)
		}
	}
	return cli.Suggest(name, candidates)
}

// CreateBranch creates refs/heads/<name> pointing at target. Fails with
// AlreadyExists if the branch exists.
func (r *Repository) CreateBranch(name string, target Hash) error {
	if err := ValidateRefName(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	refPath := "refs/heads/" + name
	if _, exists := r.refs[refPath]; exists {
		return NewError(KindAlreadyExists, fmt.Sprintf("branch %q already exists", name), nil)
	}

	if err := r.writeRefAtomic(refPath, target); err != nil {
		return err
	}
	r.refs[refPath] = target
	if !r.headDetached && r.headRef == refPath {
		r.head = target
	}
	return nil
}

// DeleteBranch removes refs/heads/<name>. Refuses to delete the branch HEAD
// currently points at (symbolic, non-detached).
func (r *Repository) DeleteBranch(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	refPath := "refs/heads/" + name
	if _, exists := r.refs[refPath]; !exists {
		suggestion := r.refNotFoundSuggestion(name)
		msg := fmt.Sprintf("branch %q not found", name)
		if suggestion != "" {
			msg = fmt.Sprintf("branch %q not found (did you mean %q?)", name, suggestion)
		}
		return NewError(KindNotFound, msg, nil)
	}
	if !r.headDetached && r.headRef == refPath {
		return NewError(KindInvalid, fmt.Sprintf("cannot delete branch %q: currently checked out", name), nil)
	}

	if err := os.Remove(filepath.Join(r.gitDir, refPath)); err != nil && !os.IsNotExist(err) {
		return NewError(KindIO, "removing branch ref file", err)
	}
	if err := r.removePackedRef(refPath); err != nil {
		return err
	}
	delete(r.refs, refPath)
	return nil
}

// CreateTag creates an annotated or lightweight tag. If message is
// non-empty, an annotated Tag object is written and the ref points at it;
// otherwise the ref points directly at target.
func (r *Repository) CreateTag(name string, target Hash, tagger Signature, message string) (Hash, error) {
	if err := ValidateRefName(name); err != nil {
		return "", err
	}

	r.mu.Lock()
	refPath := "refs/tags/" + name
	if _, exists := r.refs[refPath]; exists {
		r.mu.Unlock()
		return "", NewError(KindAlreadyExists, fmt.Sprintf("tag %q already exists", name), nil)
	}
	r.mu.Unlock()

	tagHash := target
	if message != "" {
		targetObj, err := r.readObject(target)
		if err != nil {
			return "", NewError(KindNotFound, fmt.Sprintf("tag target %s not found", target), err)
		}
		tag := &Tag{
			Object:  target,
			ObjType: targetObj.Type(),
			Name:    name,
			Tagger:  tagger,
			Message: message,
		}
		id, err := r.WriteObject(tag)
		if err != nil {
			return "", err
		}
		tagHash = id
		r.mu.Lock()
		tag.ID = id
		r.tags = append(r.tags, tag)
		r.mu.Unlock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeRefAtomic(refPath, tagHash); err != nil {
		return "", err
	}
	r.refs[refPath] = tagHash
	return tagHash, nil
}

// DeleteTag removes refs/tags/<name>.
func (r *Repository) DeleteTag(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	refPath := "refs/tags/" + name
	if _, exists := r.refs[refPath]; !exists {
		suggestion := r.refNotFoundSuggestion(name)
		msg := fmt.Sprintf("tag %q not found", name)
		if suggestion != "" {
			msg = fmt.Sprintf("tag %q not found (did you mean %q?)", name, suggestion)
		}
		return NewError(KindNotFound, msg, nil)
	}
	if err := os.Remove(filepath.Join(r.gitDir, refPath)); err != nil && !os.IsNotExist(err) {
		return NewError(KindIO, "removing tag ref file", err)
	}
	if err := r.removePackedRef(refPath); err != nil {
		return err
	}
	delete(r.refs, refPath)
	return nil
}

// removePackedRef drops refPath's entry from the packed-refs file, if
// present, rewriting the file with it excluded — or removing the file
// entirely once no entries remain. The caller must hold r.mu. A no-op if
// refPath was never packed.
func (r *Repository) removePackedRef(refPath string) error {
	idx := -1
	for i, pr := range r.packedRefs {
		if pr.Name == refPath {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}

	remaining := append(append([]PackedRef{}, r.packedRefs[:idx]...), r.packedRefs[idx+1:]...)
	packedPath := filepath.Join(r.gitDir, "packed-refs")

	if len(remaining) == 0 {
		if err := os.Remove(packedPath); err != nil && !os.IsNotExist(err) {
			return NewError(KindIO, "removing empty packed-refs file", err)
		}
		r.packedRefs = nil
		return nil
	}

	var buf strings.Builder
	buf.WriteString("# pack-refs with: peeled fully-peeled sorted\n")
	for _, pr := range remaining {
		fmt.Fprintf(&buf, "%s %s\n", pr.Hash, pr.Name)
		if pr.Peeled != "" {
			fmt.Fprintf(&buf, "^%s\n", pr.Peeled)
		}
	}

	tmp, err := os.CreateTemp(r.gitDir, ".tmp-packed-refs-*")
	if err != nil {
		return NewError(KindIO, "creating temp packed-refs file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(buf.String()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return NewError(KindIO, "writing packed-refs", err)
	}
	_ = tmp.Close()
	if err := os.Rename(tmpPath, packedPath); err != nil {
		_ = os.Remove(tmpPath)
		return NewError(KindIO, "finalizing packed-refs write", err)
	}

	r.packedRefs = remaining
	return nil
}

// SetHeadSymbolic points HEAD at refs/heads/<branch> (a normal checkout).
func (r *Repository) SetHeadSymbolic(branch string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	refPath := "refs/heads/" + branch
	headPath := filepath.Join(r.gitDir, "HEAD")
	tmp, err := os.CreateTemp(r.gitDir, ".tmp-HEAD-*")
	if err != nil {
		return NewError(KindIO, "creating temp HEAD file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString("ref: " + refPath + "\n"); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return NewError(KindIO, "writing HEAD", err)
	}
	_ = tmp.Close()
	if err := os.Rename(tmpPath, headPath); err != nil {
		_ = os.Remove(tmpPath)
		return NewError(KindIO, "finalizing HEAD write", err)
	}

	r.headRef = refPath
	r.headDetached = false
	if hash, ok := r.refs[refPath]; ok {
		r.head = hash
	}
	return nil
}

// SetHeadDetached points HEAD directly at commit, detaching it from any branch.
func (r *Repository) SetHeadDetached(commit Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	headPath := filepath.Join(r.gitDir, "HEAD")
	tmp, err := os.CreateTemp(r.gitDir, ".tmp-HEAD-*")
	if err != nil {
		return NewError(KindIO, "creating temp HEAD file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(string(commit) + "\n"); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return NewError(KindIO, "writing HEAD", err)
	}
	_ = tmp.Close()
	if err := os.Rename(tmpPath, headPath); err != nil {
		_ = os.Remove(tmpPath)
		return NewError(KindIO, "finalizing HEAD write", err)
	}

	r.headDetached = true
	r.headRef = ""
	r.head = commit
	return nil
}

// UpdateBranch moves an existing branch to point at target (used by commit
// and merge to advance the current branch tip).
func (r *Repository) UpdateBranch(name string, target Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	refPath := "refs/heads/" + name
	if err := r.writeRefAtomic(refPath, target); err != nil {
		return err
	}
	r.refs[refPath] = target
	if !r.headDetached && r.headRef == refPath {
		r.head = target
	}
	return nil
}

// PackRefs writes every loose ref into a single packed-refs file and
// removes the loose ref files, annotating each packed annotated-tag entry
// with its peeled commit hash on a following "^<hash>" line, per the
// packed-refs format.
func (r *Repository) PackRefs() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	annotatedTargets := make(map[Hash]Hash, len(r.tags))
	for _, tag := range r.tags {
		annotatedTargets[tag.ID] = tag.Object
	}

	names := make([]string, 0, len(r.refs))
	for name := range r.refs {
		names = append(names, name)
	}
	sortStrings(names)

	packed := make([]PackedRef, 0, len(names))
	var buf strings.Builder
	buf.WriteString("# pack-refs with: peeled fully-peeled sorted\n")
	for _, name := range names {
		hash := r.refs[name]
		fmt.Fprintf(&buf, "%s %s\n", hash, name)
		pr := PackedRef{Name: name, Hash: hash}
		if peeled, ok := annotatedTargets[hash]; ok {
			fmt.Fprintf(&buf, "^%s\n", peeled)
			pr.Peeled = peeled
		}
		packed = append(packed, pr)
	}

	packedPath := filepath.Join(r.gitDir, "packed-refs")
	tmp, err := os.CreateTemp(r.gitDir, ".tmp-packed-refs-*")
	if err != nil {
		return NewError(KindIO, "creating temp packed-refs file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(buf.String()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return NewError(KindIO, "writing packed-refs", err)
	}
	_ = tmp.Close()
	if err := os.Rename(tmpPath, packedPath); err != nil {
		_ = os.Remove(tmpPath)
		return NewError(KindIO, "finalizing packed-refs write", err)
	}

	for _, name := range names {
		if strings.HasPrefix(name, "refs/heads/") || strings.HasPrefix(name, "refs/tags/") {
			_ = os.Remove(filepath.Join(r.gitDir, name))
		}
	}

	r.packedRefs = packed

	return nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
