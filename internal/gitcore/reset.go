package gitcore

import (
	"fmt"
	"time"
)

// ResetMode selects how much of the repository state Reset rewrites.
type ResetMode int

const (
	// ResetSoft moves HEAD (or the current branch) only; index and
	// working tree are left untouched.
	ResetSoft ResetMode = iota
	// ResetMixed does the above, plus reloads the index from the new
	// HEAD's tree; the working tree is left untouched.
	ResetMixed
	// ResetHard does the above, plus forcibly re-materializes the
	// working tree from the new tree, discarding uncommitted changes.
	ResetHard
)

// Reset moves the current branch (or detached HEAD) to target, per mode.
// It refuses nothing — ResetHard is explicitly destructive, matching
// `git reset --hard`'s real behavior, unlike Checkout's clobber guard.
func (r *Repository) Reset(target Hash, mode ResetMode) error {
	commit, err := r.GetCommit(target)
	if err != nil {
		return fmt.Errorf("Reset: reading target commit %s: %w", target, err)
	}

	if r.HeadDetached() {
		if err := r.SetHeadDetached(target); err != nil {
			return err
		}
	} else if branch := r.HeadRef(); branch != "" {
		if err := r.UpdateBranch(branchRefName(branch), target); err != nil {
			return err
		}
	} else {
		return NewError(KindInvalid, "Reset: repository has no HEAD to move", nil)
	}

	if mode == ResetSoft {
		return nil
	}

	if mode == ResetMixed {
		return r.reloadIndexFromTree(commit.Tree)
	}

	return r.Materialize(commit.Tree)
}

// branchRefName strips the refs/heads/ prefix HeadRef() reports, since
// UpdateBranch takes a bare branch name.
func branchRefName(ref string) string {
	const prefix = "refs/heads/"
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ref
}

// reloadIndexFromTree rewrites the index to exactly match treeHash's blob
// set, without touching any file on disk — the "mixed" reset behavior.
func (r *Repository) reloadIndexFromTree(treeHash Hash) error {
	files, err := flattenTreeFiles(r, treeHash, "")
	if err != nil {
		return fmt.Errorf("reloadIndexFromTree: flattening tree: %w", err)
	}

	idx := &Index{Version: 2, ByPath: make(map[string]*IndexEntry, len(files))}
	now := time.Now()
	for _, f := range files {
		content, err := r.GetBlob(f.Hash)
		if err != nil {
			return fmt.Errorf("reloadIndexFromTree: reading blob for %s: %w", f.Path, err)
		}
		idx.Add(f.Path, f.Hash, f.Mode, uint32(len(content)), now) //nolint:gosec // G115: blob sizes are bounded by maxDecompressedSize
	}
	return idx.Write(r.GitDir())
}
