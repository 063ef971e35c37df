package gitcore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Git file modes this engine materializes directly onto disk. Gitlinks
// (160000) are skipped — this engine has no submodule support, matching
// the teacher's original scope.
const (
	modeExecutableFile = 0o100755
	modeSymlink        = 0o120000
)

// treeFile is one flattened (path, blob hash, mode) triple produced while
// walking a tree, used as the common currency between Materialize and the
// working-tree status/clobber check.
type treeFile struct {
	Path string
	Hash Hash
	Mode uint32
}

// flattenTreeFiles walks the tree rooted at treeHash and returns every blob
// or symlink leaf as a treeFile, skipping gitlinks. Unlike flattenTree in
// status.go (which only needs path->hash for comparison), this also carries
// the entry mode so Materialize can restore executable bits and symlinks.
func flattenTreeFiles(repo *Repository, treeHash Hash, prefix string) ([]treeFile, error) {
	tree, err := repo.GetTree(treeHash)
	if err != nil {
		return nil, fmt.Errorf("flattenTreeFiles: reading tree %s: %w", treeHash, err)
	}

	var out []treeFile
	for _, entry := range tree.Entries {
		fullPath := entry.Name
		if prefix != "" {
			fullPath = prefix + "/" + entry.Name
		}

		if isTreeEntry(entry) {
			sub, err := flattenTreeFiles(repo, entry.ID, fullPath)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}

		if isSubmodule(entry) {
			continue
		}
		mode, err := strconv.ParseUint(entry.Mode, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("flattenTreeFiles: invalid mode %q for %s: %w", entry.Mode, fullPath, err)
		}
		out = append(out, treeFile{Path: fullPath, Hash: entry.ID, Mode: uint32(mode)})
	}
	return out, nil
}

// Materialize writes every file recorded in the tree rooted at treeHash onto
// disk under repo.WorkDir(), creating parent directories as needed, and
// rewrites the index to match exactly. Files tracked by the current index
// but absent from treeHash are removed from disk. It does not touch files
// that are untracked in both the old index and treeHash.
//
// Materialize never checks for a dirty working tree itself — callers that
// need the clobber guard should call Checkout instead.
func (r *Repository) Materialize(treeHash Hash) error {
	files, err := flattenTreeFiles(r, treeHash, "")
	if err != nil {
		return fmt.Errorf("Materialize: flattening tree: %w", err)
	}

	oldIndex, err := ReadIndex(r.GitDir())
	if err != nil {
		return fmt.Errorf("Materialize: reading index: %w", err)
	}

	wanted := make(map[string]treeFile, len(files))
	for _, f := range files {
		wanted[f.Path] = f
	}

	workDir := r.WorkDir()
	newIndex := &Index{Version: 2, ByPath: make(map[string]*IndexEntry, len(files))}

	for _, f := range files {
		content, err := r.GetBlob(f.Hash)
		if err != nil {
			return NewError(KindIO, fmt.Sprintf("Materialize: reading blob for %s", f.Path), err)
		}

		diskPath := filepath.Join(workDir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(diskPath), 0o755); err != nil {
			return NewError(KindIO, fmt.Sprintf("Materialize: creating parent dirs for %s", f.Path), err)
		}

		if err := writeWorkingTreeFile(diskPath, f.Mode, content); err != nil {
			return NewError(KindIO, fmt.Sprintf("Materialize: writing %s", f.Path), err)
		}

		newIndex.Add(f.Path, f.Hash, f.Mode, uint32(len(content)), time.Now()) //nolint:gosec // G115: blob sizes are bounded by maxDecompressedSize
	}

	// Remove files that were tracked before but aren't part of the new tree.
	for path := range oldIndex.ByPath {
		if _, stillWanted := wanted[path]; stillWanted {
			continue
		}
		diskPath := filepath.Join(workDir, filepath.FromSlash(path))
		if err := os.Remove(diskPath); err != nil && !os.IsNotExist(err) {
			return NewError(KindIO, fmt.Sprintf("Materialize: removing %s", path), err)
		}
	}

	return newIndex.Write(r.GitDir())
}

// writeWorkingTreeFile writes content to diskPath honoring the tree entry
// mode: a symlink entry's content is the link target, an executable entry
// gets 0755, everything else gets the standard 0644.
func writeWorkingTreeFile(diskPath string, mode uint32, content []byte) error {
	if mode == modeSymlink {
		_ = os.Remove(diskPath)
		return os.Symlink(string(content), diskPath)
	}

	perm := os.FileMode(0o644)
	if mode == modeExecutableFile {
		perm = 0o755
	}
	return os.WriteFile(diskPath, content, perm)
}

// Checkout switches the working tree and index to the state recorded by
// targetTree, refusing when doing so would silently discard unstaged
// working-tree changes (the "clobber guard"). A path is considered a
// clobber risk when it differs between the current index and the on-disk
// file, AND the incoming tree would also change or remove it.
//
// Passing force=true skips the guard, matching `git checkout -f`.
func (r *Repository) Checkout(targetTree Hash, force bool) error {
	if !force {
		if err := r.checkClobber(targetTree); err != nil {
			return err
		}
	}
	return r.Materialize(targetTree)
}

// checkClobber returns gitcore.ErrClobberWorkingTree (wrapped with the
// offending paths) if switching to targetTree would overwrite working-tree
// changes that are not reflected in the index.
func (r *Repository) checkClobber(targetTree Hash) error {
	status, err := ComputeWorkingTreeStatus(r)
	if err != nil {
		return fmt.Errorf("checkClobber: computing status: %w", err)
	}

	dirty := make(map[string]struct{})
	for _, f := range status.Files {
		if f.WorkStatus != "" {
			dirty[f.Path] = struct{}{}
		}
	}
	if len(dirty) == 0 {
		return nil
	}

	incoming, err := flattenTreeFiles(r, targetTree, "")
	if err != nil {
		return fmt.Errorf("checkClobber: flattening target tree: %w", err)
	}
	incomingByPath := make(map[string]Hash, len(incoming))
	for _, f := range incoming {
		incomingByPath[f.Path] = f.Hash
	}

	index, err := ReadIndex(r.GitDir())
	if err != nil {
		return fmt.Errorf("checkClobber: reading index: %w", err)
	}

	var conflicts []string
	for path := range dirty {
		entry, inIndex := index.ByPath[path]
		targetHash, inTarget := incomingByPath[path]
		switch {
		case !inTarget:
			// Target removes this path entirely — dirty local edits would be lost.
			conflicts = append(conflicts, path)
		case inIndex && entry.Hash != targetHash:
			// Target changes this path to different content than the dirty index/disk state.
			conflicts = append(conflicts, path)
		}
	}

	if len(conflicts) > 0 {
		return NewError(KindClobberWorkingTree,
			fmt.Sprintf("checkout would overwrite local changes in: %v", conflicts), nil)
	}
	return nil
}
