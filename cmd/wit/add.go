package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/witvcs/wit/internal/gitcore"
)

// Git's own tree-entry mode values for a symlink, an executable regular
// file, and an ordinary regular file.
const (
	modeSymlink        = 0o120000
	modeExecutableFile = 0o100755
	modeRegularFile    = 0o100644
)

func runAdd(repo *gitcore.Repository, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: wit add <path>...")
		return 1
	}

	addAll := false
	for _, a := range args {
		if a == "." || a == "-A" || a == "--all" {
			addAll = true
		}
	}

	status, err := gitcore.ComputeWorkingTreeStatus(repo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	idx, err := gitcore.ReadIndex(repo.GitDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	now := time.Now()
	added := 0
	for _, f := range status.Files {
		if !addAll && !matchesRequestedPath(f.Path, args) {
			continue
		}
		if f.WorkStatus == "" && !f.IsUntracked {
			continue
		}
		if f.WorkStatus == statusDeleted {
			idx.Remove(f.Path)
			added++
			continue
		}

		mode, content, err := readWorkingFile(repo.WorkDir(), f.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: reading %s: %v\n", f.Path, err)
			return 128
		}
		hash, err := repo.WriteRaw(gitcore.BlobObject, content)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: writing blob for %s: %v\n", f.Path, err)
			return 128
		}
		idx.Add(f.Path, hash, mode, uint32(len(content)), now) //nolint:gosec // G115: working file sizes are bounded by available memory
		added++
	}

	if err := idx.Write(repo.GitDir()); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: writing index: %v\n", err)
		return 128
	}

	fmt.Printf("added %d path(s) to the index\n", added)
	return 0
}

// matchesRequestedPath reports whether path equals, or lies under, any of
// the requested paths (each cleaned of a trailing slash for prefix matching).
func matchesRequestedPath(path string, requested []string) bool {
	for _, r := range requested {
		r = strings.TrimSuffix(filepath.ToSlash(r), "/")
		if r == "" || r == "." {
			return true
		}
		if path == r || strings.HasPrefix(path, r+"/") {
			return true
		}
	}
	return false
}

// readWorkingFile reads path's content and git file mode (symlink,
// executable, or regular) relative to workDir.
func readWorkingFile(workDir, path string) (mode uint32, content []byte, err error) {
	full := filepath.Join(workDir, path)
	info, err := os.Lstat(full)
	if err != nil {
		return 0, nil, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(full)
		if err != nil {
			return 0, nil, err
		}
		return modeSymlink, []byte(target), nil
	}

	content, err = os.ReadFile(full) //nolint:gosec // G304: path is derived from the repository's own working-tree walk
	if err != nil {
		return 0, nil, err
	}
	if info.Mode()&0o111 != 0 {
		return modeExecutableFile, content, nil
	}
	return modeRegularFile, content, nil
}
