package gitcore

import (
	"fmt"
	"os"
	"path/filepath"
)

// InitOptions configures Init.
type InitOptions struct {
	// Bare creates a repository with no working directory: path itself
	// becomes the git directory instead of path/.git.
	Bare bool
	// HashAlgorithm selects the object-hashing algorithm for the new
	// repository. Defaults to SHA1 when unset (the zero value).
	HashAlgorithm HashAlgorithm
	// InitialBranch names the branch HEAD points to before any commit
	// exists. Defaults to "main".
	InitialBranch string
}

// Init creates the on-disk layout for a new repository at path: objects/,
// refs/heads/, refs/tags/, HEAD pointing at the initial branch, and a
// config file recording the repository format version, hash algorithm, and
// bare flag. It returns an error if path already contains a git directory.
func Init(path string, opts InitOptions) (*Repository, error) {
	branch := opts.InitialBranch
	if branch == "" {
		branch = "main"
	}
	algo := opts.HashAlgorithm
	if algo != SHA256 {
		algo = SHA1
	}

	gitDir := filepath.Join(path, ".git")
	if opts.Bare {
		gitDir = path
	}

	// A bare repository's git directory is path itself, which may already
	// exist as an empty directory; HEAD marks an existing repository there.
	existing := gitDir
	if opts.Bare {
		existing = filepath.Join(gitDir, "HEAD")
	}
	if _, err := os.Stat(existing); err == nil {
		return nil, NewError(KindAlreadyExists, fmt.Sprintf("git directory already exists at %s", gitDir), nil)
	}

	dirs := []string{
		filepath.Join(gitDir, "objects"),
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "tags"),
		filepath.Join(gitDir, "info"),
		filepath.Join(gitDir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, NewError(KindIO, fmt.Sprintf("creating %s", d), err)
		}
	}

	headContent := fmt.Sprintf("ref: refs/heads/%s\n", branch)
	if err := os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte(headContent), 0o644); err != nil {
		return nil, NewError(KindIO, "writing HEAD", err)
	}

	if err := os.WriteFile(filepath.Join(gitDir, "description"), []byte(defaultDescription), 0o644); err != nil {
		return nil, NewError(KindIO, "writing description", err)
	}

	config := renderInitialConfig(opts.Bare, algo)
	if err := os.WriteFile(filepath.Join(gitDir, "config"), []byte(config), 0o644); err != nil {
		return nil, NewError(KindIO, "writing config", err)
	}

	return NewRepository(path)
}

const defaultDescription = "Unnamed repository; edit this file to name it for gitweb.\n"

func renderInitialConfig(bare bool, algo HashAlgorithm) string {
	return fmt.Sprintf(`[core]
	repositoryformatversion = %d
	filemode = true
	bare = %t
[extensions]
	objectformat = %s
`, extensionsFormatVersion(algo), bare, algo.String())
}

// extensionsFormatVersion reports the repositoryformatversion Git itself
// uses once the sha256 extension is in play; sha1 repositories stay at the
// original version 0 for maximum interoperability.
func extensionsFormatVersion(algo HashAlgorithm) int {
	if algo == SHA256 {
		return 1
	}
	return 0
}

// Open opens an existing repository rooted at or above path, validating its
// layout and memoizing its component handles. It is a thin, more
// intention-revealing wrapper over NewRepository for callers (the CLI,
// the daemon) that are opening rather than just resolving a path.
func Open(path string) (*Repository, error) {
	return NewRepository(path)
}

// Find walks up from start until a repository directory is located,
// returning the resolved git and working directory paths without opening
// the repository (no object/ref loading), for callers that only need to
// know whether they're inside a repository.
func Find(start string) (gitDir string, workDir string, err error) {
	return findGitDirectory(start)
}
