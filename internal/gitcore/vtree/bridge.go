package vtree

import (
	"fmt"
	"time"

	"github.com/witvcs/wit/internal/gitcore"
)

// Export recursively synthesizes tree objects from t's current contents
// (children before parents, entries sorted per gitcore.NewTree) and writes
// blobs for every file, returning the resulting root tree's hash. It does
// not touch HEAD, any branch, or the working directory — callers that want
// a full commit should use Commit instead.
func (t *Tree) Export(repo *gitcore.Repository) (gitcore.Hash, error) {
	return exportNode(repo, t.root)
}

func exportNode(repo *gitcore.Repository, n *node) (gitcore.Hash, error) {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}

	entries := make([]gitcore.TreeEntry, 0, len(names))
	for _, name := range names {
		child := n.children[name]
		if child.isDir {
			hash, err := exportNode(repo, child)
			if err != nil {
				return "", err
			}
			entries = append(entries, gitcore.TreeEntry{
				Name: name,
				Mode: "40000",
				Type: "tree",
				ID:   hash,
			})
			continue
		}
		blobHash, err := repo.WriteRaw(gitcore.BlobObject, child.content)
		if err != nil {
			return "", fmt.Errorf("vtree: writing blob for %s: %w", name, err)
		}
		entries = append(entries, gitcore.TreeEntry{
			Name: name,
			Mode: fmt.Sprintf("%o", child.mode),
			Type: "blob",
			ID:   blobHash,
		})
	}

	tree := gitcore.NewTree(entries)
	hash, err := repo.WriteObject(tree)
	if err != nil {
		return "", fmt.Errorf("vtree: writing tree: %w", err)
	}
	return hash, nil
}

// Import rebuilds an in-memory Tree from the git tree rooted at treeHash,
// descending through every subtree and reading every blob's content.
func Import(repo *gitcore.Repository, treeHash gitcore.Hash) (*Tree, error) {
	t := New()
	if treeHash == "" {
		return t, nil
	}
	if err := importNode(repo, treeHash, t.root); err != nil {
		return nil, err
	}
	return t, nil
}

func importNode(repo *gitcore.Repository, treeHash gitcore.Hash, dst *node) error {
	tree, err := repo.GetTree(treeHash)
	if err != nil {
		return fmt.Errorf("vtree: reading tree %s: %w", treeHash, err)
	}
	for _, entry := range tree.Entries {
		if entry.Type == "tree" || entry.Mode == "40000" || entry.Mode == "040000" {
			child := newDirNode()
			if err := importNode(repo, entry.ID, child); err != nil {
				return err
			}
			dst.children[entry.Name] = child
			continue
		}
		if entry.Mode == "160000" {
			// Gitlinks have no blob content to import; skip, matching the
			// on-disk checkout path's submodule scope.
			continue
		}
		content, err := repo.GetBlob(entry.ID)
		if err != nil {
			return fmt.Errorf("vtree: reading blob %s for %s: %w", entry.ID, entry.Name, err)
		}
		mode := uint32(DefaultFileMode)
		if parsed, err := parseOctalMode(entry.Mode); err == nil {
			mode = parsed
		}
		dst.children[entry.Name] = &node{content: content, mode: mode}
	}
	return nil
}

func parseOctalMode(s string) (uint32, error) {
	var v uint32
	_, err := fmt.Sscanf(s, "%o", &v)
	return v, err
}

// resolveRefName resolves a branch name, tag name, "HEAD", or literal hash
// to a commit hash, the same precedence order the CLI's ref arguments use.
func resolveRefName(repo *gitcore.Repository, refName string) (gitcore.Hash, error) {
	if refName == "" || refName == "HEAD" {
		head := repo.Head()
		if head == "" {
			return "", gitcore.NewError(gitcore.KindNotFound, "HEAD has no commits yet", nil)
		}
		return head, nil
	}
	if branches := repo.Branches(); branches != nil {
		if hash, ok := branches[refName]; ok {
			return hash, nil
		}
	}
	if tags := repo.Tags(); tags != nil {
		if hash, ok := tags[refName]; ok {
			return repo.ParseHash(hash)
		}
	}
	return repo.ParseHash(refName)
}

// Checkout resolves refName through the repository's branches/tags/HEAD,
// reads its commit and tree, and replaces t's in-memory contents with the
// tree's, recording BaseCommit/BaseTree for a subsequent Commit or Status.
func (t *Tree) Checkout(repo *gitcore.Repository, refName string) error {
	commitHash, err := resolveRefName(repo, refName)
	if err != nil {
		return err
	}
	commit, err := repo.GetCommit(commitHash)
	if err != nil {
		return fmt.Errorf("vtree: reading commit %s: %w", commitHash, err)
	}
	imported, err := Import(repo, commit.Tree)
	if err != nil {
		return err
	}
	t.root = imported.root
	t.BaseCommit = Hash(commitHash)
	t.BaseTree = Hash(commit.Tree)
	return nil
}

// Commit synthesizes tree objects from t's current contents, writes a
// commit object with parent set to BaseCommit (if any, else the
// repository's current HEAD, else no parents), and advances the current
// branch (or detached HEAD) to the new commit. BaseCommit/BaseTree are
// updated to the new commit and tree on success.
func (t *Tree) Commit(repo *gitcore.Repository, message string, author gitcore.Signature) (gitcore.Hash, error) {
	treeHash, err := t.Export(repo)
	if err != nil {
		return "", err
	}

	var parents []gitcore.Hash
	switch {
	case t.BaseCommit != "":
		parents = []gitcore.Hash{gitcore.Hash(t.BaseCommit)}
	case repo.Head() != "":
		parents = []gitcore.Hash{repo.Head()}
	}

	if author.When.IsZero() {
		author.When = time.Now()
	}
	commit := &gitcore.Commit{
		Tree:      treeHash,
		Parents:   parents,
		Author:    author,
		Committer: author,
		Message:   message,
	}
	commitHash, err := repo.WriteObject(commit)
	if err != nil {
		return "", fmt.Errorf("vtree: writing commit: %w", err)
	}

	if repo.HeadDetached() {
		if err := repo.SetHeadDetached(commitHash); err != nil {
			return "", err
		}
	} else if branch := repo.HeadRef(); branch != "" {
		if err := repo.UpdateBranch(branchNameFromRef(branch), commitHash); err != nil {
			return "", err
		}
	}

	t.BaseCommit = Hash(commitHash)
	t.BaseTree = Hash(treeHash)
	return commitHash, nil
}

func branchNameFromRef(ref string) string {
	const prefix = "refs/heads/"
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ref
}

// StatusEntry classifies one path's change relative to BaseTree.
type StatusEntry struct {
	Path   string
	Status string // "added", "deleted", "modified"
}

// Status compares the in-memory file set against BaseTree's blob set,
// classifying each differing path by hash comparison.
func (t *Tree) Status(repo *gitcore.Repository) ([]StatusEntry, error) {
	current := make(map[string]Stat)
	entries, err := t.ListRecursive("")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		current[e.Path] = e
	}

	baseHashes := make(map[string]gitcore.Hash)
	if t.BaseTree != "" {
		baseEntries, err := flattenGitTree(repo, gitcore.Hash(t.BaseTree), "")
		if err != nil {
			return nil, err
		}
		for path, hash := range baseEntries {
			baseHashes[path] = hash
		}
	}

	var result []StatusEntry
	for path := range current {
		content, err := t.Read(path)
		if err != nil {
			return nil, err
		}
		currentHash := repo.HashContent(gitcore.BlobObject, content)
		if baseHash, ok := baseHashes[path]; !ok {
			result = append(result, StatusEntry{Path: path, Status: "added"})
		} else if baseHash != currentHash {
			result = append(result, StatusEntry{Path: path, Status: "modified"})
		}
	}
	for path := range baseHashes {
		if _, stillPresent := current[path]; !stillPresent {
			result = append(result, StatusEntry{Path: path, Status: "deleted"})
		}
	}
	return result, nil
}

func flattenGitTree(repo *gitcore.Repository, treeHash gitcore.Hash, prefix string) (map[string]gitcore.Hash, error) {
	tree, err := repo.GetTree(treeHash)
	if err != nil {
		return nil, err
	}
	out := make(map[string]gitcore.Hash)
	for _, entry := range tree.Entries {
		full := entry.Name
		if prefix != "" {
			full = prefix + "/" + entry.Name
		}
		if entry.Type == "tree" || entry.Mode == "40000" || entry.Mode == "040000" {
			sub, err := flattenGitTree(repo, entry.ID, full)
			if err != nil {
				return nil, err
			}
			for k, v := range sub {
				out[k] = v
			}
			continue
		}
		out[full] = entry.ID
	}
	return out, nil
}

// Log walks commits reachable from HEAD along the first parent, returning
// at most limit commits, newest first.
func Log(repo *gitcore.Repository, limit int) ([]*gitcore.Commit, error) {
	head := repo.Head()
	if head == "" {
		return nil, nil
	}
	var out []*gitcore.Commit
	current := head
	for len(out) < limit || limit <= 0 {
		commit, err := repo.GetCommit(current)
		if err != nil {
			break
		}
		out = append(out, commit)
		if len(commit.Parents) == 0 {
			break
		}
		current = commit.Parents[0]
	}
	return out, nil
}
