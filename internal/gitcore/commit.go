package gitcore

import (
	"fmt"
	"strings"
)

// indexTrieNode mirrors merge_apply.go's pathTrieNode, but keyed off index
// entries rather than merge results — kept separate because the two
// builders serve different inputs (IndexEntry vs. mergedFile) and neither
// gitcore nor its own vtree subpackage can import the other's tree-builder
// without an import cycle.
type indexTrieNode struct {
	entry    *IndexEntry
	children map[string]*indexTrieNode
}

// buildTreeFromIndex assembles every stage-0 entry in idx into nested Tree
// objects, writes them bottom-up, and returns the root tree's hash. An
// empty index produces the canonical empty tree.
func (r *Repository) buildTreeFromIndex(idx *Index) (Hash, error) {
	root := &indexTrieNode{children: make(map[string]*indexTrieNode)}
	for path, entry := range idx.ByPath {
		segments := strings.Split(path, "/")
		cur := root
		for i, seg := range segments {
			if i == len(segments)-1 {
				cur.children[seg] = &indexTrieNode{entry: entry}
				continue
			}
			child, ok := cur.children[seg]
			if !ok || child.entry != nil {
				child = &indexTrieNode{children: make(map[string]*indexTrieNode)}
				cur.children[seg] = child
			}
			cur = child
		}
	}
	return r.writeIndexTrieNode(root)
}

func (r *Repository) writeIndexTrieNode(n *indexTrieNode) (Hash, error) {
	entries := make([]TreeEntry, 0, len(n.children))
	for name, child := range n.children {
		if child.entry != nil {
			entries = append(entries, TreeEntry{
				Name: name,
				Mode: fmt.Sprintf("%o", child.entry.Mode),
				Type: "blob",
				ID:   child.entry.Hash,
			})
			continue
		}
		subHash, err := r.writeIndexTrieNode(child)
		if err != nil {
			return "", err
		}
		entries = append(entries, TreeEntry{
			Name: name,
			Mode: "40000",
			Type: "tree",
			ID:   subHash,
		})
	}
	tree := NewTree(entries)
	return r.WriteObject(tree)
}

// CommitIndex synthesizes a tree from the current index, writes a commit
// object with that tree, message, and author/committer, and advances HEAD —
// the current branch if symbolic, or HEAD itself if detached. Parents are
// the current HEAD commit if any exist, else none (the repository's first
// commit). Returns the new commit's hash.
func (r *Repository) CommitIndex(idx *Index, message string, author Signature) (Hash, error) {
	treeHash, err := r.buildTreeFromIndex(idx)
	if err != nil {
		return "", fmt.Errorf("CommitIndex: building tree: %w", err)
	}

	var parents []Hash
	if head := r.Head(); head != "" {
		parents = []Hash{head}
	}

	commit := &Commit{
		Tree:      treeHash,
		Parents:   parents,
		Author:    author,
		Committer: author,
		Message:   message,
	}
	commitHash, err := r.WriteObject(commit)
	if err != nil {
		return "", fmt.Errorf("CommitIndex: writing commit: %w", err)
	}

	if r.HeadDetached() {
		if err := r.SetHeadDetached(commitHash); err != nil {
			return "", err
		}
	} else if branch := branchRefName(r.HeadRef()); branch != "" {
		if _, exists := r.Branches()[branch]; exists {
			if err := r.UpdateBranch(branch, commitHash); err != nil {
				return "", err
			}
		} else if err := r.CreateBranch(branch, commitHash); err != nil {
			return "", err
		}
	} else {
		return "", NewError(KindInvalid, "CommitIndex: repository has no HEAD to advance", nil)
	}

	return commitHash, nil
}
