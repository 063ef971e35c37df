package gitcore

import (
	"fmt"
	"sort"
	"strings"
)

// MergeResult is the outcome of Merge: either a fast-forward (no new commit,
// the branch should simply advance to TheirsHash), a trivial merge that
// produced a clean commit, or a merge that produced conflicts requiring the
// caller to resolve Conflicts before committing.
type MergeResult struct {
	FastForward bool
	UpToDate    bool
	CommitHash  Hash
	TreeHash    Hash
	Conflicts   []string
}

// mergedFile is the resolved (hash, mode) pair a path ends up with after
// three-way reconciliation, prior to being assembled into tree objects.
type mergedFile struct {
	hash Hash
	mode uint32
}

// Merge performs a three-way merge of theirsHash into oursHash at tree
// granularity. If theirs is already reachable from ours, it reports
// UpToDate. If ours equals the merge base, it reports FastForward and the
// caller should advance the current branch directly to theirsHash without
// calling Merge again. Otherwise it builds the merged tree, writes a merge
// commit with parents [ours, theirs], and returns its hash — unless any
// path conflicted, in which case no commit is written and Conflicts lists
// every such path; CommitHash is then empty and TreeHash is the merged tree,
// written as loose objects with conflict markers in each conflicted blob, so
// the caller can inspect it, but the branch should not advance until
// conflicts are resolved and a new commit made.
func (r *Repository) Merge(oursHash, theirsHash Hash, author Signature, message string) (*MergeResult, error) {
	baseHash, err := MergeBase(r, oursHash, theirsHash)
	if err != nil {
		return nil, fmt.Errorf("Merge: finding merge base: %w", err)
	}

	if baseHash == theirsHash {
		return &MergeResult{UpToDate: true, CommitHash: oursHash}, nil
	}
	if baseHash == oursHash {
		return &MergeResult{FastForward: true, CommitHash: theirsHash}, nil
	}

	oursCommit, err := r.GetCommit(oursHash)
	if err != nil {
		return nil, fmt.Errorf("Merge: reading ours commit: %w", err)
	}
	theirsCommit, err := r.GetCommit(theirsHash)
	if err != nil {
		return nil, fmt.Errorf("Merge: reading theirs commit: %w", err)
	}
	var baseTree Hash
	if baseHash != "" {
		baseCommit, err := r.GetCommit(baseHash)
		if err != nil {
			return nil, fmt.Errorf("Merge: reading base commit: %w", err)
		}
		baseTree = baseCommit.Tree
	}

	merged, conflicts, err := r.mergeTrees(baseTree, oursCommit.Tree, theirsCommit.Tree)
	if err != nil {
		return nil, fmt.Errorf("Merge: reconciling trees: %w", err)
	}

	treeHash, err := r.buildTreeFromPaths(merged)
	if err != nil {
		return nil, fmt.Errorf("Merge: building merged tree: %w", err)
	}

	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return &MergeResult{TreeHash: treeHash, Conflicts: conflicts}, nil
	}

	commit := &Commit{
		Tree:      treeHash,
		Parents:   []Hash{oursHash, theirsHash},
		Author:    author,
		Committer: author,
		Message:   message,
	}
	commitHash, err := r.WriteObject(commit)
	if err != nil {
		return nil, fmt.Errorf("Merge: writing merge commit: %w", err)
	}

	return &MergeResult{CommitHash: commitHash, TreeHash: treeHash}, nil
}

// mergeTrees reconciles every path across base/ours/theirs per the rule: if
// one side is unchanged from base, take the other; if both sides agree,
// keep that; otherwise the path conflicts and its blob is rewritten with
// conflict markers wrapping each side's content.
func (r *Repository) mergeTrees(baseTree, oursTree, theirsTree Hash) (map[string]mergedFile, []string, error) {
	baseHashes, _, err := r.flattenForMerge(baseTree)
	if err != nil {
		return nil, nil, err
	}
	oursHashes, oursModes, err := r.flattenForMerge(oursTree)
	if err != nil {
		return nil, nil, err
	}
	theirsHashes, theirsModes, err := r.flattenForMerge(theirsTree)
	if err != nil {
		return nil, nil, err
	}

	allPaths := make(map[string]struct{})
	for p := range baseHashes {
		allPaths[p] = struct{}{}
	}
	for p := range oursHashes {
		allPaths[p] = struct{}{}
	}
	for p := range theirsHashes {
		allPaths[p] = struct{}{}
	}

	result := make(map[string]mergedFile, len(allPaths))
	var conflicts []string

	for path := range allPaths {
		b := baseHashes[path]
		o := oursHashes[path]
		t := theirsHashes[path]

		switch {
		case o == t:
			if o == "" {
				continue // deleted on both sides (or never existed)
			}
			result[path] = mergedFile{hash: o, mode: oursModes[path]}

		case o == b:
			if t == "" {
				continue // theirs deleted it, ours left it unchanged
			}
			result[path] = mergedFile{hash: t, mode: theirsModes[path]}

		case t == b:
			if o == "" {
				continue // ours deleted it, theirs left it unchanged
			}
			result[path] = mergedFile{hash: o, mode: oursModes[path]}

		default:
			mergedHash, mode, err := r.writeConflictBlob(path, o, t, oursModes[path], theirsModes[path])
			if err != nil {
				return nil, nil, err
			}
			result[path] = mergedFile{hash: mergedHash, mode: mode}
			conflicts = append(conflicts, path)
		}
	}

	return result, conflicts, nil
}

// writeConflictBlob reads each side's content (treating an absent hash as a
// deleted file, i.e. empty content) and writes a blob containing both
// wrapped in conflict markers.
func (r *Repository) writeConflictBlob(path string, oursHash, theirsHash Hash, oursMode, theirsMode uint32) (Hash, uint32, error) {
	var oursContent, theirsContent []byte
	var err error
	if oursHash != "" {
		oursContent, err = r.GetBlob(oursHash)
		if err != nil {
			return "", 0, fmt.Errorf("writeConflictBlob: reading ours blob for %s: %w", path, err)
		}
	}
	if theirsHash != "" {
		theirsContent, err = r.GetBlob(theirsHash)
		if err != nil {
			return "", 0, fmt.Errorf("writeConflictBlob: reading theirs blob for %s: %w", path, err)
		}
	}

	var buf strings.Builder
	buf.WriteString("<<<<<<< ours\n")
	buf.Write(oursContent)
	if len(oursContent) > 0 && oursContent[len(oursContent)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString("=======\n")
	buf.Write(theirsContent)
	if len(theirsContent) > 0 && theirsContent[len(theirsContent)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString(">>>>>>> theirs\n")

	hash, err := r.WriteRaw(BlobObject, []byte(buf.String()))
	if err != nil {
		return "", 0, err
	}

	mode := oursMode
	if mode == 0 {
		mode = theirsMode
	}
	return hash, mode, nil
}

// flattenForMerge is flattenTreeFiles adapted to the (hash map, mode map)
// shape mergeTrees needs for O(1) per-path lookups across three trees.
func (r *Repository) flattenForMerge(treeHash Hash) (map[string]Hash, map[string]uint32, error) {
	if treeHash == "" {
		return map[string]Hash{}, map[string]uint32{}, nil
	}
	files, err := flattenTreeFiles(r, treeHash, "")
	if err != nil {
		return nil, nil, err
	}
	hashes := make(map[string]Hash, len(files))
	modes := make(map[string]uint32, len(files))
	for _, f := range files {
		hashes[f.Path] = f.Hash
		modes[f.Path] = f.Mode
	}
	return hashes, modes, nil
}

// pathTrieNode is a minimal directory trie used only to assemble a flat
// path->(hash,mode) map back into nested git tree objects, bottom-up.
type pathTrieNode struct {
	file     *mergedFile
	children map[string]*pathTrieNode
}

// buildTreeFromPaths assembles files (full slash-separated paths) into
// nested Tree objects, writes every tree bottom-up, and returns the hash of
// the root tree. An empty input produces the canonical empty tree.
func (r *Repository) buildTreeFromPaths(files map[string]mergedFile) (Hash, error) {
	root := &pathTrieNode{children: make(map[string]*pathTrieNode)}
	for path, mf := range files {
		segments := strings.Split(path, "/")
		cur := root
		for i, seg := range segments {
			if i == len(segments)-1 {
				cur.children[seg] = &pathTrieNode{file: &mf}
				continue
			}
			child, ok := cur.children[seg]
			if !ok || child.file != nil {
				child = &pathTrieNode{children: make(map[string]*pathTrieNode)}
				cur.children[seg] = child
			}
			cur = child
		}
	}
	return r.writeTrieNode(root)
}

func (r *Repository) writeTrieNode(n *pathTrieNode) (Hash, error) {
	entries := make([]TreeEntry, 0, len(n.children))
	for name, child := range n.children {
		if child.file != nil {
			entries = append(entries, TreeEntry{
				Name: name,
				Mode: fmt.Sprintf("%o", child.file.mode),
				Type: "blob",
				ID:   child.file.hash,
			})
			continue
		}
		subHash, err := r.writeTrieNode(child)
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
