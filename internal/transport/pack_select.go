package transport

import (
	"fmt"

	"github.com/witvcs/wit/internal/gitcore"
)

// isSubmoduleEntry mirrors gitcore's own (unexported) submodule check: a
// gitlink entry has no blob to walk into.
func isSubmoduleEntry(entry gitcore.TreeEntry) bool {
	return entry.Mode == "160000"
}

func isTreeEntryMode(entry gitcore.TreeEntry) bool {
	return entry.Type == "tree" || entry.Mode == "040000" || entry.Mode == "40000"
}

// CollectReachable walks every commit reachable from wants — each commit,
// its tree, and every blob/subtree the tree names — skipping anything
// already in haves (or already visited), and returns the result as pack
// entries in discovery order. It approximates the real negotiation's
// "reachable minus common" set without attempting a full multi-round
// have/ack graph walk: a boundary hash present in haves simply isn't
// descended into again. Exported for client-side use (push) as well as the
// server's own upload-pack handler.
func CollectReachable(repo *gitcore.Repository, wants []gitcore.Hash, haves map[gitcore.Hash]bool) ([]gitcore.PackEntry, error) {
	seen := make(map[gitcore.Hash]bool, len(haves)+64)
	for h := range haves {
		seen[h] = true
	}

	var entries []gitcore.PackEntry

	addObject := func(h gitcore.Hash) (alreadySeen bool, err error) {
		if h == "" || seen[h] {
			return true, nil
		}
		seen[h] = true
		payload, objType, err := repo.ReadRaw(h)
		if err != nil {
			return false, fmt.Errorf("collectReachable: reading %s: %w", h, err)
		}
		entries = append(entries, gitcore.PackEntry{ID: h, Type: byte(objType), Payload: payload})
		return false, nil
	}

	var walkTree func(h gitcore.Hash) error
	walkTree = func(h gitcore.Hash) error {
		skip, err := addObject(h)
		if err != nil || skip {
			return err
		}
		tree, err := repo.GetTree(h)
		if err != nil {
			return fmt.Errorf("collectReachable: reading tree %s: %w", h, err)
		}
		for _, e := range tree.Entries {
			if isSubmoduleEntry(e) {
				continue
			}
			if isTreeEntryMode(e) {
				if err := walkTree(e.ID); err != nil {
					return err
				}
				continue
			}
			if _, err := addObject(e.ID); err != nil {
				return err
			}
		}
		return nil
	}

	var walkCommit func(h gitcore.Hash) error
	walkCommit = func(h gitcore.Hash) error {
		skip, err := addObject(h)
		if err != nil || skip {
			return err
		}
		commit, err := repo.GetCommit(h)
		if err != nil {
			return fmt.Errorf("collectReachable: reading commit %s: %w", h, err)
		}
		if err := walkTree(commit.Tree); err != nil {
			return err
		}
		for _, parent := range commit.Parents {
			if err := walkCommit(parent); err != nil {
				return err
			}
		}
		return nil
	}

	for _, want := range wants {
		if err := walkCommit(want); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
