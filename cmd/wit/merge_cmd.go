package main

import (
	"fmt"
	"os"

	"github.com/witvcs/wit/internal/gitcore"
)

func runMerge(repo *gitcore.Repository, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: wit merge <branch-or-commit>")
		return 1
	}

	theirs, err := resolveCommitish(repo, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	ours := repo.Head()

	result, err := repo.Merge(ours, theirs, resolveAuthor(), fmt.Sprintf("Merge %s", args[0]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	switch {
	case result.UpToDate:
		fmt.Println("Already up to date.")
		return 0
	case result.FastForward:
		if err := advanceCurrentBranch(repo, result.CommitHash); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		if err := repo.Checkout(mustCommitTree(repo, result.CommitHash), true); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		fmt.Printf("Fast-forward to %s\n", result.CommitHash.Short())
		return 0
	case len(result.Conflicts) > 0:
		fmt.Println("Automatic merge failed; fix conflicts and then commit the result.")
		for _, path := range result.Conflicts {
			fmt.Printf("CONFLICT: %s\n", path)
		}
		return 1
	default:
		if err := advanceCurrentBranch(repo, result.CommitHash); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		if err := repo.Checkout(result.TreeHash, true); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		fmt.Printf("Merge made by the 'recursive' strategy. [%s]\n", result.CommitHash.Short())
		return 0
	}
}

func mustCommitTree(repo *gitcore.Repository, hash gitcore.Hash) gitcore.Hash {
	commit, err := repo.GetCommit(hash)
	if err != nil {
		return ""
	}
	return commit.Tree
}

// advanceCurrentBranch moves the current branch (or detached HEAD) to
// target, used after a fast-forward or a successful merge commit where the
// branch itself (rather than just the working tree) must move.
func advanceCurrentBranch(repo *gitcore.Repository, target gitcore.Hash) error {
	if repo.HeadDetached() {
		return repo.SetHeadDetached(target)
	}
	branch := repo.HeadRef()
	const prefix = "refs/heads/"
	if len(branch) > len(prefix) && branch[:len(prefix)] == prefix {
		branch = branch[len(prefix):]
	}
	return repo.UpdateBranch(branch, target)
}
