package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/witvcs/wit/internal/gitcore"
)

func runCheckout(repo *gitcore.Repository, args []string) int {
	force := false
	var target string
	for _, a := range args {
		switch a {
		case "-f", "--force":
			force = true
		default:
			if !strings.HasPrefix(a, "-") {
				target = a
			}
		}
	}
	if target == "" {
		fmt.Fprintln(os.Stderr, "usage: wit checkout [-f] <branch-or-commit>")
		return 1
	}

	commitHash, err := resolveCommitish(repo, target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	commit, err := repo.GetCommit(commitHash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	if err := repo.Checkout(commit.Tree, force); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	if _, isBranch := repo.Branches()[target]; isBranch {
		if err := repo.SetHeadSymbolic(target); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		fmt.Printf("Switched to branch '%s'\n", target)
	} else {
		if err := repo.SetHeadDetached(commitHash); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		fmt.Printf("HEAD is now at %s\n", commitHash.Short())
	}
	return 0
}

// resolveCommitish resolves a branch name, tag name, or raw hash to a commit
// hash, trying each in turn the way real Git's revision parser does for a
// single bare ref/hash argument.
func resolveCommitish(repo *gitcore.Repository, ref string) (gitcore.Hash, error) {
	if ref == "HEAD" {
		return repo.Head(), nil
	}
	if hash, ok := repo.Branches()[ref]; ok {
		return hash, nil
	}
	if hashStr, ok := repo.Tags()[ref]; ok {
		hash, err := repo.ParseHash(hashStr)
		if err != nil {
			return "", err
		}
		if tag, err := repo.GetTag(hash); err == nil {
			return tag.Object, nil
		}
		return hash, nil
	}
	return repo.ParseHash(ref)
}

// branchRefName strips the "refs/heads/" prefix from a full ref name,
// returning "" for anything else (a detached HEAD, or a symref this
// implementation doesn't otherwise recognize).
func branchRefName(ref string) string {
	const prefix = "refs/heads/"
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ""
}
