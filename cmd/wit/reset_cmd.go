package main

import (
	"fmt"
	"os"

	"github.com/witvcs/wit/internal/gitcore"
)

func runReset(repo *gitcore.Repository, args []string) int {
	mode := gitcore.ResetMixed
	target := "HEAD"
	for _, a := range args {
		switch a {
		case "--soft":
			mode = gitcore.ResetSoft
		case "--mixed":
			mode = gitcore.ResetMixed
		case "--hard":
			mode = gitcore.ResetHard
		default:
			target = a
		}
	}

	commitHash, err := resolveCommitish(repo, target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	if err := repo.Reset(commitHash, mode); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	fmt.Printf("HEAD is now at %s\n", commitHash.Short())
	return 0
}
