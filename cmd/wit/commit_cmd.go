package main

import (
	"fmt"
	"os"

	"github.com/witvcs/wit/internal/gitcore"
)

func runCommit(repo *gitcore.Repository, args []string) int {
	message := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-m", "--message":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "fatal: option -m requires a value")
				return 128
			}
			message = args[i+1]
			i++
		}
	}
	if message == "" {
		fmt.Fprintln(os.Stderr, "fatal: no commit message provided (use -m)")
		return 128
	}

	idx, err := gitcore.ReadIndex(repo.GitDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	if len(idx.ByPath) == 0 {
		fmt.Println("nothing to commit, working tree clean")
		return 1
	}

	commitHash, err := repo.CommitIndex(idx, message, resolveAuthor())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	fmt.Printf("[%s] %s\n", commitHash.Short(), message)
	return 0
}
