package main

import (
	"fmt"
	"os"

	"github.com/witvcs/wit/internal/gitcore"
	"github.com/witvcs/wit/internal/termcolor"
)

func runStash(repo *gitcore.Repository, args []string, _ *termcolor.Writer) int {
	if len(args) == 0 || args[0] != "list" {
		fmt.Fprintln(os.Stderr, "usage: wit stash list")
		return 1
	}

	stashes := repo.Stashes()
	for i, s := range stashes {
		fmt.Printf("stash@{%d}: %s\n", i, s.Message)
	}

	return 0
}
