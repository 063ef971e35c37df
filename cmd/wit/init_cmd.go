package main

import (
	"fmt"
	"os"

	"github.com/witvcs/wit/internal/gitcore"
)

func runInit(args []string) int {
	path := "."
	bare := false
	for _, a := range args {
		switch a {
		case "--bare":
			bare = true
		default:
			if len(a) > 0 && a[0] != '-' {
				path = a
			}
		}
	}

	repo, err := gitcore.Init(path, gitcore.InitOptions{Bare: bare})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	kind := "Initialized empty wit repository"
	fmt.Printf("%s in %s\n", kind, repo.GitDir())
	return 0
}
