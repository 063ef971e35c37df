package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/witvcs/wit/internal/gitcore"
	"github.com/witvcs/wit/internal/termcolor"
)

func runBranch(repo *gitcore.Repository, args []string, cw *termcolor.Writer) int {
	del := false
	var name string
	for _, a := range args {
		switch a {
		case "-d", "-D", "--delete":
			del = true
		default:
			if !strings.HasPrefix(a, "-") {
				name = a
			}
		}
	}

	if del {
		if name == "" {
			fmt.Fprintln(os.Stderr, "usage: wit branch -d <name>")
			return 1
		}
		if err := repo.DeleteBranch(name); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		fmt.Printf("Deleted branch %s\n", name)
		return 0
	}

	if name != "" {
		head := repo.Head()
		if head == "" {
			fmt.Fprintln(os.Stderr, "fatal: cannot create a branch with no commits yet")
			return 128
		}
		if err := repo.CreateBranch(name, head); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		return 0
	}

	branches := repo.Branches()

	names := make([]string, 0, len(branches))
	for name := range branches {
		names = append(names, name)
	}
	sort.Strings(names)

	// Determine current branch from HEAD symbolic ref
	current := ""
	if ref := repo.HeadRef(); ref != "" {
		current = strings.TrimPrefix(ref, "refs/heads/")
	}

	for _, name := range names {
		if name == current {
			fmt.Printf("* %s\n", cw.Green(name))
		} else {
			fmt.Printf("  %s\n", name)
		}
	}

	return 0
}
