package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/witvcs/wit/internal/gitcore"
	"github.com/witvcs/wit/internal/termcolor"
)

func runTag(repo *gitcore.Repository, args []string, _ *termcolor.Writer) int {
	del := false
	message := ""
	var name string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-d", "--delete":
			del = true
		case "-m", "--message":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "fatal: option -m requires a value")
				return 128
			}
			message = args[i+1]
			i++
		default:
			if !strings.HasPrefix(args[i], "-") {
				name = args[i]
			}
		}
	}

	if del {
		if name == "" {
			fmt.Fprintln(os.Stderr, "usage: wit tag -d <name>")
			return 1
		}
		if err := repo.DeleteTag(name); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		fmt.Printf("Deleted tag %s\n", name)
		return 0
	}

	if name != "" {
		head := repo.Head()
		if head == "" {
			fmt.Fprintln(os.Stderr, "fatal: cannot create a tag with no commits yet")
			return 128
		}
		if _, err := repo.CreateTag(name, head, resolveAuthor(), message); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		return 0
	}

	names := repo.TagNames()
	sort.Strings(names)

	for _, name := range names {
		fmt.Println(name)
	}

	return 0
}
