package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/witvcs/wit/internal/gitcore"
	"github.com/witvcs/wit/internal/transport"
)

func runClone(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: wit clone <url> [<directory>]")
		return 1
	}
	url := args[0]
	var dir string
	if len(args) > 1 {
		dir = args[1]
	} else {
		dir = strings.TrimSuffix(path.Base(url), ".git")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := transport.NewClient(url, &http.Client{Timeout: 2 * time.Minute})

	refs, err := client.DiscoverRefs(ctx, transport.ServiceUploadPack)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	if len(refs) == 0 {
		fmt.Fprintln(os.Stderr, "fatal: remote repository has no refs to clone")
		return 128
	}

	var wants []gitcore.Hash
	for _, r := range refs {
		if strings.HasPrefix(r.Name, "refs/heads/") || strings.HasPrefix(r.Name, "refs/tags/") {
			wants = append(wants, r.Hash)
		}
	}

	sp := startTransfer(fmt.Sprintf("Cloning from %s", url))
	packData, err := client.FetchPack(ctx, wants, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	repo, err := gitcore.Init(dir, gitcore.InitOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	if err := repo.AddRemote("origin", url); err != nil {
		fmt.Fprintf(os.Stderr, "warning: recording origin remote: %v\n", err)
	}
	if len(packData) > 0 {
		installed, err := repo.InstallPack(packData)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		finishTransfer(sp, "Receiving objects", len(installed), len(packData))
	} else {
		finishTransfer(sp, "Receiving objects", 0, 0)
	}

	var branches []string
	for _, r := range refs {
		switch {
		case strings.HasPrefix(r.Name, "refs/heads/"):
			name := strings.TrimPrefix(r.Name, "refs/heads/")
			if err := repo.CreateBranch(name, r.Hash); err != nil {
				fmt.Fprintf(os.Stderr, "warning: creating branch %s: %v\n", name, err)
				continue
			}
			branches = append(branches, name)
		case strings.HasPrefix(r.Name, "refs/tags/"):
			name := strings.TrimPrefix(r.Name, "refs/tags/")
			if _, err := repo.CreateTag(name, r.Hash, gitcore.Signature{}, ""); err != nil {
				fmt.Fprintf(os.Stderr, "warning: creating tag %s: %v\n", name, err)
			}
		}
	}

	defaultBranch := chooseDefaultBranch(branches)
	if defaultBranch != "" {
		head := repo.Branches()[defaultBranch]
		if commit, err := repo.GetCommit(head); err == nil {
			if err := repo.Checkout(commit.Tree, true); err != nil {
				fmt.Fprintf(os.Stderr, "warning: checking out %s: %v\n", defaultBranch, err)
			}
		}
		if err := repo.SetHeadSymbolic(defaultBranch); err != nil {
			fmt.Fprintf(os.Stderr, "warning: setting HEAD: %v\n", err)
		}
	}

	fmt.Printf("Cloned into '%s'\n", dir)
	return 0
}

// chooseDefaultBranch prefers "main", then "master", then the first branch
// alphabetically, since the discovery response here carries no HEAD symref.
func chooseDefaultBranch(branches []string) string {
	if len(branches) == 0 {
		return ""
	}
	for _, preferred := range []string{"main", "master"} {
		for _, b := range branches {
			if b == preferred {
				return preferred
			}
		}
	}
	sorted := append([]string(nil), branches...)
	sort.Strings(sorted)
	return sorted[0]
}
