package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/witvcs/wit/internal/gitcore"
	"github.com/witvcs/wit/internal/transport"
)

// runPull fetches the named remote (default "origin") and the current
// branch's upstream ref, then fast-forwards or merges it into HEAD the same
// way runMerge does for a local commit-ish.
func runPull(repo *gitcore.Repository, args []string) int {
	remoteName := "origin"
	if len(args) > 0 {
		remoteName = args[0]
	}

	branch := branchRefName(repo.HeadRef())
	if branch == "" {
		fmt.Fprintln(os.Stderr, "fatal: cannot pull in detached HEAD state")
		return 128
	}

	url, ok := repo.Remotes()[remoteName]
	if !ok {
		fmt.Fprintf(os.Stderr, "fatal: no such remote '%s'\n", remoteName)
		return 128
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	client := transport.NewClient(url, &http.Client{Timeout: 2 * time.Minute})

	remoteRefs, err := client.DiscoverRefs(ctx, transport.ServiceUploadPack)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	refName := "refs/heads/" + branch
	var remoteHash gitcore.Hash
	found := false
	for _, r := range remoteRefs {
		if r.Name == refName {
			remoteHash = r.Hash
			found = true
		}
	}
	if !found {
		fmt.Fprintf(os.Stderr, "fatal: couldn't find remote ref %s\n", branch)
		return 128
	}

	haves := localHaves(repo)
	if haves[remoteHash] {
		fmt.Println("Already up to date.")
		return 0
	}

	sp := startTransfer(fmt.Sprintf("Pulling from %s", url))
	packData, err := client.FetchPack(ctx, []gitcore.Hash{remoteHash}, haveSlice(haves))
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
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

	result, err := repo.Merge(repo.Head(), remoteHash, resolveAuthor(), fmt.Sprintf("Merge remote-tracking branch '%s/%s'", remoteName, branch))
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	switch {
	case result.UpToDate:
		fmt.Println("Already up to date.")
		return 0
	case result.FastForward:
		if err := repo.UpdateBranch(branch, result.CommitHash); err != nil {
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
		if err := repo.UpdateBranch(branch, result.CommitHash); err != nil {
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

// localHaves returns every commit hash this repository already has at the
// tip of a branch, used both as a cheap up-to-date check and as the have
// set offered to the remote during negotiation.
func localHaves(repo *gitcore.Repository) map[gitcore.Hash]bool {
	haves := make(map[gitcore.Hash]bool)
	for _, hash := range repo.Branches() {
		haves[hash] = true
	}
	return haves
}

func haveSlice(haves map[gitcore.Hash]bool) []gitcore.Hash {
	out := make([]gitcore.Hash, 0, len(haves))
	for h := range haves {
		out = append(out, h)
	}
	return out
}
