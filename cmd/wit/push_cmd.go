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

func runPush(repo *gitcore.Repository, args []string) int {
	remoteName := "origin"
	branch := ""
	if len(args) > 0 {
		remoteName = args[0]
	}
	if len(args) > 1 {
		branch = args[1]
	}
	if branch == "" {
		if b := branchRefName(repo.HeadRef()); b != "" {
			branch = b
		} else {
			fmt.Fprintln(os.Stderr, "fatal: no branch to push (detached HEAD); specify one")
			return 128
		}
	}

	url, ok := repo.Remotes()[remoteName]
	if !ok {
		fmt.Fprintf(os.Stderr, "fatal: no such remote '%s'\n", remoteName)
		return 128
	}

	localHash, ok := repo.Branches()[branch]
	if !ok {
		fmt.Fprintf(os.Stderr, "fatal: no such branch '%s'\n", branch)
		return 128
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	client := transport.NewClient(url, &http.Client{Timeout: 2 * time.Minute})

	remoteRefs, err := client.DiscoverRefs(ctx, transport.ServiceReceivePack)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	refName := "refs/heads/" + branch
	oldHash := zeroHash(repo)
	haves := make(map[gitcore.Hash]bool, len(remoteRefs))
	for _, r := range remoteRefs {
		haves[r.Hash] = true
		if r.Name == refName {
			oldHash = r.Hash
		}
	}

	entries, err := transport.CollectReachable(repo, []gitcore.Hash{localHash}, haves)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	packData, err := gitcore.EncodePack(entries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	sp := startTransfer(fmt.Sprintf("Writing objects to %s", url))
	statuses, err := client.PushPack(ctx, []transport.PushUpdate{{Old: oldHash, New: localHash, Name: refName}}, packData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	finishTransfer(sp, "Writing objects", len(entries), len(packData))

	status, ok := statuses[refName]
	if !ok || status != "ok" {
		fmt.Fprintf(os.Stderr, "error: failed to push %s: %s\n", refName, status)
		return 1
	}

	fmt.Printf("To %s\n   %s -> %s\n", url, localHash.Short(), branch)
	return 0
}

func zeroHash(repo *gitcore.Repository) gitcore.Hash {
	n := repo.HashAlgorithm().HexSize()
	zeros := make([]byte, n)
	for i := range zeros {
		zeros[i] = '0'
	}
	return gitcore.Hash(zeros)
}
