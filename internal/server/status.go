package server

import (
	"github.com/witvcs/wit/internal/gitcore"
)

// FileStatus represents the status of a single file in the working tree.
type FileStatus struct {
	Path       string `json:"path"`
	StatusCode string `json:"statusCode"`
}

// WorkingTreeStatus groups files by their working tree state.
type WorkingTreeStatus struct {
	Staged    []FileStatus `json:"staged"`
	Modified  []FileStatus `json:"modified"`
	Untracked []FileStatus `json:"untracked"`
}

// getWorkingTreeStatus computes the working tree status for repo using this
// engine's own index/worktree comparison, rather than shelling out to a git
// binary that may not even be installed alongside the daemon.
func getWorkingTreeStatus(repo *gitcore.Repository) *WorkingTreeStatus {
	raw, err := gitcore.ComputeWorkingTreeStatus(repo)
	if err != nil {
		return nil
	}

	status := &WorkingTreeStatus{
		Staged:    []FileStatus{},
		Modified:  []FileStatus{},
		Untracked: []FileStatus{},
	}

	for _, f := range raw.Files {
		switch {
		case f.IsUntracked:
			status.Untracked = append(status.Untracked, FileStatus{Path: f.Path, StatusCode: "?"})
		case f.WorkStatus != "":
			status.Modified = append(status.Modified, FileStatus{Path: f.Path, StatusCode: statusCode(f.WorkStatus)})
			if f.IndexStatus != "" {
				status.Staged = append(status.Staged, FileStatus{Path: f.Path, StatusCode: statusCode(f.IndexStatus)})
			}
		case f.IndexStatus != "":
			status.Staged = append(status.Staged, FileStatus{Path: f.Path, StatusCode: statusCode(f.IndexStatus)})
		}
	}

	return status
}

// statusCode maps gitcore's descriptive status words to the single-letter
// codes real git's porcelain output (and this server's prior shellout-based
// implementation) used, kept for API compatibility with existing clients.
func statusCode(word string) string {
	switch word {
	case "added":
		return "A"
	case "modified":
		return "M"
	case "deleted":
		return "D"
	case "renamed":
		return "R"
	default:
		return "M"
	}
}
