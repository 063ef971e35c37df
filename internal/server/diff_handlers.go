package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/witvcs/wit/internal/gitcore"
)

// diffContextLines is the number of unchanged lines kept around each hunk,
// matching unified diff's conventional default.
const diffContextLines = 3

// handleCommitDiff serves the diff between a commit and its first parent
// (the whole tree for a root commit). Two path shapes share this handler:
//
//	GET /api/commit/diff/{hash}             -> full CommitDiff (entries + stats)
//	GET /api/commit/diff/{hash}/file?path=P -> single FileDiff for path P
func (s *Server) handleCommitDiff(w http.ResponseWriter, r *http.Request) {
	commitHash, rest, repo, ok := s.extractHashParam(w, r, "/api/commit/diff/")
	if !ok {
		return
	}

	fileMode := rest == "/file"
	var filePath string
	switch {
	case fileMode:
		raw := r.URL.Query().Get("path")
		if raw == "" {
			http.Error(w, "Missing 'path' query parameter", http.StatusBadRequest)
			return
		}
		sanitized, err := sanitizePath(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid path: %v", err), http.StatusBadRequest)
			return
		}
		filePath = sanitized
	case rest != "":
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	commit, err := repo.GetCommit(commitHash)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to load commit: %v", err), http.StatusNotFound)
		return
	}

	var oldTreeHash gitcore.Hash
	if len(commit.Parents) >= 1 {
		parent, err := repo.GetCommit(commit.Parents[0])
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to load parent commit: %v", err), http.StatusInternalServerError)
			return
		}
		oldTreeHash = parent.Tree
	}
	// Root commits leave oldTreeHash empty; TreeDiff treats that as "diff
	// against an empty tree" and reports every entry as added.

	entries, err := gitcore.TreeDiff(repo, oldTreeHash, commit.Tree, "")
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to compute diff: %v", err), http.StatusInternalServerError)
		return
	}

	if fileMode {
		var target *gitcore.DiffEntry
		for i := range entries {
			if entries[i].Path == filePath {
				target = &entries[i]
				break
			}
		}
		if target == nil {
			http.Error(w, "File not found in commit diff", http.StatusNotFound)
			return
		}

		fileDiff, err := gitcore.ComputeFileDiff(repo, target.OldHash, target.NewHash, target.Path, diffContextLines)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to compute file diff: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(fileDiff); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
		return
	}

	commitDiff := gitcore.CommitDiff{
		CommitHash: commitHash,
		Entries:    entries,
		Stats:      computeDiffStats(repo, entries),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(commitDiff); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// handleWorkingTreeDiff serves the diff for a single file between the index
// and the working tree copy on disk.
func (s *Server) handleWorkingTreeDiff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session := sessionFromCtx(r.Context())
	if session == nil {
		http.Error(w, "Repository not available", http.StatusInternalServerError)
		return
	}
	repo := session.Repo()
	if repo == nil {
		http.Error(w, "Repository not available", http.StatusInternalServerError)
		return
	}

	raw := r.URL.Query().Get("path")
	if raw == "" {
		http.Error(w, "Missing 'path' query parameter", http.StatusBadRequest)
		return
	}
	filePath, err := sanitizePath(raw)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid path: %v", err), http.StatusBadRequest)
		return
	}

	fileDiff, err := gitcore.ComputeWorkingTreeFileDiff(repo, filePath, diffContextLines)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to compute working tree diff: %v", err), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(fileDiff); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// computeDiffStats tallies insertion/deletion counts across a set of diff
// entries by computing each file's diff at the default context width.
// Binary or truncated files contribute to FilesChanged but not line counts.
func computeDiffStats(repo *gitcore.Repository, entries []gitcore.DiffEntry) gitcore.DiffStats {
	stats := gitcore.DiffStats{FilesChanged: len(entries)}
	for _, entry := range entries {
		fd, err := gitcore.ComputeFileDiff(repo, entry.OldHash, entry.NewHash, entry.Path, diffContextLines)
		if err != nil || fd.IsBinary || fd.Truncated {
			continue
		}
		for _, hunk := range fd.Hunks {
			for _, line := range hunk.Lines {
				switch line.Type {
				case gitcore.LineTypeAddition:
					stats.Insertions++
				case gitcore.LineTypeDeletion:
					stats.Deletions++
				}
			}
		}
	}
	return stats
}
