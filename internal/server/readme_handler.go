package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/witvcs/wit/internal/gitcore"
	"github.com/yuin/goldmark"
)

// readmeCandidates lists the root-level filenames checked, in priority
// order, the way most Git hosting UIs pick a repository's rendered README.
var readmeCandidates = []string{"README.md", "README.markdown", "Readme.md", "readme.md", "README"}

// handleReadme renders the repository's root README (if any) to HTML and
// returns it alongside the source path that was used.
func (s *Server) handleReadme(w http.ResponseWriter, r *http.Request) {
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

	path, content, ok := findReadme(repo)
	if !ok {
		http.Error(w, "No README found", http.StatusNotFound)
		return
	}

	var html strings.Builder
	response := map[string]any{"path": path}
	if strings.HasSuffix(strings.ToLower(path), ".md") || strings.HasSuffix(strings.ToLower(path), ".markdown") {
		if err := goldmark.Convert(content, &html); err != nil {
			http.Error(w, "Failed to render README", http.StatusInternalServerError)
			return
		}
		response["html"] = html.String()
	} else {
		// Plain-text README (no markdown extension): wrap as preformatted
		// text rather than attempting to parse it as markdown.
		response["html"] = "<pre>" + escapePreText(string(content)) + "</pre>"
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// findReadme looks for a root-level README file at HEAD and returns its
// path and raw content. Returns ok=false if HEAD is unset or no candidate
// filename is present in the root tree.
func findReadme(repo *gitcore.Repository) (path string, content []byte, ok bool) {
	headHash := repo.Head()
	if headHash == "" {
		return "", nil, false
	}
	commit, err := repo.GetCommit(headHash)
	if err != nil {
		return "", nil, false
	}
	tree, err := repo.GetTree(commit.Tree)
	if err != nil {
		return "", nil, false
	}

	byName := make(map[string]gitcore.TreeEntry, len(tree.Entries))
	for _, entry := range tree.Entries {
		byName[entry.Name] = entry
	}

	for _, candidate := range readmeCandidates {
		entry, found := byName[candidate]
		if !found || entry.Type != "blob" {
			continue
		}
		blob, err := repo.GetBlob(entry.ID)
		if err != nil {
			continue
		}
		return candidate, blob, true
	}

	return "", nil, false
}

// escapePreText escapes the handful of characters that matter inside a
// <pre> block.
func escapePreText(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(s)
}
