package repomanager

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/witvcs/wit/internal/gitcore"
	"github.com/witvcs/wit/internal/transport"
)

// normalizeURL canonicalizes a Git remote URL for deduplication.
// It lowercases the hostname, strips .git suffix and trailing slashes,
// and rejects anything this engine's Smart-HTTP client can't speak to.
func normalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("empty URL")
	}

	lower := strings.ToLower(rawURL)
	if strings.HasPrefix(lower, "file://") {
		return "", fmt.Errorf("file:// URLs are not supported")
	}
	if strings.HasPrefix(lower, "git://") {
		return "", fmt.Errorf("git:// URLs are not supported")
	}
	if strings.Contains(lower, "@") && strings.Contains(lower, ":") && !strings.Contains(lower, "://") {
		return "", fmt.Errorf("ssh URLs are not supported: this engine speaks Smart-HTTP only")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "https" && scheme != "http" {
		return "", fmt.Errorf("unsupported scheme: %s (only http and https are supported)", scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("missing hostname")
	}

	if isPrivateHost(host) {
		return "", fmt.Errorf("cloning from private/internal addresses is not allowed")
	}

	port := parsed.Port()
	hostPart := host
	if port != "" {
		hostPart = host + ":" + port
	}

	path := parsed.Path
	path = strings.TrimSuffix(path, ".git")
	path = strings.TrimRight(path, "/")

	return scheme + "://" + hostPart + path, nil
}

// hashURL returns the first 16 characters of the SHA-256 hex digest of the
// normalized URL. The result is deterministic and filesystem-safe.
func hashURL(normalizedURL string) string {
	h := sha256.Sum256([]byte(normalizedURL))
	return fmt.Sprintf("%x", h)[:16]
}

// remoteWantHaves discovers every branch and tag the remote advertises and
// returns the set of commit hashes to request, along with the ref name
// each want corresponds to (branch/tag short name -> target hash).
func remoteWantHaves(ctx context.Context, client *transport.Client) (wants []gitcore.Hash, branches, tags map[string]gitcore.Hash, headRef string, err error) {
	refs, err := client.DiscoverRefs(ctx, transport.ServiceUploadPack)
	if err != nil {
		return nil, nil, nil, "", err
	}

	branches = make(map[string]gitcore.Hash)
	tags = make(map[string]gitcore.Hash)
	seen := make(map[gitcore.Hash]bool)

	for i, ref := range refs {
		switch {
		case i == 0 && ref.Name == "capabilities^{}":
			// empty-repo advertisement: no real refs follow.
			continue
		case strings.HasPrefix(ref.Name, "refs/heads/"):
			name := strings.TrimPrefix(ref.Name, "refs/heads/")
			branches[name] = ref.Hash
			if i == 0 {
				// a wit server advertises HEAD's own branch first
				headRef = ref.Name
			}
		case strings.HasPrefix(ref.Name, "refs/tags/"):
			name := strings.TrimPrefix(ref.Name, "refs/tags/")
			tags[name] = ref.Hash
		case i == 0:
			headRef = ref.Name
		}
		if !seen[ref.Hash] {
			seen[ref.Hash] = true
			wants = append(wants, ref.Hash)
		}
	}
	return wants, branches, tags, headRef, nil
}

// cloneRepo performs a bare clone of repoURL into destPath using this
// engine's own Smart-HTTP client: discover refs, fetch a single pack
// covering every advertised tip, install it, and recreate every branch
// and tag the remote advertised. On failure, destPath is cleaned up.
//
// transport.Client streams no live per-object progress (unlike a real git
// subprocess's stderr), so onProgress only receives coarse phase
// transitions rather than a percentage.
func cloneRepo(ctx context.Context, repoURL, destPath string, timeout time.Duration, onProgress func(CloneProgress)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report := func(phase string) {
		if onProgress != nil {
			onProgress(CloneProgress{Phase: phase})
		}
	}

	repo, err := gitcore.Init(destPath, gitcore.InitOptions{Bare: true})
	if err != nil {
		return fmt.Errorf("initializing bare repository: %w", err)
	}

	client := transport.NewClient(repoURL, &http.Client{})

	report("Discovering refs")
	wants, branches, tags, headRef, err := remoteWantHaves(ctx, client)
	if err != nil {
		_ = os.RemoveAll(destPath)
		return fmt.Errorf("clone: %w", err)
	}

	if len(wants) > 0 {
		report("Receiving objects")
		packData, err := client.FetchPack(ctx, wants, nil)
		if err != nil {
			_ = os.RemoveAll(destPath)
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("clone timed out after %s", timeout)
			}
			return fmt.Errorf("clone: fetching pack: %w", err)
		}

		report("Resolving objects")
		if len(packData) > 0 {
			if _, err := repo.InstallPack(packData); err != nil {
				_ = os.RemoveAll(destPath)
				return fmt.Errorf("clone: installing pack: %w", err)
			}
		}
	}

	report("Updating refs")
	if err := installRemoteRefs(repo, branches, tags, headRef); err != nil {
		_ = os.RemoveAll(destPath)
		return fmt.Errorf("clone: %w", err)
	}

	return nil
}

// installRemoteRefs creates a local branch for every remote branch and a
// local tag for every remote tag, then points HEAD at the branch the
// remote advertised as its own (falling back to "main" if the remote's
// HEAD ref doesn't name a known branch).
func installRemoteRefs(repo *gitcore.Repository, branches, tags map[string]gitcore.Hash, headRef string) error {
	for name, hash := range branches {
		if err := repo.CreateBranch(name, hash); err != nil {
			return fmt.Errorf("creating branch %q: %w", name, err)
		}
	}
	for name, hash := range tags {
		if _, err := repo.CreateTag(name, hash, gitcore.Signature{}, ""); err != nil {
			return fmt.Errorf("creating tag %q: %w", name, err)
		}
	}

	branchName := strings.TrimPrefix(headRef, "refs/heads/")
	if _, ok := branches[branchName]; !ok {
		if _, ok := branches["main"]; ok {
			branchName = "main"
		} else {
			for name := range branches {
				branchName = name
				break
			}
		}
	}
	if branchName != "" {
		if err := repo.SetHeadSymbolic(branchName); err != nil {
			return fmt.Errorf("setting HEAD: %w", err)
		}
	}
	return nil
}

// fetchRepo fetches updates into the bare repository at repoPath over
// Smart-HTTP, updating every local branch to match the remote and pruning
// local branches the remote no longer advertises. The repository's
// existing remote URL is recovered from its stored normalized form.
func fetchRepo(ctx context.Context, repoPath, remoteURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	repo, err := gitcore.NewRepository(repoPath)
	if err != nil {
		return fmt.Errorf("fetch: opening repository: %w", err)
	}

	client := transport.NewClient(remoteURL, &http.Client{})

	_, branches, tags, headRef, err := remoteWantHaves(ctx, client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("fetch timed out after %s", timeout)
		}
		return fmt.Errorf("fetch: %w", err)
	}

	haves := localCommitHashes(repo)
	var wants []gitcore.Hash
	for _, hash := range branches {
		if !haves[hash] {
			wants = append(wants, hash)
		}
	}
	for _, hash := range tags {
		if !haves[hash] {
			wants = append(wants, hash)
		}
	}

	if len(wants) > 0 {
		packData, err := client.FetchPack(ctx, wants, commitHashSlice(haves))
		if err != nil {
			return fmt.Errorf("fetch: fetching pack: %w", err)
		}
		if len(packData) > 0 {
			if _, err := repo.InstallPack(packData); err != nil {
				return fmt.Errorf("fetch: installing pack: %w", err)
			}
		}
	}

	return reconcileRefs(repo, branches, tags, headRef)
}

// localCommitHashes returns every hash currently reachable via a local
// branch or tag, used as "have"s so FetchPack only asks for new objects.
func localCommitHashes(repo *gitcore.Repository) map[gitcore.Hash]bool {
	haves := make(map[gitcore.Hash]bool)
	for _, hash := range repo.Branches() {
		haves[hash] = true
	}
	for _, hashStr := range repo.Tags() {
		if hash, err := repo.ParseHash(hashStr); err == nil {
			haves[hash] = true
		}
	}
	return haves
}

func commitHashSlice(set map[gitcore.Hash]bool) []gitcore.Hash {
	out := make([]gitcore.Hash, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	return out
}

// reconcileRefs updates or creates every local branch/tag to match the
// remote's advertised targets, and prunes local branches absent from the
// remote's advertisement (the --prune behavior of a real git fetch).
func reconcileRefs(repo *gitcore.Repository, branches, tags map[string]gitcore.Hash, headRef string) error {
	existing := repo.Branches()
	for name, hash := range branches {
		if cur, ok := existing[name]; ok {
			if cur == hash {
				continue
			}
			if err := repo.UpdateBranch(name, hash); err != nil {
				return fmt.Errorf("updating branch %q: %w", name, err)
			}
		} else if err := repo.CreateBranch(name, hash); err != nil {
			return fmt.Errorf("creating branch %q: %w", name, err)
		}
	}

	headBranch := strings.TrimPrefix(headRef, "refs/heads/")
	for name := range existing {
		if _, ok := branches[name]; ok {
			continue
		}
		if name == headBranch {
			// never prune the branch HEAD points at, even if the remote
			// stopped advertising it (e.g. a detached-HEAD remote).
			continue
		}
		if err := repo.DeleteBranch(name); err != nil {
			return fmt.Errorf("pruning branch %q: %w", name, err)
		}
	}

	for name, hash := range tags {
		if existingHashes := repo.Tags(); existingHashes[name] == string(hash) {
			continue
		}
		_, _ = repo.CreateTag(name, hash, gitcore.Signature{}, "")
	}

	return nil
}

// isPrivateHost returns true if the hostname resolves to a private, loopback,
// or link-local IP address. This prevents SSRF attacks where a user-supplied
// clone URL targets internal infrastructure (e.g., cloud metadata endpoints).
func isPrivateHost(host string) bool {
	switch host {
	case "localhost", "metadata.google.internal":
		return true
	}

	ips, err := net.DefaultResolver.LookupHost(context.Background(), host)
	if err != nil {
		ip := net.ParseIP(host)
		if ip == nil {
			return false
		}
		return isPrivateIP(ip)
	}

	for _, ipStr := range ips {
		ip := net.ParseIP(ipStr)
		if ip != nil && isPrivateIP(ip) {
			return true
		}
	}
	return false
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}
