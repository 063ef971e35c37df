package transport

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/witvcs/wit/internal/gitcore"
)

// ServiceUploadPack and ServiceReceivePack name the two Smart-HTTP services
// this transport understands.
const (
	ServiceUploadPack  = "git-upload-pack"
	ServiceReceivePack = "git-receive-pack"
)

// advertisedCapabilities is sent on every ref advertisement line. ofs-delta
// is omitted deliberately: this engine's own packer never emits
// offset-deltas (see gitcore.WritePack), so advertising it would invite a
// client to assume a capability the server-side encoder doesn't exercise.
const advertisedCapabilities = "report-status side-band-64k no-done agent=wit/1.0"

// RepoResolver looks up a bare (or non-bare) repository by the path segment
// a request names, returning a not-found-shaped error when none exists.
// Repository auto-creation, if any, is this function's responsibility —
// the transport layer itself never creates repositories.
type RepoResolver func(name string) (*gitcore.Repository, error)

// Handler serves the two Smart-HTTP endpoints (info/refs discovery and the
// upload-pack/receive-pack services) for repositories resolved via Resolve.
type Handler struct {
	Resolve RepoResolver
	Logger  *slog.Logger
}

// NewHandler constructs a Handler. A nil logger falls back to slog.Default.
func NewHandler(resolve RepoResolver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Resolve: resolve, Logger: logger}
}

// ServeInfoRefs implements GET /<repo>/info/refs?service=git-upload-pack|git-receive-pack.
func (h *Handler) ServeInfoRefs(w http.ResponseWriter, req *http.Request, repoName string) {
	service := req.URL.Query().Get("service")
	if service != ServiceUploadPack && service != ServiceReceivePack {
		http.Error(w, "unknown or missing service", http.StatusBadRequest)
		return
	}

	repo, err := h.Resolve(repoName)
	if err != nil {
		h.Logger.Warn("info/refs: repository not found", "repo", repoName, "err", err)
		http.NotFound(w, req)
		return
	}

	w.Header().Set("Content-Type", fmt.Sprintf("application/x-%s-advertisement", service))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	_ = writePkt(w, fmt.Sprintf("# service=%s\n", service))
	_ = writeFlush(w)

	refs := sortedRefList(repo)
	if len(refs) == 0 {
		zero := strings.Repeat("0", repo.HashAlgorithm().HexSize())
		_ = writePkt(w, fmt.Sprintf("%s %s\x00%s\n", zero, "capabilities^{}", advertisedCapabilities))
	} else {
		_ = writePkt(w, fmt.Sprintf("%s %s\x00%s\n", refs[0].hash, refs[0].name, advertisedCapabilities))
		for _, ref := range refs[1:] {
			_ = writePkt(w, fmt.Sprintf("%s %s\n", ref.hash, ref.name))
		}
	}
	_ = writeFlush(w)
}

type advertisedRef struct {
	name string
	hash gitcore.Hash
}

// sortedRefList returns every branch and tag ref, HEAD's own branch first
// (the real protocol requires the first advertised ref carry the
// capability list; which ref that is doesn't otherwise matter), sorted
// thereafter for a deterministic advertisement.
func sortedRefList(repo *gitcore.Repository) []advertisedRef {
	var refs []advertisedRef
	for name, hash := range repo.Branches() {
		refs = append(refs, advertisedRef{name: "refs/heads/" + name, hash: hash})
	}
	for name, hashStr := range repo.Tags() {
		if hash, err := repo.ParseHash(hashStr); err == nil {
			refs = append(refs, advertisedRef{name: "refs/tags/" + name, hash: hash})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].name < refs[j].name })

	headRef := repo.HeadRef()
	for i, ref := range refs {
		if ref.name == headRef {
			refs[0], refs[i] = refs[i], refs[0]
			break
		}
	}
	return refs
}

// ServeService implements POST /<repo>/git-upload-pack and
// POST /<repo>/git-receive-pack.
func (h *Handler) ServeService(w http.ResponseWriter, req *http.Request, repoName, service string) {
	repo, err := h.Resolve(repoName)
	if err != nil {
		h.Logger.Warn("service request: repository not found", "repo", repoName, "service", service, "err", err)
		http.NotFound(w, req)
		return
	}

	w.Header().Set("Content-Type", fmt.Sprintf("application/x-%s-result", service))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	switch service {
	case ServiceUploadPack:
		err = h.handleUploadPack(repo, req.Body, w)
	case ServiceReceivePack:
		err = h.handleReceivePack(repo, req.Body, w)
	default:
		err = fmt.Errorf("unknown service %q", service)
	}
	if err != nil {
		h.Logger.Error("smart-http service error", "repo", repoName, "service", service, "err", err)
	}
}

// handleUploadPack reads `want`/`have` lines up to `done`, computes the
// reachable-minus-haves object set, and streams it back as a packfile.
func (h *Handler) handleUploadPack(repo *gitcore.Repository, body io.Reader, w io.Writer) error {
	pr := newPktReader(body)

	var wants []gitcore.Hash
	haves := make(map[gitcore.Hash]bool)
	for {
		line, flush, err := pr.readPkt()
		if err != nil {
			return fmt.Errorf("upload-pack: reading request: %w", err)
		}
		if flush {
			continue
		}
		line = strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(line, "want "):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return fmt.Errorf("upload-pack: malformed want line %q", line)
			}
			hash, err := repo.ParseHash(fields[1])
			if err != nil {
				return fmt.Errorf("upload-pack: invalid want hash: %w", err)
			}
			wants = append(wants, hash)
		case strings.HasPrefix(line, "have "):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return fmt.Errorf("upload-pack: malformed have line %q", line)
			}
			hash, err := repo.ParseHash(fields[1])
			if err != nil {
				return fmt.Errorf("upload-pack: invalid have hash: %w", err)
			}
			haves[hash] = true
		case line == "done":
			goto negotiated
		case line == "":
			// tolerate a stray blank line between flush and "done"
		default:
			return fmt.Errorf("upload-pack: unexpected line %q", line)
		}
	}

negotiated:
	if _, err := io.WriteString(w, "0008NAK\n"); err != nil {
		return err
	}

	entries, err := CollectReachable(repo, wants, haves)
	if err != nil {
		return fmt.Errorf("upload-pack: selecting objects: %w", err)
	}

	packBytes, err := gitcore.EncodePack(entries)
	if err != nil {
		return fmt.Errorf("upload-pack: encoding pack: %w", err)
	}

	packBytesTotal.WithLabelValues("sent").Add(float64(len(packBytes)))

	if err := streamSideband(w, packBytes); err != nil {
		return fmt.Errorf("upload-pack: streaming pack: %w", err)
	}
	return writeFlush(w)
}

// handleReceivePack reads the ref update commands, the packfile that
// follows them, installs every object via gitcore, applies each ref
// update, and reports per-ref status.
func (h *Handler) handleReceivePack(repo *gitcore.Repository, body io.Reader, w io.Writer) error {
	pr := newPktReader(body)

	type refCommand struct {
		old, new gitcore.Hash
		name     string
	}
	var commands []refCommand

	lines, err := pr.readLines()
	if err != nil {
		return fmt.Errorf("receive-pack: reading commands: %w", err)
	}
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\n")
		if i == 0 {
			if nul := strings.IndexByte(line, 0); nul >= 0 {
				line = line[:nul]
			}
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return fmt.Errorf("receive-pack: malformed command line %q", line)
		}
		oldHash, err := repo.ParseHash(fields[0])
		if err != nil {
			return fmt.Errorf("receive-pack: invalid old hash: %w", err)
		}
		newHash, err := repo.ParseHash(fields[1])
		if err != nil {
			return fmt.Errorf("receive-pack: invalid new hash: %w", err)
		}
		commands = append(commands, refCommand{old: oldHash, new: newHash, name: fields[2]})
	}

	packData, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("receive-pack: reading packfile: %w", err)
	}
	packBytesTotal.WithLabelValues("received").Add(float64(len(packData)))
	if len(packData) > 0 {
		installed, err := repo.InstallPack(packData)
		if err != nil {
			return fmt.Errorf("receive-pack: installing pack: %w", err)
		}
		objectsInstalledTotal.Add(float64(len(installed)))
	}

	type status struct {
		name, msg string
		ok        bool
	}
	statuses := make([]status, 0, len(commands))
	for _, cmd := range commands {
		branch, isBranch := strings.CutPrefix(cmd.name, "refs/heads/")
		if !isBranch {
			statuses = append(statuses, status{name: cmd.name, ok: false, msg: "only refs/heads/ updates are supported"})
			continue
		}

		zero := strings.Repeat("0", repo.HashAlgorithm().HexSize())
		var updateErr error
		switch {
		case cmd.new == gitcore.Hash(zero):
			updateErr = repo.DeleteBranch(branch)
		case cmd.old == gitcore.Hash(zero):
			updateErr = repo.CreateBranch(branch, cmd.new)
		default:
			updateErr = repo.UpdateBranch(branch, cmd.new)
		}

		if updateErr != nil {
			statuses = append(statuses, status{name: cmd.name, ok: false, msg: updateErr.Error()})
		} else {
			statuses = append(statuses, status{name: cmd.name, ok: true})
		}
	}

	var report strings.Builder
	report.WriteString(encodePkt("unpack ok\n"))
	for _, s := range statuses {
		if s.ok {
			report.WriteString(encodePkt(fmt.Sprintf("ok %s\n", s.name)))
		} else {
			report.WriteString(encodePkt(fmt.Sprintf("ng %s %s\n", s.name, s.msg)))
		}
	}
	report.WriteString(flushPkt)

	if err := streamSideband(w, []byte(report.String())); err != nil {
		return fmt.Errorf("receive-pack: writing report: %w", err)
	}
	return nil
}
