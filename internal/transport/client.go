package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/witvcs/wit/internal/gitcore"
)

// Client is a Smart-HTTP client sufficient to clone and fetch from (and
// push to) another wit or stock-Git server, replacing an os/exec shellout
// to a real git binary with direct HTTP + pkt-line handling.
type Client struct {
	HTTP    *http.Client
	BaseURL string // e.g. "https://example.com/owner/repo.git"
}

// NewClient constructs a Client against baseURL, defaulting to http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{HTTP: httpClient, BaseURL: strings.TrimRight(baseURL, "/")}
}

// RemoteRef is one advertised ref from the discovery request.
type RemoteRef struct {
	Name string
	Hash gitcore.Hash
}

// DiscoverRefs performs GET info/refs?service=<service> and returns every
// advertised ref (HEAD's own ref first, as sent).
func (c *Client) DiscoverRefs(ctx context.Context, service string) ([]RemoteRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/info/refs?service="+service, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovering refs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovering refs: server returned %s", resp.Status)
	}

	pr := newPktReader(resp.Body)

	first, flush, err := pr.readPkt()
	if err != nil {
		return nil, fmt.Errorf("discovering refs: reading service header: %w", err)
	}
	if flush || !strings.HasPrefix(first, "# service=") {
		return nil, fmt.Errorf("discovering refs: unexpected response header %q", first)
	}
	if _, _, err := pr.readPkt(); err != nil && err != io.EOF { // the flush separating header from ref list
		return nil, fmt.Errorf("discovering refs: reading header flush: %w", err)
	}

	lines, err := pr.readLines()
	if err != nil {
		return nil, fmt.Errorf("discovering refs: reading ref list: %w", err)
	}

	refs := make([]RemoteRef, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\n")
		if i == 0 {
			if nul := strings.IndexByte(line, 0); nul >= 0 {
				line = line[:nul]
			}
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		refs = append(refs, RemoteRef{Name: fields[1], Hash: gitcore.Hash(fields[0])})
	}
	return refs, nil
}

// FetchPack negotiates an upload-pack request for wants (minus haves) and
// returns the decoded pack bytes, ready for gitcore.Repository.InstallPack.
func (c *Client) FetchPack(ctx context.Context, wants, haves []gitcore.Hash) ([]byte, error) {
	var body strings.Builder
	for i, w := range wants {
		if i == 0 {
			body.WriteString(encodePkt(fmt.Sprintf("want %s %s\n", w, advertisedCapabilities)))
		} else {
			body.WriteString(encodePkt(fmt.Sprintf("want %s\n", w)))
		}
	}
	body.WriteString(flushPkt)
	for _, h := range haves {
		body.WriteString(encodePkt(fmt.Sprintf("have %s\n", h)))
	}
	body.WriteString(encodePkt("done\n"))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+ServiceUploadPack, strings.NewReader(body.String()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", fmt.Sprintf("application/x-%s-request", ServiceUploadPack))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching pack: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching pack: server returned %s", resp.Status)
	}

	return demuxSideband(resp.Body)
}

// demuxSideband reads side-band-64k framed pkt-lines (skipping a leading
// plain "NAK\n"/"ACK ...\n" line if present) and returns the concatenated
// band-1 (pack data) payload.
func demuxSideband(r io.Reader) ([]byte, error) {
	pr := newPktReader(r)
	var pack bytes.Buffer

	for {
		line, flush, err := pr.readPkt()
		if err != nil {
			if err == io.EOF {
				return pack.Bytes(), nil
			}
			return nil, err
		}
		if flush {
			return pack.Bytes(), nil
		}
		if line == "NAK\n" || strings.HasPrefix(line, "ACK ") {
			continue
		}
		if len(line) == 0 {
			continue
		}
		band := line[0]
		payload := line[1:]
		switch band {
		case sidebandData:
			pack.WriteString(payload)
		case 2, 3:
			// progress/error channel text; nothing subscribes to it here.
		}
	}
}

// PushUpdate is one ref update to request of receive-pack.
type PushUpdate struct {
	Old, New gitcore.Hash
	Name     string
}

// PushPack sends updates and packData (already-encoded via gitcore.EncodePack,
// containing every object the remote is missing) to receive-pack, returning
// the per-ref ok/ng status lines the remote reports.
func (c *Client) PushPack(ctx context.Context, updates []PushUpdate, packData []byte) (map[string]string, error) {
	var body strings.Builder
	for i, u := range updates {
		line := fmt.Sprintf("%s %s %s", u.Old, u.New, u.Name)
		if i == 0 {
			line += "\x00" + advertisedCapabilities
		}
		body.WriteString(encodePkt(line + "\n"))
	}
	body.WriteString(flushPkt)
	body.Write(packData)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+ServiceReceivePack, strings.NewReader(body.String()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", fmt.Sprintf("application/x-%s-request", ServiceReceivePack))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pushing pack: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pushing pack: server returned %s", resp.Status)
	}

	reportBytes, err := demuxSideband(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pushing pack: reading report: %w", err)
	}

	statuses := make(map[string]string)
	pr := newPktReader(bytes.NewReader(reportBytes))
	lines, err := pr.readLines()
	if err != nil {
		return nil, fmt.Errorf("pushing pack: parsing report: %w", err)
	}
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\n")
		if line == "unpack ok" || strings.HasPrefix(line, "unpack ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "ok":
			statuses[fields[1]] = "ok"
		case "ng":
			statuses[fields[1]] = strings.Join(fields[2:], " ")
		}
	}
	return statuses, nil
}
