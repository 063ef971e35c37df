// Package transport implements the Git Smart-HTTP protocol: pkt-line
// framing, the info/refs discovery endpoint, and the upload-pack/
// receive-pack negotiation loops, built directly on internal/gitcore's
// object store, pack codec, and ref manager rather than shelling out to a
// real git binary.
package transport

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// flushPkt is the four-byte "0000" pkt-line flush marker.
const flushPkt = "0000"

// encodePkt frames s as a single pkt-line: a 4-hex-digit length prefix
// (counting itself) followed by the payload.
func encodePkt(s string) string {
	if s == "" {
		return flushPkt
	}
	return fmt.Sprintf("%04x%s", len(s)+4, s)
}

// writePkt writes one pkt-line-framed string to w.
func writePkt(w io.Writer, s string) error {
	_, err := io.WriteString(w, encodePkt(s))
	return err
}

// writeFlush writes the flush-pkt.
func writeFlush(w io.Writer) error {
	_, err := io.WriteString(w, flushPkt)
	return err
}

// pktReader decodes a stream of pkt-lines, stopping at a flush packet or
// EOF. A flush line yields ("", true, nil); EOF at a line boundary yields
// ("", false, io.EOF).
type pktReader struct {
	r *bufio.Reader
}

func newPktReader(r io.Reader) *pktReader {
	return &pktReader{r: bufio.NewReader(r)}
}

// readPkt returns the next pkt-line's payload with its trailing newline, if
// any, intact. flush reports whether the line was the "0000" flush marker.
func (p *pktReader) readPkt() (line string, flush bool, err error) {
	lenHex := make([]byte, 4)
	if _, err := io.ReadFull(p.r, lenHex); err != nil {
		return "", false, err
	}
	n, err := strconv.ParseUint(string(lenHex), 16, 16)
	if err != nil {
		return "", false, fmt.Errorf("pkt-line: invalid length prefix %q: %w", lenHex, err)
	}
	if n == 0 {
		return "", true, nil
	}
	if n < 4 {
		return "", false, fmt.Errorf("pkt-line: length %d shorter than header", n)
	}
	buf := make([]byte, n-4)
	if _, err := io.ReadFull(p.r, buf); err != nil {
		return "", false, err
	}
	return string(buf), false, nil
}

// readLines reads pkt-lines until a flush or EOF, returning every non-flush
// payload collected along the way.
func (p *pktReader) readLines() ([]string, error) {
	var lines []string
	for {
		line, flush, err := p.readPkt()
		if err != nil {
			if err == io.EOF {
				return lines, nil
			}
			return lines, err
		}
		if flush {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// sidebandData is the primary channel of the side-band-64k protocol
// extension advertised in the ref advertisement; pack bytes and report
// lines both travel on it, each chunk prefixed by the band byte and
// wrapped in its own pkt-line.
const sidebandData = 1

// maxSidebandChunk keeps each framed pkt-line within side-band-64k's limit
// (65520 total, minus 4 for the length header and 1 for the band byte).
const maxSidebandChunk = 65515

// streamSideband writes payload to w as a sequence of side-band-64k
// data-channel pkt-lines.
func streamSideband(w io.Writer, payload []byte) error {
	for len(payload) > 0 {
		n := len(payload)
		if n > maxSidebandChunk {
			n = maxSidebandChunk
		}
		chunk := append([]byte{sidebandData}, payload[:n]...)
		if _, err := io.WriteString(w, fmt.Sprintf("%04x", len(chunk)+4)); err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		payload = payload[n:]
	}
	return nil
}
