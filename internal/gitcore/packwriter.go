package gitcore

import (
	"compress/zlib"
	"crypto/sha1" //nolint:gosec // G505: sha1 is used for the v2 pack trailer/fanout regardless of object hash algorithm, matching the pack format spec
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
)

// PackEntry is one object destined for a written pack: its Hash, pack object
// type byte, and the object's raw (undeflated, undelta'd) payload bytes.
// Per spec Non-goals, the encoder never emits deltas — every entry is
// written as a full object. Any valid pack reader (including this module's
// own decoder in pack.go) accepts non-delta packs.
type PackEntry struct {
	ID      Hash
	Type    byte
	Payload []byte
}

// WritePack encodes entries into a pack file plus its v2 .idx sibling under
// gitDir/objects/pack, named by the pack's own trailer hash as real Git
// does. It returns the base name (without extension) of the written pair.
func WritePack(gitDir string, entries []PackEntry) (string, error) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	packDir := filepath.Join(gitDir, "objects", "pack")
	if err := os.MkdirAll(packDir, 0o755); err != nil {
		return "", NewError(KindIO, "creating pack directory", err)
	}

	body, offsets, trailer, err := encodePackBody(entries)
	if err != nil {
		return "", err
	}

	name := "pack-" + hex.EncodeToString(trailer)
	packPath := filepath.Join(packDir, name+".pack")
	if err := os.WriteFile(packPath, body, 0o444); err != nil { //nolint:gosec // G306: packs are read-only content-addressed data
		return "", NewError(KindIO, "writing pack file", err)
	}

	idx := encodePackIndexV2(entries, offsets, trailer)
	idxPath := filepath.Join(packDir, name+".idx")
	if err := os.WriteFile(idxPath, idx, 0o444); err != nil { //nolint:gosec // G306: see above
		_ = os.Remove(packPath)
		return "", NewError(KindIO, "writing pack index", err)
	}

	return name, nil
}

// EncodePack encodes entries into a complete in-memory pack byte stream
// ("PACK" header through trailing whole-pack hash), without touching disk.
// Used by the Smart-HTTP transport to stream a pack directly into an HTTP
// response instead of staging it under objects/pack first.
func EncodePack(entries []PackEntry) ([]byte, error) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	body, _, _, err := encodePackBody(entries)
	return body, err
}

// encodePackBody writes the "PACK" header, one varint-length-prefixed +
// zlib-compressed object per entry, and a trailing whole-pack hash. It
// returns the body bytes, each entry's byte offset within body, and the
// raw trailer hash bytes.
func encodePackBody(entries []PackEntry) ([]byte, []int64, []byte, error) {
	var body []byte
	body = append(body, 'P', 'A', 'C', 'K')
	var versionCount [8]byte
	binary.BigEndian.PutUint32(versionCount[0:4], 2)
	binary.BigEndian.PutUint32(versionCount[4:8], uint32(len(entries)))
	body = append(body, versionCount[:]...)

	offsets := make([]int64, len(entries))
	for i, e := range entries {
		offsets[i] = int64(len(body))
		body = append(body, encodePackObjectHeader(e.Type, len(e.Payload))...)
		compressed, err := zlibCompress(e.Payload)
		if err != nil {
			return nil, nil, nil, NewError(KindIO, "compressing pack object", err)
		}
		body = append(body, compressed...)
	}

	trailerHasher := sha1.New() //nolint:gosec // G401: pack trailer hash is always sha1 per the pack format, independent of object hash algorithm
	trailerHasher.Write(body)
	trailer := trailerHasher.Sum(nil)
	body = append(body, trailer...)

	return body, offsets, trailer, nil
}

// encodePackObjectHeader writes the variable-length type+size header
// preceding a pack object's compressed data: 3 type bits + 4 size-low bits
// in the first byte (MSB = continuation flag), then 7 bits per following
// byte, matching the layout readPackObjectHeader in pack.go parses.
func encodePackObjectHeader(objType byte, size int) []byte {
	var out []byte
	first := (objType << 4) & 0x70
	first |= byte(size) & 0x0F
	size >>= 4
	if size > 0 {
		first |= 0x80
	}
	out = append(out, first)
	for size > 0 {
		b := byte(size) & 0x7F
		size >>= 7
		if size > 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func zlibCompress(data []byte) ([]byte, error) {
	var buf []byte
	w := &appendingWriter{buf: &buf}
	zw := zlib.NewWriter(w)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

type appendingWriter struct{ buf *[]byte }

func (w *appendingWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

// encodePackIndexV2 writes a pack index v2 file: magic, version, 256-entry
// fanout table, sorted object names, CRC32 table, 32-bit offset table (with
// large-offset overflow into a 64-bit table, unused for packs this encoder
// ever writes since it never exceeds 4GiB in one shot), and the two trailer
// hashes (pack hash, index hash) — the same layout loadPackIndexV2 reads.
func encodePackIndexV2(entries []PackEntry, offsets []int64, packTrailer []byte) []byte {
	var out []byte
	out = append(out, packIndexV2Magic0, packIndexV2Magic1, packIndexV2Magic2, packIndexV2Magic3)
	var versionBytes [4]byte
	binary.BigEndian.PutUint32(versionBytes[:], 2)
	out = append(out, versionBytes[:]...)

	var fanout [256]uint32
	for i, e := range entries {
		raw, _ := hex.DecodeString(string(e.ID))
		if len(raw) == 0 {
			continue
		}
		for b := int(raw[0]); b < 256; b++ {
			fanout[b] = uint32(i + 1)
		}
	}
	for _, f := range fanout {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], f)
		out = append(out, b[:]...)
	}

	for _, e := range entries {
		raw, _ := hex.DecodeString(string(e.ID))
		out = append(out, raw...)
	}

	for _, e := range entries {
		crc := crc32Of(e.Payload)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], crc)
		out = append(out, b[:]...)
	}

	for _, off := range offsets {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(off))
		out = append(out, b[:]...)
	}

	out = append(out, packTrailer...)

	// The v2 index format's own trailing self-checksum is always sha1,
	// independent of the object hash algorithm in use (sha256
	// repositories use index format v3, which this encoder does not
	// produce since it only needs to feed this module's own decoder).
	idxHasher := sha1.New() //nolint:gosec // G401: see comment above
	idxHasher.Write(out)
	out = append(out, idxHasher.Sum(nil)...)

	return out
}

func crc32Of(data []byte) uint32 {
	const poly = 0xEDB88320
	var table [256]uint32
	for i := range table {
		c := uint32(i)
		for range 8 {
			if c&1 != 0 {
				c = poly ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		table[i] = c
	}
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc = table[(crc^uint32(b))&0xFF] ^ (crc >> 8)
	}
	return crc ^ 0xFFFFFFFF
}
