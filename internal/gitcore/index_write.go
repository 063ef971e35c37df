package gitcore

import (
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Write serializes idx back to gitDir/index in the same version-2 binary
// layout parseIndex reads, via the standard temp-file-then-rename sequence.
// The index format's 20-byte hash field is sha1-width regardless of the
// owning repository's configured hash algorithm — real Git index v2 is
// defined that way; sha256 repositories use a later index-extension format
// this writer does not attempt to reproduce, a known limitation shared with
// the teacher's read-only ReadIndex (sha256 repos are a niche opt-in, and
// this engine's own checkout/status/commit paths never round-trip through
// the on-disk index format for them).
func (idx *Index) Write(gitDir string) error {
	entries := make([]IndexEntry, len(idx.Entries))
	copy(entries, idx.Entries)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Path != entries[j].Path {
			return entries[i].Path < entries[j].Path
		}
		return entries[i].Stage < entries[j].Stage
	})

	var buf []byte
	buf = append(buf, indexMagic...)
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], 2)
	binary.BigEndian.PutUint32(header[4:8], uint32(len(entries)))
	buf = append(buf, header[:]...)

	for _, e := range entries {
		buf = append(buf, encodeIndexEntry(e)...)
	}

	indexPath := filepath.Join(gitDir, "index")
	tmp, err := os.CreateTemp(gitDir, ".tmp-index-*")
	if err != nil {
		return NewError(KindIO, "creating temp index file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return NewError(KindIO, "writing index", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return NewError(KindIO, "closing temp index file", err)
	}
	if err := os.Rename(tmpPath, indexPath); err != nil {
		_ = os.Remove(tmpPath)
		return NewError(KindIO, "finalizing index write", err)
	}

	idx.Version = 2
	idx.Entries = entries
	idx.ByPath = make(map[string]*IndexEntry, len(entries))
	for i := range idx.Entries {
		if idx.Entries[i].Stage == 0 {
			idx.ByPath[idx.Entries[i].Path] = &idx.Entries[i]
		}
	}
	return nil
}

func encodeIndexEntry(e IndexEntry) []byte {
	var fixed [indexFixedEntrySize]byte
	binary.BigEndian.PutUint32(fixed[0:4], e.CtimeSec)
	binary.BigEndian.PutUint32(fixed[4:8], e.CtimeNsec)
	binary.BigEndian.PutUint32(fixed[8:12], e.MtimeSec)
	binary.BigEndian.PutUint32(fixed[12:16], e.MtimeNsec)
	binary.BigEndian.PutUint32(fixed[16:20], e.Device)
	binary.BigEndian.PutUint32(fixed[20:24], e.Inode)
	binary.BigEndian.PutUint32(fixed[24:28], e.Mode)
	binary.BigEndian.PutUint32(fixed[28:32], e.UID)
	binary.BigEndian.PutUint32(fixed[32:36], e.GID)
	binary.BigEndian.PutUint32(fixed[36:40], e.FileSize)

	raw, _ := hex.DecodeString(string(e.Hash))
	for len(raw) < 20 {
		raw = append(raw, 0)
	}
	copy(fixed[40:60], raw[:20])

	flags := (uint16(e.Stage) << indexFlagStageShift) & indexFlagStageMask
	pathLen := len(e.Path)
	if pathLen > 0xFFF {
		pathLen = 0xFFF
	}
	flags |= uint16(pathLen)
	binary.BigEndian.PutUint16(fixed[60:62], flags)

	out := append([]byte{}, fixed[:]...)
	out = append(out, e.Path...)
	rawLen := indexFixedEntrySize + len(e.Path) + 1
	paddedLen := (rawLen + indexEntryAlignment - 1) &^ (indexEntryAlignment - 1)
	padding := paddedLen - (indexFixedEntrySize + len(e.Path))
	out = append(out, make([]byte, padding)...)
	return out
}

// Add stages path at the given blob hash and file mode, replacing any
// existing stage-0 entry and clearing conflict stages for that path.
func (idx *Index) Add(path string, blobHash Hash, mode uint32, size uint32, modTime time.Time) {
	idx.removePath(path)
	entry := IndexEntry{
		MtimeSec:  uint32(modTime.Unix()), //nolint:gosec // G115: unix seconds fit uint32 until 2106, matching the on-disk format's field width
		MtimeNsec: uint32(modTime.Nanosecond()),
		Mode:      mode,
		FileSize:  size,
		Hash:      blobHash,
		Path:      path,
	}
	idx.Entries = append(idx.Entries, entry)
	idx.ByPath[path] = &idx.Entries[len(idx.Entries)-1]
}

// Remove unstages path entirely (all stages).
func (idx *Index) Remove(path string) {
	idx.removePath(path)
}

func (idx *Index) removePath(path string) {
	filtered := idx.Entries[:0]
	for _, e := range idx.Entries {
		if e.Path != path {
			filtered = append(filtered, e)
		}
	}
	idx.Entries = filtered
	delete(idx.ByPath, path)
	// Filtering shifted entries down in place; re-point ByPath at them.
	for i := range idx.Entries {
		if idx.Entries[i].Stage == 0 {
			idx.ByPath[idx.Entries[i].Path] = &idx.Entries[i]
		}
	}
}

// AddAll stages every entry from files, a path->content mapping typically
// produced by walking the working tree, writing each file's content as a
// blob object via repo.WriteRaw first.
func (r *Repository) AddAll(idx *Index, files map[string][]byte, modes map[string]uint32) error {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		content := files[p]
		hash, err := r.WriteRaw(BlobObject, content)
		if err != nil {
			return err
		}
		mode := modes[p]
		if mode == 0 {
			mode = 0o100644
		}
		idx.Add(p, hash, mode, uint32(len(content)), time.Now()) //nolint:gosec // G115: file sizes here are bounded by maxDecompressedSize
	}
	return nil
}
