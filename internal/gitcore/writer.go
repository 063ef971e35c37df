package gitcore

import (
	"compress/zlib"
	"crypto/sha1" //nolint:gosec // G505: sha1 is a supported, explicitly selected Git object-hash algorithm
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"path/filepath"
)

// newObjectHasher returns a hash.Hash matching the repository's configured
// algorithm, ready to receive the framed "type size\x00payload" bytes.
func (r *Repository) newObjectHasher() hash.Hash {
	if r.hashAlgorithm == SHA256 {
		return sha256.New()
	}
	return sha1.New() //nolint:gosec // G401: see newObjectHasher doc
}

// frameObject produces the canonical "type SP size NUL payload" byte layout
// every loose and packed Git object shares, and the Hash it content-addresses
// to under the repository's configured algorithm.
func (r *Repository) frameObject(objType ObjectType, payload []byte) (Hash, []byte) {
	header := fmt.Sprintf("%s %d\x00", objType.String(), len(payload))
	framed := make([]byte, 0, len(header)+len(payload))
	framed = append(framed, header...)
	framed = append(framed, payload...)

	h := r.newObjectHasher()
	h.Write(framed)
	return Hash(hex.EncodeToString(h.Sum(nil))), framed
}

// HashContent returns the Hash payload would content-address to as an
// object of objType, without writing anything to the store. Useful for
// status-style comparisons that need the canonical hash of working content
// without staging it as a loose object.
func (r *Repository) HashContent(objType ObjectType, payload []byte) Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hash, _ := r.frameObject(objType, payload)
	return hash
}

// ReadRaw returns id's payload (the undeflated, undelta'd object bytes, with
// no "type size\x00" framing) and its ObjectType, resolving through loose
// storage first and then every loaded pack index. Intended for callers
// (e.g. the Smart-HTTP transport) that need to re-pack arbitrary objects
// without going through the typed Commit/Tree/Tag decoders.
func (r *Repository) ReadRaw(id Hash) ([]byte, ObjectType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payload, typeNum, err := r.readObjectData(id)
	if err != nil {
		return nil, NoneObject, NewError(KindNotFound, fmt.Sprintf("object %s not found", id), err)
	}
	return payload, ObjectType(typeNum), nil
}

// HasObject reports whether id is present as a loose or packed object.
func (r *Repository) HasObject(id Hash) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	path := looseObjectPath(r.gitDir, id)
	if _, err := os.Stat(path); err == nil {
		return true
	}
	for _, idx := range r.packIndices {
		if _, found := idx.FindObject(id); found {
			return true
		}
	}
	return false
}

func looseObjectPath(gitDir string, id Hash) string {
	s := string(id)
	return filepath.Join(gitDir, "objects", s[:2], s[2:])
}

// WriteRaw content-addresses and stores framed (already-deflated-ready, i.e.
// type+size+NUL+payload) object bytes, returning the resulting Hash. Writing
// an object that already exists is a no-op that still returns its Hash
// (content addressing makes the operation naturally idempotent).
//
// expectedHash is an optional carve-out: when supplied (and non-empty), the
// object is stored under that hash verbatim instead of one computed from
// payload. This is the only way the content-address invariant can be
// bypassed, and exists for interop with an upstream Git peer naming objects
// under a different hash algorithm than this repository's configured one —
// not for ordinary pack import, which always recomputes and so still
// verifies what it stores. Callers should pass it only for objects whose
// integrity they've already established some other way.
func (r *Repository) WriteRaw(objType ObjectType, payload []byte, expectedHash ...Hash) (Hash, error) {
	var id Hash
	var framed []byte
	if len(expectedHash) > 0 && expectedHash[0] != "" {
		id = expectedHash[0]
		header := fmt.Sprintf("%s %d\x00", objType.String(), len(payload))
		framed = make([]byte, 0, len(header)+len(payload))
		framed = append(framed, header...)
		framed = append(framed, payload...)
	} else {
		id, framed = r.frameObject(objType, payload)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path := looseObjectPath(r.gitDir, id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", NewError(KindIO, "creating object directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-obj-*")
	if err != nil {
		return "", NewError(KindIO, "creating temp object file", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	zw := zlib.NewWriter(tmp)
	if _, err := zw.Write(framed); err != nil {
		_ = zw.Close()
		_ = tmp.Close()
		cleanup()
		return "", NewError(KindIO, "compressing object", err)
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", NewError(KindIO, "finalizing object compression", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", NewError(KindIO, "closing temp object file", err)
	}
	if err := os.Chmod(tmpPath, 0o444); err != nil { //nolint:gosec // G302: loose objects are read-only content-addressed blobs
		cleanup()
		return "", NewError(KindIO, "setting object permissions", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return "", NewError(KindIO, "finalizing object write", err)
	}

	return id, nil
}

// WriteObject serializes obj with its canonical Git encoding (serialize.go)
// and stores it via WriteRaw. Commit objects are also registered into the
// repository's in-memory commit index, so a commit written this way is
// immediately visible to GetCommit/Commits without requiring the caller to
// reopen the repository.
func (r *Repository) WriteObject(obj Object) (Hash, error) {
	payload, err := serializeObject(obj)
	if err != nil {
		return "", NewError(KindInvalid, "serializing object", err)
	}
	id, err := r.WriteRaw(obj.Type(), payload)
	if err != nil {
		return "", err
	}
	if commit, ok := obj.(*Commit); ok {
		r.registerCommit(id, commit)
	}
	return id, nil
}

// registerCommit records a freshly written commit in the repository's
// in-memory commit index under its content-addressed id, so it resolves via
// GetCommit without waiting for the next full reload. The commit's Author
// and Committer identities are canonicalized through .mailmap, matching what
// a reload via loadMailmap would have produced, so a commit made mid-session
// displays the same identity as one read back from disk.
func (r *Repository) registerCommit(id Hash, commit *Commit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commitMap == nil {
		return
	}
	if _, exists := r.commitMap[id]; exists {
		return
	}
	registered := *commit
	registered.ID = id
	r.mailmap.resolve(&registered.Author)
	r.mailmap.resolve(&registered.Committer)
	r.commitMap[id] = &registered
	r.commits = append(r.commits, &registered)
}

// IterObjects walks every object this repository knows about — loose
// objects on disk and every object indexed by a loaded pack — and returns
// their hashes with duplicates removed. It is the enumeration primitive a
// garbage collector needs before it can compute reachability: nothing here
// decides whether an object is live, it only lists what exists.
func (r *Repository) IterObjects() ([]Hash, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[Hash]bool)
	var hashes []Hash

	objectsDir := filepath.Join(r.gitDir, "objects")
	entries, err := os.ReadDir(objectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return hashes, nil
		}
		return nil, NewError(KindIO, "reading objects directory", err)
	}

	for _, dirEntry := range entries {
		if !dirEntry.IsDir() || len(dirEntry.Name()) != 2 {
			continue
		}
		prefix := dirEntry.Name()
		shardPath := filepath.Join(objectsDir, prefix)
		shard, err := os.ReadDir(shardPath)
		if err != nil {
			return nil, NewError(KindIO, "reading object shard", err)
		}
		for _, f := range shard {
			if f.IsDir() {
				continue
			}
			id := Hash(prefix + f.Name())
			if !seen[id] {
				seen[id] = true
				hashes = append(hashes, id)
			}
		}
	}

	for _, idx := range r.packIndices {
		for id := range idx.Offsets() {
			if !seen[id] {
				seen[id] = true
				hashes = append(hashes, id)
			}
		}
	}

	return hashes, nil
}
