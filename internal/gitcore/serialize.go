package gitcore

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// serializeObject produces the canonical payload bytes for obj — the mirror
// image of parseCommitBody/parseTagBody/parseTreeBody in objects.go, and of
// the blob identity encoding (a blob's payload is simply its content).
func serializeObject(obj Object) ([]byte, error) {
	switch v := obj.(type) {
	case *Commit:
		return serializeCommit(v), nil
	case *Tag:
		return serializeTag(v), nil
	case *Tree:
		return serializeTree(v), nil
	default:
		return nil, fmt.Errorf("gitcore: unsupported object type for serialization: %T", obj)
	}
}

func formatSignature(s Signature) string {
	_, offset := s.When.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := offset / 3600
	mins := (offset % 3600) / 60
	return fmt.Sprintf("%s <%s> %d %s%02d%02d", s.Name, s.Email, s.When.Unix(), sign, hours, mins)
}

func serializeCommit(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", formatSignature(c.Author))
	fmt.Fprintf(&buf, "committer %s\n", formatSignature(c.Committer))
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	if !strings.HasSuffix(c.Message, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func serializeTag(t *Tag) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", t.Object)
	fmt.Fprintf(&buf, "type %s\n", t.ObjType.String())
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	fmt.Fprintf(&buf, "tagger %s\n", formatSignature(t.Tagger))
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	if !strings.HasSuffix(t.Message, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// treeEntryLess implements Git's canonical tree-entry ordering: entries sort
// by name, except a name representing a subdirectory sorts as though it had
// a trailing "/" (so "foo" and "foo.txt" order around "foo/bar" correctly).
func treeEntryLess(a, b TreeEntry) bool {
	an, bn := treeSortName(a), treeSortName(b)
	return an < bn
}

func treeSortName(e TreeEntry) string {
	if e.Type == "tree" {
		return e.Name + "/"
	}
	return e.Name
}

// serializeTree encodes entries in canonical order, regardless of the order
// they were constructed in — callers of NewTree-style builders need not sort.
func serializeTree(t *Tree) []byte {
	entries := make([]TreeEntry, len(t.Entries))
	copy(entries, t.Entries)
	sort.Slice(entries, func(i, j int) bool { return treeEntryLess(entries[i], entries[j]) })

	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "%s %s\x00", e.Mode, e.Name)
		raw, _ := hex.DecodeString(string(e.ID))
		buf.Write(raw)
	}
	return buf.Bytes()
}

// NewTree builds a Tree with entries in canonical order from an unordered
// set, so callers (index writer, merge materialization, virtual tree
// commit) never need to think about Git's sort rule directly.
func NewTree(entries []TreeEntry) *Tree {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return treeEntryLess(sorted[i], sorted[j]) })
	return &Tree{Entries: sorted}
}
