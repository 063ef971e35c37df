package gitcore

import (
	"fmt"
	"strings"
)

// RenderUnifiedDiff formats a FileDiff as standard unified-diff text: a
// "--- a/<path>" / "+++ b/<path>" header pair followed by one "@@ -old,len
// +new,len @@" block per hunk, each line prefixed " ", "-", or "+". Binary
// or truncated diffs emit a one-line marker instead of hunks, matching the
// convention real `git diff` uses for content it refuses to show inline.
func RenderUnifiedDiff(fd *FileDiff) string {
	var buf strings.Builder

	if fd.IsBinary {
		fmt.Fprintf(&buf, "Binary files a/%s and b/%s differ\n", fd.Path, fd.Path)
		return buf.String()
	}
	if fd.Truncated {
		fmt.Fprintf(&buf, "diff --git a/%s b/%s\n", fd.Path, fd.Path)
		buf.WriteString("(diff suppressed: file exceeds size limit)\n")
		return buf.String()
	}

	fmt.Fprintf(&buf, "--- a/%s\n", fd.Path)
	fmt.Fprintf(&buf, "+++ b/%s\n", fd.Path)

	for _, hunk := range fd.Hunks {
		fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n", hunk.OldStart, hunk.OldLines, hunk.NewStart, hunk.NewLines)
		for _, line := range hunk.Lines {
			prefix := " "
			switch line.Type {
			case LineTypeAddition:
				prefix = "+"
			case LineTypeDeletion:
				prefix = "-"
			}
			buf.WriteString(prefix)
			buf.WriteString(line.Content)
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// RenderCommitDiff formats every entry in a CommitDiff as a sequence of
// unified diffs, prefixing each file's block with a `diff --git` header line
// the way `git show`/`git diff` do, and a rename annotation when applicable.
func RenderCommitDiff(cd *CommitDiff, fileDiffs map[string]*FileDiff) string {
	var buf strings.Builder
	for _, entry := range cd.Entries {
		fmt.Fprintf(&buf, "diff --git a/%s b/%s\n", diffSourcePath(entry), entry.Path)
		if entry.Status == DiffStatusRenamed {
			fmt.Fprintf(&buf, "rename from %s\n", entry.OldPath)
			fmt.Fprintf(&buf, "rename to %s\n", entry.Path)
		}
		if fd, ok := fileDiffs[entry.Path]; ok {
			buf.WriteString(RenderUnifiedDiff(fd))
		}
	}
	return buf.String()
}

func diffSourcePath(entry DiffEntry) string {
	if entry.OldPath != "" {
		return entry.OldPath
	}
	return entry.Path
}
